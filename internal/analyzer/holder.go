package analyzer

import "sync/atomic"

// Holder shares an [Analyzer] between request handlers while allowing it to
// be replaced after a configuration reload. Calls that already loaded the
// previous analyzer finish on it.
type Holder struct {
	p atomic.Pointer[Analyzer]
}

// NewHolder returns a Holder serving a.
func NewHolder(a *Analyzer) *Holder {
	h := &Holder{}
	h.p.Store(a)
	return h
}

// Load returns the current analyzer.
func (h *Holder) Load() *Analyzer { return h.p.Load() }

// Store replaces the current analyzer.
func (h *Holder) Store(a *Analyzer) { h.p.Store(a) }
