package server

import (
	"crypto/sha256"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MrWong99/sitescope/internal/analyzer"
)

// resultCache remembers analyses of narration that is submitted again, for
// instance when an estimator re-opens a walk-through. The capture ID is not
// part of the key.
//
// Entries are tagged with the analyzer that produced them and only served
// for that analyzer, so a result that finishes after a reload is never
// returned by the new configuration.
type resultCache struct {
	lru *lru.Cache[[sha256.Size]byte, cacheEntry]
}

type cacheEntry struct {
	by  *analyzer.Analyzer
	res *analyzer.Result
}

func newResultCache(size int) (*resultCache, error) {
	c, err := lru.New[[sha256.Size]byte, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

// key hashes everything of c that influences its analysis.
func (c *resultCache) key(capture analyzer.Capture) [sha256.Size]byte {
	b, _ := json.Marshal(struct {
		Text       string   `json:"t"`
		Confidence float64  `json:"c"`
		Photos     []string `json:"p"`
	}{capture.Transcript.Text, capture.Transcript.Confidence, capture.Photos})
	return sha256.Sum256(b)
}

// Get returns a copy of the result a cached for capture, carrying its ID.
func (c *resultCache) Get(a *analyzer.Analyzer, capture analyzer.Capture) (*analyzer.Result, bool) {
	e, ok := c.lru.Get(c.key(capture))
	if !ok || e.by != a {
		return nil, false
	}
	cp := *e.res
	cp.ID = capture.ID
	return &cp, true
}

// Add caches the result a produced for capture.
func (c *resultCache) Add(a *analyzer.Analyzer, capture analyzer.Capture, res *analyzer.Result) {
	c.lru.Add(c.key(capture), cacheEntry{by: a, res: res})
}

func (c *resultCache) Purge() { c.lru.Purge() }

func (c *resultCache) Len() int { return c.lru.Len() }
