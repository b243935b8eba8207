// Package feedback stores estimator feedback on analyses. Feedback is kept as
// append-only JSON lines in a local file and is reviewed when tuning the
// lexicon and the trade tables.
package feedback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Feedback is an estimator's verdict on one analysed capture.
type Feedback struct {
	// CaptureID identifies the analysis the feedback refers to.
	CaptureID string `json:"captureId"`

	// Rating grades the scope of work from 1 (unusable) to 5 (used as is).
	Rating int `json:"rating"`

	// MissedTerms are trade terms the corrector should have recognised.
	MissedTerms []string `json:"missedTerms,omitempty"`

	// MissedMeasurements are measurements that were spoken but not extracted.
	MissedMeasurements []string `json:"missedMeasurements,omitempty"`

	Comments string `json:"comments,omitempty"`
}

// Validate reports whether f can be stored.
func (f Feedback) Validate() error {
	var errs []error
	if f.CaptureID == "" {
		errs = append(errs, errors.New("captureId is required"))
	}
	if f.Rating < 1 || f.Rating > 5 {
		errs = append(errs, fmt.Errorf("rating %d is outside 1..5", f.Rating))
	}
	return errors.Join(errs...)
}

// Record is a single feedback entry written to the file store.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Feedback
}

// FileStore persists feedback as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Save validates fb and appends it to the file.
func (fs *FileStore) Save(_ context.Context, fb Feedback) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}

	data, err := json.Marshal(Record{Timestamp: fs.now().UTC(), Feedback: fb})
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}

// Records reads every stored entry in the order it was saved. A missing file
// holds no records.
func (fs *FileStore) Records() ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords decodes JSON-lines feedback from r, skipping blank lines.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("feedback: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("feedback: read: %w", err)
	}
	return out, nil
}
