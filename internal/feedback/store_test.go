package feedback_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/sitescope/internal/feedback"
)

func TestFileStore_SaveAndRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	fs := feedback.NewFileStore(path)

	recs, err := fs.Records()
	if err != nil || len(recs) != 0 {
		t.Fatalf("Records on a missing file = %v, %v", recs, err)
	}

	want := []feedback.Feedback{
		{CaptureID: "walk-1", Rating: 4, MissedTerms: []string{"sistering"}},
		{CaptureID: "walk-2", Rating: 2, MissedMeasurements: []string{"eight foot header"}, Comments: "no header"},
	}
	for _, fb := range want {
		if err := fs.Save(context.Background(), fb); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recs, err = fs.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, rec := range recs {
		if rec.CaptureID != want[i].CaptureID || rec.Rating != want[i].Rating {
			t.Errorf("record %d = %+v, want %+v", i, rec.Feedback, want[i])
		}
		if rec.Timestamp.IsZero() {
			t.Errorf("record %d has no timestamp", i)
		}
	}
	if recs[0].MissedTerms[0] != "sistering" || recs[1].Comments != "no header" {
		t.Errorf("details lost: %+v", recs)
	}
}

func TestFileStore_Validation(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	fs := feedback.NewFileStore(path)

	tests := []struct {
		name string
		fb   feedback.Feedback
	}{
		{name: "no capture", fb: feedback.Feedback{Rating: 3}},
		{name: "rating too low", fb: feedback.Feedback{CaptureID: "a", Rating: 0}},
		{name: "rating too high", fb: feedback.Feedback{CaptureID: "a", Rating: 6}},
	}
	for _, tt := range tests {
		if err := fs.Save(context.Background(), tt.fb); err == nil {
			t.Errorf("%s: Save succeeded", tt.name)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rejected feedback created the file: %v", err)
	}
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()
	fs := feedback.NewFileStore(filepath.Join(t.TempDir(), "feedback.jsonl"))

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.Save(context.Background(), feedback.Feedback{CaptureID: "c", Rating: 5}); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	recs, err := fs.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != n {
		t.Errorf("got %d records, want %d", len(recs), n)
	}
}

func TestReadRecords(t *testing.T) {
	t.Parallel()
	in := `{"timestamp":"2026-03-01T10:00:00Z","captureId":"a","rating":3}

{"timestamp":"2026-03-01T11:00:00Z","captureId":"b","rating":5}
`
	recs, err := feedback.ReadRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 2 || recs[1].CaptureID != "b" {
		t.Errorf("records = %+v", recs)
	}

	_, err = feedback.ReadRecords(strings.NewReader("{\"captureId\":\"a\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want a line 2 error", err)
	}
}
