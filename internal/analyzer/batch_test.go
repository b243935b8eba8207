package analyzer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

func captures(texts ...string) []analyzer.Capture {
	out := make([]analyzer.Capture, len(texts))
	for i, text := range texts {
		out[i] = analyzer.Capture{
			ID:         fmt.Sprintf("walk-%d", i+1),
			Transcript: stt.Transcript{Text: text},
		}
	}
	return out
}

func TestAnalyzeBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t, analyzer.WithConcurrency(3))

	in := captures(
		spoken,
		"Paint the hallway, 2 coats over 400 square feet.",
		"Replace 6 outlets in the kitchen.",
		"Pour a 10 by 12 foot slab, 4 inches deep.",
		"Tile the bathroom floor, about 60 square feet.",
	)
	items, err := a.AnalyzeBatch(context.Background(), in)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(items) != len(in) {
		t.Fatalf("got %d items, want %d", len(items), len(in))
	}
	for i, it := range items {
		if it.Err != nil {
			t.Errorf("item %d: unexpected error %v", i, it.Err)
			continue
		}
		if it.Result.ID != in[i].ID {
			t.Errorf("item %d ID = %q, want %q", i, it.Result.ID, in[i].ID)
		}
		if it.Result.Narration != in[i].Transcript.Text {
			t.Errorf("item %d narration out of order", i)
		}
	}
}

func TestAnalyzeBatch_RejectedCaptureDoesNotAbort(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t, analyzer.WithConcurrency(1))

	items, err := a.AnalyzeBatch(context.Background(), captures(spoken, "\xff\xfe", "Replace 6 outlets."))
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if items[0].Err != nil || items[0].Result == nil {
		t.Errorf("item 0 = %+v, want a result", items[0])
	}
	if !errors.Is(items[1].Err, analyzer.ErrInvalidNarration) || items[1].Result != nil {
		t.Errorf("item 1 = %+v, want ErrInvalidNarration", items[1])
	}
	if items[2].Err != nil || items[2].Result == nil {
		t.Errorf("item 2 = %+v, want a result", items[2])
	}
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t, analyzer.WithConcurrency(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items, err := a.AnalyzeBatch(ctx, captures(spoken, spoken, spoken))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for i, it := range items {
		if !errors.Is(it.Err, context.Canceled) {
			t.Errorf("item %d err = %v, want context.Canceled", i, it.Err)
		}
	}
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	items, err := a.AnalyzeBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}
