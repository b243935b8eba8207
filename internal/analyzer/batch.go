package analyzer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sitescope/internal/observe"
)

// BatchItem is the outcome of one capture in a batch. Exactly one of Result
// and Err is set.
type BatchItem struct {
	Result *Result
	Err    error
}

// AnalyzeBatch analyses captures concurrently, at most the configured
// concurrency at a time. Items are returned in input order.
//
// A rejected capture does not stop the others; its error is reported on its
// [BatchItem]. The returned error is non-nil only when ctx is cancelled, in
// which case captures that had not started carry the context error.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, captures []Capture) ([]BatchItem, error) {
	ctx, span := observe.StartSpan(ctx, "analyzer.batch")
	defer span.End()

	items := make([]BatchItem, len(captures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, c := range captures {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			res, err := a.AnalyzeCapture(gctx, c)
			if err != nil {
				items[i].Err = fmt.Errorf("capture %d: %w", i, err)
				// Only cancellation aborts the batch.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return nil
			}
			items[i].Result = res
			return nil
		})
	}

	err := g.Wait()
	observe.RecordError(ctx, err)
	observe.Logger(ctx).Debug("batch analysed", "captures", len(captures), "err", err)
	return items, err
}
