package grader

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"raggrader/internal/result"
)

// GradeBatch grades refs through a bounded pool of concurrent pipelines and
// returns one result per ref, in input order regardless of completion
// order. A non-positive concurrency falls back to the configured
// max_concurrency. When batch_timeout_seconds is set, submissions still
// queued at the deadline come back Cancelled and in-flight sandboxes have
// the cancellation propagated into them; completed results are unaffected.
func (e *Engine) GradeBatch(ctx context.Context, refs []string, concurrency int) []result.GradingResult {
	if concurrency <= 0 {
		concurrency = e.cfg.MaxConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if e.cfg.BatchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.BatchTimeoutSeconds)*time.Second)
		defer cancel()
	}

	results := make([]result.GradingResult, len(refs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			// gradeOne never returns an error: every failure mode is
			// folded into the slot's result.
			results[i] = e.gradeOne(ctx, i, ref)
			return nil
		})
	}
	g.Wait()
	return results
}
