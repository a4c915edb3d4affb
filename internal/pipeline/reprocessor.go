package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tranquileza/leadflow/internal/model"
)

// Reprocessor re-drives stored NEW/FAILED events through the pipeline with
// bounded concurrency. It is safe alongside live webhook traffic: attempt
// accounting and the dedupe constraints prevent double-processing.
type Reprocessor struct {
	gateway     *Gateway
	events      EventStore
	maxAttempts int
	concurrency int
}

func NewReprocessor(gateway *Gateway, events EventStore, maxAttempts, concurrency int) *Reprocessor {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reprocessor{
		gateway:     gateway,
		events:      events,
		maxAttempts: maxAttempts,
		concurrency: concurrency,
	}
}

// ReprocessResult summarizes one batch run.
type ReprocessResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Checked   int `json:"checked"`
}

// Run selects up to limit reprocessable events and re-drives each one. An
// event that fails at the attempt ceiling is marked permanently failed and
// never selected again.
func (r *Reprocessor) Run(ctx context.Context, limit int) (ReprocessResult, error) {
	events, err := r.events.SelectReprocessable(ctx, r.maxAttempts, limit)
	if err != nil {
		return ReprocessResult{}, eris.Wrap(err, "reprocess: select batch")
	}

	var processed, failed atomic.Int64
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(r.concurrency)

	for i := range events {
		ev := events[i]
		grp.Go(func() error {
			if r.reprocessOne(grpCtx, &ev) {
				processed.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = grp.Wait()

	result := ReprocessResult{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Checked:   len(events),
	}
	zap.L().Info("reprocess batch done",
		zap.Int("checked", result.Checked),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (r *Reprocessor) reprocessOne(ctx context.Context, ev *model.RawEvent) bool {
	attempts, err := r.events.IncrementAttempt(ctx, ev.ID)
	if err != nil {
		zap.L().Error("reprocess: increment attempt failed",
			zap.String("event_id", ev.ID), zap.Error(err))
		return false
	}

	lead, procErr := r.gateway.ProcessEvent(ctx, ev)
	r.gateway.finishEvent(ctx, ev, lead, procErr)
	if procErr == nil {
		return true
	}

	if attempts >= r.maxAttempts {
		if err := r.events.MarkPermanentFailed(ctx, ev.ID); err != nil {
			zap.L().Error("reprocess: mark permanent failed",
				zap.String("event_id", ev.ID), zap.Error(err))
		} else {
			zap.L().Warn("event exhausted retry budget",
				zap.String("event_id", ev.ID),
				zap.Int("attempts", attempts))
		}
	}
	return false
}
