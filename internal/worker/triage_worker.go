package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/service"
)

// BatchAssigner runs one assignment pass over pending tickets.
type BatchAssigner interface {
	BatchAutoAssign(ctx context.Context, now time.Time) ([]service.AssignmentResult, error)
}

// TriageWorker periodically assigns pending tickets.
type TriageWorker struct {
	assigner BatchAssigner
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTriageWorker builds a worker. A non-positive interval disables it.
func NewTriageWorker(assigner BatchAssigner, interval time.Duration, logger *zap.Logger) *TriageWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageWorker{
		assigner: assigner,
		interval: interval,
		logger:   logger.Named("triage_worker"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, running a pass on every tick.
func (w *TriageWorker) Run(ctx context.Context) {
	if w == nil || w.assigner == nil || w.interval <= 0 {
		return
	}
	w.logger.Info("triage worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("triage worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *TriageWorker) runOnce(ctx context.Context) {
	results, err := w.assigner.BatchAutoAssign(ctx, w.now())
	if err != nil {
		w.logger.Error("batch assignment failed", zap.Error(err))
		return
	}
	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	if len(results) > 0 {
		w.logger.Info("batch assignment pass",
			zap.Int("processed", len(results)),
			zap.Int("failed", failed),
		)
	}
}
