package notify

import (
	"context"

	"bcchrates-service/internal/application"

	"go.uber.org/zap"
)

var _ application.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run outcomes to the structured log.
type LogNotifier struct{ Log *zap.Logger }

func (n *LogNotifier) NotifySuccess(_ context.Context, r application.SuccessReport) error {
	n.Log.Info("sync.run_succeeded",
		zap.String("run_id", r.RunID),
		zap.Int("attempts", r.Attempts),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int("total_processed", r.Stats.TotalProcessed),
		zap.Int("inserted", r.Stats.Inserted),
		zap.Int("updated", r.Stats.Updated),
		zap.Int("errors", r.Stats.Errors),
		zap.Int("indirect_conversions", r.Stats.IndirectConversions),
		zap.Int("aggregates_created", r.Monthly.RecordsCreated),
		zap.Int("aggregates_updated", r.Monthly.RecordsUpdated),
	)
	return nil
}

func (n *LogNotifier) NotifyFailure(_ context.Context, r application.FailureReport) error {
	n.Log.Error("sync.run_failed",
		zap.String("run_id", r.RunID),
		zap.String("context", r.Context),
		zap.Int("attempts", r.Attempts),
		zap.Duration("elapsed", r.Elapsed),
		zap.Error(r.Err),
	)
	return nil
}
