package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/scheduler"
)

const ClearCompletedTaskID = "clear-completed"

// completedRetention is how long terminal transfers stay visible
// before the hourly sweep removes them.
const completedRetention = 24 * time.Hour

// TransferCleaner clears finished downloads from the gateway queue.
type TransferCleaner interface {
	ClearCompleted(ctx context.Context) error
}

// HistoryPruner removes terminal transfer rows older than a cutoff.
type HistoryPruner interface {
	DeleteCompletedTransfers(ctx context.Context, olderThan time.Time) (int64, error)
}

// RegisterClearCompletedTask registers the hourly sweep that clears
// finished downloads from the gateway and prunes old history rows.
func RegisterClearCompletedTask(sched *scheduler.Scheduler, cleaner TransferCleaner, pruner HistoryPruner, logger zerolog.Logger) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ClearCompletedTaskID,
		Name:        "Clear Completed Transfers",
		Description: "Clears finished downloads from the gateway queue and prunes old transfer history",
		Cron:        "0 * * * *",
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			if err := cleaner.ClearCompleted(ctx); err != nil {
				return err
			}
			removed, err := pruner.DeleteCompletedTransfers(ctx, time.Now().UTC().Add(-completedRetention))
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info().Int64("removed", removed).Msg("pruned transfer history")
			}
			return nil
		},
	})
}
