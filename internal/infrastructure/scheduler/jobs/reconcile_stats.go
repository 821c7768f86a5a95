// Package jobs contains the console's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

// StateSource exposes a consistent state snapshot with its revision.
type StateSource interface {
	Snapshot() (console.State, uint64)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STATS JOB
// Периодически пересчитывает счётчики дашборда из коллекций и сообщает о
// расхождении. Счётчики не исправляются.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileStatsJob compares stored dashboard stats with recomputed ones.
type ReconcileStatsJob struct {
	source    StateSource
	publisher shared.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	lastRun atomic.Value // ReconcileStatsResult
}

// ReconcileStatsResult describes the last reconciliation.
type ReconcileStatsResult struct {
	Revision uint64
	Drift    []string
	At       time.Time
}

// NewReconcileStatsJob creates the job. publisher may be nil.
func NewReconcileStatsJob(source StateSource, publisher shared.EventPublisher, logger *slog.Logger) *ReconcileStatsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileStatsJob{
		source:    source,
		publisher: publisher,
		logger:    logger.With("job", "reconcile_stats"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name implements scheduler.Job.
func (j *ReconcileStatsJob) Name() string { return "reconcile_stats" }

// Description implements scheduler.Job.
func (j *ReconcileStatsJob) Description() string {
	return "Recomputes dashboard stats and reports drift"
}

// Run implements scheduler.Job.
func (j *ReconcileStatsJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state, rev := j.source.Snapshot()
	drift := console.Drift(console.Recompute(state), state.Stats)
	result := ReconcileStatsResult{Revision: rev, Drift: drift, At: j.now()}
	j.lastRun.Store(result)

	if len(drift) == 0 {
		j.logger.Debug("stats consistent", "revision", rev)
		return nil
	}

	j.logger.Error("stats drift detected", "revision", rev, "fields", drift)
	if j.publisher != nil {
		if err := j.publisher.Publish(shared.NewStatsDriftDetectedEvent(rev, drift, "reconcile", result.At)); err != nil {
			return fmt.Errorf("publish drift at revision %d: %w", rev, err)
		}
	}
	return nil
}

// LastRun returns the result of the most recent run.
func (j *ReconcileStatsJob) LastRun() (ReconcileStatsResult, bool) {
	r, ok := j.lastRun.Load().(ReconcileStatsResult)
	return r, ok
}
