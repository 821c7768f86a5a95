package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/drivehub/admin-console/pkg/timeutil"
)

// IntentExpirer drops pending intents whose TTL has passed.
type IntentExpirer interface {
	ExpireBefore(now time.Time) int
}

// ExpireIntentsJob sweeps unconfirmed two-phase command intents.
type ExpireIntentsJob struct {
	intents IntentExpirer
	clock   timeutil.Clock
	logger  *slog.Logger
}

// NewExpireIntentsJob creates the job. A nil clock uses the system clock.
func NewExpireIntentsJob(intents IntentExpirer, clock timeutil.Clock, logger *slog.Logger) *ExpireIntentsJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireIntentsJob{intents: intents, clock: clock, logger: logger.With("job", "expire_intents")}
}

// Name implements scheduler.Job.
func (j *ExpireIntentsJob) Name() string { return "expire_intents" }

// Description implements scheduler.Job.
func (j *ExpireIntentsJob) Description() string {
	return "Drops command intents that were not confirmed in time"
}

// Run implements scheduler.Job.
func (j *ExpireIntentsJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.intents.ExpireBefore(j.clock.Now()); n > 0 {
		j.logger.Info("expired intents dropped", "count", n)
	}
	return nil
}
