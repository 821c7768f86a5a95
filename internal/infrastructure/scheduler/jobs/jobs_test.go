package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

type staticSource struct {
	state console.State
	rev   uint64
}

func (s staticSource) Snapshot() (console.State, uint64) { return s.state, s.rev }

type recorder struct {
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.events = append(r.events, e)
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcileStatsJob_Consistent(t *testing.T) {
	pub := &recorder{}
	job := NewReconcileStatsJob(staticSource{state: consoletest.State(), rev: 3}, pub, quiet())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pub.events)

	last, ok := job.LastRun()
	require.True(t, ok)
	assert.Equal(t, uint64(3), last.Revision)
	assert.Empty(t, last.Drift)
	assert.Equal(t, "reconcile_stats", job.Name())
}

func TestReconcileStatsJob_PublishesDrift(t *testing.T) {
	state := consoletest.State()
	state.Stats.TotalStudents += 2
	state.Stats.PendingApprovals = 0

	pub := &recorder{}
	job := NewReconcileStatsJob(staticSource{state: state, rev: 9}, pub, quiet())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, pub.events, 1)
	drift, ok := pub.events[0].(shared.StatsDriftDetectedEvent)
	require.True(t, ok)
	assert.Equal(t, "reconcile", drift.Source)
	assert.Equal(t, uint64(9), drift.Revision)
	assert.ElementsMatch(t, []string{"totalStudents", "pendingApprovals"}, drift.Fields)
}

func TestReconcileStatsJob_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := NewReconcileStatsJob(staticSource{state: consoletest.State()}, nil, quiet())
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	_, ok := job.LastRun()
	assert.False(t, ok)
}

type expirer struct {
	calls []time.Time
	n     int
}

func (e *expirer) ExpireBefore(now time.Time) int {
	e.calls = append(e.calls, now)
	return e.n
}

func TestExpireIntentsJob(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	intents := &expirer{n: 2}
	job := NewExpireIntentsJob(intents, timeutil.NewFixedClock(at), quiet())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []time.Time{at}, intents.calls)
	assert.Equal(t, "expire_intents", job.Name())
}
