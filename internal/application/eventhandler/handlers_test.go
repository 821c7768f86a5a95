package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/circuitbreaker"
	"github.com/drivehub/admin-console/pkg/retry"
)

type fixedSource struct {
	state console.State
	rev   uint64
}

func (f *fixedSource) Snapshot() (console.State, uint64) { return f.state, f.rev }

type sink struct {
	mu     sync.Mutex
	events []shared.Event
}

func (s *sink) Publish(e shared.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

type fakeWriter struct {
	calls int
	err   error
	last  console.Stats
	rev   uint64
}

func (w *fakeWriter) WriteStats(_ context.Context, stats console.Stats, rev uint64) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.last, w.rev = stats, rev
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appliedEvent(rev uint64) shared.Event {
	return shared.NewActionAppliedEvent(shared.EventStudentApproved, "S1", "student/approve", rev, consoletest.Now)
}

func TestStatsAuditHandler_NoDrift(t *testing.T) {
	out := &sink{}
	h := NewStatsAuditHandler(&fixedSource{state: consoletest.State(), rev: 1}, out, quietLogger())

	require.NoError(t, h.Handle(appliedEvent(1)))
	assert.Zero(t, h.Drifts())
	assert.Empty(t, out.events)
}

func TestStatsAuditHandler_ReportsDrift(t *testing.T) {
	state := consoletest.State()
	state.Stats.PendingApprovals = 7
	state.Stats.PendingPayouts = decimal.NewFromInt(1)

	out := &sink{}
	src := &fixedSource{state: state, rev: 4}
	h := NewStatsAuditHandler(src, out, quietLogger())
	h.now = func() time.Time { return consoletest.Now }

	require.NoError(t, h.Handle(appliedEvent(4)))
	assert.Equal(t, 1, h.Drifts())
	require.Len(t, out.events, 1)

	ev := out.events[0]
	assert.Equal(t, shared.EventStatsDriftDetected, ev.EventType())
	assert.Equal(t, uint64(4), ev.Payload()["revision"])
	assert.ElementsMatch(t, []string{"pendingApprovals", "pendingPayouts"}, ev.Payload()["fields"])

	// тот же снимок повторно не проверяется
	require.NoError(t, h.Handle(appliedEvent(4)))
	assert.Equal(t, 1, h.Drifts())
}

func TestStatsCacheHandler_WritesSnapshot(t *testing.T) {
	w := &fakeWriter{}
	src := &fixedSource{state: consoletest.State(), rev: 9}
	h := NewStatsCacheHandler(src, w, nil, quietLogger())

	require.NoError(t, h.Handle(appliedEvent(9)))
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, uint64(9), w.rev)
	assert.Equal(t, 4, w.last.TotalStudents)
}

func TestStatsCacheHandler_OpenCircuitIsPermanent(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection refused")}
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithTimeout(time.Hour))
	h := NewStatsCacheHandler(&fixedSource{state: consoletest.State(), rev: 1}, w, breaker, quietLogger())

	for i := 0; i < 2; i++ {
		err := h.Handle(appliedEvent(1))
		require.Error(t, err)
		assert.False(t, retry.IsPermanent(err))
	}

	err := h.Handle(appliedEvent(1))
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, w.calls, "open circuit skips the writer")
}
