package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/application/command"
	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/infrastructure/messaging"
	"github.com/drivehub/admin-console/internal/infrastructure/scheduler"
	"github.com/drivehub/admin-console/internal/interface/http/handlers"
	"github.com/drivehub/admin-console/pkg/logger"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

type harness struct {
	server *Server
	store  *store.Store
	clock  *timeutil.FixedClock
}

func newHarness(t *testing.T, mutate func(*Config, *Dependencies)) *harness {
	t.Helper()
	clock := timeutil.NewFixedClock(consoletest.Now)
	st := store.New(consoletest.State(), store.WithClock(clock))

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	deps := Dependencies{
		Store:   st,
		Intents: command.NewCoordinator(st, command.WithClock(clock), command.WithTTL(time.Minute)),
		Logger:  logger.Nop(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	srv, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return &harness{server: srv, store: st, clock: clock}
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestServer_Stats(t *testing.T) {
	h := newHarness(t, nil)

	rec, env := h.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 4, stats.TotalStudents)
	assert.Equal(t, 3, stats.TotalInstructors)
	assert.Equal(t, 2, stats.UnreadMessages)
}

func TestServer_ListStudentsWithFilterAndPaging(t *testing.T) {
	h := newHarness(t, nil)

	rec, env := h.do(t, http.MethodGet, "/api/v1/students?approval=pending&pageSize=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "S1", items[0]["id"])
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.True(t, env.Meta.HasMore)

	rec, env = h.do(t, http.MethodGet, "/api/v1/students?approval=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_filter", env.Error.Code)
}

func TestServer_GetMissingEntities(t *testing.T) {
	h := newHarness(t, nil)

	for _, path := range []string{
		"/api/v1/students/NOPE",
		"/api/v1/instructors/NOPE",
		"/api/v1/packages/NOPE",
		"/api/v1/conversations/NOPE/messages",
	} {
		rec, env := h.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "not_found", env.Error.Code, path)
	}
}

func TestServer_DispatchOutcomes(t *testing.T) {
	h := newHarness(t, nil)

	rec, env := h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/approve","id":"S1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res store.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "applied", string(res.Outcome))
	assert.Equal(t, uint64(1), env.Meta.Revision)

	rec, env = h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/approve","id":"S1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "unchanged", string(res.Outcome))

	rec, _ = h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/approve","id":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"package/commission","id":"P1","percentage":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_action", env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/teleport","id":"S1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/actions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RequestIDBecomesCorrelationID(t *testing.T) {
	h := newHarness(t, nil)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", strings.NewReader(`{"type":"inbox/read","id":"C1"}`))
	req.Header.Set("X-Request-ID", id.String())
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var res store.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, id, res.CorrelationID)
	assert.Equal(t, id.String(), env.RequestID)
}

func TestServer_RequireConfirmation(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Dependencies) { d.RequireConfirmation = true })

	rec, env := h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/delete","id":"S2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "confirmation_required", env.Error.Code)

	st, _ := h.store.Snapshot()
	_, ok := st.FindStudent("S2")
	assert.True(t, ok)
}

func TestServer_EnforcePolicy(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Dependencies) { d.EnforcePolicy = true })

	// S2 is already approved.
	rec, env := h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"student/approve","id":"S2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "state_conflict", env.Error.Code)
	assert.Equal(t, uint64(0), h.store.Revision())
}

func TestServer_IntentLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	rec, env := h.do(t, http.MethodPost, "/api/v1/intents", `{"type":"payout/transfer","instructorId":"I1","amount":"120"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var intent IntentResponse
	require.NoError(t, json.Unmarshal(env.Data, &intent))
	assert.Equal(t, "Transfer 120.00 USD to Alice Kim", intent.Summary)
	assert.Equal(t, "payout/transfer", string(intent.Action.Type))

	rec, env = h.do(t, http.MethodGet, "/api/v1/intents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/intents/"+intent.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.do(t, http.MethodPost, "/api/v1/intents/"+intent.ID.String()+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res store.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, intent.ID, res.CorrelationID)
	assert.NotEmpty(t, res.CreatedID)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/intents/"+intent.ID.String()+"/confirm", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_IntentExpiredAndCancelled(t *testing.T) {
	h := newHarness(t, nil)

	_, env := h.do(t, http.MethodPost, "/api/v1/intents", `{"type":"student/delete","id":"S4"}`)
	var intent IntentResponse
	require.NoError(t, json.Unmarshal(env.Data, &intent))

	h.clock.Advance(2 * time.Minute)
	rec, env := h.do(t, http.MethodPost, "/api/v1/intents/"+intent.ID.String()+"/confirm", "")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "intent_expired", env.Error.Code)

	_, env = h.do(t, http.MethodPost, "/api/v1/intents", `{"type":"student/delete","id":"S4"}`)
	require.NoError(t, json.Unmarshal(env.Data, &intent))
	rec, _ = h.do(t, http.MethodDelete, "/api/v1/intents/"+intent.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = h.do(t, http.MethodGet, "/api/v1/intents/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", env.Error.Code)
}

func TestServer_IntentsDisabled(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Dependencies) { d.Intents = nil })

	rec, env := h.do(t, http.MethodGet, "/api/v1/intents", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "intents_disabled", env.Error.Code)
}

func TestServer_Health(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("down") })
	h := newHarness(t, func(_ *Config, d *Dependencies) { d.HealthChecker = checker })

	rec, env := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)

	rec, _ = h.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	rec, env = h.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Some checks failed: postgres, redis", env.Error.Details)

	rec, _ = h.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RecoversFromPanics(t *testing.T) {
	h := newHarness(t, nil)
	h.server.router.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec, env := h.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", env.Error.Code)
}

func TestServer_RateLimit(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Dependencies) { c.RateLimitPerMinute = 2 })
	defer h.server.rateLimiter.Stop()

	for i := 0; i < 2; i++ {
		rec, _ := h.do(t, http.MethodGet, "/live", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := h.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
}

func TestServer_RejectsOversizedBody(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Dependencies) { c.MaxBodyBytes = 16 })

	rec, _ := h.do(t, http.MethodPost, "/api/v1/actions", `{"type":"inbox/send","conversationId":"C1","text":"hello there"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type fakeJobs []scheduler.JobInfo

func (f fakeJobs) ListJobs() []scheduler.JobInfo { return f }

func TestListJobs(t *testing.T) {
	next := consoletest.Now.Add(30 * time.Second)
	h := newHarness(t, func(_ *Config, deps *Dependencies) {
		deps.Jobs = fakeJobs{{
			Name:      "expire_intents",
			Enabled:   true,
			Schedule:  "@every 30s",
			NextRun:   next,
			RunCount:  2,
			FailCount: 1,
			LastResult: &scheduler.JobResult{
				JobName:   "expire_intents",
				StartedAt: consoletest.Now,
				Error:     errors.New("boom"),
			},
		}}
	})

	rec, env := h.do(t, http.MethodGet, "/api/v1/system/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []JobStatus
	require.NoError(t, json.Unmarshal(env.Data, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "expire_intents", jobs[0].Name)
	assert.Equal(t, "@every 30s", jobs[0].Schedule)
	assert.Equal(t, int64(2), jobs[0].RunCount)
	assert.Equal(t, "boom", jobs[0].LastError)
	require.NotNil(t, jobs[0].LastRunAt)
	assert.True(t, consoletest.Now.Equal(*jobs[0].LastRunAt))
}

func TestListJobs_WithoutScheduler(t *testing.T) {
	h := newHarness(t, nil)

	rec, env := h.do(t, http.MethodGet, "/api/v1/system/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestListDeadLetters_NewestFirst(t *testing.T) {
	dlq := messaging.NewDeadLetterQueue(5)
	for i, id := range []string{"S1", "S2"} {
		dlq.Add(messaging.DeadLetterEntry{
			Event:       shared.NewActionAppliedEvent(shared.EventStudentApproved, id, "APPROVE_STUDENT", uint64(i+1), consoletest.Now),
			HandlerName: "stats_cache",
			Error:       errors.New("redis down"),
			Attempts:    3,
			FailedAt:    consoletest.Now,
		})
	}
	h := newHarness(t, func(_ *Config, deps *Dependencies) { deps.DeadLetters = dlq })

	rec, env := h.do(t, http.MethodGet, "/api/v1/system/dead-letters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []DeadLetter
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "S2", out[0].AggregateID)
	assert.Equal(t, "student.approved", out[0].EventType)
	assert.Equal(t, "redis down", out[0].Error)
	assert.Equal(t, 3, out[1].Attempts)
}
