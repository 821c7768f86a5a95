package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drivehub/admin-console/internal/application/command"
	"github.com/drivehub/admin-console/internal/application/query"
	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := s.deps.HealthChecker.Check(ctx)
	if status.Version == "" {
		status.Version = s.config.Version
	}

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	_, rev := s.deps.Store.Snapshot()
	writeJSONWithMeta(w, r, code, status, &ResponseMeta{Revision: rev})
}

// handleReady reports whether every required dependency is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if status := s.deps.HealthChecker.Check(ctx); !status.Ready {
		writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready", "Service is not ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive returns liveness status.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTOR HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// StatsResponse is the dashboard payload.
type StatsResponse struct {
	console.Stats
	UnreadMessages int `json:"unreadMessages"`
}

// handleGetStats returns the dashboard counters.
// GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, StatsResponse{
		Stats:          s.deps.Selectors.Stats(),
		UnreadMessages: s.deps.Selectors.UnreadTotal(),
	})
}

// handleGetSettings returns the platform settings.
// GET /api/v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Selectors.Settings())
}

// handleGetApprovals returns the approval queue.
// GET /api/v1/approvals
func (s *Server) handleGetApprovals(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Selectors.PendingApprovals()
	if items == nil {
		items = []query.ApprovalItem{}
	}
	writeJSONWithMeta(w, r, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// handleListStudents returns a page of students.
// GET /api/v1/students?approval=pending&account=active&search=...&page=1&pageSize=20
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.StudentFilter{
		Approval: shared.ApprovalStatus(q.Get("approval")),
		Account:  shared.AccountStatus(q.Get("account")),
		Search:   q.Get("search"),
	}
	if !validOptional(filter.Approval) || !validOptional(filter.Account) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_filter", "Unknown approval or account status")
		return
	}
	writePage(w, r, query.Paginate(s.deps.Selectors.Students(filter), pagination(r)))
}

// handleGetStudent returns one student.
// GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Selectors.Student(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleListInstructors returns a page of instructors.
// GET /api/v1/instructors?approval=&account=&stripe=&search=&page=&pageSize=
func (s *Server) handleListInstructors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.InstructorFilter{
		Approval: shared.ApprovalStatus(q.Get("approval")),
		Account:  shared.AccountStatus(q.Get("account")),
		Stripe:   instructor.StripeStatus(q.Get("stripe")),
		Search:   q.Get("search"),
	}
	if !validOptional(filter.Approval) || !validOptional(filter.Account) || !validOptional(filter.Stripe) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_filter", "Unknown approval, account or stripe status")
		return
	}
	writePage(w, r, query.Paginate(s.deps.Selectors.Instructors(filter), pagination(r)))
}

// handleGetInstructor returns one instructor.
// GET /api/v1/instructors/{id}
func (s *Server) handleGetInstructor(w http.ResponseWriter, r *http.Request) {
	in, err := s.deps.Selectors.Instructor(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, in)
}

// handleListTransactions returns a page of payout transactions.
// GET /api/v1/transactions?instructorId=&status=&page=&pageSize=
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.TransactionFilter{
		InstructorID: q.Get("instructorId"),
		Status:       payout.Status(q.Get("status")),
	}
	if !validOptional(filter.Status) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_filter", "Unknown transaction status")
		return
	}
	writePage(w, r, query.Paginate(s.deps.Selectors.Transactions(filter), pagination(r)))
}

// handleListConversations returns a page of conversations.
// GET /api/v1/conversations?status=&page=&pageSize=
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	filter := query.ConversationFilter{Status: inbox.Status(r.URL.Query().Get("status"))}
	if !validOptional(filter.Status) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_filter", "Unknown conversation status")
		return
	}
	writePage(w, r, query.Paginate(s.deps.Selectors.Conversations(filter), pagination(r)))
}

// handleListMessages returns the messages of a conversation.
// GET /api/v1/conversations/{id}/messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.deps.Selectors.Messages(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, msgs, &ResponseMeta{TotalCount: len(msgs)})
}

// handleListPackages returns a page of lesson packages.
// GET /api/v1/packages?status=&instructorId=&page=&pageSize=
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.PackageFilter{
		Status:       shared.ApprovalStatus(q.Get("status")),
		InstructorID: q.Get("instructorId"),
	}
	if !validOptional(filter.Status) {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_filter", "Unknown package status")
		return
	}
	writePage(w, r, query.Paginate(s.deps.Selectors.Packages(filter), pagination(r)))
}

// handleGetPackage returns one package.
// GET /api/v1/packages/{id}
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Selectors.Package(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleDispatch decodes an action envelope and dispatches it.
// POST /api/v1/actions
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	action, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	if s.deps.RequireConfirmation && command.RequiresConfirmation(action) {
		writeJSONErrorWithDetails(w, r, http.StatusConflict, "confirmation_required",
			"This action must be proposed as an intent and confirmed", string(action.Type()))
		return
	}
	var guard store.Guard
	if s.deps.EnforcePolicy {
		guard = func(current console.State) error { return s.policy.Evaluate(current, action) }
	}

	res := s.deps.Store.DispatchIf(r.Context(), action, guard)
	if res.Outcome == store.OutcomeRejected {
		s.writeDomainError(w, r, res.Err)
		return
	}
	s.writeResult(w, r, res)
}

// handleProposeIntent registers an intent for the posted action.
// POST /api/v1/intents
func (s *Server) handleProposeIntent(w http.ResponseWriter, r *http.Request) {
	if !s.intentsEnabled(w, r) {
		return
	}
	action, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	intent, err := s.deps.Intents.Propose(r.Context(), action)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, intentView(intent))
}

// handleListIntents returns pending intents.
// GET /api/v1/intents
func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	if !s.intentsEnabled(w, r) {
		return
	}
	pending := s.deps.Intents.Pending()
	out := make([]IntentResponse, 0, len(pending))
	for _, intent := range pending {
		out = append(out, intentView(intent))
	}
	writeJSONWithMeta(w, r, http.StatusOK, out, &ResponseMeta{TotalCount: len(out)})
}

// handleGetIntent returns one pending intent.
// GET /api/v1/intents/{id}
func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	if !s.intentsEnabled(w, r) {
		return
	}
	id, ok := intentID(w, r)
	if !ok {
		return
	}
	intent, found := s.deps.Intents.Get(id)
	if !found {
		s.writeDomainError(w, r, shared.ErrIntentNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, intentView(intent))
}

// handleConfirmIntent dispatches a pending intent.
// POST /api/v1/intents/{id}/confirm
func (s *Server) handleConfirmIntent(w http.ResponseWriter, r *http.Request) {
	if !s.intentsEnabled(w, r) {
		return
	}
	id, ok := intentID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Intents.Confirm(r.Context(), id)
	if err != nil && res.Outcome == "" {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeResult(w, r, res)
}

// handleCancelIntent discards a pending intent.
// DELETE /api/v1/intents/{id}
func (s *Server) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	if !s.intentsEnabled(w, r) {
		return
	}
	id, ok := intentID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Intents.Cancel(id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IntentResponse is the API view of an intent.
type IntentResponse struct {
	command.Intent
	Action console.Envelope `json:"action"`
}

func intentView(i command.Intent) IntentResponse {
	return IntentResponse{Intent: i, Action: console.EnvelopeOf(i.Action)}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) decodeAction(w http.ResponseWriter, r *http.Request) (console.Action, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large")
		return nil, false
	}
	action, err := console.DecodeAction(body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	return action, true
}

func (s *Server) intentsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Intents == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "intents_disabled", "Two-phase commands are disabled")
		return false
	}
	return true
}

func intentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_id", "Intent ID must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeResult maps a dispatch outcome to an HTTP status.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res store.Result) {
	switch res.Outcome {
	case console.OutcomeApplied, console.OutcomeUnchanged:
		writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{Revision: res.Revision})
	case console.OutcomeNotFound:
		writeJSONErrorWithDetails(w, r, http.StatusNotFound, "not_found", errorMessage(res.Err), res.TargetID)
	default:
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_action", errorMessage(res.Err), string(res.Action))
	}
}

// writeDomainError maps domain error kinds to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrIntentExpired):
		writeJSONError(w, r, http.StatusGone, "intent_expired", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsStateConflict(err):
		writeJSONError(w, r, http.StatusConflict, "state_conflict", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, r, http.StatusServiceUnavailable, "request_cancelled", err.Error())
	default:
		s.logger.Error("unhandled error",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "action rejected"
	}
	return err.Error()
}

func writePage[T any](w http.ResponseWriter, r *http.Request, p query.Page[T]) {
	writeJSONWithMeta(w, r, http.StatusOK, p.Items, &ResponseMeta{
		TotalCount: p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		HasMore:    p.Page*p.PageSize < p.Total,
	})
}

func pagination(r *http.Request) shared.Pagination {
	return shared.Pagination{
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "pageSize", shared.DefaultPageSize),
	}
}

type validatable interface {
	~string
	IsValid() bool
}

// validOptional accepts an empty filter value or a known one.
func validOptional[T validatable](v T) bool {
	return v == "" || v.IsValid()
}

// JobStatus is the API view of a background job.
type JobStatus struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Schedule    string     `json:"schedule"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// handleListJobs reports scheduler state.
// GET /api/v1/system/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	out := []JobStatus{}
	if s.deps.Jobs != nil {
		for _, j := range s.deps.Jobs.ListJobs() {
			st := JobStatus{
				Name:        j.Name,
				Description: j.Description,
				Enabled:     j.Enabled,
				Schedule:    j.Schedule,
				NextRun:     j.NextRun,
				RunCount:    j.RunCount,
				FailCount:   j.FailCount,
			}
			if last := j.LastResult; last != nil {
				at := last.StartedAt
				st.LastRunAt = &at
				if last.Error != nil {
					st.LastError = last.Error.Error()
				}
			}
			out = append(out, st)
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// DeadLetter is the API view of a failed event handler run.
type DeadLetter struct {
	Handler     string    `json:"handler"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// handleListDeadLetters lists failed handler runs, newest first.
// GET /api/v1/system/dead-letters
func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	out := []DeadLetter{}
	if s.deps.DeadLetters != nil {
		entries := s.deps.DeadLetters.Entries()
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			dl := DeadLetter{
				Handler:  e.HandlerName,
				Attempts: e.Attempts,
				FailedAt: e.FailedAt,
			}
			if e.Event != nil {
				dl.EventType = string(e.Event.EventType())
				dl.AggregateID = e.Event.AggregateID()
			}
			if e.Error != nil {
				dl.Error = e.Error.Error()
			}
			out = append(out, dl)
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// routeSummary lists the API surface for the index page.
func routeSummary() string {
	return strings.Join([]string{
		"GET  /api/v1/stats",
		"GET  /api/v1/students",
		"GET  /api/v1/instructors",
		"GET  /api/v1/approvals",
		"GET  /api/v1/transactions",
		"GET  /api/v1/conversations",
		"GET  /api/v1/packages",
		"POST /api/v1/actions",
		"POST /api/v1/intents",
		"GET  /api/v1/system/jobs",
		"GET  /api/v1/system/dead-letters",
	}, "\n")
}

// handleIndex serves a plain-text route listing.
// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Route not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "admin console API %s\n\n%s\n", s.config.Version, routeSummary())
}
