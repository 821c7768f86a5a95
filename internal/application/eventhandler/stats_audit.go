// Package eventhandler содержит обработчики доменных событий консоли.
// Обработчики реагируют на уже применённые действия и никогда не меняют
// состояние: их задача - побочные эффекты (проверки, кеши, журналы).
package eventhandler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

// StateSource supplies the current state and its revision.
type StateSource interface {
	Snapshot() (console.State, uint64)
}

// ═══════════════════════════════════════════════════════════════════════════
// STATS AUDIT HANDLER
// После каждого применённого действия пересчитывает счётчики с нуля и
// сравнивает с инкрементальными. Расхождение означает ошибку в проекторе,
// поэтому оно логируется и публикуется как StatsDriftDetectedEvent.
// ═══════════════════════════════════════════════════════════════════════════

// StatsAuditHandler checks incrementally maintained stats against a full recomputation.
type StatsAuditHandler struct {
	source    StateSource
	publisher shared.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	lastAudited uint64
	drifts      int
}

// NewStatsAuditHandler создаёт обработчик аудита счётчиков.
func NewStatsAuditHandler(source StateSource, publisher shared.EventPublisher, logger *slog.Logger) *StatsAuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsAuditHandler{
		source:    source,
		publisher: publisher,
		logger:    logger.With("handler", "stats_audit"),
		now:       time.Now,
	}
}

// Handle реализует shared.EventHandler.
func (h *StatsAuditHandler) Handle(event shared.Event) error {
	state, rev := h.source.Snapshot()

	h.mu.Lock()
	if rev != 0 && rev <= h.lastAudited {
		// несколько событий подряд: этот снимок уже проверен
		h.mu.Unlock()
		return nil
	}
	h.lastAudited = rev
	h.mu.Unlock()

	fields := console.Drift(console.Recompute(state), state.Stats)
	if len(fields) == 0 {
		return nil
	}

	h.mu.Lock()
	h.drifts++
	h.mu.Unlock()

	h.logger.Error("dashboard stats drifted from entities",
		"revision", rev,
		"fields", fields,
		"trigger", event.EventType(),
		"aggregate_id", event.AggregateID(),
	)

	if h.publisher == nil {
		return nil
	}
	return h.publisher.Publish(shared.NewStatsDriftDetectedEvent(rev, fields, "audit", h.now().UTC()))
}

// Drifts returns how many audits found a mismatch.
func (h *StatsAuditHandler) Drifts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drifts
}
