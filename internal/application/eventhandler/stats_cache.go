package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/circuitbreaker"
	"github.com/drivehub/admin-console/pkg/retry"
)

// StatsWriter stores the latest dashboard counters for external readers.
type StatsWriter interface {
	WriteStats(ctx context.Context, stats console.Stats, revision uint64) error
}

// ═══════════════════════════════════════════════════════════════════════════
// STATS CACHE HANDLER
// Публикует снимок счётчиков в Redis для внешних дашбордов. Запись идёт
// через circuit breaker: пока Redis недоступен, событие пропускается без
// повторных попыток, а следующее событие запишет свежий снимок.
// ═══════════════════════════════════════════════════════════════════════════

// StatsCacheHandler mirrors dashboard stats into a cache.
type StatsCacheHandler struct {
	source  StateSource
	writer  StatsWriter
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewStatsCacheHandler создаёт обработчик. breaker может быть nil.
func NewStatsCacheHandler(source StateSource, writer StatsWriter, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *StatsCacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuitbreaker.New("stats-cache")
	}
	return &StatsCacheHandler{
		source:  source,
		writer:  writer,
		breaker: breaker,
		timeout: 2 * time.Second,
		logger:  logger.With("handler", "stats_cache"),
	}
}

// Handle реализует shared.EventHandler.
func (h *StatsCacheHandler) Handle(event shared.Event) error {
	state, rev := h.source.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.writer.WriteStats(ctx, state.Stats, rev)
	})
	switch {
	case err == nil:
		h.logger.Debug("stats snapshot cached", "revision", rev, "trigger", event.EventType())
		return nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		h.logger.Warn("stats cache skipped, circuit open", "revision", rev)
		return retry.Permanent(err)
	default:
		return fmt.Errorf("cache stats at revision %d: %w", rev, err)
	}
}
