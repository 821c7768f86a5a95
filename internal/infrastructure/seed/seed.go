// Package seed loads the initial console state. A seed can come from the
// built-in demo marketplace, a JSON file or the Postgres seed tables; every
// seed passes through Normalize before the store sees it.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
	"github.com/drivehub/admin-console/pkg/retry"
)

// Source produces a raw console state.
type Source interface {
	Name() string
	Load(ctx context.Context) (console.State, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN
// ══════════════════════════════════════════════════════════════════════════════

// BuiltinSource serves the demo marketplace anchored at a reference time.
type BuiltinSource struct {
	Now time.Time
}

// Name implements Source.
func (BuiltinSource) Name() string { return "builtin" }

// Load implements Source.
func (b BuiltinSource) Load(context.Context) (console.State, error) {
	now := b.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Demo(now), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE
// ══════════════════════════════════════════════════════════════════════════════

// FileSource reads a JSON seed document from disk.
type FileSource struct {
	Path string
}

// Name implements Source.
func (f FileSource) Name() string { return "file:" + f.Path }

// Load implements Source.
func (f FileSource) Load(context.Context) (console.State, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return console.State{}, shared.WrapError("seed", "Load", shared.ErrServiceUnavailable,
			"cannot read seed file", err)
	}
	doc, err := decode(data)
	if err != nil {
		return console.State{}, shared.WrapError("seed", "Load", shared.ErrInvalidFormat,
			"seed file is not valid JSON", err)
	}
	return doc.ToState()
}

// ══════════════════════════════════════════════════════════════════════════════
// READERS (Postgres and other repositories)
// ══════════════════════════════════════════════════════════════════════════════

// Readers groups the per-entity read contracts of the domain.
type Readers struct {
	Students      student.Reader
	Instructors   instructor.Reader
	Transactions  payout.Reader
	Conversations inbox.Reader
	Packages      catalog.Reader
	Settings      settings.Reader
	// Revenue is optional; without it MonthlyRevenue stays zero.
	Revenue RevenueReader
}

// RevenueReader reads the recorded revenue of the month containing at.
type RevenueReader interface {
	MonthlyRevenue(ctx context.Context, at time.Time) (decimal.Decimal, error)
}

// ReaderSource assembles a state from domain readers. Each read is retried
// with the database preset; a repository returning shared.ErrNotFound for
// settings falls back to defaults.
type ReaderSource struct {
	name    string
	readers Readers
	retrier *retry.Retrier
	now     func() time.Time
}

// NewReaderSource creates a source over readers.
func NewReaderSource(name string, readers Readers) *ReaderSource {
	return &ReaderSource{name: name, readers: readers, retrier: retry.DatabaseRetrier(), now: time.Now}
}

// Name implements Source.
func (r *ReaderSource) Name() string { return r.name }

// Load implements Source.
func (r *ReaderSource) Load(ctx context.Context) (console.State, error) {
	var (
		s   console.State
		err error
	)
	if s.Students, err = readAll(ctx, r.retrier, "students", r.readers.Students.ListStudents); err != nil {
		return console.State{}, err
	}
	if s.Instructors, err = readAll(ctx, r.retrier, "instructors", r.readers.Instructors.ListInstructors); err != nil {
		return console.State{}, err
	}
	if s.Transactions, err = readAll(ctx, r.retrier, "transactions", r.readers.Transactions.ListTransactions); err != nil {
		return console.State{}, err
	}
	if s.Conversations, err = readAll(ctx, r.retrier, "conversations", r.readers.Conversations.ListConversations); err != nil {
		return console.State{}, err
	}
	if s.Messages, err = readAll(ctx, r.retrier, "messages", r.readers.Conversations.ListMessages); err != nil {
		return console.State{}, err
	}
	if s.Packages, err = readAll(ctx, r.retrier, "packages", r.readers.Packages.ListPackages); err != nil {
		return console.State{}, err
	}

	err = r.retrier.Do(ctx, func(ctx context.Context) error {
		loaded, err := r.readers.Settings.LoadSettings(ctx)
		if shared.IsNotFound(err) {
			return retry.Permanent(err)
		}
		s.Settings = loaded
		return err
	})
	switch {
	case shared.IsNotFound(err):
		s.Settings = settings.Defaults()
	case err != nil:
		return console.State{}, fmt.Errorf("load settings: %w", err)
	}

	if r.readers.Revenue != nil {
		err = r.retrier.Do(ctx, func(ctx context.Context) error {
			amount, err := r.readers.Revenue.MonthlyRevenue(ctx, r.now().UTC())
			s.Stats.MonthlyRevenue = amount
			return err
		})
		if err != nil {
			return console.State{}, fmt.Errorf("load monthly revenue: %w", err)
		}
	}
	// Таблицы хранят только сущности, поэтому счётчики всегда выводятся.
	s.Stats = console.Recompute(s)
	return s, nil
}

func readAll[T any](ctx context.Context, r *retry.Retrier, what string, list func(context.Context) ([]T, error)) ([]T, error) {
	out, err := retry.Value(ctx, r, list)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", what, err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZATION
// ══════════════════════════════════════════════════════════════════════════════

// Options control normalization.
type Options struct {
	// RecomputeStats replaces seeded counters with values derived from the
	// collections. MonthlyRevenue is always kept.
	RecomputeStats bool
}

// Normalize makes a raw seed safe to dispatch against: nil collections
// become empty, sequence counters move past every ID already on file and,
// when requested, stats are recomputed.
func Normalize(s console.State, opts Options) console.State {
	out := s.Clone()

	if out.Settings == (settings.Settings{}) {
		out.Settings = settings.Defaults()
	}
	for i := range out.Students {
		if out.Students[i].Lessons == nil {
			out.Students[i].Lessons = []student.Lesson{}
		}
	}
	for i := range out.Instructors {
		if out.Instructors[i].Documents == nil {
			out.Instructors[i].Documents = []instructor.DocumentItem{}
		}
	}

	out.Seq.Transaction = maxSequence(out.Seq.Transaction, payout.IDPrefix, transactionIDs(out.Transactions))
	out.Seq.Message = maxSequence(out.Seq.Message, inbox.MessageIDPrefix, messageIDs(out.Messages))

	if opts.RecomputeStats {
		out.Stats = console.Recompute(out)
	}
	return out
}

// Load reads src and normalizes the result.
func Load(ctx context.Context, src Source, opts Options, logger *slog.Logger) (console.State, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	raw, err := src.Load(ctx)
	if err != nil {
		return console.State{}, shared.WrapError("seed", "Load", shared.ErrServiceUnavailable,
			fmt.Sprintf("seed source %s failed", src.Name()), err)
	}
	state := Normalize(raw, opts)

	if drift := console.Drift(console.Recompute(state), state.Stats); len(drift) > 0 {
		logger.Warn("seeded stats disagree with entities", "source", src.Name(), "fields", drift)
	}
	logger.Info("seed loaded",
		"source", src.Name(),
		"students", len(state.Students),
		"instructors", len(state.Instructors),
		"transactions", len(state.Transactions),
		"conversations", len(state.Conversations),
		"packages", len(state.Packages),
		"duration", time.Since(start),
	)
	return state, nil
}

func transactionIDs(ts []payout.Transaction) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func messageIDs(ms []inbox.ChatMessage) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

// maxSequence returns the highest number among "<prefix>-NNNN" IDs, or last
// when it is already higher.
func maxSequence(last int, prefix string, ids []string) int {
	for _, id := range ids {
		rest, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > last {
			last = n
		}
	}
	return last
}
