package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED REPOSITORY
// Реализует Reader-интерфейсы всех доменных пакетов. Порядок строк
// задаётся колонкой position, чтобы коллекции сохраняли порядок вставки.
// ══════════════════════════════════════════════════════════════════════════════

// SeedRepository reads and imports console seed data.
type SeedRepository struct {
	conn *Connection
}

// NewSeedRepository creates a new SeedRepository.
func NewSeedRepository(conn *Connection) *SeedRepository {
	return &SeedRepository{conn: conn}
}

var (
	_ student.Reader    = (*SeedRepository)(nil)
	_ instructor.Reader = (*SeedRepository)(nil)
	_ payout.Reader     = (*SeedRepository)(nil)
	_ inbox.Reader      = (*SeedRepository)(nil)
	_ catalog.Reader    = (*SeedRepository)(nil)
	_ settings.Reader   = (*SeedRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

// ListStudents returns all students with their lessons.
func (r *SeedRepository) ListStudents(ctx context.Context) ([]student.Student, error) {
	lessons, err := r.lessonsByStudent(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, name, email, phone, city, approval_status, account_status,
			   lessons_completed, upcoming_lessons, instructor_id, joined_at
		FROM students
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := make([]student.Student, 0)
	for rows.Next() {
		var s student.Student
		var approval, account string
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.City, &approval, &account,
			&s.LessonsCompleted, &s.UpcomingLessons, &s.InstructorID, &s.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		s.ApprovalStatus = shared.ApprovalStatus(approval)
		s.AccountStatus = shared.AccountStatus(account)
		s.JoinedAt = s.JoinedAt.UTC()
		s.Lessons = lessons[s.ID]
		if s.Lessons == nil {
			s.Lessons = []student.Lesson{}
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *SeedRepository) lessonsByStudent(ctx context.Context) (map[string][]student.Lesson, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, id, date, topic, instructor_id, status
		FROM lessons
		ORDER BY student_id, date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]student.Lesson)
	for rows.Next() {
		var studentID, status string
		var l student.Lesson
		if err := rows.Scan(&studentID, &l.ID, &l.Date, &l.Topic, &l.InstructorID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.Date = l.Date.UTC()
		l.Status = student.LessonStatus(status)
		out[studentID] = append(out[studentID], l)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Instructors
// ─────────────────────────────────────────────────────────────────────────────

// ListInstructors returns all instructors with their documents.
func (r *SeedRepository) ListInstructors(ctx context.Context) ([]instructor.Instructor, error) {
	docs, err := r.documentsByInstructor(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, name, email, phone, city, approval_status, account_status, rating::float8,
			   total_students, earnings_total::text, pending_payment::text, stripe_status, joined_at
		FROM instructors
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructors: %w", err)
	}
	defer rows.Close()

	instructors := make([]instructor.Instructor, 0)
	for rows.Next() {
		var in instructor.Instructor
		var approval, account, earnings, pending, stripe string
		if err := rows.Scan(&in.ID, &in.Name, &in.Email, &in.Phone, &in.City, &approval, &account, &in.Rating,
			&in.TotalStudents, &earnings, &pending, &stripe, &in.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instructor: %w", err)
		}
		if in.EarningsTotal, err = decimal.NewFromString(earnings); err != nil {
			return nil, fmt.Errorf("instructor %s earnings: %w", in.ID, err)
		}
		if in.PendingPayment, err = decimal.NewFromString(pending); err != nil {
			return nil, fmt.Errorf("instructor %s pending payment: %w", in.ID, err)
		}
		in.ApprovalStatus = shared.ApprovalStatus(approval)
		in.AccountStatus = shared.AccountStatus(account)
		in.StripeStatus = instructor.StripeStatus(stripe)
		in.JoinedAt = in.JoinedAt.UTC()
		in.Documents = docs[in.ID]
		if in.Documents == nil {
			in.Documents = []instructor.DocumentItem{}
		}
		instructors = append(instructors, in)
	}
	return instructors, rows.Err()
}

func (r *SeedRepository) documentsByInstructor(ctx context.Context) (map[string][]instructor.DocumentItem, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT instructor_id, id, name, status, uploaded_at
		FROM instructor_documents
		ORDER BY instructor_id, uploaded_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]instructor.DocumentItem)
	for rows.Next() {
		var instructorID, status string
		var d instructor.DocumentItem
		if err := rows.Scan(&instructorID, &d.ID, &d.Name, &status, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Status = instructor.DocumentStatus(status)
		d.UploadedAt = d.UploadedAt.UTC()
		out[instructorID] = append(out[instructorID], d)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Payouts
// ─────────────────────────────────────────────────────────────────────────────

// ListTransactions returns the payout history in insertion order.
func (r *SeedRepository) ListTransactions(ctx context.Context) ([]payout.Transaction, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, instructor_id, instructor_name, amount::text, date, status, method, description
		FROM transactions
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]payout.Transaction, 0)
	for rows.Next() {
		var t payout.Transaction
		var amount, status string
		if err := rows.Scan(&t.ID, &t.InstructorID, &t.InstructorName, &amount, &t.Date, &status,
			&t.Method, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		t.Status = payout.Status(status)
		t.Date = t.Date.UTC()
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbox
// ─────────────────────────────────────────────────────────────────────────────

// ListConversations returns all conversations in insertion order.
func (r *SeedRepository) ListConversations(ctx context.Context) ([]inbox.Conversation, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, instructor_id, instructor_name, status, unread_count, last_message, last_message_at
		FROM conversations
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]inbox.Conversation, 0)
	for rows.Next() {
		var c inbox.Conversation
		var status string
		if err := rows.Scan(&c.ID, &c.InstructorID, &c.InstructorName, &status, &c.UnreadCount,
			&c.LastMessage, &c.LastMessageAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.Status = inbox.Status(status)
		c.LastMessageAt = c.LastMessageAt.UTC()
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// ListMessages returns all chat messages in insertion order.
func (r *SeedRepository) ListMessages(ctx context.Context) ([]inbox.ChatMessage, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, conversation_id, sender_type, text, sent_at, seen
		FROM chat_messages
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]inbox.ChatMessage, 0)
	for rows.Next() {
		var m inbox.ChatMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.ConversationID, &sender, &m.Text, &m.SentAt, &m.Seen); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SenderType = inbox.SenderType(sender)
		m.SentAt = m.SentAt.UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog & settings
// ─────────────────────────────────────────────────────────────────────────────

// ListPackages returns all lesson packages in insertion order.
func (r *SeedRepository) ListPackages(ctx context.Context) ([]catalog.Package, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, instructor_id, instructor_name, title, description, lessons, price::text,
			   commission_percentage, status, created_at
		FROM packages
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	pkgs := make([]catalog.Package, 0)
	for rows.Next() {
		var p catalog.Package
		var price, status string
		if err := rows.Scan(&p.ID, &p.InstructorID, &p.InstructorName, &p.Title, &p.Description, &p.Lessons,
			&price, &p.CommissionPercentage, &status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("package %s price: %w", p.ID, err)
		}
		p.Status = shared.ApprovalStatus(status)
		p.CreatedAt = p.CreatedAt.UTC()
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}

// LoadSettings returns the platform settings document.
func (r *SeedRepository) LoadSettings(ctx context.Context) (settings.Settings, error) {
	var raw []byte
	err := r.conn.QueryRow(ctx, `SELECT document FROM platform_settings WHERE id = 1`).Scan(&raw)
	if IsNoRows(err) {
		return settings.Settings{}, shared.NewDomainError("settings", "Load", shared.ErrNotFound, "no settings row")
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s := settings.Defaults()
	if err := json.Unmarshal(raw, &s); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// MonthlyRevenue returns the revenue figure of the month containing at, or
// zero when none was recorded.
func (r *SeedRepository) MonthlyRevenue(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	var amount string
	err := r.conn.QueryRow(ctx, `SELECT amount::text FROM monthly_revenue WHERE month = $1`,
		timeutil.StartOfMonth(at)).Scan(&amount)
	if IsNoRows(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load monthly revenue: %w", err)
	}
	return decimal.NewFromString(amount)
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT
// Заменяет содержимое таблиц начальных данных снимком состояния. Вызывается
// только явной командой импорта, а не работающей консолью.
// ══════════════════════════════════════════════════════════════════════════════

// Import replaces the seed tables with s in a single transaction.
func (r *SeedRepository) Import(ctx context.Context, s console.State, at time.Time) error {
	doc, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return r.conn.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			TRUNCATE lessons, students, instructor_documents, instructors,
			         chat_messages, conversations, transactions, packages
			RESTART IDENTITY
		`); err != nil {
			return fmt.Errorf("failed to clear seed tables: %w", err)
		}

		batch := &pgx.Batch{}
		queueImport(batch, s)
		batch.Queue(`
			INSERT INTO platform_settings (id, document, updated_at) VALUES (1, $1, NOW())
			ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
		`, doc)
		batch.Queue(`
			INSERT INTO monthly_revenue (month, amount) VALUES ($1, $2::numeric)
			ON CONFLICT (month) DO UPDATE SET amount = EXCLUDED.amount
		`, timeutil.StartOfMonth(at), s.Stats.MonthlyRevenue.String())

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to import seed: %w", err)
		}
		return nil
	})
}

func queueImport(batch *pgx.Batch, s console.State) {
	for _, in := range s.Instructors {
		batch.Queue(`
			INSERT INTO instructors (id, name, email, phone, city, approval_status, account_status, rating,
				total_students, earnings_total, pending_payment, stripe_status, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12, $13)
		`, in.ID, in.Name, in.Email, in.Phone, in.City, string(in.ApprovalStatus), string(in.AccountStatus),
			in.Rating, in.TotalStudents, in.EarningsTotal.String(), in.PendingPayment.String(),
			string(in.StripeStatus), in.JoinedAt)
		for _, d := range in.Documents {
			batch.Queue(`
				INSERT INTO instructor_documents (id, instructor_id, name, status, uploaded_at)
				VALUES ($1, $2, $3, $4, $5)
			`, d.ID, in.ID, d.Name, string(d.Status), d.UploadedAt)
		}
	}
	for _, st := range s.Students {
		batch.Queue(`
			INSERT INTO students (id, name, email, phone, city, approval_status, account_status,
				lessons_completed, upcoming_lessons, instructor_id, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, st.ID, st.Name, st.Email, st.Phone, st.City, string(st.ApprovalStatus), string(st.AccountStatus),
			st.LessonsCompleted, st.UpcomingLessons, st.InstructorID, st.JoinedAt)
		for _, l := range st.Lessons {
			batch.Queue(`
				INSERT INTO lessons (id, student_id, instructor_id, date, topic, status)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, l.ID, st.ID, l.InstructorID, l.Date, l.Topic, string(l.Status))
		}
	}
	for _, t := range s.Transactions {
		batch.Queue(`
			INSERT INTO transactions (id, instructor_id, instructor_name, amount, date, status, method, description)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		`, t.ID, t.InstructorID, t.InstructorName, t.Amount.String(), t.Date, string(t.Status), t.Method, t.Description)
	}
	for _, c := range s.Conversations {
		batch.Queue(`
			INSERT INTO conversations (id, instructor_id, instructor_name, status, unread_count, last_message, last_message_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.InstructorID, c.InstructorName, string(c.Status), c.UnreadCount, c.LastMessage, c.LastMessageAt)
	}
	for _, m := range s.Messages {
		batch.Queue(`
			INSERT INTO chat_messages (id, conversation_id, sender_type, text, sent_at, seen)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.ConversationID, string(m.SenderType), m.Text, m.SentAt, m.Seen)
	}
	for _, p := range s.Packages {
		batch.Queue(`
			INSERT INTO packages (id, instructor_id, instructor_name, title, description, lessons, price,
				commission_percentage, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
		`, p.ID, p.InstructorID, p.InstructorName, p.Title, p.Description, p.Lessons, p.Price.String(),
			p.CommissionPercentage, string(p.Status), p.CreatedAt)
	}
}
