package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrator applies GetMigrations in version order and records each applied
// version in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	done, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		err := m.conn.InTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	err := m.conn.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("postgres: read schema_migrations: %w", err)
	}
	done := make(map[int]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_people", UpSQL: migration001Up},
		{Version: 2, Name: "create_payouts_and_inbox", UpSQL: migration002Up},
		{Version: 3, Name: "create_catalog_and_settings", UpSQL: migration003Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS, LESSONS, INSTRUCTORS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS instructors (
    id VARCHAR(40) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(40) NOT NULL DEFAULT '',
    city VARCHAR(100) NOT NULL DEFAULT '',
    approval_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    account_status VARCHAR(20) NOT NULL DEFAULT 'active',
    rating NUMERIC(2,1) NOT NULL DEFAULT 0,
    total_students INTEGER NOT NULL DEFAULT 0,
    earnings_total NUMERIC(12,2) NOT NULL DEFAULT 0,
    pending_payment NUMERIC(12,2) NOT NULL DEFAULT 0,
    stripe_status VARCHAR(20) NOT NULL DEFAULT 'not_connected',
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    position SERIAL,

    CONSTRAINT valid_instructor_approval CHECK (approval_status IN ('pending', 'approved', 'rejected')),
    CONSTRAINT valid_instructor_account CHECK (account_status IN ('active', 'suspended', 'inactive')),
    CONSTRAINT valid_stripe_status CHECK (stripe_status IN ('connected', 'pending', 'not_connected')),
    CONSTRAINT valid_rating CHECK (rating >= 0 AND rating <= 5),
    CONSTRAINT valid_money CHECK (earnings_total >= 0 AND pending_payment >= 0)
);

CREATE TABLE IF NOT EXISTS instructor_documents (
    id VARCHAR(40) PRIMARY KEY,
    instructor_id VARCHAR(40) NOT NULL REFERENCES instructors(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_document_status CHECK (status IN ('verified', 'pending', 'rejected'))
);

CREATE INDEX IF NOT EXISTS idx_instructor_documents_instructor ON instructor_documents(instructor_id);

CREATE TABLE IF NOT EXISTS students (
    id VARCHAR(40) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(40) NOT NULL DEFAULT '',
    city VARCHAR(100) NOT NULL DEFAULT '',
    approval_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    account_status VARCHAR(20) NOT NULL DEFAULT 'active',
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    upcoming_lessons INTEGER NOT NULL DEFAULT 0,
    instructor_id VARCHAR(40),
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    position SERIAL,

    CONSTRAINT valid_student_approval CHECK (approval_status IN ('pending', 'approved', 'rejected')),
    CONSTRAINT valid_student_account CHECK (account_status IN ('active', 'suspended', 'inactive')),
    CONSTRAINT valid_lesson_counters CHECK (lessons_completed >= 0 AND upcoming_lessons >= 0)
);

CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(40) PRIMARY KEY,
    student_id VARCHAR(40) NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    instructor_id VARCHAR(40) NOT NULL DEFAULT '',
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    topic VARCHAR(200) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL,

    CONSTRAINT valid_lesson_status CHECK (status IN ('completed', 'upcoming', 'cancelled'))
);

CREATE INDEX IF NOT EXISTS idx_lessons_student_date ON lessons(student_id, date);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: TRANSACTIONS, CONVERSATIONS, MESSAGES
// Ссылки на инструкторов слабые: транзакция переживает удаление инструктора.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS transactions (
    id VARCHAR(40) PRIMARY KEY,
    instructor_id VARCHAR(40) NOT NULL,
    instructor_name VARCHAR(100) NOT NULL,
    amount NUMERIC(12,2) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL,
    method VARCHAR(40) NOT NULL DEFAULT 'Stripe Transfer',
    description TEXT NOT NULL DEFAULT '',
    position SERIAL,

    CONSTRAINT valid_transaction_status CHECK (status IN ('paid', 'pending')),
    CONSTRAINT valid_amount CHECK (amount >= 0)
);

CREATE INDEX IF NOT EXISTS idx_transactions_instructor ON transactions(instructor_id);

CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(40) PRIMARY KEY,
    instructor_id VARCHAR(40) NOT NULL,
    instructor_name VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'unread',
    unread_count INTEGER NOT NULL DEFAULT 0,
    last_message TEXT NOT NULL DEFAULT '',
    last_message_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    position SERIAL,

    CONSTRAINT valid_conversation_status CHECK (status IN ('unread', 'read', 'resolved')),
    CONSTRAINT valid_unread_count CHECK (unread_count >= 0)
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id VARCHAR(40) PRIMARY KEY,
    conversation_id VARCHAR(40) NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    sender_type VARCHAR(20) NOT NULL,
    text TEXT NOT NULL,
    sent_at TIMESTAMP WITH TIME ZONE NOT NULL,
    seen BOOLEAN NOT NULL DEFAULT FALSE,
    position SERIAL,

    CONSTRAINT valid_sender_type CHECK (sender_type IN ('admin', 'instructor'))
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, position);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PACKAGES, SETTINGS, REVENUE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS packages (
    id VARCHAR(40) PRIMARY KEY,
    instructor_id VARCHAR(40) NOT NULL,
    instructor_name VARCHAR(100) NOT NULL DEFAULT '',
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    lessons INTEGER NOT NULL DEFAULT 0,
    price NUMERIC(12,2) NOT NULL DEFAULT 0,
    commission_percentage DOUBLE PRECISION NOT NULL DEFAULT 15,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    position SERIAL,

    CONSTRAINT valid_package_status CHECK (status IN ('pending', 'approved', 'rejected')),
    CONSTRAINT valid_commission CHECK (commission_percentage >= 0 AND commission_percentage <= 100)
);

-- Platform settings are a single JSONB document.
CREATE TABLE IF NOT EXISTS platform_settings (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    document JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT single_row CHECK (id = 1)
);

-- Monthly revenue has no entity-level source and is seeded as a figure.
CREATE TABLE IF NOT EXISTS monthly_revenue (
    month DATE PRIMARY KEY,
    amount NUMERIC(14,2) NOT NULL DEFAULT 0
);
`

