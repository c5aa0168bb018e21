package migrations

import (
	"database/sql"
	"fmt"
	"strings"
)

// A migration is a named group of statements. Additive migrations are
// applied statement by statement and tolerate columns that already exist,
// since a store may be reused across versions that created them earlier.
type migration struct {
	version    string
	statements []string
	additive   bool
}

var all = []migration{
	{
		version: "001_create_users",
		statements: []string{`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			country TEXT NOT NULL,
			currency TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	},
	{
		version: "002_create_accounts",
		statements: []string{`CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, currency)
		)`},
	},
	{
		version: "003_create_transactions",
		statements: []string{`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			sender_currency TEXT NOT NULL,
			receiver_currency TEXT NOT NULL,
			amount_sent DOUBLE PRECISION NOT NULL,
			amount_received DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			type TEXT NOT NULL,
			description TEXT,
			digest TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	},
	{
		// anchor_status arrived after the transactions table shipped, so
		// it is an additive column on existing stores.
		version:    "004_add_anchor_status",
		additive:   true,
		statements: []string{`ALTER TABLE transactions ADD COLUMN anchor_status TEXT DEFAULT 'pending'`},
	},
	{
		version: "005_create_notifications",
		statements: []string{`CREATE TABLE IF NOT EXISTS notifications (
			notification_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			transaction_id TEXT,
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	},
	{
		version: "006_create_notification_preferences",
		statements: []string{`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id TEXT PRIMARY KEY,
			receive_payment_notify INTEGER NOT NULL DEFAULT 1,
			send_payment_notify INTEGER NOT NULL DEFAULT 1,
			request_notify INTEGER NOT NULL DEFAULT 1,
			request_response_notify INTEGER NOT NULL DEFAULT 1,
			push_enabled INTEGER NOT NULL DEFAULT 1,
			email_enabled INTEGER NOT NULL DEFAULT 0,
			email TEXT
		)`},
	},
}

// RunMigrations applies all pending migrations to the database.
// It creates a 'schema_migrations' table to track applied versions, and is
// safe to call on every startup.
func RunMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %v", err)
	}

	for _, m := range all {
		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = $1", m.version).Scan(&exists)
		if err == nil {
			continue // Already applied
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check migration %s: %v", m.version, err)
		}

		if m.additive {
			if err := applyAdditive(db, m); err != nil {
				return err
			}
		} else {
			if err := applyTransactional(db, m); err != nil {
				return err
			}
		}

		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %s: %v", m.version, err)
		}
	}

	return nil
}

func applyTransactional(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %v", m.version, err)
		}
	}

	return tx.Commit()
}

// applyAdditive runs each statement outside a transaction and swallows
// duplicate-column errors, so an ALTER targeting a column that a newer
// CREATE already includes does not fail the startup.
func applyAdditive(db *sql.DB, m migration) error {
	for _, stmt := range m.statements {
		if _, err := db.Exec(stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("failed to execute migration %s: %v", m.version, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
