package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite" // The pure Go SQLite driver
)

// Service owns the application database. Reads go straight to the pool;
// writes are serialized through a single mutex because SQLite allows one
// writer at a time.
type Service struct {
	path    string
	db      *sql.DB
	writeMu sync.Mutex
}

// NewService opens the SQLite database at path and verifies the connection.
func NewService(path string) (*Service, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", path, err)
	}

	return &Service{path: path, db: db}, nil
}

// Write runs writeFunc inside a transaction while holding the write lock.
// The transaction is rolled back if writeFunc returns an error.
func (s *Service) Write(ctx context.Context, writeFunc func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := writeFunc(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// GetDB returns the connection pool for read queries.
func (s *Service) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection pool.
func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("WARN: closing %s: %v", s.path, err)
		return
	}
	log.Println("INFO: database connection closed.")
}

// InitSchema creates all tables and indexes if they do not exist yet.
// It is idempotent and runs on every start.
func (s *Service) InitSchema(ctx context.Context) error {
	return s.Write(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema: %w", err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		username TEXT UNIQUE,
		full_name TEXT,
		avatar_url TEXT,
		password_hash TEXT,
		role TEXT NOT NULL DEFAULT 'USER', -- USER or ADMIN
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,

	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		location_text TEXT,
		status TEXT NOT NULL DEFAULT 'published', -- draft, published, cancelled
		creator_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (creator_id) REFERENCES profiles (id) ON DELETE CASCADE
	);`,

	// A guest attendee has no user_id and is keyed by guest_email instead.
	`CREATE TABLE IF NOT EXISTS event_attendees (
		id INTEGER PRIMARY KEY,
		event_id TEXT NOT NULL,
		user_id TEXT,
		guest_name TEXT,
		guest_email TEXT,
		role TEXT NOT NULL DEFAULT 'participant',
		status TEXT CHECK (status IN ('going', 'maybe', 'declined')),
		responded_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (event_id, user_id),
		UNIQUE (event_id, guest_email),
		CHECK (user_id IS NOT NULL OR guest_email IS NOT NULL),
		FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES profiles (id) ON DELETE CASCADE
	);`,

	`CREATE TABLE IF NOT EXISTS event_invitations (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'invited',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (event_id, email),
		FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
	);`,

	`CREATE TABLE IF NOT EXISTS email_logs (
		id INTEGER PRIMARY KEY,
		event_id TEXT NOT NULL,
		recipient_email TEXT NOT NULL,
		mail_type TEXT NOT NULL,
		status TEXT NOT NULL, -- sent or failed
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_lookup
		ON email_logs (event_id, recipient_email, mail_type);`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		sender_id TEXT,
		type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (recipient_id, entity_id, type),
		FOREIGN KEY (recipient_id) REFERENCES profiles (id) ON DELETE CASCADE
	);`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY,
		action TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
}
