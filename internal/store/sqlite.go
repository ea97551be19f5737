package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/devchat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the snapshot database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets readers proceed while a snapshot is written.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		files_json TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		last_activity_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_activity ON chat_sessions(last_activity_at);

	CREATE TABLE IF NOT EXISTS message_statuses (
		message_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		status_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_message_statuses_at ON message_statuses(status_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// LoadSessions returns every persisted session, most recently active first.
func (s *SQLiteStore) LoadSessions(ctx context.Context) ([]*domain.ChatSession, error) {
	query := `
		SELECT session_id, title, files_json, message_count, last_activity_at
		FROM chat_sessions ORDER BY last_activity_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.ChatSession
	for rows.Next() {
		var sess domain.ChatSession
		var filesJSON string
		var lastActivity int64

		if err := rows.Scan(&sess.ID, &sess.Title, &filesJSON, &sess.MessageCount, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &sess.Files); err != nil {
			return nil, fmt.Errorf("decode files of session %s: %w", sess.ID, err)
		}
		sess.LastActivity = time.UnixMilli(lastActivity)
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// SaveSessions upserts sessions in one transaction.
func (s *SQLiteStore) SaveSessions(ctx context.Context, sessions []*domain.ChatSession) error {
	query := `
	INSERT INTO chat_sessions (session_id, title, files_json, message_count, last_activity_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		title = excluded.title,
		files_json = excluded.files_json,
		message_count = excluded.message_count,
		last_activity_at = excluded.last_activity_at,
		updated_at = excluded.updated_at`

	return withBusyRetry(ctx, "save sessions", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, query)
			if err != nil {
				return fmt.Errorf("prepare session upsert: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			now := time.Now().UnixMilli()
			for _, sess := range sessions {
				if sess == nil || sess.ID == "" {
					continue
				}
				files := sess.Files
				if files == nil {
					files = []domain.FileContext{}
				}
				filesJSON, err := json.Marshal(files)
				if err != nil {
					return fmt.Errorf("encode files of session %s: %w", sess.ID, err)
				}
				if _, err := stmt.ExecContext(ctx,
					sess.ID, sess.Title, string(filesJSON), sess.MessageCount,
					sess.LastActivity.UnixMilli(), now,
				); err != nil {
					return fmt.Errorf("upsert session %s: %w", sess.ID, err)
				}
			}
			return nil
		})
	})
}

// LoadStatuses returns every persisted status, oldest first.
func (s *SQLiteStore) LoadStatuses(ctx context.Context) ([]domain.MessageStatus, error) {
	query := `
		SELECT message_id, status, retry_count, error, status_at
		FROM message_statuses ORDER BY status_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close status rows", "error", closeErr)
		}
	}()

	var statuses []domain.MessageStatus
	for rows.Next() {
		var st domain.MessageStatus
		var status string
		var errText sql.NullString
		var at int64

		if err := rows.Scan(&st.ID, &status, &st.RetryCount, &errText, &at); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		st.Status = domain.DeliveryState(status)
		st.Error = errText.String
		st.Timestamp = time.UnixMilli(at)
		statuses = append(statuses, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return statuses, nil
}

// SaveStatuses upserts statuses in one transaction.
func (s *SQLiteStore) SaveStatuses(ctx context.Context, statuses []domain.MessageStatus) error {
	query := `
	INSERT INTO message_statuses (message_id, status, retry_count, error, status_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(message_id) DO UPDATE SET
		status = excluded.status,
		retry_count = excluded.retry_count,
		error = excluded.error,
		status_at = excluded.status_at,
		updated_at = excluded.updated_at`

	return withBusyRetry(ctx, "save statuses", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, query)
			if err != nil {
				return fmt.Errorf("prepare status upsert: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			now := time.Now().UnixMilli()
			for _, st := range statuses {
				if st.ID == "" {
					continue
				}
				var errText interface{}
				if st.Error != "" {
					errText = st.Error
				}
				if _, err := stmt.ExecContext(ctx,
					st.ID, string(st.Status), st.RetryCount, errText,
					st.Timestamp.UnixMilli(), now,
				); err != nil {
					return fmt.Errorf("upsert status %s: %w", st.ID, err)
				}
			}
			return nil
		})
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
