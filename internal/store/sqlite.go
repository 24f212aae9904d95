package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moltlabs/voice-gateway/internal/autonomy"
	"github.com/moltlabs/voice-gateway/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers while sessions write.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS project_requests (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		entities_json TEXT NOT NULL,
		failure_count INTEGER NOT NULL,
		error_patterns_json TEXT NOT NULL,
		requested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_project_requests_requested ON project_requests(requested_at);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		user_id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		key_p256dh TEXT NOT NULL,
		key_auth TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
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
	return s.db.Close()
}

// EnqueueProjectRequest appends a project request to the review queue.
func (s *SQLiteStore) EnqueueProjectRequest(ctx context.Context, req autonomy.ProjectRequest) error {
	entities, err := json.Marshal(req.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	patterns, err := json.Marshal(req.ErrorPatterns)
	if err != nil {
		return fmt.Errorf("encode error patterns: %w", err)
	}

	query := `
		INSERT INTO project_requests (id, category, entities_json, failure_count, error_patterns_json, requested_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		req.ID, req.Category, string(entities), req.FailureCount, string(patterns), req.RequestedAt.Unix()); err != nil {
		return fmt.Errorf("insert project request: %w", err)
	}
	return nil
}

// PendingProjectRequests lists queued project requests, oldest first.
func (s *SQLiteStore) PendingProjectRequests(ctx context.Context) ([]autonomy.ProjectRequest, error) {
	query := `
		SELECT id, category, entities_json, failure_count, error_patterns_json, requested_at
		FROM project_requests ORDER BY requested_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query project requests: %w", err)
	}
	defer rows.Close()

	var out []autonomy.ProjectRequest
	for rows.Next() {
		var req autonomy.ProjectRequest
		var entitiesJSON, patternsJSON string
		var requestedAt int64
		if err := rows.Scan(&req.ID, &req.Category, &entitiesJSON, &req.FailureCount, &patternsJSON, &requestedAt); err != nil {
			return nil, fmt.Errorf("scan project request: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &req.Entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
		if err := json.Unmarshal([]byte(patternsJSON), &req.ErrorPatterns); err != nil {
			return nil, fmt.Errorf("decode error patterns: %w", err)
		}
		req.RequestedAt = time.Unix(requestedAt, 0)
		out = append(out, req)
	}
	return out, rows.Err()
}

// ClearProjectRequest removes a reviewed request.
func (s *SQLiteStore) ClearProjectRequest(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_requests WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SaveSubscription stores or replaces a user's push subscription.
func (s *SQLiteStore) SaveSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (user_id, endpoint, key_p256dh, key_auth, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			endpoint = excluded.endpoint,
			key_p256dh = excluded.key_p256dh,
			key_auth = excluded.key_auth,
			created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, query,
		sub.UserID, sub.Endpoint, sub.KeyP256DH, sub.KeyAuth, sub.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a user's push subscription.
func (s *SQLiteStore) GetSubscription(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	query := `
		SELECT user_id, endpoint, key_p256dh, key_auth, created_at
		FROM push_subscriptions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var sub domain.PushSubscription
	var createdAt int64
	err := row.Scan(&sub.UserID, &sub.Endpoint, &sub.KeyP256DH, &sub.KeyAuth, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.CreatedAt = time.Unix(createdAt, 0)
	return &sub, nil
}

// QueueNotification appends a notification for later retrieval.
func (s *SQLiteStore) QueueNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, body, url, tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		n.UserID, n.Title, n.Body, n.URL, n.Tag, n.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// NotificationsFor lists a user's queued notifications, oldest first.
func (s *SQLiteStore) NotificationsFor(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, title, body, url, tag, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.URL, &n.Tag, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &n)
	}
	return out, rows.Err()
}
