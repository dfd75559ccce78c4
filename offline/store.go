// Package offline keeps notification creates durable on the producing client until the
// engine confirms them.
package offline

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"beacon/models"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed queue. A single connection serializes writers.
type Store struct {
	db *sql.DB
}

// Open creates or opens the queue at path. Items left in flight by a crash are returned to
// pending before Open returns.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	if _, err := s.RecoverInFlight(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue persists an item. Enqueuing an id that already exists is a no-op.
func (s *Store) Enqueue(ctx context.Context, item models.QueueItem) error {
	req, err := json.Marshal(item.Request)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", item.ID, err)
	}
	if item.State == "" {
		item.State = models.QueuePending
	}
	if item.NextAttemptAt.IsZero() {
		item.NextAttemptAt = item.CreatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queue_items (id, request, state, attempts, created_at, next_attempt_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		item.ID,
		string(req),
		string(item.State),
		item.Attempts,
		item.CreatedAt.UnixNano(),
		item.NextAttemptAt.UnixNano(),
		item.LastError,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", item.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, request, state, attempts, created_at, next_attempt_at, last_error FROM queue_items`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (models.QueueItem, error) {
	var (
		item              models.QueueItem
		req, state        string
		createdAt, nextAt int64
	)
	if err := row.Scan(&item.ID, &req, &state, &item.Attempts, &createdAt, &nextAt, &item.LastError); err != nil {
		return models.QueueItem{}, err
	}
	if err := json.Unmarshal([]byte(req), &item.Request); err != nil {
		return models.QueueItem{}, fmt.Errorf("decode request of %s: %w", item.ID, err)
	}
	item.State = models.QueueState(state)
	item.CreatedAt = time.Unix(0, createdAt).UTC()
	item.NextAttemptAt = time.Unix(0, nextAt).UTC()
	return item, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.QueueItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueItem{}, ErrItemNotFound
	}
	if err != nil {
		return models.QueueItem{}, fmt.Errorf("get %s: %w", id, err)
	}
	return item, nil
}

// Pending returns up to limit pending items due at now, oldest first.
func (s *Store) Pending(ctx context.Context, now time.Time, limit int) ([]models.QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE state = 'pending' AND next_attempt_at <= ?
		ORDER BY created_at, rowid
		LIMIT ?
	`, now.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]models.QueueItem, error) {
	defer rows.Close()
	var items []models.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim moves a pending item to inflight until leaseUntil. It reports false if another drainer
// got there first or the item is gone.
func (s *Store) Claim(ctx context.Context, id string, leaseUntil time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET state = 'inflight', next_attempt_at = ?
		WHERE id = ? AND state = 'pending'
	`, leaseUntil.UnixNano(), id)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	return n == 1, nil
}

// Remove deletes an item. Only confirmed deliveries and evictions remove items.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// Requeue records a failed attempt and schedules the next one.
func (s *Store) Requeue(ctx context.Context, id, lastErr string, nextAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET state = 'pending', attempts = attempts + 1, next_attempt_at = ?, last_error = ?
		WHERE id = ?
	`, nextAt.UnixNano(), lastErr, id)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Evict removes pending items that exhausted the retry policy and returns them.
func (s *Store) Evict(ctx context.Context, policy RetryPolicy, now time.Time) ([]models.QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("evict: %w", err)
	}
	defer tx.Rollback()

	const where = ` WHERE state = 'pending' AND (attempts >= ? OR created_at < ?)`
	cutoff := now.Add(-policy.MaxAge).UnixNano()
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = int(^uint(0) >> 1)
	}
	if policy.MaxAge <= 0 {
		cutoff = 0
	}

	rows, err := tx.QueryContext(ctx, selectColumns+where+` ORDER BY created_at, rowid`, maxAttempts, cutoff)
	if err != nil {
		return nil, fmt.Errorf("evict: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("evict: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items`+where, maxAttempts, cutoff); err != nil {
		return nil, fmt.Errorf("evict: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("evict: %w", err)
	}
	return items, nil
}

// RecoverInFlight returns items orphaned by a crash mid-delivery to pending.
func (s *Store) RecoverInFlight(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE queue_items SET state = 'pending' WHERE state = 'inflight'`)
	if err != nil {
		return 0, fmt.Errorf("recover inflight: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseExpired returns inflight items whose claim lease ended by now to pending.
func (s *Store) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET state = 'pending' WHERE state = 'inflight' AND next_attempt_at <= ?`,
		now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("release expired claims: %w", err)
	}
	return res.RowsAffected()
}

// Count reports how many items are queued in any state.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
