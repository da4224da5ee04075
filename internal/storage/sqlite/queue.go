package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pigeon/internal/catalog"
	"pigeon/internal/storage"
)

type queueStore struct {
	db *sql.DB
}

func (s *queueStore) Enqueue(ctx context.Context, configuration string, kind catalog.Kind, pk int64) (bool, error) {
	query := `
		INSERT OR IGNORE INTO push_queue (configuration, item_kind, item_pk, status)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query, configuration, kind.String(), pk, string(storage.StatusNew))
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s %d: %w", kind, pk, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}

	return rows > 0, nil
}

const queueColumns = `id, configuration, item_kind, item_pk, status, message, attempts, created_at, updated_at`

func scanQueueEntry(row rowScanner) (*storage.QueueEntry, error) {
	var (
		entry  storage.QueueEntry
		kind   string
		status string
	)

	err := row.Scan(&entry.ID, &entry.Configuration, &kind, &entry.PK, &status, &entry.Message,
		&entry.Attempts, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := catalog.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("queue entry %d: %w", entry.ID, err)
	}

	entry.Kind = parsed
	entry.Status = storage.QueueStatus(status)
	return &entry, nil
}

func (s *queueStore) Pending(ctx context.Context, limit int) ([]storage.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM push_queue WHERE status = ? ORDER BY id ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(storage.StatusNew), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.QueueEntry, 0)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (s *queueStore) MarkPushed(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, storage.StatusPushed, "")
}

func (s *queueStore) MarkFailed(ctx context.Context, id int64, message string) error {
	return s.setStatus(ctx, id, storage.StatusFailed, message)
}

func (s *queueStore) setStatus(ctx context.Context, id int64, status storage.QueueStatus, message string) error {
	query := `
		UPDATE push_queue
		SET status = ?, message = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, string(status), message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry %d as %s: %w", id, status, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queue entry %d: %w", id, storage.ErrEntryNotFound)
	}

	return nil
}

func (s *queueStore) Get(ctx context.Context, id int64) (*storage.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM push_queue WHERE id = ?`, id)
	entry, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue entry %d: %w", id, storage.ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry %d: %w", id, err)
	}
	return entry, nil
}
