package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"pigeon/internal/catalog"
	"pigeon/internal/storage"
)

type historyStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *historyStore) Record(ctx context.Context, entry storage.HistoryEntry) error {
	if entry.PushedAt.IsZero() {
		entry.PushedAt = time.Now()
	}
	entry.PushedAt = entry.PushedAt.UTC()

	query := `
		INSERT INTO push_history (configuration, item_kind, item_pk, path, size, checksum, success, message, pushed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, entry.Configuration, entry.Kind.String(), entry.PK,
		entry.Path, entry.Size, entry.Checksum, entry.Success, entry.Message, entry.PushedAt)
	if err != nil {
		return fmt.Errorf("failed to record push history: %w", err)
	}

	return nil
}

func (s *historyStore) Recent(ctx context.Context, limit int) ([]storage.HistoryEntry, error) {
	query := `
		SELECT id, configuration, item_kind, item_pk, path, size, checksum, success, message, pushed_at
		FROM push_history
		ORDER BY pushed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry storage.HistoryEntry
			kind  string
		)

		err := rows.Scan(&entry.ID, &entry.Configuration, &kind, &entry.PK, &entry.Path,
			&entry.Size, &entry.Checksum, &entry.Success, &entry.Message, &entry.PushedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		parsed, err := catalog.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", entry.ID, err)
		}
		entry.Kind = parsed

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (s *historyStore) DeleteOlderThan(ctx context.Context, age time.Duration) error {
	cutoff := time.Now().UTC().Add(-age)
	query := `DELETE FROM push_history WHERE pushed_at < ?`

	s.logger.Debug("Deleting push history older than cutoff", "age", age, "cutoff", cutoff.Format(time.RFC3339))
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old history: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil {
		s.logger.Debug("Deleted old push history", "count", rows)
	}

	return nil
}
