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

type catalogStore struct {
	db *sql.DB
}

var _ storage.CatalogStore = (*catalogStore)(nil)

func (s *catalogStore) SaveStory(ctx context.Context, story *catalog.Story) error {
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	// Timestamps are compared as text, so every row is written in UTC.
	story.CreatedAt = story.CreatedAt.UTC()

	query := `
		INSERT INTO stories (id, app_label, title, workflow_state, content, updating_date, photo_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			app_label = excluded.app_label,
			title = excluded.title,
			workflow_state = excluded.workflow_state,
			content = excluded.content,
			updating_date = excluded.updating_date,
			photo_id = excluded.photo_id
	`

	updatingDate := sql.NullTime{Valid: !story.UpdatingDate.IsZero(), Time: story.UpdatingDate.UTC()}
	var photoID sql.NullInt64
	if story.PhotoID != nil {
		photoID = sql.NullInt64{Valid: true, Int64: *story.PhotoID}
	}

	_, err := s.db.ExecContext(ctx, query,
		story.ID, story.AppLabel(), story.Title, string(story.WorkflowState), story.Content,
		updatingDate, photoID, story.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save story %d: %w", story.ID, err)
	}

	return nil
}

func (s *catalogStore) SavePhoto(ctx context.Context, photo *catalog.Photo) error {
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = time.Now()
	}
	photo.CreatedAt = photo.CreatedAt.UTC()

	query := `
		INSERT INTO photos (id, app_label, title, original_file, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			app_label = excluded.app_label,
			title = excluded.title,
			original_file = excluded.original_file
	`

	_, err := s.db.ExecContext(ctx, query, photo.ID, photo.AppLabel(), photo.Title, photo.OriginalFile, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save photo %d: %w", photo.ID, err)
	}

	return nil
}

const storyColumns = `id, app_label, title, workflow_state, content, updating_date, photo_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*catalog.Story, error) {
	var (
		story        catalog.Story
		state        string
		updatingDate sql.NullTime
		photoID      sql.NullInt64
	)

	err := row.Scan(&story.ID, &story.Label, &story.Title, &state, &story.Content, &updatingDate, &photoID, &story.CreatedAt)
	if err != nil {
		return nil, err
	}

	story.WorkflowState = catalog.WorkflowState(state)
	if updatingDate.Valid {
		story.UpdatingDate = updatingDate.Time
	}
	if photoID.Valid {
		id := photoID.Int64
		story.PhotoID = &id
	}

	return &story, nil
}

func (s *catalogStore) Story(ctx context.Context, pk int64) (*catalog.Story, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, pk)
	story, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %d: %w", pk, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load story %d: %w", pk, err)
	}
	return story, nil
}

func (s *catalogStore) Photo(ctx context.Context, pk int64) (*catalog.Photo, error) {
	var photo catalog.Photo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, app_label, title, original_file, created_at FROM photos WHERE id = ?`, pk,
	).Scan(&photo.ID, &photo.Label, &photo.Title, &photo.OriginalFile, &photo.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %d: %w", pk, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load photo %d: %w", pk, err)
	}
	return &photo, nil
}

func (s *catalogStore) LatestStories(ctx context.Context, limit int) ([]*catalog.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest stories: %w", err)
	}
	defer rows.Close()

	stories := make([]*catalog.Story, 0, limit)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, story)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return stories, nil
}

func (s *catalogStore) Load(ctx context.Context, kind catalog.Kind, pk int64) (catalog.Item, error) {
	switch kind {
	case catalog.KindStory:
		story, err := s.Story(ctx, pk)
		if err != nil {
			return nil, err
		}
		return story, nil
	case catalog.KindPhoto:
		photo, err := s.Photo(ctx, pk)
		if err != nil {
			return nil, err
		}
		return photo, nil
	default:
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownKind, kind)
	}
}
