package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pigeon/internal/catalog"
)

var ErrEntryNotFound = errors.New("storage: queue entry not found")

type StorageInterface interface {
	GetConnection() *sql.DB
	Catalog() CatalogStore
	Queue() QueueStore
	History() HistoryStore
	Close(ctx context.Context) error
}

type CatalogStore interface {
	SaveStory(ctx context.Context, story *catalog.Story) error
	SavePhoto(ctx context.Context, photo *catalog.Photo) error
	Story(ctx context.Context, pk int64) (*catalog.Story, error)
	Photo(ctx context.Context, pk int64) (*catalog.Photo, error)
	LatestStories(ctx context.Context, limit int) ([]*catalog.Story, error)
	Load(ctx context.Context, kind catalog.Kind, pk int64) (catalog.Item, error)
}

type QueueStatus string

const (
	StatusNew    QueueStatus = "new"
	StatusPushed QueueStatus = "pushed"
	StatusFailed QueueStatus = "failed"
)

type QueueEntry struct {
	ID            int64
	Configuration string
	Kind          catalog.Kind
	PK            int64
	Status        QueueStatus
	Message       string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type QueueStore interface {
	// Enqueue is a no-op when the same item is already waiting for the configuration.
	Enqueue(ctx context.Context, configuration string, kind catalog.Kind, pk int64) (bool, error)
	Pending(ctx context.Context, limit int) ([]QueueEntry, error)
	MarkPushed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error
	Get(ctx context.Context, id int64) (*QueueEntry, error)
}

type HistoryEntry struct {
	ID            int64
	Configuration string
	Kind          catalog.Kind
	PK            int64
	Path          string
	Size          int
	Checksum      string
	Success       bool
	Message       string
	PushedAt      time.Time
}

type HistoryStore interface {
	Record(ctx context.Context, entry HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) error
}
