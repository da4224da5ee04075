// Package sqlite stores the catalog, the push queue and the push history in
// one sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"pigeon/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	storage.Register("sqlite", func(ctx context.Context, path string, logger *slog.Logger) (storage.StorageInterface, error) {
		return Open(ctx, path, logger)
	})
}

type SQLiteStorage struct {
	db      *sql.DB
	catalog *catalogStore
	queue   *queueStore
	history *historyStore
}

var _ storage.StorageInterface = (*SQLiteStorage)(nil)

// Open creates the database file if needed and migrates it to the latest
// schema. A nil logger means slog.Default.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("storage", "sqlite")

	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// One writer at a time; the subscriber and the pusher share this handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage ready", "path", path)
	return &SQLiteStorage{
		db:      db,
		catalog: &catalogStore{db: db},
		queue:   &queueStore{db: db},
		history: &historyStore{db: db, logger: logger},
	}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetConnection() *sql.DB        { return s.db }
func (s *SQLiteStorage) Catalog() storage.CatalogStore { return s.catalog }
func (s *SQLiteStorage) Queue() storage.QueueStore     { return s.queue }
func (s *SQLiteStorage) History() storage.HistoryStore { return s.history }

func (s *SQLiteStorage) Close(context.Context) error {
	return s.db.Close()
}
