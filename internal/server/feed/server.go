package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"pigeon/internal/cache"
	"pigeon/internal/storage"
)

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.HistoryEntry, error)
}

type Config struct {
	Port     string
	FeedSize int
	CacheTTL time.Duration
}

// Server publishes the push history as RSS, Atom and JSON feeds.
type Server struct {
	name    string
	config  Config
	history HistoryReader
	cache   *cache.Cache[CacheKey, string]
	server  *http.Server
	logger  *slog.Logger
}

func New(name string, config Config, history HistoryReader, logger *slog.Logger) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.FeedSize == 0 {
		config.FeedSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		name:    name,
		config:  config,
		history: history,
		cache:   NewCache(cache.CacheConfig{TTL: config.CacheTTL}),
		logger:  logger.With("server", name),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed.rss", s.handleFeed(TypeRSS))
	mux.HandleFunc("GET /feed.atom", s.handleFeed(TypeAtom))
	mux.HandleFunc("GET /feed.json", s.handleFeed(TypeJSON))
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return fmt.Errorf("feed server %s: listen: %w", s.name, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Feed server error", "error", err)
		}
	}()

	s.logger.Info("Feed server listening", "addr", listener.Addr().String())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed server %s: shutdown: %w", s.name, err)
	}
	return nil
}

// Invalidate drops the cached feeds; call it after a push run.
func (s *Server) Invalidate() {
	s.cache.InvalidatePrefix(s.name + ":")
}

var contentTypes = map[string]string{
	TypeRSS:  "application/rss+xml; charset=utf-8",
	TypeAtom: "application/atom+xml; charset=utf-8",
	TypeJSON: "application/feed+json; charset=utf-8",
}

func (s *Server) handleFeed(feedType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.cache.GetOrLoad(NewCacheKey(s.name, feedType), func() (string, error) {
			return s.render(r.Context(), feedType)
		})
		if err != nil {
			s.logger.Error("Failed to render feed", "type", feedType, "error", err)
			http.Error(w, "failed to render feed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypes[feedType])
		w.Header().Set("Cache-Control", "public, max-age=60")
		fmt.Fprint(w, body)
	}
}

func (s *Server) render(ctx context.Context, feedType string) (string, error) {
	entries, err := s.history.Recent(ctx, s.config.FeedSize)
	if err != nil {
		return "", err
	}

	feed := s.buildFeed(entries)
	switch feedType {
	case TypeRSS:
		return feed.ToRss()
	case TypeAtom:
		return feed.ToAtom()
	default:
		return feed.ToJSON()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","name":%q,"time":%q}`, s.name, time.Now().UTC().Format(time.RFC3339))
}

func (s *Server) buildFeed(entries []storage.HistoryEntry) *feeds.Feed {
	items := make([]*feeds.Item, 0, len(entries))

	for _, entry := range entries {
		status := "pushed"
		if !entry.Success {
			status = "failed"
		}

		description := fmt.Sprintf("%s %s %d to %s: %s (%d bytes)",
			entry.Configuration, entry.Kind, entry.PK, entry.Path, status, entry.Size)
		if entry.Checksum != "" {
			description += " sha256:" + entry.Checksum
		}
		if entry.Message != "" {
			description += ": " + entry.Message
		}

		items = append(items, &feeds.Item{
			Id:          fmt.Sprintf("%s/%d", entry.Configuration, entry.ID),
			Title:       fmt.Sprintf("[%s] %s", status, entry.Path),
			Link:        &feeds.Link{Href: "/" + entry.Path},
			Description: description,
			Created:     entry.PushedAt,
		})
	}

	return &feeds.Feed{
		Title:       fmt.Sprintf("Pigeon pushes (%s)", s.name),
		Link:        &feeds.Link{Href: "http://localhost:" + s.config.Port + "/"},
		Description: "Artifacts pushed to export partners",
		Author:      &feeds.Author{Name: "pigeon"},
		Created:     time.Now().UTC(),
		Items:       items,
	}
}
