package feed_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/catalog"
	"pigeon/internal/server/feed"
	"pigeon/internal/storage"
)

type fakeHistory struct {
	mu      sync.Mutex
	entries []storage.HistoryEntry
	calls   int
	err     error
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]storage.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	if limit < len(h.entries) {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

func (h *fakeHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *fakeHistory) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *fakeHistory) add(entry storage.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]storage.HistoryEntry{entry}, h.entries...)
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func newServer(t *testing.T, history *fakeHistory) (*feed.Server, *httptest.Server) {
	t.Helper()

	s := feed.New("pigeon", feed.Config{FeedSize: 10, CacheTTL: time.Minute}, history, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestFeedEndpoints(t *testing.T) {
	history := &fakeHistory{}
	history.add(storage.HistoryEntry{
		ID: 1, Configuration: "beloved_partner", Kind: catalog.KindStory, PK: 42,
		Path: "NEWS_news_42.xml", Size: 512, Success: true, PushedAt: time.Now().UTC(),
	})
	history.add(storage.HistoryEntry{
		ID: 2, Configuration: "beloved_partner", Kind: catalog.KindPhoto, PK: 9,
		Path: "medias/9.jpg", Message: "no such file", PushedAt: time.Now().UTC(),
	})
	_, srv := newServer(t, history)

	testCases := []struct {
		path        string
		contentType string
		contains    []string
	}{
		{path: "/feed.rss", contentType: "application/rss+xml", contains: []string{"<rss", "NEWS_news_42.xml", "[failed] medias/9.jpg"}},
		{path: "/feed.atom", contentType: "application/atom+xml", contains: []string{"<feed", "[pushed] NEWS_news_42.xml"}},
		{path: "/feed.json", contentType: "application/feed+json", contains: []string{`"items"`, "no such file"}},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := get(t, srv, tc.path)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tc.contentType)
			for _, s := range tc.contains {
				assert.Contains(t, body, s)
			}
		})
	}
}

func TestFeedCacheInvalidation(t *testing.T) {
	history := &fakeHistory{}
	s, srv := newServer(t, history)

	_, body := get(t, srv, "/feed.rss")
	assert.NotContains(t, body, "first.xml")

	history.add(storage.HistoryEntry{ID: 1, Path: "first.xml", Success: true, PushedAt: time.Now().UTC()})

	_, body = get(t, srv, "/feed.rss")
	assert.NotContains(t, body, "first.xml", "served from cache")
	assert.Equal(t, 1, history.callCount())

	s.Invalidate()

	_, body = get(t, srv, "/feed.rss")
	assert.Contains(t, body, "first.xml")
	assert.Equal(t, 2, history.callCount())
}

func TestFeedRenderError(t *testing.T) {
	history := &fakeHistory{}
	history.fail(errors.New("database is locked"))
	_, srv := newServer(t, history)

	resp, body := get(t, srv, "/feed.atom")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body, "database is locked")

	history.fail(nil)

	resp, _ = get(t, srv, "/feed.atom")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, history.callCount(), "errors are not cached")
}

func TestHealth(t *testing.T) {
	_, srv := newServer(t, &fakeHistory{})

	resp, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "pigeon", payload["name"])

	resp, _ = get(t, srv, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "pigeon:rss", feed.NewCacheKey("pigeon", feed.TypeRSS).String())
}
