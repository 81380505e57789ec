package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/httpclient"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithBaseURL(server.URL),
		WithHTTPConfig(httpclient.Config{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Timeout:     5 * time.Second,
		}),
	}, opts...)
	return New("test-key", discardLogger, opts...)
}

func pageBody(page, totalPages int, titles ...string) string {
	results := ""
	for i, title := range titles {
		if i > 0 {
			results += ","
		}
		results += fmt.Sprintf(`{"id":%d,"title":%q,"overview":"","release_date":"2024-05-01","poster_path":null}`, page*100+i, title)
	}
	return fmt.Sprintf(`{"page":%d,"total_pages":%d,"total_results":%d,"results":[%s]}`,
		page, totalPages, totalPages*20, results)
}

func TestListEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(*Client) (*catalog.MoviePage, error)
		path string
	}{
		{"popular", func(c *Client) (*catalog.MoviePage, error) { return c.GetPopular(context.Background(), 2) }, "/movie/popular"},
		{"now_playing", func(c *Client) (*catalog.MoviePage, error) { return c.GetNowPlaying(context.Background(), 2) }, "/movie/now_playing"},
		{"upcoming", func(c *Client) (*catalog.MoviePage, error) { return c.GetUpcoming(context.Background(), 2) }, "/movie/upcoming"},
		{"top_rated", func(c *Client) (*catalog.MoviePage, error) { return c.GetTopRated(context.Background(), 2) }, "/movie/top_rated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.URL.Query().Get("api_key") != "test-key" {
					t.Error("missing api_key")
				}
				if r.URL.Query().Get("page") != "2" {
					t.Errorf("page = %q, want 2", r.URL.Query().Get("page"))
				}
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, pageBody(2, 9, "Dune", "Heat"))
			}))

			p, err := tt.call(client)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Page != 2 || p.TotalPages != 9 || len(p.Movies) != 2 {
				t.Errorf("unexpected page: %+v", p)
			}
			if p.Movies[0].Title != "Dune" {
				t.Errorf("first title = %q", p.Movies[0].Title)
			}
		})
	}
}

func TestLanguageAndRegion(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	seen := map[string]string{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.URL.Query().Get("region")
		mu.Unlock()
		if got := r.URL.Query().Get("language"); got != "de-DE" {
			t.Errorf("language = %q, want de-DE", got)
		}
		io.WriteString(w, pageBody(1, 1))
	}), WithLanguage("de-DE"), WithRegion("DE"))

	ctx := context.Background()
	if _, err := client.GetNowPlaying(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := client.GetPopular(ctx, 1); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen["/movie/now_playing"] != "DE" {
		t.Errorf("now_playing region = %q, want DE", seen["/movie/now_playing"])
	}
	if seen["/movie/popular"] != "" {
		t.Errorf("popular should not carry region, got %q", seen["/movie/popular"])
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "inception" {
			t.Errorf("unexpected query: %s", r.URL.Query().Get("query"))
		}
		if r.URL.Query().Get("page") != "3" {
			t.Errorf("unexpected page: %s", r.URL.Query().Get("page"))
		}
		io.WriteString(w, pageBody(3, 3, "Inception"))
	}))

	p, err := client.Search(context.Background(), "  inception ", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Movies) != 1 || p.Movies[0].Title != "Inception" {
		t.Errorf("unexpected page: %+v", p)
	}
}

func TestInvalidArgumentsSkipNetwork(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	ctx := context.Background()

	if _, err := client.Search(ctx, "   ", 1); err == nil {
		t.Error("expected error for blank keyword")
	}
	if _, err := client.Search(ctx, "x", 0); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := client.GetPopular(ctx, -1); err == nil {
		t.Error("expected error for negative page")
	}
	if _, err := client.listPage(ctx, catalog.Category("trending"), 1); err == nil {
		t.Error("expected error for unknown category")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

func TestGetMovie(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":550,"title":"Fight Club","runtime":139,"imdb_id":"tt0137523",
			"genres":[{"id":18,"name":"Drama"},{"id":53,"name":"Thriller"}]}`)
	}))

	details, err := client.GetMovie(context.Background(), 550)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Title != "Fight Club" || details.Runtime != 139 {
		t.Errorf("unexpected details: %+v", details)
	}
	if got := details.GenreNames(); got != "Drama, Thriller" {
		t.Errorf("GenreNames() = %q", got)
	}
}

func TestPageCaching(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(w, pageBody(1, 1, "Test"))
	}))

	ctx := context.Background()
	if _, err := client.GetPopular(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := client.GetPopular(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 server call (cache hit), got %d", calls.Load())
	}

	if _, err := client.GetPopular(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("different page must miss the cache, got %d calls", calls.Load())
	}
}

// mapCache is an in-memory PageCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok
}

func (m *mapCache) Put(key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	return nil
}

func TestDiskCache(t *testing.T) {
	t.Parallel()
	disk := &mapCache{data: map[string][]byte{}}
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(w, pageBody(1, 4, "Alien"))
	})

	first := newTestClient(t, handler, WithPageCache(disk))
	if _, err := first.GetTopRated(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(disk.data) != 1 {
		t.Fatalf("expected page persisted to disk cache, got %d entries", len(disk.data))
	}
	for key := range disk.data {
		if strings.Contains(key, "test-key") {
			t.Errorf("cache key leaks api key: %s", key)
		}
	}

	// A fresh client (empty memory cache) is served from disk.
	second := newTestClient(t, handler, WithPageCache(disk))
	p, err := second.GetTopRated(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Movies[0].Title != "Alien" {
		t.Errorf("unexpected cached page: %+v", p)
	}
	if calls.Load() != 1 {
		t.Errorf("expected disk hit, got %d server calls", calls.Load())
	}
}

func TestDecodeFailureIsNotCached(t *testing.T) {
	t.Parallel()
	disk := &mapCache{data: map[string][]byte{}}
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"page":1,"results":[]}`)
	}), WithPageCache(disk))

	for range 2 {
		_, err := client.GetUpcoming(context.Background(), 1)
		var de *catalog.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if de.Key != "total_pages" {
			t.Errorf("decode key = %q, want total_pages", de.Key)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("failed decodes must not be cached, got %d calls", calls.Load())
	}
	if len(disk.data) != 0 {
		t.Error("failed decode persisted to disk cache")
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`)
	}))

	_, err := client.Search(context.Background(), "test", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Invalid API key: You must be granted a valid key." {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAPIError_PlainBody(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "not found\n")
	}))

	_, err := client.GetMovie(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestPosterURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path   string
		size   string
		expect string
	}{
		{"/abc123.jpg", "w500", "https://image.tmdb.org/t/p/w500/abc123.jpg"},
		{"", "w500", ""},
		{"/poster.jpg", "original", "https://image.tmdb.org/t/p/original/poster.jpg"},
	}
	for _, tt := range tests {
		if got := PosterURL(tt.path, tt.size); got != tt.expect {
			t.Errorf("PosterURL(%q, %q) = %q, want %q", tt.path, tt.size, got, tt.expect)
		}
	}
}

func TestMemCacheExpiry(t *testing.T) {
	t.Parallel()
	c := newMemCache[int](time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %d, %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed, len = %d", c.Len())
	}
}
