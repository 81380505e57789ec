package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/core"
	"github.com/vadimtrunov/cinelist/internal/httpclient"
)

const (
	// DefaultBaseURL is the TMDb v3 API root.
	DefaultBaseURL = "https://api.themoviedb.org/3"
	cacheTTL       = 15 * time.Minute
	imageBaseURL   = "https://image.tmdb.org/t/p/"
	maxErrorBody   = 4 << 10
)

// compile-time checks.
var (
	_ core.MovieService         = (*Client)(nil)
	_ core.MovieDetailsProvider = (*Client)(nil)
)

// PageCache persists raw list bodies, e.g. *store.PageStore.
type PageCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, body []byte) error
}

// APIError is a non-200 response from TMDb.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tmdb API error %d", e.StatusCode)
	}
	return fmt.Sprintf("tmdb API error %d: %s", e.StatusCode, e.Message)
}

// Client is a TMDb API v3 client for movie lists, search and details.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	region   string
	http     *httpclient.Client
	pages    *memCache[*catalog.MoviePage]
	details  *memCache[*catalog.MovieDetails]
	disk     PageCache
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (used by tests and proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the ISO 639-1 language sent with every request, e.g. "en-US".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithRegion sets the ISO 3166-1 region for now-playing and upcoming lists.
func WithRegion(region string) Option {
	return func(c *Client) { c.region = region }
}

// WithPageCache adds a second-level cache for list bodies.
func WithPageCache(pc PageCache) Option {
	return func(c *Client) { c.disk = pc }
}

// WithHTTPConfig replaces the retry/timeout configuration.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(c *Client) { c.http = httpclient.New(cfg, c.logger) }
}

// New creates a new TMDb client.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    httpclient.New(httpclient.DefaultConfig(), logger),
		pages:   newMemCache[*catalog.MoviePage](cacheTTL),
		details: newMemCache[*catalog.MovieDetails](cacheTTL),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPopular returns a page of /movie/popular.
func (c *Client) GetPopular(ctx context.Context, page int) (*catalog.MoviePage, error) {
	return c.listPage(ctx, catalog.Popular, page)
}

// GetNowPlaying returns a page of /movie/now_playing.
func (c *Client) GetNowPlaying(ctx context.Context, page int) (*catalog.MoviePage, error) {
	return c.listPage(ctx, catalog.NowPlaying, page)
}

// GetUpcoming returns a page of /movie/upcoming.
func (c *Client) GetUpcoming(ctx context.Context, page int) (*catalog.MoviePage, error) {
	return c.listPage(ctx, catalog.Upcoming, page)
}

// GetTopRated returns a page of /movie/top_rated.
func (c *Client) GetTopRated(ctx context.Context, page int) (*catalog.MoviePage, error) {
	return c.listPage(ctx, catalog.TopRated, page)
}

// Search returns a page of /search/movie for keyword.
func (c *Client) Search(ctx context.Context, keyword string, page int) (*catalog.MoviePage, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("search movies: keyword is required")
	}
	if page < 1 {
		return nil, fmt.Errorf("search movies: invalid page %d", page)
	}

	params := url.Values{
		"query": {keyword},
		"page":  {strconv.Itoa(page)},
	}
	p, err := c.fetchPage(ctx, "/search/movie", params)
	if err != nil {
		return nil, fmt.Errorf("search movies %q: %w", keyword, err)
	}
	return p, nil
}

// GetMovie retrieves full details for a movie by TMDb ID.
func (c *Client) GetMovie(ctx context.Context, id int) (*catalog.MovieDetails, error) {
	cacheKey := c.cacheKey(fmt.Sprintf("/movie/%d", id), nil)
	if d, ok := c.details.Get(cacheKey); ok {
		return d, nil
	}

	body, err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	var details catalog.MovieDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("get movie %d: decode: %w", id, err)
	}

	c.details.Set(cacheKey, &details)
	return &details, nil
}

// PosterURL returns the full URL for a poster path.
func PosterURL(posterPath, size string) string {
	if posterPath == "" {
		return ""
	}
	return imageBaseURL + size + posterPath
}

func endpoint(category catalog.Category) (string, bool) {
	switch category {
	case catalog.Popular, catalog.NowPlaying, catalog.Upcoming, catalog.TopRated:
		return "/movie/" + string(category), true
	}
	return "", false
}

func (c *Client) listPage(ctx context.Context, category catalog.Category, page int) (*catalog.MoviePage, error) {
	path, ok := endpoint(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if page < 1 {
		return nil, fmt.Errorf("get %s: invalid page %d", category, page)
	}

	params := url.Values{"page": {strconv.Itoa(page)}}
	if c.region != "" && (category == catalog.NowPlaying || category == catalog.Upcoming) {
		params.Set("region", c.region)
	}

	p, err := c.fetchPage(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("get %s page %d: %w", category, page, err)
	}
	return p, nil
}

// fetchPage resolves a list page through memory cache, disk cache, then network.
func (c *Client) fetchPage(ctx context.Context, path string, params url.Values) (*catalog.MoviePage, error) {
	key := c.cacheKey(path, params)
	if p, ok := c.pages.Get(key); ok {
		return p, nil
	}

	if c.disk != nil {
		if body, ok := c.disk.Get(key); ok {
			if p, err := catalog.DecodePage(body); err == nil {
				c.pages.Set(key, p)
				return p, nil
			}
			c.logger.Warn("discarding undecodable cached page", slog.String("key", key))
		}
	}

	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	p, err := catalog.DecodePage(body)
	if err != nil {
		return nil, err
	}

	c.pages.Set(key, p)
	if c.disk != nil {
		if err := c.disk.Put(key, body); err != nil {
			c.logger.Warn("failed to persist page", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return p, nil
}

// cacheKey identifies a request without the API key.
func (c *Client) cacheKey(path string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	if c.language != "" {
		q.Set("language", c.language)
	}
	return path + "?" + q.Encode()
}

// get performs an authenticated GET request and returns the response body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.logger.Debug("tmdb request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("elapsed", time.Since(start).String()),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func apiError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.StatusMessage != "" {
		apiErr.Message = payload.StatusMessage
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
