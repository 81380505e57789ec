// Package listing drives paginated movie lists for a UI.
//
// A Controller owns the accumulated list for one category. Fetches run
// asynchronously; their results are folded into the state in the order the
// requests were issued, and observers receive snapshots of the state as it
// changes.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/core"
)

// State is an immutable snapshot of a controller's list.
type State struct {
	Category      catalog.Category
	Movies        []catalog.MovieSummary
	CurrentPage   int
	TotalPages    int
	TotalResults  int
	SearchKeyword string
	Loading       bool
	// Loaded is set once any fetch has completed, successfully or not.
	Loaded bool

	// Err is the last *FetchError, nil after a successful fetch.
	Err error
	// ErrorMessage is Err.Error(), or "" when there is no error.
	ErrorMessage string

	// Version increases with every published change.
	Version uint64
}

// HasMore reports whether a page after CurrentPage is known to exist.
func (s State) HasMore() bool {
	return s.CurrentPage < s.TotalPages
}

// Searching reports whether page changes dispatch the search endpoint.
func (s State) Searching() bool {
	return strings.TrimSpace(s.SearchKeyword) != ""
}

// FetchError is the single failure kind recorded by a controller.
type FetchError struct {
	Op   string // "popular", "now_playing", ..., or "search"
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Op, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const opSearch = "search"

// request is one dispatched fetch.
type request struct {
	id         uint64
	generation uint64
	op         string
	page       int
	keyword    string
	cancel     context.CancelFunc
}

// Controller is the view-model for a single movie list.
type Controller struct {
	category catalog.Category
	service  core.MovieService
	router   core.Router
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	closed     bool
	generation uint64
	nextID     uint64
	inflight   map[uint64]*request
	tail       chan struct{} // closed when the newest request has been applied

	observers  map[int]func(State)
	nextObsID  int
	dirty      bool
	notifyCh   chan struct{}
	notifyDone chan struct{}
}

// New creates a controller for category. router may be nil. New performs no I/O;
// call FetchMovies to load the first page.
func New(category catalog.Category, service core.MovieService, router core.Router, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		category: category,
		service:  service,
		router:   router,
		logger:   logger.With(slog.String("category", string(category))),
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			Category:    category,
			CurrentPage: 1,
			TotalPages:  1,
		},
		inflight:   make(map[uint64]*request),
		observers:  make(map[int]func(State)),
		notifyCh:   make(chan struct{}, 1),
		notifyDone: make(chan struct{}),
	}
	go c.notifyLoop()
	return c
}

// Category returns the category this controller lists.
func (c *Controller) Category() catalog.Category { return c.category }

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetSearchKeyword stores the keyword used by Search and by page changes.
// It does not fetch.
func (c *Controller) SetSearchKeyword(keyword string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.SearchKeyword == keyword {
		return
	}
	c.state.SearchKeyword = keyword
	c.publishLocked()
}

// FetchMovies requests the current page of the controller's category.
func (c *Controller) FetchMovies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchLocked(string(c.category), "")
}

// Search requests the current page of results for the current keyword.
// With a blank keyword it behaves like FetchMovies.
func (c *Controller) Search() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchCurrentLocked()
}

// GoToPage moves to page n and fetches it, using the search endpoint when a
// keyword is set. Pages outside [1, TotalPages] are ignored and GoToPage
// returns false without fetching.
func (c *Controller) GoToPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToPageLocked(n)
}

// NextPage is GoToPage(CurrentPage + 1), decided and dispatched in one lock
// hold so concurrent callers advance one page each.
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToPageLocked(c.state.CurrentPage + 1)
}

func (c *Controller) goToPageLocked(n int) bool {
	if c.closed || n < 1 || n > c.state.TotalPages {
		return false
	}
	c.state.CurrentPage = n
	c.dispatchCurrentLocked()
	return true
}

// DidTapOnMovie forwards a selection to the router.
func (c *Controller) DidTapOnMovie(id int) {
	if c.router == nil {
		return
	}
	c.router.ShowMovieDetails(id)
}

// Subscribe registers fn to receive state snapshots. fn runs on the
// controller's notifier goroutine; intermediate states may be coalesced but
// snapshots arrive in Version order. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id) // no-op on the nil map after Close
	}
}

// Wait blocks until every dispatched request has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight requests and stops notifications. Completions that
// arrive afterwards do not touch the state. Close is idempotent and must not
// be called from an observer.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, r := range c.inflight {
		r.cancel()
	}
	c.observers = nil
	c.mu.Unlock()

	c.cancel()
	close(c.notifyCh)
	<-c.notifyDone
}

func (c *Controller) dispatchCurrentLocked() {
	if keyword := strings.TrimSpace(c.state.SearchKeyword); keyword != "" {
		c.dispatchLocked(opSearch, keyword)
		return
	}
	c.dispatchLocked(string(c.category), "")
}

// dispatchLocked issues a request for the current page. A page-1 request
// starts a new generation and cancels everything still in flight.
func (c *Controller) dispatchLocked(op, keyword string) {
	if c.closed {
		return
	}

	page := c.state.CurrentPage
	if page == 1 {
		c.generation++
		for _, r := range c.inflight {
			r.cancel()
		}
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.nextID++
	req := &request{
		id:         c.nextID,
		generation: c.generation,
		op:         op,
		page:       page,
		keyword:    keyword,
		cancel:     cancel,
	}
	c.inflight[req.id] = req

	prev := c.tail
	done := make(chan struct{})
	c.tail = done

	c.state.Loading = true
	c.publishLocked()

	c.logger.Debug("dispatching fetch",
		slog.String("op", op),
		slog.Int("page", page),
		slog.Uint64("generation", req.generation),
	)

	c.wg.Add(1)
	go c.run(ctx, req, prev, done)
}

func (c *Controller) run(ctx context.Context, req *request, prev <-chan struct{}, done chan<- struct{}) {
	defer c.wg.Done()
	defer close(done)

	result, err := c.call(ctx, req)

	// Apply strictly after the previously issued request.
	if prev != nil {
		<-prev
	}
	c.apply(req, result, err)
}

func (c *Controller) call(ctx context.Context, req *request) (*catalog.MoviePage, error) {
	if req.op == opSearch {
		return c.service.Search(ctx, req.keyword, req.page)
	}
	return FetchCategory(ctx, c.service, catalog.Category(req.op), req.page)
}

// FetchCategory calls the service endpoint for category.
func FetchCategory(ctx context.Context, service core.MovieService, category catalog.Category, page int) (*catalog.MoviePage, error) {
	switch category {
	case catalog.Popular:
		return service.GetPopular(ctx, page)
	case catalog.NowPlaying:
		return service.GetNowPlaying(ctx, page)
	case catalog.Upcoming:
		return service.GetUpcoming(ctx, page)
	case catalog.TopRated:
		return service.GetTopRated(ctx, page)
	}
	return nil, fmt.Errorf("unknown category %q", category)
}

func (c *Controller) apply(req *request, result *catalog.MoviePage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req.cancel()
	delete(c.inflight, req.id)

	if c.closed {
		return
	}

	stale := req.generation != c.generation
	switch {
	case stale:
		c.logger.Debug("dropping superseded result",
			slog.String("op", req.op),
			slog.Int("page", req.page),
		)
	case err != nil:
		c.state.Loaded = true
		fetchErr := &FetchError{Op: req.op, Page: req.page, Err: err}
		c.state.Err = fetchErr
		c.state.ErrorMessage = fetchErr.Error()
		c.logger.Warn("fetch failed",
			slog.String("op", req.op),
			slog.Int("page", req.page),
			slog.String("error", err.Error()),
		)
	case result == nil:
		c.state.Loaded = true
		fetchErr := &FetchError{Op: req.op, Page: req.page, Err: fmt.Errorf("empty response")}
		c.state.Err = fetchErr
		c.state.ErrorMessage = fetchErr.Error()
	default:
		if req.page == 1 {
			c.state.Movies = nil
		}
		c.state.Movies = append(c.state.Movies, result.Movies...)
		c.state.TotalPages = result.TotalPages
		c.state.TotalResults = result.TotalResults
		c.state.Loaded = true
		c.state.Err = nil
		c.state.ErrorMessage = ""
	}

	c.state.Loading = len(c.inflight) > 0
	c.publishLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Movies = slices.Clone(c.state.Movies)
	return s
}

// publishLocked bumps the version and wakes the notifier.
func (c *Controller) publishLocked() {
	c.state.Version++
	c.dirty = true
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

// notifyLoop delivers the latest snapshot to observers, one delivery at a time.
func (c *Controller) notifyLoop() {
	defer close(c.notifyDone)
	for range c.notifyCh {
		c.mu.Lock()
		if c.closed || !c.dirty {
			c.mu.Unlock()
			continue
		}
		c.dirty = false
		snapshot := c.snapshotLocked()
		observers := make([]func(State), 0, len(c.observers))
		for _, fn := range c.observers {
			observers = append(observers, fn)
		}
		c.mu.Unlock()

		for _, fn := range observers {
			fn(snapshot)
		}
	}
}
