package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/core"
	"github.com/vadimtrunov/cinelist/internal/listing"
)

// newBrowseCmd returns the "browse" subcommand for the interactive list browser.
func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse movie lists interactively",
		Long: "Open a full-screen browser over the TMDb movie lists.\n" +
			"Scrolling past the last row loads the next page; / searches, f filters loaded titles.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBrowse()
		},
	}
}

func runBrowse() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := config.SetupLogger(cfg.App.LogLevel, logFile)
	client, cleanup, err := initCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := newBrowseModel(ctx, client, client, cfg.DefaultCategory(), logger)
	defer m.closeAll()

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Bridge OS signal cancellation into the Bubble Tea event loop.
	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()

	final, err := p.Run()
	if bm, ok := final.(browseModel); ok {
		bm.closeAll()
	}
	if err != nil {
		return fmt.Errorf("run browse: %w", err)
	}
	return nil
}

// listChangedMsg reports that at least one controller published a new state.
type listChangedMsg struct{}

// showDetailsMsg is a movie selection routed out of a controller.
type showDetailsMsg struct {
	id int
}

// detailsMsg carries a fetched movie record back to the TUI.
type detailsMsg struct {
	id      int
	details *catalog.MovieDetails
	err     error
}

// browseEvents bridges controller callbacks into the Bubble Tea loop. Sends
// never block, so a controller can be closed from Update.
type browseEvents struct {
	changed chan struct{}
	details chan int
}

func newBrowseEvents() *browseEvents {
	return &browseEvents{
		changed: make(chan struct{}, 1),
		details: make(chan int, 1),
	}
}

// notify is the controller observer. The UI pulls the state itself, so a
// pending signal already covers this change.
func (e *browseEvents) notify(listing.State) {
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

// ShowMovieDetails implements core.Router.
func (e *browseEvents) ShowMovieDetails(id int) {
	select {
	case e.details <- id:
	default:
	}
}

// wait returns a command that blocks for the next event. Handlers re-arm it.
func (e *browseEvents) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-e.changed:
			return listChangedMsg{}
		case id := <-e.details:
			return showDetailsMsg{id: id}
		}
	}
}

// listView is one controller and the UI state around it.
type listView struct {
	ctrl   *listing.Controller
	state  listing.State
	cursor int
	offset int
}

type browseMode int

const (
	modeList browseMode = iota
	modeSearchInput
	modeFilterInput
	modeDetails
)

// searchTab marks the search results as the active view.
const searchTab = -1

// browseModel is the Bubble Tea model for the list browser.
type browseModel struct {
	ctx     context.Context
	movies  core.MovieService
	details core.MovieDetailsProvider
	logger  *slog.Logger
	keys    browseKeyMap
	events  *browseEvents

	tabs   []*listView
	search *listView // nil until the first search
	active int

	mode    browseMode
	input   textinput.Model
	spinner spinner.Model

	filter   string
	filtered []int // indices into the active movies; nil without a filter

	detailID      int
	detail        *catalog.MovieDetails
	detailErr     error
	detailLoading bool

	width  int
	height int
}

func newBrowseModel(
	ctx context.Context,
	movies core.MovieService,
	details core.MovieDetailsProvider,
	start catalog.Category,
	logger *slog.Logger,
) browseModel {
	events := newBrowseEvents()

	m := browseModel{
		ctx:     ctx,
		movies:  movies,
		details: details,
		logger:  logger,
		keys:    defaultBrowseKeys(),
		events:  events,
	}
	for i, category := range catalog.Categories() {
		v := m.newView(category)
		m.tabs = append(m.tabs, v)
		if category == start {
			m.active = i
		}
	}

	ti := textinput.New()
	ti.CharLimit = 200
	m.input = ti

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleInfo
	m.spinner = s

	return m
}

func (m browseModel) newView(category catalog.Category) *listView {
	ctrl := listing.New(category, m.movies, m.events, m.logger)
	ctrl.Subscribe(m.events.notify)
	return &listView{ctrl: ctrl, state: ctrl.State()}
}

// Init loads the starting list and listens for controller events.
func (m browseModel) Init() tea.Cmd {
	ctrl := m.tabs[m.active].ctrl
	return tea.Batch(
		m.events.wait(),
		m.spinner.Tick,
		func() tea.Msg {
			ctrl.FetchMovies()
			return nil
		},
	)
}

// Update handles incoming messages and user input.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampCursor()
		return m, nil

	case listChangedMsg:
		m.refresh()
		return m, m.events.wait()

	case showDetailsMsg:
		m.mode = modeDetails
		m.detailID = msg.id
		m.detail, m.detailErr = nil, nil
		m.detailLoading = true
		return m, tea.Batch(m.events.wait(), m.fetchDetails(msg.id))

	case detailsMsg:
		if msg.id == m.detailID {
			m.detail, m.detailErr = msg.details, msg.err
			m.detailLoading = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearchInput:
		return m.handleSearchInput(msg)
	case modeFilterInput:
		return m.handleFilterInput(msg)
	case modeDetails:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.closeAll()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.mode = modeList
		}
		return m, nil
	}

	v := m.current()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeAll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		v.cursor = 0
		m.clampCursor()
	case key.Matches(msg, m.keys.End):
		v.cursor = len(m.rows()) - 1
		m.clampCursor()
		m.maybeLoadMore()
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(1)
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab(-1)
	case key.Matches(msg, m.keys.Open):
		if movie, ok := m.selected(); ok {
			v.ctrl.DidTapOnMovie(movie.ID)
		}
	case key.Matches(msg, m.keys.Back):
		m.clearFilter()
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearchInput
		m.input.Placeholder = "Search movies..."
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Filter):
		m.mode = modeFilterInput
		m.input.Placeholder = "Filter loaded titles..."
		m.input.SetValue(m.filter)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Refresh):
		m.clearFilter()
		v.cursor, v.offset = 0, 0
		v.ctrl.GoToPage(1)
	case key.Matches(msg, m.keys.More):
		v.ctrl.NextPage()
	}
	return m, nil
}

func (m browseModel) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.closeAll()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeList
		m.input.Blur()
		if keyword := strings.TrimSpace(m.input.Value()); keyword != "" {
			m.startSearch(keyword)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.closeAll()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input.Blur()
		m.clearFilter()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeList
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.applyFilter(m.input.Value())
	return m, cmd
}

// startSearch replaces the search controller, so every search starts at page 1.
func (m *browseModel) startSearch(keyword string) {
	if m.search != nil {
		m.search.ctrl.Close()
	}
	v := m.newView(catalog.Popular)
	v.ctrl.SetSearchKeyword(keyword)
	v.ctrl.Search()
	v.state = v.ctrl.State()

	m.search = v
	m.active = searchTab
	m.clearFilter()
}

// switchTab cycles through the category lists and, once it exists, the search view.
func (m *browseModel) switchTab(delta int) {
	n := len(m.tabs)
	if m.search != nil {
		n++
	}
	idx := m.active
	if idx == searchTab {
		idx = len(m.tabs)
	}
	idx = ((idx+delta)%n + n) % n
	if idx == len(m.tabs) {
		m.active = searchTab
	} else {
		m.active = idx
	}
	m.clearFilter()

	v := m.current()
	v.state = v.ctrl.State()
	if !v.state.Loaded && !v.state.Loading {
		v.ctrl.FetchMovies()
	}
}

func (m browseModel) current() *listView {
	if m.active == searchTab && m.search != nil {
		return m.search
	}
	if m.active == searchTab {
		return m.tabs[0]
	}
	return m.tabs[m.active]
}

func (m *browseModel) views() []*listView {
	if m.search == nil {
		return m.tabs
	}
	return append(append([]*listView(nil), m.tabs...), m.search)
}

// refresh pulls the latest snapshot of every list.
func (m *browseModel) refresh() {
	for _, v := range m.views() {
		if st := v.ctrl.State(); st.Version >= v.state.Version {
			v.state = st
		}
	}
	if m.filter != "" {
		m.applyFilter(m.filter)
	}
	m.clampCursor()
}

// rows returns the indices of the visible movies in display order.
func (m browseModel) rows() []int {
	if m.filtered != nil {
		return m.filtered
	}
	movies := m.current().state.Movies
	idx := make([]int, len(movies))
	for i := range movies {
		idx[i] = i
	}
	return idx
}

func (m browseModel) selected() (catalog.MovieSummary, bool) {
	v := m.current()
	rows := m.rows()
	if v.cursor < 0 || v.cursor >= len(rows) {
		return catalog.MovieSummary{}, false
	}
	return v.state.Movies[rows[v.cursor]], true
}

// applyFilter fuzzy-matches query against the titles loaded so far.
func (m *browseModel) applyFilter(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		m.clearFilter()
		return
	}
	movies := m.current().state.Movies
	lowerTitles := make([]string, len(movies))
	for i, movie := range movies {
		lowerTitles[i] = strings.ToLower(movie.Title)
	}
	matches := fuzzy.Find(strings.ToLower(query), lowerTitles)

	if query != m.filter {
		v := m.current()
		v.cursor, v.offset = 0, 0
	}
	m.filter = query
	m.filtered = make([]int, len(matches))
	for i, match := range matches {
		m.filtered[i] = match.Index
	}
	m.clampCursor()
}

func (m *browseModel) clearFilter() {
	m.filter = ""
	m.filtered = nil
	m.clampCursor()
}

func (m *browseModel) moveCursor(delta int) {
	v := m.current()
	v.cursor += delta
	m.clampCursor()
	if delta > 0 {
		m.maybeLoadMore()
	}
}

// maybeLoadMore requests the next page once the cursor sits on the last row.
func (m *browseModel) maybeLoadMore() {
	v := m.current()
	if m.filtered != nil || v.state.Loading || !v.state.HasMore() {
		return
	}
	if v.cursor >= len(v.state.Movies)-1 {
		v.ctrl.NextPage()
	}
}

func (m *browseModel) clampCursor() {
	v := m.current()
	n := len(m.rows())
	v.cursor = max(min(v.cursor, n-1), 0)

	h := m.listHeight()
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+h {
		v.offset = v.cursor - h + 1
	}
	v.offset = max(min(v.offset, n-h), 0)
}

// listHeight is the number of movie rows that fit between header and footer.
func (m browseModel) listHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(m.height-7, 3)
}

func (m browseModel) fetchDetails(id int) tea.Cmd {
	ctx, provider := m.ctx, m.details
	return func() tea.Msg {
		d, err := provider.GetMovie(ctx, id)
		return detailsMsg{id: id, details: d, err: err}
	}
}

// closeAll closes every controller. It is safe to call more than once.
func (m browseModel) closeAll() {
	for _, v := range m.views() {
		v.ctrl.Close()
	}
}

// View renders the current screen.
func (m browseModel) View() string {
	if m.mode == modeDetails {
		return m.detailsView()
	}

	var b strings.Builder
	b.WriteString(m.tabsView())
	b.WriteString("\n")

	v := m.current()
	rows := m.rows()
	switch {
	case len(rows) == 0 && v.state.Loaded && v.state.Err == nil:
		if m.filter != "" {
			b.WriteString(styleDim.Render("No loaded titles match the filter."))
		} else {
			b.WriteString(styleDim.Render("No movies found."))
		}
		b.WriteString("\n")
	case len(rows) == 0:
		b.WriteString("\n")
	default:
		end := min(v.offset+m.listHeight(), len(rows))
		for i := v.offset; i < end; i++ {
			b.WriteString(m.rowView(i, v.state.Movies[rows[i]], i == v.cursor))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")

	if m.mode == modeSearchInput || m.mode == modeFilterInput {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(helpView(m.keys.listHelp()))
	}
	return b.String()
}

func (m browseModel) tabsView() string {
	parts := make([]string, 0, len(m.tabs)+1)
	for i, v := range m.tabs {
		label := v.ctrl.Category().Title()
		if i == m.active {
			parts = append(parts, styleSelected.Render("["+label+"]"))
		} else {
			parts = append(parts, styleDim.Render(" "+label+" "))
		}
	}
	if m.search != nil {
		label := fmt.Sprintf("Search %q", strings.TrimSpace(m.search.state.SearchKeyword))
		if m.active == searchTab {
			parts = append(parts, styleSelected.Render("["+label+"]"))
		} else {
			parts = append(parts, styleDim.Render(" "+label+" "))
		}
	}
	return styleHeader.Render("cinelist") + "\n" + strings.Join(parts, " ")
}

func (m browseModel) rowView(i int, movie catalog.MovieSummary, selected bool) string {
	num := styleDim.Render(fmt.Sprintf("%3d.", i+1))
	if selected {
		return styleSelected.Render("›") + num + " " + styleSelected.Render(movie.Title) + movieMeta(movie)
	}
	return " " + num + " " + movie.Title + movieMeta(movie)
}

func (m browseModel) statusView() string {
	st := m.current().state
	var parts []string
	if st.Loading {
		parts = append(parts, m.spinner.View()+styleDim.Render(" loading"))
	}
	if st.Loaded {
		parts = append(parts, styleDim.Render(fmt.Sprintf("page %d of %d · %d results",
			st.CurrentPage, max(st.TotalPages, 1), st.TotalResults)))
	}
	if m.filter != "" {
		parts = append(parts, styleInfo.Render(fmt.Sprintf("filter %q: %d of %d", m.filter, len(m.filtered), len(st.Movies))))
	}
	if st.ErrorMessage != "" {
		parts = append(parts, styleError.Render("Error: "+st.ErrorMessage))
	}
	return strings.Join(parts, "  ")
}

func (m browseModel) detailsView() string {
	var b strings.Builder
	switch {
	case m.detailLoading:
		b.WriteString(m.spinner.View() + styleDim.Render(" Loading details..."))
	case m.detailErr != nil:
		b.WriteString(styleError.Render("Could not load movie: " + m.detailErr.Error()))
	case m.detail != nil:
		b.WriteString(renderMovieDetails(m.detail, m.width))
	}
	b.WriteString("\n\n")
	b.WriteString(helpView(m.keys.detailsHelp()))
	return b.String()
}

// renderMovieDetails formats a movie record for the terminal.
func renderMovieDetails(d *catalog.MovieDetails, width int) string {
	var b strings.Builder

	title := d.Title
	if len(d.ReleaseDate) >= 4 {
		title += " (" + d.ReleaseDate[:4] + ")"
	}
	b.WriteString(styleHeader.Render(title))
	b.WriteString("\n")
	if d.Tagline != "" {
		b.WriteString(lipgloss.NewStyle().Italic(true).Render(d.Tagline))
		b.WriteString("\n")
	}

	var facts []string
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%d min", d.Runtime))
	}
	if genres := d.GenreNames(); genres != "" {
		facts = append(facts, genres)
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	if len(facts) > 0 {
		b.WriteString(styleDim.Render(strings.Join(facts, " · ")))
		b.WriteString("\n")
	}
	if d.VoteAverage > 0 {
		b.WriteString(styleRating.Render(fmt.Sprintf("★ %.1f/10", d.VoteAverage)))
		b.WriteString("\n")
	}

	if d.Overview != "" {
		wrap := lipgloss.NewStyle()
		if width > 4 {
			wrap = wrap.Width(min(width-2, 100))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(d.Overview))
		b.WriteString("\n")
	}
	if d.IMDbID != "" {
		b.WriteString("\n")
		b.WriteString(styleDim.Render("https://www.imdb.com/title/" + d.IMDbID))
	}
	return b.String()
}

func helpView(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return styleDim.Render(strings.Join(parts, " • "))
}
