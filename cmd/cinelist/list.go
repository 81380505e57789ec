package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/listing"
)

func newListCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "list [category]",
		Short: "List movies in a category",
		Long: "Fetch one or more pages of a TMDb movie list and print them.\n" +
			"Categories: popular, now_playing, upcoming, top_rated (defaults to browse.default_category).",
		Example: `  cinelist list
  cinelist list top_rated --pages 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			}
			return runList(cmd.Context(), raw, "", pages)
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to fetch")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search movies by keyword",
		Example: `  cinelist search blade runner
  cinelist search dune --pages 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), "", strings.Join(args, " "), pages)
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to fetch")
	return cmd
}

// runList drives a list controller synchronously and prints the accumulated list.
func runList(parent context.Context, rawCategory, keyword string, pages int) error {
	if pages < 1 {
		return fmt.Errorf("--pages must be at least 1, got %d", pages)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	category := cfg.DefaultCategory()
	if rawCategory != "" {
		if category, err = catalog.ParseCategory(rawCategory); err != nil {
			return err
		}
	}

	logger := config.SetupLogger(cfg.App.LogLevel, os.Stderr)
	client, cleanup, err := initCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl := listing.New(category, client, nil, logger)
	defer ctrl.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		ctrl.Close()
	}()

	var st listing.State
	if term.IsTerminal(int(os.Stderr.Fd())) {
		p := tea.NewProgram(newFetchModel(ctrl, keyword, pages), tea.WithOutput(os.Stderr))
		m, err := p.Run()
		if err != nil {
			return fmt.Errorf("run list: %w", err)
		}
		fm, ok := m.(fetchModel)
		if !ok {
			return fmt.Errorf("unexpected model type from tea program")
		}
		if !fm.done {
			return context.Canceled
		}
		st = fm.state
	} else {
		// No spinner when stderr is piped or redirected.
		st = collectPages(ctrl, keyword, pages)
	}

	printList(os.Stdout, st)
	if st.Err != nil && len(st.Movies) == 0 {
		return st.Err
	}
	return nil
}

// collectPages loads up to pages pages through ctrl, stopping early at the
// last page or on the first error.
func collectPages(ctrl *listing.Controller, keyword string, pages int) listing.State {
	if keyword != "" {
		ctrl.SetSearchKeyword(keyword)
		ctrl.Search()
	} else {
		ctrl.FetchMovies()
	}
	ctrl.Wait()

	for i := 1; i < pages; i++ {
		if ctrl.State().Err != nil || !ctrl.NextPage() {
			break
		}
		ctrl.Wait()
	}
	return ctrl.State()
}

// printList writes a numbered list of st.Movies with a summary footer.
func printList(w io.Writer, st listing.State) {
	header := st.Category.Title()
	if st.Searching() {
		header = fmt.Sprintf("Search %q", strings.TrimSpace(st.SearchKeyword))
	}
	fmt.Fprintln(w, styleHeader.Render(header))

	if len(st.Movies) == 0 && st.Err == nil {
		fmt.Fprintln(w, styleDim.Render("No movies found."))
		return
	}

	for i, m := range st.Movies {
		fmt.Fprintf(w, "%s %s%s\n",
			styleDim.Render(fmt.Sprintf("%3d.", i+1)),
			styleTitle.Render(m.Title),
			movieMeta(m),
		)
	}

	fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("\npage %d of %d, %d results",
		st.CurrentPage, max(st.TotalPages, 1), st.TotalResults)))
	if st.Err != nil {
		fmt.Fprintln(w, styleError.Render("Error: "+st.ErrorMessage))
	}
}

// movieMeta renders " (year) ★ 7.8", omitting missing parts.
func movieMeta(m catalog.MovieSummary) string {
	var b strings.Builder
	if len(m.ReleaseDate) >= 4 {
		b.WriteString(styleDim.Render(" (" + m.ReleaseDate[:4] + ")"))
	}
	if m.VoteAverage != nil {
		b.WriteString(styleRating.Render(fmt.Sprintf(" ★ %.1f", *m.VoteAverage)))
	}
	return b.String()
}

// fetchDoneMsg carries the collected state back to the TUI.
type fetchDoneMsg struct {
	state listing.State
}

// fetchModel shows a spinner while pages are collected.
type fetchModel struct {
	ctrl    *listing.Controller
	keyword string
	pages   int
	spinner spinner.Model
	state   listing.State
	done    bool
}

func newFetchModel(ctrl *listing.Controller, keyword string, pages int) fetchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleInfo
	return fetchModel{
		ctrl:    ctrl,
		keyword: keyword,
		pages:   pages,
		spinner: s,
	}
}

func (m fetchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.collect())
}

func (m fetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case fetchDoneMsg:
		m.state = msg.state
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m fetchModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + styleDim.Render(" Loading...") + "\n"
}

func (m fetchModel) collect() tea.Cmd {
	return func() tea.Msg {
		return fetchDoneMsg{state: collectPages(m.ctrl, m.keyword, m.pages)}
	}
}
