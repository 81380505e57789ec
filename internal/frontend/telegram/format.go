package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/listing"
)

const (
	detailsPrefix  = "det:" // callback data prefix for a movie selection
	moreData       = "more" // callback data for the next page
	maxButtonLabel = 30     // max characters in inline keyboard button label
	maxOverview    = 600
)

// mdV2Replacer escapes special characters for Telegram MarkdownV2.
var mdV2Replacer = strings.NewReplacer(
	`\`, `\\`,
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMdV2 escapes a string for safe use in Telegram MarkdownV2.
func EscapeMdV2(s string) string {
	return mdV2Replacer.Replace(s)
}

// FormatBold returns MarkdownV2 bold text.
func FormatBold(s string) string {
	return "*" + EscapeMdV2(s) + "*"
}

// FormatItalic returns MarkdownV2 italic text.
func FormatItalic(s string) string {
	return "_" + EscapeMdV2(s) + "_"
}

// RatingBar renders a 0-10 vote average as a bar of the given width.
func RatingBar(vote float64, width int) string {
	if width < 1 {
		width = 10
	}
	filled := int(vote / 10 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %.1f/10",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		vote,
	)
}

// pageView is one outgoing chat message.
type pageView struct {
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// listHeader describes what a state is listing, e.g. `Search "dune"`.
func listHeader(st listing.State) string {
	if st.Searching() {
		return fmt.Sprintf("Search %q", strings.TrimSpace(st.SearchKeyword))
	}
	return st.Category.Title()
}

// renderMovies renders st.Movies[from:] as a numbered plain-text list with one
// details button per movie and a "more" button while pages remain.
func renderMovies(st listing.State, from int) pageView {
	if from < 0 {
		from = 0
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: page %d of %d, %d results\n\n",
		listHeader(st), st.CurrentPage, max(st.TotalPages, 1), st.TotalResults)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := from; i < len(st.Movies); i++ {
		m := st.Movies[i]
		n := i + 1
		fmt.Fprintf(&b, "%d. %s\n", n, movieLine(m))

		label := fmt.Sprintf("%d. %s", n, truncate(m.Title, maxButtonLabel))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, detailsPrefix+strconv.Itoa(m.ID)),
		))
	}

	if st.HasMore() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("More ›", moreData),
		))
	}

	view := pageView{Text: strings.TrimRight(b.String(), "\n")}
	if len(rows) > 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		view.Keyboard = &kb
	}
	return view
}

// movieLine is "Title (year) ★ 7.8" with absent parts omitted.
func movieLine(m catalog.MovieSummary) string {
	line := m.Title
	if len(m.ReleaseDate) >= 4 {
		line += " (" + m.ReleaseDate[:4] + ")"
	}
	if m.VoteAverage != nil {
		line += fmt.Sprintf(" ★ %.1f", *m.VoteAverage)
	}
	return line
}

// renderDetails formats a details message in MarkdownV2.
func renderDetails(d *catalog.MovieDetails) string {
	var b strings.Builder
	title := d.Title
	if len(d.ReleaseDate) >= 4 {
		title += " (" + d.ReleaseDate[:4] + ")"
	}
	b.WriteString(FormatBold(title))
	b.WriteString("\n")
	if d.Tagline != "" {
		b.WriteString(FormatItalic(d.Tagline))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var facts []string
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%d min", d.Runtime))
	}
	if g := d.GenreNames(); g != "" {
		facts = append(facts, g)
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	if len(facts) > 0 {
		b.WriteString(EscapeMdV2(strings.Join(facts, " · ")))
		b.WriteString("\n")
	}
	if d.VoteAverage > 0 {
		b.WriteString(EscapeMdV2(RatingBar(d.VoteAverage, 10)))
		b.WriteString("\n")
	}
	if d.Overview != "" {
		b.WriteString("\n")
		b.WriteString(EscapeMdV2(truncate(d.Overview, maxOverview)))
		b.WriteString("\n")
	}
	if d.IMDbID != "" {
		b.WriteString("\n")
		b.WriteString(EscapeMdV2("https://www.imdb.com/title/" + d.IMDbID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
