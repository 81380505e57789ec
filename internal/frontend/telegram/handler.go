package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/core"
	"github.com/vadimtrunov/cinelist/internal/listing"
	"github.com/vadimtrunov/cinelist/internal/metadata/tmdb"
)

const (
	unauthorizedMsg = "Sorry, you are not authorized to use this bot."
	errorMsg        = "An error occurred while processing your request. Please try again."
	resetMsg        = "List closed. Pick a category or send a title to search."
	noListMsg       = "Nothing to page through yet. Try /popular or send a title."
	noMoreMsg       = "That was the last page."
	searchUsageMsg  = "Usage: /search <title or keyword>"
)

const helpMsg = `Browse TMDb movies:
/popular - popular right now
/nowplaying - in theatres
/upcoming - coming soon
/toprated - best rated
/search <keyword> - search by title
/more - next page of the current list
/reset - close the current list

Any other text is searched as a title. Tap a movie for details.`

// commandCategories maps list commands to categories.
var commandCategories = map[string]catalog.Category{
	"popular":    catalog.Popular,
	"nowplaying": catalog.NowPlaying,
	"upcoming":   catalog.Upcoming,
	"toprated":   catalog.TopRated,
}

// parseCommand splits "/cmd@bot args" into ("cmd", "args"). ok is false for
// plain text.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// handleMessage processes an incoming text message.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	logger := config.LoggerFromContext(ctx)
	logger.Debug("received message",
		slog.Int64("user_id", userID),
	)

	if !b.sessions.isAllowed(userID) {
		b.sendText(chatID, unauthorizedMsg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, args, isCommand := parseCommand(text)
	if !isCommand {
		b.startList(ctx, chatID, b.deps.DefaultCategory, text)
		return
	}

	switch cmd {
	case "start", "help":
		b.sendText(chatID, helpMsg)
	case "search":
		if args == "" {
			b.sendText(chatID, searchUsageMsg)
			return
		}
		b.startList(ctx, chatID, b.deps.DefaultCategory, args)
	case "more":
		b.nextPage(chatID)
	case "reset":
		b.sessions.reset(chatID)
		b.sendText(chatID, resetMsg)
	default:
		category, ok := commandCategories[cmd]
		if !ok {
			b.sendText(chatID, helpMsg)
			return
		}
		b.startList(ctx, chatID, category, "")
	}
}

// handleCallback processes inline keyboard callback queries.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	logger := config.LoggerFromContext(ctx)
	logger.Debug("received callback",
		slog.Int64("user_id", userID),
		slog.String("data", cq.Data),
	)

	// Acknowledge the callback immediately.
	b.api.Request(tgbotapi.NewCallback(cq.ID, "")) //nolint:errcheck // best-effort ack

	if !b.sessions.isAllowed(userID) {
		return
	}

	switch {
	case cq.Data == moreData:
		// Drop the button from the page that was just extended.
		removeKB := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		b.api.Request(removeKB) //nolint:errcheck
		b.nextPage(chatID)

	case strings.HasPrefix(cq.Data, detailsPrefix):
		id, err := strconv.Atoi(strings.TrimPrefix(cq.Data, detailsPrefix))
		if err != nil {
			logger.Warn("invalid callback data", slog.String("data", cq.Data))
			return
		}
		if s, ok := b.sessions.get(chatID); ok {
			if ctrl := s.controller(); ctrl != nil {
				ctrl.DidTapOnMovie(id)
				return
			}
		}
		// No live list (e.g. after a restart): show the details directly.
		b.showDetails(ctx, chatID, id)
	}
}

// startList replaces the chat's list with a fresh controller for category,
// searching keyword when it is non-empty.
func (b *Bot) startList(ctx context.Context, chatID int64, category catalog.Category, keyword string) {
	router := core.RouterFunc(func(id int) { b.showDetails(ctx, chatID, id) })
	ctrl := listing.New(category, b.deps.Movies, router, config.LoggerFromContext(ctx))

	session := b.sessions.getOrCreate(chatID)
	session.replace(ctrl, func(v pageView) { b.sendView(chatID, v) })

	b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)) //nolint:errcheck // best-effort typing indicator

	if keyword != "" {
		ctrl.SetSearchKeyword(keyword)
		ctrl.Search()
		return
	}
	ctrl.FetchMovies()
}

// nextPage advances the chat's list; the new movies arrive through the observer.
func (b *Bot) nextPage(chatID int64) {
	s, ok := b.sessions.get(chatID)
	if !ok || s.controller() == nil {
		b.sendText(chatID, noListMsg)
		return
	}
	if !s.controller().NextPage() {
		b.sendText(chatID, noMoreMsg)
	}
}

// showDetails fetches and sends the details of movie id.
func (b *Bot) showDetails(ctx context.Context, chatID int64, id int) {
	if b.deps.Details == nil {
		b.sendText(chatID, errorMsg)
		return
	}
	details, err := b.deps.Details.GetMovie(ctx, id)
	if err != nil {
		config.LoggerFromContext(ctx).Error("get movie details failed",
			slog.Int("movie_id", id),
			slog.String("error", err.Error()),
		)
		b.sendText(chatID, errorMsg)
		return
	}

	b.sendPoster(chatID, details.PosterPath, details.Title)

	msg := tgbotapi.NewMessage(chatID, renderDetails(details))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		config.LoggerFromContext(ctx).Warn("failed to send markdown, retrying plain",
			slog.String("error", err.Error()),
		)
		b.sendText(chatID, details.Title+"\n\n"+details.Overview)
	}
}

// sendView sends a rendered list page with its keyboard.
func (b *Bot) sendView(chatID int64, v pageView) {
	msg := tgbotapi.NewMessage(chatID, v.Text)
	if v.Keyboard != nil {
		msg.ReplyMarkup = v.Keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send list page",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendText sends a plain text message (no parse mode).
func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendPoster sends a movie poster photo with a caption.
func (b *Bot) sendPoster(chatID int64, posterPath, caption string) {
	url := tmdb.PosterURL(posterPath, "w500")
	if url == "" {
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Debug("failed to send poster",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}
