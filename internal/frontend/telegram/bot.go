package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/core"
)

// botAPI is the subset of *tgbotapi.BotAPI used to talk to chats.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the catalog collaborators the bot drives.
type Deps struct {
	Movies          core.MovieService
	Details         core.MovieDetailsProvider
	DefaultCategory catalog.Category
}

// Bot is the Telegram frontend for cinelist.
type Bot struct {
	api      botAPI
	poller   *tgbotapi.BotAPI
	sessions *sessionManager
	deps     Deps
	logger   *slog.Logger
}

// New creates a new Telegram Bot.
func New(token string, allowedUserIDs []int64, deps Deps, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := newBot(api, allowedUserIDs, deps, logger)
	b.poller = api
	return b, nil
}

func newBot(api botAPI, allowedUserIDs []int64, deps Deps, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.DefaultCategory == "" {
		deps.DefaultCategory = catalog.Popular
	}
	return &Bot{
		api:      api,
		sessions: newSessionManager(allowedUserIDs),
		deps:     deps,
		logger:   logger,
	}
}

// Start starts the long-polling loop. It blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return fmt.Errorf("telegram bot has no API connection")
	}

	b.logger.Info("telegram bot started",
		slog.String("username", b.poller.Self.UserName),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.poller.GetUpdatesChan(u)
	defer b.poller.StopReceivingUpdates()

	return b.serve(ctx, updates)
}

// serve handles updates until ctx is canceled or updates is closed. It
// returns only after every handler has finished and all sessions are closed.
func (b *Bot) serve(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var handlers sync.WaitGroup
	defer func() {
		handlers.Wait()
		b.sessions.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handlers.Add(1)
			go func() {
				defer handlers.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// handleUpdate dispatches an incoming Telegram update with a chat-scoped
// logger in ctx.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if chat := update.FromChat(); chat != nil {
		ctx = config.ContextWithLogger(ctx, b.logger.With(slog.Int64("chat_id", chat.ID)))
	} else {
		ctx = config.ContextWithLogger(ctx, b.logger)
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
