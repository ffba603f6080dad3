package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
	logger      *zap.Logger
}

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int, logger *zap.Logger) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout, logger: logger.Named("bot")}
}

// Start long-polls for commands until ctx is cancelled. Only message updates
// are requested; the bot has no inline or callback surface.
func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	config.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(config)
	b.logger.Info("bot polling", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()
	b.handlers.HandleUpdate(ctx, b.api, update)
}

// Notifier sends alert messages to a private chat, which shares its id with
// the telegram user.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) Notify(telegramUserID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramUserID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", telegramUserID, err)
	}
	return nil
}
