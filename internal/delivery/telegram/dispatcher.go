package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("notification queue full")

type sender interface {
	Notify(telegramUserID int64, text string) error
}

type DispatcherConfig struct {
	QueueSize  int
	Attempts   int
	RetryDelay time.Duration
}

// Dispatcher delivers trigger notifications on the telegram channel. Dispatch
// only enqueues; Run drains the queue and retries failed sends.
type Dispatcher struct {
	users  domain.UserRepository
	sender sender
	logger *zap.Logger

	attempts   int
	retryDelay time.Duration
	queue      chan domain.Notification
}

func NewDispatcher(users domain.UserRepository, sender sender, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Dispatcher{
		users:      users,
		sender:     sender,
		logger:     logger.Named("dispatcher"),
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		queue:      make(chan domain.Notification, cfg.QueueSize),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification) error {
	select {
	case d.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is cancelled. Notifications
// still queued at that point are flushed once without retries.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return
		case n := <-d.queue:
			d.deliver(ctx, n, d.attempts)
		}
	}
}

func (d *Dispatcher) flush() {
	ctx := context.Background()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n, 1)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification, attempts int) {
	if !n.Channels.Any() {
		d.logger.Debug("notification has no channels", zap.Uint("alert_id", n.AlertID))
		return
	}
	for _, channel := range unsupportedChannels(n.Channels) {
		d.logger.Info("channel not handled by this dispatcher", zap.String("channel", channel), zap.Uint("alert_id", n.AlertID), zap.String("notification_id", n.ID))
	}
	if !n.Channels.Telegram {
		return
	}

	user, err := d.users.GetByID(ctx, n.UserID)
	if err != nil {
		d.logger.Warn("notification owner lookup failed", zap.Uint("user_id", n.UserID), zap.Uint("alert_id", n.AlertID), zap.Error(err))
		return
	}

	text := renderNotification(n)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = d.sender.Notify(user.TelegramUserID, text)
		if err == nil {
			d.logger.Info("notification delivered", zap.Uint("alert_id", n.AlertID), zap.String("notification_id", n.ID), zap.Int("attempt", attempt))
			return
		}
		d.logger.Warn("notification send failed", zap.Uint("alert_id", n.AlertID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryDelay * time.Duration(attempt)):
		}
	}
	d.logger.Error("notification dropped", zap.Uint("alert_id", n.AlertID), zap.String("notification_id", n.ID), zap.Error(err))
}

func renderNotification(n domain.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return fmt.Sprintf("🔔 %s\n%s", n.Title, n.Message)
}

func unsupportedChannels(c domain.Channels) []string {
	var out []string
	if c.Email {
		out = append(out, "email")
	}
	if c.Webhook {
		out = append(out, "webhook")
	}
	if c.Push {
		out = append(out, "push")
	}
	return out
}
