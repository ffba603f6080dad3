package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NasaVasa/alerty/internal/domain"
	"github.com/NasaVasa/alerty/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handlers struct {
	userUC  *usecase.UserUsecase
	alertUC *usecase.AlertUsecase
	logger  *zap.Logger
}

func NewHandlers(userUC *usecase.UserUsecase, alertUC *usecase.AlertUsecase, logger *zap.Logger) *Handlers {
	return &Handlers{userUC: userUC, alertUC: alertUC, logger: logger}
}

func (h *Handlers) HandleUpdate(ctx context.Context, api *tgbotapi.BotAPI, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.From == nil {
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update)
		return
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api *tgbotapi.BotAPI, update tgbotapi.Update) {
	command := update.Message.Command()
	args := update.Message.CommandArguments()
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	username := update.Message.From.UserName

	h.logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.Int64("telegram_user_id", userID),
		zap.String("username", username),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		user, err := h.userUC.StartOrGetUser(ctx, userID, username, args)
		if err != nil {
			h.logger.Warn("start command failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.logger.Info("start command complete", zap.Int64("telegram_user_id", userID), zap.Uint("user_id", user.ID))
		text := "Welcome to Alerty.\n\n"
		if user.WalletAddress != "" {
			text += fmt.Sprintf("Wallet: %s\n\n", user.WalletAddress)
		}
		h.reply(api, chatID, text+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "wallet":
		wallet, err := ParseWallet(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /wallet <0x address>")
			return
		}
		if err := h.userUC.LinkWallet(ctx, userID, wallet); err != nil {
			h.logger.Warn("wallet link failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.logger.Info("wallet linked", zap.Int64("telegram_user_id", userID))
		h.reply(api, chatID, "Wallet linked.")
	case "alerts":
		alerts, err := h.alertUC.ListAlerts(ctx, userID)
		if err != nil {
			h.logger.Warn("alerts list failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		if len(alerts) == 0 {
			h.reply(api, chatID, "No alerts yet.")
			return
		}
		h.logger.Info("alerts list complete", zap.Int64("telegram_user_id", userID), zap.Int("count", len(alerts)))
		h.reply(api, chatID, formatAlertList(alerts))
	case "reset":
		h.withAlertID(api, chatID, userID, "reset", args, func(alertID uint) error {
			return h.alertUC.ResetAlert(ctx, userID, alertID)
		}, "Alert #%d re-armed.")
	case "enable":
		h.withAlertID(api, chatID, userID, "enable", args, func(alertID uint) error {
			return h.alertUC.EnableAlert(ctx, userID, alertID)
		}, "Alert #%d enabled.")
	case "disable":
		h.withAlertID(api, chatID, userID, "disable", args, func(alertID uint) error {
			return h.alertUC.DisableAlert(ctx, userID, alertID)
		}, "Alert #%d disabled.")
	default:
		h.logger.Warn("unknown command", zap.Int64("telegram_user_id", userID), zap.String("command", command))
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) withAlertID(api *tgbotapi.BotAPI, chatID, userID int64, command, args string, fn func(uint) error, done string) {
	alertID, err := ParseAlertID(args)
	if err != nil {
		h.logger.Warn(command+" invalid args", zap.Int64("telegram_user_id", userID), zap.String("args", args))
		h.reply(api, chatID, fmt.Sprintf("Usage: /%s <alert_id>", command))
		return
	}
	if err := fn(alertID); err != nil {
		h.logger.Warn(command+" failed", zap.Int64("telegram_user_id", userID), zap.Uint("alert_id", alertID), zap.Error(err))
		h.reply(api, chatID, h.errorMessage(err))
		return
	}
	h.logger.Info(command+" complete", zap.Int64("telegram_user_id", userID), zap.Uint("alert_id", alertID))
	h.reply(api, chatID, fmt.Sprintf(done, alertID))
}

func (h *Handlers) errorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrUserNotRegistered):
		return "Please /start to register first."
	case errors.Is(err, usecase.ErrInvalidWallet):
		return "Invalid wallet. Use a 0x address with 40 hex characters."
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found."
	case errors.Is(err, usecase.ErrAlertNotTriggered):
		return "Alert is not triggered."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func formatAlertList(alerts []domain.Alert) string {
	const maxMessageLen = 3800

	var builder strings.Builder
	builder.WriteString("Your alerts:\n")
	for i, alert := range alerts {
		line := formatAlertLine(alert)
		if builder.Len()+len(line) > maxMessageLen {
			builder.WriteString(fmt.Sprintf("...and %d more alerts", len(alerts)-i))
			break
		}
		builder.WriteString(line)
	}
	return builder.String()
}

func formatAlertLine(alert domain.Alert) string {
	status := "disabled"
	switch {
	case alert.Active && alert.Triggered:
		status = "triggered"
	case alert.Active:
		status = "armed"
	}
	current := "n/a"
	if alert.CurrentValue != nil {
		current = decimal.NewFromFloat(*alert.CurrentValue).Round(6).String()
	}
	condition := ""
	if alert.Condition != domain.ConditionNone {
		condition = " " + alert.Condition.Symbol()
	}
	return fmt.Sprintf("#%d [%s] %s %s%s %s (now %s, fired %d)\n",
		alert.ID, status, alert.Asset, alert.Type, condition,
		decimal.NewFromFloat(alert.Target).String(), current, alert.TriggerCount)
}

func (h *Handlers) reply(api *tgbotapi.BotAPI, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
