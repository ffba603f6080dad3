package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/alerty/internal/domain"
)

var (
	ErrUserNotRegistered = errors.New("user not registered")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrAlertNotTriggered = errors.New("alert not triggered")
)

// AlertUsecase is the operator side of the alert set: listing, explicit
// reset and activation. Alert creation belongs to the external store.
type AlertUsecase struct {
	users  domain.UserRepository
	alerts domain.AlertStore
}

func NewAlertUsecase(users domain.UserRepository, alerts domain.AlertStore) *AlertUsecase {
	return &AlertUsecase{users: users, alerts: alerts}
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, telegramUserID int64) ([]domain.Alert, error) {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	return u.alerts.ListByUser(ctx, user.ID)
}

// ResetAlert clears the triggered flag so the alert can fire again. This is the
// only re-arm path for alert types without an automatic reset.
func (u *AlertUsecase) ResetAlert(ctx context.Context, telegramUserID int64, alertID uint) error {
	alert, err := u.owned(ctx, telegramUserID, alertID)
	if err != nil {
		return err
	}
	if !alert.Triggered {
		return ErrAlertNotTriggered
	}
	if err := u.alerts.ResetTriggered(ctx, alert.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	return nil
}

func (u *AlertUsecase) EnableAlert(ctx context.Context, telegramUserID int64, alertID uint) error {
	return u.setActive(ctx, telegramUserID, alertID, true)
}

func (u *AlertUsecase) DisableAlert(ctx context.Context, telegramUserID int64, alertID uint) error {
	return u.setActive(ctx, telegramUserID, alertID, false)
}

func (u *AlertUsecase) setActive(ctx context.Context, telegramUserID int64, alertID uint, active bool) error {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return err
	}
	if err := u.alerts.SetActive(ctx, user.ID, alertID, active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	return nil
}

func (u *AlertUsecase) owned(ctx context.Context, telegramUserID int64, alertID uint) (*domain.Alert, error) {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	alert, err := u.alerts.Get(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if alert.UserID != user.ID {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (u *AlertUsecase) user(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}
