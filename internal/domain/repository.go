package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)
	GetByID(ctx context.Context, userID uint) (*User, error)
	Create(ctx context.Context, user *User) error
	SetWallet(ctx context.Context, userID uint, address string) error
}

type AlertStore interface {
	Get(ctx context.Context, alertID uint) (*Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)
	ListByUser(ctx context.Context, userID uint) ([]Alert, error)
	UpdateCurrentValue(ctx context.Context, alertID uint, value float64) error
	// MarkTriggered sets triggered, stamps lastTriggered and increments the
	// trigger count in one statement.
	MarkTriggered(ctx context.Context, alertID uint, at time.Time) error
	ResetTriggered(ctx context.Context, alertID uint) error
	SetActive(ctx context.Context, userID uint, alertID uint, active bool) error
}

type Notification struct {
	ID       string
	UserID   uint
	AlertID  uint
	Title    string
	Message  string
	Payload  map[string]any
	Channels Channels
}

// Dispatcher delivers trigger notifications. Delivery retries belong to the
// implementation; callers treat it as fire-and-forget.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

type AlertUpdate struct {
	AlertID      uint
	CurrentValue float64
	Asset        string
}

type Broadcaster interface {
	Publish(userID uint, update AlertUpdate)
}
