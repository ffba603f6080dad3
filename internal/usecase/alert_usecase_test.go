package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/NasaVasa/alerty/internal/domain"
)

func TestUserUsecase_StartOrGetUser(t *testing.T) {
	users := newFakeUsers()
	uc := NewUserUsecase(users)
	ctx := context.Background()

	user, err := uc.StartOrGetUser(ctx, 7, "alice", "")
	if err != nil {
		t.Fatalf("StartOrGetUser: %v", err)
	}
	again, err := uc.StartOrGetUser(ctx, 7, "alice", "0xABCDEFabcdef0123456789012345678901234567")
	if err != nil {
		t.Fatalf("StartOrGetUser: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second start created a new user")
	}
	if again.WalletAddress != "0xabcdefabcdef0123456789012345678901234567" {
		t.Fatalf("wallet not normalized: %q", again.WalletAddress)
	}

	if _, err := uc.StartOrGetUser(ctx, 8, "bob", "0x123"); !errors.Is(err, ErrInvalidWallet) {
		t.Fatalf("expected ErrInvalidWallet, got %v", err)
	}
}

func TestUserUsecase_LinkWallet(t *testing.T) {
	uc := NewUserUsecase(newFakeUsers(domain.User{ID: 1, TelegramUserID: 42}))
	ctx := context.Background()

	tests := []struct {
		name   string
		tgID   int64
		wallet string
		want   error
	}{
		{"linked", 42, testWallet, nil},
		{"empty", 42, " ", ErrInvalidWallet},
		{"malformed", 42, "hello", ErrInvalidWallet},
		{"unregistered", 99, testWallet, ErrUserNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := uc.LinkWallet(ctx, tt.tgID, tt.wallet); !errors.Is(err, tt.want) {
				t.Fatalf("LinkWallet = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAlertUsecase_ResetAlert(t *testing.T) {
	triggered := levelAlert(1, domain.AlertFundingRate, domain.ConditionNone, 5)
	triggered.Triggered = true
	armed := levelAlert(2, domain.AlertFundingRate, domain.ConditionNone, 5)
	foreign := levelAlert(3, domain.AlertFundingRate, domain.ConditionNone, 5)
	foreign.UserID = 2
	foreign.Triggered = true

	store := newMemStore(triggered, armed, foreign)
	uc := NewAlertUsecase(newFakeUsers(domain.User{ID: 1, TelegramUserID: 42}), store)
	ctx := context.Background()

	tests := []struct {
		name    string
		tgID    int64
		alertID uint
		want    error
	}{
		{"unregistered", 99, 1, ErrUserNotRegistered},
		{"missing", 42, 50, ErrAlertNotFound},
		{"other owner", 42, 3, ErrAlertNotFound},
		{"not triggered", 42, 2, ErrAlertNotTriggered},
		{"reset", 42, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := uc.ResetAlert(ctx, tt.tgID, tt.alertID); !errors.Is(err, tt.want) {
				t.Fatalf("ResetAlert = %v, want %v", err, tt.want)
			}
		})
	}
	if store.get(1).Triggered {
		t.Fatalf("alert 1 still triggered")
	}
	if !store.get(3).Triggered {
		t.Fatalf("foreign alert was reset")
	}
}

func TestAlertUsecase_SetActive(t *testing.T) {
	store := newMemStore(levelAlert(1, domain.AlertPriceAbove, domain.ConditionNone, 100))
	uc := NewAlertUsecase(newFakeUsers(domain.User{ID: 1, TelegramUserID: 42}), store)
	ctx := context.Background()

	if err := uc.DisableAlert(ctx, 42, 1); err != nil {
		t.Fatalf("DisableAlert: %v", err)
	}
	if store.get(1).Active {
		t.Fatalf("alert still active")
	}
	if err := uc.EnableAlert(ctx, 42, 1); err != nil {
		t.Fatalf("EnableAlert: %v", err)
	}
	if err := uc.EnableAlert(ctx, 42, 9); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound, got %v", err)
	}

	alerts, err := uc.ListAlerts(ctx, 42)
	if err != nil || len(alerts) != 1 || !alerts[0].Active {
		t.Fatalf("ListAlerts = %v, %v", alerts, err)
	}
}
