package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/NasaVasa/alerty/internal/domain"
)

var ErrInvalidWallet = errors.New("invalid wallet address")

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type UserUsecase struct {
	users domain.UserRepository
}

func NewUserUsecase(users domain.UserRepository) *UserUsecase {
	return &UserUsecase{users: users}
}

// StartOrGetUser registers the telegram user on first contact. A non-empty
// wallet is linked in the same step.
func (u *UserUsecase) StartOrGetUser(ctx context.Context, telegramUserID int64, username, wallet string) (*domain.User, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err == nil {
		if wallet != "" && wallet != user.WalletAddress {
			if err := u.users.SetWallet(ctx, user.ID, wallet); err != nil {
				return nil, err
			}
			user.WalletAddress = wallet
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	newUser := &domain.User{
		TelegramUserID: telegramUserID,
		Username:       username,
		WalletAddress:  wallet,
	}
	if err := u.users.Create(ctx, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

func (u *UserUsecase) LinkWallet(ctx context.Context, telegramUserID int64, wallet string) error {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return err
	}
	if wallet == "" {
		return ErrInvalidWallet
	}
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrUserNotRegistered
		}
		return err
	}
	return u.users.SetWallet(ctx, user.ID, wallet)
}

func normalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return "", nil
	}
	if !walletPattern.MatchString(wallet) {
		return "", ErrInvalidWallet
	}
	return strings.ToLower(wallet), nil
}
