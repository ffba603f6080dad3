package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	return r.first(ctx, "telegram_user_id = ?", telegramUserID)
}

func (r *UserRepository) GetByID(ctx context.Context, userID uint) (*domain.User, error) {
	return r.first(ctx, "id = ?", userID)
}

// Create inserts the user. A concurrent registration of the same telegram
// user is resolved by returning the row that won.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	model := userModel{
		TelegramUserID: user.TelegramUserID,
		Username:       user.Username,
		WalletAddress:  user.WalletAddress,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_user_id"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.GetByTelegramID(ctx, user.TelegramUserID)
		if err != nil {
			return err
		}
		*user = *existing
		return nil
	}
	*user = mapUserToDomain(model)
	return nil
}

func (r *UserRepository) SetWallet(ctx context.Context, userID uint, address string) error {
	result := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).Update("wallet_address", address)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var model userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	user := mapUserToDomain(model)
	return &user, nil
}

func mapUserToDomain(model userModel) domain.User {
	var deleted *time.Time
	if model.DeletedAt.Valid {
		t := model.DeletedAt.Time
		deleted = &t
	}
	return domain.User{
		ID:             model.ID,
		TelegramUserID: model.TelegramUserID,
		Username:       model.Username,
		WalletAddress:  model.WalletAddress,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		DeletedAt:      deleted,
	}
}
