package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"gorm.io/gorm"
)

// AlertRepository is the alert store backed by postgres. Alerts are written by
// the product surface; this side reads them and maintains the trigger state.
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Get(ctx context.Context, alertID uint) (*domain.Alert, error) {
	var model alertModel
	if err := r.db.WithContext(ctx).First(&model, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert, err := mapAlertToDomain(model)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	query := r.db.WithContext(ctx).Model(&alertModel{})
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.Triggered != nil {
		query = query.Where("triggered = ?", *filter.Triggered)
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		query = query.Where("type IN ?", types)
	}
	if len(filter.Assets) > 0 {
		query = query.Where("asset IN ?", filter.Assets)
	}

	var models []alertModel
	if err := query.Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models)
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Alert, error) {
	var models []alertModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models)
}

func (r *AlertRepository) UpdateCurrentValue(ctx context.Context, alertID uint, value float64) error {
	return r.update(ctx, alertID, map[string]any{"current_value": value})
}

func (r *AlertRepository) MarkTriggered(ctx context.Context, alertID uint, at time.Time) error {
	return r.update(ctx, alertID, map[string]any{
		"triggered":      true,
		"last_triggered": at,
		"trigger_count":  gorm.Expr("trigger_count + 1"),
	})
}

func (r *AlertRepository) ResetTriggered(ctx context.Context, alertID uint) error {
	return r.update(ctx, alertID, map[string]any{"triggered": false})
}

func (r *AlertRepository) SetActive(ctx context.Context, userID uint, alertID uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&alertModel{}).Where("id = ? AND user_id = ?", alertID, userID).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) update(ctx context.Context, alertID uint, values map[string]any) error {
	result := r.db.WithContext(ctx).Model(&alertModel{}).Where("id = ?", alertID).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapAlertsToDomain(models []alertModel) ([]domain.Alert, error) {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alert, err := mapAlertToDomain(model)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func mapAlertToDomain(model alertModel) (domain.Alert, error) {
	typ := domain.AlertType(model.Type)
	params, err := domain.DecodeParams(typ, model.Params)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert %d: %w", model.ID, err)
	}
	return domain.Alert{
		ID:            model.ID,
		UserID:        model.UserID,
		Asset:         model.Asset,
		Market:        domain.MarketKind(model.Market),
		Type:          typ,
		Condition:     domain.Condition(model.Condition),
		Target:        model.Target,
		CurrentValue:  model.CurrentValue,
		Active:        model.Active,
		Triggered:     model.Triggered,
		TriggerCount:  model.TriggerCount,
		LastTriggered: model.LastTriggered,
		Channels: domain.Channels{
			Telegram: model.Telegram,
			Email:    model.Email,
			Webhook:  model.Webhook,
			Push:     model.Push,
		},
		Params:    params,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
