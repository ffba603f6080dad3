package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoWallet = errors.New("no wallet address for account alert")

const equalsEpsilon = 1e-4

const (
	metricPrice       = "price"
	metricVolume      = "volume"
	metricFunding     = "funding"
	metricRisk        = "liquidation_risk"
	metricPnL         = "pnl"
	metricBalance     = "balance"
	metricFillPrice   = "fill_price"
	defaultMarketKind = domain.MarketPerp
)

type prevKey struct {
	alertID uint
	metric  string
}

// measurement is the value an alert type tracks plus the context used to
// describe a trigger.
type measurement struct {
	value       float64
	metric      string
	price       float64
	liquidation float64
	token       string
	derived     float64
	fill        *domain.Fill
}

// Evaluator decides per alert whether to dispatch and keeps the stored trigger
// state in step. It is not safe for concurrent use; the Scheduler owns it.
type Evaluator struct {
	alerts      domain.AlertStore
	users       domain.UserRepository
	cache       *MarketCache
	venue       domain.VenueClient
	dispatcher  domain.Dispatcher
	broadcaster domain.Broadcaster
	logger      *zap.Logger
	now         func() time.Time

	previous map[prevKey]float64
}

func NewEvaluator(alerts domain.AlertStore, users domain.UserRepository, cache *MarketCache, venue domain.VenueClient, dispatcher domain.Dispatcher, broadcaster domain.Broadcaster, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		alerts:      alerts,
		users:       users,
		cache:       cache,
		venue:       venue,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger.Named("evaluator"),
		now:         time.Now,
		previous:    make(map[prevKey]float64),
	}
}

// Evaluate measures the alert's metric, stores it as the current value and
// dispatches when the type's rule fires. Repeating an evaluation with
// unchanged inputs is a no-op.
func (e *Evaluator) Evaluate(ctx context.Context, alert *domain.Alert) error {
	if !alert.Active || alert.Type == domain.AlertOrderFilled {
		return nil
	}
	if !alert.Type.Valid() {
		return fmt.Errorf("alert %d: unknown alert type %q", alert.ID, alert.Type)
	}

	m, err := e.measure(ctx, alert)
	if err != nil {
		return err
	}
	e.recordValue(ctx, alert, m.value)

	key := prevKey{alertID: alert.ID, metric: m.metric}
	prev, ok := e.previous[key]
	if !ok {
		prev = m.value
	}

	if !e.decide(alert, &m, prev) {
		e.previous[key] = m.value
		return nil
	}
	// previous advances only once the trigger is persisted.
	now, err := e.markTriggered(ctx, alert)
	if err != nil {
		return err
	}
	e.previous[key] = m.value
	return e.notify(ctx, alert, m, prev, now)
}

// EvaluateFill fires an order-filled alert when the fill matches its order.
func (e *Evaluator) EvaluateFill(ctx context.Context, alert *domain.Alert, fill domain.Fill) error {
	params, ok := alert.Params.(domain.OrderFilledParams)
	if !ok {
		return fmt.Errorf("alert %d: missing order-filled params", alert.ID)
	}
	if !alert.Active || alert.Triggered || fill.OrderID != params.OrderID {
		return nil
	}

	e.recordValue(ctx, alert, fill.Price)
	m := measurement{value: fill.Price, metric: metricFillPrice, price: fill.Price, fill: &fill}
	return e.trigger(ctx, alert, m, fill.Price)
}

// ResetIfDisarmed clears a triggered level alert once the price is back on the
// unarmed side of its target. Other alerts are left untouched.
func (e *Evaluator) ResetIfDisarmed(ctx context.Context, alert *domain.Alert) error {
	if !alert.Triggered || !alert.Type.Level() || alert.Condition.Crossing() {
		return nil
	}

	price, _, err := e.cache.GetOrFetch(ctx, alert.Asset, marketOf(alert))
	if err != nil {
		return err
	}

	disarmed := false
	switch alert.Type {
	case domain.AlertPriceAbove:
		disarmed = price <= alert.Target
	case domain.AlertPriceBelow:
		disarmed = price >= alert.Target
	}
	if !disarmed {
		return nil
	}

	if err := e.alerts.ResetTriggered(ctx, alert.ID); err != nil {
		return fmt.Errorf("reset alert %d: %w", alert.ID, err)
	}
	alert.Triggered = false
	e.logger.Info("level alert re-armed", zap.Uint("alert_id", alert.ID), zap.String("asset", alert.Asset), zap.Float64("price", price))
	return nil
}

// Retain drops previous-value records of alerts not in keep.
func (e *Evaluator) Retain(keep map[uint]struct{}) {
	for key := range e.previous {
		if _, ok := keep[key.alertID]; !ok {
			delete(e.previous, key)
		}
	}
}

func (e *Evaluator) decide(alert *domain.Alert, m *measurement, prev float64) bool {
	cur := m.value
	target := alert.Target

	if alert.Condition.Crossing() {
		return crossed(alert.Condition, prev, cur, target)
	}
	if alert.Triggered {
		return false
	}

	switch alert.Type {
	case domain.AlertPriceAbove:
		return prev <= target && cur > target
	case domain.AlertPriceBelow:
		return prev >= target && cur < target
	case domain.AlertPriceChangePercent, domain.AlertBalanceChange:
		change, ok := percentChange(prev, cur)
		m.derived = change
		return ok && math.Abs(change) >= target
	case domain.AlertVolumeSpike:
		if prev == 0 {
			return false
		}
		m.derived = (cur/prev - 1) * 100
		return m.derived >= target
	case domain.AlertFundingRate, domain.AlertPositionPnL:
		return compare(alert.Condition, cur, target)
	case domain.AlertLiquidationRisk:
		return cur <= target
	}
	return false
}

func (e *Evaluator) trigger(ctx context.Context, alert *domain.Alert, m measurement, prev float64) error {
	now, err := e.markTriggered(ctx, alert)
	if err != nil {
		return err
	}
	return e.notify(ctx, alert, m, prev, now)
}

func (e *Evaluator) markTriggered(ctx context.Context, alert *domain.Alert) (time.Time, error) {
	now := e.now()
	if err := e.alerts.MarkTriggered(ctx, alert.ID, now); err != nil {
		return time.Time{}, fmt.Errorf("mark alert %d triggered: %w", alert.ID, err)
	}
	alert.Triggered = true
	alert.LastTriggered = &now
	alert.TriggerCount++
	return now, nil
}

func (e *Evaluator) notify(ctx context.Context, alert *domain.Alert, m measurement, prev float64, now time.Time) error {
	title, message := formatTrigger(alert, m, prev)
	notification := domain.Notification{
		ID:       uuid.NewString(),
		UserID:   alert.UserID,
		AlertID:  alert.ID,
		Title:    title,
		Message:  message,
		Payload:  triggerPayload(alert, m, prev, now),
		Channels: alert.Channels,
	}
	e.logger.Info(
		"alert triggered",
		zap.Uint("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("asset", alert.Asset),
		zap.Float64("value", m.value),
		zap.Float64("previous", prev),
		zap.Int("trigger_count", alert.TriggerCount),
	)
	if err := e.dispatcher.Dispatch(ctx, notification); err != nil {
		e.logger.Warn("dispatch failed", zap.Uint("alert_id", alert.ID), zap.String("notification_id", notification.ID), zap.Error(err))
	}

	if alert.Condition.Crossing() {
		if err := e.alerts.ResetTriggered(ctx, alert.ID); err != nil {
			return fmt.Errorf("reset crossing alert %d: %w", alert.ID, err)
		}
		alert.Triggered = false
	}
	return nil
}

func (e *Evaluator) recordValue(ctx context.Context, alert *domain.Alert, value float64) {
	alert.CurrentValue = &value
	if err := e.alerts.UpdateCurrentValue(ctx, alert.ID, value); err != nil {
		e.logger.Warn("failed to store current value", zap.Uint("alert_id", alert.ID), zap.Error(err))
	}
	if e.broadcaster != nil {
		e.broadcaster.Publish(alert.UserID, domain.AlertUpdate{AlertID: alert.ID, CurrentValue: value, Asset: alert.Asset})
	}
}

func (e *Evaluator) measure(ctx context.Context, alert *domain.Alert) (measurement, error) {
	market := marketOf(alert)

	switch alert.Type {
	case domain.AlertPriceAbove, domain.AlertPriceBelow, domain.AlertPriceChangePercent:
		price, _, err := e.cache.GetOrFetch(ctx, alert.Asset, market)
		if err != nil {
			return measurement{}, err
		}
		return measurement{value: price, metric: metricPrice, price: price}, nil

	case domain.AlertVolumeSpike:
		snapshot, err := e.cache.Snapshot(ctx, alert.Asset, market)
		if err != nil {
			return measurement{}, err
		}
		return measurement{value: snapshot.Volume24h, metric: metricVolume, price: snapshot.Price}, nil

	case domain.AlertFundingRate:
		if market != domain.MarketPerp {
			return measurement{}, fmt.Errorf("%s on %s: %w", alert.Type, market, domain.ErrUnsupportedMarket)
		}
		snapshot, err := e.cache.Snapshot(ctx, alert.Asset, market)
		if err != nil {
			return measurement{}, err
		}
		return measurement{value: snapshot.FundingRate * 100, metric: metricFunding, price: snapshot.Price}, nil

	case domain.AlertLiquidationRisk:
		position, err := e.position(ctx, alert)
		if err != nil {
			return measurement{}, err
		}
		if position.LiquidationPrice == nil {
			return measurement{}, fmt.Errorf("%s position has no liquidation price: %w", alert.Asset, domain.ErrNoPosition)
		}
		liq := *position.LiquidationPrice
		span := math.Abs(position.EntryPrice - liq)
		if span == 0 {
			return measurement{}, fmt.Errorf("%s entry price equals liquidation price", alert.Asset)
		}
		price, _, err := e.cache.GetOrFetch(ctx, alert.Asset, market)
		if err != nil {
			return measurement{}, err
		}
		risk := math.Abs(price-liq) / span * 100
		return measurement{value: risk, metric: metricRisk, price: price, liquidation: liq}, nil

	case domain.AlertPositionPnL:
		position, err := e.position(ctx, alert)
		if err != nil {
			return measurement{}, err
		}
		return measurement{value: position.ReturnOnEquity * 100, metric: metricPnL}, nil

	case domain.AlertBalanceChange:
		if market != domain.MarketSpot {
			return measurement{}, fmt.Errorf("%s on %s: %w", alert.Type, market, domain.ErrUnsupportedMarket)
		}
		return e.balance(ctx, alert)
	}
	return measurement{}, fmt.Errorf("unknown alert type %q", alert.Type)
}

func (e *Evaluator) position(ctx context.Context, alert *domain.Alert) (domain.Position, error) {
	if marketOf(alert) != domain.MarketPerp {
		return domain.Position{}, fmt.Errorf("%s on %s: %w", alert.Type, alert.Market, domain.ErrUnsupportedMarket)
	}
	address, err := e.accountAddress(ctx, alert)
	if err != nil {
		return domain.Position{}, err
	}
	state, err := e.venue.AccountState(ctx, address)
	if err != nil {
		return domain.Position{}, fmt.Errorf("fetch account state: %w", err)
	}
	position, ok := state.Position(alert.Asset)
	if !ok || position.Size == 0 {
		return domain.Position{}, fmt.Errorf("%s: %w", alert.Asset, domain.ErrNoPosition)
	}
	return position, nil
}

func (e *Evaluator) balance(ctx context.Context, alert *domain.Alert) (measurement, error) {
	address, err := e.accountAddress(ctx, alert)
	if err != nil {
		return measurement{}, err
	}
	token := alert.Asset
	if params, ok := alert.Params.(domain.BalanceParams); ok && params.Token != "" {
		token = params.Token
	}
	balances, err := e.venue.SpotBalances(ctx, address)
	if err != nil {
		return measurement{}, fmt.Errorf("fetch spot balances: %w", err)
	}
	total := 0.0
	for _, b := range balances {
		if b.Coin == token {
			total = b.Total
			break
		}
	}
	return measurement{value: total, metric: metricBalance, token: token}, nil
}

func (e *Evaluator) accountAddress(ctx context.Context, alert *domain.Alert) (string, error) {
	if address := domain.AccountAddress(alert.Params); address != "" {
		return address, nil
	}
	user, err := e.users.GetByID(ctx, alert.UserID)
	if err != nil {
		return "", fmt.Errorf("load owner %d: %w", alert.UserID, err)
	}
	if user.WalletAddress == "" {
		return "", ErrNoWallet
	}
	return user.WalletAddress, nil
}

func marketOf(alert *domain.Alert) domain.MarketKind {
	if alert.Market == "" {
		return defaultMarketKind
	}
	return alert.Market
}

func crossed(condition domain.Condition, prev, cur, target float64) bool {
	switch condition {
	case domain.ConditionCrossesAbove:
		return prev <= target && cur > target
	case domain.ConditionCrossesBelow:
		return prev >= target && cur < target
	}
	return false
}

// compare applies a generic operator; an unset operator means greater-than.
func compare(condition domain.Condition, value, target float64) bool {
	switch condition {
	case domain.ConditionLessThan:
		return value < target
	case domain.ConditionEquals:
		return math.Abs(value-target) < equalsEpsilon
	default:
		return value > target
	}
}

func percentChange(prev, cur float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return (cur - prev) / prev * 100, true
}
