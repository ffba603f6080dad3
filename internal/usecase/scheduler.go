package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

var priceDrivenTypes = []domain.AlertType{
	domain.AlertPriceAbove,
	domain.AlertPriceBelow,
	domain.AlertPriceChangePercent,
	domain.AlertVolumeSpike,
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	InboxSize     int
	FillInboxSize int
}

// Scheduler drives the evaluator from streamed prices, streamed fills and a
// periodic sweep. Stream callbacks only enqueue; Run is the single goroutine
// that evaluates alerts, so evaluator state needs no locking.
type Scheduler struct {
	domain.NopListener

	alerts    domain.AlertStore
	evaluator *Evaluator
	cache     *MarketCache
	stream    domain.StreamSubscriber
	interval  time.Duration
	logger    *zap.Logger

	prices chan domain.PriceTicks
	fills  chan domain.FillBatch
	done   chan struct{}

	accounts map[string]struct{}

	// resync holds accounts whose live fills were dropped. The value turns
	// true once the sweep has resubscribed and the snapshot is awaited.
	resyncMu sync.Mutex
	resync   map[string]bool
}

func NewScheduler(alerts domain.AlertStore, evaluator *Evaluator, cache *MarketCache, stream domain.StreamSubscriber, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	if cfg.FillInboxSize <= 0 {
		cfg.FillInboxSize = 4 * cfg.InboxSize
	}
	return &Scheduler{
		alerts:    alerts,
		evaluator: evaluator,
		cache:     cache,
		stream:    stream,
		interval:  cfg.SweepInterval,
		logger:    logger.Named("scheduler"),
		prices:    make(chan domain.PriceTicks, cfg.InboxSize),
		fills:     make(chan domain.FillBatch, cfg.FillInboxSize),
		done:      make(chan struct{}),
		accounts:  make(map[string]struct{}),
		resync:    make(map[string]bool),
	}
}

// OnPrices updates the cache immediately and queues the batch for
// re-evaluation. A full inbox drops the batch; the next sweep covers it.
func (s *Scheduler) OnPrices(ticks domain.PriceTicks) {
	s.cache.ApplyPrices(ticks)
	select {
	case s.prices <- ticks:
	default:
		s.logger.Warn("price inbox full, batch dropped", zap.Int("symbols", len(ticks)))
	}
}

// OnFills queues live fills without blocking the stream. Snapshot batches
// replay history on subscribe and are ignored unless the account is being
// resynced after a drop.
func (s *Scheduler) OnFills(batch domain.FillBatch) {
	user := strings.ToLower(batch.User)
	if batch.IsSnapshot && !s.takeResync(user) {
		return
	}
	if len(batch.Fills) == 0 {
		return
	}
	select {
	case s.fills <- batch:
	default:
		s.resyncMu.Lock()
		s.resync[user] = false
		s.resyncMu.Unlock()
		s.logger.Warn("fill inbox full, batch dropped; account will be resubscribed", zap.String("user", user), zap.Int("fills", len(batch.Fills)))
	}
}

func (s *Scheduler) takeResync(user string) bool {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()
	if awaiting, ok := s.resync[user]; ok && awaiting {
		delete(s.resync, user)
		return true
	}
	return false
}

func (s *Scheduler) OnSignal(signal domain.StreamSignal) {
	switch signal.Kind {
	case domain.SignalConnected:
		s.logger.Info("stream connected")
	case domain.SignalDisconnected:
		s.logger.Warn("stream disconnected; sweep continues on snapshots")
	case domain.SignalError:
		s.logger.Warn("stream error", zap.Int("attempt", signal.Attempt), zap.Error(signal.Err))
	case domain.SignalGaveUp:
		s.logger.Error("stream gave up reconnecting; push evaluation stopped until restarted", zap.Int("attempts", signal.Attempt))
	}
}

// Run performs the initial sweep and then serves both drivers until ctx is
// cancelled. An evaluation already in progress completes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	evalCtx := context.WithoutCancel(ctx)

	s.Sweep(evalCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Sweep(evalCtx)
		case ticks := <-s.prices:
			s.evaluatePrices(evalCtx, s.drainPrices(ticks))
		case batch := <-s.fills:
			s.evaluateFills(evalCtx, batch)
		}
	}
}

// Sweep evaluates every active alert, runs the level reset check and keeps
// stream subscriptions in line with the alert set.
func (s *Scheduler) Sweep(ctx context.Context) {
	start := time.Now()
	alerts, err := s.alerts.List(ctx, domain.AlertFilter{Active: domain.Bool(true)})
	if err != nil {
		s.logger.Error("sweep: failed to load alerts", zap.Error(err))
		return
	}

	s.syncSubscriptions(ctx, alerts)

	keep := make(map[uint]struct{}, len(alerts))
	failed := 0
	for i := range alerts {
		alert := &alerts[i]
		keep[alert.ID] = struct{}{}
		if alert.Type == domain.AlertOrderFilled {
			continue
		}
		if err := s.evaluator.Evaluate(ctx, alert); err != nil {
			failed++
			s.logger.Warn("evaluation failed", zap.Uint("alert_id", alert.ID), zap.String("type", string(alert.Type)), zap.String("asset", alert.Asset), zap.Error(err))
			continue
		}
		if err := s.evaluator.ResetIfDisarmed(ctx, alert); err != nil {
			s.logger.Warn("reset check failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
		}
	}
	s.evaluator.Retain(keep)

	s.logger.Debug("sweep complete", zap.Int("alerts", len(alerts)), zap.Int("failed", failed), zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) drainPrices(first domain.PriceTicks) map[string]struct{} {
	symbols := make(map[string]struct{}, len(first))
	for symbol := range first {
		symbols[symbol] = struct{}{}
	}
	for {
		select {
		case more := <-s.prices:
			for symbol := range more {
				symbols[symbol] = struct{}{}
			}
		default:
			return symbols
		}
	}
}

func (s *Scheduler) evaluatePrices(ctx context.Context, symbols map[string]struct{}) {
	assets := make([]string, 0, len(symbols))
	for symbol := range symbols {
		assets = append(assets, symbol)
	}
	alerts, err := s.alerts.List(ctx, domain.AlertFilter{
		Active: domain.Bool(true),
		Types:  priceDrivenTypes,
		Assets: assets,
	})
	if err != nil {
		s.logger.Error("push: failed to load alerts", zap.Error(err))
		return
	}

	for i := range alerts {
		alert := &alerts[i]
		if _, ok := symbols[alert.Asset]; !ok || !alert.Type.PriceDriven() {
			continue
		}
		if err := s.evaluator.Evaluate(ctx, alert); err != nil {
			s.logger.Warn("evaluation failed", zap.Uint("alert_id", alert.ID), zap.String("asset", alert.Asset), zap.Error(err))
		}
	}
}

func (s *Scheduler) evaluateFills(ctx context.Context, batch domain.FillBatch) {
	alerts, err := s.alerts.List(ctx, domain.AlertFilter{
		Active:    domain.Bool(true),
		Triggered: domain.Bool(false),
		Types:     []domain.AlertType{domain.AlertOrderFilled},
	})
	if err != nil {
		s.logger.Error("fills: failed to load alerts", zap.Error(err))
		return
	}

	for i := range alerts {
		alert := &alerts[i]
		params, ok := alert.Params.(domain.OrderFilledParams)
		if !ok {
			continue
		}
		for _, fill := range batch.Fills {
			if fill.OrderID != params.OrderID {
				continue
			}
			address, err := s.evaluator.accountAddress(ctx, alert)
			if err != nil || !strings.EqualFold(address, batch.User) {
				continue
			}
			if err := s.evaluator.EvaluateFill(ctx, alert, fill); err != nil {
				s.logger.Warn("fill evaluation failed", zap.Uint("alert_id", alert.ID), zap.Int64("order_id", fill.OrderID), zap.Error(err))
			}
			break
		}
	}
}

// syncSubscriptions keeps allMids subscribed and one userFills subscription
// per account with a pending order-filled alert.
func (s *Scheduler) syncSubscriptions(ctx context.Context, alerts []domain.Alert) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Subscribe(domain.SubAllMids, ""); err != nil {
		s.logger.Warn("subscribe allMids failed", zap.Error(err))
	}

	wanted := make(map[string]struct{})
	for i := range alerts {
		alert := &alerts[i]
		if alert.Type != domain.AlertOrderFilled || alert.Triggered {
			continue
		}
		address, err := s.evaluator.accountAddress(ctx, alert)
		if err != nil {
			s.logger.Warn("order-filled alert has no account", zap.Uint("alert_id", alert.ID), zap.Error(err))
			continue
		}
		wanted[strings.ToLower(address)] = struct{}{}
	}

	for address := range wanted {
		if _, ok := s.accounts[address]; ok {
			continue
		}
		if err := s.stream.Subscribe(domain.SubUserFills, address); err != nil {
			s.logger.Warn("subscribe userFills failed", zap.String("user", address), zap.Error(err))
			continue
		}
		s.accounts[address] = struct{}{}
	}
	for address := range s.accounts {
		if _, ok := wanted[address]; ok {
			continue
		}
		if err := s.stream.Unsubscribe(domain.SubUserFills, address); err != nil {
			s.logger.Warn("unsubscribe userFills failed", zap.String("user", address), zap.Error(err))
		}
		delete(s.accounts, address)
	}
	s.resubscribeDropped()
}

// resubscribeDropped cycles the userFills subscription of every account that
// lost fills so the venue replays them as a snapshot.
func (s *Scheduler) resubscribeDropped() {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()
	for address, awaiting := range s.resync {
		if awaiting {
			continue
		}
		if _, ok := s.accounts[address]; !ok {
			delete(s.resync, address)
			continue
		}
		s.resync[address] = true
		if err := s.stream.Unsubscribe(domain.SubUserFills, address); err != nil {
			s.logger.Warn("resync unsubscribe failed", zap.String("user", address), zap.Error(err))
		}
		if err := s.stream.Subscribe(domain.SubUserFills, address); err != nil {
			s.resync[address] = false
			s.logger.Warn("resync subscribe failed", zap.String("user", address), zap.Error(err))
			continue
		}
		s.logger.Info("userFills resubscribed after dropped fills", zap.String("user", address))
	}
}
