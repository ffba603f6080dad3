package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

func newTestScheduler(h *harness, sub domain.StreamSubscriber, inbox int) *Scheduler {
	return NewScheduler(h.store, h.eval, h.cache, sub, SchedulerConfig{SweepInterval: time.Hour, InboxSize: inbox}, zap.NewNop())
}

func orderAlert(id uint, orderID int64) domain.Alert {
	a := levelAlert(id, domain.AlertOrderFilled, domain.ConditionNone, 0)
	a.Params = domain.OrderFilledParams{OrderID: orderID}
	return a
}

func (s *Scheduler) processPrices(ctx context.Context) {
	select {
	case ticks := <-s.prices:
		s.evaluatePrices(ctx, s.drainPrices(ticks))
	default:
	}
}

func TestScheduler_PushPathEvaluatesPriceDrivenAlerts(t *testing.T) {
	funding := levelAlert(2, domain.AlertFundingRate, domain.ConditionNone, 0)
	other := levelAlert(3, domain.AlertPriceAbove, domain.ConditionNone, 100)
	other.Asset = "ETH"
	h := newHarness(levelAlert(1, domain.AlertPriceAbove, domain.ConditionNone, 100), funding, other)
	s := newTestScheduler(h, nil, 8)
	ctx := context.Background()

	s.OnPrices(domain.PriceTicks{"BTC": 99})
	s.processPrices(ctx)
	s.OnPrices(domain.PriceTicks{"BTC": 100.5})
	s.OnPrices(domain.PriceTicks{"BTC": 101})
	s.processPrices(ctx)

	if h.disp.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", h.disp.count())
	}
	if h.venue.ctxCalls != 0 {
		t.Fatalf("push path fetched snapshots %d times", h.venue.ctxCalls)
	}
	if h.store.get(2).CurrentValue != nil || h.store.get(3).CurrentValue != nil {
		t.Fatalf("push path touched alerts outside the batch")
	}
}

func TestScheduler_FullInboxDropsBatch(t *testing.T) {
	h := newHarness()
	s := newTestScheduler(h, nil, 1)

	s.OnPrices(domain.PriceTicks{"BTC": 1})
	s.OnPrices(domain.PriceTicks{"BTC": 2})

	if len(s.prices) != 1 {
		t.Fatalf("inbox holds %d batches, want 1", len(s.prices))
	}
	if p, _ := h.cache.Price("BTC"); p != 2 {
		t.Fatalf("cache not updated by dropped batch: %v", p)
	}
}

func TestScheduler_FillPath(t *testing.T) {
	h := newHarness(orderAlert(1, 77), orderAlert(2, 78))
	s := newTestScheduler(h, nil, 8)
	ctx := context.Background()

	s.OnFills(domain.FillBatch{User: testWallet, IsSnapshot: true, Fills: []domain.Fill{{OrderID: 77}}})
	if len(s.fills) != 0 {
		t.Fatalf("snapshot batch was queued")
	}

	s.OnFills(domain.FillBatch{User: strings.ToUpper(testWallet), Fills: []domain.Fill{{Coin: "BTC", OrderID: 77, Price: 64000, Size: 1, Side: "A"}}})
	s.evaluateFills(ctx, <-s.fills)

	if h.disp.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", h.disp.count())
	}
	if !h.store.get(1).Triggered || h.store.get(2).Triggered {
		t.Fatalf("wrong alert triggered")
	}
}

func TestScheduler_DroppedFillsResyncedOnSweep(t *testing.T) {
	h := newHarness(orderAlert(1, 77))
	sub := newFakeSubscriber()
	s := NewScheduler(h.store, h.eval, h.cache, sub, SchedulerConfig{SweepInterval: time.Hour, InboxSize: 8, FillInboxSize: 1}, zap.NewNop())
	ctx := context.Background()
	key := "userFills:" + testWallet

	s.Sweep(ctx)
	s.OnFills(domain.FillBatch{User: testWallet, Fills: []domain.Fill{{OrderID: 10}}})
	s.OnFills(domain.FillBatch{User: testWallet, Fills: []domain.Fill{{OrderID: 77}}})
	if len(s.fills) != 1 {
		t.Fatalf("fill inbox holds %d batches, want 1", len(s.fills))
	}
	s.evaluateFills(ctx, <-s.fills)

	snapshot := domain.FillBatch{User: testWallet, IsSnapshot: true, Fills: []domain.Fill{{OrderID: 77}}}
	s.OnFills(snapshot)
	if len(s.fills) != 0 {
		t.Fatalf("snapshot queued before the account was resubscribed")
	}

	s.Sweep(ctx)
	if got := sub.subscribeCount(key); got != 2 {
		t.Fatalf("userFills subscribed %d times, want 2", got)
	}
	s.Sweep(ctx)
	if got := sub.subscribeCount(key); got != 2 {
		t.Fatalf("resubscribed again while the snapshot is pending: %d", got)
	}

	s.OnFills(snapshot)
	if len(s.fills) != 1 {
		t.Fatalf("resync snapshot not queued")
	}
	s.evaluateFills(ctx, <-s.fills)
	if h.disp.count() != 1 || !h.store.get(1).Triggered {
		t.Fatalf("dropped fill not recovered: dispatches=%d", h.disp.count())
	}

	s.OnFills(snapshot)
	if len(s.fills) != 0 {
		t.Fatalf("second snapshot queued after resync completed")
	}
}

func TestScheduler_FillForOtherAccountIgnored(t *testing.T) {
	h := newHarness(orderAlert(1, 77))
	s := newTestScheduler(h, nil, 8)

	s.evaluateFills(context.Background(), domain.FillBatch{
		User:  "0x9999999999999999999999999999999999999999",
		Fills: []domain.Fill{{OrderID: 77}},
	})
	if h.disp.count() != 0 {
		t.Fatalf("fill for another account fired")
	}
}

func TestScheduler_SweepSyncsSubscriptions(t *testing.T) {
	h := newHarness(orderAlert(1, 77))
	sub := newFakeSubscriber()
	s := newTestScheduler(h, sub, 8)
	ctx := context.Background()

	s.Sweep(ctx)
	if !sub.has("allMids:") {
		t.Fatalf("allMids not subscribed")
	}
	if !sub.has("userFills:" + testWallet) {
		t.Fatalf("userFills not subscribed for the owner wallet")
	}

	s.evaluateFills(ctx, domain.FillBatch{User: testWallet, Fills: []domain.Fill{{OrderID: 77}}})
	s.Sweep(ctx)
	if sub.has("userFills:" + testWallet) {
		t.Fatalf("userFills still subscribed after the only order alert fired")
	}
	if !sub.has("allMids:") {
		t.Fatalf("allMids dropped")
	}
}

func TestScheduler_SweepIsIdempotent(t *testing.T) {
	h := newHarness(
		levelAlert(1, domain.AlertPriceAbove, domain.ConditionNone, 100),
		levelAlert(2, domain.AlertFundingRate, domain.ConditionGreaterThan, 5),
	)
	h.venue.setPerp(domain.MarketSnapshot{Symbol: "BTC", Price: 101, FundingRate: 0.1})
	s := newTestScheduler(h, nil, 8)
	ctx := context.Background()

	h.price("BTC", 99)
	s.Sweep(ctx)
	h.price("BTC", 101)
	s.Sweep(ctx)
	first := h.disp.count()
	s.Sweep(ctx)
	s.Sweep(ctx)

	if first != 2 {
		t.Fatalf("expected both alerts to fire once, got %d", first)
	}
	if h.disp.count() != first {
		t.Fatalf("repeated sweeps dispatched %d more", h.disp.count()-first)
	}
}

func TestScheduler_SweepContinuesPastFailures(t *testing.T) {
	broken := levelAlert(1, domain.AlertBalanceChange, domain.ConditionNone, 10)
	h := newHarness(broken, levelAlert(2, domain.AlertFundingRate, domain.ConditionNone, 5))
	h.venue.setPerp(domain.MarketSnapshot{Symbol: "BTC", Price: 100, FundingRate: 0.1})
	s := newTestScheduler(h, nil, 8)

	s.Sweep(context.Background())
	if h.disp.count() != 1 {
		t.Fatalf("expected the healthy alert to fire, got %d dispatches", h.disp.count())
	}
}

func TestScheduler_Run(t *testing.T) {
	h := newHarness(levelAlert(1, domain.AlertFundingRate, domain.ConditionNone, 5), orderAlert(2, 77))
	h.venue.setPerp(domain.MarketSnapshot{Symbol: "BTC", Price: 100, FundingRate: 0.1})
	s := newTestScheduler(h, newFakeSubscriber(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitUntil(t, func() bool { return h.disp.count() == 1 })
	s.OnFills(domain.FillBatch{User: testWallet, Fills: []domain.Fill{{OrderID: 77}}})
	waitUntil(t, func() bool { return h.disp.count() == 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}

	// Fills after shutdown must not block.
	s.OnFills(domain.FillBatch{User: testWallet, Fills: []domain.Fill{{OrderID: 77}}})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
