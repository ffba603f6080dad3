package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

type snapshotSet struct {
	bySymbol  map[string]domain.MarketSnapshot
	fetchedAt time.Time
}

// MarketCache holds the latest known price per symbol, fed by streamed mids,
// and per-market snapshot sets fetched on demand.
type MarketCache struct {
	venue  domain.VenueClient
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	prices    map[string]float64
	snapshots map[domain.MarketKind]snapshotSet
}

func NewMarketCache(venue domain.VenueClient, ttl time.Duration, logger *zap.Logger) *MarketCache {
	return &MarketCache{
		venue:     venue,
		ttl:       ttl,
		logger:    logger.Named("cache"),
		now:       time.Now,
		prices:    make(map[string]float64),
		snapshots: make(map[domain.MarketKind]snapshotSet),
	}
}

func (c *MarketCache) ApplyPrices(ticks domain.PriceTicks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for symbol, price := range ticks {
		c.prices[symbol] = price
	}
}

func (c *MarketCache) Price(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[symbol]
	return price, ok
}

// GetOrFetch returns the cached price when present. Otherwise it fetches a
// snapshot, caches its price and returns it alongside the price.
func (c *MarketCache) GetOrFetch(ctx context.Context, symbol string, market domain.MarketKind) (float64, *domain.MarketSnapshot, error) {
	if price, ok := c.Price(symbol); ok {
		return price, nil, nil
	}
	snapshot, err := c.Snapshot(ctx, symbol, market)
	if err != nil {
		return 0, nil, err
	}
	return snapshot.Price, snapshot, nil
}

// Snapshot returns the symbol's snapshot, refreshing the whole market set when
// the cached one is older than the TTL.
func (c *MarketCache) Snapshot(ctx context.Context, symbol string, market domain.MarketKind) (*domain.MarketSnapshot, error) {
	if market == "" {
		market = domain.MarketPerp
	}

	c.mu.RLock()
	set, ok := c.snapshots[market]
	c.mu.RUnlock()
	if !ok || c.now().Sub(set.fetchedAt) >= c.ttl {
		fresh, err := c.refresh(ctx, market)
		if err != nil {
			return nil, err
		}
		set = fresh
	}

	snapshot, ok := set.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", market, symbol, domain.ErrSymbolNotFound)
	}
	return &snapshot, nil
}

// refresh replaces the market's snapshot set wholesale. Concurrent refreshes
// resolve last-writer-wins.
func (c *MarketCache) refresh(ctx context.Context, market domain.MarketKind) (snapshotSet, error) {
	contexts, err := c.venue.AssetContexts(ctx, market)
	if err != nil {
		return snapshotSet{}, fmt.Errorf("fetch %s asset contexts: %w", market, err)
	}

	set := snapshotSet{bySymbol: make(map[string]domain.MarketSnapshot, len(contexts)), fetchedAt: c.now()}
	for _, snapshot := range contexts {
		snapshot.PriceChange, snapshot.PriceChangePercent = dayChange(snapshot.Price, snapshot.PrevDayPrice)
		set.bySymbol[snapshot.Symbol] = snapshot
	}

	c.mu.Lock()
	c.snapshots[market] = set
	for symbol, snapshot := range set.bySymbol {
		if snapshot.Price > 0 {
			c.prices[symbol] = snapshot.Price
		}
	}
	c.mu.Unlock()

	c.logger.Debug("snapshots refreshed", zap.String("market", string(market)), zap.Int("symbols", len(set.bySymbol)))
	return set, nil
}

// dayChange derives the 24h change; a zero previous price means no change.
func dayChange(price, prevDay float64) (float64, float64) {
	if prevDay == 0 {
		return 0, 0
	}
	change := price - prevDay
	return change, change / prevDay * 100
}
