package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type InfoClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewInfoClient(url string, timeout time.Duration, rps float64, burst int, logger *zap.Logger) *InfoClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &InfoClient{
		url:     strings.TrimRight(url, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("info"),
	}
}

func (c *InfoClient) post(ctx context.Context, body infoRequest, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		c.logger.Error("info request failed", zap.String("type", body.Type), zap.Error(err))
		return fmt.Errorf("info %s: %w", body.Type, err)
	}
	defer response.Body.Close()

	c.logger.Debug(
		"info request complete",
		zap.String("type", body.Type),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("info %s: status %d", body.Type, response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode info %s: %w", body.Type, err)
	}
	return nil
}

func (c *InfoClient) AssetContexts(ctx context.Context, market domain.MarketKind) ([]domain.MarketSnapshot, error) {
	switch market {
	case domain.MarketPerp, "":
		return c.perpContexts(ctx)
	case domain.MarketSpot:
		return c.spotContexts(ctx)
	}
	return nil, fmt.Errorf("unknown market %q", market)
}

func (c *InfoClient) perpContexts(ctx context.Context) ([]domain.MarketSnapshot, error) {
	var raw []json.RawMessage
	if err := c.post(ctx, infoRequest{Type: "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("metaAndAssetCtxs: expected 2 elements, got %d", len(raw))
	}
	var meta perpMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, fmt.Errorf("decode perp meta: %w", err)
	}
	var ctxs []perpAssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, fmt.Errorf("decode perp contexts: %w", err)
	}

	now := time.Now()
	snapshots := make([]domain.MarketSnapshot, 0, len(ctxs))
	for i, assetCtx := range ctxs {
		if i >= len(meta.Universe) {
			break
		}
		price := assetCtx.MidPx
		if !price.Valid {
			price = assetCtx.MarkPx
		}
		snapshots = append(snapshots, domain.MarketSnapshot{
			Symbol:       meta.Universe[i].Name,
			Market:       domain.MarketPerp,
			Price:        price.Float(),
			PrevDayPrice: assetCtx.PrevDayPx.Float(),
			Volume24h:    assetCtx.DayNtlVlm.Float(),
			FundingRate:  assetCtx.Funding.Float(),
			OpenInterest: assetCtx.OpenInterest.Float(),
			Timestamp:    now,
		})
	}
	return snapshots, nil
}

func (c *InfoClient) spotContexts(ctx context.Context) ([]domain.MarketSnapshot, error) {
	var raw []json.RawMessage
	if err := c.post(ctx, infoRequest{Type: "spotMetaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("spotMetaAndAssetCtxs: expected 2 elements, got %d", len(raw))
	}
	var meta spotMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, fmt.Errorf("decode spot meta: %w", err)
	}
	var ctxs []spotAssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, fmt.Errorf("decode spot contexts: %w", err)
	}

	now := time.Now()
	snapshots := make([]domain.MarketSnapshot, 0, len(ctxs))
	for i, assetCtx := range ctxs {
		symbol := assetCtx.Coin
		if symbol == "" && i < len(meta.Universe) {
			symbol = meta.Universe[i].Name
		}
		if symbol == "" {
			continue
		}
		price := assetCtx.MidPx
		if !price.Valid {
			price = assetCtx.MarkPx
		}
		snapshots = append(snapshots, domain.MarketSnapshot{
			Symbol:       symbol,
			Market:       domain.MarketSpot,
			Price:        price.Float(),
			PrevDayPrice: assetCtx.PrevDayPx.Float(),
			Volume24h:    assetCtx.DayNtlVlm.Float(),
			Timestamp:    now,
		})
	}
	return snapshots, nil
}

func (c *InfoClient) AccountState(ctx context.Context, address string) (*domain.AccountState, error) {
	var raw clearinghouseState
	if err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: address}, &raw); err != nil {
		return nil, err
	}

	state := &domain.AccountState{
		AccountValue: raw.MarginSummary.AccountValue.Float(),
		Withdrawable: raw.Withdrawable.Float(),
		Positions:    make([]domain.Position, 0, len(raw.AssetPositions)),
	}
	for _, ap := range raw.AssetPositions {
		p := ap.Position
		state.Positions = append(state.Positions, domain.Position{
			Coin:             p.Coin,
			Size:             p.Szi.Float(),
			EntryPrice:       p.EntryPx.Float(),
			LiquidationPrice: p.LiquidationPx.Ptr(),
			ReturnOnEquity:   p.ReturnOnEquity.Float(),
			UnrealizedPnL:    p.UnrealizedPnl.Float(),
			PositionValue:    p.PositionValue.Float(),
		})
	}
	return state, nil
}

func (c *InfoClient) SpotBalances(ctx context.Context, address string) ([]domain.SpotBalance, error) {
	var raw spotClearinghouseState
	if err := c.post(ctx, infoRequest{Type: "spotClearinghouseState", User: address}, &raw); err != nil {
		return nil, err
	}

	balances := make([]domain.SpotBalance, 0, len(raw.Balances))
	for _, b := range raw.Balances {
		balances = append(balances, domain.SpotBalance{
			Coin:  b.Coin,
			Total: b.Total.Float(),
			Hold:  b.Hold.Float(),
		})
	}
	return balances, nil
}
