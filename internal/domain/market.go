package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrNoPosition        = errors.New("no open position")
	ErrUnsupportedMarket = errors.New("unsupported market for alert type")
)

type MarketSnapshot struct {
	Symbol             string
	Market             MarketKind
	Price              float64
	PrevDayPrice       float64
	Volume24h          float64
	FundingRate        float64
	OpenInterest       float64
	PriceChange        float64
	PriceChangePercent float64
	Timestamp          time.Time
}

type Position struct {
	Coin             string
	Size             float64
	EntryPrice       float64
	LiquidationPrice *float64
	ReturnOnEquity   float64
	UnrealizedPnL    float64
	PositionValue    float64
}

type AccountState struct {
	AccountValue float64
	Withdrawable float64
	Positions    []Position
}

func (s AccountState) Position(coin string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Coin == coin {
			return p, true
		}
	}
	return Position{}, false
}

type SpotBalance struct {
	Coin  string
	Total float64
	Hold  float64
}

// VenueClient is the request/response side of the upstream venue.
type VenueClient interface {
	AssetContexts(ctx context.Context, market MarketKind) ([]MarketSnapshot, error)
	AccountState(ctx context.Context, address string) (*AccountState, error)
	SpotBalances(ctx context.Context, address string) ([]SpotBalance, error)
}
