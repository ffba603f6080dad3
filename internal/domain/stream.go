package domain

import "time"

type SubscriptionType string

const (
	SubAllMids      SubscriptionType = "allMids"
	SubOrderUpdates SubscriptionType = "orderUpdates"
	SubUserFills    SubscriptionType = "userFills"
	SubUserFundings SubscriptionType = "userFundings"
	SubL2Book       SubscriptionType = "l2Book"
	SubTrades       SubscriptionType = "trades"
)

// UserScoped reports whether the subscription identifier is an account address
// rather than a coin.
func (t SubscriptionType) UserScoped() bool {
	switch t {
	case SubOrderUpdates, SubUserFills, SubUserFundings:
		return true
	}
	return false
}

type PriceTicks map[string]float64

type OrderUpdate struct {
	Coin            string
	Side            string
	LimitPrice      float64
	Size            float64
	OrigSize        float64
	OrderID         int64
	Status          string
	StatusTimestamp time.Time
}

type Fill struct {
	Coin          string
	Price         float64
	Size          float64
	Side          string
	Direction     string
	ClosedPnL     float64
	Fee           float64
	OrderID       int64
	TradeID       int64
	Hash          string
	Time          time.Time
	StartPosition float64
}

type FillBatch struct {
	User       string
	IsSnapshot bool
	Fills      []Fill
}

type Funding struct {
	Coin        string
	USDC        float64
	Size        float64
	FundingRate float64
	Time        time.Time
}

type FundingBatch struct {
	User       string
	IsSnapshot bool
	Fundings   []Funding
}

type BookLevel struct {
	Price  float64
	Size   float64
	Orders int
}

type BookUpdate struct {
	Coin string
	Bids []BookLevel
	Asks []BookLevel
	Time time.Time
}

type Trade struct {
	Coin    string
	Side    string
	Price   float64
	Size    float64
	Hash    string
	TradeID int64
	Time    time.Time
}

type StreamSignalKind string

const (
	SignalConnected    StreamSignalKind = "connected"
	SignalDisconnected StreamSignalKind = "disconnected"
	SignalError        StreamSignalKind = "error"
	SignalGaveUp       StreamSignalKind = "gave_up"
)

type StreamSignal struct {
	Kind    StreamSignalKind
	Err     error
	Attempt int
}

// StreamListener receives typed output from the stream ingestor. Calls happen
// on the ingestor's read goroutine and must not block.
type StreamListener interface {
	OnPrices(PriceTicks)
	OnOrderUpdates([]OrderUpdate)
	OnFills(FillBatch)
	OnFundings(FundingBatch)
	OnBook(BookUpdate)
	OnTrades([]Trade)
	OnSignal(StreamSignal)
}

type NopListener struct{}

func (NopListener) OnPrices(PriceTicks)          {}
func (NopListener) OnOrderUpdates([]OrderUpdate) {}
func (NopListener) OnFills(FillBatch)            {}
func (NopListener) OnFundings(FundingBatch)      {}
func (NopListener) OnBook(BookUpdate)            {}
func (NopListener) OnTrades([]Trade)             {}
func (NopListener) OnSignal(StreamSignal)        {}

type StreamSubscriber interface {
	Subscribe(typ SubscriptionType, identifier string) error
	Unsubscribe(typ SubscriptionType, identifier string) error
}
