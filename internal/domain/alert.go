package domain

import (
	"fmt"
	"time"
)

type MarketKind string

const (
	MarketPerp MarketKind = "perp"
	MarketSpot MarketKind = "spot"
)

type AlertType string

const (
	AlertPriceAbove         AlertType = "price_above"
	AlertPriceBelow         AlertType = "price_below"
	AlertPriceChangePercent AlertType = "price_change_percent"
	AlertVolumeSpike        AlertType = "volume_spike"
	AlertFundingRate        AlertType = "funding_rate"
	AlertLiquidationRisk    AlertType = "liquidation_risk"
	AlertPositionPnL        AlertType = "position_pnl"
	AlertBalanceChange      AlertType = "balance_change"
	AlertOrderFilled        AlertType = "order_filled"
)

// PriceDriven reports whether the alert is re-evaluated on streamed price ticks.
func (t AlertType) PriceDriven() bool {
	switch t {
	case AlertPriceAbove, AlertPriceBelow, AlertPriceChangePercent, AlertVolumeSpike:
		return true
	}
	return false
}

func (t AlertType) Level() bool {
	return t == AlertPriceAbove || t == AlertPriceBelow
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertPriceAbove, AlertPriceBelow, AlertPriceChangePercent, AlertVolumeSpike,
		AlertFundingRate, AlertLiquidationRisk, AlertPositionPnL, AlertBalanceChange, AlertOrderFilled:
		return true
	}
	return false
}

type Condition string

const (
	ConditionNone         Condition = ""
	ConditionGreaterThan  Condition = "gt"
	ConditionLessThan     Condition = "lt"
	ConditionEquals       Condition = "eq"
	ConditionCrossesAbove Condition = "crosses_above"
	ConditionCrossesBelow Condition = "crosses_below"
)

func (c Condition) Crossing() bool {
	return c == ConditionCrossesAbove || c == ConditionCrossesBelow
}

func (c Condition) Symbol() string {
	switch c {
	case ConditionGreaterThan:
		return ">"
	case ConditionLessThan:
		return "<"
	case ConditionEquals:
		return "="
	case ConditionCrossesAbove:
		return "crosses above"
	case ConditionCrossesBelow:
		return "crosses below"
	}
	return string(c)
}

type Channels struct {
	Telegram bool `json:"telegram"`
	Email    bool `json:"email"`
	Webhook  bool `json:"webhook"`
	Push     bool `json:"push"`
}

func (c Channels) Any() bool {
	return c.Telegram || c.Email || c.Webhook || c.Push
}

type Alert struct {
	ID            uint
	UserID        uint
	Asset         string
	Market        MarketKind
	Type          AlertType
	Condition     Condition
	Target        float64
	CurrentValue  *float64
	Active        bool
	Triggered     bool
	TriggerCount  int
	LastTriggered *time.Time
	Channels      Channels
	Params        AlertParams
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Alert) String() string {
	return fmt.Sprintf("#%d %s %s %s", a.ID, a.Type, a.Asset, a.Market)
}

// AlertFilter selects alerts from the store. Nil fields do not filter.
type AlertFilter struct {
	Active    *bool
	Triggered *bool
	Types     []AlertType
	Assets    []string
}

func Bool(v bool) *bool {
	return &v
}
