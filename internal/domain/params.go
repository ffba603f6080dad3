package domain

import (
	"encoding/json"
	"fmt"
)

// AlertParams holds the per-type fields an alert consumes. Only the variants
// declared in this package implement it.
type AlertParams interface {
	params()
}

type OrderFilledParams struct {
	Address string `json:"address,omitempty"`
	OrderID int64  `json:"order_id"`
}

type PositionParams struct {
	Address string `json:"address,omitempty"`
}

// BalanceParams selects a spot token balance. Token defaults to the alert asset.
type BalanceParams struct {
	Address string `json:"address,omitempty"`
	Token   string `json:"token,omitempty"`
}

func (OrderFilledParams) params() {}
func (PositionParams) params()    {}
func (BalanceParams) params()     {}

func AccountAddress(p AlertParams) string {
	switch v := p.(type) {
	case OrderFilledParams:
		return v.Address
	case PositionParams:
		return v.Address
	case BalanceParams:
		return v.Address
	}
	return ""
}

// DecodeParams decodes the stored params blob for an alert type. Types that
// consume no params yield nil.
func DecodeParams(t AlertType, raw []byte) (AlertParams, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch t {
	case AlertOrderFilled:
		var p OrderFilledParams
		if empty {
			return nil, fmt.Errorf("%s alert requires params", t)
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", t, err)
		}
		return p, nil
	case AlertLiquidationRisk, AlertPositionPnL:
		var p PositionParams
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s params: %w", t, err)
			}
		}
		return p, nil
	case AlertBalanceChange:
		var p BalanceParams
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s params: %w", t, err)
			}
		}
		return p, nil
	}
	return nil, nil
}
