package hyperliquid

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal decodes the venue's numeric fields, which arrive as decimal strings
// and occasionally as bare numbers or null.
type Decimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

func (n *Decimal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	if trimmed == "" {
		n.Valid = false
		return nil
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Decimal = dec
	n.Valid = true
	return nil
}

func (n Decimal) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Decimal.InexactFloat64()
}

func (n Decimal) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Decimal.InexactFloat64()
	return &v
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type perpMeta struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
		IsDelisted bool   `json:"isDelisted"`
	} `json:"universe"`
}

type perpAssetCtx struct {
	Funding      Decimal `json:"funding"`
	OpenInterest Decimal `json:"openInterest"`
	PrevDayPx    Decimal `json:"prevDayPx"`
	DayNtlVlm    Decimal `json:"dayNtlVlm"`
	MarkPx       Decimal `json:"markPx"`
	MidPx        Decimal `json:"midPx"`
	OraclePx     Decimal `json:"oraclePx"`
}

type spotMeta struct {
	Universe []struct {
		Name  string `json:"name"`
		Index int    `json:"index"`
	} `json:"universe"`
}

type spotAssetCtx struct {
	Coin      string  `json:"coin"`
	PrevDayPx Decimal `json:"prevDayPx"`
	DayNtlVlm Decimal `json:"dayNtlVlm"`
	MarkPx    Decimal `json:"markPx"`
	MidPx     Decimal `json:"midPx"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Type     string `json:"type"`
		Position struct {
			Coin           string  `json:"coin"`
			Szi            Decimal `json:"szi"`
			EntryPx        Decimal `json:"entryPx"`
			LiquidationPx  Decimal `json:"liquidationPx"`
			ReturnOnEquity Decimal `json:"returnOnEquity"`
			UnrealizedPnl  Decimal `json:"unrealizedPnl"`
			PositionValue  Decimal `json:"positionValue"`
		} `json:"position"`
	} `json:"assetPositions"`
	MarginSummary struct {
		AccountValue Decimal `json:"accountValue"`
	} `json:"marginSummary"`
	Withdrawable Decimal `json:"withdrawable"`
}

type spotClearinghouseState struct {
	Balances []struct {
		Coin  string  `json:"coin"`
		Token int     `json:"token"`
		Hold  Decimal `json:"hold"`
		Total Decimal `json:"total"`
	} `json:"balances"`
}

type wsFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsControl struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
}

type wsAllMids struct {
	Mids map[string]Decimal `json:"mids"`
}

type wsOrderUpdate struct {
	Order struct {
		Coin      string  `json:"coin"`
		Side      string  `json:"side"`
		LimitPx   Decimal `json:"limitPx"`
		Sz        Decimal `json:"sz"`
		Oid       int64   `json:"oid"`
		Timestamp int64   `json:"timestamp"`
		OrigSz    Decimal `json:"origSz"`
	} `json:"order"`
	Status          string `json:"status"`
	StatusTimestamp int64  `json:"statusTimestamp"`
}

type wsFill struct {
	Coin          string  `json:"coin"`
	Px            Decimal `json:"px"`
	Sz            Decimal `json:"sz"`
	Side          string  `json:"side"`
	Time          int64   `json:"time"`
	StartPosition Decimal `json:"startPosition"`
	Dir           string  `json:"dir"`
	ClosedPnl     Decimal `json:"closedPnl"`
	Hash          string  `json:"hash"`
	Oid           int64   `json:"oid"`
	Fee           Decimal `json:"fee"`
	Tid           int64   `json:"tid"`
}

type wsUserFills struct {
	IsSnapshot bool     `json:"isSnapshot"`
	User       string   `json:"user"`
	Fills      []wsFill `json:"fills"`
}

type wsUserFundings struct {
	IsSnapshot bool   `json:"isSnapshot"`
	User       string `json:"user"`
	Fundings   []struct {
		Time        int64   `json:"time"`
		Coin        string  `json:"coin"`
		Usdc        Decimal `json:"usdc"`
		Szi         Decimal `json:"szi"`
		FundingRate Decimal `json:"fundingRate"`
	} `json:"fundings"`
}

type wsLevel struct {
	Px Decimal `json:"px"`
	Sz Decimal `json:"sz"`
	N  int     `json:"n"`
}

type wsBook struct {
	Coin   string      `json:"coin"`
	Levels [][]wsLevel `json:"levels"`
	Time   int64       `json:"time"`
}

type wsTrade struct {
	Coin string  `json:"coin"`
	Side string  `json:"side"`
	Px   Decimal `json:"px"`
	Sz   Decimal `json:"sz"`
	Hash string  `json:"hash"`
	Time int64   `json:"time"`
	Tid  int64   `json:"tid"`
}
