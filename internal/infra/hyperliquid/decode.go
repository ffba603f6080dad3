package hyperliquid

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
)

func decodeMids(data json.RawMessage) (domain.PriceTicks, error) {
	var payload wsAllMids
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode allMids: %w", err)
	}
	ticks := make(domain.PriceTicks, len(payload.Mids))
	for symbol, mid := range payload.Mids {
		if !mid.Valid {
			continue
		}
		ticks[symbol] = mid.Float()
	}
	return ticks, nil
}

func decodeOrderUpdates(data json.RawMessage) ([]domain.OrderUpdate, error) {
	var payload []wsOrderUpdate
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode orderUpdates: %w", err)
	}
	updates := make([]domain.OrderUpdate, 0, len(payload))
	for _, u := range payload {
		updates = append(updates, domain.OrderUpdate{
			Coin:            u.Order.Coin,
			Side:            u.Order.Side,
			LimitPrice:      u.Order.LimitPx.Float(),
			Size:            u.Order.Sz.Float(),
			OrigSize:        u.Order.OrigSz.Float(),
			OrderID:         u.Order.Oid,
			Status:          u.Status,
			StatusTimestamp: millis(u.StatusTimestamp),
		})
	}
	return updates, nil
}

func decodeFills(data json.RawMessage) (domain.FillBatch, error) {
	var payload wsUserFills
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.FillBatch{}, fmt.Errorf("decode userFills: %w", err)
	}
	batch := domain.FillBatch{
		User:       payload.User,
		IsSnapshot: payload.IsSnapshot,
		Fills:      make([]domain.Fill, 0, len(payload.Fills)),
	}
	for _, f := range payload.Fills {
		batch.Fills = append(batch.Fills, domain.Fill{
			Coin:          f.Coin,
			Price:         f.Px.Float(),
			Size:          f.Sz.Float(),
			Side:          f.Side,
			Direction:     f.Dir,
			ClosedPnL:     f.ClosedPnl.Float(),
			Fee:           f.Fee.Float(),
			OrderID:       f.Oid,
			TradeID:       f.Tid,
			Hash:          f.Hash,
			Time:          millis(f.Time),
			StartPosition: f.StartPosition.Float(),
		})
	}
	return batch, nil
}

func decodeFundings(data json.RawMessage) (domain.FundingBatch, error) {
	var payload wsUserFundings
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.FundingBatch{}, fmt.Errorf("decode userFundings: %w", err)
	}
	batch := domain.FundingBatch{
		User:       payload.User,
		IsSnapshot: payload.IsSnapshot,
		Fundings:   make([]domain.Funding, 0, len(payload.Fundings)),
	}
	for _, f := range payload.Fundings {
		batch.Fundings = append(batch.Fundings, domain.Funding{
			Coin:        f.Coin,
			USDC:        f.Usdc.Float(),
			Size:        f.Szi.Float(),
			FundingRate: f.FundingRate.Float(),
			Time:        millis(f.Time),
		})
	}
	return batch, nil
}

func decodeBook(data json.RawMessage) (domain.BookUpdate, error) {
	var payload wsBook
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.BookUpdate{}, fmt.Errorf("decode l2Book: %w", err)
	}
	book := domain.BookUpdate{Coin: payload.Coin, Time: millis(payload.Time)}
	if len(payload.Levels) > 0 {
		book.Bids = levels(payload.Levels[0])
	}
	if len(payload.Levels) > 1 {
		book.Asks = levels(payload.Levels[1])
	}
	return book, nil
}

func levels(raw []wsLevel) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(raw))
	for _, l := range raw {
		out = append(out, domain.BookLevel{Price: l.Px.Float(), Size: l.Sz.Float(), Orders: l.N})
	}
	return out
}

func decodeTrades(data json.RawMessage) ([]domain.Trade, error) {
	var payload []wsTrade
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	trades := make([]domain.Trade, 0, len(payload))
	for _, t := range payload {
		trades = append(trades, domain.Trade{
			Coin:    t.Coin,
			Side:    t.Side,
			Price:   t.Px.Float(),
			Size:    t.Sz.Float(),
			Hash:    t.Hash,
			TradeID: t.Tid,
			Time:    millis(t.Time),
		})
	}
	return trades, nil
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
