package usecase

import (
	"fmt"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"github.com/shopspring/decimal"
)

func num(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String() + "%"
}

func formatTrigger(alert *domain.Alert, m measurement, prev float64) (string, string) {
	asset := alert.Asset
	target := alert.Target

	if alert.Condition.Crossing() && alert.Type != domain.AlertOrderFilled {
		title := fmt.Sprintf("%s %s %s", asset, alert.Condition.Symbol(), num(target))
		return title, fmt.Sprintf("%s %s %s %s: %s → %s.", asset, metricLabel(m.metric), alert.Condition.Symbol(), num(target), num(prev), num(m.value))
	}

	switch alert.Type {
	case domain.AlertPriceAbove:
		return fmt.Sprintf("%s above %s", asset, num(target)),
			fmt.Sprintf("%s (%s) rose above %s: now %s, was %s.", asset, marketOf(alert), num(target), num(m.value), num(prev))
	case domain.AlertPriceBelow:
		return fmt.Sprintf("%s below %s", asset, num(target)),
			fmt.Sprintf("%s (%s) fell below %s: now %s, was %s.", asset, marketOf(alert), num(target), num(m.value), num(prev))
	case domain.AlertPriceChangePercent:
		return fmt.Sprintf("%s moved %s", asset, pct(m.derived)),
			fmt.Sprintf("%s moved %s from %s to %s (threshold %s).", asset, pct(m.derived), num(prev), num(m.value), pct(target))
	case domain.AlertVolumeSpike:
		return fmt.Sprintf("%s volume spike %s", asset, pct(m.derived)),
			fmt.Sprintf("%s 24h volume up %s: %s → %s (threshold %s).", asset, pct(m.derived), num(prev), num(m.value), pct(target))
	case domain.AlertFundingRate:
		return fmt.Sprintf("%s funding %s", asset, pct(m.value)),
			fmt.Sprintf("%s funding rate is %s, %s %s.", asset, pct(m.value), operatorSymbol(alert.Condition), pct(target))
	case domain.AlertLiquidationRisk:
		return fmt.Sprintf("%s near liquidation", asset),
			fmt.Sprintf("%s position is %s from liquidation: price %s, liquidation %s (threshold %s).", asset, pct(m.value), num(m.price), num(m.liquidation), pct(target))
	case domain.AlertPositionPnL:
		return fmt.Sprintf("%s ROE %s", asset, pct(m.value)),
			fmt.Sprintf("%s position return on equity is %s, %s %s.", asset, pct(m.value), operatorSymbol(alert.Condition), pct(target))
	case domain.AlertBalanceChange:
		return fmt.Sprintf("%s balance changed %s", m.token, pct(m.derived)),
			fmt.Sprintf("%s spot balance changed %s: %s → %s (threshold %s).", m.token, pct(m.derived), num(prev), num(m.value), pct(target))
	case domain.AlertOrderFilled:
		if m.fill == nil {
			return "Order filled", fmt.Sprintf("Order on %s filled.", asset)
		}
		f := m.fill
		return fmt.Sprintf("Order %d filled", f.OrderID),
			fmt.Sprintf("Order %d filled: %s %s %s @ %s.", f.OrderID, sideLabel(f.Side), num(f.Size), f.Coin, num(f.Price))
	}
	return fmt.Sprintf("%s alert", asset), fmt.Sprintf("%s %s is %s.", asset, alert.Type, num(m.value))
}

func triggerPayload(alert *domain.Alert, m measurement, prev float64, at time.Time) map[string]any {
	payload := map[string]any{
		"alertId":       alert.ID,
		"type":          string(alert.Type),
		"asset":         alert.Asset,
		"market":        string(marketOf(alert)),
		"condition":     string(alert.Condition),
		"target":        alert.Target,
		"currentValue":  m.value,
		"previousValue": prev,
		"triggerCount":  alert.TriggerCount,
		"triggeredAt":   at.UTC().Format(time.RFC3339),
	}
	switch alert.Type {
	case domain.AlertPriceChangePercent, domain.AlertVolumeSpike, domain.AlertBalanceChange:
		payload["changePercent"] = m.derived
	case domain.AlertLiquidationRisk:
		payload["price"] = m.price
		payload["liquidationPrice"] = m.liquidation
	}
	if m.fill != nil {
		payload["orderId"] = m.fill.OrderID
		payload["fillPrice"] = m.fill.Price
		payload["fillSize"] = m.fill.Size
		payload["side"] = m.fill.Side
	}
	return payload
}

func metricLabel(metric string) string {
	switch metric {
	case metricPrice:
		return "price"
	case metricVolume:
		return "24h volume"
	case metricFunding:
		return "funding rate %"
	case metricRisk:
		return "liquidation distance %"
	case metricPnL:
		return "ROE %"
	case metricBalance:
		return "balance"
	}
	return metric
}

func operatorSymbol(c domain.Condition) string {
	if c == domain.ConditionNone {
		return ">"
	}
	return c.Symbol()
}

func sideLabel(side string) string {
	switch side {
	case "B":
		return "buy"
	case "A":
		return "sell"
	}
	return side
}
