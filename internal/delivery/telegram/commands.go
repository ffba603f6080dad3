package telegram

import (
	"errors"
	"strconv"
	"strings"
)

const HelpText = `Commands:
/start [wallet] - register, optionally linking a wallet
/wallet <address> - link the wallet used by account alerts
/alerts - list your alerts
/reset <alert_id> - re-arm a triggered alert
/enable <alert_id>
/disable <alert_id>
/help - show this help

Notes:
- Price above/below alerts re-arm by themselves once the price returns past the target.
- Crossing alerts fire on every crossing.
- Other alerts stay triggered until you /reset them.
`

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseWallet(args string) (string, error) {
	wallet := strings.TrimSpace(args)
	if wallet == "" || len(strings.Fields(wallet)) != 1 {
		return "", ErrInvalidArguments
	}
	return wallet, nil
}

func ParseAlertID(args string) (uint, error) {
	idStr := strings.TrimPrefix(strings.TrimSpace(args), "#")
	if idStr == "" {
		return 0, ErrInvalidArguments
	}
	value, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, ErrInvalidArguments
	}
	return uint(value), nil
}
