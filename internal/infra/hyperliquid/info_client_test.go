package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

func infoServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s, expected POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var req infoRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp, ok := responses[req.Type]
		if !ok {
			http.Error(w, "unknown type", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, resp)
	}))
}

func TestInfoClientPerpContexts(t *testing.T) {
	server := infoServer(t, map[string]string{
		"metaAndAssetCtxs": `[
			{"universe":[{"name":"BTC","szDecimals":5},{"name":"ETH","szDecimals":4}]},
			[
				{"funding":"0.0000125","openInterest":"1000.5","prevDayPx":"60000","dayNtlVlm":"123456789.1","markPx":"64990","midPx":"65000.5","oraclePx":"64995"},
				{"funding":"-0.00001","openInterest":"20000","prevDayPx":"3000","dayNtlVlm":"5000","markPx":"3100","midPx":null,"oraclePx":"3099"}
			]
		]`,
	})
	defer server.Close()

	client := NewInfoClient(server.URL, time.Second, 0, 1, zap.NewNop())
	snapshots, err := client.AssetContexts(context.Background(), domain.MarketPerp)
	if err != nil {
		t.Fatalf("AssetContexts returned error: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("snapshots=%d, expected 2", len(snapshots))
	}
	btc := snapshots[0]
	if btc.Symbol != "BTC" || btc.Price != 65000.5 || btc.PrevDayPrice != 60000 || btc.FundingRate != 0.0000125 || btc.OpenInterest != 1000.5 {
		t.Fatalf("unexpected BTC snapshot: %+v", btc)
	}
	if snapshots[1].Price != 3100 {
		t.Fatalf("ETH price=%v, expected mark price fallback 3100", snapshots[1].Price)
	}
}

func TestInfoClientSpotContexts(t *testing.T) {
	server := infoServer(t, map[string]string{
		"spotMetaAndAssetCtxs": `[
			{"universe":[{"name":"PURR/USDC","tokens":[1,0],"index":0}],"tokens":[]},
			[{"coin":"PURR/USDC","prevDayPx":"0.2","dayNtlVlm":"1000","markPx":"0.21","midPx":"0.215"}]
		]`,
	})
	defer server.Close()

	client := NewInfoClient(server.URL, time.Second, 0, 1, zap.NewNop())
	snapshots, err := client.AssetContexts(context.Background(), domain.MarketSpot)
	if err != nil {
		t.Fatalf("AssetContexts returned error: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Symbol != "PURR/USDC" || snapshots[0].Market != domain.MarketSpot || snapshots[0].Price != 0.215 {
		t.Fatalf("unexpected spot snapshots: %+v", snapshots)
	}
}

func TestInfoClientAccountState(t *testing.T) {
	server := infoServer(t, map[string]string{
		"clearinghouseState": `{
			"assetPositions":[
				{"type":"oneWay","position":{"coin":"ETH","szi":"-1.5","entryPx":"3000","liquidationPx":"3500","returnOnEquity":"-0.125","unrealizedPnl":"-150","positionValue":"4650"}},
				{"type":"oneWay","position":{"coin":"BTC","szi":"0.01","entryPx":"60000","liquidationPx":null,"returnOnEquity":"0.05","unrealizedPnl":"50","positionValue":"650"}}
			],
			"marginSummary":{"accountValue":"10000"},
			"withdrawable":"4000"
		}`,
		"spotClearinghouseState": `{"balances":[{"coin":"USDC","token":0,"hold":"1","total":"14.625"}]}`,
	})
	defer server.Close()

	client := NewInfoClient(server.URL, time.Second, 0, 1, zap.NewNop())
	state, err := client.AccountState(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("AccountState returned error: %v", err)
	}
	eth, ok := state.Position("ETH")
	if !ok || eth.LiquidationPrice == nil || *eth.LiquidationPrice != 3500 || eth.ReturnOnEquity != -0.125 {
		t.Fatalf("unexpected ETH position: %+v", eth)
	}
	btc, _ := state.Position("BTC")
	if btc.LiquidationPrice != nil {
		t.Fatalf("BTC liquidation price=%v, expected nil", *btc.LiquidationPrice)
	}
	if state.AccountValue != 10000 {
		t.Fatalf("account value=%v, expected 10000", state.AccountValue)
	}

	balances, err := client.SpotBalances(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("SpotBalances returned error: %v", err)
	}
	if len(balances) != 1 || balances[0].Total != 14.625 {
		t.Fatalf("unexpected balances: %+v", balances)
	}
}

func TestInfoClientStatusError(t *testing.T) {
	server := infoServer(t, map[string]string{})
	defer server.Close()

	client := NewInfoClient(server.URL, time.Second, 0, 1, zap.NewNop())
	if _, err := client.AssetContexts(context.Background(), domain.MarketPerp); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestDecimalUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		valid   bool
		wantErr bool
	}{
		{name: "string", input: `"65000.5"`, want: 65000.5, valid: true},
		{name: "number", input: `12.25`, want: 12.25, valid: true},
		{name: "null", input: `null`},
		{name: "empty string", input: `""`},
		{name: "garbage", input: `"abc"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Decimal
			err := json.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr %v", err, tt.wantErr)
			}
			if d.Valid != tt.valid {
				t.Fatalf("valid=%v, expected %v", d.Valid, tt.valid)
			}
			if d.Float() != tt.want {
				t.Fatalf("value=%v, expected %v", d.Float(), tt.want)
			}
		})
	}
}
