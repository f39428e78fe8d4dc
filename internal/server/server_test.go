package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/testutil"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

type fakeProfiles map[string]*model.WhaleProfile

func (f fakeProfiles) GetProfile(_ context.Context, wallet string) (*model.WhaleProfile, error) {
	return f[wallet], nil
}

type fakeStats map[string]*model.WhaleStats

func (f fakeStats) GetStats(_ context.Context, wallet string) (*model.WhaleStats, error) {
	return f[wallet], nil
}

type fakeNames map[string]string

func (f fakeNames) WalletName(_ context.Context, wallet string) string {
	return f[wallet]
}

const tradeBody = `{"trade_id":"t1","wallet":"0xw1","market_id":"m1","side":"BUY","amount":"1000","price":"0.5","timestamp":"2025-03-01T12:00:00Z"}`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ready := false
	s := New(Options{Ready: func() bool { return ready }})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/health", "").Code)
	ready = true
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, New(Options{}).Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIngestTradeStoresAndPublishesOnce(t *testing.T) {
	trades := repo.NewTradeRawRepo(testutil.NewDB(t))
	pub := &testutil.Publisher{}
	s := New(Options{Trades: trades, Pub: pub, TradeQueue: "trade_created", PublishDirect: true})

	rec := do(t, s.Handler(), http.MethodPost, "/ingest/trade", tradeBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"trade_id":"t1","inserted":true,"published":true}`, rec.Body.String())

	rec = do(t, s.Handler(), http.MethodPost, "/ingest/trade", tradeBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"trade_id":"t1","inserted":false,"published":false}`, rec.Body.String())

	messages := pub.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "trade_created", messages[0].Queue)
	assert.Equal(t, "0xw1", messages[0].Key)
	trade, err := common.DecodeEvent[common.TradeIngested](messages[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, common.SideBuy, trade.Side)

	stored, err := trades.GetTradesAfterId(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, decimal.NewFromInt(1000).Equal(stored[0].Amount))
}

func TestIngestTradeLeavesPublishingToPoller(t *testing.T) {
	pub := &testutil.Publisher{}
	s := New(Options{Trades: repo.NewTradeRawRepo(testutil.NewDB(t)), Pub: pub, TradeQueue: "trade_created"})

	rec := do(t, s.Handler(), http.MethodPost, "/ingest/trade", tradeBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, pub.Messages())
}

func TestIngestTradeRejectsInvalid(t *testing.T) {
	pub := &testutil.Publisher{}
	s := New(Options{Pub: pub, TradeQueue: "trade_created", PublishDirect: true})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing wallet", `{"trade_id":"t1","market_id":"m1","side":"buy","amount":"1","price":"1","timestamp":"2025-03-01T12:00:00Z"}`},
		{"bad side", `{"trade_id":"t1","wallet":"0xw1","market_id":"m1","side":"hold","amount":"1","price":"1","timestamp":"2025-03-01T12:00:00Z"}`},
		{"negative amount", `{"trade_id":"t1","wallet":"0xw1","market_id":"m1","side":"buy","amount":"-1","price":"1","timestamp":"2025-03-01T12:00:00Z"}`},
		{"unknown field", `{"trade_id":"t1","wallet":"0xw1","market_id":"m1","side":"buy","amount":"1","price":"1","timestamp":"2025-03-01T12:00:00Z","extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/ingest/trade", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, pub.Messages())
}

func TestWhaleProfile(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	profiles := fakeProfiles{
		"0xw1": {Wallet: "0xw1", TotalVolume: decimal.NewFromInt(50000), TotalTrades: 12, RealizedPnl: decimal.NewFromInt(1200), Wins: 3, Losses: 1, FirstSeenAt: first, LastSeenAt: first.Add(time.Hour)},
		"0x1234567890abcdef1234567890abcdef12345678": {Wallet: "0x1234567890abcdef1234567890abcdef12345678", FirstSeenAt: first, LastSeenAt: first},
	}
	s := New(Options{
		Profiles: profiles,
		Stats:    fakeStats{"0xw1": {Wallet: "0xw1", WhaleScore: 82, UpdatedAt: first}},
		Names:    fakeNames{"0xw1": "whale.eth"},
	})

	rec := do(t, s.Handler(), http.MethodGet, "/whales/0xw1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp whaleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "whale.eth", resp.DisplayName)
	assert.Equal(t, "50000", resp.TotalVolume)
	assert.InDelta(t, 0.75, resp.WinRate, 1e-9)
	require.NotNil(t, resp.WhaleScore)
	assert.Equal(t, 82, *resp.WhaleScore)

	wallet := "0x1234567890abcdef1234567890abcdef12345678"
	rec = do(t, s.Handler(), http.MethodGet, "/whales/"+wallet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = whaleResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, utils.ShortWallet(wallet), resp.DisplayName)
	assert.Nil(t, resp.WhaleScore)
	assert.Zero(t, resp.WinRate)

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/whales/0xnobody", "").Code)
}
