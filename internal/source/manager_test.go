package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/testutil"
)

type chanSource struct {
	trades chan *common.TradeIngested
	errs   chan error
}

func newChanSource() *chanSource {
	return &chanSource{trades: make(chan *common.TradeIngested, 10), errs: make(chan error, 1)}
}

func (s *chanSource) Start(context.Context) error { return nil }

func (s *chanSource) Stop() error {
	close(s.trades)
	close(s.errs)
	return nil
}

func (s *chanSource) Subscribe() <-chan *common.TradeIngested { return s.trades }
func (s *chanSource) Errors() <-chan error                    { return s.errs }
func (s *chanSource) String() string                          { return "chan" }
func (s *chanSource) IsInitialDataLoaded() bool               { return true }

func TestManagerPublishesEveryTradeBeforeStopReturns(t *testing.T) {
	pub := &testutil.Publisher{}
	m := NewManager(pub, "trades")
	assert.False(t, m.IsInitialDataLoaded())

	src := newChanSource()
	m.AddSource(src)
	require.NoError(t, m.Start())
	assert.True(t, m.IsInitialDataLoaded())

	for _, id := range []string{"t1", "t2", "t3"} {
		src.trades <- &common.TradeIngested{TradeID: id, Wallet: "0xw" + id, MarketID: "m1", Side: common.SideBuy, Timestamp: time.Now().UTC()}
	}
	src.errs <- errors.New("upstream hiccup")
	require.NoError(t, m.Stop())

	messages := pub.Messages()
	require.Len(t, messages, 3)
	for i, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, "trades", messages[i].Queue)
		assert.Equal(t, "0xw"+id, messages[i].Key)
		trade, err := common.DecodeEvent[common.TradeIngested](messages[i].Payload)
		require.NoError(t, err)
		assert.Equal(t, id, trade.TradeID)
	}
}
