package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garm/internal/book"
	"garm/internal/transport"
)

func TestBuildMessage_OpenBuildsOpenEventWithID(t *testing.T) {
	market := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	msg, err := buildMessage(market, "open", "buy", 100, 2, "abc", 1)
	require.NoError(t, err)
	assert.Equal(t, book.Open, msg.Event.Kind)
	assert.Equal(t, "abc", msg.Event.Order.ID)
}

func TestBuildMessage_ChangeRequiresID(t *testing.T) {
	market := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	_, err := buildMessage(market, "change", "buy", 0, 2, "", 1)
	assert.Error(t, err)
}

func TestBuildMessage_DoneRequiresID(t *testing.T) {
	market := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	_, err := buildMessage(market, "done", "buy", 0, 0, "", 1)
	assert.Error(t, err)
}

func TestBuildMessage_UnknownActionFails(t *testing.T) {
	market := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	_, err := buildMessage(market, "bogus", "buy", 0, 0, "", 1)
	assert.Error(t, err)
}

func TestPrintSnapshot_WritesTopOfBook(t *testing.T) {
	market := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	ob, err := book.NewBuilder().WithMarket(market).Build()
	require.NoError(t, err)

	price, err := book.NewPrice(100)
	require.NoError(t, err)
	require.NoError(t, ob.Process(book.OpenEvent(book.Order{
		Side: book.Buy, Type: book.Limit,
		AtomicOrder: book.AtomicOrder{ID: "a", Price: price, Size: 3},
	}, 1)))

	bid, ask := ob.TopLevel()
	snap := transport.Snapshot{
		Market:    market,
		BestBid:   bid,
		BestAsk:   ask,
		BidLevels: ob.Levels(book.Buy, 5),
		AskLevels: ob.Levels(book.Sell, 5),
	}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	printSnapshot(w, snap)
	w.Close()

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	out := string(buf[:n])

	assert.Contains(t, out, "bid=100.00")
	assert.Contains(t, out, "bid 100.00 x 3.0000")
}
