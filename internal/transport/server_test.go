package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"garm/internal/book"
	"garm/internal/market"
)

func buildDirectory(t *testing.T, m book.Market) *market.Directory {
	t.Helper()
	ob, err := book.NewBuilder().WithMarket(m).Build()
	require.NoError(t, err)
	d := market.NewDirectory()
	d.Insert(ob)
	return d
}

func withTomb(t *testing.T) *tomb.Tomb {
	t.Helper()
	tb, _ := tomb.WithContext(context.Background())
	t.Cleanup(func() {
		tb.Kill(nil)
		tb.Wait()
	})
	return tb
}

func TestServer_DispatchInsertsIntoTargetBook(t *testing.T) {
	m := book.Market{Exchange: "coinbase", Instrument: "BTC-USD"}
	d := buildDirectory(t, m)
	s := New(":0", d)
	tb := withTomb(t)

	order := book.Order{
		Side:        book.Buy,
		Type:        book.Limit,
		AtomicOrder: book.AtomicOrder{ID: "a", Price: mustPrice(t, 100), Size: 1},
	}
	data, err := Encode(Message{Market: m, Event: book.OpenEvent(order, 1)})
	require.NoError(t, err)

	_, err = s.dispatch(tb, data)
	require.NoError(t, err)

	ob := d.Get(m)
	assert.Equal(t, 100.0, ob.BestBid())
}

func TestServer_DispatchUnknownMarketFails(t *testing.T) {
	m := book.Market{Exchange: "coinbase", Instrument: "BTC-USD"}
	d := buildDirectory(t, m)
	s := New(":0", d)
	tb := withTomb(t)

	other := book.Market{Exchange: "coinbase", Instrument: "DOGE-USD"}
	data, err := Encode(Message{Market: other, Event: book.DoneEvent("x", 1)})
	require.NoError(t, err)

	_, err = s.dispatch(tb, data)
	assert.ErrorIs(t, err, ErrUnknownMarket)
}

func TestServer_DispatchSnapshotReflectsRestingOrders(t *testing.T) {
	m := book.Market{Exchange: "coinbase", Instrument: "BTC-USD"}
	d := buildDirectory(t, m)
	s := New(":0", d)
	tb := withTomb(t)

	order := book.Order{
		Side:        book.Buy,
		Type:        book.Limit,
		AtomicOrder: book.AtomicOrder{ID: "a", Price: mustPrice(t, 100), Size: 3},
	}
	data, err := Encode(Message{Market: m, Event: book.OpenEvent(order, 1)})
	require.NoError(t, err)
	_, err = s.dispatch(tb, data)
	require.NoError(t, err)

	req, err := EncodeSnapshotRequest(m)
	require.NoError(t, err)

	payload, err := s.dispatch(tb, req)
	require.NoError(t, err)
	require.NotNil(t, payload)

	snap, err := DecodeSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.BestBid)
	require.Len(t, snap.BidLevels, 1)
	assert.Equal(t, 3.0, snap.BidLevels[0].Size)
}

func TestServer_DispatchSnapshotUnknownMarketFails(t *testing.T) {
	m := book.Market{Exchange: "coinbase", Instrument: "BTC-USD"}
	d := buildDirectory(t, m)
	s := New(":0", d)
	tb := withTomb(t)

	other := book.Market{Exchange: "coinbase", Instrument: "DOGE-USD"}
	req, err := EncodeSnapshotRequest(other)
	require.NoError(t, err)

	_, err = s.dispatch(tb, req)
	assert.ErrorIs(t, err, ErrUnknownMarket)
}

// TestServer_DispatchSerializesConcurrentEventsForSameMarket exercises the
// eventHandler's single-goroutine-per-market guarantee: many connections
// hammering the same market concurrently must never trip Go's concurrent
// map write detector inside OrderBook. Because dispatch calls race on
// delivery order, a precomputed sequence number can still lose the sequence
// gate to a faster peer; what must hold regardless of scheduling is that
// every dispatch that reports success left a matching resting order behind.
func TestServer_DispatchSerializesConcurrentEventsForSameMarket(t *testing.T) {
	m := book.Market{Exchange: "coinbase", Instrument: "BTC-USD"}
	d := buildDirectory(t, m)
	s := New(":0", d)
	tb := withTomb(t)

	const n = 200
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < n; i++ {
		order := book.Order{
			Side: book.Buy, Type: book.Limit,
			AtomicOrder: book.AtomicOrder{ID: string(rune('a' + i%26)) + string(rune('A'+i/26)), Price: mustPrice(t, float64(100+i)), Size: 1},
		}
		data, err := Encode(Message{Market: m, Event: book.OpenEvent(order, uint64(i+1))})
		require.NoError(t, err)

		wg.Add(1)
		go func(data []byte) {
			defer wg.Done()
			if _, err := s.dispatch(tb, data); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}(data)
	}
	wg.Wait()

	ob := d.Get(m)
	assert.EqualValues(t, successes, ob.BidCount())
	assert.Greater(t, ob.BidCount(), 0)
}
