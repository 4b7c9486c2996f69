package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garm/internal/book"
)

func buildTestBook(t *testing.T, m book.Market) *book.OrderBook {
	t.Helper()
	ob, err := book.NewBuilder().WithMarket(m).Build()
	require.NoError(t, err)
	return ob
}

func TestDirectory_InsertGet(t *testing.T) {
	d := NewDirectory()
	m := book.Market{Exchange: "ex", Instrument: "BTC-USD"}
	ob := buildTestBook(t, m)

	d.Insert(ob)

	assert.Same(t, ob, d.Get(m))
	assert.Nil(t, d.Get(book.Market{Exchange: "ex", Instrument: "ETH-USD"}))
	assert.Equal(t, 1, d.Len())
}

func TestByVolume_RanksByTopOfBookNotional(t *testing.T) {
	d := NewDirectory()

	thin := buildTestBook(t, book.Market{Exchange: "ex", Instrument: "THIN"})
	thick := buildTestBook(t, book.Market{Exchange: "ex", Instrument: "THICK"})

	price, err := book.NewPrice(10)
	require.NoError(t, err)
	require.NoError(t, thin.Process(book.OpenEvent(book.Order{
		Side: book.Buy, Type: book.Limit,
		AtomicOrder: book.AtomicOrder{ID: "a", Price: price, Size: 1},
	}, 1)))

	bigPrice, err := book.NewPrice(100)
	require.NoError(t, err)
	require.NoError(t, thick.Process(book.OpenEvent(book.Order{
		Side: book.Buy, Type: book.Limit,
		AtomicOrder: book.AtomicOrder{ID: "b", Price: bigPrice, Size: 50},
	}, 1)))

	d.Insert(thin)
	d.Insert(thick)

	v := NewByVolume()
	v.Refresh(d)

	top := v.Top(2)
	require.Len(t, top, 2)
	assert.Equal(t, "THICK", top[0].Market.Instrument)
	assert.Equal(t, "THIN", top[1].Market.Instrument)
}
