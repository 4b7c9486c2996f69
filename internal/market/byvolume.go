package market

import (
	"github.com/tidwall/btree"

	"garm/internal/book"
)

// volumeEntry is one market's last-observed top-of-book notional.
type volumeEntry struct {
	market   book.Market
	notional float64
	bestBid  float64
	bestAsk  float64
}

// ByVolume is a secondary, descending-by-notional index over the markets
// resident in a Directory: an ordered cross-market view the core book
// deliberately does not provide, since the book's own sides stay sorted
// vectors for O(1) best-of-book. It is a library-level index only; neither
// garmd nor garmctl calls it, and garmctl has no command that lists markets.
type ByVolume struct {
	entries *btree.BTreeG[*volumeEntry]
	byKey   map[book.Market]*volumeEntry
}

func lessByNotionalDesc(a, b *volumeEntry) bool {
	if a.notional != b.notional {
		return a.notional > b.notional
	}
	// Break ties deterministically so the tree's strict ordering holds.
	return a.market.String() < b.market.String()
}

// NewByVolume returns an empty index.
func NewByVolume() *ByVolume {
	return &ByVolume{
		entries: btree.NewBTreeG(lessByNotionalDesc),
		byKey:   make(map[book.Market]*volumeEntry),
	}
}

// Refresh recomputes the index from the current state of every book in d.
// A market's notional is its combined top-of-book value: best bid price
// times the bid level's size, plus best ask price times the ask level's
// size.
func (v *ByVolume) Refresh(d *Directory) {
	for _, m := range d.Markets() {
		ob := d.Get(m)
		if ob == nil {
			continue
		}
		v.update(m, ob)
	}
}

func (v *ByVolume) update(m book.Market, ob *book.OrderBook) {
	if old, ok := v.byKey[m]; ok {
		v.entries.Delete(old)
	}

	var bidNotional, askNotional float64
	if levels := ob.Levels(book.Buy, 1); len(levels) == 1 {
		bidNotional = levels[0].Price * levels[0].Size
	}
	if levels := ob.Levels(book.Sell, 1); len(levels) == 1 {
		askNotional = levels[0].Price * levels[0].Size
	}

	entry := &volumeEntry{
		market:   m,
		notional: bidNotional + askNotional,
		bestBid:  ob.BestBid(),
		bestAsk:  ob.BestAsk(),
	}
	v.byKey[m] = entry
	v.entries.Set(entry)
}

// Ranked is one row of the top-by-volume listing.
type Ranked struct {
	Market   book.Market
	Notional float64
	BestBid  float64
	BestAsk  float64
}

// Top returns up to n markets ordered by descending top-of-book notional.
func (v *ByVolume) Top(n int) []Ranked {
	out := make([]Ranked, 0, n)
	v.entries.Scan(func(e *volumeEntry) bool {
		out = append(out, Ranked{
			Market:   e.market,
			Notional: e.notional,
			BestBid:  e.bestBid,
			BestAsk:  e.bestAsk,
		})
		return len(out) < n
	})
	return out
}
