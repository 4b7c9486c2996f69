package book

import (
	"sort"
	"time"
)

// orderLocation points an order id at the deque that owns it.
type orderLocation struct {
	side  Side
	price Price
}

// OrderBook is an in-memory L3 limit order book for one market: two
// price-ordered vectors of Deques (bids descending, asks ascending), an
// order-id directory resolving ids to their owning deque, and the
// optional outlier filter / stats / panic button / event ring described in
// the builder.
type OrderBook struct {
	market       Market
	lastSequence uint64
	startTime    time.Time

	bids []*Deque // descending by price, index 0 = best bid
	asks []*Deque // ascending by price, index 0 = best ask

	orderIDMap map[string]orderLocation

	outlierFilter *OutlierFilter
	stats         *Stats
	panicButton   bool
	lastNEvents   *eventRing
}

// Market returns the book's identity.
func (ob *OrderBook) Market() Market { return ob.market }

// LastSequence returns the sequence number of the most recently applied event.
func (ob *OrderBook) LastSequence() uint64 { return ob.lastSequence }

// StartTime returns when the book was built.
func (ob *OrderBook) StartTime() time.Time { return ob.startTime }

// Stats returns the book's stats tracker, or nil if stats weren't enabled.
func (ob *OrderBook) Stats() *Stats { return ob.stats }

// OutlierFilter returns the book's outlier filter, or nil if not enabled.
func (ob *OrderBook) OutlierFilter() *OutlierFilter { return ob.outlierFilter }

// LastNEvents returns the retained event ring in oldest-to-newest order, or
// nil if the feature wasn't enabled.
func (ob *OrderBook) LastNEvents() []Event {
	if ob.lastNEvents == nil {
		return nil
	}
	return ob.lastNEvents.snapshot()
}

// Process is the only public mutator. It sequence-gates the event, then
// dispatches by variant to insert/remove/update, updating last_sequence
// and stats as specified.
func (ob *OrderBook) Process(event Event) error {
	if ob.lastNEvents != nil {
		ob.lastNEvents.push(event)
	}

	if event.Sequence <= ob.lastSequence {
		err := newOutOfSequence(event.Sequence, ob.lastSequence)
		if ob.stats != nil {
			ob.stats.recordError(ob.lastSequence, err)
		}
		return err
	}

	var err error
	switch event.Kind {
	case Received:
		err = nil
	case Open:
		err = ob.insert(event.Order)
	case Change:
		err = ob.update(event.OrderID, event.NewSize)
	case Done:
		err = ob.remove(event.OrderID)
	}

	switch {
	case err == nil:
		ob.lastSequence = event.Sequence
		if ob.stats != nil {
			ob.stats.recordSuccess()
		}
	case err == ErrOutlier:
		ob.lastSequence = event.Sequence
		if ob.stats != nil {
			ob.stats.recordOutlier()
		}
	default:
		if ob.stats != nil {
			ob.stats.recordError(ob.lastSequence, err)
		}
	}

	if ob.panicButton {
		ob.assertNotCrossed()
	}
	return err
}

// assertNotCrossed is a debug-only assertion enabled by the builder's
// panic button: it crashes the process if both sides are non-empty and
// the book is crossed after an apply.
func (ob *OrderBook) assertNotCrossed() {
	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid != 0 && ask != 0 && bid > ask {
		panic("garm/book: crossed book detected with panic button enabled")
	}
}

// insert places a new resting order, consulting the NaN check and outlier
// filter first. Duplicate ids are not protected against at this layer: if
// order.ID already exists, the id map is overwritten and the deque gains a
// second copy (see SPEC_FULL.md's decided open question).
func (ob *OrderBook) insert(order Order) error {
	if _, err := NewPrice(order.Price.Float()); err != nil {
		return ErrNanFloat
	}

	if ob.outlierFilter != nil {
		if err := ob.outlierFilter.Check(order, ob.BestBid(), ob.BestAsk()); err != nil {
			return err
		}
	}

	ob.orderIDMap[order.ID] = orderLocation{side: order.Side, price: order.Price}

	switch order.Side {
	case Buy:
		ob.bids = insertInto(ob.bids, order.AtomicOrder, bidSearch)
	case Sell:
		ob.asks = insertInto(ob.asks, order.AtomicOrder, askSearch)
	}
	return nil
}

// insertInto appends to an existing deque at the order's price, or splices
// in a freshly built one at the sorted gap position.
func insertInto(levels []*Deque, order AtomicOrder, search func([]*Deque, Price) (int, bool)) []*Deque {
	idx, found := search(levels, order.Price)
	if found {
		levels[idx].pushBack(order)
		return levels
	}
	levels = append(levels, nil)
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = buildDeque(order)
	return levels
}

// bidSearch finds price in a descending-sorted slice, or the gap index that
// keeps it descending.
func bidSearch(levels []*Deque, price Price) (int, bool) {
	idx := sort.Search(len(levels), func(i int) bool {
		return levels[i].price.Compare(price) <= 0
	})
	if idx < len(levels) && levels[idx].price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// askSearch finds price in an ascending-sorted slice, or the gap index that
// keeps it ascending.
func askSearch(levels []*Deque, price Price) (int, bool) {
	idx := sort.Search(len(levels), func(i int) bool {
		return levels[i].price.Compare(price) >= 0
	})
	if idx < len(levels) && levels[idx].price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// remove resolves an id through the order-id map (falling back to the
// outlier filter's remembered ids), deletes it from its deque, and prunes
// the deque if it's now empty.
func (ob *OrderBook) remove(id string) error {
	loc, ok := ob.orderIDMap[id]
	if !ok {
		if ob.outlierFilter != nil && ob.outlierFilter.IsKnownOutlier(id) {
			ob.outlierFilter.Evict(id)
			return ErrOutlier
		}
		return ErrOrderNotFoundInMap
	}

	levels, idx, deque, err := ob.locateDeque(loc)
	if err != nil {
		return err
	}
	if !deque.remove(id) {
		return ErrOrderNotFoundInDeque
	}
	delete(ob.orderIDMap, id)

	if deque.Len() == 0 {
		levels = append(levels[:idx], levels[idx+1:]...)
		switch loc.side {
		case Buy:
			ob.bids = levels
		case Sell:
			ob.asks = levels
		}
	}
	return nil
}

// update resolves id the same way remove does and overwrites its size;
// price never changes so no re-sort is ever required.
func (ob *OrderBook) update(id string, newSize float64) error {
	loc, ok := ob.orderIDMap[id]
	if !ok {
		if ob.outlierFilter != nil && ob.outlierFilter.IsKnownOutlier(id) {
			return ErrOutlier
		}
		return ErrOrderNotFoundInMap
	}

	_, _, deque, err := ob.locateDeque(loc)
	if err != nil {
		return err
	}
	if !deque.getMutSize(id, newSize) {
		return ErrOrderNotFoundInDeque
	}
	return nil
}

// locateDeque binary-searches the side's vector for loc.price.
func (ob *OrderBook) locateDeque(loc orderLocation) ([]*Deque, int, *Deque, error) {
	switch loc.side {
	case Buy:
		idx, found := bidSearch(ob.bids, loc.price)
		if !found {
			return nil, 0, nil, ErrMissingOrderDeque
		}
		return ob.bids, idx, ob.bids[idx], nil
	default:
		idx, found := askSearch(ob.asks, loc.price)
		if !found {
			return nil, 0, nil, ErrMissingOrderDeque
		}
		return ob.asks, idx, ob.asks[idx], nil
	}
}

// BestBid returns the price of the best resting bid, or 0.0 if there are none.
func (ob *OrderBook) BestBid() float64 {
	if len(ob.bids) == 0 {
		return defaultBestBid
	}
	return ob.bids[0].price.Float()
}

// BestAsk returns the price of the best resting ask, or 0.0 if there are none.
func (ob *OrderBook) BestAsk() float64 {
	if len(ob.asks) == 0 {
		return defaultBestAsk
	}
	return ob.asks[0].price.Float()
}

// TopLevel returns (BestBid, BestAsk).
func (ob *OrderBook) TopLevel() (float64, float64) {
	return ob.BestBid(), ob.BestAsk()
}

// Level is one entry of a liquidity curve: a price, the aggregate resting
// size at that price, and the running cumulative notional (price * size)
// summed from the top of book out to and including this level.
type Level struct {
	Price              float64
	Size               float64
	CumulativeNotional float64
}

// Levels walks a side in price order from best outward, yielding
// (price, level size, cumulative notional) triples. If depth is negative,
// all levels are returned.
func (ob *OrderBook) Levels(side Side, depth int) []Level {
	var source []*Deque
	switch side {
	case Buy:
		source = ob.bids
	case Sell:
		source = ob.asks
	}

	n := len(source)
	if depth >= 0 && depth < n {
		n = depth
	}

	out := make([]Level, 0, n)
	var cumulative float64
	for i := 0; i < n; i++ {
		size := source[i].Size()
		cumulative += source[i].price.Float() * size
		out = append(out, Level{
			Price:              source[i].price.Float(),
			Size:               size,
			CumulativeNotional: cumulative,
		})
	}
	return out
}

// GetOrderRef resolves an order by id, through the same map/outlier path as
// remove/update.
func (ob *OrderBook) GetOrderRef(id string) (AtomicOrder, error) {
	loc, ok := ob.orderIDMap[id]
	if !ok {
		if ob.outlierFilter != nil && ob.outlierFilter.IsKnownOutlier(id) {
			return AtomicOrder{}, ErrOutlier
		}
		return AtomicOrder{}, ErrOrderNotFoundInMap
	}
	_, _, deque, err := ob.locateDeque(loc)
	if err != nil {
		return AtomicOrder{}, err
	}
	order, ok := deque.getRef(id)
	if !ok {
		return AtomicOrder{}, ErrOrderNotFoundInDeque
	}
	return order, nil
}

// BidCount returns the total number of resting bid orders.
func (ob *OrderBook) BidCount() int {
	var n int
	for _, d := range ob.bids {
		n += d.Len()
	}
	return n
}

// AskCount returns the total number of resting ask orders.
func (ob *OrderBook) AskCount() int {
	var n int
	for _, d := range ob.asks {
		n += d.Len()
	}
	return n
}

// Len returns the total number of resting orders on both sides.
func (ob *OrderBook) Len() int {
	return ob.BidCount() + ob.AskCount()
}

// NumBidLevels returns the number of distinct bid price levels.
func (ob *OrderBook) NumBidLevels() int { return len(ob.bids) }

// NumAskLevels returns the number of distinct ask price levels.
func (ob *OrderBook) NumAskLevels() int { return len(ob.asks) }
