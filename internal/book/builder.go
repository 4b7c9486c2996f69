package book

import "time"

// Builder accumulates optional features before constructing an OrderBook.
// Market is required; everything else is opt-in.
type Builder struct {
	market        Market
	marketSet     bool
	outlierFilter *OutlierFilter
	stats         *Stats
	panicButton   bool
	lastNEvents   int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithMarket stamps the book's required identity.
func (b *Builder) WithMarket(m Market) *Builder {
	b.market = m
	b.marketSet = true
	return b
}

// WithOutlierFilterDefault enables the outlier filter with DefaultOutlierFactor.
func (b *Builder) WithOutlierFilterDefault() *Builder {
	b.outlierFilter = NewOutlierFilter(DefaultOutlierFactor)
	return b
}

// WithOutlierFilter enables the outlier filter with a custom factor.
func (b *Builder) WithOutlierFilter(factor float64) *Builder {
	b.outlierFilter = NewOutlierFilter(factor)
	return b
}

// WithStats enables counters; if trackErrors is true, also collects
// per-error message strings.
func (b *Builder) WithStats(trackErrors bool) *Builder {
	b.stats = NewStats(trackErrors)
	return b
}

// WithPanicButton enables the debug-only crash-on-crossed-book assertion.
func (b *Builder) WithPanicButton() *Builder {
	b.panicButton = true
	return b
}

// WithLastNEvents retains the last n events in a bounded ring for diagnostics.
func (b *Builder) WithLastNEvents(n int) *Builder {
	b.lastNEvents = n
	return b
}

// Build constructs an empty OrderBook with last_sequence = 0 and the
// current time as start_time. Fails if no market was set.
func (b *Builder) Build() (*OrderBook, error) {
	if !b.marketSet {
		return nil, ErrBuilderIncomplete
	}

	ob := &OrderBook{
		market:        b.market,
		startTime:     time.Now(),
		orderIDMap:    make(map[string]orderLocation),
		outlierFilter: b.outlierFilter,
		stats:         b.stats,
		panicButton:   b.panicButton,
	}
	if b.lastNEvents > 0 {
		ob.lastNEvents = newEventRing(b.lastNEvents)
	}
	return ob, nil
}
