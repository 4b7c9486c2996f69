package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventRing_WrapsAndKeepsOldestToNewestOrder(t *testing.T) {
	r := newEventRing(3)
	for i := uint64(1); i <= 5; i++ {
		r.push(OpenEvent(Order{}, i))
	}

	got := r.snapshot()
	wantSeqs := []uint64{3, 4, 5}
	assert.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, wantSeqs[i], e.Sequence)
	}
}

func TestEventRing_BelowCapacityKeepsInsertionOrder(t *testing.T) {
	r := newEventRing(5)
	r.push(OpenEvent(Order{}, 1))
	r.push(OpenEvent(Order{}, 2))

	got := r.snapshot()
	assert.Equal(t, []uint64{1, 2}, []uint64{got[0].Sequence, got[1].Sequence})
}
