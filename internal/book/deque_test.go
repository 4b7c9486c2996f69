package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeque_BuildPushRemove(t *testing.T) {
	p := mustPrice(t, 10)
	d := buildDeque(AtomicOrder{ID: "a", Price: p, Size: 1})
	d.pushBack(AtomicOrder{ID: "b", Price: p, Size: 2})

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 3.0, d.Size())

	ok := d.remove("a")
	require.True(t, ok)
	assert.Equal(t, 1, d.Len())

	_, found := d.getRef("a")
	assert.False(t, found)

	order, found := d.getRef("b")
	require.True(t, found)
	assert.Equal(t, "b", order.ID)
}

func TestDeque_GetMutSize(t *testing.T) {
	p := mustPrice(t, 10)
	d := buildDeque(AtomicOrder{ID: "a", Price: p, Size: 1})

	ok := d.getMutSize("a", 99)
	require.True(t, ok)

	order, _ := d.getRef("a")
	assert.Equal(t, 99.0, order.Size)

	assert.False(t, d.getMutSize("missing", 1))
}

func TestDeque_FIFOOrderPreservedOnOrders(t *testing.T) {
	p := mustPrice(t, 10)
	d := buildDeque(AtomicOrder{ID: "first", Price: p, Size: 1})
	d.pushBack(AtomicOrder{ID: "second", Price: p, Size: 1})
	d.pushBack(AtomicOrder{ID: "third", Price: p, Size: 1})

	ids := make([]string, 0, 3)
	for _, o := range d.Orders() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}
