package book

// Deque is a single price level: a FIFO queue of resting orders plus the
// level's price. Every member order has Price == the deque's own price. Ids
// are not checked for uniqueness: a duplicate Open of an existing id leaves
// two copies in the level. Arrival order is the only ordering it keeps,
// which is exactly the FIFO fill priority within the level.
type Deque struct {
	price Price
	queue []AtomicOrder
}

// buildDeque creates a single-order level at the order's own price.
func buildDeque(order AtomicOrder) *Deque {
	d := &Deque{price: order.Price}
	d.pushBack(order)
	return d
}

// Price returns the level's price.
func (d *Deque) Price() Price {
	return d.price
}

// pushBack appends an order to the tail of the FIFO.
func (d *Deque) pushBack(order AtomicOrder) {
	d.queue = append(d.queue, order)
}

// removeAt removes the order at queue index idx.
func (d *Deque) removeAt(idx int) {
	d.queue = append(d.queue[:idx], d.queue[idx+1:]...)
}

// indexOf linear-scans for an order id. Level FIFOs are expected short, so
// this is cheaper in practice than maintaining a secondary per-level index.
func (d *Deque) indexOf(id string) (int, bool) {
	for i := range d.queue {
		if d.queue[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// getRef returns a copy of the order with the given id.
func (d *Deque) getRef(id string) (AtomicOrder, bool) {
	idx, ok := d.indexOf(id)
	if !ok {
		return AtomicOrder{}, false
	}
	return d.queue[idx], true
}

// getMutSize overwrites the size of the order with the given id in place.
func (d *Deque) getMutSize(id string, newSize float64) bool {
	idx, ok := d.indexOf(id)
	if !ok {
		return false
	}
	d.queue[idx].Size = newSize
	return true
}

// remove deletes the order with the given id, reporting whether it was found.
func (d *Deque) remove(id string) bool {
	idx, ok := d.indexOf(id)
	if !ok {
		return false
	}
	d.removeAt(idx)
	return true
}

// Size sums the sizes of every order resting at this level.
func (d *Deque) Size() float64 {
	var total float64
	for _, o := range d.queue {
		total += o.Size
	}
	return total
}

// Len returns the number of discrete orders resting at this level.
func (d *Deque) Len() int {
	return len(d.queue)
}

// Orders returns a copy of the resting orders, oldest first.
func (d *Deque) Orders() []AtomicOrder {
	out := make([]AtomicOrder, len(d.queue))
	copy(out, d.queue)
	return out
}
