package dex

import "math/bits"

// orderQueue is one directional side of a pair's book: a fixed-capacity
// arena of resting orders kept physically sorted by price-time priority.
// A liveness bitmap mirrors the occupied prefix and nextIndex counts total
// allocations; size == popcount(bitmap) at all times.
//
// Slot 0 is always the best order. Insertion shifts worse orders toward the
// back, removal compacts the prefix. Capacity is small enough that the
// shifts are cheap and every operation stays bounded.
type orderQueue struct {
	side      Side
	orders    [QueueCapacity]Order
	bitmap    uint32
	size      int
	nextIndex uint64
}

// newBidQueue creates the queue holding orders that buy the pair's base.
// Best price first means highest bid first.
func newBidQueue() *orderQueue {
	return &orderQueue{side: Buy}
}

// newAskQueue creates the queue holding orders that sell the pair's base.
// Best price first means lowest ask first.
func newAskQueue() *orderQueue {
	return &orderQueue{side: Sell}
}

// better reports whether a should be served before b. Price is primary and
// the order id breaks ties, so the relation is a strict total order.
//
// Prices are compared on the exact quantity ratio. For an ask the price of
// the base being sold is BuyQuantity/SellQuantity; for a bid it is
// SellQuantity/BuyQuantity. Lower wins on the ask side, higher on the bid
// side.
func (q *orderQueue) better(a, b *Order) bool {
	var c int
	if q.side == Sell {
		c = cmpRatio(a.BuyQuantity, a.SellQuantity, b.BuyQuantity, b.SellQuantity)
		if c != 0 {
			return c < 0
		}
	} else {
		c = cmpRatio(a.SellQuantity, a.BuyQuantity, b.SellQuantity, b.BuyQuantity)
		if c != 0 {
			return c > 0
		}
	}
	return a.ID < b.ID
}

// insert places an order into its priority position.
func (q *orderQueue) insert(order Order) error {
	if q.size >= QueueCapacity {
		return ErrQueueFull
	}
	i := q.size
	q.orders[i] = order
	q.bitmap |= 1 << uint(i)
	for i > 0 && q.better(&q.orders[i], &q.orders[i-1]) {
		q.orders[i], q.orders[i-1] = q.orders[i-1], q.orders[i]
		i--
	}
	q.size++
	q.nextIndex++
	return nil
}

// best returns the highest-priority live order, or nil when empty.
func (q *orderQueue) best() *Order {
	if q.size == 0 {
		return nil
	}
	return &q.orders[0]
}

// at returns the i-th order in priority order. Callers must keep i < size.
func (q *orderQueue) at(i int) *Order {
	return &q.orders[i]
}

// removeAt compacts the arena over the removed slot and clears the last
// bitmap bit, returning the removed order.
func (q *orderQueue) removeAt(i int) Order {
	removed := q.orders[i]
	for j := i; j < q.size-1; j++ {
		q.orders[j] = q.orders[j+1]
	}
	q.size--
	q.orders[q.size] = Order{}
	q.bitmap &^= 1 << uint(q.size)
	return removed
}

// siftFront restores ordering after the head order was reduced in place.
// Rounding on a partial fill can nudge the head's quantity ratio, so it may
// need to bubble toward the back past equal-priced neighbours.
func (q *orderQueue) siftFront() {
	for i := 0; i < q.size-1 && q.better(&q.orders[i+1], &q.orders[i]); i++ {
		q.orders[i], q.orders[i+1] = q.orders[i+1], q.orders[i]
	}
}

// removeByID removes the live order with the given id. Absence from the
// bitmap is authoritative: an already-filled order is simply not found.
func (q *orderQueue) removeByID(id uint64) (Order, bool) {
	for i := 0; i < q.size; i++ {
		if q.orders[i].ID == id {
			return q.removeAt(i), true
		}
	}
	return Order{}, false
}

// find returns a pointer to the live order with the given id.
func (q *orderQueue) find(id uint64) *Order {
	for i := 0; i < q.size; i++ {
		if q.orders[i].ID == id {
			return &q.orders[i]
		}
	}
	return nil
}

func (q *orderQueue) len() int {
	return q.size
}

// checkInvariant verifies size against the bitmap population. Used by tests.
func (q *orderQueue) checkInvariant() bool {
	return q.size == bits.OnesCount32(q.bitmap)
}

// toSnapshot copies the live orders in priority order.
func (q *orderQueue) toSnapshot() []Order {
	out := make([]Order, q.size)
	copy(out, q.orders[:q.size])
	return out
}
