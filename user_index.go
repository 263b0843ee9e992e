package dex

import "math/bits"

// orderRef records where one of an account's resting orders lives, so that
// cancellation never has to scan the shared books.
type orderRef struct {
	ID    uint64 `json:"id"`
	Base  MintID `json:"base"`
	Quote MintID `json:"quote"`
	Side  Side   `json:"side"`
}

// userOrderIndex is the per-account bounded registry of live order
// references: backing array, liveness bitmap, allocation cursor.
type userOrderIndex struct {
	refs      [UserOrderCapacity]orderRef
	bitmap    uint32
	nextIndex uint64
}

func (x *userOrderIndex) add(ref orderRef) error {
	for i := 0; i < UserOrderCapacity; i++ {
		if x.bitmap&(1<<uint(i)) == 0 {
			x.refs[i] = ref
			x.bitmap |= 1 << uint(i)
			x.nextIndex++
			return nil
		}
	}
	return ErrQueueFull
}

// remove clears the reference for the given order id, returning it.
func (x *userOrderIndex) remove(id uint64) (orderRef, bool) {
	for i := 0; i < UserOrderCapacity; i++ {
		if x.bitmap&(1<<uint(i)) != 0 && x.refs[i].ID == id {
			ref := x.refs[i]
			x.refs[i] = orderRef{}
			x.bitmap &^= 1 << uint(i)
			return ref, true
		}
	}
	return orderRef{}, false
}

// find returns the reference for the given order id without removing it.
func (x *userOrderIndex) find(id uint64) (orderRef, bool) {
	for i := 0; i < UserOrderCapacity; i++ {
		if x.bitmap&(1<<uint(i)) != 0 && x.refs[i].ID == id {
			return x.refs[i], true
		}
	}
	return orderRef{}, false
}

func (x *userOrderIndex) len() int {
	return bits.OnesCount32(x.bitmap)
}

// list copies the live references, used by snapshots and queries.
func (x *userOrderIndex) list() []orderRef {
	out := make([]orderRef, 0, UserOrderCapacity)
	for i := 0; i < UserOrderCapacity; i++ {
		if x.bitmap&(1<<uint(i)) != 0 {
			out = append(out, x.refs[i])
		}
	}
	return out
}
