package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ask makes a resting order selling base for quote at the implied price
// sellQty base for buyQty quote.
func ask(id uint64, buyQty, sellQty uint64) Order {
	return Order{ID: id, BuyToken: "QUOTE", SellToken: "BASE", BuyQuantity: buyQty, SellQuantity: sellQty}
}

func bid(id uint64, buyQty, sellQty uint64) Order {
	return Order{ID: id, BuyToken: "BASE", SellToken: "QUOTE", BuyQuantity: buyQty, SellQuantity: sellQty}
}

func TestAskQueueOrdering(t *testing.T) {
	q := newAskQueue()

	// Prices 3, 1, 2 quote per base; lowest ask must surface first.
	assert.NoError(t, q.insert(ask(1, 30, 10)))
	assert.NoError(t, q.insert(ask(2, 10, 10)))
	assert.NoError(t, q.insert(ask(3, 20, 10)))

	assert.Equal(t, uint64(2), q.best().ID)
	assert.Equal(t, uint64(3), q.at(1).ID)
	assert.Equal(t, uint64(1), q.at(2).ID)
	assert.True(t, q.checkInvariant())
}

func TestBidQueueOrdering(t *testing.T) {
	q := newBidQueue()

	// Bids pay 1, 3, 2 quote per base; highest bid must surface first.
	assert.NoError(t, q.insert(bid(1, 10, 10)))
	assert.NoError(t, q.insert(bid(2, 10, 30)))
	assert.NoError(t, q.insert(bid(3, 10, 20)))

	assert.Equal(t, uint64(2), q.best().ID)
	assert.Equal(t, uint64(3), q.at(1).ID)
	assert.Equal(t, uint64(1), q.at(2).ID)
}

func TestEqualPriceTimePriority(t *testing.T) {
	q := newAskQueue()

	// Same price, later id inserted first: the earlier id must still win.
	assert.NoError(t, q.insert(ask(7, 10, 10)))
	assert.NoError(t, q.insert(ask(3, 10, 10)))
	assert.NoError(t, q.insert(ask(5, 10, 10)))

	assert.Equal(t, uint64(3), q.at(0).ID)
	assert.Equal(t, uint64(5), q.at(1).ID)
	assert.Equal(t, uint64(7), q.at(2).ID)
}

func TestQueueCapacity(t *testing.T) {
	q := newAskQueue()
	for i := 0; i < QueueCapacity; i++ {
		assert.NoError(t, q.insert(ask(uint64(i+1), 10, 10)))
	}
	err := q.insert(ask(999, 10, 10))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, QueueCapacity, q.len())
	assert.True(t, q.checkInvariant())
}

func TestRemoveCompacts(t *testing.T) {
	q := newAskQueue()
	assert.NoError(t, q.insert(ask(1, 10, 10)))
	assert.NoError(t, q.insert(ask(2, 20, 10)))
	assert.NoError(t, q.insert(ask(3, 30, 10)))

	removed, ok := q.removeByID(2)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), removed.ID)
	assert.Equal(t, 2, q.len())
	assert.Equal(t, uint64(1), q.at(0).ID)
	assert.Equal(t, uint64(3), q.at(1).ID)
	assert.True(t, q.checkInvariant())

	_, ok = q.removeByID(2)
	assert.False(t, ok)
}

func TestSiftFrontAfterReduction(t *testing.T) {
	q := newAskQueue()
	assert.NoError(t, q.insert(ask(1, 20, 20))) // price 1
	assert.NoError(t, q.insert(ask(2, 11, 10))) // price 1.1

	// Reduce the head so its remaining ratio worsens past the second order.
	head := q.best()
	head.SellQuantity = 5
	head.BuyQuantity = 6 // price 1.2 now
	q.siftFront()

	assert.Equal(t, uint64(2), q.best().ID)
	assert.Equal(t, uint64(1), q.at(1).ID)
}

func TestSnapshotRoundOrder(t *testing.T) {
	q := newBidQueue()
	assert.NoError(t, q.insert(bid(1, 10, 30)))
	assert.NoError(t, q.insert(bid(2, 10, 10)))

	snap := q.toSnapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, uint64(1), snap[0].ID)
	assert.Equal(t, uint64(2), snap[1].ID)
}
