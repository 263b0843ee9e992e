package dex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelReleasesLock(t *testing.T) {
	e, alice, _ := newTestEngine(t)
	pub := e.publisher.(*MemoryPublishLog)

	id, err := e.PlaceLimitOrder(alice, baseMint, quoteMint, Buy, decimal.NewFromInt(5), 10)
	require.NoError(t, err)

	assert.NoError(t, e.CancelOrder(alice, id))

	l, _ := e.Balance(alice, quoteMint)
	assert.Equal(t, uint64(1000), l.Available)
	assert.Equal(t, uint64(0), l.Locked)

	open, _ := e.OpenOrders(alice)
	assert.Empty(t, open)

	logs := pub.All()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, LogTypeCancel, last.Type)
	assert.Equal(t, id, last.OrderID)
}

func TestCancelIsIdempotent(t *testing.T) {
	e, alice, _ := newTestEngine(t)

	id, err := e.PlaceLimitOrder(alice, baseMint, quoteMint, Buy, decimal.NewFromInt(5), 10)
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder(alice, id))
	assert.ErrorIs(t, e.CancelOrder(alice, id), ErrOrderNotFound)

	// Still no lock after the failed retry.
	l, _ := e.Balance(alice, quoteMint)
	assert.Equal(t, uint64(1000), l.Available)
}

func TestCancelPartiallyFilledOrder(t *testing.T) {
	e, alice, bob := newTestEngine(t)

	id, err := e.PlaceLimitOrder(bob, baseMint, quoteMint, Sell, decimal.NewFromInt(5), 10)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(alice, baseMint, quoteMint, Buy, decimal.NewFromInt(5), 4)
	require.NoError(t, err)

	// Cancelling before settlement releases only the unfilled part; the
	// matched 4 base stays locked for the pending trade event.
	assert.NoError(t, e.CancelOrder(bob, id))

	l, _ := e.Balance(bob, baseMint)
	assert.Equal(t, uint64(996), l.Available)
	assert.Equal(t, uint64(4), l.Locked)

	_, err = e.ConsumeEvents(alice, bob)
	assert.NoError(t, err)
	l, _ = e.Balance(bob, baseMint)
	assert.Equal(t, uint64(0), l.Locked)
}

func TestCancelFilledOrderNotFound(t *testing.T) {
	e, alice, bob := newTestEngine(t)

	id, err := e.PlaceLimitOrder(bob, baseMint, quoteMint, Sell, decimal.NewFromInt(5), 10)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(alice, baseMint, quoteMint, Buy, decimal.NewFromInt(5), 10)
	require.NoError(t, err)

	assert.ErrorIs(t, e.CancelOrder(bob, id), ErrOrderNotFound)
}

func TestCancelOtherOwnersOrder(t *testing.T) {
	e, alice, bob := newTestEngine(t)

	id, err := e.PlaceLimitOrder(bob, baseMint, quoteMint, Sell, decimal.NewFromInt(5), 10)
	require.NoError(t, err)

	// Alice's index has no such reference, so the order is simply not found
	// from her side and bob's order is untouched.
	assert.ErrorIs(t, e.CancelOrder(alice, id), ErrOrderNotFound)
	open, _ := e.OpenOrders(bob)
	assert.Len(t, open, 1)

	assert.ErrorIs(t, e.CancelOrder(uuid.New(), id), ErrAccountNotFound)
}
