package dex

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTokenLedgerLockUnlock(t *testing.T) {
	l := &TokenLedger{Owner: uuid.New(), Mint: "BASE", Available: 100}

	assert.NoError(t, l.lock(40))
	assert.Equal(t, uint64(60), l.Available)
	assert.Equal(t, uint64(40), l.Locked)

	assert.ErrorIs(t, l.lock(61), ErrInsufficientBalance)
	assert.Equal(t, uint64(60), l.Available)

	assert.NoError(t, l.unlock(15))
	assert.Equal(t, uint64(75), l.Available)
	assert.Equal(t, uint64(25), l.Locked)

	assert.ErrorIs(t, l.unlock(26), ErrInsufficientBalance)
}

func TestTokenLedgerSettlementLegs(t *testing.T) {
	l := &TokenLedger{Available: 50, Locked: 30}

	assert.NoError(t, l.debitLocked(30))
	assert.Equal(t, uint64(0), l.Locked)
	assert.ErrorIs(t, l.debitLocked(1), ErrInsufficientBalance)

	assert.NoError(t, l.creditAvailable(10))
	assert.Equal(t, uint64(60), l.Available)

	assert.NoError(t, l.debitAvailable(60))
	assert.ErrorIs(t, l.debitAvailable(1), ErrInsufficientBalance)
}

func TestTokenLedgerOverflow(t *testing.T) {
	l := &TokenLedger{Available: math.MaxUint64, Locked: math.MaxUint64}
	assert.ErrorIs(t, l.creditAvailable(1), ErrOverflow)
	assert.ErrorIs(t, l.lock(1), ErrOverflow)
	assert.Equal(t, uint64(math.MaxUint64), l.Available)
}

func TestVaultLedger(t *testing.T) {
	v := &VaultLedger{Mint: "QUOTE"}
	assert.NoError(t, v.credit(500))
	assert.ErrorIs(t, v.debit(501), ErrInsufficientBalance)
	assert.NoError(t, v.debit(500))
	assert.Equal(t, uint64(0), v.Total)
}

func TestMintRegistryCapacity(t *testing.T) {
	var r mintRegistry
	for i := 0; i < MintRegistryCapacity; i++ {
		assert.NoError(t, r.add(MintID(rune('A'+i))))
	}
	assert.ErrorIs(t, r.add("overflow"), ErrQueueFull)
	assert.True(t, r.contains("A"))
	assert.False(t, r.contains("overflow"))
	assert.Len(t, r.list(), MintRegistryCapacity)
}
