package dex

import "math"

// TokenLedger is the per (account, mint) balance record. It is the only
// place funds are moved: every lock, release, settlement leg, deposit and
// withdrawal lands here.
//
// Invariant: Available+Locked only decreases via withdraw or a settlement
// debit and only increases via deposit, settlement credit or an unlock.
type TokenLedger struct {
	Owner     AccountID `json:"owner"`
	Mint      MintID    `json:"mint"`
	Available uint64    `json:"available_balance"`
	Locked    uint64    `json:"locked_balance"`
}

// lock moves amount from available into locked. Both sides of the move happen
// together; a failure leaves the ledger untouched.
func (l *TokenLedger) lock(amount uint64) error {
	if l.Available < amount {
		return ErrInsufficientBalance
	}
	if l.Locked > math.MaxUint64-amount {
		return ErrOverflow
	}
	l.Available -= amount
	l.Locked += amount
	return nil
}

// unlock releases a previously locked amount back to available.
func (l *TokenLedger) unlock(amount uint64) error {
	if l.Locked < amount {
		return ErrInsufficientBalance
	}
	if l.Available > math.MaxUint64-amount {
		return ErrOverflow
	}
	l.Locked -= amount
	l.Available += amount
	return nil
}

// debitLocked burns a settled commitment out of the locked balance.
func (l *TokenLedger) debitLocked(amount uint64) error {
	if l.Locked < amount {
		return ErrInsufficientBalance
	}
	l.Locked -= amount
	return nil
}

// creditAvailable adds settled or deposited funds.
func (l *TokenLedger) creditAvailable(amount uint64) error {
	if l.Available > math.MaxUint64-amount {
		return ErrOverflow
	}
	l.Available += amount
	return nil
}

// debitAvailable removes withdrawn funds.
func (l *TokenLedger) debitAvailable(amount uint64) error {
	if l.Available < amount {
		return ErrInsufficientBalance
	}
	l.Available -= amount
	return nil
}

// VaultLedger tracks the custody vault's total holdings of one mint. The sum
// of all account balances for a mint can never exceed the vault total.
type VaultLedger struct {
	Mint  MintID `json:"mint"`
	Total uint64 `json:"total_balance"`
}

func (v *VaultLedger) credit(amount uint64) error {
	if v.Total > math.MaxUint64-amount {
		return ErrOverflow
	}
	v.Total += amount
	return nil
}

func (v *VaultLedger) debit(amount uint64) error {
	if v.Total < amount {
		return ErrInsufficientBalance
	}
	v.Total -= amount
	return nil
}

// mintRegistry is the bounded list of mints an account holds ledgers for.
// Backing array + liveness bitmap + allocation cursor, fixed at construction.
type mintRegistry struct {
	mints     [MintRegistryCapacity]MintID
	bitmap    uint32
	nextIndex uint64
}

func (r *mintRegistry) add(mint MintID) error {
	for i := 0; i < MintRegistryCapacity; i++ {
		if r.bitmap&(1<<uint(i)) == 0 {
			r.mints[i] = mint
			r.bitmap |= 1 << uint(i)
			r.nextIndex++
			return nil
		}
	}
	return ErrQueueFull
}

func (r *mintRegistry) contains(mint MintID) bool {
	for i := 0; i < MintRegistryCapacity; i++ {
		if r.bitmap&(1<<uint(i)) != 0 && r.mints[i] == mint {
			return true
		}
	}
	return false
}

func (r *mintRegistry) list() []MintID {
	out := make([]MintID, 0, MintRegistryCapacity)
	for i := 0; i < MintRegistryCapacity; i++ {
		if r.bitmap&(1<<uint(i)) != 0 {
			out = append(out, r.mints[i])
		}
	}
	return out
}
