package dex

import (
	"math/big"
	"math/bits"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func u64ToBig(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// decimalFromU64 converts an exact token amount for market-data output.
func decimalFromU64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(u64ToBig(v), 0)
}

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// ParseSide converts the wire representation of an order side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, ErrInvalidOrderSide
}

type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

// MintID identifies a token mint.
type MintID string

// AccountID identifies an exchange account.
type AccountID = uuid.UUID

// PairKey is the canonical identity of an unordered token pair.
type PairKey struct {
	A MintID `json:"a"`
	B MintID `json:"b"`
}

// NewPairKey normalizes the two mints so that (x, y) and (y, x) map to the
// same key.
func NewPairKey(x, y MintID) PairKey {
	if x < y {
		return PairKey{A: x, B: y}
	}
	return PairKey{A: y, B: x}
}

// Order is a resting order slot. BuyQuantity and SellQuantity jointly encode
// the price (their ratio) and the remaining size; both decrease as the order
// fills and the order is removed once either reaches zero.
type Order struct {
	ID           uint64    `json:"id"`
	Owner        AccountID `json:"owner"`
	BuyToken     MintID    `json:"buy_token"`
	SellToken    MintID    `json:"sell_token"`
	BuyQuantity  uint64    `json:"buy_quantity"`
	SellQuantity uint64    `json:"sell_quantity"`
	Timestamp    int64     `json:"timestamp"` // Unix nano, creation time
}

// Price returns the order's unit price of its buy token, denominated in the
// sell token. Used for market-data output only; ordering comparisons use the
// exact quantity ratio instead.
func (o *Order) Price() decimal.Decimal {
	if o.BuyQuantity == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(u64ToBig(o.SellQuantity), 0).
		DivRound(decimal.NewFromBigInt(u64ToBig(o.BuyQuantity), 0), 12)
}

// crosses reports whether a taker order is willing to trade against a resting
// maker on the complementary queue. The condition is
// takerPrice >= makerPrice, evaluated without division as
// tSell*mSell >= mBuy*tBuy using 128-bit products.
func crosses(tBuy, tSell uint64, maker *Order) bool {
	lhsHi, lhsLo := bits.Mul64(tSell, maker.SellQuantity)
	rhsHi, rhsLo := bits.Mul64(maker.BuyQuantity, tBuy)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo >= rhsLo
}

// cmpRatio compares a1/a2 with b1/b2 via 128-bit cross multiplication.
// Returns -1, 0, or 1.
func cmpRatio(a1, a2, b1, b2 uint64) int {
	lhsHi, lhsLo := bits.Mul64(a1, b2)
	rhsHi, rhsLo := bits.Mul64(b1, a2)
	if lhsHi != rhsHi {
		if lhsHi < rhsHi {
			return -1
		}
		return 1
	}
	if lhsLo != rhsLo {
		if lhsLo < rhsLo {
			return -1
		}
		return 1
	}
	return 0
}

// mulDiv computes floor(a*b/c) with a 128-bit intermediate. c must be
// non-zero and the quotient must fit in 64 bits, which holds whenever
// a <= c (the only way it is called).
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// mulDivCeil computes ceil(a*b/c) under the same preconditions as mulDiv.
func mulDivCeil(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, r := bits.Div64(hi, lo, c)
	if r != 0 {
		q++
	}
	return q
}
