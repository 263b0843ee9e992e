package dex

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// PriceLevel is one aggregated row of a depth view: total resting base size
// at one price.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Depth is a point-in-time aggregated view of one pair's book. Bids are
// ordered best (highest) first, asks best (lowest) first.
type Depth struct {
	Base  MintID       `json:"base"`
	Quote MintID       `json:"quote"`
	Bids  []PriceLevel `json:"bids"`
	Asks  []PriceLevel `json:"asks"`
}

var descPrice = skiplist.GreaterThanFunc(func(lhs, rhs interface{}) int {
	return rhs.(decimal.Decimal).Cmp(lhs.(decimal.Decimal))
})

var ascPrice = skiplist.GreaterThanFunc(func(lhs, rhs interface{}) int {
	return lhs.(decimal.Decimal).Cmp(rhs.(decimal.Decimal))
})

// Depth aggregates the pair's resting orders into price levels. limit caps
// the number of levels per side; zero means all levels.
//
// The view is built fresh on every call from the queues themselves, so it is
// always consistent with the book and never needs incremental maintenance.
func (e *DexEngine) Depth(base, quote MintID, limit int) (*Depth, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[NewPairKey(base, quote)]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return &Depth{
		Base:  book.Base,
		Quote: book.Quote,
		Bids:  aggregateLevels(book, book.bids, descPrice, limit),
		Asks:  aggregateLevels(book, book.asks, ascPrice, limit),
	}, nil
}

func aggregateLevels(book *OrderBook, q *orderQueue, cmp skiplist.GreaterThanFunc, limit int) []PriceLevel {
	levels := skiplist.New(cmp)
	for i := 0; i < q.len(); i++ {
		o := q.at(i)
		price := book.basePrice(o)
		size := decimalFromU64(book.baseSize(o))
		if elem := levels.Get(price); elem != nil {
			levels.Set(price, elem.Value.(decimal.Decimal).Add(size))
		} else {
			levels.Set(price, size)
		}
	}

	out := make([]PriceLevel, 0, levels.Len())
	for elem := levels.Front(); elem != nil; elem = elem.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, PriceLevel{
			Price: elem.Key().(decimal.Decimal),
			Size:  elem.Value.(decimal.Decimal),
		})
	}
	return out
}
