package dex

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBook holds the two complementary directional queues of one token
// pair: bids buy the base with quote, asks sell the base for quote.
type OrderBook struct {
	Base  MintID
	Quote MintID
	bids  *orderQueue
	asks  *orderQueue
}

func newOrderBook(base, quote MintID) *OrderBook {
	return &OrderBook{
		Base:  base,
		Quote: quote,
		bids:  newBidQueue(),
		asks:  newAskQueue(),
	}
}

// queue returns the directional queue for the given side.
func (b *OrderBook) queue(side Side) *orderQueue {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// opposite returns the queue a taker on the given side matches against.
func (b *OrderBook) opposite(side Side) *orderQueue {
	if side == Buy {
		return b.asks
	}
	return b.bids
}

// sideOf derives the directional side of an order relative to this book.
func (b *OrderBook) sideOf(o *Order) Side {
	if o.BuyToken == b.Base {
		return Buy
	}
	return Sell
}

// baseSize returns the order's remaining size in base units.
func (b *OrderBook) baseSize(o *Order) uint64 {
	if o.BuyToken == b.Base {
		return o.BuyQuantity
	}
	return o.SellQuantity
}

// basePrice returns the order's price in quote units per base unit.
func (b *OrderBook) basePrice(o *Order) decimal.Decimal {
	base := b.baseSize(o)
	if base == 0 {
		return decimal.Zero
	}
	var quote uint64
	if o.BuyToken == b.Base {
		quote = o.SellQuantity
	} else {
		quote = o.BuyQuantity
	}
	return decimalFromU64(quote).DivRound(decimalFromU64(base), 12)
}

func (b *OrderBook) newOpenLog(seqID uint64, o *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Base = b.Base
	log.Quote = b.Quote
	log.Side = b.sideOf(o)
	log.Price = b.basePrice(o)
	log.Size = decimalFromU64(b.baseSize(o))
	log.OrderID = o.ID
	log.Owner = o.Owner
	log.CreatedAt = now
	return log
}

func (b *OrderBook) newMatchLog(seqID, tradeID uint64, takerSide Side, taker AccountID, maker *Order, baseCut, quoteCut uint64, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.Base = b.Base
	log.Quote = b.Quote
	log.Side = takerSide
	log.Price = b.basePrice(maker)
	log.Size = decimalFromU64(baseCut)
	log.Amount = decimalFromU64(quoteCut)
	log.Owner = taker
	log.MakerOrderID = maker.ID
	log.MakerOwner = maker.Owner
	log.CreatedAt = now
	return log
}

func (b *OrderBook) newCancelLog(seqID uint64, o *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.Base = b.Base
	log.Quote = b.Quote
	log.Side = b.sideOf(o)
	log.Price = b.basePrice(o)
	log.Size = decimalFromU64(b.baseSize(o))
	log.OrderID = o.ID
	log.Owner = o.Owner
	log.CreatedAt = now
	return log
}
