package dex

import "github.com/google/uuid"

// EventKind discriminates the two settlement record variants.
type EventKind uint8

const (
	// EventTrade is one matched trade leg awaiting finalization.
	EventTrade EventKind = iota + 1
	// EventUnlock releases a speculative lock that matching did not consume.
	EventUnlock
)

func (k EventKind) String() string {
	switch k {
	case EventTrade:
		return "trade"
	case EventUnlock:
		return "unlock"
	}
	return "unknown"
}

// SettlementEvent is a durable record of one matched trade leg, or of an
// over-reservation to be released. Trade events carry the counterparty and
// both legs; unlock events carry only Amount and a nil counterparty.
type SettlementEvent struct {
	Kind         EventKind `json:"kind"`
	Counterparty AccountID `json:"counterparty"`
	BuyQuantity  uint64    `json:"buy_quantity"`
	SellQuantity uint64    `json:"sell_quantity"`
	Amount       uint64    `json:"amount"`
}

// IsRollback reports whether the event is a pure unlock.
func (ev *SettlementEvent) IsRollback() bool {
	return ev.Kind == EventUnlock
}

func newTradeEvent(counterparty AccountID, buyQuantity, sellQuantity uint64) SettlementEvent {
	return SettlementEvent{
		Kind:         EventTrade,
		Counterparty: counterparty,
		BuyQuantity:  buyQuantity,
		SellQuantity: sellQuantity,
	}
}

func newUnlockEvent(amount uint64) SettlementEvent {
	return SettlementEvent{
		Kind:         EventUnlock,
		Counterparty: uuid.Nil,
		Amount:       amount,
	}
}

// eventQueue is the per-account bounded FIFO of pending settlement events.
// All queued events share one token direction (TokenBuy/TokenSell): the queue
// is only ever populated for one active pair and direction at a time, and
// closes once drained.
type eventQueue struct {
	events    [EventQueueCapacity]SettlementEvent
	length    int
	inUse     bool
	tokenBuy  MintID
	tokenSell MintID
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	return q.length
}

func (q *eventQueue) free() int {
	return EventQueueCapacity - q.length
}

// accepts reports whether a batch with the given direction may append here.
func (q *eventQueue) accepts(tokenBuy, tokenSell MintID) bool {
	if !q.inUse {
		return true
	}
	return q.tokenBuy == tokenBuy && q.tokenSell == tokenSell
}

// open claims the queue for a batch direction. A no-op when the direction is
// already active.
func (q *eventQueue) open(tokenBuy, tokenSell MintID) error {
	if !q.accepts(tokenBuy, tokenSell) {
		return ErrEventQueueBusy
	}
	if !q.inUse {
		q.inUse = true
		q.tokenBuy = tokenBuy
		q.tokenSell = tokenSell
	}
	return nil
}

func (q *eventQueue) append(ev SettlementEvent) error {
	if q.length >= EventQueueCapacity {
		return ErrEventQueueFull
	}
	q.events[q.length] = ev
	q.length++
	return nil
}

// front returns the oldest pending event.
func (q *eventQueue) front() (*SettlementEvent, error) {
	if q.length == 0 {
		return nil, ErrEventQueueEmpty
	}
	return &q.events[0], nil
}

// popFront removes the oldest event and compacts the remainder one slot
// toward the front, preserving FIFO order. The queue closes when it drains.
func (q *eventQueue) popFront() (SettlementEvent, error) {
	if q.length == 0 {
		return SettlementEvent{}, ErrEventQueueEmpty
	}
	ev := q.events[0]
	for i := 0; i < q.length-1; i++ {
		q.events[i] = q.events[i+1]
	}
	q.length--
	q.events[q.length] = SettlementEvent{}
	if q.length == 0 {
		q.inUse = false
		q.tokenBuy = ""
		q.tokenSell = ""
	}
	return ev, nil
}

// at returns the i-th pending event in FIFO order. Used by queries and tests.
func (q *eventQueue) at(i int) (SettlementEvent, bool) {
	if i < 0 || i >= q.length {
		return SettlementEvent{}, false
	}
	return q.events[i], true
}

// list copies the pending events in FIFO order.
func (q *eventQueue) list() []SettlementEvent {
	out := make([]SettlementEvent, q.length)
	copy(out, q.events[:q.length])
	return out
}
