package dex

import "time"

// CancelOrder removes the caller's resting order from its queue and releases
// the remaining locked payer balance back to available. Cancelling an order
// that no longer rests (already filled or already cancelled) returns
// ErrOrderNotFound without touching any record, so retries are harmless.
func (e *DexEngine) CancelOrder(owner AccountID, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[owner]
	if !ok {
		return ErrAccountNotFound
	}
	ref, ok := acct.orders.find(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	book, ok := e.books[NewPairKey(ref.Base, ref.Quote)]
	if !ok {
		return ErrMarketNotFound
	}
	order, ok := book.queue(ref.Side).removeByID(orderID)
	if !ok {
		// The index said live but the queue disagrees. Drop the stale entry.
		acct.orders.remove(orderID)
		return ErrOrderNotFound
	}
	acct.orders.remove(orderID)

	payer, ok := acct.ledgers[order.SellToken]
	if !ok {
		return ErrLedgerNotFound
	}
	if err := payer.unlock(order.SellQuantity); err != nil {
		return err
	}

	log := book.newCancelLog(e.nextLogSeq(), &order, time.Now())
	e.publisher.Publish(log)
	releaseBookLog(log)
	return nil
}
