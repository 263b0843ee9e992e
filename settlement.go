package dex

import "github.com/google/uuid"

// ConsumeEvents finalizes the oldest pending settlement event of an
// account's queue. Events must be consumed strictly in FIFO order, one per
// call, and each call names the counterparty the front event was matched
// against (uuid.Nil for a rollback event, which has none).
//
// A trade event settles both parties with a double entry: the caller's
// outgoing lock and the counterparty's incoming lock are burned, and each
// side's income ledger is credited with what the other paid. A rollback
// event releases the caller's unconsumed speculative lock back to the
// available balance; no income ledger is touched.
func (e *DexEngine) ConsumeEvents(owner, counterparty AccountID) (SettlementEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[owner]
	if !ok {
		return SettlementEvent{}, ErrAccountNotFound
	}
	ev, err := acct.events.front()
	if err != nil {
		return SettlementEvent{}, err
	}
	if ev.Counterparty != counterparty {
		return SettlementEvent{}, ErrCounterpartyMismatch
	}

	tokenBuy, tokenSell := acct.events.tokenBuy, acct.events.tokenSell

	outcome, ok := acct.ledgers[tokenSell]
	if !ok {
		return SettlementEvent{}, ErrLedgerNotFound
	}
	income, ok := acct.ledgers[tokenBuy]
	if !ok {
		return SettlementEvent{}, ErrLedgerNotFound
	}

	if ev.IsRollback() {
		if err := outcome.unlock(ev.Amount); err != nil {
			return SettlementEvent{}, err
		}
		done, _ := acct.events.popFront()
		logger.Info("settlement: released unconsumed lock",
			"owner", owner, "mint", tokenSell, "amount", done.Amount)
		return done, nil
	}

	other, ok := e.accounts[counterparty]
	if !ok && counterparty != uuid.Nil {
		return SettlementEvent{}, ErrAccountNotFound
	}
	if other == nil {
		return SettlementEvent{}, ErrCounterpartyMismatch
	}

	// The counterparty sold what the caller bought, so its lock lives on the
	// caller's buy-token ledger.
	otherOutcome, ok := other.ledgers[tokenBuy]
	if !ok {
		return SettlementEvent{}, ErrLedgerNotFound
	}
	otherIncome, ok := other.ledgers[tokenSell]
	if !ok {
		return SettlementEvent{}, ErrLedgerNotFound
	}
	if outcome.Locked < ev.SellQuantity || otherOutcome.Locked < ev.BuyQuantity {
		return SettlementEvent{}, ErrInsufficientBalance
	}

	if err := outcome.debitLocked(ev.SellQuantity); err != nil {
		return SettlementEvent{}, err
	}
	if err := income.creditAvailable(ev.BuyQuantity); err != nil {
		outcome.Locked += ev.SellQuantity
		return SettlementEvent{}, err
	}
	if err := otherOutcome.debitLocked(ev.BuyQuantity); err != nil {
		outcome.Locked += ev.SellQuantity
		income.Available -= ev.BuyQuantity
		return SettlementEvent{}, err
	}
	if err := otherIncome.creditAvailable(ev.SellQuantity); err != nil {
		outcome.Locked += ev.SellQuantity
		income.Available -= ev.BuyQuantity
		otherOutcome.Locked += ev.BuyQuantity
		return SettlementEvent{}, err
	}

	done, _ := acct.events.popFront()
	logger.Info("settlement: finalized trade",
		"owner", owner, "counterparty", counterparty,
		"received", done.BuyQuantity, "mint_in", tokenBuy,
		"paid", done.SellQuantity, "mint_out", tokenSell)
	return done, nil
}
