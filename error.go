package dex

import "errors"

var (
	ErrInsufficientBalance  = errors.New("available balance is less than the requested amount")
	ErrInvalidOrderSide     = errors.New("order side must be buy or sell")
	ErrQueueFull            = errors.New("the order queue has no free slot")
	ErrEventQueueFull       = errors.New("the settlement event queue has no free slot")
	ErrEventQueueEmpty      = errors.New("the settlement event queue is empty")
	ErrEventQueueBusy       = errors.New("the settlement event queue holds events for another pair")
	ErrCounterpartyMismatch = errors.New("counterparty does not match the queued event")
	ErrOrderNotFound        = errors.New("order not found")
	ErrMarketNotFound       = errors.New("token pair is not registered")
	ErrLedgerNotFound       = errors.New("token ledger is not registered")
	ErrAccountNotFound      = errors.New("account is not registered")
	ErrAccountExists        = errors.New("account is already registered")
	ErrLedgerExists         = errors.New("token ledger is already registered")
	ErrOverflow             = errors.New("balance arithmetic overflow")
	ErrInvalidParam         = errors.New("the param is invalid")
)
