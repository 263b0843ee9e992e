package dex

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// account bundles the fixed-size records registered for one exchange user:
// balance ledgers, the mint registry, the live-order index and the pending
// settlement event queue.
type account struct {
	id      AccountID
	ledgers map[MintID]*TokenLedger
	mints   mintRegistry
	orders  userOrderIndex
	events  eventQueue
}

// DexEngine is the custodial exchange core: per-mint vault totals, per
// (account, mint) balance ledgers, one order book per unordered token pair,
// and the deferred-settlement event queues.
//
// There are no internal goroutines. Every public operation executes as one
// atomic unit under the engine mutex, which stands in for the host's
// serialization over the records the operation declares; a failed operation
// leaves no partial state behind.
type DexEngine struct {
	mu        sync.Mutex
	seq       *Sequencer
	accounts  map[AccountID]*account
	vaults    map[MintID]*VaultLedger
	books     map[PairKey]*OrderBook
	publisher PublishLog
	logSeq    uint64
	tradeSeq  uint64
}

// NewDexEngine creates an engine publishing book logs to the given
// publisher. A nil publisher discards all logs.
func NewDexEngine(publisher PublishLog) *DexEngine {
	if publisher == nil {
		publisher = NewDiscardPublishLog()
	}
	return &DexEngine{
		seq:       NewSequencer(),
		accounts:  make(map[AccountID]*account),
		vaults:    make(map[MintID]*VaultLedger),
		books:     make(map[PairKey]*OrderBook),
		publisher: publisher,
	}
}

func (e *DexEngine) nextLogSeq() uint64 {
	e.logSeq++
	return e.logSeq
}

func (e *DexEngine) nextTradeID() uint64 {
	e.tradeSeq++
	return e.tradeSeq
}

// RegisterAccount allocates the fixed-size order index, event queue and mint
// registry for a new account.
func (e *DexEngine) RegisterAccount(id AccountID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.accounts[id]; exists {
		return ErrAccountExists
	}
	e.accounts[id] = &account{
		id:      id,
		ledgers: make(map[MintID]*TokenLedger),
	}
	return nil
}

// RegisterLedger allocates the zeroed (account, mint) balance ledger and
// records the mint in the account's bounded registry.
func (e *DexEngine) RegisterLedger(id AccountID, mint MintID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mint == "" {
		return ErrInvalidParam
	}
	acct, ok := e.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if _, exists := acct.ledgers[mint]; exists {
		return ErrLedgerExists
	}
	if err := acct.mints.add(mint); err != nil {
		return err
	}
	acct.ledgers[mint] = &TokenLedger{Owner: id, Mint: mint}
	if _, ok := e.vaults[mint]; !ok {
		e.vaults[mint] = &VaultLedger{Mint: mint}
	}
	return nil
}

// RegisterPair allocates the two complementary order queues for a token
// pair. Registering an already-known pair is a no-op.
func (e *DexEngine) RegisterPair(base, quote MintID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if base == "" || quote == "" || base == quote {
		return ErrInvalidParam
	}
	key := NewPairKey(base, quote)
	if _, exists := e.books[key]; exists {
		return nil
	}
	e.books[key] = newOrderBook(base, quote)
	return nil
}

// Deposit credits an account's available balance and the vault total,
// mirroring a successful external token transfer into custody.
func (e *DexEngine) Deposit(id AccountID, mint MintID, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return ErrInvalidParam
	}
	ledger, vault, err := e.ledgerAndVault(id, mint)
	if err != nil {
		return err
	}
	if err := vault.credit(amount); err != nil {
		return err
	}
	if err := ledger.creditAvailable(amount); err != nil {
		vault.Total -= amount
		return err
	}
	return nil
}

// Withdraw debits an account's available balance and the vault total. Fails
// when either is short.
func (e *DexEngine) Withdraw(id AccountID, mint MintID, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return ErrInvalidParam
	}
	ledger, vault, err := e.ledgerAndVault(id, mint)
	if err != nil {
		return err
	}
	if ledger.Available < amount || vault.Total < amount {
		return ErrInsufficientBalance
	}
	_ = ledger.debitAvailable(amount)
	_ = vault.debit(amount)
	return nil
}

// Balance returns a copy of the (account, mint) ledger.
func (e *DexEngine) Balance(id AccountID, mint MintID) (TokenLedger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[id]
	if !ok {
		return TokenLedger{}, ErrAccountNotFound
	}
	ledger, ok := acct.ledgers[mint]
	if !ok {
		return TokenLedger{}, ErrLedgerNotFound
	}
	return *ledger, nil
}

// VaultBalance returns the vault's total holdings of a mint.
func (e *DexEngine) VaultBalance(mint MintID) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[mint]
	if !ok {
		return 0, ErrLedgerNotFound
	}
	return vault.Total, nil
}

// OpenOrders returns copies of the account's live resting orders in
// registration order.
func (e *DexEngine) OpenOrders(id AccountID) ([]Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	refs := acct.orders.list()
	out := make([]Order, 0, len(refs))
	for _, ref := range refs {
		book, ok := e.books[NewPairKey(ref.Base, ref.Quote)]
		if !ok {
			continue
		}
		if o := book.queue(ref.Side).find(ref.ID); o != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

// PendingEvents returns copies of the account's queued settlement events in
// FIFO order, plus the batch token direction.
func (e *DexEngine) PendingEvents(id AccountID) ([]SettlementEvent, MintID, MintID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[id]
	if !ok {
		return nil, "", "", ErrAccountNotFound
	}
	return acct.events.list(), acct.events.tokenBuy, acct.events.tokenSell, nil
}

// PlaceLimitOrder locks the payer leg, crosses the order against the
// opposite queue, queues one settlement event per fill, and inserts any
// unfilled remainder as a new resting order. Returns the resting order id,
// or zero when the order filled completely.
//
// The operation is all-or-nothing: any failure (insufficient balance, event
// queue capacity or direction, order queue capacity) leaves every record
// untouched.
func (e *DexEngine) PlaceLimitOrder(owner AccountID, base, quote MintID, side Side, price decimal.Decimal, quantity uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if side != Buy && side != Sell {
		return 0, ErrInvalidOrderSide
	}
	if quantity == 0 || price.Sign() <= 0 {
		return 0, ErrInvalidParam
	}
	book, ok := e.books[NewPairKey(base, quote)]
	if !ok {
		return 0, ErrMarketNotFound
	}
	acct, ok := e.accounts[owner]
	if !ok {
		return 0, ErrAccountNotFound
	}

	// The quote leg rounds up so that equal-price buy and sell orders cross
	// exactly and the buyer can never lock less than the trade needs.
	quoteAmount, err := ceilMul(quantity, price)
	if err != nil {
		return 0, err
	}

	var buyToken, sellToken MintID
	var buyQty, sellQty uint64
	if side == Buy {
		buyToken, sellToken = base, quote
		buyQty, sellQty = quantity, quoteAmount
	} else {
		buyToken, sellToken = quote, base
		buyQty, sellQty = quoteAmount, quantity
	}

	payer, ok := acct.ledgers[sellToken]
	if !ok {
		return 0, ErrLedgerNotFound
	}
	if _, ok := acct.ledgers[buyToken]; !ok {
		return 0, ErrLedgerNotFound
	}
	if payer.Available < sellQty {
		return 0, ErrInsufficientBalance
	}

	bookSide := Buy
	if buyToken != book.Base {
		bookSide = Sell
	}
	target := book.opposite(bookSide)

	// A buy's quantity bounds what it receives; a sell's bounds what it pays
	// out, so the walk is anchored on the give leg instead.
	getBudget := buyQty
	if side == Sell {
		getBudget = unboundedGet
	}
	plan := planMatch(target, buyQty, sellQty, getBudget, sellQty, true)

	if n := plan.events(false); n > 0 {
		if !acct.events.accepts(buyToken, sellToken) {
			return 0, ErrEventQueueBusy
		}
		if n > acct.events.free() {
			return 0, ErrEventQueueFull
		}
	}
	if plan.resting() {
		if book.queue(bookSide).len() >= QueueCapacity {
			return 0, ErrQueueFull
		}
		if acct.orders.len() >= UserOrderCapacity {
			return 0, ErrQueueFull
		}
	}

	// All postconditions hold; commit. The lock covers exactly the planned
	// fills plus the resting remainder: fills at better prices than the limit
	// consume less than the nominal quantity*price, and the surplus must not
	// stay locked with no event to release it.
	var lockAmount uint64
	for _, f := range plan.fills {
		lockAmount += f.give
	}
	if plan.resting() {
		lockAmount += plan.giveRemaining
	}
	if err := payer.lock(lockAmount); err != nil {
		return 0, err
	}

	now := time.Now()
	logs := make([]*BookLog, 0, len(plan.fills)+1)

	if len(plan.fills) > 0 {
		_ = acct.events.open(buyToken, sellToken)
		for _, f := range plan.fills {
			_ = acct.events.append(newTradeEvent(f.makerOwner, f.get, f.give))
		}
		logs = append(logs, e.applyFills(book, bookSide, owner, plan.fills, now)...)
	}

	var restingID uint64
	if plan.resting() {
		// A buy's remainder is what the fills left of both legs. A sell's
		// receive leg is unbounded during the walk, so its remainder re-derives
		// the buy leg from the limit ratio, rounded up to keep the resting
		// price at or above the limit.
		restBuy := plan.getRemaining
		if side == Sell {
			restBuy = mulDivCeil(plan.giveRemaining, buyQty, sellQty)
		}
		order := Order{
			ID:           e.seq.Next(),
			Owner:        owner,
			BuyToken:     buyToken,
			SellToken:    sellToken,
			BuyQuantity:  restBuy,
			SellQuantity: plan.giveRemaining,
			Timestamp:    now.UnixNano(),
		}
		_ = book.queue(bookSide).insert(order)
		_ = acct.orders.add(orderRef{ID: order.ID, Base: book.Base, Quote: book.Quote, Side: bookSide})
		restingID = order.ID
		logs = append(logs, book.newOpenLog(e.nextLogSeq(), &order, now))
	}

	if len(logs) > 0 {
		e.publisher.Publish(logs...)
		releaseBookLogs(logs)
	}
	return restingID, nil
}

// PlaceMarketOrder crosses at whatever price the book offers. The lock is
// speculative: a buy locks the entire available quote balance because the
// average fill price is unknown until the walk completes; any unconsumed
// part of the lock is queued as a final rollback event for the settlement
// processor to release. Returns the filled amount in base units.
func (e *DexEngine) PlaceMarketOrder(owner AccountID, base, quote MintID, side Side, quantity uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if side != Buy && side != Sell {
		return 0, ErrInvalidOrderSide
	}
	if quantity == 0 {
		return 0, ErrInvalidParam
	}
	book, ok := e.books[NewPairKey(base, quote)]
	if !ok {
		return 0, ErrMarketNotFound
	}
	acct, ok := e.accounts[owner]
	if !ok {
		return 0, ErrAccountNotFound
	}

	var buyToken, sellToken MintID
	if side == Buy {
		buyToken, sellToken = base, quote
	} else {
		buyToken, sellToken = quote, base
	}

	payer, ok := acct.ledgers[sellToken]
	if !ok {
		return 0, ErrLedgerNotFound
	}
	if _, ok := acct.ledgers[buyToken]; !ok {
		return 0, ErrLedgerNotFound
	}

	var lockAmount, getBudget uint64
	if side == Buy {
		lockAmount = payer.Available
		getBudget = quantity
	} else {
		lockAmount = quantity
		getBudget = unboundedGet
	}
	if lockAmount == 0 || payer.Available < lockAmount {
		return 0, ErrInsufficientBalance
	}

	bookSide := Buy
	if buyToken != book.Base {
		bookSide = Sell
	}
	target := book.opposite(bookSide)

	plan := planMatch(target, 0, 0, getBudget, lockAmount, false)

	if n := plan.events(true); n > 0 {
		if !acct.events.accepts(buyToken, sellToken) {
			return 0, ErrEventQueueBusy
		}
		if n > acct.events.free() {
			return 0, ErrEventQueueFull
		}
	}

	if err := payer.lock(lockAmount); err != nil {
		return 0, err
	}

	now := time.Now()
	var logs []*BookLog

	if plan.events(true) > 0 {
		_ = acct.events.open(buyToken, sellToken)
		for _, f := range plan.fills {
			_ = acct.events.append(newTradeEvent(f.makerOwner, f.get, f.give))
		}
		if plan.giveRemaining > 0 {
			// Appended after all trade events so the excess lock is always
			// the last entry released for this batch.
			_ = acct.events.append(newUnlockEvent(plan.giveRemaining))
		}
		logs = e.applyFills(book, bookSide, owner, plan.fills, now)
	}

	if len(logs) > 0 {
		e.publisher.Publish(logs...)
		releaseBookLogs(logs)
	}

	if side == Buy {
		return quantity - plan.getRemaining, nil
	}
	return lockAmount - plan.giveRemaining, nil
}

// applyFills mutates the target queue according to a validated plan:
// removes fully consumed makers (and their owners' index entries), reduces
// the final partially consumed maker in place, and produces one match log
// per fill.
func (e *DexEngine) applyFills(book *OrderBook, takerSide Side, taker AccountID, fills []fill, now time.Time) []*BookLog {
	target := book.opposite(takerSide)
	logs := make([]*BookLog, 0, len(fills))

	for _, f := range fills {
		m := target.best()

		baseCut, quoteCut := f.give, f.get
		if takerSide == Buy {
			baseCut, quoteCut = f.get, f.give
		}
		logs = append(logs, book.newMatchLog(e.nextLogSeq(), e.nextTradeID(), takerSide, taker, m, baseCut, quoteCut, now))

		if f.makerFilled {
			removed := target.removeAt(0)
			if makerAcct, ok := e.accounts[removed.Owner]; ok {
				makerAcct.orders.remove(removed.ID)
			}
		} else {
			m.SellQuantity -= f.get
			m.BuyQuantity -= f.give
			target.siftFront()
		}
	}
	return logs
}

// ledgerAndVault resolves the pair of records a custody transfer touches.
func (e *DexEngine) ledgerAndVault(id AccountID, mint MintID) (*TokenLedger, *VaultLedger, error) {
	acct, ok := e.accounts[id]
	if !ok {
		return nil, nil, ErrAccountNotFound
	}
	ledger, ok := acct.ledgers[mint]
	if !ok {
		return nil, nil, ErrLedgerNotFound
	}
	vault, ok := e.vaults[mint]
	if !ok {
		return nil, nil, ErrLedgerNotFound
	}
	return ledger, vault, nil
}

// ceilMul converts quantity×price rounded up into token units.
func ceilMul(quantity uint64, price decimal.Decimal) (uint64, error) {
	amt := decimalFromU64(quantity).Mul(price).Ceil()
	if amt.Sign() <= 0 {
		return 0, ErrInvalidParam
	}
	bi := amt.BigInt()
	if !bi.IsUint64() {
		return 0, ErrOverflow
	}
	return bi.Uint64(), nil
}
