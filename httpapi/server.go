package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/custodex/dex"
)

// Server exposes the engine over HTTP. Handlers translate between the wire
// representation and engine calls; all trading logic stays in the engine.
type Server struct {
	engine *dex.DexEngine
	logger *slog.Logger
}

func NewServer(engine *dex.DexEngine, logger *slog.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// RegisterRoutes attaches all API endpoints under /v1.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")

	v1.POST("/accounts", s.createAccount)
	v1.POST("/accounts/:id/ledgers", s.createLedger)
	v1.GET("/accounts/:id/balances/:mint", s.getBalance)
	v1.POST("/accounts/:id/deposits", s.deposit)
	v1.POST("/accounts/:id/withdrawals", s.withdraw)
	v1.GET("/accounts/:id/orders", s.listOrders)
	v1.GET("/accounts/:id/events", s.listEvents)

	v1.POST("/pairs", s.createPair)
	v1.GET("/pairs/:base/:quote/depth", s.getDepth)

	v1.POST("/orders", s.placeOrder)
	v1.DELETE("/orders/:id", s.cancelOrder)

	v1.POST("/settlements", s.settle)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = map[error]struct {
	status int
	code   string
}{
	dex.ErrInvalidParam:         {http.StatusBadRequest, "invalid_param"},
	dex.ErrInvalidOrderSide:     {http.StatusBadRequest, "invalid_side"},
	dex.ErrOverflow:             {http.StatusBadRequest, "overflow"},
	dex.ErrAccountNotFound:      {http.StatusNotFound, "account_not_found"},
	dex.ErrLedgerNotFound:       {http.StatusNotFound, "ledger_not_found"},
	dex.ErrMarketNotFound:       {http.StatusNotFound, "market_not_found"},
	dex.ErrOrderNotFound:        {http.StatusNotFound, "order_not_found"},
	dex.ErrEventQueueEmpty:      {http.StatusNotFound, "no_pending_events"},
	dex.ErrAccountExists:        {http.StatusConflict, "account_exists"},
	dex.ErrLedgerExists:         {http.StatusConflict, "ledger_exists"},
	dex.ErrQueueFull:            {http.StatusConflict, "queue_full"},
	dex.ErrEventQueueFull:       {http.StatusConflict, "event_queue_full"},
	dex.ErrEventQueueBusy:       {http.StatusConflict, "event_queue_busy"},
	dex.ErrCounterpartyMismatch: {http.StatusConflict, "counterparty_mismatch"},
	dex.ErrInsufficientBalance:  {http.StatusUnprocessableEntity, "insufficient_balance"},
}

func (s *Server) fail(c *gin.Context, err error) {
	for sentinel, m := range errorCodes {
		if errors.Is(err, sentinel) {
			c.JSON(m.status, errorResponse{Code: m.code, Message: err.Error()})
			return
		}
	}
	s.logger.Error("unhandled error", "error", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal", Message: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_param", Message: msg})
}

type createAccountRequest struct {
	ID string `json:"id"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	// An empty body means "generate an id for me".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "malformed body")
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			badRequest(c, "id must be a UUID")
			return
		}
		id = parsed
	}

	if err := s.engine.RegisterAccount(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type createLedgerRequest struct {
	Mint string `json:"mint" binding:"required"`
}

func (s *Server) createLedger(c *gin.Context) {
	id, ok := accountParam(c)
	if !ok {
		return
	}
	var req createLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mint is required")
		return
	}
	if err := s.engine.RegisterLedger(id, dex.MintID(req.Mint)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": id, "mint": req.Mint})
}

func (s *Server) getBalance(c *gin.Context) {
	id, ok := accountParam(c)
	if !ok {
		return
	}
	ledger, err := s.engine.Balance(id, dex.MintID(c.Param("mint")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

type transferRequest struct {
	Mint   string `json:"mint" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

func (s *Server) deposit(c *gin.Context) {
	s.transfer(c, s.engine.Deposit)
}

func (s *Server) withdraw(c *gin.Context) {
	s.transfer(c, s.engine.Withdraw)
}

func (s *Server) transfer(c *gin.Context, apply func(dex.AccountID, dex.MintID, uint64) error) {
	id, ok := accountParam(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mint and amount are required")
		return
	}
	if err := apply(id, dex.MintID(req.Mint), req.Amount); err != nil {
		s.fail(c, err)
		return
	}
	ledger, err := s.engine.Balance(id, dex.MintID(req.Mint))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func (s *Server) listOrders(c *gin.Context) {
	id, ok := accountParam(c)
	if !ok {
		return
	}
	orders, err := s.engine.OpenOrders(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) listEvents(c *gin.Context) {
	id, ok := accountParam(c)
	if !ok {
		return
	}
	events, tokenBuy, tokenSell, err := s.engine.PendingEvents(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events":     events,
		"token_buy":  tokenBuy,
		"token_sell": tokenSell,
	})
}

type createPairRequest struct {
	Base  string `json:"base" binding:"required"`
	Quote string `json:"quote" binding:"required"`
}

func (s *Server) createPair(c *gin.Context) {
	var req createPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "base and quote are required")
		return
	}
	if err := s.engine.RegisterPair(dex.MintID(req.Base), dex.MintID(req.Quote)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"base": req.Base, "quote": req.Quote})
}

func (s *Server) getDepth(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	depth, err := s.engine.Depth(dex.MintID(c.Param("base")), dex.MintID(c.Param("quote")), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, depth)
}

type placeOrderRequest struct {
	Owner    string `json:"owner" binding:"required"`
	Base     string `json:"base" binding:"required"`
	Quote    string `json:"quote" binding:"required"`
	Side     string `json:"side" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity" binding:"required"`
}

func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "owner, base, quote, side, type and quantity are required")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		badRequest(c, "owner must be a UUID")
		return
	}
	side, err := dex.ParseSide(req.Side)
	if err != nil {
		s.fail(c, err)
		return
	}

	base, quote := dex.MintID(req.Base), dex.MintID(req.Quote)

	switch dex.OrderType(req.Type) {
	case dex.Limit:
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			badRequest(c, "price must be a decimal number")
			return
		}
		orderID, err := s.engine.PlaceLimitOrder(owner, base, quote, side, price, req.Quantity)
		if err != nil {
			ordersPlaced.WithLabelValues(string(dex.Limit), "rejected").Inc()
			s.fail(c, err)
			return
		}
		ordersPlaced.WithLabelValues(string(dex.Limit), "accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{"order_id": orderID, "resting": orderID != 0})

	case dex.Market:
		filled, err := s.engine.PlaceMarketOrder(owner, base, quote, side, req.Quantity)
		if err != nil {
			ordersPlaced.WithLabelValues(string(dex.Market), "rejected").Inc()
			s.fail(c, err)
			return
		}
		ordersPlaced.WithLabelValues(string(dex.Market), "accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{"filled": filled})

	default:
		badRequest(c, "type must be limit or market")
	}
}

func (s *Server) cancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id must be an integer order id")
		return
	}
	owner, err := uuid.Parse(c.Query("owner"))
	if err != nil {
		badRequest(c, "owner query param must be a UUID")
		return
	}
	if err := s.engine.CancelOrder(owner, orderID); err != nil {
		s.fail(c, err)
		return
	}
	ordersCancelled.Inc()
	c.JSON(http.StatusOK, gin.H{"cancelled": orderID})
}

type settleRequest struct {
	Owner        string `json:"owner" binding:"required"`
	Counterparty string `json:"counterparty"`
}

func (s *Server) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "owner is required")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		badRequest(c, "owner must be a UUID")
		return
	}
	counterparty := uuid.Nil
	if req.Counterparty != "" {
		counterparty, err = uuid.Parse(req.Counterparty)
		if err != nil {
			badRequest(c, "counterparty must be a UUID")
			return
		}
	}
	ev, err := s.engine.ConsumeEvents(owner, counterparty)
	if err != nil {
		s.fail(c, err)
		return
	}
	eventsSettled.WithLabelValues(ev.Kind.String()).Inc()
	c.JSON(http.StatusOK, ev)
}

func accountParam(c *gin.Context) (dex.AccountID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "account id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
