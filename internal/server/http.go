// Package server exposes the market operations over HTTP JSON and a
// gRPC health/reflection endpoint. All amounts cross the wire as
// decimal strings; wad fields hold 18 decimals, raw quote fields hold
// the instance's quote decimals.
package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"CurveBank/internal/market"
	"CurveBank/internal/observability"
	"CurveBank/internal/persistence"
	"CurveBank/internal/quote"
	"CurveBank/internal/revert"
)

// HTTPServer serves the operation and query API.
type HTTPServer struct {
	registry *market.Registry
	events   *persistence.EventLogWriter
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	log      zerolog.Logger

	srv *http.Server
}

func NewHTTPServer(
	addr string,
	registry *market.Registry,
	events *persistence.EventLogWriter,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		registry: registry,
		events:   events,
		health:   health,
		metrics:  metrics,
		log:      logger,
	}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)

	mux.HandleFunc("POST /v1/markets", s.instrument("create_market", s.handleCreateMarket))
	mux.HandleFunc("GET /v1/markets", s.instrument("list_markets", s.handleListMarkets))
	mux.HandleFunc("GET /v1/markets/{id}", s.instrument("market_state", s.handleMarketState))
	mux.HandleFunc("GET /v1/markets/{id}/accounts/{account}", s.instrument("account_state", s.handleAccountState))
	mux.HandleFunc("GET /v1/markets/{id}/events", s.instrument("events", s.handleEvents))

	mux.HandleFunc("POST /v1/markets/{id}/deposit", s.instrument("deposit", s.handleDeposit))
	mux.HandleFunc("POST /v1/markets/{id}/contribute", s.instrument("contribute", s.handleContribute))
	mux.HandleFunc("POST /v1/markets/{id}/open", s.instrument("open_market", s.handleOpen))
	mux.HandleFunc("POST /v1/markets/{id}/redeem", s.instrument("redeem", s.handleRedeem))
	mux.HandleFunc("POST /v1/markets/{id}/buy", s.instrument("buy", s.handleBuy))
	mux.HandleFunc("POST /v1/markets/{id}/sell", s.instrument("sell", s.handleSell))
	mux.HandleFunc("POST /v1/markets/{id}/borrow", s.instrument("borrow", s.handleBorrow))
	mux.HandleFunc("POST /v1/markets/{id}/repay", s.instrument("repay", s.handleRepay))
	mux.HandleFunc("POST /v1/markets/{id}/heal", s.instrument("heal", s.handleHeal))
	mux.HandleFunc("POST /v1/markets/{id}/burn", s.instrument("burn", s.handleBurn))
	mux.HandleFunc("POST /v1/markets/{id}/transfer", s.instrument("transfer", s.handleTransfer))
	mux.HandleFunc("POST /v1/markets/{id}/owner/fee-status", s.instrument("owner_fee_status", s.handleOwnerFeeStatus))
	mux.HandleFunc("POST /v1/markets/{id}/owner/transfer", s.instrument("owner_transfer", s.handleOwnerTransfer))

	mux.HandleFunc("GET /v1/markets/{id}/quote/buy", s.instrument("quote_buy", s.handleQuoteBuy))
	mux.HandleFunc("GET /v1/markets/{id}/quote/sell", s.instrument("quote_sell", s.handleQuoteSell))

	return mux
}

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// --- Request/response plumbing ---

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps the revert taxonomy onto HTTP status codes.
func statusFor(identifier string) int {
	switch identifier {
	case "ZeroInput", "SlippageToleranceExceeded":
		return http.StatusBadRequest
	case "NotAuthorized":
		return http.StatusForbidden
	case "UnknownMarket":
		return http.StatusNotFound
	case "InsufficientBalance", "Closed", "Open", "NothingToRedeem",
		"NotEligible", "CollateralLocked", "CreditLimit",
		"DeadlineExpired", "Reentrancy":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, endpoint string, err error) {
	id := revert.Identifier(err)
	code := statusFor(id)
	s.metrics.QueryErrors.WithLabelValues(endpoint, id).Inc()
	if code == http.StatusInternalServerError {
		s.log.Error().Str("endpoint", endpoint).Err(err).Msg("internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: id, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) instrument(endpoint string, h func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := h(w, r)
		status := "ok"
		if err != nil {
			status = revert.Identifier(err)
			s.writeError(w, endpoint, err)
		}
		s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(revert.ErrZeroInput, err)
	}
	return nil
}

// parseAmount parses a required decimal-string amount.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, revert.ErrZeroInput
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Join(revert.ErrZeroInput, err)
	}
	return v, nil
}

func (s *HTTPServer) marketFrom(r *http.Request) (*market.Market, error) {
	return s.registry.Get(r.PathValue("id"))
}

// --- State serialization ---

type marketStateBody struct {
	ID               string `json:"id"`
	Phase            string `json:"phase"`
	SaleEnd          int64  `json:"sale_end"`
	TotalContributed string `json:"total_contributed"`
	OpeningTokens    string `json:"opening_tokens"`
	QuoteDecimals    uint8  `json:"quote_decimals"`
	FeeRateBps       uint64 `json:"fee_rate_bps"`
	VirtQuote        string `json:"reserve_virt_quote"`
	RealQuote        string `json:"reserve_real_quote"`
	ReserveToken     string `json:"reserve_token"`
	TotalSupply      string `json:"total_supply"`
	MaxSupply        string `json:"max_supply"`
	TotalDebt        string `json:"total_debt"`
	MarketPrice      string `json:"market_price"`
	FloorPrice       string `json:"floor_price"`
	Owner            string `json:"owner,omitempty"`
	OwnerFeeEnabled  bool   `json:"owner_fee_enabled"`
	Sequence         int64  `json:"sequence"`
	StateHash        string `json:"state_hash"`
}

func stateBody(st market.State) marketStateBody {
	return marketStateBody{
		ID:               st.ID,
		Phase:            st.Phase.String(),
		SaleEnd:          st.SaleEnd,
		TotalContributed: st.TotalContributed.Dec(),
		OpeningTokens:    st.OpeningTokens.Dec(),
		QuoteDecimals:    st.QuoteDecimals,
		FeeRateBps:       st.FeeRateBps,
		VirtQuote:        st.VirtQuote.Dec(),
		RealQuote:        st.RealQuote.Dec(),
		ReserveToken:     st.ReserveToken.Dec(),
		TotalSupply:      st.TotalSupply.Dec(),
		MaxSupply:        st.MaxSupply.Dec(),
		TotalDebt:        st.TotalDebt.Dec(),
		MarketPrice:      st.MarketPrice.Dec(),
		FloorPrice:       st.FloorPrice.Dec(),
		Owner:            st.Owner,
		OwnerFeeEnabled:  st.OwnerFeeEnabled,
		Sequence:         st.Sequence,
		StateHash:        hex.EncodeToString(st.StateHash[:]),
	}
}

// --- Handlers ---

type createMarketRequest struct {
	QuoteDecimals    uint8  `json:"quote_decimals"`
	FeeRateBps       uint64 `json:"fee_rate_bps"`
	InitialVirtQuote string `json:"initial_virt_quote"` // wad
	MaxSupply        string `json:"max_supply"`         // wad
	SaleDurationUs   int64  `json:"sale_duration_us"`
	Owner            string `json:"owner"`
	Treasury         string `json:"treasury"`
}

func (s *HTTPServer) handleCreateMarket(w http.ResponseWriter, r *http.Request) error {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	virt, err := parseAmount(req.InitialVirtQuote)
	if err != nil {
		return err
	}
	maxSupply, err := parseAmount(req.MaxSupply)
	if err != nil {
		return err
	}

	m, err := s.registry.Create(market.Config{
		QuoteDecimals:    req.QuoteDecimals,
		FeeRateBps:       req.FeeRateBps,
		InitialVirtQuote: virt,
		MaxSupply:        maxSupply,
		SaleDuration:     req.SaleDurationUs,
		Owner:            req.Owner,
		Treasury:         req.Treasury,
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, stateBody(m.State()))
	return nil
}

func (s *HTTPServer) handleListMarkets(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{"markets": s.registry.List()})
	return nil
}

func (s *HTTPServer) handleMarketState(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stateBody(m.State()))
	return nil
}

func (s *HTTPServer) handleAccountState(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	acct := m.AccountOf(r.PathValue("account"))
	writeJSON(w, http.StatusOK, map[string]string{
		"account":       acct.Account,
		"token_balance": acct.TokenBalance.Dec(),
		"debt":          acct.Debt.Dec(),
		"credit":        acct.Credit.Dec(),
		"transferable":  acct.Transferable.Dec(),
		"quote_balance": acct.QuoteBalance.Dec(),
		"contribution":  acct.Contribution.Dec(),
	})
	return nil
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}

	from := int64(1)
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Join(revert.ErrZeroInput, err)
		}
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			return revert.ErrZeroInput
		}
	}

	rows, err := s.events.ReadEvents(r.Context(), m.ID(), from, limit)
	if err != nil {
		return err
	}

	type eventBody struct {
		Sequence  int64           `json:"sequence"`
		EventType string          `json:"event_type"`
		Timestamp int64           `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	out := make([]eventBody, 0, len(rows))
	for _, row := range rows {
		out = append(out, eventBody{
			Sequence:  row.Sequence,
			EventType: row.EventType,
			Timestamp: row.Timestamp,
			Payload:   row.Payload,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
	return nil
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"` // raw quote units
}

func (s *HTTPServer) handleDeposit(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.DepositQuote(req.Account, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type contributeRequest struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"` // raw quote units
	Deadline    int64  `json:"deadline"`
}

func (s *HTTPServer) handleContribute(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req contributeRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.Contribute(req.Caller, req.Beneficiary, amount, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type openRequest struct {
	Deadline int64 `json:"deadline"`
}

func (s *HTTPServer) handleOpen(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := m.OpenMarket(req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stateBody(m.State()))
	return nil
}

type redeemRequest struct {
	Caller   string `json:"caller"`
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleRedeem(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	share, err := m.Redeem(req.Caller, req.Deadline)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"tokens": share.Dec()})
	return nil
}

type buyRequest struct {
	Caller      string `json:"caller"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider"`
	QuoteIn     string `json:"quote_in"`      // raw quote units
	MinTokenOut string `json:"min_token_out"` // wad, optional
	Deadline    int64  `json:"deadline"`
}

func (s *HTTPServer) handleBuy(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	quoteIn, err := parseAmount(req.QuoteIn)
	if err != nil {
		return err
	}
	minOut := uint256.NewInt(0)
	if req.MinTokenOut != "" {
		if minOut, err = parseAmount(req.MinTokenOut); err != nil {
			return err
		}
	}

	receipt, err := m.Buy(req.Caller, req.Recipient, req.Provider, quoteIn, minOut, req.Deadline)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"quote_in":     receipt.QuoteInRaw.Dec(),
		"fee":          receipt.FeeQuote.Dec(),
		"token_out":    receipt.TokenOut.Dec(),
		"market_price": receipt.MarketPrice.Dec(),
		"floor_price":  receipt.FloorPrice.Dec(),
	})
	return nil
}

type sellRequest struct {
	Caller      string `json:"caller"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider"`
	TokenIn     string `json:"token_in"`      // wad
	MinQuoteOut string `json:"min_quote_out"` // raw quote units, optional
	Deadline    int64  `json:"deadline"`
}

func (s *HTTPServer) handleSell(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req sellRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	tokenIn, err := parseAmount(req.TokenIn)
	if err != nil {
		return err
	}
	minOut := uint256.NewInt(0)
	if req.MinQuoteOut != "" {
		if minOut, err = parseAmount(req.MinQuoteOut); err != nil {
			return err
		}
	}

	receipt, err := m.Sell(req.Caller, req.Recipient, req.Provider, tokenIn, minOut, req.Deadline)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token_in":     receipt.TokenIn.Dec(),
		"fee":          receipt.FeeToken.Dec(),
		"quote_out":    receipt.QuoteOutRaw.Dec(),
		"market_price": receipt.MarketPrice.Dec(),
		"floor_price":  receipt.FloorPrice.Dec(),
	})
	return nil
}

type borrowRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"` // raw quote units
	Deadline  int64  `json:"deadline"`
}

func (s *HTTPServer) handleBorrow(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req borrowRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.Borrow(req.Caller, req.Recipient, amount, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type repayRequest struct {
	Payer    string `json:"payer"`
	Account  string `json:"account"`
	Amount   string `json:"amount"` // raw quote units
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleRepay(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	applied, err := m.Repay(req.Payer, req.Account, amount, req.Deadline)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"applied": applied.Dec()})
	return nil
}

type healRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"` // raw quote units
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleHeal(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req healRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.Heal(req.Caller, amount, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type burnRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"` // wad
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleBurn(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.Burn(req.Caller, amount, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type transferRequest struct {
	Caller   string `json:"caller"`
	To       string `json:"to"`
	Amount   string `json:"amount"` // wad
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleTransfer(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := m.Transfer(req.Caller, req.To, amount, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type ownerFeeStatusRequest struct {
	Caller   string `json:"caller"`
	Enabled  bool   `json:"enabled"`
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleOwnerFeeStatus(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req ownerFeeStatusRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := m.SetOwnerFeeStatus(req.Caller, req.Enabled, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type ownerTransferRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
	Deadline int64  `json:"deadline"`
}

func (s *HTTPServer) handleOwnerTransfer(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	var req ownerTransferRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := m.TransferOwnership(req.Caller, req.NewOwner, req.Deadline); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// handleQuoteBuy prices a buy. Exactly one of quote_in (raw) or
// token_out (wad) must be supplied.
func (s *HTTPServer) handleQuoteBuy(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	st := m.State()

	quoteIn := r.URL.Query().Get("quote_in")
	tokenOut := r.URL.Query().Get("token_out")

	var est *quote.BuyEstimate
	switch {
	case quoteIn != "" && tokenOut == "":
		amount, err := parseAmount(quoteIn)
		if err != nil {
			return err
		}
		est, err = quote.Buy(st, amount)
		if err != nil {
			return err
		}
	case tokenOut != "" && quoteIn == "":
		amount, err := parseAmount(tokenOut)
		if err != nil {
			return err
		}
		est, err = quote.BuyForOut(st, amount)
		if err != nil {
			return err
		}
	default:
		return revert.ErrZeroInput
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"quote_in":  est.QuoteInRaw.Dec(),
		"fee":       est.Fee.Dec(),
		"token_out": est.TokenOut.Dec(),
	})
	return nil
}

// handleQuoteSell prices a sell. Exactly one of token_in (wad) or
// quote_out (raw) must be supplied.
func (s *HTTPServer) handleQuoteSell(w http.ResponseWriter, r *http.Request) error {
	m, err := s.marketFrom(r)
	if err != nil {
		return err
	}
	st := m.State()

	tokenIn := r.URL.Query().Get("token_in")
	quoteOut := r.URL.Query().Get("quote_out")

	var est *quote.SellEstimate
	switch {
	case tokenIn != "" && quoteOut == "":
		amount, err := parseAmount(tokenIn)
		if err != nil {
			return err
		}
		est, err = quote.Sell(st, amount)
		if err != nil {
			return err
		}
	case quoteOut != "" && tokenIn == "":
		amount, err := parseAmount(quoteOut)
		if err != nil {
			return err
		}
		est, err = quote.SellForOut(st, amount)
		if err != nil {
			return err
		}
	default:
		return revert.ErrZeroInput
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token_in":  est.TokenIn.Dec(),
		"fee":       est.Fee.Dec(),
		"quote_out": est.QuoteOutRaw.Dec(),
	})
	return nil
}
