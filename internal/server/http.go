package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OptionPool/internal/collateral"
	"OptionPool/internal/ledger"
	"OptionPool/internal/observability"
	"OptionPool/internal/pool"
	"OptionPool/internal/pricing"
)

// Defaults fill request fields the engine usually supplies: the treasury
// account and the protocol fee rate.
type Defaults struct {
	Treasury        uuid.UUID
	ProtocolFeeRate sdkmath.LegacyDec
}

// HTTPServer exposes the pool's operations as a JSON API. Amounts travel
// as decimal strings; timestamps as RFC3339.
type HTTPServer struct {
	pool     *pool.Pool
	asset    *ledger.Token
	oracle   *pricing.StaticOracle
	pricer   pricing.Pricer
	health   *observability.HealthChecker
	defaults Defaults
	log      zerolog.Logger
}

func NewHTTPServer(p *pool.Pool, asset *ledger.Token, oracle *pricing.StaticOracle, pricer pricing.Pricer, health *observability.HealthChecker, defaults Defaults, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		pool:     p,
		asset:    asset,
		oracle:   oracle,
		pricer:   pricer,
		health:   health,
		defaults: defaults,
		log:      log,
	}
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/deposit", s.handleDeposit)
	mux.HandleFunc("POST /v1/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /v1/withdraw/postdated", s.handlePostdatedWithdraw)
	mux.HandleFunc("POST /v1/lock", s.handleLock)
	mux.HandleFunc("POST /v1/unlock", s.handleUnlock)
	mux.HandleFunc("POST /v1/premium/receive", s.handleReceivePremium)
	mux.HandleFunc("POST /v1/premium/pay", s.handlePayPremium)
	mux.HandleFunc("GET /v1/fee", s.handleQuoteFee)
	mux.HandleFunc("GET /v1/quote", s.handleQuoteOption)
	mux.HandleFunc("POST /v1/oracle", s.handleOracleUpdate)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/faucet", s.handleFaucet)
	mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)
	return mux
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *HTTPServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, ok := s.parseUUID(w, req.Account, "account")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	minted, err := s.pool.Deposit(account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"shares_minted": minted.String()})
}

type withdrawRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *HTTPServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, ok := s.parseUUID(w, req.Account, "account")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	paid, postdated, err := s.pool.Withdraw(account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"paid":             paid.String(),
		"postdated_minted": postdated.String(),
	})
}

func (s *HTTPServer) handlePostdatedWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, ok := s.parseUUID(w, req.Account, "account")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	paid, err := s.pool.PostdatedWithdraw(account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

type lockRequest struct {
	Caller     string    `json:"caller"`
	Amount     string    `json:"amount"`
	Expiration time.Time `json:"expiration"`
}

func (s *HTTPServer) handleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, ok := s.parseUUID(w, req.Caller, "caller")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	if err := s.pool.Lock(caller, amount, req.Expiration); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"total_locked": s.pool.TotalLocked().String(),
	})
}

func (s *HTTPServer) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, ok := s.parseUUID(w, req.Caller, "caller")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	if err := s.pool.Unlock(caller, amount, req.Expiration); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"total_locked": s.pool.TotalLocked().String(),
	})
}

type premiumRequest struct {
	Caller          string    `json:"caller"`
	Counterparty    string    `json:"counterparty"`
	Amount          string    `json:"amount"`
	Collateral      string    `json:"collateral"`
	Expiration      time.Time `json:"expiration"`
	UnitPrice       string    `json:"unit_price"`
	Treasury        string    `json:"treasury"`
	ProtocolFeeRate string    `json:"protocol_fee_rate"`
	MaxPayment      string    `json:"max_payment,omitempty"`
	MinPayment      string    `json:"min_payment,omitempty"`
}

func (s *HTTPServer) handleReceivePremium(w http.ResponseWriter, r *http.Request) {
	var req premiumRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, ok := s.parseUUID(w, req.Caller, "caller")
	if !ok {
		return
	}
	buyer, ok := s.parseUUID(w, req.Counterparty, "counterparty")
	if !ok {
		return
	}
	treasury, ok := s.treasuryOrDefault(w, req.Treasury)
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}
	collateralAmt, ok := s.parseDec(w, req.Collateral, "collateral")
	if !ok {
		return
	}
	unitPrice, ok := s.parseDec(w, req.UnitPrice, "unit_price")
	if !ok {
		return
	}
	feeRate, ok := s.feeRateOrDefault(w, req.ProtocolFeeRate)
	if !ok {
		return
	}
	maxPayment, ok := s.parseDec(w, req.MaxPayment, "max_payment")
	if !ok {
		return
	}

	premium, err := s.pool.ReceivePremium(caller, buyer, amount, collateralAmt,
		req.Expiration, unitPrice, treasury, feeRate, maxPayment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"premium": premium.String()})
}

func (s *HTTPServer) handlePayPremium(w http.ResponseWriter, r *http.Request) {
	var req premiumRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, ok := s.parseUUID(w, req.Caller, "caller")
	if !ok {
		return
	}
	seller, ok := s.parseUUID(w, req.Counterparty, "counterparty")
	if !ok {
		return
	}
	treasury, ok := s.treasuryOrDefault(w, req.Treasury)
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}
	collateralAmt, ok := s.parseDec(w, req.Collateral, "collateral")
	if !ok {
		return
	}
	unitPrice, ok := s.parseDec(w, req.UnitPrice, "unit_price")
	if !ok {
		return
	}
	feeRate, ok := s.feeRateOrDefault(w, req.ProtocolFeeRate)
	if !ok {
		return
	}
	minPayment, ok := s.parseDec(w, req.MinPayment, "min_payment")
	if !ok {
		return
	}

	payout, err := s.pool.PayPremium(caller, seller, amount, collateralAmt,
		req.Expiration, unitPrice, treasury, feeRate, minPayment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"payout": payout.String()})
}

func (s *HTTPServer) handleQuoteFee(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("additional_lock")
	if raw == "" {
		raw = "0"
	}
	additional, ok := s.parseDec(w, raw, "additional_lock")
	if !ok {
		return
	}

	rate, err := s.pool.QuoteFee(additional)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"fee_rate": rate.String()})
}

func (s *HTTPServer) handleQuoteOption(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strike, ok := s.parseDec(w, q.Get("strike"), "strike")
	if !ok {
		return
	}
	expiration, err := time.Parse(time.RFC3339, q.Get("expiration"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expiration"})
		return
	}
	kind := pricing.Call
	if q.Get("kind") == "put" {
		kind = pricing.Put
	}

	price, err := s.pricer.Price(pricing.Option{
		Kind:       kind,
		Strike:     strike,
		Expiration: expiration,
	}, time.Now(), s.oracle)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"unit_price": price.String()})
}

type oracleRequest struct {
	Price        string `json:"price"`
	Volatility   string `json:"volatility"`
	RiskFreeRate string `json:"risk_free_rate"`
}

func (s *HTTPServer) handleOracleUpdate(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	if !s.decode(w, r, &req) {
		return
	}
	price, ok := s.parseDec(w, req.Price, "price")
	if !ok {
		return
	}
	vol, ok := s.parseDec(w, req.Volatility, "volatility")
	if !ok {
		return
	}
	rate, ok := s.parseDec(w, req.RiskFreeRate, "risk_free_rate")
	if !ok {
		return
	}

	s.oracle.Update(pricing.MarketData{
		Price:        price,
		Volatility:   vol,
		RiskFreeRate: rate,
		UpdatedAt:    time.Now(),
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	share, withdraw := s.pool.Supplies()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"pool":            s.pool.Account().String(),
		"balance":         s.pool.Balance().String(),
		"total_locked":    s.pool.TotalLocked().String(),
		"share_supply":    share.String(),
		"withdraw_supply": withdraw.String(),
	})
}

type faucetRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// handleFaucet mints collateral to an account on the in-memory asset
// ledger. Development convenience only; disabled when the pool runs
// against an external ledger.
func (s *HTTPServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if s.asset == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "faucet disabled"})
		return
	}
	var req faucetRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, ok := s.parseUUID(w, req.Account, "account")
	if !ok {
		return
	}
	amount, ok := s.parseDec(w, req.Amount, "amount")
	if !ok {
		return
	}

	if err := s.asset.Mint(account, amount); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"balance": s.asset.BalanceOf(account).String(),
	})
}

// --- helpers ---

func (s *HTTPServer) treasuryOrDefault(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return s.defaults.Treasury, true
	}
	return s.parseUUID(w, raw, "treasury")
}

func (s *HTTPServer) feeRateOrDefault(w http.ResponseWriter, raw string) (sdkmath.LegacyDec, bool) {
	if raw == "" {
		return s.defaults.ProtocolFeeRate, true
	}
	return s.parseDec(w, raw, "protocol_fee_rate")
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	return true
}

func (s *HTTPServer) parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + field})
		return uuid.Nil, false
	}
	return id, true
}

func (s *HTTPServer) parseDec(w http.ResponseWriter, raw, field string) (sdkmath.LegacyDec, bool) {
	d, err := sdkmath.LegacyNewDecFromStr(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + field})
		return sdkmath.LegacyDec{}, false
	}
	return d, true
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the pool error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrInvalidConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, pool.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, collateral.ErrBucketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pool.ErrNoFundsAvailable),
		errors.Is(err, pool.ErrSlippageExceeded),
		errors.Is(err, pool.ErrUtilizationTooHigh),
		errors.Is(err, collateral.ErrOverCommitted),
		errors.Is(err, collateral.ErrInsufficientLocked):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrWithdrawalNotYetAllowed):
		status = http.StatusTooEarly
	case errors.Is(err, pool.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, pricing.ErrNoMarketData),
		errors.Is(err, pricing.ErrExpired):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
