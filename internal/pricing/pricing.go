package pricing

import (
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Kind distinguishes calls from puts.
type Kind int

const (
	Call Kind = iota
	Put
)

// Option describes the instrument being quoted.
type Option struct {
	Kind       Kind
	Strike     sdkmath.LegacyDec
	Expiration time.Time
}

// MarketData is the oracle snapshot a pricer consumes.
type MarketData struct {
	Price        sdkmath.LegacyDec
	Volatility   sdkmath.LegacyDec // annualized, e.g. 0.8 for 80%
	RiskFreeRate sdkmath.LegacyDec
	UpdatedAt    time.Time
}

// Oracle provides current market data for the underlying.
type Oracle interface {
	Latest() (MarketData, error)
}

// Pricer quotes a unit price for an option.
type Pricer interface {
	Price(opt Option, now time.Time, oracle Oracle) (sdkmath.LegacyDec, error)
}

var (
	ErrNoMarketData = errors.New("pricing: no market data")
	ErrExpired      = errors.New("pricing: option already expired")
)

// StaticOracle holds the last pushed market data. The trading engine
// updates it; the pool's quote endpoint reads it.
type StaticOracle struct {
	mu   sync.RWMutex
	data MarketData
	set  bool
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{}
}

func (o *StaticOracle) Update(data MarketData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = data
	o.set = true
}

func (o *StaticOracle) Latest() (MarketData, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.set {
		return MarketData{}, ErrNoMarketData
	}
	return o.data, nil
}

const secondsPerYear = 365 * 24 * 3600

// IntrinsicPricer quotes intrinsic value plus a Brenner-Subrahmanyam time
// value term (0.4 * S * sigma * sqrt(T)). A rough reference quote for
// testing and manual flows; production quoting comes from the trading
// engine.
type IntrinsicPricer struct{}

func (IntrinsicPricer) Price(opt Option, now time.Time, oracle Oracle) (sdkmath.LegacyDec, error) {
	data, err := oracle.Latest()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !opt.Expiration.After(now) {
		return sdkmath.LegacyDec{}, ErrExpired
	}

	var intrinsic sdkmath.LegacyDec
	switch opt.Kind {
	case Put:
		intrinsic = opt.Strike.Sub(data.Price)
	default:
		intrinsic = data.Price.Sub(opt.Strike)
	}
	if intrinsic.IsNegative() {
		intrinsic = sdkmath.LegacyZeroDec()
	}

	yearFrac := sdkmath.LegacyNewDec(int64(opt.Expiration.Sub(now) / time.Second)).
		QuoInt64(secondsPerYear)
	sqrtT, err := yearFrac.ApproxSqrt()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}

	coeff := sdkmath.LegacyNewDecWithPrec(4, 1)
	timeValue := coeff.Mul(data.Price).Mul(data.Volatility).Mul(sqrtT)

	return intrinsic.Add(timeValue), nil
}
