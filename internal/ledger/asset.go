package ledger

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// PoolDecimals is the only collateral precision the engine accepts.
// All amounts in the system are 18-decimal fixed point.
const PoolDecimals uint8 = 18

// AssetLedger is the external account-balance ledger the pool settles
// against. The pool is one account holder among many; it never sees
// transfer mechanics beyond debit/credit by amount.
type AssetLedger interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(account uuid.UUID) sdkmath.LegacyDec

	// Transfer debits `from` and credits `to`. Fails if `from` holds
	// less than `amount`.
	Transfer(from, to uuid.UUID, amount sdkmath.LegacyDec) error
}

// Token is the in-memory reference AssetLedger used by the service binary
// and the test suite.
type Token struct {
	mu       sync.Mutex
	symbol   string
	decimals uint8
	balances map[uuid.UUID]sdkmath.LegacyDec
}

func NewToken(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[uuid.UUID]sdkmath.LegacyDec),
	}
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) BalanceOf(account uuid.UUID) sdkmath.LegacyDec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(account)
}

func (t *Token) balance(account uuid.UUID) sdkmath.LegacyDec {
	if bal, ok := t.balances[account]; ok {
		return bal
	}
	return sdkmath.LegacyZeroDec()
}

// Mint credits `to` out of thin air. Faucet for bootstrapping and tests;
// a real deployment fronts an on-chain token instead.
func (t *Token) Mint(to uuid.UUID, amount sdkmath.LegacyDec) error {
	if !amount.IsPositive() {
		return fmt.Errorf("mint %s: non-positive amount %s", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balance(to).Add(amount)
	return nil
}

func (t *Token) Transfer(from, to uuid.UUID, amount sdkmath.LegacyDec) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer %s: non-positive amount %s", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	fromBal := t.balance(from)
	if fromBal.LT(amount) {
		return fmt.Errorf("transfer %s: account %s has %s, need %s",
			t.symbol, from, fromBal, amount)
	}

	t.balances[from] = fromBal.Sub(amount)
	t.balances[to] = t.balance(to).Add(amount)

	if t.balances[from].IsZero() {
		delete(t.balances, from)
	}
	return nil
}
