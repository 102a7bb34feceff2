package ledger

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// ClaimRegistry is a proportional-claim counter the pool mints and burns
// against. The pool runs two instances: the share class (transferable)
// and the postdated-withdraw class (soulbound to the withdrawing LP).
type ClaimRegistry interface {
	Mint(to uuid.UUID, amount sdkmath.LegacyDec) error
	Burn(from uuid.UUID, amount sdkmath.LegacyDec) error
	BalanceOf(account uuid.UUID) sdkmath.LegacyDec
	TotalSupply() sdkmath.LegacyDec
}

// ClaimToken is the in-memory reference ClaimRegistry.
type ClaimToken struct {
	mu           sync.Mutex
	name         string
	transferable bool
	supply       sdkmath.LegacyDec
	balances     map[uuid.UUID]sdkmath.LegacyDec
}

func NewClaimToken(name string, transferable bool) *ClaimToken {
	return &ClaimToken{
		name:         name,
		transferable: transferable,
		supply:       sdkmath.LegacyZeroDec(),
		balances:     make(map[uuid.UUID]sdkmath.LegacyDec),
	}
}

func (c *ClaimToken) Name() string       { return c.name }
func (c *ClaimToken) Transferable() bool { return c.transferable }

func (c *ClaimToken) TotalSupply() sdkmath.LegacyDec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supply
}

func (c *ClaimToken) BalanceOf(account uuid.UUID) sdkmath.LegacyDec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(account)
}

func (c *ClaimToken) balance(account uuid.UUID) sdkmath.LegacyDec {
	if bal, ok := c.balances[account]; ok {
		return bal
	}
	return sdkmath.LegacyZeroDec()
}

func (c *ClaimToken) Mint(to uuid.UUID, amount sdkmath.LegacyDec) error {
	if !amount.IsPositive() {
		return fmt.Errorf("mint %s: non-positive amount %s", c.name, amount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[to] = c.balance(to).Add(amount)
	c.supply = c.supply.Add(amount)
	return nil
}

func (c *ClaimToken) Burn(from uuid.UUID, amount sdkmath.LegacyDec) error {
	if !amount.IsPositive() {
		return fmt.Errorf("burn %s: non-positive amount %s", c.name, amount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bal := c.balance(from)
	if bal.LT(amount) {
		return fmt.Errorf("burn %s: account %s holds %s, need %s", c.name, from, bal, amount)
	}

	c.balances[from] = bal.Sub(amount)
	c.supply = c.supply.Sub(amount)
	if c.balances[from].IsZero() {
		delete(c.balances, from)
	}
	return nil
}

// Transfer moves claims between holders. The postdated-withdraw class is
// non-transferable and always rejects.
func (c *ClaimToken) Transfer(from, to uuid.UUID, amount sdkmath.LegacyDec) error {
	if !c.transferable {
		return fmt.Errorf("transfer %s: claim class is non-transferable", c.name)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("transfer %s: non-positive amount %s", c.name, amount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bal := c.balance(from)
	if bal.LT(amount) {
		return fmt.Errorf("transfer %s: account %s holds %s, need %s", c.name, from, bal, amount)
	}

	c.balances[from] = bal.Sub(amount)
	c.balances[to] = c.balance(to).Add(amount)
	if c.balances[from].IsZero() {
		delete(c.balances, from)
	}
	return nil
}
