package pool

import (
	sdkmath "cosmossdk.io/math"
)

// feeDivisor scales the utilization ratio into a rate: locked'/unlocked/100.
const feeDivisor = 100

// QuoteFee returns the utilization-sensitive fee rate for locking
// `additionalLock` more collateral. Pure: no state is mutated, so it is
// safe to call repeatedly for quoting. The quote reflects post-sweep
// utilization — expired buckets are planned out but not removed.
//
// The rate is locked'/unlocked/100 and grows super-linearly as utilization
// approaches 100%, throttling new locking demand as liquidity shrinks.
// 100% utilization is disallowed outright: the denominator must never
// reach zero.
func (p *Pool) QuoteFee(additionalLock sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if additionalLock.IsNil() || additionalLock.IsNegative() {
		return sdkmath.LegacyDec{}, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return sdkmath.LegacyDec{}, ErrNotInitialized
	}

	balance := p.asset.BalanceOf(p.account)
	plan := p.locks.PlanSweep(p.clock())
	lockedAfter := p.locks.TotalLocked().Sub(plan.Released).Add(additionalLock)

	rate, err := feeRate(lockedAfter, balance)
	if err != nil {
		if p.metrics != nil {
			p.metrics.FeeQuoteRejected.Inc()
		}
		return sdkmath.LegacyDec{}, err
	}

	if p.metrics != nil {
		p.metrics.PoolFeeRate.Set(decFloat(rate))
	}
	return rate, nil
}

// feeRate computes locked/unlocked/100 for a prospective locked amount
// against the balance actually held.
func feeRate(locked, balance sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if locked.GTE(balance) {
		return sdkmath.LegacyDec{}, ErrUtilizationTooHigh
	}
	unlocked := balance.Sub(locked)
	return locked.QuoTruncate(unlocked).QuoInt64(feeDivisor), nil
}
