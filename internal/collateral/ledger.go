package collateral

import (
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
)

var (
	// ErrOverCommitted means a lock would push totalLocked past the asset
	// balance actually held by the pool.
	ErrOverCommitted = errors.New("collateral: lock exceeds pool balance")

	// ErrBucketNotFound means an unlock referenced an expiration with no
	// active bucket. A bucket swept as expired is already-unlocked and
	// reported the same way; the caller must be told, not silently ignored.
	ErrBucketNotFound = errors.New("collateral: no lock bucket for expiration")

	// ErrInsufficientLocked means an unlock exceeds the tracked lock.
	ErrInsufficientLocked = errors.New("collateral: unlock exceeds locked amount")
)

// Bucket is a locked-collateral balance keyed by option expiration.
// At most one bucket exists per distinct expiration.
type Bucket struct {
	Expiration int64 // unix seconds
	Amount     sdkmath.LegacyDec
}

// SweepPlan is the computed-but-unapplied result of a sweep: the buckets
// whose expiration has passed and the total amount they would release.
// Operations validate against the plan before committing, so a failed
// operation leaves the ledger exactly as it was.
type SweepPlan struct {
	Expired  []Bucket
	Released sdkmath.LegacyDec
}

// Ledger tracks locked collateral in expiration-keyed buckets with a
// running total. Buckets live in a dense slice compacted by swap-with-last
// removal; an expiration index avoids per-call linear scans.
type Ledger struct {
	buckets []Bucket
	index   map[int64]int
	total   sdkmath.LegacyDec
}

func NewLedger() *Ledger {
	return &Ledger{
		index: make(map[int64]int),
		total: sdkmath.LegacyZeroDec(),
	}
}

// TotalLocked returns the running total across all active buckets.
func (l *Ledger) TotalLocked() sdkmath.LegacyDec {
	return l.total
}

// BucketCount returns the number of active buckets.
func (l *Ledger) BucketCount() int {
	return len(l.buckets)
}

// Buckets returns a copy of the active bucket set. Order is unspecified.
func (l *Ledger) Buckets() []Bucket {
	out := make([]Bucket, len(l.buckets))
	copy(out, l.buckets)
	return out
}

// LockedAt returns the locked amount for a specific expiration.
func (l *Ledger) LockedAt(expiration time.Time) sdkmath.LegacyDec {
	if i, ok := l.index[expiration.Unix()]; ok {
		return l.buckets[i].Amount
	}
	return sdkmath.LegacyZeroDec()
}

// PlanSweep scans the bucket set and returns, without mutating anything,
// every bucket whose expiration has strictly passed.
func (l *Ledger) PlanSweep(now time.Time) SweepPlan {
	plan := SweepPlan{Released: sdkmath.LegacyZeroDec()}
	cutoff := now.Unix()

	for _, b := range l.buckets {
		if b.Expiration < cutoff {
			plan.Expired = append(plan.Expired, b)
			plan.Released = plan.Released.Add(b.Amount)
		}
	}
	return plan
}

// Commit applies a previously computed sweep plan: each expired bucket is
// removed and its full amount subtracted from the running total.
func (l *Ledger) Commit(plan SweepPlan) {
	for _, b := range plan.Expired {
		if i, ok := l.index[b.Expiration]; ok {
			l.removeAt(i)
		}
	}
	l.total = l.total.Sub(plan.Released)
}

// Lock sweeps expired buckets, then reserves `amount` until `expiration`.
// `poolBalance` is the asset balance currently held by the pool; the new
// total may never exceed it. On success the applied sweep plan is returned
// so the caller can report the incidentally released locks.
func (l *Ledger) Lock(amount sdkmath.LegacyDec, expiration time.Time, poolBalance sdkmath.LegacyDec, now time.Time) (SweepPlan, error) {
	plan := l.PlanSweep(now)

	newTotal := l.total.Sub(plan.Released).Add(amount)
	if newTotal.GT(poolBalance) {
		return SweepPlan{}, ErrOverCommitted
	}

	l.Commit(plan)
	l.total = newTotal

	key := expiration.Unix()
	if i, ok := l.index[key]; ok {
		l.buckets[i].Amount = l.buckets[i].Amount.Add(amount)
	} else {
		l.buckets = append(l.buckets, Bucket{Expiration: key, Amount: amount})
		l.index[key] = len(l.buckets) - 1
	}

	return plan, nil
}

// Unlock sweeps expired buckets, then releases `amount` from the bucket
// matching `expiration`. The bucket-sum invariant is the source of truth:
// the release must fit both the running total and the matched bucket.
func (l *Ledger) Unlock(amount sdkmath.LegacyDec, expiration time.Time, now time.Time) (SweepPlan, error) {
	plan := l.PlanSweep(now)

	key := expiration.Unix()
	i, ok := l.index[key]
	if !ok || expiration.Unix() < now.Unix() {
		// Either never locked, or about to be swept as expired.
		return SweepPlan{}, ErrBucketNotFound
	}

	postSweepTotal := l.total.Sub(plan.Released)
	if amount.GT(postSweepTotal) || amount.GT(l.buckets[i].Amount) {
		return SweepPlan{}, ErrInsufficientLocked
	}

	l.Commit(plan)

	// Commit may have moved the target bucket.
	i = l.index[key]
	l.total = l.total.Sub(amount)
	l.buckets[i].Amount = l.buckets[i].Amount.Sub(amount)
	if l.buckets[i].Amount.IsZero() {
		l.removeAt(i)
	}

	return plan, nil
}

// removeAt deletes the bucket at index i using swap-with-last.
func (l *Ledger) removeAt(i int) {
	last := len(l.buckets) - 1
	delete(l.index, l.buckets[i].Expiration)

	if i != last {
		l.buckets[i] = l.buckets[last]
		l.index[l.buckets[i].Expiration] = i
	}
	l.buckets = l.buckets[:last]
}
