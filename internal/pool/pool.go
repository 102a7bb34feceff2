package pool

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OptionPool/internal/collateral"
	"OptionPool/internal/event"
	"OptionPool/internal/ledger"
	"OptionPool/internal/observability"
)

// PostdatedLockup is the cooldown before a postdated-withdraw claim can be
// redeemed. Reset on every postdated mint to the claimant.
const PostdatedLockup = 15 * 24 * time.Hour

var (
	// Treasury cut fractions for the two settlement directions. The
	// asymmetric 30%/10% split is the protocol-revenue split between
	// buy-side and sell-side flow and must be preserved exactly.
	receiveTreasuryShare = sdkmath.LegacyNewDecWithPrec(3, 1) // 0.3
	payTreasuryShare     = sdkmath.LegacyNewDecWithPrec(1, 1) // 0.1
)

// Pool is the liquidity-pool coordinator: it holds a single collateral
// asset for many LPs, reserves portions of it against open option
// positions, charges a utilization-sensitive fee, and settles premiums
// between traders, the pool, and the protocol treasury.
//
// All operations execute as indivisible transactions under one mutex (the
// single-writer discipline): each call computes against a consistent
// snapshot taken at entry and either applies completely or leaves state
// untouched. Collaborator implementations never receive the pool handle,
// so reentrant calls cannot occur mid-operation.
type Pool struct {
	mu sync.Mutex

	log     zerolog.Logger
	metrics *observability.Metrics
	clock   func() time.Time

	initialized bool
	account     uuid.UUID
	owner       uuid.UUID
	asset       ledger.AssetLedger
	shares      ledger.ClaimRegistry
	withdraws   ledger.ClaimRegistry
	locks       *collateral.Ledger

	// Earliest instant each address may execute a postdated withdrawal.
	// Entries are deleted once the address's postdated balance is exhausted.
	allowance map[uuid.UUID]time.Time

	sequence    int64
	persistChan chan<- event.Output
	publishChan chan<- event.Output
}

// NewPool creates an uninitialized pool. The persist channel receives a
// blocking send per event (backpressure: the pool stalls rather than lose
// an event); the publish channel is best-effort and drops when full.
// Either channel may be nil.
func NewPool(log zerolog.Logger, metrics *observability.Metrics, persistChan, publishChan chan<- event.Output) *Pool {
	return &Pool{
		log:         log,
		metrics:     metrics,
		clock:       time.Now,
		allowance:   make(map[uuid.UUID]time.Time),
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// SetClock replaces the time source. Test hook; call before Init.
func (p *Pool) SetClock(clock func() time.Time) {
	p.clock = clock
}

// Init binds the pool to its collateral asset, owner credential, and the
// two claim registries. Exactly once; the factory that created the pool is
// the expected caller.
func (p *Pool) Init(account, owner uuid.UUID, asset ledger.AssetLedger, shares, withdraws ledger.ClaimRegistry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("%w: already initialized", ErrInvalidConfiguration)
	}
	if asset.Decimals() != ledger.PoolDecimals {
		return fmt.Errorf("%w: asset %s has %d decimals, pool requires %d",
			ErrInvalidConfiguration, asset.Symbol(), asset.Decimals(), ledger.PoolDecimals)
	}

	p.account = account
	p.owner = owner
	p.asset = asset
	p.shares = shares
	p.withdraws = withdraws
	p.locks = collateral.NewLedger()
	p.initialized = true

	p.emit(event.TypePoolInitialized, event.PoolInitialized{
		Pool:  account,
		Owner: owner,
		Asset: asset.Symbol(),
	})

	p.log.Info().
		Str("pool", account.String()).
		Str("owner", owner.String()).
		Str("asset", asset.Symbol()).
		Msg("pool initialized")
	return nil
}

// ResumeSequence sets the event sequence counter to the last durably
// written sequence. Called once on startup, before Init.
func (p *Pool) ResumeSequence(seq int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq > p.sequence {
		p.sequence = seq
	}
}

// Account returns the pool's account on the asset ledger.
func (p *Pool) Account() uuid.UUID { return p.account }

// TotalLocked returns collateral currently reserved against open positions.
func (p *Pool) TotalLocked() sdkmath.LegacyDec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyZeroDec()
	}
	return p.locks.TotalLocked()
}

// Balance returns the asset balance held by the pool.
func (p *Pool) Balance() sdkmath.LegacyDec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyZeroDec()
	}
	return p.asset.BalanceOf(p.account)
}

// Supplies returns the outstanding share and postdated-withdraw claims.
func (p *Pool) Supplies() (share, withdraw sdkmath.LegacyDec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec()
	}
	return p.shares.TotalSupply(), p.withdraws.TotalSupply()
}

// Deposit debits `amount` of collateral from the LP and mints share claims
// keeping each share's redemption value constant: 1:1 on bootstrap,
// amount * claims/balance afterwards.
func (p *Pool) Deposit(from uuid.UUID, amount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	const op = "deposit"
	start := time.Now()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyDec{}, p.reject(op, ErrInvalidAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNotInitialized)
	}

	balance := p.asset.BalanceOf(p.account)
	claims := p.shares.TotalSupply().Add(p.withdraws.TotalSupply())

	// Bootstrap: first deposit (or a pool whose claims were fully redeemed)
	// mints 1:1.
	var minted sdkmath.LegacyDec
	if balance.IsZero() || claims.IsZero() {
		minted = amount
	} else {
		minted = amount.Mul(claims).QuoTruncate(balance)
	}
	if !minted.IsPositive() {
		return sdkmath.LegacyDec{}, p.reject(op, fmt.Errorf("%w: deposit too small to mint shares", ErrInvalidAmount))
	}

	if err := p.asset.Transfer(from, p.account, amount); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if err := p.shares.Mint(from, minted); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	newBalance := p.asset.BalanceOf(p.account)
	p.emit(event.TypeDeposited, event.Deposited{
		Account:     from,
		Amount:      amount,
		SharesMint:  minted,
		PoolBalance: newBalance,
		ShareSupply: p.shares.TotalSupply(),
	})
	p.applied(op, start)

	p.log.Info().
		Str("account", from.String()).
		Str("amount", amount.String()).
		Str("minted", minted.String()).
		Msg("deposit")
	return minted, nil
}

// Withdraw burns `amount` share claims and pays the claimant's
// proportional cut of the unlocked balance immediately. The proportional
// cut of still-locked balance, if any, is minted as postdated-withdraw
// claims redeemable after the 15-day cooldown.
func (p *Pool) Withdraw(to uuid.UUID, amount sdkmath.LegacyDec) (paid, postdated sdkmath.LegacyDec, err error) {
	const op = "withdraw"
	start := time.Now()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, ErrInvalidAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, ErrNotInitialized)
	}

	if p.shares.BalanceOf(to).LT(amount) {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op,
			fmt.Errorf("%w: share balance below %s", ErrNoFundsAvailable, amount))
	}

	now := p.clock()
	plan := p.locks.PlanSweep(now)
	balance := p.asset.BalanceOf(p.account)
	locked := p.locks.TotalLocked().Sub(plan.Released)
	unlocked := balance.Sub(locked)

	// Claim supply snapshot at entry divides both legs.
	claims := p.shares.TotalSupply().Add(p.withdraws.TotalSupply())

	if !unlocked.IsPositive() {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}

	// paid <= unlocked always holds while amount <= claims; the bound
	// stops a payout if the claim books ever disagree with the ledger.
	paid = unlocked.Mul(amount).QuoTruncate(claims)
	if paid.GT(unlocked) {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}
	postdated = locked.Mul(amount).QuoTruncate(claims)

	// All checks passed; apply.
	p.commitSweep(plan)
	if err := p.shares.Burn(to, amount); err != nil {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if paid.IsPositive() {
		if err := p.asset.Transfer(p.account, to, paid); err != nil {
			return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, err)
		}
	}

	var allowedAt *time.Time
	if postdated.IsPositive() {
		if err := p.withdraws.Mint(to, postdated); err != nil {
			return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, p.reject(op, err)
		}
		at := now.Add(PostdatedLockup)
		p.allowance[to] = at
		allowedAt = &at
	}

	p.emit(event.TypeWithdrawn, event.Withdrawn{
		Account:          to,
		SharesBurned:     amount,
		Paid:             paid,
		PostdatedMinted:  postdated,
		PostdatedAllowed: allowedAt,
		PoolBalance:      p.asset.BalanceOf(p.account),
	})
	p.applied(op, start)

	p.log.Info().
		Str("account", to.String()).
		Str("burned", amount.String()).
		Str("paid", paid.String()).
		Str("postdated", postdated.String()).
		Msg("withdraw")
	return paid, postdated, nil
}

// PostdatedWithdraw redeems postdated-withdraw claims after the cooldown.
// Redemption references the total balance, not only the unlocked part:
// this class represents funds expected to eventually free up. The payout
// itself still comes only from unlocked balance; reserved collateral is
// never touched.
func (p *Pool) PostdatedWithdraw(to uuid.UUID, amount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	const op = "postdated_withdraw"
	start := time.Now()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyDec{}, p.reject(op, ErrInvalidAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNotInitialized)
	}

	now := p.clock()
	if allowedAt, ok := p.allowance[to]; ok && !now.After(allowedAt) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrWithdrawalNotYetAllowed)
	}

	if p.withdraws.BalanceOf(to).LT(amount) {
		return sdkmath.LegacyDec{}, p.reject(op,
			fmt.Errorf("%w: postdated balance below %s", ErrNoFundsAvailable, amount))
	}

	plan := p.locks.PlanSweep(now)
	balance := p.asset.BalanceOf(p.account)
	locked := p.locks.TotalLocked().Sub(plan.Released)
	claims := p.shares.TotalSupply().Add(p.withdraws.TotalSupply())

	paid := balance.Mul(amount).QuoTruncate(claims)
	if !paid.IsPositive() {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}
	// Locked collateral backs open positions; the claimant waits for the
	// buckets to expire rather than redeeming out of reserved funds.
	if paid.GT(balance.Sub(locked)) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}

	p.commitSweep(plan)
	if err := p.withdraws.Burn(to, amount); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if err := p.asset.Transfer(p.account, to, paid); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if p.withdraws.BalanceOf(to).IsZero() {
		delete(p.allowance, to)
	}

	p.emit(event.TypePostdatedWithdrawn, event.PostdatedWithdrawn{
		Account:      to,
		ClaimsBurned: amount,
		Paid:         paid,
		PoolBalance:  p.asset.BalanceOf(p.account),
	})
	p.applied(op, start)

	p.log.Info().
		Str("account", to.String()).
		Str("burned", amount.String()).
		Str("paid", paid.String()).
		Msg("postdated withdraw")
	return paid, nil
}

// Lock reserves collateral until `expiration`. Owner-only: the trading
// engine is the sole authorized caller.
func (p *Pool) Lock(caller uuid.UUID, amount sdkmath.LegacyDec, expiration time.Time) error {
	const op = "lock"
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.authorize(caller); err != nil {
		return p.reject(op, err)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return p.reject(op, ErrInvalidAmount)
	}

	balance := p.asset.BalanceOf(p.account)
	plan, err := p.locks.Lock(amount, expiration, balance, p.clock())
	if err != nil {
		return p.reject(op, err)
	}

	p.emitSweep(plan)
	p.emit(event.TypeLocked, event.Locked{
		Amount:      amount,
		Expiration:  expiration,
		TotalLocked: p.locks.TotalLocked(),
	})
	p.applied(op, start)
	return nil
}

// Unlock releases collateral locked for `expiration`. Owner-only.
// An already-swept bucket reports ErrBucketNotFound: the collateral is
// already free, but the caller must learn its unlock did nothing.
func (p *Pool) Unlock(caller uuid.UUID, amount sdkmath.LegacyDec, expiration time.Time) error {
	const op = "unlock"
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.authorize(caller); err != nil {
		return p.reject(op, err)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return p.reject(op, ErrInvalidAmount)
	}

	plan, err := p.locks.Unlock(amount, expiration, p.clock())
	if err != nil {
		return p.reject(op, err)
	}

	p.emitSweep(plan)
	p.emit(event.TypeUnlocked, event.Unlocked{
		Amount:      amount,
		Expiration:  expiration,
		TotalLocked: p.locks.TotalLocked(),
	})
	p.applied(op, start)
	return nil
}

// ReceivePremium settles a buy: the buyer pays premium plus protocol fee,
// split between treasury (30% of the fee) and the pool, and the written
// option's collateral is locked until expiration. Owner-only.
func (p *Pool) ReceivePremium(
	caller, buyer uuid.UUID,
	amount, collateralAmount sdkmath.LegacyDec,
	expiration time.Time,
	unitPrice sdkmath.LegacyDec,
	treasury uuid.UUID,
	protocolFeeRate, maxPayment sdkmath.LegacyDec,
) (sdkmath.LegacyDec, error) {
	const op = "receive_premium"
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.authorize(caller); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if err := validAmounts(amount, collateralAmount, unitPrice); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	now := p.clock()
	plan := p.locks.PlanSweep(now)
	balance := p.asset.BalanceOf(p.account)
	lockedAfter := p.locks.TotalLocked().Sub(plan.Released).Add(collateralAmount)

	poolFee, err := feeRate(lockedAfter, balance)
	if err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	premium := unitPrice.Mul(sdkmath.LegacyOneDec().Add(poolFee)).Mul(amount)
	totalFee := premium.Mul(protocolFeeRate)
	required := premium.Add(totalFee)
	if required.GT(maxPayment) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrSlippageExceeded)
	}

	treasuryCut := totalFee.Mul(receiveTreasuryShare)
	poolCut := premium.Add(totalFee).Sub(treasuryCut)

	if p.asset.BalanceOf(buyer).LT(required) {
		return sdkmath.LegacyDec{}, p.reject(op,
			fmt.Errorf("buyer balance below required payment %s", required))
	}

	// Funds arrive before the lock, so the lock is validated against the
	// post-payment balance.
	if lockedAfter.GT(balance.Add(poolCut)) {
		return sdkmath.LegacyDec{}, p.reject(op, collateral.ErrOverCommitted)
	}

	// All checks passed; apply.
	if treasuryCut.IsPositive() {
		if err := p.asset.Transfer(buyer, treasury, treasuryCut); err != nil {
			return sdkmath.LegacyDec{}, p.reject(op, err)
		}
	}
	if err := p.asset.Transfer(buyer, p.account, poolCut); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	lockPlan, err := p.locks.Lock(collateralAmount, expiration, p.asset.BalanceOf(p.account), now)
	if err != nil {
		// Unreachable given the pre-checks above; surface loudly if not.
		p.log.Error().Err(err).Msg("lock failed after premium transfer")
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	p.emitSweep(lockPlan)
	p.emit(event.TypeFeeCollected, event.FeeCollected{
		Payer:       buyer,
		Treasury:    treasury,
		PoolCut:     totalFee.Sub(treasuryCut),
		TreasuryCut: treasuryCut,
	})
	p.emit(event.TypeLocked, event.Locked{
		Amount:      collateralAmount,
		Expiration:  expiration,
		TotalLocked: p.locks.TotalLocked(),
	})
	p.emit(event.TypePremiumReceived, event.PremiumReceived{
		Buyer:       buyer,
		Amount:      amount,
		Premium:     premium,
		PoolFeeRate: poolFee,
		Collateral:  collateralAmount,
		Expiration:  expiration,
		PoolBalance: p.asset.BalanceOf(p.account),
	})
	if p.metrics != nil {
		p.metrics.TreasuryFeesPaid.Inc()
		p.metrics.PoolFeeRate.Set(decFloat(poolFee))
	}
	p.applied(op, start)

	p.log.Info().
		Str("buyer", buyer.String()).
		Str("premium", premium.String()).
		Str("collateral", collateralAmount.String()).
		Time("expiration", expiration).
		Msg("premium received")
	return premium, nil
}

// PayPremium settles a sell: the pool pays the seller premium net of the
// protocol fee (treasury keeps 10% of the fee, the rest of the fee stays
// in the pool) and unlocks the position's collateral. Owner-only.
func (p *Pool) PayPremium(
	caller, seller uuid.UUID,
	amount, collateralAmount sdkmath.LegacyDec,
	expiration time.Time,
	unitPrice sdkmath.LegacyDec,
	treasury uuid.UUID,
	protocolFeeRate, minPayment sdkmath.LegacyDec,
) (sdkmath.LegacyDec, error) {
	const op = "pay_premium"
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.authorize(caller); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}
	if err := validAmounts(amount, collateralAmount, unitPrice); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	premium := unitPrice.Mul(amount)
	totalFee := premium.Mul(protocolFeeRate)
	if premium.Sub(totalFee).LT(minPayment) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrSlippageExceeded)
	}

	treasuryCut := totalFee.Mul(payTreasuryShare)
	sellerCut := premium.Sub(totalFee).Add(treasuryCut)
	outflow := treasuryCut.Add(sellerCut)

	now := p.clock()
	plan := p.locks.PlanSweep(now)
	balance := p.asset.BalanceOf(p.account)
	if balance.LT(outflow) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}

	// The payout must not strand locked collateral above the remaining
	// balance.
	lockedAfter := p.locks.TotalLocked().Sub(plan.Released).Sub(collateralAmount)
	if lockedAfter.GT(balance.Sub(outflow)) {
		return sdkmath.LegacyDec{}, p.reject(op, ErrNoFundsAvailable)
	}

	unlockPlan, err := p.locks.Unlock(collateralAmount, expiration, now)
	if err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	if treasuryCut.IsPositive() {
		if err := p.asset.Transfer(p.account, treasury, treasuryCut); err != nil {
			return sdkmath.LegacyDec{}, p.reject(op, err)
		}
	}
	if err := p.asset.Transfer(p.account, seller, sellerCut); err != nil {
		return sdkmath.LegacyDec{}, p.reject(op, err)
	}

	p.emitSweep(unlockPlan)
	p.emit(event.TypeUnlocked, event.Unlocked{
		Amount:      collateralAmount,
		Expiration:  expiration,
		TotalLocked: p.locks.TotalLocked(),
	})
	p.emit(event.TypeFeeCollected, event.FeeCollected{
		Payer:       p.account,
		Treasury:    treasury,
		PoolCut:     totalFee.Sub(treasuryCut),
		TreasuryCut: treasuryCut,
	})
	p.emit(event.TypePremiumPaid, event.PremiumPaid{
		Seller:      seller,
		Amount:      amount,
		Payout:      sellerCut,
		Collateral:  collateralAmount,
		Expiration:  expiration,
		PoolBalance: p.asset.BalanceOf(p.account),
	})
	if p.metrics != nil {
		p.metrics.TreasuryFeesPaid.Inc()
	}
	p.applied(op, start)

	p.log.Info().
		Str("seller", seller.String()).
		Str("payout", sellerCut.String()).
		Str("collateral", collateralAmount.String()).
		Time("expiration", expiration).
		Msg("premium paid")
	return sellerCut, nil
}

// --- internals ---

func (p *Pool) authorize(caller uuid.UUID) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if caller != p.owner {
		return ErrUnauthorized
	}
	return nil
}

func validAmounts(amounts ...sdkmath.LegacyDec) error {
	for _, a := range amounts {
		if a.IsNil() || !a.IsPositive() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// commitSweep applies a sweep plan and emits one Unlocked notification per
// expired bucket.
func (p *Pool) commitSweep(plan collateral.SweepPlan) {
	if len(plan.Expired) == 0 {
		return
	}
	p.locks.Commit(plan)
	p.emitExpired(plan)
}

// emitSweep reports an already-applied sweep plan.
func (p *Pool) emitSweep(plan collateral.SweepPlan) {
	if len(plan.Expired) == 0 {
		return
	}
	p.emitExpired(plan)
}

func (p *Pool) emitExpired(plan collateral.SweepPlan) {
	for _, b := range plan.Expired {
		p.emit(event.TypeUnlocked, event.Unlocked{
			Amount:      b.Amount,
			Expiration:  time.Unix(b.Expiration, 0).UTC(),
			Expired:     true,
			TotalLocked: p.locks.TotalLocked(),
		})
	}
	if p.metrics != nil {
		p.metrics.BucketsSwept.Add(float64(len(plan.Expired)))
	}
}

// emit assigns the next sequence and fans the event out: blocking to the
// persist channel, best-effort to the publish channel.
func (p *Pool) emit(t event.Type, payload any) {
	p.sequence++

	symbol := ""
	if p.asset != nil {
		symbol = p.asset.Symbol()
	}

	out := event.Output{Envelope: event.Envelope{
		Sequence:  p.sequence,
		Type:      t,
		Asset:     symbol,
		Timestamp: p.clock(),
		Payload:   payload,
	}}

	if p.persistChan != nil {
		p.persistChan <- out
	}
	if p.publishChan != nil {
		select {
		case p.publishChan <- out:
		default:
			if p.metrics != nil {
				p.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (p *Pool) reject(op string, err error) error {
	if p.metrics != nil {
		p.metrics.OpsRejected.WithLabelValues(op, reason(err)).Inc()
	}
	return err
}

func (p *Pool) applied(op string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.OpsApplied.WithLabelValues(op).Inc()
	p.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	p.metrics.PoolBalance.Set(decFloat(p.asset.BalanceOf(p.account)))
	p.metrics.TotalLocked.Set(decFloat(p.locks.TotalLocked()))
	p.metrics.LockBuckets.Set(float64(p.locks.BucketCount()))
	p.metrics.ShareSupply.Set(decFloat(p.shares.TotalSupply()))
	p.metrics.WithdrawSupply.Set(decFloat(p.withdraws.TotalSupply()))
}

func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrUtilizationTooHigh):
		return "utilization_too_high"
	case errors.Is(err, ErrNoFundsAvailable):
		return "no_funds_available"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ErrWithdrawalNotYetAllowed):
		return "withdrawal_not_yet_allowed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, collateral.ErrOverCommitted):
		return "over_committed"
	case errors.Is(err, collateral.ErrBucketNotFound):
		return "bucket_not_found"
	case errors.Is(err, collateral.ErrInsufficientLocked):
		return "insufficient_locked"
	default:
		return "other"
	}
}

func decFloat(d sdkmath.LegacyDec) float64 {
	if d.IsNil() {
		return 0
	}
	f, _ := strconv.ParseFloat(d.String(), 64)
	return f
}
