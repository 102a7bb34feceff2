package pool

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OptionPool/internal/collateral"
	"OptionPool/internal/event"
	"OptionPool/internal/ledger"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

// smallest representable amount at 18 decimals
var oneUnit = sdkmath.LegacyNewDecWithPrec(1, 18)

type fixture struct {
	pool      *Pool
	asset     *ledger.Token
	shares    *ledger.ClaimToken
	withdraws *ledger.ClaimToken
	events    chan event.Output

	account  uuid.UUID
	owner    uuid.UUID
	treasury uuid.UUID
	lp       uuid.UUID
	trader   uuid.UUID

	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		asset:     ledger.NewToken("USDC", ledger.PoolDecimals),
		shares:    ledger.NewClaimToken("USDC-LP", true),
		withdraws: ledger.NewClaimToken("USDC-PW", false),
		events:    make(chan event.Output, 256),
		account:   uuid.New(),
		owner:     uuid.New(),
		treasury:  uuid.New(),
		lp:        uuid.New(),
		trader:    uuid.New(),
		now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	f.pool = NewPool(zerolog.Nop(), nil, f.events, nil)
	f.pool.SetClock(func() time.Time { return f.now })

	if err := f.pool.Init(f.account, f.owner, f.asset, f.shares, f.withdraws); err != nil {
		t.Fatalf("init: %v", err)
	}
	return f
}

func (f *fixture) fund(t *testing.T, account uuid.UUID, amount string) {
	t.Helper()
	if err := f.asset.Mint(account, dec(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func (f *fixture) deposit(t *testing.T, from uuid.UUID, amount string) sdkmath.LegacyDec {
	t.Helper()
	minted, err := f.pool.Deposit(from, dec(amount))
	if err != nil {
		t.Fatalf("deposit %s: %v", amount, err)
	}
	return minted
}

func (f *fixture) snapshot() (balance, locked, shareSupply, withdrawSupply sdkmath.LegacyDec) {
	return f.asset.BalanceOf(f.account), f.pool.TotalLocked(),
		f.shares.TotalSupply(), f.withdraws.TotalSupply()
}

func TestInitRejectsDoubleInit(t *testing.T) {
	f := newFixture(t)
	err := f.pool.Init(f.account, f.owner, f.asset, f.shares, f.withdraws)
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestInitRejectsWrongDecimals(t *testing.T) {
	p := NewPool(zerolog.Nop(), nil, nil, nil)
	six := ledger.NewToken("USDT6", 6)
	err := p.Init(uuid.New(), uuid.New(), six,
		ledger.NewClaimToken("lp", true), ledger.NewClaimToken("pw", false))
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestDepositBootstrapMintsOneToOne(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")

	minted := f.deposit(t, f.lp, "1000")
	if !minted.Equal(dec("1000")) {
		t.Fatalf("minted = %s, want 1000", minted)
	}
	if got := f.shares.BalanceOf(f.lp); !got.Equal(dec("1000")) {
		t.Fatalf("share balance = %s, want 1000", got)
	}
	if got := f.asset.BalanceOf(f.account); !got.Equal(dec("1000")) {
		t.Fatalf("pool balance = %s, want 1000", got)
	}
}

func TestDepositAtRatioOneMintsEqual(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	second := uuid.New()
	f.fund(t, second, "500")
	minted, err := f.pool.Deposit(second, dec("500"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// balance == claims, so the ratio is 1.
	if !minted.Equal(dec("500")) {
		t.Fatalf("minted = %s, want 500", minted)
	}
}

func TestDepositProportionalAfterGrowth(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	// Pool earns 1000 in premiums: balance 2000, supply still 1000.
	f.fund(t, f.account, "1000")

	second := uuid.New()
	f.fund(t, second, "500")
	minted, err := f.pool.Deposit(second, dec("500"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 500 * 1000 / 2000 = 250
	if !minted.Equal(dec("250")) {
		t.Fatalf("minted = %s, want 250", minted)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	if _, err := f.pool.Deposit(f.lp, dec("0")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := f.pool.Deposit(f.lp, dec("-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := f.pool.Deposit(f.lp, sdkmath.LegacyDec{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil: err = %v, want ErrInvalidAmount", err)
	}
}

func TestWithdrawFullyUnlocked(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	paid, postdated, err := f.pool.Withdraw(f.lp, dec("400"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !paid.Equal(dec("400")) {
		t.Fatalf("paid = %s, want 400", paid)
	}
	if !postdated.IsZero() {
		t.Fatalf("postdated = %s, want 0", postdated)
	}
	if got := f.asset.BalanceOf(f.lp); !got.Equal(dec("400")) {
		t.Fatalf("lp balance = %s, want 400", got)
	}
	if got := f.shares.TotalSupply(); !got.Equal(dec("600")) {
		t.Fatalf("share supply = %s, want 600", got)
	}
}

func TestWithdrawSplitsLockedIntoPostdated(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("400"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	paid, postdated, err := f.pool.Withdraw(f.lp, dec("500"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// unlocked 600, locked 400, claims 1000: paid 300, postdated 200.
	if !paid.Equal(dec("300")) {
		t.Fatalf("paid = %s, want 300", paid)
	}
	if !postdated.Equal(dec("200")) {
		t.Fatalf("postdated = %s, want 200", postdated)
	}
	if got := f.withdraws.BalanceOf(f.lp); !got.Equal(dec("200")) {
		t.Fatalf("postdated balance = %s, want 200", got)
	}

	allowedAt, ok := f.pool.allowance[f.lp]
	if !ok {
		t.Fatal("allowance not set")
	}
	if want := f.now.Add(PostdatedLockup); !allowedAt.Equal(want) {
		t.Fatalf("allowed at %v, want %v", allowedAt, want)
	}
}

func TestWithdrawExceedingSharesFails(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	before := f.asset.BalanceOf(f.account)
	_, _, err := f.pool.Withdraw(f.lp, dec("1001"))
	if !errors.Is(err, ErrNoFundsAvailable) {
		t.Fatalf("err = %v, want ErrNoFundsAvailable", err)
	}
	if got := f.asset.BalanceOf(f.account); !got.Equal(before) {
		t.Fatalf("failed withdraw changed pool balance: %s", got)
	}
}

func TestWithdrawWithNothingUnlockedFails(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("1000"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, _, err := f.pool.Withdraw(f.lp, dec("100"))
	if !errors.Is(err, ErrNoFundsAvailable) {
		t.Fatalf("err = %v, want ErrNoFundsAvailable", err)
	}
	if got := f.shares.TotalSupply(); !got.Equal(dec("1000")) {
		t.Fatalf("failed withdraw burned shares: supply %s", got)
	}
}

func TestPostdatedWithdrawWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("400"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, _, err := f.pool.Withdraw(f.lp, dec("500")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Inside the window the claim is frozen, even at the exact boundary.
	if _, err := f.pool.PostdatedWithdraw(f.lp, dec("200")); !errors.Is(err, ErrWithdrawalNotYetAllowed) {
		t.Fatalf("early: err = %v, want ErrWithdrawalNotYetAllowed", err)
	}
	f.now = f.now.Add(PostdatedLockup)
	if _, err := f.pool.PostdatedWithdraw(f.lp, dec("200")); !errors.Is(err, ErrWithdrawalNotYetAllowed) {
		t.Fatalf("boundary: err = %v, want ErrWithdrawalNotYetAllowed", err)
	}

	f.now = f.now.Add(time.Second)
	paid, err := f.pool.PostdatedWithdraw(f.lp, dec("200"))
	if err != nil {
		t.Fatalf("postdated withdraw: %v", err)
	}
	// balance 700 * 200 / (500 shares + 200 postdated) = 200
	if !paid.Equal(dec("200")) {
		t.Fatalf("paid = %s, want 200", paid)
	}

	// Claim exhausted: the allowance entry is cleared.
	if _, ok := f.pool.allowance[f.lp]; ok {
		t.Fatal("allowance entry survived full redemption")
	}
}

func TestPostdatedWithdrawNeverPaysLockedCollateral(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("900"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Full exit: 100 paid now, 900 deferred behind the lock.
	paid, postdated, err := f.pool.Withdraw(f.lp, dec("1000"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !paid.Equal(dec("100")) || !postdated.Equal(dec("900")) {
		t.Fatalf("paid %s / postdated %s, want 100 / 900", paid, postdated)
	}

	// Past the cooldown but before the lock expires the pool holds only
	// reserved collateral; the redemption must wait, not drain it.
	f.now = f.now.Add(PostdatedLockup + time.Second)
	balBefore, lockedBefore, _, pwBefore := f.snapshot()
	if _, err := f.pool.PostdatedWithdraw(f.lp, dec("900")); !errors.Is(err, ErrNoFundsAvailable) {
		t.Fatalf("err = %v, want ErrNoFundsAvailable", err)
	}
	bal, locked, _, pw := f.snapshot()
	if !bal.Equal(balBefore) || !locked.Equal(lockedBefore) || !pw.Equal(pwBefore) {
		t.Fatal("failed redemption mutated pool state")
	}
	if locked.GT(bal) {
		t.Fatalf("total locked %s exceeds pool balance %s", locked, bal)
	}

	// Once the bucket expires the sweep frees the funds and the claim pays.
	f.now = exp.Add(time.Second)
	paid, err = f.pool.PostdatedWithdraw(f.lp, dec("900"))
	if err != nil {
		t.Fatalf("postdated withdraw after expiry: %v", err)
	}
	if !paid.Equal(dec("900")) {
		t.Fatalf("paid = %s, want 900", paid)
	}
	bal, locked, _, _ = f.snapshot()
	if locked.GT(bal) {
		t.Fatalf("total locked %s exceeds pool balance %s", locked, bal)
	}
}

func TestWithdrawResetsAllowanceWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(60 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("800"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, _, err := f.pool.Withdraw(f.lp, dec("100")); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	firstAllowed := f.pool.allowance[f.lp]

	// A later withdraw pushes the whole postdated balance out again.
	f.now = f.now.Add(10 * 24 * time.Hour)
	if _, _, err := f.pool.Withdraw(f.lp, dec("100")); err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	secondAllowed := f.pool.allowance[f.lp]

	if !secondAllowed.After(firstAllowed) {
		t.Fatalf("allowance not reset: first %v, second %v", firstAllowed, secondAllowed)
	}
}

func TestLockUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(24 * time.Hour)
	if err := f.pool.Lock(f.trader, dec("100"), exp); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("lock: err = %v, want ErrUnauthorized", err)
	}
	if err := f.pool.Unlock(f.trader, dec("100"), exp); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unlock: err = %v, want ErrUnauthorized", err)
	}
}

func TestOperationSweepsExpiredLocks(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	soon := f.now.Add(24 * time.Hour)
	later := f.now.Add(48 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("100"), soon); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := f.pool.Lock(f.owner, dec("150"), later); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Past the first expiration any lock-touching operation sweeps it out.
	f.now = soon.Add(time.Hour)
	if _, _, err := f.pool.Withdraw(f.lp, dec("10")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.pool.TotalLocked(); !got.Equal(dec("150")) {
		t.Fatalf("total locked = %s, want 150", got)
	}
}

func TestReceivePremiumSettlesAndLocks(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")
	f.fund(t, f.trader, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	premium, err := f.pool.ReceivePremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), dec("25"))
	if err != nil {
		t.Fatalf("receive premium: %v", err)
	}

	// poolFee = 500/500/100 = 0.01, premium = 2*1.01*10 = 20.2
	if !premium.Equal(dec("20.2")) {
		t.Fatalf("premium = %s, want 20.2", premium)
	}
	// totalFee = 2.02, treasury takes 30%: 0.606
	if got := f.asset.BalanceOf(f.treasury); !got.Equal(dec("0.606")) {
		t.Fatalf("treasury = %s, want 0.606", got)
	}
	// buyer pays premium + totalFee = 22.22
	if got := f.asset.BalanceOf(f.trader); !got.Equal(dec("977.78")) {
		t.Fatalf("buyer = %s, want 977.78", got)
	}
	// pool keeps the rest: 1000 + 22.22 - 0.606
	if got := f.asset.BalanceOf(f.account); !got.Equal(dec("1021.614")) {
		t.Fatalf("pool = %s, want 1021.614", got)
	}
	if got := f.pool.TotalLocked(); !got.Equal(dec("500")) {
		t.Fatalf("total locked = %s, want 500", got)
	}
}

func TestReceivePremiumSlippage(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")
	f.fund(t, f.trader, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	required := dec("22.22") // premium 20.2 + fee 2.02

	balBefore, lockedBefore, sharesBefore, pwBefore := f.snapshot()

	// One unit below the required payment must fail.
	_, err := f.pool.ReceivePremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), required.Sub(oneUnit))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}

	// Nothing moved.
	bal, locked, shares, pw := f.snapshot()
	if !bal.Equal(balBefore) || !locked.Equal(lockedBefore) ||
		!shares.Equal(sharesBefore) || !pw.Equal(pwBefore) {
		t.Fatal("failed premium mutated pool state")
	}
	if !f.asset.BalanceOf(f.trader).Equal(dec("1000")) {
		t.Fatal("failed premium moved buyer funds")
	}

	// Exactly the required payment succeeds.
	if _, err := f.pool.ReceivePremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), required); err != nil {
		t.Fatalf("exact max payment: %v", err)
	}
}

func TestReceivePremiumUtilizationTooHigh(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "100")
	f.deposit(t, f.lp, "100")
	f.fund(t, f.trader, "1000")

	exp := f.now.Add(24 * time.Hour)
	_, err := f.pool.ReceivePremium(f.owner, f.trader,
		dec("1"), dec("100"), exp, dec("2"),
		f.treasury, dec("0.1"), dec("100"))
	if !errors.Is(err, ErrUtilizationTooHigh) {
		t.Fatalf("err = %v, want ErrUtilizationTooHigh", err)
	}
}

func TestPayPremiumSettlesAndUnlocks(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("500"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	payout, err := f.pool.PayPremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), dec("18"))
	if err != nil {
		t.Fatalf("pay premium: %v", err)
	}

	// premium 20, totalFee 2, treasury keeps 10%: 0.2, seller gets 18.2
	if !payout.Equal(dec("18.2")) {
		t.Fatalf("payout = %s, want 18.2", payout)
	}
	if got := f.asset.BalanceOf(f.trader); !got.Equal(dec("18.2")) {
		t.Fatalf("seller = %s, want 18.2", got)
	}
	if got := f.asset.BalanceOf(f.treasury); !got.Equal(dec("0.2")) {
		t.Fatalf("treasury = %s, want 0.2", got)
	}
	if got := f.asset.BalanceOf(f.account); !got.Equal(dec("981.6")) {
		t.Fatalf("pool = %s, want 981.6", got)
	}
	if !f.pool.TotalLocked().IsZero() {
		t.Fatalf("total locked = %s, want 0", f.pool.TotalLocked())
	}
}

func TestPayPremiumSlippage(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	if err := f.pool.Lock(f.owner, dec("500"), exp); err != nil {
		t.Fatalf("lock: %v", err)
	}

	lockedBefore := f.pool.TotalLocked()

	// Net payment is 18; a floor one unit above must fail.
	_, err := f.pool.PayPremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), dec("18").Add(oneUnit))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
	if !f.pool.TotalLocked().Equal(lockedBefore) {
		t.Fatal("failed premium changed locked total")
	}
	if !f.asset.BalanceOf(f.account).Equal(dec("1000")) {
		t.Fatal("failed premium moved pool funds")
	}
}

func TestPayPremiumUnknownBucket(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(30 * 24 * time.Hour)
	_, err := f.pool.PayPremium(f.owner, f.trader,
		dec("10"), dec("500"), exp, dec("2"),
		f.treasury, dec("0.1"), dec("1"))
	if !errors.Is(err, collateral.ErrBucketNotFound) {
		t.Fatalf("err = %v, want ErrBucketNotFound", err)
	}
}

func TestPremiumRequiresOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")

	exp := f.now.Add(24 * time.Hour)
	if _, err := f.pool.ReceivePremium(f.trader, f.trader,
		dec("1"), dec("10"), exp, dec("1"),
		f.treasury, dec("0.1"), dec("100")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("receive: err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.pool.PayPremium(f.trader, f.trader,
		dec("1"), dec("10"), exp, dec("1"),
		f.treasury, dec("0.1"), dec("0.1")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pay: err = %v, want ErrUnauthorized", err)
	}
}

func TestEventSequenceIsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.lp, "1000")
	f.deposit(t, f.lp, "1000")
	if _, _, err := f.pool.Withdraw(f.lp, dec("100")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	close(f.events)
	var last int64
	for out := range f.events {
		if out.Envelope.Sequence != last+1 {
			t.Fatalf("sequence jump: %d after %d", out.Envelope.Sequence, last)
		}
		last = out.Envelope.Sequence
	}
	if last < 3 {
		t.Fatalf("expected at least 3 events, got %d", last)
	}
}
