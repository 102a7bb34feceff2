package event

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypePoolInitialized
	TypeDeposited
	TypeWithdrawn
	TypePostdatedWithdrawn
	TypeLocked
	TypeUnlocked
	TypeFeeCollected
	TypePremiumReceived
	TypePremiumPaid
)

func (t Type) String() string {
	switch t {
	case TypePoolInitialized:
		return "PoolInitialized"
	case TypeDeposited:
		return "Deposited"
	case TypeWithdrawn:
		return "Withdrawn"
	case TypePostdatedWithdrawn:
		return "PostdatedWithdrawn"
	case TypeLocked:
		return "Locked"
	case TypeUnlocked:
		return "Unlocked"
	case TypeFeeCollected:
		return "FeeCollected"
	case TypePremiumReceived:
		return "PremiumReceived"
	case TypePremiumPaid:
		return "PremiumPaid"
	default:
		return "Unknown"
	}
}

// Envelope wraps every notification the pool emits. Each payload carries
// enough data to reconstruct the balance delta it describes.
type Envelope struct {
	// Monotonic sequence assigned by the pool coordinator
	Sequence int64 `json:"sequence"`

	Type Type `json:"type"`

	// Collateral asset symbol
	Asset string `json:"asset"`

	Timestamp time.Time `json:"timestamp"`

	// Event-specific payload, one of the structs below
	Payload any `json:"payload"`
}

// Output is one emitted event on its way to persistence and publishing.
type Output struct {
	Envelope Envelope
}

type PoolInitialized struct {
	Pool  uuid.UUID `json:"pool"`
	Owner uuid.UUID `json:"owner"`
	Asset string    `json:"asset"`
}

type Deposited struct {
	Account     uuid.UUID         `json:"account"`
	Amount      sdkmath.LegacyDec `json:"amount"`
	SharesMint  sdkmath.LegacyDec `json:"shares_minted"`
	PoolBalance sdkmath.LegacyDec `json:"pool_balance"`
	ShareSupply sdkmath.LegacyDec `json:"share_supply"`
}

// Withdrawn reports an immediate redemption plus any postdated remainder
// minted against still-locked funds.
type Withdrawn struct {
	Account          uuid.UUID         `json:"account"`
	SharesBurned     sdkmath.LegacyDec `json:"shares_burned"`
	Paid             sdkmath.LegacyDec `json:"paid"`
	PostdatedMinted  sdkmath.LegacyDec `json:"postdated_minted"`
	PostdatedAllowed *time.Time        `json:"postdated_allowed_at,omitempty"`
	PoolBalance      sdkmath.LegacyDec `json:"pool_balance"`
}

type PostdatedWithdrawn struct {
	Account      uuid.UUID         `json:"account"`
	ClaimsBurned sdkmath.LegacyDec `json:"claims_burned"`
	Paid         sdkmath.LegacyDec `json:"paid"`
	PoolBalance  sdkmath.LegacyDec `json:"pool_balance"`
}

type Locked struct {
	Amount      sdkmath.LegacyDec `json:"amount"`
	Expiration  time.Time         `json:"expiration"`
	TotalLocked sdkmath.LegacyDec `json:"total_locked"`
}

// Unlocked is emitted both for explicit unlocks and for buckets released
// by a sweep; Expired distinguishes the two.
type Unlocked struct {
	Amount      sdkmath.LegacyDec `json:"amount"`
	Expiration  time.Time         `json:"expiration"`
	Expired     bool              `json:"expired"`
	TotalLocked sdkmath.LegacyDec `json:"total_locked"`
}

type FeeCollected struct {
	Payer       uuid.UUID         `json:"payer"`
	Treasury    uuid.UUID         `json:"treasury"`
	PoolCut     sdkmath.LegacyDec `json:"pool_cut"`
	TreasuryCut sdkmath.LegacyDec `json:"treasury_cut"`
}

type PremiumReceived struct {
	Buyer       uuid.UUID         `json:"buyer"`
	Amount      sdkmath.LegacyDec `json:"amount"`
	Premium     sdkmath.LegacyDec `json:"premium"`
	PoolFeeRate sdkmath.LegacyDec `json:"pool_fee_rate"`
	Collateral  sdkmath.LegacyDec `json:"collateral"`
	Expiration  time.Time         `json:"expiration"`
	PoolBalance sdkmath.LegacyDec `json:"pool_balance"`
}

type PremiumPaid struct {
	Seller      uuid.UUID         `json:"seller"`
	Amount      sdkmath.LegacyDec `json:"amount"`
	Payout      sdkmath.LegacyDec `json:"payout"`
	Collateral  sdkmath.LegacyDec `json:"collateral"`
	Expiration  time.Time         `json:"expiration"`
	PoolBalance sdkmath.LegacyDec `json:"pool_balance"`
}
