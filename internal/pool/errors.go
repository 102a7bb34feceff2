package pool

import "errors"

var (
	// ErrUnauthorized is returned when an engine-only operation is invoked
	// by anyone other than the pool's owner credential.
	ErrUnauthorized = errors.New("pool: caller is not the pool owner")

	// ErrInvalidConfiguration covers double-initialization and collateral
	// assets with the wrong decimal precision.
	ErrInvalidConfiguration = errors.New("pool: invalid configuration")

	// ErrUtilizationTooHigh means a fee quote would put utilization at or
	// above 100%; the fee curve denominator would be zero or negative.
	ErrUtilizationTooHigh = errors.New("pool: utilization too high")

	// ErrNoFundsAvailable means a withdrawal exceeds the currently
	// redeemable balance.
	ErrNoFundsAvailable = errors.New("pool: no funds available")

	// ErrSlippageExceeded means the computed premium falls outside the
	// caller's payment bound.
	ErrSlippageExceeded = errors.New("pool: premium outside payment bound")

	// ErrWithdrawalNotYetAllowed means the postdated 15-day window has not
	// elapsed for the claimant.
	ErrWithdrawalNotYetAllowed = errors.New("pool: postdated withdrawal window not elapsed")

	// ErrInvalidAmount rejects non-positive or dust amounts before any
	// state is touched.
	ErrInvalidAmount = errors.New("pool: invalid amount")

	// ErrNotInitialized is returned for any operation before Init.
	ErrNotInitialized = errors.New("pool: not initialized")
)
