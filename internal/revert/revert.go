// Package revert defines the stable failure identifiers surfaced by
// every rejected operation. Callers branch on these programmatically,
// so the strings are part of the external contract and never change.
package revert

import "errors"

var (
	// Input validation — rejected before any computation.
	ErrZeroInput           = errors.New("ZeroInput")
	ErrInsufficientBalance = errors.New("InsufficientBalance")

	// Phase violations.
	ErrClosed = errors.New("Closed") // sale no longer accepting contributions
	ErrOpen   = errors.New("Open")   // market opening attempted before sale end

	// Redemption.
	ErrNothingToRedeem = errors.New("NothingToRedeem")
	ErrNotEligible     = errors.New("NotEligible")

	// Economic violations — rejected after computation, before mutation.
	ErrSlippageToleranceExceeded = errors.New("SlippageToleranceExceeded")
	ErrCollateralLocked          = errors.New("CollateralLocked")
	ErrCreditLimit               = errors.New("CreditLimit")

	// Liveness / authorization.
	ErrDeadlineExpired = errors.New("DeadlineExpired")
	ErrNotAuthorized   = errors.New("NotAuthorized")
	ErrReentrancy      = errors.New("Reentrancy")

	ErrUnknownMarket = errors.New("UnknownMarket")
)

var identifiers = []error{
	ErrZeroInput,
	ErrInsufficientBalance,
	ErrClosed,
	ErrOpen,
	ErrNothingToRedeem,
	ErrNotEligible,
	ErrSlippageToleranceExceeded,
	ErrCollateralLocked,
	ErrCreditLimit,
	ErrDeadlineExpired,
	ErrNotAuthorized,
	ErrReentrancy,
	ErrUnknownMarket,
}

// Identifier returns the stable identifier for err, or "Internal" when
// the error is not part of the revert taxonomy.
func Identifier(err error) string {
	for _, id := range identifiers {
		if errors.Is(err, id) {
			return id.Error()
		}
	}
	return "Internal"
}
