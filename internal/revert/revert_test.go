package revert

import (
	"errors"
	"fmt"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrZeroInput, "ZeroInput"},
		{ErrInsufficientBalance, "InsufficientBalance"},
		{ErrClosed, "Closed"},
		{ErrOpen, "Open"},
		{ErrNothingToRedeem, "NothingToRedeem"},
		{ErrNotEligible, "NotEligible"},
		{ErrSlippageToleranceExceeded, "SlippageToleranceExceeded"},
		{ErrCollateralLocked, "CollateralLocked"},
		{ErrCreditLimit, "CreditLimit"},
		{ErrDeadlineExpired, "DeadlineExpired"},
		{ErrNotAuthorized, "NotAuthorized"},
		{ErrReentrancy, "Reentrancy"},
		{ErrUnknownMarket, "UnknownMarket"},
	}
	for _, tt := range tests {
		if got := Identifier(tt.err); got != tt.want {
			t.Errorf("Identifier(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIdentifierUnwrapsContext(t *testing.T) {
	wrapped := fmt.Errorf("%w: out 5 < min 10", ErrSlippageToleranceExceeded)
	if got := Identifier(wrapped); got != "SlippageToleranceExceeded" {
		t.Errorf("Identifier(wrapped) = %q, want SlippageToleranceExceeded", got)
	}

	deep := fmt.Errorf("buy: %w", fmt.Errorf("%w: balance 0 too low", ErrInsufficientBalance))
	if got := Identifier(deep); got != "InsufficientBalance" {
		t.Errorf("Identifier(deep) = %q, want InsufficientBalance", got)
	}
}

func TestIdentifierFallsBackToInternal(t *testing.T) {
	if got := Identifier(errors.New("disk full")); got != "Internal" {
		t.Errorf("Identifier(foreign error) = %q, want Internal", got)
	}
	if got := Identifier(nil); got != "Internal" {
		t.Errorf("Identifier(nil) = %q, want Internal", got)
	}
}
