package sale

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"CurveBank/internal/revert"
)

const end = int64(1_000_000)

func TestContributeWindow(t *testing.T) {
	s := New(end)

	if err := s.Contribute("alice", uint256.NewInt(100), end-1); err != nil {
		t.Fatalf("Contribute inside window: %v", err)
	}
	// The end timestamp itself is still inside the window.
	if err := s.Contribute("alice", uint256.NewInt(50), end); err != nil {
		t.Fatalf("Contribute at end timestamp: %v", err)
	}

	if err := s.Contribute("alice", uint256.NewInt(1), end+1); !errors.Is(err, revert.ErrClosed) {
		t.Errorf("Contribute after window = %v, want Closed", err)
	}
	if err := s.Contribute("alice", uint256.NewInt(0), end-1); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("Contribute zero = %v, want ZeroInput", err)
	}

	if got := s.ContributionOf("alice"); got.Cmp(uint256.NewInt(150)) != 0 {
		t.Errorf("ContributionOf(alice) = %s, want 150", got.Dec())
	}
	if got := s.TotalContributed(); got.Cmp(uint256.NewInt(150)) != 0 {
		t.Errorf("TotalContributed = %s, want 150", got.Dec())
	}
}

func TestCanOpen(t *testing.T) {
	s := New(end)

	if err := s.CanOpen(end); !errors.Is(err, revert.ErrOpen) {
		t.Errorf("CanOpen during window = %v, want Open", err)
	}
	if err := s.CanOpen(end + 1); err != nil {
		t.Errorf("CanOpen after window = %v, want nil", err)
	}

	s.MarkOpened(uint256.NewInt(500))
	if err := s.CanOpen(end + 2); !errors.Is(err, revert.ErrClosed) {
		t.Errorf("CanOpen after open = %v, want Closed", err)
	}
}

func TestMarkOpenedTwicePanics(t *testing.T) {
	s := New(end)
	s.MarkOpened(uint256.NewInt(1))

	defer func() {
		if recover() == nil {
			t.Error("second MarkOpened did not panic")
		}
	}()
	s.MarkOpened(uint256.NewInt(1))
}

func TestPhase(t *testing.T) {
	s := New(end)
	if got := s.Phase(); got != PhaseOpen {
		t.Errorf("Phase = %v, want Open", got)
	}
	s.MarkOpened(uint256.NewInt(0))
	if got := s.Phase(); got != PhaseMarketOpen {
		t.Errorf("Phase after open = %v, want MarketOpen", got)
	}
}

func TestRedeemProRata(t *testing.T) {
	s := New(end)
	s.Contribute("alice", uint256.NewInt(300), end)
	s.Contribute("bob", uint256.NewInt(100), end)
	s.MarkOpened(uint256.NewInt(1_000))

	got, err := s.Redeem("alice")
	if err != nil {
		t.Fatalf("Redeem(alice): %v", err)
	}
	if got.Cmp(uint256.NewInt(750)) != 0 {
		t.Errorf("alice share = %s, want 750", got.Dec())
	}

	got, err = s.Redeem("bob")
	if err != nil {
		t.Fatalf("Redeem(bob): %v", err)
	}
	if got.Cmp(uint256.NewInt(250)) != 0 {
		t.Errorf("bob share = %s, want 250", got.Dec())
	}
}

func TestRedeemBeforeOpen(t *testing.T) {
	s := New(end)
	s.Contribute("alice", uint256.NewInt(100), end)

	if _, err := s.Redeem("alice"); !errors.Is(err, revert.ErrNotEligible) {
		t.Errorf("Redeem before open = %v, want NotEligible", err)
	}
}

func TestRedeemIsIdempotent(t *testing.T) {
	s := New(end)
	s.Contribute("alice", uint256.NewInt(100), end)
	s.MarkOpened(uint256.NewInt(1_000))

	if _, err := s.Redeem("alice"); err != nil {
		t.Fatalf("first Redeem: %v", err)
	}
	if _, err := s.Redeem("alice"); !errors.Is(err, revert.ErrNothingToRedeem) {
		t.Errorf("second Redeem = %v, want NothingToRedeem", err)
	}
	if _, err := s.Redeem("stranger"); !errors.Is(err, revert.ErrNothingToRedeem) {
		t.Errorf("Redeem by non-contributor = %v, want NothingToRedeem", err)
	}
}

func TestRedeemDenominatorFrozenAtOpen(t *testing.T) {
	// Shares divide by the pot as it stood at open, so earlier
	// redemptions never change later ones.
	s := New(end)
	s.Contribute("alice", uint256.NewInt(100), end)
	s.Contribute("bob", uint256.NewInt(100), end)
	s.Contribute("carol", uint256.NewInt(200), end)
	s.MarkOpened(uint256.NewInt(4_000))

	want := map[string]uint64{"alice": 1_000, "bob": 1_000, "carol": 2_000}
	for _, account := range []string{"alice", "bob", "carol"} {
		got, err := s.Redeem(account)
		if err != nil {
			t.Fatalf("Redeem(%s): %v", account, err)
		}
		if got.Cmp(uint256.NewInt(want[account])) != 0 {
			t.Errorf("%s share = %s, want %d", account, got.Dec(), want[account])
		}
	}
}
