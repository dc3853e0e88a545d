package fees

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"CurveBank/internal/revert"
)

func splitTotal(s Split) *uint256.Int {
	total := s.Redirected.Clone()
	for _, r := range s.Routes {
		total.Add(total, r.Amount)
	}
	return total
}

func routeFor(s Split, cat Category) *Route {
	for i := range s.Routes {
		if s.Routes[i].Category == cat {
			return &s.Routes[i]
		}
	}
	return nil
}

func TestDistributeFullSplit(t *testing.T) {
	d := NewDistributor("owner", "treasury")
	fee := uint256.NewInt(10_000)

	s := d.Distribute(fee, "provider")

	if got := splitTotal(s); got.Cmp(fee) != 0 {
		t.Fatalf("split total = %s, want %s", got.Dec(), fee.Dec())
	}
	if !s.Redirected.IsZero() {
		t.Errorf("Redirected = %s, want 0", s.Redirected.Dec())
	}

	owner := routeFor(s, CategoryOwner)
	if owner == nil || owner.Amount.Cmp(uint256.NewInt(1_500)) != 0 {
		t.Errorf("owner route = %+v, want 1500", owner)
	}
	provider := routeFor(s, CategoryProvider)
	if provider == nil || provider.Amount.Cmp(uint256.NewInt(1_500)) != 0 {
		t.Errorf("provider route = %+v, want 1500", provider)
	}
	treasury := routeFor(s, CategoryTreasury)
	if treasury == nil || treasury.Amount.Cmp(uint256.NewInt(7_000)) != 0 {
		t.Errorf("treasury route = %+v, want 7000", treasury)
	}
}

func TestDistributeOwnerDisabled(t *testing.T) {
	d := NewDistributor("owner", "treasury")
	if err := d.SetOwnerFeeStatus("owner", false); err != nil {
		t.Fatalf("SetOwnerFeeStatus: %v", err)
	}

	s := d.Distribute(uint256.NewInt(10_000), "provider")

	if routeFor(s, CategoryOwner) != nil {
		t.Error("owner route present with fees disabled")
	}
	if s.Redirected.Cmp(uint256.NewInt(1_500)) != 0 {
		t.Errorf("Redirected = %s, want 1500", s.Redirected.Dec())
	}
	if got := splitTotal(s); got.Cmp(uint256.NewInt(10_000)) != 0 {
		t.Errorf("split total = %s, want 10000", got.Dec())
	}
}

func TestDistributeNoProvider(t *testing.T) {
	d := NewDistributor("owner", "treasury")

	s := d.Distribute(uint256.NewInt(10_000), "")

	if routeFor(s, CategoryProvider) != nil {
		t.Error("provider route present without a provider")
	}
	// Unearmarked provider share stays in the treasury remainder.
	treasury := routeFor(s, CategoryTreasury)
	if treasury == nil || treasury.Amount.Cmp(uint256.NewInt(8_500)) != 0 {
		t.Errorf("treasury route = %+v, want 8500", treasury)
	}
	if got := splitTotal(s); got.Cmp(uint256.NewInt(10_000)) != 0 {
		t.Errorf("split total = %s, want 10000", got.Dec())
	}
}

func TestDistributeNoTreasury(t *testing.T) {
	d := NewDistributor("owner", "")

	s := d.Distribute(uint256.NewInt(10_000), "provider")

	if routeFor(s, CategoryTreasury) != nil {
		t.Error("treasury route present without a treasury")
	}
	if s.Redirected.Cmp(uint256.NewInt(7_000)) != 0 {
		t.Errorf("Redirected = %s, want 7000", s.Redirected.Dec())
	}
}

func TestDistributeZeroFee(t *testing.T) {
	d := NewDistributor("owner", "treasury")

	s := d.Distribute(uint256.NewInt(0), "provider")
	if len(s.Routes) != 0 || !s.Redirected.IsZero() {
		t.Errorf("zero fee produced routes %+v redirected %s", s.Routes, s.Redirected.Dec())
	}
}

func TestDistributeOddAmountsStayExact(t *testing.T) {
	d := NewDistributor("owner", "treasury")
	for _, fee := range []uint64{1, 7, 99, 101, 9_999, 123_457} {
		f := uint256.NewInt(fee)
		s := d.Distribute(f, "provider")
		if got := splitTotal(s); got.Cmp(f) != 0 {
			t.Errorf("fee=%d: split total = %s, want %d", fee, got.Dec(), fee)
		}
	}
}

func TestOwnerAuthorization(t *testing.T) {
	d := NewDistributor("owner", "")

	if err := d.SetOwnerFeeStatus("mallory", false); !errors.Is(err, revert.ErrNotAuthorized) {
		t.Errorf("SetOwnerFeeStatus by stranger = %v, want NotAuthorized", err)
	}
	if err := d.TransferOwnership("mallory", "mallory"); !errors.Is(err, revert.ErrNotAuthorized) {
		t.Errorf("TransferOwnership by stranger = %v, want NotAuthorized", err)
	}

	if err := d.TransferOwnership("owner", "newowner"); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if got := d.Owner(); got != "newowner" {
		t.Errorf("Owner = %q, want newowner", got)
	}

	// The old owner lost the capability.
	if err := d.SetOwnerFeeStatus("owner", false); !errors.Is(err, revert.ErrNotAuthorized) {
		t.Errorf("SetOwnerFeeStatus by former owner = %v, want NotAuthorized", err)
	}
}

func TestTransferOwnershipToNobodyDisablesFees(t *testing.T) {
	d := NewDistributor("owner", "")

	if err := d.TransferOwnership("owner", ""); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if d.OwnerFeeEnabled() {
		t.Error("owner fees still enabled after renouncing ownership")
	}

	s := d.Distribute(uint256.NewInt(10_000), "")
	if len(s.Routes) != 0 {
		t.Errorf("routes after renounce = %+v, want none", s.Routes)
	}
	if s.Redirected.Cmp(uint256.NewInt(10_000)) != 0 {
		t.Errorf("Redirected = %s, want full fee", s.Redirected.Dec())
	}
}
