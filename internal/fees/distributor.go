package fees

import (
	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/revert"

	"github.com/holiman/uint256"
)

// Category labels where a fee share went. Emitted per share on every
// buy and sell.
type Category string

const (
	CategoryOwner    Category = "owner"
	CategoryProvider Category = "provider"
	CategoryTreasury Category = "treasury"
	CategoryReserve  Category = "reserve" // redirected into backing
)

// Shares are expressed in basis points of the fee, not of the trade.
// Owner share matches the observed 15% ratio; the provider earmark is
// sized the same; everything left is the treasury remainder.
const (
	OwnerShareBps    = 1_500
	ProviderShareBps = 1_500
)

// Route is one paid-out share of a fee. Amounts are wad: quote-wad on
// buys, token-wad on sells.
type Route struct {
	Category Category
	Account  string
	Amount   *uint256.Int
}

// Split is a fully accounted fee distribution: the routed shares plus
// the redirected remainder always sum to the original fee.
type Split struct {
	Routes []Route

	// Redirected holds shares with no eligible recipient. On buys the
	// engine folds this into the reserve like a heal; on sells it is
	// retired, shrinking max supply.
	Redirected *uint256.Int
}

// Distributor owns the per-instance fee policy: the owner capability,
// the owner's collect/redirect toggle, and the optional treasury.
type Distributor struct {
	owner        string
	ownerEnabled bool
	treasury     string // empty means unset: remainder backs the reserve
}

func NewDistributor(owner, treasury string) *Distributor {
	return &Distributor{
		owner:        owner,
		ownerEnabled: owner != "",
		treasury:     treasury,
	}
}

func (d *Distributor) Owner() string         { return d.owner }
func (d *Distributor) OwnerFeeEnabled() bool { return d.ownerEnabled }

// SetOwnerFeeStatus toggles owner fee collection. Only the owner
// capability holder may call it.
func (d *Distributor) SetOwnerFeeStatus(caller string, enabled bool) error {
	if caller == "" || caller != d.owner {
		return revert.ErrNotAuthorized
	}
	d.ownerEnabled = enabled
	return nil
}

// TransferOwnership moves the owner capability to a new account.
func (d *Distributor) TransferOwnership(caller, newOwner string) error {
	if caller == "" || caller != d.owner {
		return revert.ErrNotAuthorized
	}
	d.owner = newOwner
	if newOwner == "" {
		d.ownerEnabled = false
	}
	return nil
}

// Distribute splits fee among owner, provider and treasury. Shares
// without an eligible recipient accumulate in Redirected. The split is
// exact: Σ routes + Redirected == fee.
func (d *Distributor) Distribute(fee *uint256.Int, provider string) Split {
	split := Split{Redirected: uint256.NewInt(0)}
	if fee.IsZero() {
		return split
	}

	remainder := fee.Clone()

	ownerShare := fixedpoint.BpsOf(fee, OwnerShareBps)
	remainder.Sub(remainder, ownerShare)
	if d.ownerEnabled && d.owner != "" {
		split.Routes = append(split.Routes, Route{CategoryOwner, d.owner, ownerShare})
	} else {
		split.Redirected.Add(split.Redirected, ownerShare)
	}

	if provider != "" {
		providerShare := fixedpoint.BpsOf(fee, ProviderShareBps)
		remainder.Sub(remainder, providerShare)
		split.Routes = append(split.Routes, Route{CategoryProvider, provider, providerShare})
	}

	if d.treasury != "" {
		split.Routes = append(split.Routes, Route{CategoryTreasury, d.treasury, remainder})
	} else {
		split.Redirected.Add(split.Redirected, remainder)
	}

	return split
}
