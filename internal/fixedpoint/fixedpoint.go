package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// WadDecimals is the internal precision of all curve math. Quote assets
// with coarser precision (observed: 6) are rescaled at the boundary.
const WadDecimals = 18

// Wad returns 10^18 as a fresh uint256.
func Wad() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

// QuoteScale converts between a quote asset's raw units and wad units.
// The curve never sees raw units.
type QuoteScale struct {
	Decimals uint8
	factor   *uint256.Int // 10^(18-Decimals)
}

func NewQuoteScale(decimals uint8) (QuoteScale, error) {
	if decimals > WadDecimals {
		return QuoteScale{}, fmt.Errorf("quote decimals %d exceed wad precision %d", decimals, WadDecimals)
	}
	factor := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := decimals; i < WadDecimals; i++ {
		factor.Mul(factor, ten)
	}
	return QuoteScale{Decimals: decimals, factor: factor}, nil
}

// ToWad converts a raw quote amount into wad units. Exact.
func (s QuoteScale) ToWad(raw *uint256.Int) *uint256.Int {
	out, overflow := new(uint256.Int).MulOverflow(raw, s.factor)
	if overflow {
		panic(fmt.Sprintf("fixedpoint: raw amount %s overflows wad scale", raw.Dec()))
	}
	return out
}

// FromWad converts a wad amount back to raw quote units, rounding down.
// Sub-raw-unit residue stays inside the engine, never owed to a caller.
func (s QuoteScale) FromWad(wad *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(wad, s.factor)
}

// FromWadCeil converts wad to raw units rounding up, used when pulling
// funds in so the engine never under-collects.
func (s QuoteScale) FromWadCeil(wad *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Div(wad, s.factor)
	rem := new(uint256.Int).Mod(wad, s.factor)
	if !rem.IsZero() {
		out.AddUint64(out, 1)
	}
	return out
}

// MulDiv computes x*y/d with a 512-bit intermediate, rounding down.
// Panics on overflow or zero divisor: callers guarantee both by
// construction, so a failure is a broken engine invariant.
func MulDiv(x, y, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		panic("fixedpoint: division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		panic(fmt.Sprintf("fixedpoint: muldiv overflow: %s * %s / %s", x.Dec(), y.Dec(), d.Dec()))
	}
	return z
}

// MulDivCeil computes x*y/d rounding up.
func MulDivCeil(x, y, d *uint256.Int) *uint256.Int {
	z := MulDiv(x, y, d)
	rem := new(uint256.Int).Mul(x, y)
	rem.Mod(rem, d)
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return z
}

// BpsOf returns amount * bps / 10000, rounding down.
func BpsOf(amount *uint256.Int, bps uint64) *uint256.Int {
	return MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(10_000))
}

// GrossForNet inverts a basis-point fee: the smallest gross amount whose
// net (gross - fee) is at least net.
func GrossForNet(net *uint256.Int, feeBps uint64) *uint256.Int {
	if feeBps >= 10_000 {
		panic("fixedpoint: fee consumes entire input")
	}
	return MulDivCeil(net, uint256.NewInt(10_000), uint256.NewInt(10_000-feeBps))
}

// WadFloat approximates a wad amount as a float64 in whole-unit terms.
// Lossy past 2^53; metrics and logs only, never accounting.
func WadFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f / 1e18
}
