package curve

import (
	"CurveBank/internal/fixedpoint"

	"github.com/holiman/uint256"
)

// All amounts are wad (18-decimal fixed point). The curve maintains a
// constant product between total quote backing Q = virt + real and the
// unissued token reserve T. Fees are handled by callers; every function
// here operates on net amounts.

// TotalQuote returns Q = reserveVirtQuote + reserveRealQuote.
func TotalQuote(virt, real *uint256.Int) *uint256.Int {
	q, overflow := new(uint256.Int).AddOverflow(virt, real)
	if overflow {
		panic("curve: quote reserve overflow")
	}
	return q
}

// MarketPrice returns the spot price Q/T in quote-wad per token.
func MarketPrice(virt, real, reserveToken *uint256.Int) *uint256.Int {
	return fixedpoint.MulDiv(TotalQuote(virt, real), fixedpoint.Wad(), reserveToken)
}

// FloorPrice returns reserveVirtQuote / maxSupply in quote-wad per token.
// This is the guaranteed redemption value backing the credit line.
func FloorPrice(virt, maxSupply *uint256.Int) *uint256.Int {
	return fixedpoint.MulDiv(virt, fixedpoint.Wad(), maxSupply)
}

// BuyOut returns the token output for a net quote input n:
//
//	out = T - Q*T/(Q+n) = T*n/(Q+n)
func BuyOut(virt, real, reserveToken, netQuoteIn *uint256.Int) *uint256.Int {
	q := TotalQuote(virt, real)
	denom := new(uint256.Int).Add(q, netQuoteIn)
	return fixedpoint.MulDiv(reserveToken, netQuoteIn, denom)
}

// SellOut returns the quote output for a net token input m:
//
//	out = Q - Q*T/(T+m) = Q*m/(T+m)
func SellOut(virt, real, reserveToken, netTokenIn *uint256.Int) *uint256.Int {
	q := TotalQuote(virt, real)
	denom := new(uint256.Int).Add(reserveToken, netTokenIn)
	return fixedpoint.MulDiv(q, netTokenIn, denom)
}

// BuyInForOut inverts BuyOut: the smallest net quote input that yields
// at least tokenOut. Returns nil if tokenOut exhausts the reserve.
func BuyInForOut(virt, real, reserveToken, tokenOut *uint256.Int) *uint256.Int {
	if tokenOut.Cmp(reserveToken) >= 0 {
		return nil
	}
	q := TotalQuote(virt, real)
	denom := new(uint256.Int).Sub(reserveToken, tokenOut)
	return fixedpoint.MulDivCeil(q, tokenOut, denom)
}

// SellInForOut inverts SellOut: the smallest net token input that yields
// at least quoteOut. Returns nil if quoteOut exhausts the backing.
func SellInForOut(virt, real, reserveToken, quoteOut *uint256.Int) *uint256.Int {
	q := TotalQuote(virt, real)
	if quoteOut.Cmp(q) >= 0 {
		return nil
	}
	denom := new(uint256.Int).Sub(q, quoteOut)
	return fixedpoint.MulDivCeil(reserveToken, quoteOut, denom)
}

// HealVirtIncrement returns the virtual-reserve increment for a quote
// donation: amount * reserveToken / totalSupply. Adding exactly this
// much to virt keeps the backing inequality
//
//	(virt+real)*T/(T+S) >= virt
//
// tight under donation (both sides grow by amount*T/S) while raising
// both floor and market price.
func HealVirtIncrement(amount, reserveToken, totalSupply *uint256.Int) *uint256.Int {
	if totalSupply.IsZero() {
		// Nothing issued yet: the donation backs the reserve 1:1.
		return amount.Clone()
	}
	return fixedpoint.MulDiv(amount, reserveToken, totalSupply)
}

// CreditFor values a balance at the floor price and nets out debt:
//
//	credit = balance*floor - debt, floored at zero.
//
// Floor valuation means the engine's backing covers outstanding debt
// even in a full price collapse.
func CreditFor(balance, debt, floorPrice *uint256.Int) *uint256.Int {
	value := fixedpoint.MulDiv(balance, floorPrice, fixedpoint.Wad())
	if value.Cmp(debt) <= 0 {
		return uint256.NewInt(0)
	}
	return value.Sub(value, debt)
}

// TransferableFor returns the balance portion not locked as collateral:
//
//	transferable = balance - ceil(debt/floor)
//
// Rounding up the locked portion keeps debt fully covered.
func TransferableFor(balance, debt, floorPrice *uint256.Int) *uint256.Int {
	if debt.IsZero() {
		return balance.Clone()
	}
	locked := fixedpoint.MulDivCeil(debt, fixedpoint.Wad(), floorPrice)
	if locked.Cmp(balance) >= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(balance, locked)
}
