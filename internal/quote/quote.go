// Package quote prices hypothetical trades against a market snapshot
// without touching instance state. Estimates use the same curve and
// rounding as execution, so a quote taken and executed against an
// unchanged reserve is exact.
package quote

import (
	"fmt"

	"CurveBank/internal/curve"
	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/market"
	"CurveBank/internal/revert"
	"CurveBank/internal/sale"

	"github.com/holiman/uint256"
)

// BuyEstimate is the priced outcome of a hypothetical buy.
type BuyEstimate struct {
	QuoteInRaw *uint256.Int
	Fee        *uint256.Int // quote-wad
	TokenOut   *uint256.Int // wad
}

// SellEstimate is the priced outcome of a hypothetical sell.
type SellEstimate struct {
	TokenIn     *uint256.Int // wad
	Fee         *uint256.Int // token-wad
	QuoteOutRaw *uint256.Int
}

func requireOpen(st market.State) error {
	if st.Phase != sale.PhaseMarketOpen {
		return fmt.Errorf("%w: market not open yet", revert.ErrOpen)
	}
	return nil
}

func scaleOf(st market.State) fixedpoint.QuoteScale {
	scale, err := fixedpoint.NewQuoteScale(st.QuoteDecimals)
	if err != nil {
		panic(fmt.Sprintf("FATAL: snapshot carries invalid quote decimals: %v", err))
	}
	return scale
}

// Buy prices a buy of quoteInRaw raw quote units.
func Buy(st market.State, quoteInRaw *uint256.Int) (*BuyEstimate, error) {
	if err := requireOpen(st); err != nil {
		return nil, err
	}
	if quoteInRaw.IsZero() {
		return nil, revert.ErrZeroInput
	}

	scale := scaleOf(st)
	quoteIn := scale.ToWad(quoteInRaw)
	fee := fixedpoint.BpsOf(quoteIn, st.FeeRateBps)
	net := new(uint256.Int).Sub(quoteIn, fee)
	if net.IsZero() {
		return nil, revert.ErrZeroInput
	}

	return &BuyEstimate{
		QuoteInRaw: quoteInRaw.Clone(),
		Fee:        fee,
		TokenOut:   curve.BuyOut(st.VirtQuote, st.RealQuote, st.ReserveToken, net),
	}, nil
}

// BuyForOut prices the smallest raw quote input that yields at least
// tokenOut (wad) after fees.
func BuyForOut(st market.State, tokenOut *uint256.Int) (*BuyEstimate, error) {
	if err := requireOpen(st); err != nil {
		return nil, err
	}
	if tokenOut.IsZero() {
		return nil, revert.ErrZeroInput
	}

	net := curve.BuyInForOut(st.VirtQuote, st.RealQuote, st.ReserveToken, tokenOut)
	if net == nil {
		return nil, fmt.Errorf("%w: requested output exhausts the reserve", revert.ErrInsufficientBalance)
	}
	gross := fixedpoint.GrossForNet(net, st.FeeRateBps)
	fee := new(uint256.Int).Sub(gross, net)

	scale := scaleOf(st)
	return &BuyEstimate{
		QuoteInRaw: scale.FromWadCeil(gross),
		Fee:        fee,
		TokenOut:   tokenOut.Clone(),
	}, nil
}

// Sell prices a sell of tokenIn (wad).
func Sell(st market.State, tokenIn *uint256.Int) (*SellEstimate, error) {
	if err := requireOpen(st); err != nil {
		return nil, err
	}
	if tokenIn.IsZero() {
		return nil, revert.ErrZeroInput
	}

	fee := fixedpoint.BpsOf(tokenIn, st.FeeRateBps)
	net := new(uint256.Int).Sub(tokenIn, fee)
	if net.IsZero() {
		return nil, revert.ErrZeroInput
	}

	scale := scaleOf(st)
	quoteOut := curve.SellOut(st.VirtQuote, st.RealQuote, st.ReserveToken, net)
	return &SellEstimate{
		TokenIn:     tokenIn.Clone(),
		Fee:         fee,
		QuoteOutRaw: scale.FromWad(quoteOut),
	}, nil
}

// SellForOut prices the smallest token input (wad) that yields at least
// quoteOutRaw raw quote units after fees.
func SellForOut(st market.State, quoteOutRaw *uint256.Int) (*SellEstimate, error) {
	if err := requireOpen(st); err != nil {
		return nil, err
	}
	if quoteOutRaw.IsZero() {
		return nil, revert.ErrZeroInput
	}

	scale := scaleOf(st)
	quoteOut := scale.ToWad(quoteOutRaw)
	net := curve.SellInForOut(st.VirtQuote, st.RealQuote, st.ReserveToken, quoteOut)
	if net == nil {
		return nil, fmt.Errorf("%w: requested output exhausts the backing", revert.ErrInsufficientBalance)
	}
	gross := fixedpoint.GrossForNet(net, st.FeeRateBps)
	fee := new(uint256.Int).Sub(gross, net)

	return &SellEstimate{
		TokenIn:     gross,
		Fee:         fee,
		QuoteOutRaw: quoteOutRaw.Clone(),
	}, nil
}
