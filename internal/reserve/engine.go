package reserve

import (
	"fmt"

	"CurveBank/internal/curve"
	"CurveBank/internal/fees"
	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/ledger"
	"CurveBank/internal/revert"

	"github.com/holiman/uint256"
)

// Config fixes the engine-chosen parameters at instance creation.
type Config struct {
	FeeRateBps       uint64
	InitialVirtQuote *uint256.Int // wad
	MaxSupply        *uint256.Int // wad
}

// Engine owns the bonding-curve reserves for one token instance and
// executes every balance-changing operation against them. It is not
// goroutine-safe: the market instance serializes access.
//
// Internally all quote amounts are wad; raw quote units appear only at
// the QuoteBook boundary. Token amounts are wad throughout.
type Engine struct {
	account    string // the engine's own quote account
	feeRateBps uint64

	virt         *uint256.Int // quote-wad backing counted in pricing, not held
	real         *uint256.Int // quote-wad backing the engine is owed or holds
	reserveToken *uint256.Int // token-wad not yet issued to any account

	tokens *ledger.TokenBook
	quote  *ledger.QuoteBook
	scale  fixedpoint.QuoteScale
	dist   *fees.Distributor
}

func NewEngine(
	account string,
	cfg Config,
	tokens *ledger.TokenBook,
	quote *ledger.QuoteBook,
	scale fixedpoint.QuoteScale,
	dist *fees.Distributor,
) *Engine {
	return &Engine{
		account:      account,
		feeRateBps:   cfg.FeeRateBps,
		virt:         cfg.InitialVirtQuote.Clone(),
		real:         uint256.NewInt(0),
		reserveToken: cfg.MaxSupply.Clone(),
		tokens:       tokens,
		quote:        quote,
		scale:        scale,
		dist:         dist,
	}
}

// --- Read surface ---

func (e *Engine) Account() string            { return e.account }
func (e *Engine) FeeRateBps() uint64         { return e.feeRateBps }
func (e *Engine) VirtQuote() *uint256.Int    { return e.virt.Clone() }
func (e *Engine) RealQuote() *uint256.Int    { return e.real.Clone() }
func (e *Engine) ReserveToken() *uint256.Int { return e.reserveToken.Clone() }
func (e *Engine) Tokens() *ledger.TokenBook  { return e.tokens }
func (e *Engine) Quote() *ledger.QuoteBook   { return e.quote }
func (e *Engine) Distributor() *fees.Distributor { return e.dist }
func (e *Engine) Scale() fixedpoint.QuoteScale   { return e.scale }

func (e *Engine) MarketPrice() *uint256.Int {
	return curve.MarketPrice(e.virt, e.real, e.reserveToken)
}

func (e *Engine) FloorPrice() *uint256.Int {
	return curve.FloorPrice(e.virt, e.tokens.MaxSupply())
}

// CreditOf returns the quote-wad amount the account may still borrow.
func (e *Engine) CreditOf(account string) *uint256.Int {
	return curve.CreditFor(e.tokens.BalanceOf(account), e.tokens.DebtOf(account), e.FloorPrice())
}

// TransferableOf returns the balance portion not locked as collateral.
func (e *Engine) TransferableOf(account string) *uint256.Int {
	return curve.TransferableFor(e.tokens.BalanceOf(account), e.tokens.DebtOf(account), e.FloorPrice())
}

// --- Trades ---

// BuyReceipt reports the effects of a buy for events and callers.
type BuyReceipt struct {
	QuoteInRaw  *uint256.Int
	FeeQuote    *uint256.Int // wad
	TokenOut    *uint256.Int // wad
	FeeRoutes   []fees.Route
	Redirected  *uint256.Int // wad, folded into backing
	MarketPrice *uint256.Int // wad, after
	FloorPrice  *uint256.Int // wad, after
}

// Buy pulls quoteInRaw from caller, takes the standing fee, prices the
// net amount on the curve and issues tokens to recipient. minTokenOut
// is wad.
func (e *Engine) Buy(caller, recipient, provider string, quoteInRaw, minTokenOut *uint256.Int) (*BuyReceipt, error) {
	return e.buy(caller, recipient, provider, quoteInRaw, minTokenOut, false)
}

// OpeningBuy is the single fee-exempt buy executed when a contribution
// sale converts into the market. No other caller may bypass the fee.
func (e *Engine) OpeningBuy(caller, recipient string, quoteInRaw *uint256.Int) (*BuyReceipt, error) {
	return e.buy(caller, recipient, "", quoteInRaw, uint256.NewInt(0), true)
}

func (e *Engine) buy(caller, recipient, provider string, quoteInRaw, minTokenOut *uint256.Int, feeExempt bool) (*BuyReceipt, error) {
	if quoteInRaw.IsZero() {
		return nil, revert.ErrZeroInput
	}

	quoteIn := e.scale.ToWad(quoteInRaw)

	fee := uint256.NewInt(0)
	if !feeExempt {
		fee = fixedpoint.BpsOf(quoteIn, e.feeRateBps)
	}
	net := new(uint256.Int).Sub(quoteIn, fee)
	if net.IsZero() {
		return nil, revert.ErrZeroInput
	}

	tokenOut := curve.BuyOut(e.virt, e.real, e.reserveToken, net)
	if tokenOut.Cmp(minTokenOut) < 0 {
		return nil, fmt.Errorf("%w: out %s < min %s", revert.ErrSlippageToleranceExceeded, tokenOut.Dec(), minTokenOut.Dec())
	}

	// Validation done; commit. Pull the full input first so fee routes
	// pay out of funds the engine actually holds.
	if err := e.quote.Transfer(caller, e.account, quoteInRaw); err != nil {
		return nil, fmt.Errorf("%w: %v", revert.ErrInsufficientBalance, err)
	}

	e.reserveToken.Sub(e.reserveToken, tokenOut)
	e.tokens.Mint(recipient, tokenOut)
	e.real.Add(e.real, net)

	receipt := &BuyReceipt{
		QuoteInRaw: quoteInRaw.Clone(),
		FeeQuote:   fee,
		TokenOut:   tokenOut,
		Redirected: uint256.NewInt(0),
	}

	if !fee.IsZero() {
		split := e.dist.Distribute(fee, provider)
		for _, route := range split.Routes {
			if err := e.quote.Transfer(e.account, route.Account, e.scale.FromWad(route.Amount)); err != nil {
				panic(fmt.Sprintf("FATAL: fee route exceeds engine holdings: %v", err))
			}
		}
		// Shares with no recipient permanently strengthen the backing,
		// exactly as a heal of the same amount would.
		if !split.Redirected.IsZero() {
			e.real.Add(e.real, split.Redirected)
			e.virt.Add(e.virt, curve.HealVirtIncrement(split.Redirected, e.reserveToken, e.tokens.TotalSupply()))
		}
		receipt.FeeRoutes = split.Routes
		receipt.Redirected = split.Redirected
	}

	receipt.MarketPrice = e.MarketPrice()
	receipt.FloorPrice = e.FloorPrice()
	e.assertInvariants("buy")
	return receipt, nil
}

// SellReceipt reports the effects of a sell.
type SellReceipt struct {
	TokenIn     *uint256.Int // wad
	FeeToken    *uint256.Int // wad
	QuoteOutRaw *uint256.Int
	FeeRoutes   []fees.Route
	Retired     *uint256.Int // wad removed from max supply
	MarketPrice *uint256.Int
	FloorPrice  *uint256.Int
}

// Sell retires tokenIn from caller, takes the fee in token units,
// prices the net amount and pays quote to recipient. minQuoteOutRaw is
// in raw quote units.
func (e *Engine) Sell(caller, recipient, provider string, tokenIn, minQuoteOutRaw *uint256.Int) (*SellReceipt, error) {
	if tokenIn.IsZero() {
		return nil, revert.ErrZeroInput
	}
	if e.tokens.BalanceOf(caller).Cmp(tokenIn) < 0 {
		return nil, revert.ErrInsufficientBalance
	}
	if e.TransferableOf(caller).Cmp(tokenIn) < 0 {
		return nil, revert.ErrCollateralLocked
	}

	fee := fixedpoint.BpsOf(tokenIn, e.feeRateBps)
	net := new(uint256.Int).Sub(tokenIn, fee)
	if net.IsZero() {
		return nil, revert.ErrZeroInput
	}

	quoteOut := curve.SellOut(e.virt, e.real, e.reserveToken, net)
	quoteOutRaw := e.scale.FromWad(quoteOut)
	if quoteOutRaw.Cmp(minQuoteOutRaw) < 0 {
		return nil, fmt.Errorf("%w: out %s < min %s", revert.ErrSlippageToleranceExceeded, quoteOutRaw.Dec(), minQuoteOutRaw.Dec())
	}

	// Commit.
	if err := e.tokens.Retire(caller, tokenIn); err != nil {
		panic(fmt.Sprintf("FATAL: retire after balance check: %v", err))
	}
	e.reserveToken.Add(e.reserveToken, net)
	e.real.Sub(e.real, quoteOut)
	if err := e.quote.Transfer(e.account, recipient, quoteOutRaw); err != nil {
		panic(fmt.Sprintf("FATAL: sell payout exceeds engine holdings: %v", err))
	}

	receipt := &SellReceipt{
		TokenIn:     tokenIn.Clone(),
		FeeToken:    fee,
		QuoteOutRaw: quoteOutRaw,
		Retired:     uint256.NewInt(0),
	}

	if !fee.IsZero() {
		split := e.dist.Distribute(fee, provider)
		for _, route := range split.Routes {
			e.tokens.Mint(route.Account, route.Amount)
		}
		// Token shares with no recipient are permanently retired: the
		// issuable ceiling shrinks by the redirected amount.
		if !split.Redirected.IsZero() {
			if err := e.tokens.ReduceMaxSupply(split.Redirected); err != nil {
				panic(fmt.Sprintf("FATAL: retire sell fee: %v", err))
			}
		}
		receipt.FeeRoutes = split.Routes
		receipt.Retired = split.Redirected
	}

	receipt.MarketPrice = e.MarketPrice()
	receipt.FloorPrice = e.FloorPrice()
	e.assertInvariants("sell")
	return receipt, nil
}

// --- Credit line ---

// Borrow pays amountRaw of quote to recipient against the caller's
// floor-valued balance. The curve reserves are untouched: the loan is a
// receivable fully collateralized by the locked balance portion, so
// pricing does not move on borrow.
func (e *Engine) Borrow(caller, recipient string, amountRaw *uint256.Int) error {
	if amountRaw.IsZero() {
		return revert.ErrZeroInput
	}
	amount := e.scale.ToWad(amountRaw)
	if amount.Cmp(e.CreditOf(caller)) > 0 {
		return revert.ErrCreditLimit
	}
	if e.quote.BalanceOf(e.account).Cmp(amountRaw) < 0 {
		return fmt.Errorf("%w: engine holds less than loan amount", revert.ErrInsufficientBalance)
	}

	e.tokens.AddDebt(caller, amount)
	if err := e.quote.Transfer(e.account, recipient, amountRaw); err != nil {
		panic(fmt.Sprintf("FATAL: loan payout after holdings check: %v", err))
	}
	e.assertInvariants("borrow")
	return nil
}

// Repay pulls up to amountRaw of quote from payer and reduces the
// account's debt, capped at the outstanding amount.
func (e *Engine) Repay(payer, account string, amountRaw *uint256.Int) (*uint256.Int, error) {
	if amountRaw.IsZero() {
		return nil, revert.ErrZeroInput
	}
	amount := e.scale.ToWad(amountRaw)
	outstanding := e.tokens.DebtOf(account)
	if amount.Cmp(outstanding) > 0 {
		amount = outstanding
	}
	if amount.IsZero() {
		return uint256.NewInt(0), nil
	}

	appliedRaw := e.scale.FromWadCeil(amount)
	if err := e.quote.Transfer(payer, e.account, appliedRaw); err != nil {
		return nil, fmt.Errorf("%w: %v", revert.ErrInsufficientBalance, err)
	}
	e.tokens.ReduceDebt(account, amount)
	e.assertInvariants("repay")
	return appliedRaw, nil
}

// --- Backing operations ---

// Heal pulls amountRaw of quote from caller and folds it fully into the
// backing: real grows by the donation, virt grows in proportion to the
// unissued share, so both floor and market price rise without issuing
// tokens. Permissionless and irreversible.
func (e *Engine) Heal(caller string, amountRaw *uint256.Int) error {
	if amountRaw.IsZero() {
		return revert.ErrZeroInput
	}
	if err := e.quote.Transfer(caller, e.account, amountRaw); err != nil {
		return fmt.Errorf("%w: %v", revert.ErrInsufficientBalance, err)
	}
	amount := e.scale.ToWad(amountRaw)
	e.real.Add(e.real, amount)
	e.virt.Add(e.virt, curve.HealVirtIncrement(amount, e.reserveToken, e.tokens.TotalSupply()))
	e.assertInvariants("heal")
	return nil
}

// Burn voluntarily retires amount (wad) of the caller's transferable
// balance and lowers the issuable ceiling by the same amount. The
// reserves are untouched: floor price rises because max supply falls.
func (e *Engine) Burn(caller string, amount *uint256.Int) error {
	if amount.IsZero() {
		return revert.ErrZeroInput
	}
	if e.tokens.BalanceOf(caller).Cmp(amount) < 0 {
		return revert.ErrInsufficientBalance
	}
	if e.TransferableOf(caller).Cmp(amount) < 0 {
		return revert.ErrCollateralLocked
	}

	if err := e.tokens.Retire(caller, amount); err != nil {
		panic(fmt.Sprintf("FATAL: burn after balance check: %v", err))
	}
	if err := e.tokens.ReduceMaxSupply(amount); err != nil {
		panic(fmt.Sprintf("FATAL: burn exceeds max supply: %v", err))
	}
	e.assertInvariants("burn")
	return nil
}

// Transfer moves tokens between accounts, refusing to move collateral
// backing outstanding debt. The same lock applies to sell and burn.
func (e *Engine) Transfer(caller, to string, amount *uint256.Int) error {
	if amount.IsZero() {
		return revert.ErrZeroInput
	}
	if e.tokens.BalanceOf(caller).Cmp(amount) < 0 {
		return revert.ErrInsufficientBalance
	}
	if e.TransferableOf(caller).Cmp(amount) < 0 {
		return revert.ErrCollateralLocked
	}
	if err := e.tokens.Transfer(caller, to, amount); err != nil {
		panic(fmt.Sprintf("FATAL: transfer after balance check: %v", err))
	}
	e.assertInvariants("transfer")
	return nil
}

// --- Invariants ---

// assertInvariants panics on violation: a broken invariant after a
// committed operation is an engine bug, not a caller error.
func (e *Engine) assertInvariants(op string) {
	// Max-reserve covers max-supply.
	issuable := new(uint256.Int).Add(e.reserveToken, e.tokens.TotalSupply())
	if issuable.Cmp(e.tokens.MaxSupply()) < 0 {
		panic(fmt.Sprintf("FATAL: %s: reserveToken+totalSupply %s < maxSupply %s",
			op, issuable.Dec(), e.tokens.MaxSupply().Dec()))
	}

	// Held quote plus floor-collateralized receivables covers the real
	// reserve. Payout rounding leaves residue on the engine side, so
	// held may exceed, never undershoot.
	held := e.scale.ToWad(e.quote.BalanceOf(e.account))
	held.Add(held, e.tokens.TotalDebt())
	if held.Cmp(e.real) < 0 {
		panic(fmt.Sprintf("FATAL: %s: held quote %s < reserveRealQuote %s", op, held.Dec(), e.real.Dec()))
	}

	// Floor backing is covered by the unissued-token share.
	if !issuable.IsZero() {
		backing := fixedpoint.MulDiv(curve.TotalQuote(e.virt, e.real), e.reserveToken, issuable)
		if backing.Cmp(e.virt) < 0 {
			panic(fmt.Sprintf("FATAL: %s: floor backing %s < reserveVirtQuote %s", op, backing.Dec(), e.virt.Dec()))
		}
	}

	if err := e.tokens.ValidateDebtSum(); err != nil {
		panic(fmt.Sprintf("FATAL: %s: %v", op, err))
	}
}
