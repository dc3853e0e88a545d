package reserve

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"CurveBank/internal/fees"
	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/ledger"
	"CurveBank/internal/revert"
)

// Standard fixture: 6-decimal quote, 100 quote of virtual backing,
// 1,000,000 token ceiling. A 100-quote opening buy then issues exactly
// half the reserve at a floor of 0.0001.
func newTestEngine(t *testing.T, feeBps uint64, dist *fees.Distributor) *Engine {
	t.Helper()

	scale, err := fixedpoint.NewQuoteScale(6)
	if err != nil {
		t.Fatalf("NewQuoteScale: %v", err)
	}

	cfg := Config{
		FeeRateBps:       feeBps,
		InitialVirtQuote: wad(100),
		MaxSupply:        wad(1_000_000),
	}
	if dist == nil {
		dist = fees.NewDistributor("owner", "treasury")
	}
	return NewEngine("reserve:test", cfg, ledger.NewTokenBook(cfg.MaxSupply), ledger.NewQuoteBook(), scale, dist)
}

func wad(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), fixedpoint.Wad())
}

// raw quote units at 6 decimals.
func raw(units uint64) *uint256.Int {
	return uint256.NewInt(units * 1_000_000)
}

func open(t *testing.T, e *Engine, holder string) {
	t.Helper()
	e.Quote().Deposit(holder, raw(100))
	receipt, err := e.OpeningBuy(holder, holder, raw(100))
	if err != nil {
		t.Fatalf("OpeningBuy: %v", err)
	}
	if receipt.TokenOut.Cmp(wad(500_000)) != 0 {
		t.Fatalf("opening TokenOut = %s, want 500000", receipt.TokenOut.Dec())
	}
}

func TestOpeningBuyIsFeeExempt(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	if got := e.RealQuote(); got.Cmp(wad(100)) != 0 {
		t.Errorf("RealQuote = %s, want 100", got.Dec())
	}
	if got := e.ReserveToken(); got.Cmp(wad(500_000)) != 0 {
		t.Errorf("ReserveToken = %s, want 500000", got.Dec())
	}
	if got := e.Tokens().BalanceOf("alice"); got.Cmp(wad(500_000)) != 0 {
		t.Errorf("BalanceOf(alice) = %s, want 500000", got.Dec())
	}

	// price = 200/500000 = 0.0004, floor = 100/1000000 = 0.0001
	if got := e.MarketPrice(); got.Cmp(uint256.NewInt(400_000_000_000_000)) != 0 {
		t.Errorf("MarketPrice = %s, want 4e14", got.Dec())
	}
	if got := e.FloorPrice(); got.Cmp(uint256.NewInt(100_000_000_000_000)) != 0 {
		t.Errorf("FloorPrice = %s, want 1e14", got.Dec())
	}
}

func TestBuyZeroFeeRoundTrip(t *testing.T) {
	e := newTestEngine(t, 0, nil)

	e.Quote().Deposit("alice", raw(100))
	receipt, err := e.Buy("alice", "alice", "", raw(100), wad(500_000))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if receipt.TokenOut.Cmp(wad(500_000)) != 0 {
		t.Errorf("TokenOut = %s, want 500000", receipt.TokenOut.Dec())
	}
	if !receipt.FeeQuote.IsZero() {
		t.Errorf("FeeQuote = %s, want 0", receipt.FeeQuote.Dec())
	}

	// Selling the whole position unwinds the curve exactly.
	sellReceipt, err := e.Sell("alice", "alice", "", wad(500_000), raw(100))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if sellReceipt.QuoteOutRaw.Cmp(raw(100)) != 0 {
		t.Errorf("QuoteOutRaw = %s, want 100e6", sellReceipt.QuoteOutRaw.Dec())
	}
	if got := e.Quote().BalanceOf("alice"); got.Cmp(raw(100)) != 0 {
		t.Errorf("alice quote after round trip = %s, want 100e6", got.Dec())
	}
	if got := e.RealQuote(); !got.IsZero() {
		t.Errorf("RealQuote after round trip = %s, want 0", got.Dec())
	}
	if got := e.Tokens().TotalSupply(); !got.IsZero() {
		t.Errorf("TotalSupply after round trip = %s, want 0", got.Dec())
	}
}

func TestBuyChargesFeeAndRoutesIt(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "seed")

	e.Quote().Deposit("alice", raw(10))
	receipt, err := e.Buy("alice", "alice", "provider", raw(10), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// 1% of 10 quote.
	wantFee := uint256.NewInt(100_000_000_000_000_000)
	if receipt.FeeQuote.Cmp(wantFee) != 0 {
		t.Errorf("FeeQuote = %s, want %s", receipt.FeeQuote.Dec(), wantFee.Dec())
	}

	// Owner, provider and treasury are all set: every share routes, the
	// sum is exact and nothing is redirected.
	routed := uint256.NewInt(0)
	for _, r := range receipt.FeeRoutes {
		routed.Add(routed, r.Amount)
	}
	if routed.Cmp(wantFee) != 0 {
		t.Errorf("routed fees = %s, want %s", routed.Dec(), wantFee.Dec())
	}
	if !receipt.Redirected.IsZero() {
		t.Errorf("Redirected = %s, want 0", receipt.Redirected.Dec())
	}

	// Each recipient holds its share in raw units.
	scale := e.Scale()
	for _, r := range receipt.FeeRoutes {
		if got := e.Quote().BalanceOf(r.Account); got.Cmp(scale.FromWad(r.Amount)) != 0 {
			t.Errorf("%s balance = %s, want %s", r.Account, got.Dec(), scale.FromWad(r.Amount).Dec())
		}
	}

	// Only the net amount entered the reserve.
	wantReal := new(uint256.Int).Add(wad(100), new(uint256.Int).Sub(wad(10), wantFee))
	if got := e.RealQuote(); got.Cmp(wantReal) != 0 {
		t.Errorf("RealQuote = %s, want %s", got.Dec(), wantReal.Dec())
	}
}

func TestBuyRedirectedFeeStrengthensBacking(t *testing.T) {
	// No owner, no treasury, no provider: the whole fee folds into the
	// backing and the floor rises.
	e := newTestEngine(t, 100, fees.NewDistributor("", ""))
	open(t, e, "seed")

	floorBefore := e.FloorPrice()
	virtBefore := e.VirtQuote()

	e.Quote().Deposit("alice", raw(10))
	receipt, err := e.Buy("alice", "alice", "", raw(10), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if receipt.Redirected.Cmp(receipt.FeeQuote) != 0 {
		t.Errorf("Redirected = %s, want full fee %s", receipt.Redirected.Dec(), receipt.FeeQuote.Dec())
	}
	if len(receipt.FeeRoutes) != 0 {
		t.Errorf("FeeRoutes = %+v, want none", receipt.FeeRoutes)
	}

	if e.VirtQuote().Cmp(virtBefore) <= 0 {
		t.Error("virtual backing did not grow from redirected fee")
	}
	if e.FloorPrice().Cmp(floorBefore) <= 0 {
		t.Error("floor price did not rise from redirected fee")
	}
}

func TestBuyRejections(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "seed")

	if _, err := e.Buy("alice", "alice", "", uint256.NewInt(0), uint256.NewInt(0)); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("zero buy = %v, want ZeroInput", err)
	}

	e.Quote().Deposit("alice", raw(1))
	if _, err := e.Buy("alice", "alice", "", raw(1), wad(600_000)); !errors.Is(err, revert.ErrSlippageToleranceExceeded) {
		t.Errorf("tight min out = %v, want SlippageToleranceExceeded", err)
	}
	if _, err := e.Buy("alice", "alice", "", raw(2), uint256.NewInt(0)); !errors.Is(err, revert.ErrInsufficientBalance) {
		t.Errorf("buy over balance = %v, want InsufficientBalance", err)
	}

	// Failed buys leave no trace.
	if got := e.Quote().BalanceOf("alice"); got.Cmp(raw(1)) != 0 {
		t.Errorf("alice quote after failed buys = %s, want 1e6", got.Dec())
	}
	if got := e.RealQuote(); got.Cmp(wad(100)) != 0 {
		t.Errorf("RealQuote after failed buys = %s, want 100", got.Dec())
	}
}

func TestSellChargesFeeInTokens(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	receipt, err := e.Sell("alice", "alice", "provider", wad(100_000), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	if receipt.FeeToken.Cmp(wad(1_000)) != 0 {
		t.Errorf("FeeToken = %s, want 1000", receipt.FeeToken.Dec())
	}
	if receipt.QuoteOutRaw.IsZero() {
		t.Error("QuoteOutRaw = 0, want positive")
	}
	// Fee shares are minted to recipients in token units.
	routed := uint256.NewInt(0)
	for _, r := range receipt.FeeRoutes {
		routed.Add(routed, r.Amount)
		if got := e.Tokens().BalanceOf(r.Account); got.Cmp(r.Amount) != 0 {
			t.Errorf("%s token balance = %s, want %s", r.Account, got.Dec(), r.Amount.Dec())
		}
	}
	total := new(uint256.Int).Add(routed, receipt.Retired)
	if total.Cmp(receipt.FeeToken) != 0 {
		t.Errorf("routed+retired = %s, want %s", total.Dec(), receipt.FeeToken.Dec())
	}

	if got := e.Quote().BalanceOf("alice"); got.Cmp(receipt.QuoteOutRaw) != 0 {
		t.Errorf("alice quote = %s, want payout %s", got.Dec(), receipt.QuoteOutRaw.Dec())
	}
}

func TestSellRetiredFeeShrinksMaxSupply(t *testing.T) {
	e := newTestEngine(t, 100, fees.NewDistributor("", ""))
	open(t, e, "alice")

	maxBefore := e.Tokens().MaxSupply()
	receipt, err := e.Sell("alice", "alice", "", wad(100_000), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if receipt.Retired.Cmp(receipt.FeeToken) != 0 {
		t.Errorf("Retired = %s, want full fee %s", receipt.Retired.Dec(), receipt.FeeToken.Dec())
	}
	wantMax := new(uint256.Int).Sub(maxBefore, receipt.Retired)
	if got := e.Tokens().MaxSupply(); got.Cmp(wantMax) != 0 {
		t.Errorf("MaxSupply = %s, want %s", got.Dec(), wantMax.Dec())
	}
}

func TestSellRejections(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	if _, err := e.Sell("alice", "alice", "", uint256.NewInt(0), uint256.NewInt(0)); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("zero sell = %v, want ZeroInput", err)
	}
	if _, err := e.Sell("alice", "alice", "", wad(500_001), uint256.NewInt(0)); !errors.Is(err, revert.ErrInsufficientBalance) {
		t.Errorf("sell over balance = %v, want InsufficientBalance", err)
	}
	if _, err := e.Sell("alice", "alice", "", wad(100_000), raw(1_000)); !errors.Is(err, revert.ErrSlippageToleranceExceeded) {
		t.Errorf("tight min out = %v, want SlippageToleranceExceeded", err)
	}
}

func TestBorrowAgainstFloorValue(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	// 500,000 tokens at floor 0.0001 back a 50-quote credit line.
	if got := e.CreditOf("alice"); got.Cmp(wad(50)) != 0 {
		t.Fatalf("CreditOf = %s, want 50", got.Dec())
	}

	if err := e.Borrow("alice", "alice", raw(50)); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if got := e.Quote().BalanceOf("alice"); got.Cmp(raw(50)) != 0 {
		t.Errorf("alice quote = %s, want 50e6", got.Dec())
	}
	if got := e.Tokens().DebtOf("alice"); got.Cmp(wad(50)) != 0 {
		t.Errorf("DebtOf = %s, want 50", got.Dec())
	}
	if got := e.CreditOf("alice"); !got.IsZero() {
		t.Errorf("CreditOf after maxing out = %s, want 0", got.Dec())
	}

	if err := e.Borrow("alice", "alice", raw(1)); !errors.Is(err, revert.ErrCreditLimit) {
		t.Errorf("Borrow over credit = %v, want CreditLimit", err)
	}
	if err := e.Borrow("alice", "alice", uint256.NewInt(0)); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("zero Borrow = %v, want ZeroInput", err)
	}

	// Borrowing moves no reserves: pricing is untouched.
	if got := e.RealQuote(); got.Cmp(wad(100)) != 0 {
		t.Errorf("RealQuote after borrow = %s, want 100", got.Dec())
	}
	if got := e.MarketPrice(); got.Cmp(uint256.NewInt(400_000_000_000_000)) != 0 {
		t.Errorf("MarketPrice after borrow = %s, want 4e14", got.Dec())
	}
}

func TestDebtLocksCollateral(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	// A 25-quote debt locks 250,000 tokens at the 0.0001 floor.
	if err := e.Borrow("alice", "alice", raw(25)); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if got := e.TransferableOf("alice"); got.Cmp(wad(250_000)) != 0 {
		t.Fatalf("TransferableOf = %s, want 250000", got.Dec())
	}

	if err := e.Transfer("alice", "bob", wad(250_001)); !errors.Is(err, revert.ErrCollateralLocked) {
		t.Errorf("Transfer into lock = %v, want CollateralLocked", err)
	}
	if _, err := e.Sell("alice", "alice", "", wad(250_001), uint256.NewInt(0)); !errors.Is(err, revert.ErrCollateralLocked) {
		t.Errorf("Sell into lock = %v, want CollateralLocked", err)
	}
	if err := e.Burn("alice", wad(250_001)); !errors.Is(err, revert.ErrCollateralLocked) {
		t.Errorf("Burn into lock = %v, want CollateralLocked", err)
	}

	// The free portion moves normally.
	if err := e.Transfer("alice", "bob", wad(250_000)); err != nil {
		t.Errorf("Transfer of free portion: %v", err)
	}
}

func TestRepayCapsAtOutstanding(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	if err := e.Borrow("alice", "alice", raw(50)); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	e.Quote().Deposit("alice", raw(50))

	// Overpayment only pulls the outstanding amount.
	applied, err := e.Repay("alice", "alice", raw(100))
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if applied.Cmp(raw(50)) != 0 {
		t.Errorf("applied = %s, want 50e6", applied.Dec())
	}
	if got := e.Tokens().DebtOf("alice"); !got.IsZero() {
		t.Errorf("DebtOf after repay = %s, want 0", got.Dec())
	}
	if got := e.TransferableOf("alice"); got.Cmp(wad(500_000)) != 0 {
		t.Errorf("TransferableOf after repay = %s, want full balance", got.Dec())
	}

	// Nothing outstanding: nothing pulled.
	applied, err = e.Repay("alice", "alice", raw(10))
	if err != nil {
		t.Fatalf("Repay on clean account: %v", err)
	}
	if !applied.IsZero() {
		t.Errorf("applied on clean account = %s, want 0", applied.Dec())
	}
}

func TestRepayByThirdParty(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	if err := e.Borrow("alice", "alice", raw(25)); err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	e.Quote().Deposit("bob", raw(25))
	applied, err := e.Repay("bob", "alice", raw(25))
	if err != nil {
		t.Fatalf("Repay by third party: %v", err)
	}
	if applied.Cmp(raw(25)) != 0 {
		t.Errorf("applied = %s, want 25e6", applied.Dec())
	}
	if got := e.Tokens().DebtOf("alice"); !got.IsZero() {
		t.Errorf("DebtOf(alice) = %s, want 0", got.Dec())
	}
	if got := e.Quote().BalanceOf("bob"); !got.IsZero() {
		t.Errorf("bob quote = %s, want 0", got.Dec())
	}
}

func TestHealRaisesBothPrices(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	priceBefore := e.MarketPrice()
	floorBefore := e.FloorPrice()
	creditBefore := e.CreditOf("alice")

	e.Quote().Deposit("donor", raw(50))
	if err := e.Heal("donor", raw(50)); err != nil {
		t.Fatalf("Heal: %v", err)
	}

	// real grows by the donation; virt by donation * T/S = 50 * 1 = 50.
	if got := e.RealQuote(); got.Cmp(wad(150)) != 0 {
		t.Errorf("RealQuote = %s, want 150", got.Dec())
	}
	if got := e.VirtQuote(); got.Cmp(wad(150)) != 0 {
		t.Errorf("VirtQuote = %s, want 150", got.Dec())
	}
	if e.MarketPrice().Cmp(priceBefore) <= 0 {
		t.Error("market price did not rise after heal")
	}
	if e.FloorPrice().Cmp(floorBefore) <= 0 {
		t.Error("floor price did not rise after heal")
	}
	// A higher floor widens every holder's credit line.
	if e.CreditOf("alice").Cmp(creditBefore) <= 0 {
		t.Error("credit did not widen after heal")
	}

	e.Quote().Deposit("donor", raw(1))
	if err := e.Heal("donor", raw(2)); !errors.Is(err, revert.ErrInsufficientBalance) {
		t.Errorf("Heal over balance = %v, want InsufficientBalance", err)
	}
}

func TestBurnRaisesFloor(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	floorBefore := e.FloorPrice()
	if err := e.Burn("alice", wad(100_000)); err != nil {
		t.Fatalf("Burn: %v", err)
	}

	if got := e.Tokens().BalanceOf("alice"); got.Cmp(wad(400_000)) != 0 {
		t.Errorf("BalanceOf after burn = %s, want 400000", got.Dec())
	}
	if got := e.Tokens().MaxSupply(); got.Cmp(wad(900_000)) != 0 {
		t.Errorf("MaxSupply after burn = %s, want 900000", got.Dec())
	}
	if e.FloorPrice().Cmp(floorBefore) <= 0 {
		t.Error("floor price did not rise after burn")
	}

	if err := e.Burn("alice", wad(400_001)); !errors.Is(err, revert.ErrInsufficientBalance) {
		t.Errorf("Burn over balance = %v, want InsufficientBalance", err)
	}
	if err := e.Burn("alice", uint256.NewInt(0)); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("zero Burn = %v, want ZeroInput", err)
	}
}

func TestTransferRejections(t *testing.T) {
	e := newTestEngine(t, 100, nil)
	open(t, e, "alice")

	if err := e.Transfer("alice", "bob", uint256.NewInt(0)); !errors.Is(err, revert.ErrZeroInput) {
		t.Errorf("zero Transfer = %v, want ZeroInput", err)
	}
	if err := e.Transfer("alice", "bob", wad(500_001)); !errors.Is(err, revert.ErrInsufficientBalance) {
		t.Errorf("Transfer over balance = %v, want InsufficientBalance", err)
	}
	if err := e.Transfer("alice", "bob", wad(500_000)); err != nil {
		t.Errorf("full Transfer: %v", err)
	}
	if got := e.Tokens().BalanceOf("bob"); got.Cmp(wad(500_000)) != 0 {
		t.Errorf("BalanceOf(bob) = %s, want 500000", got.Dec())
	}
}
