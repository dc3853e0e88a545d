package market

import (
	"fmt"
	"sync"
	"time"

	"CurveBank/internal/event"
	"CurveBank/internal/fees"
	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/ledger"
	"CurveBank/internal/observability"
	"CurveBank/internal/reserve"
	"CurveBank/internal/revert"
	"CurveBank/internal/sale"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Config fixes a market instance's parameters at creation.
type Config struct {
	QuoteDecimals uint8
	FeeRateBps    uint64
	// InitialVirtQuote seeds the curve's virtual backing (wad).
	InitialVirtQuote *uint256.Int
	// MaxSupply is the issuable token ceiling (wad).
	MaxSupply *uint256.Int
	// SaleDuration is the contribution window length in microseconds.
	SaleDuration int64
	Owner        string
	Treasury     string
}

func (c Config) validate() error {
	if c.InitialVirtQuote == nil || c.InitialVirtQuote.IsZero() {
		return fmt.Errorf("%w: initial virtual quote", revert.ErrZeroInput)
	}
	if c.MaxSupply == nil || c.MaxSupply.IsZero() {
		return fmt.Errorf("%w: max supply", revert.ErrZeroInput)
	}
	if c.SaleDuration <= 0 {
		return fmt.Errorf("%w: sale duration", revert.ErrZeroInput)
	}
	if c.FeeRateBps >= 10_000 {
		return fmt.Errorf("fee rate %d bps consumes entire input", c.FeeRateBps)
	}
	return nil
}

// Market is one token instance: the contribution sale, the reserve
// engine and the fee policy behind a single mutex. All public methods
// are safe for concurrent use; inside, operations run strictly one at
// a time and read the clock exactly once.
type Market struct {
	id string

	mu       sync.Mutex
	inFlight bool

	clock  Clock
	seq    int64
	hasher *StateHasher

	engine *reserve.Engine
	sale   *sale.Sale
	dist   *fees.Distributor

	// saleAccount escrows contributions in the quote book and holds the
	// opening token batch until redemption.
	saleAccount string

	persistCh chan<- *event.Envelope
	publishCh chan<- *event.Envelope

	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewMarket(
	id string,
	cfg Config,
	clock Clock,
	persistCh, publishCh chan<- *event.Envelope,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) (*Market, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	scale, err := fixedpoint.NewQuoteScale(cfg.QuoteDecimals)
	if err != nil {
		return nil, err
	}

	dist := fees.NewDistributor(cfg.Owner, cfg.Treasury)
	tokens := ledger.NewTokenBook(cfg.MaxSupply)
	quote := ledger.NewQuoteBook()
	engine := reserve.NewEngine("reserve:"+id, reserve.Config{
		FeeRateBps:       cfg.FeeRateBps,
		InitialVirtQuote: cfg.InitialVirtQuote,
		MaxSupply:        cfg.MaxSupply,
	}, tokens, quote, scale, dist)

	now := clock.Now()
	m := &Market{
		id:          id,
		clock:       clock,
		hasher:      NewStateHasher(),
		engine:      engine,
		sale:        sale.New(now + cfg.SaleDuration),
		dist:        dist,
		saleAccount: "sale:" + id,
		persistCh:   persistCh,
		publishCh:   publishCh,
		metrics:     metrics,
		log:         logger.With().Str("instance", id).Logger(),
	}

	m.emit(now, event.TypeMarketCreated, event.MarketCreated{
		Instance:         id,
		QuoteDecimals:    cfg.QuoteDecimals,
		FeeRateBps:       cfg.FeeRateBps,
		InitialVirtQuote: cfg.InitialVirtQuote.Dec(),
		MaxSupply:        cfg.MaxSupply.Dec(),
		SaleEnd:          m.sale.EndTimestamp(),
		Owner:            cfg.Owner,
	})
	m.log.Info().
		Int64("sale_end", m.sale.EndTimestamp()).
		Uint64("fee_rate_bps", cfg.FeeRateBps).
		Msg("market created")
	return m, nil
}

func (m *Market) ID() string { return m.id }

// --- Funding rail ---

// DepositQuote credits external quote funds to an account. This is the
// boundary where money enters the books; it bypasses the operation
// pipeline because nothing priced or hashed depends on idle balances
// until they move.
func (m *Market) DepositQuote(account string, amountRaw *uint256.Int) error {
	if amountRaw.IsZero() {
		return revert.ErrZeroInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine.Quote().Deposit(account, amountRaw)
	return nil
}

// --- Sale phase ---

// Contribute pulls amountRaw of quote from caller into the sale escrow
// and credits the contribution to beneficiary (caller if empty).
func (m *Market) Contribute(caller, beneficiary string, amountRaw *uint256.Int, deadline int64) error {
	release, now, err := m.begin("contribute", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if beneficiary == "" {
		beneficiary = caller
	}
	if amountRaw.IsZero() {
		return m.reject("contribute", revert.ErrZeroInput)
	}
	// The window closes at its end timestamp even before anyone opens
	// the market: the pot is frozen, not growing.
	if m.sale.Ended() || now > m.sale.EndTimestamp() {
		return m.reject("contribute", revert.ErrClosed)
	}
	if err := m.engine.Quote().Transfer(caller, m.saleAccount, amountRaw); err != nil {
		return m.reject("contribute", fmt.Errorf("%w: %v", revert.ErrInsufficientBalance, err))
	}
	if err := m.sale.Contribute(beneficiary, amountRaw, now); err != nil {
		panic(fmt.Sprintf("FATAL: contribution record after window check: %v", err))
	}

	m.emit(now, event.TypeContributionRecorded, event.ContributionRecorded{
		Account:          beneficiary,
		Amount:           amountRaw.Dec(),
		TotalContributed: m.sale.TotalContributed().Dec(),
	})
	m.finish("contribute", start)
	return nil
}

// OpenMarket converts the whole contribution pot into tokens with one
// fee-exempt opening buy. Permissionless once the window has elapsed.
func (m *Market) OpenMarket(deadline int64) error {
	release, now, err := m.begin("open_market", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.sale.CanOpen(now); err != nil {
		return m.reject("open_market", err)
	}
	if err := m.openMarket(now); err != nil {
		return m.reject("open_market", err)
	}
	m.finish("open_market", start)
	return nil
}

// openMarket runs under the lock with CanOpen already verified.
func (m *Market) openMarket(now int64) error {
	total := m.sale.TotalContributed()

	opening := uint256.NewInt(0)
	if !total.IsZero() {
		receipt, err := m.engine.OpeningBuy(m.saleAccount, m.saleAccount, total)
		if err != nil {
			panic(fmt.Sprintf("FATAL: opening buy with escrowed pot: %v", err))
		}
		opening = receipt.TokenOut
	}
	m.sale.MarkOpened(opening)

	m.emit(now, event.TypeMarketOpened, event.MarketOpened{
		TotalQuoteContributed: total.Dec(),
		OpeningTokens:         opening.Dec(),
		MarketPrice:           m.engine.MarketPrice().Dec(),
		FloorPrice:            m.engine.FloorPrice().Dec(),
	})
	m.log.Info().
		Str("total_contributed", total.Dec()).
		Str("opening_tokens", opening.Dec()).
		Msg("market opened")
	return nil
}

// Redeem pays out the caller's pro-rata share of the opening batch. The
// first redemption after the window elapses opens the market itself, so
// no separate keeper is required.
func (m *Market) Redeem(caller string, deadline int64) (*uint256.Int, error) {
	release, now, err := m.begin("redeem", deadline)
	if err != nil {
		return nil, err
	}
	defer release()
	start := time.Now()

	if !m.sale.Ended() {
		if err := m.sale.CanOpen(now); err != nil {
			return nil, m.reject("redeem", fmt.Errorf("%w: sale window still open", revert.ErrNotEligible))
		}
		if err := m.openMarket(now); err != nil {
			return nil, m.reject("redeem", err)
		}
	}

	share, err := m.sale.Redeem(caller)
	if err != nil {
		return nil, m.reject("redeem", err)
	}
	// Dust contributions can round to a zero share; the claim is still
	// consumed.
	if !share.IsZero() {
		if err := m.engine.Transfer(m.saleAccount, caller, share); err != nil {
			panic(fmt.Sprintf("FATAL: redeem payout from opening batch: %v", err))
		}
	}

	m.emit(now, event.TypeRedeemed, event.Redeemed{
		Account: caller,
		Tokens:  share.Dec(),
	})
	m.finish("redeem", start)
	return share, nil
}

// --- Trading ---

// Buy swaps quoteInRaw for tokens at the curve price. minTokenOut is
// wad; recipient defaults to caller.
func (m *Market) Buy(caller, recipient, provider string, quoteInRaw, minTokenOut *uint256.Int, deadline int64) (*reserve.BuyReceipt, error) {
	release, now, err := m.begin("buy", deadline)
	if err != nil {
		return nil, err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return nil, m.reject("buy", err)
	}
	if recipient == "" {
		recipient = caller
	}

	receipt, err := m.engine.Buy(caller, recipient, provider, quoteInRaw, minTokenOut)
	if err != nil {
		return nil, m.reject("buy", err)
	}

	m.emit(now, event.TypeBought, event.Bought{
		Caller:      caller,
		Recipient:   recipient,
		Provider:    provider,
		QuoteIn:     receipt.QuoteInRaw.Dec(),
		TokenOut:    receipt.TokenOut.Dec(),
		Fee:         receipt.FeeQuote.Dec(),
		MarketPrice: receipt.MarketPrice.Dec(),
		FloorPrice:  receipt.FloorPrice.Dec(),
	})
	m.emitFees(now, receipt.FeeRoutes, receipt.Redirected, "quote")
	m.finish("buy", start)
	return receipt, nil
}

// Sell swaps tokenIn (wad) back into quote. minQuoteOutRaw is in raw
// quote units; recipient defaults to caller.
func (m *Market) Sell(caller, recipient, provider string, tokenIn, minQuoteOutRaw *uint256.Int, deadline int64) (*reserve.SellReceipt, error) {
	release, now, err := m.begin("sell", deadline)
	if err != nil {
		return nil, err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return nil, m.reject("sell", err)
	}
	if recipient == "" {
		recipient = caller
	}

	receipt, err := m.engine.Sell(caller, recipient, provider, tokenIn, minQuoteOutRaw)
	if err != nil {
		return nil, m.reject("sell", err)
	}

	m.emit(now, event.TypeSold, event.Sold{
		Caller:      caller,
		Recipient:   recipient,
		Provider:    provider,
		TokenIn:     receipt.TokenIn.Dec(),
		QuoteOut:    receipt.QuoteOutRaw.Dec(),
		Fee:         receipt.FeeToken.Dec(),
		MarketPrice: receipt.MarketPrice.Dec(),
		FloorPrice:  receipt.FloorPrice.Dec(),
	})
	m.emitFees(now, receipt.FeeRoutes, receipt.Retired, "token")
	m.finish("sell", start)
	return receipt, nil
}

// --- Credit line ---

// Borrow draws amountRaw of quote against the caller's floor-valued
// token balance. Recipient defaults to caller.
func (m *Market) Borrow(caller, recipient string, amountRaw *uint256.Int, deadline int64) error {
	release, now, err := m.begin("borrow", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return m.reject("borrow", err)
	}
	if recipient == "" {
		recipient = caller
	}
	if err := m.engine.Borrow(caller, recipient, amountRaw); err != nil {
		return m.reject("borrow", err)
	}

	m.emit(now, event.TypeBorrowed, event.Borrowed{
		Account:   caller,
		Recipient: recipient,
		Amount:    amountRaw.Dec(),
	})
	m.finish("borrow", start)
	return nil
}

// Repay pays down the account's debt with payer's quote, capped at the
// outstanding amount. Anyone may repay for anyone. Returns the raw
// amount actually pulled.
func (m *Market) Repay(payer, account string, amountRaw *uint256.Int, deadline int64) (*uint256.Int, error) {
	release, now, err := m.begin("repay", deadline)
	if err != nil {
		return nil, err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return nil, m.reject("repay", err)
	}
	if account == "" {
		account = payer
	}
	applied, err := m.engine.Repay(payer, account, amountRaw)
	if err != nil {
		return nil, m.reject("repay", err)
	}

	m.emit(now, event.TypeRepaid, event.Repaid{
		Payer:   payer,
		Account: account,
		Amount:  applied.Dec(),
	})
	m.finish("repay", start)
	return applied, nil
}

// --- Backing operations ---

// Heal donates amountRaw of quote irreversibly into the reserve
// backing. Permissionless, allowed in both phases.
func (m *Market) Heal(caller string, amountRaw *uint256.Int, deadline int64) error {
	release, now, err := m.begin("heal", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.engine.Heal(caller, amountRaw); err != nil {
		return m.reject("heal", err)
	}

	m.emit(now, event.TypeHealed, event.Healed{
		Caller:      caller,
		Amount:      amountRaw.Dec(),
		MarketPrice: m.engine.MarketPrice().Dec(),
		FloorPrice:  m.engine.FloorPrice().Dec(),
	})
	m.finish("heal", start)
	return nil
}

// Burn retires amount (wad) of the caller's transferable balance and
// lowers the issuable ceiling.
func (m *Market) Burn(caller string, amount *uint256.Int, deadline int64) error {
	release, now, err := m.begin("burn", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return m.reject("burn", err)
	}
	if err := m.engine.Burn(caller, amount); err != nil {
		return m.reject("burn", err)
	}

	m.emit(now, event.TypeBurned, event.Burned{
		Account:    caller,
		Amount:     amount.Dec(),
		MaxSupply:  m.engine.Tokens().MaxSupply().Dec(),
		FloorPrice: m.engine.FloorPrice().Dec(),
	})
	m.finish("burn", start)
	return nil
}

// Transfer moves amount (wad) of tokens from caller to another account,
// refusing to move collateral locked under debt.
func (m *Market) Transfer(caller, to string, amount *uint256.Int, deadline int64) error {
	release, now, err := m.begin("transfer", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.requireOpen(); err != nil {
		return m.reject("transfer", err)
	}
	if err := m.engine.Transfer(caller, to, amount); err != nil {
		return m.reject("transfer", err)
	}

	m.emit(now, event.TypeTransferred, event.Transferred{
		From:   caller,
		To:     to,
		Amount: amount.Dec(),
	})
	m.finish("transfer", start)
	return nil
}

// --- Fee policy ---

// SetOwnerFeeStatus toggles whether the owner's fee share is collected
// or redirected into the backing. Owner only.
func (m *Market) SetOwnerFeeStatus(caller string, enabled bool, deadline int64) error {
	release, now, err := m.begin("set_owner_fee_status", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	if err := m.dist.SetOwnerFeeStatus(caller, enabled); err != nil {
		return m.reject("set_owner_fee_status", err)
	}

	m.emit(now, event.TypeOwnerFeeStatusChanged, event.OwnerFeeStatusChanged{
		Owner:   m.dist.Owner(),
		Enabled: enabled,
	})
	m.finish("set_owner_fee_status", start)
	return nil
}

// TransferOwnership hands the owner capability to a new account. Owner
// only; an empty newOwner renounces it and disables the owner share.
func (m *Market) TransferOwnership(caller, newOwner string, deadline int64) error {
	release, now, err := m.begin("transfer_ownership", deadline)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()

	previous := m.dist.Owner()
	if err := m.dist.TransferOwnership(caller, newOwner); err != nil {
		return m.reject("transfer_ownership", err)
	}

	m.emit(now, event.TypeOwnershipTransferred, event.OwnershipTransferred{
		PreviousOwner: previous,
		NewOwner:      newOwner,
	})
	m.finish("transfer_ownership", start)
	return nil
}

// --- Operation pipeline ---

// begin serializes the operation, guards against re-entry and reads the
// clock once. The returned release must be deferred immediately.
func (m *Market) begin(op string, deadline int64) (release func(), now int64, err error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		m.metrics.OpsRejected.WithLabelValues(op, revert.Identifier(revert.ErrReentrancy)).Inc()
		return nil, 0, revert.ErrReentrancy
	}
	m.inFlight = true

	now = m.clock.Now()
	if deadline != 0 && now > deadline {
		m.inFlight = false
		m.mu.Unlock()
		m.metrics.OpsRejected.WithLabelValues(op, revert.Identifier(revert.ErrDeadlineExpired)).Inc()
		return nil, 0, fmt.Errorf("%w: now %d > deadline %d", revert.ErrDeadlineExpired, now, deadline)
	}

	return func() {
		m.inFlight = false
		m.mu.Unlock()
	}, now, nil
}

func (m *Market) requireOpen() error {
	if !m.sale.Ended() {
		return fmt.Errorf("%w: market not open yet", revert.ErrOpen)
	}
	return nil
}

func (m *Market) reject(op string, err error) error {
	m.metrics.OpsRejected.WithLabelValues(op, revert.Identifier(err)).Inc()
	m.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
	return err
}

func (m *Market) finish(op string, start time.Time) {
	m.metrics.OpsApplied.WithLabelValues(op).Inc()
	m.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.updateGauges()
}

func (m *Market) updateGauges() {
	mm := m.metrics
	mm.Sequence.WithLabelValues(m.id).Set(float64(m.seq))
	mm.ReserveVirtQuote.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.VirtQuote()))
	mm.ReserveRealQuote.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.RealQuote()))
	mm.ReserveToken.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.ReserveToken()))
	mm.TokenTotalSupply.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.Tokens().TotalSupply()))
	mm.TokenMaxSupply.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.Tokens().MaxSupply()))
	mm.TokenTotalDebt.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.Tokens().TotalDebt()))
	mm.MarketPrice.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.MarketPrice()))
	mm.FloorPrice.WithLabelValues(m.id).Set(fixedpoint.WadFloat(m.engine.FloorPrice()))
}

// emit assigns the next sequence, hashes state and fans the envelope
// out. Persist is the durability path and blocks under backpressure;
// publish is best-effort and drops when full.
func (m *Market) emit(now int64, typ event.Type, payload any) {
	m.seq++

	hashStart := time.Now()
	prev := m.hasher.PrevHash()
	hash := m.hasher.ComputeHash(m.seq, m.stateDigest())
	m.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())

	env := &event.Envelope{
		Sequence:  m.seq,
		Instance:  m.id,
		Type:      typ,
		Timestamp: now,
		Payload:   payload,
		StateHash: hash,
		PrevHash:  prev,
	}

	if m.persistCh != nil {
		select {
		case m.persistCh <- env:
		default:
			m.metrics.PersistBackpressure.Inc()
			m.persistCh <- env
		}
	}

	if m.publishCh != nil {
		select {
		case m.publishCh <- env:
		default:
			m.metrics.PublishDrops.Inc()
		}
	}
}

// emitFees publishes one FeePaid per routed share plus one for the
// redirected remainder. asset is "quote" on buys, "token" on sells.
func (m *Market) emitFees(now int64, routes []fees.Route, redirected *uint256.Int, asset string) {
	for _, route := range routes {
		m.metrics.FeesRouted.WithLabelValues(string(route.Category), asset).Add(fixedpoint.WadFloat(route.Amount))
		m.emit(now, event.TypeFeePaid, event.FeePaid{
			Category:  string(route.Category),
			Recipient: route.Account,
			Asset:     asset,
			Amount:    route.Amount.Dec(),
		})
	}
	if redirected != nil && !redirected.IsZero() {
		m.metrics.FeesRedirected.WithLabelValues(asset).Add(fixedpoint.WadFloat(redirected))
		m.emit(now, event.TypeFeePaid, event.FeePaid{
			Category: string(fees.CategoryReserve),
			Asset:    asset,
			Amount:   redirected.Dec(),
		})
	}
}
