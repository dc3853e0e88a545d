package market

import (
	"github.com/holiman/uint256"

	"CurveBank/internal/sale"
)

// State is a consistent point-in-time view of one instance.
type State struct {
	ID    string
	Phase sale.Phase

	SaleEnd          int64
	TotalContributed *uint256.Int // raw quote units
	OpeningTokens    *uint256.Int // wad, zero until open

	QuoteDecimals uint8
	FeeRateBps    uint64

	VirtQuote    *uint256.Int // wad
	RealQuote    *uint256.Int // wad
	ReserveToken *uint256.Int // wad
	TotalSupply  *uint256.Int // wad
	MaxSupply    *uint256.Int // wad
	TotalDebt    *uint256.Int // quote-wad

	MarketPrice *uint256.Int // wad
	FloorPrice  *uint256.Int // wad

	Owner           string
	OwnerFeeEnabled bool

	Sequence  int64
	StateHash [32]byte
}

// AccountState is a consistent view of one account in one instance.
type AccountState struct {
	Account string

	TokenBalance *uint256.Int // wad
	Debt         *uint256.Int // quote-wad
	Credit       *uint256.Int // quote-wad still borrowable
	Transferable *uint256.Int // wad not locked as collateral

	QuoteBalance *uint256.Int // raw quote units
	Contribution *uint256.Int // raw quote units, zero after redeem
}

// State snapshots the instance under the lock.
func (m *Market) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		ID:               m.id,
		Phase:            m.sale.Phase(),
		SaleEnd:          m.sale.EndTimestamp(),
		TotalContributed: m.sale.TotalContributed(),
		OpeningTokens:    m.sale.OpeningTokens(),
		QuoteDecimals:    m.engine.Scale().Decimals,
		FeeRateBps:       m.engine.FeeRateBps(),
		VirtQuote:        m.engine.VirtQuote(),
		RealQuote:        m.engine.RealQuote(),
		ReserveToken:     m.engine.ReserveToken(),
		TotalSupply:      m.engine.Tokens().TotalSupply(),
		MaxSupply:        m.engine.Tokens().MaxSupply(),
		TotalDebt:        m.engine.Tokens().TotalDebt(),
		MarketPrice:      m.engine.MarketPrice(),
		FloorPrice:       m.engine.FloorPrice(),
		Owner:            m.dist.Owner(),
		OwnerFeeEnabled:  m.dist.OwnerFeeEnabled(),
		Sequence:         m.seq,
		StateHash:        m.hasher.PrevHash(),
	}
}

// AccountOf snapshots one account under the lock.
func (m *Market) AccountOf(account string) AccountState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return AccountState{
		Account:      account,
		TokenBalance: m.engine.Tokens().BalanceOf(account),
		Debt:         m.engine.Tokens().DebtOf(account),
		Credit:       m.engine.CreditOf(account),
		Transferable: m.engine.TransferableOf(account),
		QuoteBalance: m.engine.Quote().BalanceOf(account),
		Contribution: m.sale.ContributionOf(account),
	}
}
