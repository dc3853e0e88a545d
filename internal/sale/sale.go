package sale

import (
	"fmt"

	"CurveBank/internal/fixedpoint"
	"CurveBank/internal/revert"

	"github.com/holiman/uint256"
)

// Phase is the sale's lifecycle position.
type Phase int32

const (
	PhaseOpen Phase = iota
	PhaseMarketOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "Open"
	case PhaseMarketOpen:
		return "MarketOpen"
	}
	return "Unknown"
}

// Sale is the fixed-duration contribution window that seeds the curve.
// Every contributor redeems at the same effective entry price because
// the whole pot converts in one opening buy: contribution order carries
// no advantage inside the window.
//
// Timestamps are epoch microseconds from the instance clock; the sale
// never reads wall-clock time itself.
type Sale struct {
	endTimestamp int64
	ended        bool

	totalContributed *uint256.Int
	contributions    map[string]*uint256.Int

	// Set once at market open: the token batch the opening buy produced.
	openingTokens *uint256.Int
	// Frozen copy of totalContributed at open, the pro-rata denominator.
	openingQuote *uint256.Int
}

func New(endTimestamp int64) *Sale {
	return &Sale{
		endTimestamp:     endTimestamp,
		totalContributed: uint256.NewInt(0),
		contributions:    make(map[string]*uint256.Int),
	}
}

func (s *Sale) EndTimestamp() int64 { return s.endTimestamp }
func (s *Sale) Ended() bool         { return s.ended }

func (s *Sale) Phase() Phase {
	if s.ended {
		return PhaseMarketOpen
	}
	return PhaseOpen
}

func (s *Sale) TotalContributed() *uint256.Int { return s.totalContributed.Clone() }

func (s *Sale) ContributionOf(account string) *uint256.Int {
	if c, ok := s.contributions[account]; ok {
		return c.Clone()
	}
	return uint256.NewInt(0)
}

// Contribute records amount (raw quote units) for account. The caller
// has already pulled the funds; this only updates sale bookkeeping.
func (s *Sale) Contribute(account string, amount *uint256.Int, now int64) error {
	if amount.IsZero() {
		return revert.ErrZeroInput
	}
	if s.ended || now > s.endTimestamp {
		return revert.ErrClosed
	}

	c, ok := s.contributions[account]
	if !ok {
		c = uint256.NewInt(0)
		s.contributions[account] = c
	}
	c.Add(c, amount)
	s.totalContributed.Add(s.totalContributed, amount)
	return nil
}

// CanOpen reports whether the window has elapsed with the market still
// unopened. Calling the open path earlier fails Open; calling it again
// after the flip fails Closed.
func (s *Sale) CanOpen(now int64) error {
	if s.ended {
		return revert.ErrClosed
	}
	if now <= s.endTimestamp {
		return revert.ErrOpen
	}
	return nil
}

// MarkOpened flips the sale irreversibly after the opening buy
// converted the pot into openingTokens (wad).
func (s *Sale) MarkOpened(openingTokens *uint256.Int) {
	if s.ended {
		panic("FATAL: sale opened twice")
	}
	s.ended = true
	s.openingTokens = openingTokens.Clone()
	s.openingQuote = s.totalContributed.Clone()
}

// OpeningTokens returns the token batch produced at market open.
func (s *Sale) OpeningTokens() *uint256.Int {
	if s.openingTokens == nil {
		return uint256.NewInt(0)
	}
	return s.openingTokens.Clone()
}

// Snapshot returns copies of all outstanding contributions, for state
// hashing.
func (s *Sale) Snapshot() map[string]*uint256.Int {
	out := make(map[string]*uint256.Int, len(s.contributions))
	for k, v := range s.contributions {
		out[k] = v.Clone()
	}
	return out
}

// Redeem computes the account's pro-rata share of the opening batch,
//
//	openingTokens * contribution / totalContributed, rounded down,
//
// and zeroes the contribution. A second call fails NothingToRedeem
// rather than paying twice.
func (s *Sale) Redeem(account string) (*uint256.Int, error) {
	if !s.ended {
		return nil, fmt.Errorf("%w: market not open", revert.ErrNotEligible)
	}
	c, ok := s.contributions[account]
	if !ok || c.IsZero() {
		return nil, revert.ErrNothingToRedeem
	}

	share := fixedpoint.MulDiv(s.openingTokens, c, s.openingQuote)
	c.SetUint64(0)
	return share, nil
}
