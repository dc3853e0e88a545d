package event

// Payloads carry amounts as decimal strings: wad values exceed int64
// and JSON numbers lose precision past 2^53.

type MarketCreated struct {
	Instance         string `json:"instance"`
	QuoteDecimals    uint8  `json:"quote_decimals"`
	FeeRateBps       uint64 `json:"fee_rate_bps"`
	InitialVirtQuote string `json:"initial_virt_quote"`
	MaxSupply        string `json:"max_supply"`
	SaleEnd          int64  `json:"sale_end"`
	Owner            string `json:"owner,omitempty"`
}

type ContributionRecorded struct {
	Account          string `json:"account"`
	Amount           string `json:"amount"` // raw quote units
	TotalContributed string `json:"total_contributed"`
}

type MarketOpened struct {
	TotalQuoteContributed string `json:"total_quote_contributed"`
	OpeningTokens         string `json:"opening_tokens"`
	MarketPrice           string `json:"market_price"`
	FloorPrice            string `json:"floor_price"`
}

type Redeemed struct {
	Account string `json:"account"`
	Tokens  string `json:"tokens"`
}

type Bought struct {
	Caller      string `json:"caller"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider,omitempty"`
	QuoteIn     string `json:"quote_in"` // raw quote units
	TokenOut    string `json:"token_out"`
	Fee         string `json:"fee"` // quote-wad
	MarketPrice string `json:"market_price"`
	FloorPrice  string `json:"floor_price"`
}

type Sold struct {
	Caller      string `json:"caller"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider,omitempty"`
	TokenIn     string `json:"token_in"`
	QuoteOut    string `json:"quote_out"` // raw quote units
	Fee         string `json:"fee"`       // token-wad
	MarketPrice string `json:"market_price"`
	FloorPrice  string `json:"floor_price"`
}

type Borrowed struct {
	Account   string `json:"account"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"` // raw quote units
}

type Repaid struct {
	Payer   string `json:"payer"`
	Account string `json:"account"`
	Amount  string `json:"amount"` // raw quote units actually applied
}

type Healed struct {
	Caller      string `json:"caller"`
	Amount      string `json:"amount"` // raw quote units
	MarketPrice string `json:"market_price"`
	FloorPrice  string `json:"floor_price"`
}

type Burned struct {
	Account    string `json:"account"`
	Amount     string `json:"amount"`
	MaxSupply  string `json:"max_supply"`
	FloorPrice string `json:"floor_price"`
}

type Transferred struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// FeePaid is emitted once per routed or redirected fee share.
type FeePaid struct {
	Category  string `json:"category"`
	Recipient string `json:"recipient,omitempty"`
	// Asset is "quote" on buys and "token" on sells.
	Asset  string `json:"asset"`
	Amount string `json:"amount"` // wad
}

type OwnerFeeStatusChanged struct {
	Owner   string `json:"owner"`
	Enabled bool   `json:"enabled"`
}

type OwnershipTransferred struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}
