package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// QuoteBook tracks quote-asset balances in raw units. In the deployed
// system the quote asset is an external token; here the book stands in
// for it so the engine's held-quote invariant stays checkable.
type QuoteBook struct {
	balances map[string]*uint256.Int
}

func NewQuoteBook() *QuoteBook {
	return &QuoteBook{balances: make(map[string]*uint256.Int)}
}

func (b *QuoteBook) BalanceOf(account string) *uint256.Int {
	if bal, ok := b.balances[account]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

// Deposit credits external funds to an account (boundary operation:
// deposits arrive from outside the engine).
func (b *QuoteBook) Deposit(account string, amount *uint256.Int) {
	bal, ok := b.balances[account]
	if !ok {
		bal = uint256.NewInt(0)
		b.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (b *QuoteBook) Transfer(from, to string, amount *uint256.Int) error {
	src, ok := b.balances[from]
	if !ok || src.Cmp(amount) < 0 {
		return fmt.Errorf("quote transfer %s from %s: balance %s too low", amount.Dec(), from, b.BalanceOf(from).Dec())
	}
	dst, ok := b.balances[to]
	if !ok {
		dst = uint256.NewInt(0)
		b.balances[to] = dst
	}
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

func (b *QuoteBook) Snapshot() map[string]*uint256.Int {
	out := make(map[string]*uint256.Int, len(b.balances))
	for k, v := range b.balances {
		out[k] = v.Clone()
	}
	return out
}
