package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// TokenBook tracks per-account balances and debts for one token
// instance, plus the supply aggregates the reserve engine prices
// against. All amounts are wad. The book is a leaf data structure: it
// enforces arithmetic consistency (no negative balances, debt sum) but
// not economic rules — those live in the reserve engine.
type TokenBook struct {
	balances map[string]*uint256.Int
	debts    map[string]*uint256.Int

	totalSupply *uint256.Int
	maxSupply   *uint256.Int
	totalDebt   *uint256.Int
}

func NewTokenBook(maxSupply *uint256.Int) *TokenBook {
	return &TokenBook{
		balances:    make(map[string]*uint256.Int),
		debts:       make(map[string]*uint256.Int),
		totalSupply: uint256.NewInt(0),
		maxSupply:   maxSupply.Clone(),
		totalDebt:   uint256.NewInt(0),
	}
}

func (b *TokenBook) BalanceOf(account string) *uint256.Int {
	if bal, ok := b.balances[account]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (b *TokenBook) DebtOf(account string) *uint256.Int {
	if d, ok := b.debts[account]; ok {
		return d.Clone()
	}
	return uint256.NewInt(0)
}

func (b *TokenBook) TotalSupply() *uint256.Int { return b.totalSupply.Clone() }
func (b *TokenBook) MaxSupply() *uint256.Int   { return b.maxSupply.Clone() }
func (b *TokenBook) TotalDebt() *uint256.Int   { return b.totalDebt.Clone() }

// Mint issues amount to account, growing total supply.
func (b *TokenBook) Mint(account string, amount *uint256.Int) {
	bal, ok := b.balances[account]
	if !ok {
		bal = uint256.NewInt(0)
		b.balances[account] = bal
	}
	bal.Add(bal, amount)
	b.totalSupply.Add(b.totalSupply, amount)
}

// Retire removes amount from account and total supply.
func (b *TokenBook) Retire(account string, amount *uint256.Int) error {
	bal, ok := b.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("retire %s from %s: balance %s too low", amount.Dec(), account, b.BalanceOf(account).Dec())
	}
	bal.Sub(bal, amount)
	b.totalSupply.Sub(b.totalSupply, amount)
	return nil
}

// Transfer moves amount between accounts. Collateral-lock checks happen
// in the engine before this is called.
func (b *TokenBook) Transfer(from, to string, amount *uint256.Int) error {
	src, ok := b.balances[from]
	if !ok || src.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s: balance %s too low", amount.Dec(), from, b.BalanceOf(from).Dec())
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

// ReduceMaxSupply permanently lowers the issuable ceiling (token burn,
// retired sell fees).
func (b *TokenBook) ReduceMaxSupply(amount *uint256.Int) error {
	if b.maxSupply.Cmp(amount) < 0 {
		return fmt.Errorf("reduce max supply by %s: ceiling is %s", amount.Dec(), b.maxSupply.Dec())
	}
	b.maxSupply.Sub(b.maxSupply, amount)
	return nil
}

// AddDebt records quote-wad owed by account.
func (b *TokenBook) AddDebt(account string, amount *uint256.Int) {
	d, ok := b.debts[account]
	if !ok {
		d = uint256.NewInt(0)
		b.debts[account] = d
	}
	d.Add(d, amount)
	b.totalDebt.Add(b.totalDebt, amount)
}

// ReduceDebt lowers the account's debt, capped at the outstanding
// amount. Returns the amount actually applied.
func (b *TokenBook) ReduceDebt(account string, amount *uint256.Int) *uint256.Int {
	d, ok := b.debts[account]
	if !ok || d.IsZero() {
		return uint256.NewInt(0)
	}
	applied := amount.Clone()
	if applied.Cmp(d) > 0 {
		applied.Set(d)
	}
	d.Sub(d, applied)
	b.totalDebt.Sub(b.totalDebt, applied)
	return applied
}

// ValidateDebtSum verifies totalDebt equals the sum of account debts.
func (b *TokenBook) ValidateDebtSum() error {
	sum := uint256.NewInt(0)
	for _, d := range b.debts {
		sum.Add(sum, d)
	}
	if sum.Cmp(b.totalDebt) != 0 {
		return fmt.Errorf("debt sum mismatch: accounts=%s tracked=%s", sum.Dec(), b.totalDebt.Dec())
	}
	return nil
}

// Snapshot returns copies of all balances and debts, for state hashing
// and persistence.
func (b *TokenBook) Snapshot() (balances, debts map[string]*uint256.Int) {
	balances = make(map[string]*uint256.Int, len(b.balances))
	debts = make(map[string]*uint256.Int, len(b.debts))
	for k, v := range b.balances {
		balances[k] = v.Clone()
	}
	for k, v := range b.debts {
		debts[k] = v.Clone()
	}
	return balances, debts
}
