package ledger

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestTokenBookMintAndRetire(t *testing.T) {
	b := NewTokenBook(uint256.NewInt(1_000))

	b.Mint("alice", uint256.NewInt(300))
	b.Mint("alice", uint256.NewInt(200))

	if got := b.BalanceOf("alice"); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("BalanceOf(alice) = %s, want 500", got.Dec())
	}
	if got := b.TotalSupply(); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("TotalSupply = %s, want 500", got.Dec())
	}

	if err := b.Retire("alice", uint256.NewInt(100)); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if got := b.BalanceOf("alice"); got.Cmp(uint256.NewInt(400)) != 0 {
		t.Errorf("BalanceOf(alice) after retire = %s, want 400", got.Dec())
	}
	if got := b.TotalSupply(); got.Cmp(uint256.NewInt(400)) != 0 {
		t.Errorf("TotalSupply after retire = %s, want 400", got.Dec())
	}

	if err := b.Retire("alice", uint256.NewInt(500)); err == nil {
		t.Error("Retire over balance succeeded, want error")
	}
	if err := b.Retire("nobody", uint256.NewInt(1)); err == nil {
		t.Error("Retire from unknown account succeeded, want error")
	}
}

func TestTokenBookTransfer(t *testing.T) {
	b := NewTokenBook(uint256.NewInt(1_000))
	b.Mint("alice", uint256.NewInt(100))

	if err := b.Transfer("alice", "bob", uint256.NewInt(40)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := b.BalanceOf("alice"); got.Cmp(uint256.NewInt(60)) != 0 {
		t.Errorf("BalanceOf(alice) = %s, want 60", got.Dec())
	}
	if got := b.BalanceOf("bob"); got.Cmp(uint256.NewInt(40)) != 0 {
		t.Errorf("BalanceOf(bob) = %s, want 40", got.Dec())
	}
	if got := b.TotalSupply(); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Errorf("TotalSupply changed by transfer: %s", got.Dec())
	}

	if err := b.Transfer("alice", "bob", uint256.NewInt(61)); err == nil {
		t.Error("Transfer over balance succeeded, want error")
	}
}

func TestTokenBookReduceMaxSupply(t *testing.T) {
	b := NewTokenBook(uint256.NewInt(1_000))

	if err := b.ReduceMaxSupply(uint256.NewInt(300)); err != nil {
		t.Fatalf("ReduceMaxSupply: %v", err)
	}
	if got := b.MaxSupply(); got.Cmp(uint256.NewInt(700)) != 0 {
		t.Errorf("MaxSupply = %s, want 700", got.Dec())
	}

	if err := b.ReduceMaxSupply(uint256.NewInt(701)); err == nil {
		t.Error("ReduceMaxSupply past ceiling succeeded, want error")
	}
}

func TestTokenBookDebt(t *testing.T) {
	b := NewTokenBook(uint256.NewInt(1_000))

	b.AddDebt("alice", uint256.NewInt(50))
	b.AddDebt("alice", uint256.NewInt(30))
	b.AddDebt("bob", uint256.NewInt(20))

	if got := b.DebtOf("alice"); got.Cmp(uint256.NewInt(80)) != 0 {
		t.Errorf("DebtOf(alice) = %s, want 80", got.Dec())
	}
	if got := b.TotalDebt(); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Errorf("TotalDebt = %s, want 100", got.Dec())
	}
	if err := b.ValidateDebtSum(); err != nil {
		t.Errorf("ValidateDebtSum: %v", err)
	}

	// Repayment over the outstanding amount only applies the debt.
	applied := b.ReduceDebt("alice", uint256.NewInt(100))
	if applied.Cmp(uint256.NewInt(80)) != 0 {
		t.Errorf("ReduceDebt applied %s, want 80", applied.Dec())
	}
	if got := b.DebtOf("alice"); !got.IsZero() {
		t.Errorf("DebtOf(alice) after full repay = %s, want 0", got.Dec())
	}
	if got := b.TotalDebt(); got.Cmp(uint256.NewInt(20)) != 0 {
		t.Errorf("TotalDebt after repay = %s, want 20", got.Dec())
	}

	// Nothing outstanding: nothing applied.
	applied = b.ReduceDebt("alice", uint256.NewInt(5))
	if !applied.IsZero() {
		t.Errorf("ReduceDebt on clean account applied %s, want 0", applied.Dec())
	}
	if err := b.ValidateDebtSum(); err != nil {
		t.Errorf("ValidateDebtSum after repayments: %v", err)
	}
}

func TestTokenBookSnapshotIsCopy(t *testing.T) {
	b := NewTokenBook(uint256.NewInt(1_000))
	b.Mint("alice", uint256.NewInt(10))
	b.AddDebt("alice", uint256.NewInt(5))

	balances, debts := b.Snapshot()
	balances["alice"].SetUint64(999)
	debts["alice"].SetUint64(999)

	if got := b.BalanceOf("alice"); got.Cmp(uint256.NewInt(10)) != 0 {
		t.Errorf("snapshot mutation leaked into balance: %s", got.Dec())
	}
	if got := b.DebtOf("alice"); got.Cmp(uint256.NewInt(5)) != 0 {
		t.Errorf("snapshot mutation leaked into debt: %s", got.Dec())
	}
}

func TestQuoteBookDepositAndTransfer(t *testing.T) {
	b := NewQuoteBook()

	b.Deposit("alice", uint256.NewInt(1_000))
	if got := b.BalanceOf("alice"); got.Cmp(uint256.NewInt(1_000)) != 0 {
		t.Errorf("BalanceOf(alice) = %s, want 1000", got.Dec())
	}

	if err := b.Transfer("alice", "reserve", uint256.NewInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := b.BalanceOf("reserve"); got.Cmp(uint256.NewInt(400)) != 0 {
		t.Errorf("BalanceOf(reserve) = %s, want 400", got.Dec())
	}

	if err := b.Transfer("alice", "reserve", uint256.NewInt(601)); err == nil {
		t.Error("Transfer over balance succeeded, want error")
	}
	if err := b.Transfer("nobody", "reserve", uint256.NewInt(1)); err == nil {
		t.Error("Transfer from unknown account succeeded, want error")
	}
}
