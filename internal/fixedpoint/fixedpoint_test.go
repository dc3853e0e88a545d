package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestQuoteScaleRoundTrip(t *testing.T) {
	scale, err := NewQuoteScale(6)
	if err != nil {
		t.Fatalf("NewQuoteScale(6): %v", err)
	}

	raw := uint256.NewInt(1_500_000) // 1.5 units at 6 decimals
	wad := scale.ToWad(raw)

	want := uint256.NewInt(1_500_000_000_000_000_000)
	if wad.Cmp(want) != 0 {
		t.Errorf("ToWad(1.5e6) = %s, want %s", wad.Dec(), want.Dec())
	}

	back := scale.FromWad(wad)
	if back.Cmp(raw) != 0 {
		t.Errorf("FromWad(ToWad(x)) = %s, want %s", back.Dec(), raw.Dec())
	}
}

func TestQuoteScaleIdentityAt18(t *testing.T) {
	scale, err := NewQuoteScale(18)
	if err != nil {
		t.Fatalf("NewQuoteScale(18): %v", err)
	}
	raw := uint256.NewInt(12345)
	if got := scale.ToWad(raw); got.Cmp(raw) != 0 {
		t.Errorf("ToWad at 18 decimals = %s, want %s", got.Dec(), raw.Dec())
	}
}

func TestQuoteScaleRejectsTooManyDecimals(t *testing.T) {
	if _, err := NewQuoteScale(19); err == nil {
		t.Error("NewQuoteScale(19) succeeded, want error")
	}
}

func TestFromWadFloorsAndCeilRoundsUp(t *testing.T) {
	scale, _ := NewQuoteScale(6)

	// 1.0000009 units in wad: floor truncates the sub-raw residue,
	// ceil collects one extra raw unit.
	wad := uint256.MustFromDecimal("1000000900000000000")
	if got := scale.FromWad(wad); got.Cmp(uint256.NewInt(1_000_000)) != 0 {
		t.Errorf("FromWad = %s, want 1000000", got.Dec())
	}
	if got := scale.FromWadCeil(wad); got.Cmp(uint256.NewInt(1_000_001)) != 0 {
		t.Errorf("FromWadCeil = %s, want 1000001", got.Dec())
	}

	// Exact multiple: ceil must not round up.
	exact := uint256.MustFromDecimal("2000000000000000000")
	if got := scale.FromWadCeil(exact); got.Cmp(uint256.NewInt(2_000_000)) != 0 {
		t.Errorf("FromWadCeil(exact) = %s, want 2000000", got.Dec())
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		x, y, d uint64
		want    uint64
	}{
		{10, 10, 4, 25},
		{7, 3, 2, 10}, // 21/2 floors to 10
		{0, 5, 3, 0},
	}
	for _, tt := range tests {
		got := MulDiv(uint256.NewInt(tt.x), uint256.NewInt(tt.y), uint256.NewInt(tt.d))
		if got.Cmp(uint256.NewInt(tt.want)) != 0 {
			t.Errorf("MulDiv(%d,%d,%d) = %s, want %d", tt.x, tt.y, tt.d, got.Dec(), tt.want)
		}
	}
}

func TestMulDivUses512BitIntermediate(t *testing.T) {
	// x*y overflows 256 bits but the quotient fits.
	x := uint256.MustFromDecimal("100000000000000000000000000000000000000000000000000000000000000000000000000000")
	y := uint256.NewInt(1_000_000)
	d := uint256.NewInt(1_000_000)
	got := MulDiv(x, y, d)
	if got.Cmp(x) != 0 {
		t.Errorf("MulDiv(x, 1e6, 1e6) = %s, want %s", got.Dec(), x.Dec())
	}
}

func TestMulDivCeil(t *testing.T) {
	got := MulDivCeil(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	if got.Cmp(uint256.NewInt(11)) != 0 {
		t.Errorf("MulDivCeil(7,3,2) = %s, want 11", got.Dec())
	}
	got = MulDivCeil(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(4))
	if got.Cmp(uint256.NewInt(25)) != 0 {
		t.Errorf("MulDivCeil(10,10,4) = %s, want 25", got.Dec())
	}
}

func TestBpsOf(t *testing.T) {
	amount := uint256.NewInt(10_000)
	if got := BpsOf(amount, 100); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Errorf("BpsOf(10000, 100) = %s, want 100", got.Dec())
	}
	if got := BpsOf(amount, 0); !got.IsZero() {
		t.Errorf("BpsOf(10000, 0) = %s, want 0", got.Dec())
	}
}

func TestGrossForNet(t *testing.T) {
	// A 1% fee on the returned gross must net at least the requested
	// amount back out.
	for _, net := range []uint64{1, 99, 100, 12345, 1_000_000} {
		n := uint256.NewInt(net)
		gross := GrossForNet(n, 100)
		fee := BpsOf(gross, 100)
		back := new(uint256.Int).Sub(gross, fee)
		if back.Cmp(n) < 0 {
			t.Errorf("GrossForNet(%d, 100): gross %s nets %s, want >= %d", net, gross.Dec(), back.Dec(), net)
		}
	}
}
