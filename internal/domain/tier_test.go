package domain

import (
	"errors"
	"testing"
)

func TestParseTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{in: "basic", want: TierBasic},
		{in: " PRO ", want: TierPro},
		{in: "Premium", want: TierPremium},
		{in: "elite", want: TierElite},
		{in: "gold", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTier(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTier) {
					t.Fatalf("expected ErrInvalidTier, got %v", err)
				}

				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTier_BaseIsHalfPrice(t *testing.T) {
	t.Parallel()

	for _, tier := range Tiers {
		if tier.BaseMinor()*2 != tier.PriceMinor() {
			t.Fatalf("%s: base %d is not half of price %d", tier, tier.BaseMinor(), tier.PriceMinor())
		}
	}

	if TierBasic.BaseMinor() != 2_000 {
		t.Fatalf("basic base: want 2000, got %d", TierBasic.BaseMinor())
	}
}

func TestTier_Rank(t *testing.T) {
	t.Parallel()

	for i := 1; i < len(Tiers); i++ {
		if Tiers[i].Rank() <= Tiers[i-1].Rank() {
			t.Fatalf("rank not increasing at %s", Tiers[i])
		}
		if Tiers[i].PriceMinor() <= Tiers[i-1].PriceMinor() {
			t.Fatalf("price not increasing at %s", Tiers[i])
		}
	}

	if Tier("gold").Rank() != -1 {
		t.Fatal("unknown tier must rank -1")
	}
}

func TestKind_ReferralEarning(t *testing.T) {
	t.Parallel()

	earning := map[Kind]bool{
		KindPurchaseDebit:       false,
		KindDirectReferralBonus: true,
		KindPoolContribution:    false,
		KindLevelUpPayout:       true,
		KindAdminAdjustment:     false,
		KindWithdrawal:          false,
	}

	for k, want := range earning {
		if !k.Valid() {
			t.Fatalf("%s should be valid", k)
		}
		if k.ReferralEarning() != want {
			t.Fatalf("%s: ReferralEarning want %v", k, want)
		}
	}

	if Kind("refund").Valid() {
		t.Fatal("unknown kind must be invalid")
	}
}

func TestBalances_OfAndSet(t *testing.T) {
	t.Parallel()

	var b Balances
	for i, c := range Currencies {
		b.Set(c, int64(i+1)*100)
	}

	if b.Primary != 100 || b.Bonus != 200 || b.Pool != 300 {
		t.Fatalf("unexpected balances: %+v", b)
	}

	for i, c := range Currencies {
		if b.Of(c) != int64(i+1)*100 {
			t.Fatalf("Of(%s) = %d", c, b.Of(c))
		}
	}

	_, err := ParseCurrency("gold")
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestFormatMinor(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:      "0.00",
		1:      "0.01",
		4_000:  "40.00",
		-1_250: "-12.50",
	}

	for in, want := range cases {
		if got := FormatMinor(in); got != want {
			t.Fatalf("FormatMinor(%d): want %q, got %q", in, want, got)
		}
	}
}
