package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeDigits(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"abc 123", "abc 123"},
		{"១២៣", "123"},
		{"ដក ៥,០០០ riel", "ដក 5,000 riel"},
	}
	for i, tc := range cases {
		got := NormalizeDigits(tc.in)
		if got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
		// Idempotent: a second pass is a no-op.
		if again := NormalizeDigits(got); again != got {
			t.Fatalf("case %d: not idempotent: %q -> %q", i, got, again)
		}
	}
}

func amounts(t *testing.T, vals ...string) []decimal.Decimal {
	t.Helper()
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			t.Fatalf("bad literal %q: %v", v, err)
		}
		out[i] = d
	}
	return out
}

func TestExtractAmounts(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []decimal.Decimal
	}{
		{"no digits", "lunch with friends", nil},
		{"empty", "", nil},
		{"grouped positive hint", "2,000 deposit", amounts(t, "2000")},
		{"bare small number discarded", "paid 150", nil},
		{"four digits kept, negative hint", "paid 1500", amounts(t, "-1500")},
		{"grouped small value kept", "1,500 pay", amounts(t, "-1500")},
		{"both hints resolve positive", "win 2,000 but pay 5,500", amounts(t, "2000", "5500")},
		{"small bare number dropped even with both hints", "win 2,000 but pay 500", amounts(t, "2000")},
		{"adjacent word chars rejected", "ticket id1234 booked", nil},
		{"sign glued to word stripped", "x-1234", amounts(t, "1234")},
		{"malformed grouping keeps valid prefix", "ref 12,345,6 pay", amounts(t, "-12345")},
		{"khmer digits and hint", "ដក ៥,០០០", amounts(t, "-5000")},
		{"decimal fraction", "income 1234.56", amounts(t, "1234.56")},
		{"order preserved", "sale 3,000 then 12,000", amounts(t, "3000", "12000")},
		{"no hints default positive", "4000 for rent", amounts(t, "4000")},
		{"explicit minus flipped by hint", "withdraw -2,000", amounts(t, "2000")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractAmounts(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			for i := range got {
				if !got[i].Equal(tc.want[i]) {
					t.Fatalf("value %d: got %s want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSumAmounts(t *testing.T) {
	got := SumAmounts("sale 3,000 and 2,000")
	if !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("got %s want 5000", got)
	}
	if !SumAmounts("nothing here").IsZero() {
		t.Fatalf("expected zero for text without amounts")
	}
}
