package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// UncategorizedKey buckets entries that carry no category label.
const UncategorizedKey = "uncategorized"

// CategoryTotal is one row of a per-category breakdown.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// Totals is the result of aggregating a set of entries.
type Totals struct {
	Grand      decimal.Decimal
	ByCategory []CategoryTotal
}

// SumEntries totals the amounts derived from every entry's text.
func SumEntries(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(SumAmounts(e.Text))
	}
	return total
}

// GroupByCategory sums entries per category, bucketing unlabeled
// entries under UncategorizedKey. Rows come back ordered by
// descending absolute total, ties broken by category name ascending,
// so top-N views are deterministic.
func GroupByCategory(entries []Entry) []CategoryTotal {
	byCat := make(map[string]decimal.Decimal)
	for _, e := range entries {
		cat := strings.ToLower(strings.TrimSpace(e.Category))
		if cat == "" {
			cat = UncategorizedKey
		}
		byCat[cat] = byCat[cat].Add(SumAmounts(e.Text))
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for cat, total := range byCat {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Total.Abs(), out[j].Total.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ComputeTotals runs both aggregations in one pass over the entries.
func ComputeTotals(entries []Entry) Totals {
	return Totals{
		Grand:      SumEntries(entries),
		ByCategory: GroupByCategory(entries),
	}
}

// FormatAmount renders a decimal for humans: thousands-grouped, no
// fraction for whole values, two decimals otherwise. Presentation
// only; aggregation always works on the exact decimals.
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsInteger() {
		s = d.StringFixed(0)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
