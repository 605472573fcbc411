// Package core holds the ledger domain: entries, amount extraction
// from free-form text, category inference, period resolution and
// aggregation. Everything here is pure; persistence lives behind the
// ledger port.
package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// NormalizeDigits maps Khmer numerals (U+17E0 to U+17E9) onto ASCII
// digits and passes every other rune through unchanged. Idempotent
// and a no-op on pure-ASCII text.
func NormalizeDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '០' && r <= '៩' {
			return '0' + (r - '០')
		}
		return r
	}, text)
}

// Word hints deciding the sign of a whole message. Membership is a
// case-insensitive substring test, mirroring how users actually mix
// hints into Latin and Khmer text.
var (
	positiveHints = []string{
		"win", "won", "deposit", "income", "revenue", "sale", "sales", "add",
		"topup", "top-up",
		"ឈ្នះ", "បញ្ចូល", "ដាក់", "ចូល",
	}
	negativeHints = []string{
		"withdraw", "expense", "cost", "bet", "pay", "paid", "payout", "minus",
		"ដក", "ចេញ", "ចំណាយ", "ភ្នាល់", "បង់",
	}
)

// numberRE over-matches: it grabs any digit run with comma
// and fraction parts, and extractCandidate then checks word
// boundaries and the money-shaped grammar. Go's RE2 has no
// lookarounds, so boundary checks happen outside the pattern.
var (
	numberRE  = regexp.MustCompile(`[+-]?[0-9]+(?:,[0-9]+)*(?:\.[0-9]+)?`)
	groupedRE = regexp.MustCompile(`^[+-]?[0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?$`)
	plainRE   = regexp.MustCompile(`^[+-]?[0-9]+(?:\.[0-9]+)?$`)
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// textSign resolves one sign for a whole message: negative only when
// a negative hint is present without any positive hint. Positive-only,
// both or neither all resolve to positive. The sign applies uniformly
// to every number found in the text; there is no per-number sign
// detection.
func textSign(lowered string) decimal.Decimal {
	neg, pos := false, false
	for _, k := range negativeHints {
		if strings.Contains(lowered, k) {
			neg = true
			break
		}
	}
	for _, k := range positiveHints {
		if strings.Contains(lowered, k) {
			pos = true
			break
		}
	}
	if neg && !pos {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// looksLikeMoney keeps a raw match when it carries a thousands
// separator or has at least four integer digits. Everything smaller
// is treated as a quantity or list index unless its magnitude already
// clears 1000.
func looksLikeMoney(raw string) bool {
	if strings.Contains(raw, ",") {
		return true
	}
	intPart := strings.TrimLeft(raw, "+-")
	if i := strings.IndexByte(intPart, '.'); i >= 0 {
		intPart = intPart[:i]
	}
	return len(intPart) >= 4
}

var thousand = decimal.NewFromInt(1000)

// ExtractAmounts scans free text for money-shaped numbers and returns
// them as signed decimals in order of appearance. It never fails:
// text without usable numbers yields an empty slice, and malformed
// numeric substrings are skipped.
func ExtractAmounts(text string) []decimal.Decimal {
	t := NormalizeDigits(text)
	if t == "" {
		return nil
	}
	sign := textSign(strings.ToLower(t))

	var out []decimal.Decimal
	for _, loc := range numberRE.FindAllStringIndex(t, -1) {
		start, end := loc[0], loc[1]
		raw := t[start:end]
		if r, _ := utf8.DecodeLastRuneInString(t[:start]); r != utf8.RuneError && isWordRune(r) {
			// A sign glued to a word ("x-1234") belongs to the word;
			// the digits after it are still a candidate.
			if raw[0] != '+' && raw[0] != '-' {
				continue
			}
			raw = raw[1:]
		}
		if r, _ := utf8.DecodeRuneInString(t[end:]); r != utf8.RuneError && isWordRune(r) {
			continue
		}
		for _, piece := range splitCandidate(raw) {
			v, ok := parseAmount(piece)
			if !ok {
				continue
			}
			out = append(out, v.Mul(sign))
		}
	}
	return out
}

// splitCandidate returns the money-shaped pieces of a raw match. A
// valid grouped or plain number is one piece. A run with malformed
// grouping first has its longest valid grouped prefix peeled off
// ("12,345,6" keeps "12,345"), and whatever remains decomposes at the
// commas into plain numbers, which the size filter then usually
// discards.
func splitCandidate(raw string) []string {
	if groupedRE.MatchString(raw) || plainRE.MatchString(raw) {
		return []string{raw}
	}
	parts := strings.Split(raw, ",")
	for n := len(parts) - 1; n > 1; n-- {
		prefix := strings.Join(parts[:n], ",")
		if groupedRE.MatchString(prefix) {
			return append([]string{prefix}, parts[n:]...)
		}
	}
	return parts
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !looksLikeMoney(raw) && v.Abs().LessThan(thousand) {
		return decimal.Decimal{}, false
	}
	return v, true
}

// SumAmounts totals the numbers extracted from one text. Exact
// decimal arithmetic, no intermediate rounding.
func SumAmounts(text string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range ExtractAmounts(text) {
		total = total.Add(a)
	}
	return total
}
