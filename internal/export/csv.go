// Package export renders ledger entries as CSV reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"riel/internal/core"
)

const localTimeLayout = "2006-01-02 15:04:05"

var header = []string{
	"created_at_utc",
	"created_at_local",
	"display_name",
	"category",
	"text",
	"numbers_found",
	"entry_sum",
}

// WriteCSV renders entries in chronological order with a grand total
// footer. Timestamps are shown both in UTC and in loc.
func WriteCSV(w io.Writer, entries []core.Entry, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	grand := decimal.Zero
	for _, e := range entries {
		nums := core.ExtractAmounts(e.Text)
		sum := decimal.Zero
		for _, n := range nums {
			sum = sum.Add(n)
		}
		grand = grand.Add(sum)

		row := []string{
			e.CreatedAt.UTC().Format(localTimeLayout),
			e.CreatedAt.In(loc).Format(localTimeLayout),
			e.DisplayName,
			e.Category,
			e.Text,
			joinAmounts(nums),
			core.FormatAmount(sum),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	footer := []string{"", "", "", "", "GRAND TOTAL", "", core.FormatAmount(grand)}
	if err := cw.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportFile writes a period report under dir and returns the file
// path. The filename encodes tenant and period label so repeated runs
// for the same period overwrite rather than accumulate.
func WriteReportFile(dir, tenantID, period, label string, entries []core.Entry, loc *time.Location) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.csv", sanitize(tenantID), period, sanitize(label))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	if err := WriteCSV(f, entries, loc); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	return path, nil
}

func joinAmounts(nums []decimal.Decimal) string {
	if len(nums) == 0 {
		return ""
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
