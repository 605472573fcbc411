package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"riel/internal/core"
)

func TestWriteCSV(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	entries := []core.Entry{
		{
			TenantID:    "alice",
			DisplayName: "Alice",
			Category:    "deposit",
			Text:        "deposit 2,000",
			CreatedAt:   time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC),
		},
		{
			TenantID:    "alice",
			DisplayName: "Alice",
			Category:    "expense",
			Text:        "paid 1,500 for lunch",
			CreatedAt:   time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC),
		},
	}

	var buf strings.Builder
	if err := WriteCSV(&buf, entries, loc); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 4 { // header + 2 rows + footer
		t.Fatalf("got %d records", len(records))
	}

	// Local timestamp is shifted by the zone offset.
	if got := records[1][1]; got != "2025-03-11 01:30:00" {
		t.Fatalf("local time %q", got)
	}
	if got := records[1][6]; got != "2,000" {
		t.Fatalf("entry sum %q", got)
	}
	if got := records[2][6]; got != "-1,500" {
		t.Fatalf("entry sum %q", got)
	}

	footer := records[3]
	if footer[4] != "GRAND TOTAL" || footer[6] != "500" {
		t.Fatalf("footer %v", footer)
	}
}

func TestWriteCSVEmptyEntries(t *testing.T) {
	var buf strings.Builder
	if err := WriteCSV(&buf, nil, time.UTC); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 2 || records[1][6] != "0" {
		t.Fatalf("records %v", records)
	}
}

func TestWriteReportFile(t *testing.T) {
	dir := t.TempDir()
	entries := []core.Entry{{
		TenantID:  "alice",
		Text:      "deposit 2,000",
		CreatedAt: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}}

	path, err := WriteReportFile(dir, "alice", "daily", "2025-03-10", entries, time.UTC)
	if err != nil {
		t.Fatalf("write report: %v", err)
	}
	if filepath.Base(path) != "alice_daily_2025-03-10.csv" {
		t.Fatalf("filename %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "GRAND TOTAL") {
		t.Fatalf("missing footer in %q", data)
	}
}
