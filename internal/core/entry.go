package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// KindNote tags free-text ledger notes. It is the only entry kind the
// engine records today; the column exists so future kinds can share
// the same table.
const KindNote = "note"

type (
	// Entry is one recorded financial event. The monetary value is
	// not stored: it is re-derived from Text by
	// ExtractAmounts on every read, so editing the text changes all
	// subsequent totals without a reconciliation step.
	Entry struct {
		ID          int64
		TenantID    string
		DisplayName string
		Category    string // lowercase label, empty when uncategorized
		Text        string
		Kind        string
		CreatedAt   time.Time // always UTC
	}
)

var (
	ErrMissingTenant = errors.New("missing tenant id")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrEmptyText     = errors.New("empty text")
)

func (e Entry) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return ErrMissingTenant
	}
	if strings.TrimSpace(e.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// NormalizeTime forces an explicit UTC offset on boundary input.
// Zero times become the current UTC instant.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// SortForMerge orders entries the way fan-out queries must return
// them: created_at ascending, ties broken by tenant id then id. The
// order is deterministic regardless of which partition answered
// first.
func SortForMerge(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.TenantID != b.TenantID {
			return a.TenantID < b.TenantID
		}
		return a.ID < b.ID
	})
}
