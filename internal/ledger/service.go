package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"riel/internal/core"
)

// Service wires the ingestion path (duplicate guard, category policy,
// persistence) and the reporting path (period resolution, queries,
// aggregation). It is safe for concurrent use.
type Service struct {
	store EntryStore
	guard *DuplicateGuard
	loc   *time.Location
	now   func() time.Time
}

func NewService(store EntryStore, guard *DuplicateGuard, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		guard: guard,
		loc:   loc,
		now:   time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store records one free-text event for a tenant. Category priority:
// explicit directive or hashtag, then the keyword default table, then
// the hint-based inferencer. Returns ErrDuplicate when the guard
// suppresses a resubmission.
func (s *Service) Store(ctx context.Context, tenantID, displayName, text string) (core.Entry, error) {
	text = strings.TrimSpace(text)
	entry := core.Entry{
		TenantID:    strings.TrimSpace(tenantID),
		DisplayName: displayName,
		Text:        text,
		Kind:        core.KindNote,
	}
	if err := entry.Validate(); err != nil {
		return core.Entry{}, err
	}

	now := s.now()
	if s.guard != nil && s.guard.IsDuplicate(entry.TenantID, text, now) {
		slog.InfoContext(ctx, "Duplicate submission suppressed",
			"tenant_id", entry.TenantID, "text_len", len(text))
		return core.Entry{}, ErrDuplicate
	}

	category := core.ExplicitCategory(text)
	if category == "" {
		category = core.DefaultCategory(text)
	}
	if category == "" {
		category = core.InferCategory(text)
	}
	entry.Category = category
	entry.CreatedAt = core.NormalizeTime(now)

	saved, err := s.store.Save(ctx, entry)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry stored",
		"tenant_id", saved.TenantID,
		"entry_id", saved.ID,
		"category", saved.Category,
		"amounts", len(core.ExtractAmounts(saved.Text)))
	return saved, nil
}

// ResolvePeriod turns a period keyword into the UTC window and label
// for the service timezone, anchored at the current instant.
func (s *Service) ResolvePeriod(period string) (start, end time.Time, label string, err error) {
	p, err := core.ParsePeriod(period)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	return core.RangeFor(p, s.now(), s.loc)
}

// QueryScoped returns one tenant's entries for a period, oldest
// first, along with the period label.
func (s *Service) QueryScoped(ctx context.Context, tenantID, period, category string) ([]core.Entry, string, error) {
	start, end, label, err := s.ResolvePeriod(period)
	if err != nil {
		return nil, "", err
	}
	entries, err := s.readEntries(ctx, func() ([]core.Entry, error) {
		return s.store.ListBetween(ctx, tenantID, start, end, Filter{Category: category})
	})
	return entries, label, err
}

// QueryRange is QueryScoped with an explicit window instead of a
// period keyword.
func (s *Service) QueryRange(ctx context.Context, tenantID string, start, end time.Time, category string) ([]core.Entry, error) {
	return s.readEntries(ctx, func() ([]core.Entry, error) {
		return s.store.ListBetween(ctx, tenantID, start.UTC(), end.UTC(), Filter{Category: category})
	})
}

// QueryAllTenants merges matching entries from every tenant partition
// for group/rollup views.
func (s *Service) QueryAllTenants(ctx context.Context, period, category string) ([]core.Entry, string, error) {
	start, end, label, err := s.ResolvePeriod(period)
	if err != nil {
		return nil, "", err
	}
	entries, err := s.readEntries(ctx, func() ([]core.Entry, error) {
		return s.store.ListBetweenAll(ctx, start, end, Filter{Category: category})
	})
	return entries, label, err
}

// Totals aggregates a query result into a grand total and per-category
// breakdown.
func (s *Service) Totals(entries []core.Entry) core.Totals {
	return core.ComputeTotals(entries)
}

// Edit replaces the whole text of one entry. Returns false when the
// entry does not exist; derived totals pick the new text up
// automatically on the next read.
func (s *Service) Edit(ctx context.Context, tenantID string, id int64, newText string) (bool, error) {
	if strings.TrimSpace(tenantID) == "" {
		return false, core.ErrMissingTenant
	}
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return false, core.ErrEmptyText
	}
	ok, err := s.store.UpdateText(ctx, tenantID, id, newText)
	if err != nil {
		return false, fmt.Errorf("update text: %w", err)
	}
	if ok {
		slog.InfoContext(ctx, "Entry text updated", "tenant_id", tenantID, "entry_id", id)
	}
	return ok, nil
}

// MostRecentTarget deletes the newest entry instead of one by id.
const MostRecentTarget = "most-recent"

// Delete removes one entry, addressed by numeric id or by
// MostRecentTarget. The count is 0 when nothing matched.
func (s *Service) Delete(ctx context.Context, tenantID, target string) (int, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, core.ErrMissingTenant
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if target == MostRecentTarget || target == "last" {
		n, err := s.store.DeleteMostRecent(ctx, tenantID)
		if err != nil {
			return 0, fmt.Errorf("delete most recent: %w", err)
		}
		return n, nil
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delete target must be an id or %q: %q", MostRecentTarget, target)
	}
	n, err := s.store.DeleteByID(ctx, tenantID, id)
	if err != nil {
		return 0, fmt.Errorf("delete by id: %w", err)
	}
	return n, nil
}

// CountPeriod reports how many entries DeleteRange would remove, for
// the caller's confirmation step.
func (s *Service) CountPeriod(ctx context.Context, tenantID, period, category string) (int, string, error) {
	start, end, label, err := s.ResolvePeriod(period)
	if err != nil {
		return 0, "", err
	}
	n, err := s.store.CountBetween(ctx, tenantID, start, end, Filter{Category: category})
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		n, err = s.store.CountBetween(ctx, tenantID, start, end, Filter{Category: category})
	}
	if err != nil {
		return 0, "", fmt.Errorf("count between: %w", err)
	}
	return n, label, nil
}

// DeleteRange bulk-deletes a tenant's entries for a period. Any
// confirmation step is the caller's responsibility.
func (s *Service) DeleteRange(ctx context.Context, tenantID, period, category string) (int, string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, "", core.ErrMissingTenant
	}
	start, end, label, err := s.ResolvePeriod(period)
	if err != nil {
		return 0, "", err
	}
	n, err := s.store.DeleteBetween(ctx, tenantID, start, end, Filter{Category: category})
	if err != nil {
		return 0, "", fmt.Errorf("delete between: %w", err)
	}
	slog.InfoContext(ctx, "Entries deleted for period",
		"tenant_id", tenantID, "period", period, "label", label, "deleted", n)
	return n, label, nil
}

// Search returns a tenant's entries whose text contains the query,
// case-insensitively, most recent first.
func (s *Service) Search(ctx context.Context, tenantID, query, category string) ([]core.Entry, error) {
	entries, err := s.readEntries(ctx, func() ([]core.Entry, error) {
		return s.store.List(ctx, tenantID, Filter{Category: category})
	})
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries, nil
	}
	var hits []core.Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Text), q) {
			hits = append(hits, e)
		}
	}
	return hits, nil
}

// Inspect fetches one entry with its extracted numbers and entry sum.
// found is false when the id does not exist for the tenant.
func (s *Service) Inspect(ctx context.Context, tenantID string, id int64) (entry core.Entry, nums []decimal.Decimal, sum decimal.Decimal, found bool, err error) {
	entries, err := s.readEntries(ctx, func() ([]core.Entry, error) {
		return s.store.List(ctx, tenantID, Filter{})
	})
	if err != nil {
		return core.Entry{}, nil, decimal.Zero, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			nums = core.ExtractAmounts(e.Text)
			return e, nums, core.SumAmounts(e.Text), true, nil
		}
	}
	return core.Entry{}, nil, decimal.Zero, false, nil
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Label string
	Total decimal.Decimal
}

// TrendSeries produces totals for consecutive periods ending at the
// current one: the last `points` days for Daily mode or Monday-based
// weeks for Weekly mode, oldest first. With allTenants set it
// aggregates across every partition.
func (s *Service) TrendSeries(ctx context.Context, tenantID string, allTenants bool, mode core.Period, category string, points int) ([]TrendPoint, error) {
	if mode != core.Daily && mode != core.Weekly {
		return nil, fmt.Errorf("%w: trend supports daily or weekly, got %q", core.ErrInvalidPeriod, string(mode))
	}
	if points <= 0 {
		if mode == core.Daily {
			points = 7
		} else {
			points = 8
		}
	}

	now := s.now().In(s.loc)
	stepDays := 1
	if mode == core.Weekly {
		stepDays = 7
	}

	out := make([]TrendPoint, 0, points)
	for i := points - 1; i >= 0; i-- {
		// Calendar stepping, not duration stepping: a DST transition
		// must not skip or repeat a local day.
		ref := now.AddDate(0, 0, -i*stepDays)
		start, end, label, err := core.RangeFor(mode, ref, s.loc)
		if err != nil {
			return nil, err
		}
		// Short label for chart axes: the bucket's first local day.
		label = start.In(s.loc).Format("01-02")
		var entries []core.Entry
		if allTenants {
			entries, err = s.readEntries(ctx, func() ([]core.Entry, error) {
				return s.store.ListBetweenAll(ctx, start, end, Filter{Category: category})
			})
		} else {
			entries, err = s.readEntries(ctx, func() ([]core.Entry, error) {
				return s.store.ListBetween(ctx, tenantID, start, end, Filter{Category: category})
			})
		}
		if err != nil {
			return nil, err
		}
		out = append(out, TrendPoint{Label: label, Total: core.SumEntries(entries)})
	}
	return out, nil
}

// readEntries runs an idempotent read, retrying once when the
// substrate reports a transient failure.
func (s *Service) readEntries(ctx context.Context, fn func() ([]core.Entry, error)) ([]core.Entry, error) {
	entries, err := fn()
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		slog.WarnContext(ctx, "Store read failed, retrying once", "error", err)
		entries, err = fn()
	}
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return entries, nil
}
