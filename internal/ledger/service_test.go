package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riel/internal/core"
	"riel/internal/ledger"
	"riel/internal/storage/memory"
)

func newTestService(t *testing.T, start time.Time) (*ledger.Service, *clock) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Phnom_Penh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	c := &clock{now: start}
	svc := ledger.NewService(memory.New(), ledger.NewDuplicateGuard(15*time.Second), loc).
		WithClock(c.Now)
	return svc, c
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStoreAssignsCategoryAndID(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	cases := []struct {
		text, wantCategory string
	}{
		{"deposit 5,000 #savings", "savings"},  // hashtag wins
		{"monthly salary 120,000", "salary"},   // keyword table
		{"withdraw 3,000", "expense"},          // hint fallback
		{"cat: food stuff", "food stuff"},      // directive wins
		{"just 5,000", ""},                     // nothing applies
	}
	for i, tc := range cases {
		e, err := svc.Store(ctx, "t1", "sam", tc.text)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if e.Category != tc.wantCategory {
			t.Fatalf("case %d (%q): category %q want %q", i, tc.text, e.Category, tc.wantCategory)
		}
		if e.ID != int64(i+1) {
			t.Fatalf("case %d: id %d want %d", i, e.ID, i+1)
		}
		if e.Kind != core.KindNote {
			t.Fatalf("case %d: kind %q", i, e.Kind)
		}
		if e.CreatedAt.Location() != time.UTC {
			t.Fatalf("case %d: created_at not UTC", i)
		}
	}
}

func TestStoreRejectsDuplicates(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.Store(ctx, "t1", "", "paid 2,000"); err != nil {
		t.Fatalf("first store: %v", err)
	}
	c.Advance(5 * time.Second)
	_, err := svc.Store(ctx, "t1", "", "paid 2,000")
	if !errors.Is(err, ledger.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Another tenant submitting the same text is fine.
	if _, err := svc.Store(ctx, "t2", "", "paid 2,000"); err != nil {
		t.Fatalf("other tenant: %v", err)
	}
	// After the window the original tenant may repeat the text.
	c.Advance(16 * time.Second)
	if _, err := svc.Store(ctx, "t1", "", "paid 2,000"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestStoreRequiresTenant(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	_, err := svc.Store(context.Background(), "  ", "", "paid 2,000")
	if !errors.Is(err, core.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}

func TestQueryScopedAndTotals(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	mustStore := func(tenant, text string) {
		t.Helper()
		if _, err := svc.Store(ctx, tenant, "", text); err != nil {
			t.Fatalf("store %q: %v", text, err)
		}
		c.Advance(time.Minute)
	}
	mustStore("t1", "deposit 5,000")
	mustStore("t1", "paid 2,000 #food")
	mustStore("t2", "income 9,000")

	entries, label, err := svc.QueryScoped(ctx, "t1", "daily", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if label != "2025-03-10" {
		t.Fatalf("label %q", label)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}

	totals := svc.Totals(entries)
	if !totals.Grand.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("grand total %s want 3000", totals.Grand)
	}
	if len(totals.ByCategory) != 2 {
		t.Fatalf("category rows %d", len(totals.ByCategory))
	}
}

func TestQueryScopedIsSubsetOfFanOut(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, tc := range []struct{ tenant, text string }{
		{"t1", "deposit 5,000 #savings"},
		{"t2", "paid 2,000 #savings"},
		{"t2", "paid 7,000"},
		{"t3", "income 1,000,000"},
	} {
		if _, err := svc.Store(ctx, tc.tenant, "", tc.text); err != nil {
			t.Fatalf("store: %v", err)
		}
		c.Advance(time.Second)
	}

	scoped, _, err := svc.QueryScoped(ctx, "t2", "daily", "savings")
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
	all, _, err := svc.QueryAllTenants(ctx, "daily", "savings")
	if err != nil {
		t.Fatalf("fan-out: %v", err)
	}

	inAll := func(want core.Entry) bool {
		for _, e := range all {
			if e.TenantID == want.TenantID && e.ID == want.ID {
				return true
			}
		}
		return false
	}
	for _, e := range scoped {
		if e.TenantID != "t2" {
			t.Fatalf("scoped query leaked tenant %q", e.TenantID)
		}
		if !inAll(e) {
			t.Fatalf("scoped entry %d missing from fan-out result", e.ID)
		}
	}
	// Fan-out order is deterministic: created_at, tenant, id.
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatalf("fan-out result out of order at %d", i)
		}
	}
}

func TestEditChangesDerivedTotals(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	e, err := svc.Store(ctx, "t1", "", "deposit 1,000")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ok, err := svc.Edit(ctx, "t1", e.ID, "deposit 9,000")
	if err != nil || !ok {
		t.Fatalf("edit: ok=%v err=%v", ok, err)
	}

	entries, _, err := svc.QueryScoped(ctx, "t1", "daily", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := svc.Totals(entries).Grand; !got.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("total %s want 9000 after edit", got)
	}

	// Editing a missing id is a no-op result, not an error.
	ok, err = svc.Edit(ctx, "t1", 999, "whatever 5,000")
	if err != nil {
		t.Fatalf("edit missing: %v", err)
	}
	if ok {
		t.Fatalf("edit of missing id reported success")
	}
}

func TestDeleteTargets(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, _ := svc.Store(ctx, "t1", "", "deposit 1,000")
	c.Advance(time.Minute)
	second, _ := svc.Store(ctx, "t1", "", "deposit 2,000")
	c.Advance(time.Minute)

	n, err := svc.Delete(ctx, "t1", ledger.MostRecentTarget)
	if err != nil || n != 1 {
		t.Fatalf("delete most recent: n=%d err=%v", n, err)
	}
	entries, _, _ := svc.QueryScoped(ctx, "t1", "daily", "")
	if len(entries) != 1 || entries[0].ID != first.ID {
		t.Fatalf("most recent delete removed the wrong entry: %+v", entries)
	}

	n, err = svc.Delete(ctx, "t1", "999")
	if err != nil || n != 0 {
		t.Fatalf("delete missing id: n=%d err=%v", n, err)
	}
	_ = second
}

func TestDeleteRangeWithCount(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	svc.Store(ctx, "t1", "", "paid 2,000 #food")
	c.Advance(time.Second)
	svc.Store(ctx, "t1", "", "paid 3,000 #food")
	c.Advance(time.Second)
	svc.Store(ctx, "t1", "", "deposit 5,000")

	n, label, err := svc.CountPeriod(ctx, "t1", "daily", "food")
	if err != nil || n != 2 {
		t.Fatalf("count: n=%d err=%v", n, err)
	}
	if label != "2025-03-10" {
		t.Fatalf("label %q", label)
	}

	deleted, _, err := svc.DeleteRange(ctx, "t1", "daily", "food")
	if err != nil || deleted != 2 {
		t.Fatalf("delete range: n=%d err=%v", deleted, err)
	}
	entries, _, _ := svc.QueryScoped(ctx, "t1", "daily", "")
	if len(entries) != 1 {
		t.Fatalf("expected one surviving entry, got %d", len(entries))
	}
}

func TestInvalidPeriodSurfaces(t *testing.T) {
	svc, _ := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	_, _, err := svc.QueryScoped(context.Background(), "t1", "yearly", "")
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	svc.Store(ctx, "t1", "", "paid 2,000 for Fuel")
	c.Advance(time.Second)
	svc.Store(ctx, "t1", "", "deposit 5,000")

	hits, err := svc.Search(ctx, "t1", "fuel", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || !strings.Contains(hits[0].Text, "Fuel") {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestTrendSeries(t *testing.T) {
	svc, c := newTestService(t, time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// One entry two days ago, one today (local dates in UTC+7).
	svc.Store(ctx, "t1", "", "deposit 2,000")
	c.Advance(48 * time.Hour)
	svc.Store(ctx, "t1", "", "deposit 3,000")

	points, err := svc.TrendSeries(ctx, "t1", false, core.Daily, "", 7)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("got %d points", len(points))
	}
	if !points[6].Total.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("today's bucket %s want 3000", points[6].Total)
	}
	if !points[4].Total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("two-days-ago bucket %s want 2000", points[4].Total)
	}

	_, err = svc.TrendSeries(ctx, "t1", false, core.Monthly, "", 3)
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod for monthly trend, got %v", err)
	}
}

func TestDailyTrendCrossesDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Shortly after the 2025 spring-forward (Mar 9, 02:00 local).
	// Stepping back a fixed 24h from here lands on Mar 8 and loses
	// Mar 9 entirely; calendar stepping keeps every local day.
	c := &clock{now: time.Date(2025, 3, 10, 0, 30, 0, 0, loc)}
	svc := ledger.NewService(memory.New(), nil, loc).WithClock(c.Now)

	points, err := svc.TrendSeries(context.Background(), "t1", false, core.Daily, "", 3)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	want := []string{"03-08", "03-09", "03-10"}
	if len(points) != len(want) {
		t.Fatalf("got %d points", len(points))
	}
	for i, w := range want {
		if points[i].Label != w {
			t.Fatalf("label %d = %q want %q", i, points[i].Label, w)
		}
	}
}
