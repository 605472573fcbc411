// Package ledger is the service layer of the ingestion and
// aggregation engine: it owns the duplicate guard, the storage port
// and the query/totals operations the transport layers call into.
package ledger

import (
	"context"
	"errors"
	"time"

	"riel/internal/core"
)

// Filter narrows store queries. A zero Filter matches everything.
type Filter struct {
	Category string
}

// EntryStore is the persistence port. Implementations partition
// entries by tenant: a call scoped to tenant T must never return or
// mutate rows of any other tenant. Reads for an unknown tenant return
// empty results; writes without a tenant fail with
// core.ErrMissingTenant.
type EntryStore interface {
	// Save persists the entry, assigns its tenant-scoped ID and
	// returns the stored value.
	Save(ctx context.Context, e core.Entry) (core.Entry, error)

	// List returns a tenant's entries, most recent first.
	List(ctx context.Context, tenantID string, f Filter) ([]core.Entry, error)

	// ListBetween returns a tenant's entries inside [start, end],
	// oldest first.
	ListBetween(ctx context.Context, tenantID string, start, end time.Time, f Filter) ([]core.Entry, error)

	// ListBetweenAll fans out over every tenant partition and merges
	// the results into one deterministic order: created_at ascending,
	// ties broken by tenant id then id.
	ListBetweenAll(ctx context.Context, start, end time.Time, f Filter) ([]core.Entry, error)

	CountBetween(ctx context.Context, tenantID string, start, end time.Time, f Filter) (int, error)

	// DeleteByID removes one entry; 0 means the id was not found,
	// which is a no-op result, not an error.
	DeleteByID(ctx context.Context, tenantID string, id int64) (int, error)
	DeleteMostRecent(ctx context.Context, tenantID string) (int, error)
	DeleteBetween(ctx context.Context, tenantID string, start, end time.Time, f Filter) (int, error)

	// UpdateText replaces an entry's text wholesale. false means the
	// id was not found.
	UpdateText(ctx context.Context, tenantID string, id int64, text string) (bool, error)

	// Tenants lists every known tenant partition.
	Tenants(ctx context.Context) ([]string, error)

	Close() error
}

var (
	// ErrDuplicate reports a suppressed duplicate submission. It is a
	// distinct outcome rather than a failure; callers pick their own
	// message for it.
	ErrDuplicate = errors.New("duplicate submission")

	// ErrStoreUnavailable wraps transient storage substrate failures.
	// The service retries idempotent reads once before surfacing it;
	// writes surface immediately and are never silently dropped.
	ErrStoreUnavailable = errors.New("store unavailable")
)
