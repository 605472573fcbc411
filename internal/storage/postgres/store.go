// Package postgres is the shared-database EntryStore adapter. All
// tenants live in one entries table; partitioning is logical, enforced
// by the tenant_id column on every query.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"riel/internal/core"
	"riel/internal/ledger"
)

const entryColumns = "id, tenant_id, display_name, category, kind, text, created_at"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id           BIGSERIAL PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT 'note',
	text         TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_tenant_created ON entries (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_entries_category ON entries (category);
`

type Store struct {
	db *sql.DB
}

var _ ledger.EntryStore = (*Store)(nil)

func New(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", ledger.ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	e.CreatedAt = core.NormalizeTime(e.CreatedAt)
	if e.Kind == "" {
		e.Kind = core.KindNote
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO entries (tenant_id, display_name, category, kind, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.TenantID, e.DisplayName, e.Category, e.Kind, e.Text, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: insert entry: %v", ledger.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "Entry saved to postgres",
		"tenant_id", e.TenantID, "entry_id", e.ID, "category", e.Category)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]core.Entry, error) {
	defer rows.Close()
	var out []core.Entry
	for rows.Next() {
		var e core.Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.TenantID, &e.DisplayName, &e.Category, &e.Kind, &e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = createdAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", ledger.ErrStoreUnavailable, err)
	}
	return out, nil
}

func categoryClause(f ledger.Filter, n int, args []any) (string, []any) {
	if f.Category == "" {
		return "", args
	}
	return fmt.Sprintf(" AND lower(category) = $%d", n), append(args, strings.ToLower(f.Category))
}

func (s *Store) List(ctx context.Context, tenantID string, f ledger.Filter) ([]core.Entry, error) {
	query := "SELECT " + entryColumns + " FROM entries WHERE tenant_id = $1"
	args := []any{tenantID}
	var clause string
	clause, args = categoryClause(f, 2, args)
	query += clause + " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ledger.ErrStoreUnavailable, err)
	}
	return scanEntries(rows)
}

func (s *Store) ListBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	query := "SELECT " + entryColumns + ` FROM entries
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3`
	args := []any{tenantID, start.UTC(), end.UTC()}
	var clause string
	clause, args = categoryClause(f, 4, args)
	query += clause + " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list between: %v", ledger.ErrStoreUnavailable, err)
	}
	return scanEntries(rows)
}

// ListBetweenAll is a single scan here: with all tenants in one table
// there is nothing to fan out over. The ORDER BY matches the merge
// order of the partitioned stores.
func (s *Store) ListBetweenAll(ctx context.Context, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	query := "SELECT " + entryColumns + " FROM entries WHERE created_at >= $1 AND created_at <= $2"
	args := []any{start.UTC(), end.UTC()}
	var clause string
	clause, args = categoryClause(f, 3, args)
	query += clause + " ORDER BY created_at ASC, tenant_id ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list all tenants: %v", ledger.ErrStoreUnavailable, err)
	}
	return scanEntries(rows)
}

func (s *Store) CountBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	query := "SELECT COUNT(*) FROM entries WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3"
	args := []any{tenantID, start.UTC(), end.UTC()}
	var clause string
	clause, args = categoryClause(f, 4, args)

	var n int
	if err := s.db.QueryRowContext(ctx, query+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count between: %v", ledger.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *Store) DeleteByID(ctx context.Context, tenantID string, id int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by id: %v", ledger.ErrStoreUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *Store) DeleteMostRecent(ctx context.Context, tenantID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id IN (
			SELECT id FROM entries WHERE tenant_id = $1
			ORDER BY created_at DESC, id DESC LIMIT 1
		)`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete most recent: %v", ledger.ErrStoreUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *Store) DeleteBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	query := "DELETE FROM entries WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3"
	args := []any{tenantID, start.UTC(), end.UTC()}
	var clause string
	clause, args = categoryClause(f, 4, args)

	res, err := s.db.ExecContext(ctx, query+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: delete between: %v", ledger.ErrStoreUnavailable, err)
	}
	n, err := rowsAffected(res)
	if err == nil && n > 0 {
		slog.InfoContext(ctx, "Entries deleted from postgres",
			"tenant_id", tenantID, "deleted", n)
	}
	return n, err
}

func (s *Store) UpdateText(ctx context.Context, tenantID string, id int64, text string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE entries SET text = $1 WHERE tenant_id = $2 AND id = $3", text, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("%w: update text: %v", ledger.ErrStoreUnavailable, err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (s *Store) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM entries")
	if err != nil {
		return nil, fmt.Errorf("%w: list tenants: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tenants: %v", ledger.ErrStoreUnavailable, err)
	}
	sort.Strings(out)
	return out, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
