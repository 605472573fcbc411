// Package storage is the sqlite EntryStore adapter. Partitioning is
// physical: every tenant owns its own database file under the data
// directory, so isolation comes from the filesystem and fan-out
// queries are a scatter-gather over partition files.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"riel/internal/core"
	"riel/internal/ledger"
)

// timeLayout is fixed-width UTC so lexicographic comparison inside
// sqlite matches chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

const entryColumns = "id, tenant_id, display_name, category, kind, text, created_at"

// fanOutLimit caps how many partition files a cross-tenant query
// opens concurrently.
const fanOutLimit = 8

type SQLiteStore struct {
	dir string

	mu  sync.Mutex
	dbs map[string]*sql.DB // sanitized tenant id -> open partition
}

var _ ledger.EntryStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &SQLiteStore{
		dir: dir,
		dbs: make(map[string]*sql.DB),
	}, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for key, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, key)
	}
	return firstErr
}

// sanitizeTenant makes a tenant id safe as a filename fragment.
// Isolation does not depend on it: every query still filters on the
// tenant_id column.
func sanitizeTenant(tenantID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, tenantID)
}

func (s *SQLiteStore) partitionPath(tenantID string) string {
	return filepath.Join(s.dir, "tenant_"+sanitizeTenant(tenantID)+".db")
}

// partition opens (and on first use migrates) a tenant's database
// file, creating it when create is set. For reads of an unknown
// tenant it returns nil without creating anything.
func (s *SQLiteStore) partition(tenantID string, create bool) (*sql.DB, error) {
	key := sanitizeTenant(tenantID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok {
		return db, nil
	}

	path := s.partitionPath(tenantID)
	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open partition: %v", ledger.ErrStoreUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping partition: %v", ledger.ErrStoreUnavailable, err)
	}
	if err := runMigrations(path); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate partition: %w", err)
	}

	s.dbs[key] = db
	return db, nil
}

func (s *SQLiteStore) Save(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	db, err := s.partition(e.TenantID, true)
	if err != nil {
		return core.Entry{}, err
	}

	e.CreatedAt = core.NormalizeTime(e.CreatedAt)
	if e.Kind == "" {
		e.Kind = core.KindNote
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO entries (tenant_id, display_name, category, kind, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.DisplayName, e.Category, e.Kind, e.Text,
		e.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: insert entry: %v", ledger.ErrStoreUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Entry saved to sqlite partition",
		"tenant_id", e.TenantID, "entry_id", e.ID, "category", e.Category)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]core.Entry, error) {
	defer rows.Close()
	var out []core.Entry
	for rows.Next() {
		var e core.Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.DisplayName, &e.Category, &e.Kind, &e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		e.CreatedAt = t.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", ledger.ErrStoreUnavailable, err)
	}
	return out, nil
}

func categoryClause(f ledger.Filter, args []any) (string, []any) {
	if f.Category == "" {
		return "", args
	}
	return " AND lower(category) = ?", append(args, strings.ToLower(f.Category))
}

func (s *SQLiteStore) List(ctx context.Context, tenantID string, f ledger.Filter) ([]core.Entry, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return nil, err
	}
	query := "SELECT " + entryColumns + " FROM entries WHERE tenant_id = ?"
	args := []any{tenantID}
	var clause string
	clause, args = categoryClause(f, args)
	query += clause + " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ledger.ErrStoreUnavailable, err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStore) listBetweenTenant(ctx context.Context, db *sql.DB, tenantID string, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	query := "SELECT " + entryColumns + ` FROM entries
		WHERE tenant_id = ? AND created_at >= ? AND created_at <= ?`
	args := []any{tenantID, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)}
	var clause string
	clause, args = categoryClause(f, args)
	query += clause + " ORDER BY created_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list between: %v", ledger.ErrStoreUnavailable, err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStore) ListBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return nil, err
	}
	return s.listBetweenTenant(ctx, db, tenantID, start, end, f)
}

// ListBetweenAll scatter-gathers over every partition file. Partition
// queries run concurrently; the merge sorts afterwards, so completion
// order never shows in the result.
func (s *SQLiteStore) ListBetweenAll(ctx context.Context, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	paths, err := s.partitionFiles()
	if err != nil {
		return nil, err
	}

	results := make([][]core.Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, path := range paths {
		g.Go(func() error {
			entries, err := s.queryPartitionFile(gctx, path, start, end, f)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []core.Entry
	for _, entries := range results {
		merged = append(merged, entries...)
	}
	core.SortForMerge(merged)
	return merged, nil
}

// queryPartitionFile reads one partition without a tenant filter: the
// file itself is the partition boundary.
func (s *SQLiteStore) queryPartitionFile(ctx context.Context, path string, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open partition %s: %v", ledger.ErrStoreUnavailable, filepath.Base(path), err)
	}
	defer db.Close()

	query := "SELECT " + entryColumns + " FROM entries WHERE created_at >= ? AND created_at <= ?"
	args := []any{start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)}
	var clause string
	clause, args = categoryClause(f, args)
	query += clause + " ORDER BY created_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query partition %s: %v", ledger.ErrStoreUnavailable, filepath.Base(path), err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStore) partitionFiles() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "tenant_*.db"))
	if err != nil {
		return nil, fmt.Errorf("glob partitions: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *SQLiteStore) CountBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM entries WHERE tenant_id = ? AND created_at >= ? AND created_at <= ?"
	args := []any{tenantID, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)}
	var clause string
	clause, args = categoryClause(f, args)

	var n int
	if err := db.QueryRowContext(ctx, query+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count between: %v", ledger.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, tenantID string, id int64) (int, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM entries WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by id: %v", ledger.ErrStoreUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) DeleteMostRecent(ctx context.Context, tenantID string) (int, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM entries WHERE id IN (
			SELECT id FROM entries WHERE tenant_id = ?
			ORDER BY created_at DESC, id DESC LIMIT 1
		)`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete most recent: %v", ledger.ErrStoreUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) DeleteBetween(ctx context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return 0, err
	}
	query := "DELETE FROM entries WHERE tenant_id = ? AND created_at >= ? AND created_at <= ?"
	args := []any{tenantID, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)}
	var clause string
	clause, args = categoryClause(f, args)

	res, err := db.ExecContext(ctx, query+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: delete between: %v", ledger.ErrStoreUnavailable, err)
	}
	n, err := rowsAffected(res)
	if err == nil && n > 0 {
		slog.InfoContext(ctx, "Entries deleted from partition",
			"tenant_id", tenantID, "deleted", n)
	}
	return n, err
}

func (s *SQLiteStore) UpdateText(ctx context.Context, tenantID string, id int64, text string) (bool, error) {
	db, err := s.partition(tenantID, false)
	if err != nil || db == nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		"UPDATE entries SET text = ? WHERE tenant_id = ? AND id = ?", text, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("%w: update text: %v", ledger.ErrStoreUnavailable, err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// Tenants reads the authoritative tenant id out of each partition
// file; the filename is only a sanitized hint.
func (s *SQLiteStore) Tenants(ctx context.Context) ([]string, error) {
	paths, err := s.partitionFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, path := range paths {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("%w: open partition %s: %v", ledger.ErrStoreUnavailable, filepath.Base(path), err)
		}
		rows, err := db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM entries")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: list tenants %s: %v", ledger.ErrStoreUnavailable, filepath.Base(path), err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				db.Close()
				return nil, fmt.Errorf("scan tenant id: %w", err)
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		err = rows.Err()
		rows.Close()
		db.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: iterate tenants: %v", ledger.ErrStoreUnavailable, err)
		}
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
