// Package memory is the in-memory EntryStore adapter: the default
// backend for local development and the test double for the service
// layer. Partitioning is a map keyed by tenant id.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"riel/internal/core"
	"riel/internal/ledger"
)

type partition struct {
	nextID  int64
	entries []core.Entry
}

type Store struct {
	mu         sync.Mutex
	partitions map[string]*partition
}

var _ ledger.EntryStore = (*Store)(nil)

func New() *Store {
	return &Store{partitions: make(map[string]*partition)}
}

func (s *Store) partitionFor(tenantID string) *partition {
	p, ok := s.partitions[tenantID]
	if !ok {
		p = &partition{nextID: 1}
		s.partitions[tenantID] = p
	}
	return p
}

func (s *Store) Save(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partitionFor(e.TenantID)
	e.ID = p.nextID
	p.nextID++
	e.CreatedAt = core.NormalizeTime(e.CreatedAt)
	p.entries = append(p.entries, e)
	return e, nil
}

func matches(e core.Entry, f ledger.Filter) bool {
	if f.Category == "" {
		return true
	}
	return strings.EqualFold(e.Category, f.Category)
}

func (s *Store) List(_ context.Context, tenantID string, f ledger.Filter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[tenantID]
	if !ok {
		return nil, nil
	}
	var out []core.Entry
	for _, e := range p.entries {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) listBetweenLocked(tenantID string, start, end time.Time, f ledger.Filter) []core.Entry {
	p, ok := s.partitions[tenantID]
	if !ok {
		return nil
	}
	var out []core.Entry
	for _, e := range p.entries {
		if e.CreatedAt.Before(start) || e.CreatedAt.After(end) {
			continue
		}
		if matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) ListBetween(_ context.Context, tenantID string, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.listBetweenLocked(tenantID, start, end, f)
	core.SortForMerge(out)
	return out, nil
}

func (s *Store) ListBetweenAll(_ context.Context, start, end time.Time, f ledger.Filter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Entry
	for tenantID := range s.partitions {
		out = append(out, s.listBetweenLocked(tenantID, start, end, f)...)
	}
	core.SortForMerge(out)
	return out, nil
}

func (s *Store) CountBetween(_ context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listBetweenLocked(tenantID, start, end, f)), nil
}

func (s *Store) DeleteByID(_ context.Context, tenantID string, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[tenantID]
	if !ok {
		return 0, nil
	}
	for i, e := range p.entries {
		if e.ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *Store) DeleteMostRecent(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[tenantID]
	if !ok || len(p.entries) == 0 {
		return 0, nil
	}
	newest := 0
	for i := 1; i < len(p.entries); i++ {
		e, n := p.entries[i], p.entries[newest]
		if e.CreatedAt.After(n.CreatedAt) ||
			(e.CreatedAt.Equal(n.CreatedAt) && e.ID > n.ID) {
			newest = i
		}
	}
	p.entries = append(p.entries[:newest], p.entries[newest+1:]...)
	return 1, nil
}

func (s *Store) DeleteBetween(_ context.Context, tenantID string, start, end time.Time, f ledger.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[tenantID]
	if !ok {
		return 0, nil
	}
	kept := p.entries[:0]
	deleted := 0
	for _, e := range p.entries {
		inRange := !e.CreatedAt.Before(start) && !e.CreatedAt.After(end)
		if inRange && matches(e, f) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return deleted, nil
}

func (s *Store) UpdateText(_ context.Context, tenantID string, id int64, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[tenantID]
	if !ok {
		return false, nil
	}
	for i := range p.entries {
		if p.entries[i].ID == id {
			p.entries[i].Text = text
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Tenants(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.partitions))
	for tenantID := range s.partitions {
		out = append(out, tenantID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
