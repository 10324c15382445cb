// Package memory holds the ledger in process memory. It backs tests and the
// zero-setup default backend; semantics match the SQL stores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"duitku/internal/core"
	"duitku/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	income       []core.Income
	categories   []core.Category
	sources      []core.Source
	locks        map[string]core.MonthLock
	audit        []core.AuditLogEntry
}

func New() *Store {
	return &Store{locks: make(map[string]core.MonthLock)}
}

func (s *Store) Close() error { return nil }

// --- transactions ---

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == t.ID {
			s.transactions[i] = t
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if f.YearMonth != "" && t.YearMonth != f.YearMonth {
			continue
		}
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		if f.FromMonth != "" && t.YearMonth < f.FromMonth {
			continue
		}
		if f.ToMonth != "" && t.YearMonth > f.ToMonth {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateISO > out[j].DateISO })
	return out, nil
}

// --- income ---

func (s *Store) InsertIncome(_ context.Context, in core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.income = append(s.income, in)
	return nil
}

func (s *Store) GetIncome(_ context.Context, id string) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.income {
		if in.ID == id {
			return in, nil
		}
	}
	return core.Income{}, core.ErrNotFound
}

func (s *Store) UpdateIncome(_ context.Context, in core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.income {
		if s.income[i].ID == in.ID {
			s.income[i] = in
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteIncome(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.income {
		if s.income[i].ID == id {
			s.income = append(s.income[:i], s.income[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListIncome(_ context.Context, f storage.IncomeFilter) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Income
	for _, in := range s.income {
		if f.YearMonth != "" && in.YearMonth != f.YearMonth {
			continue
		}
		if f.SourceID != "" && in.SourceID != f.SourceID {
			continue
		}
		if f.FromMonth != "" && in.YearMonth < f.FromMonth {
			continue
		}
		if f.ToMonth != "" && in.YearMonth > f.ToMonth {
			continue
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateISO > out[j].DateISO })
	return out, nil
}

// --- categories ---

func (s *Store) InsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return core.ErrDuplicateName
		}
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, core.ErrNotFound
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID != c.ID && strings.EqualFold(s.categories[i].Name, c.Name) {
			return core.ErrDuplicateName
		}
	}
	for i := range s.categories {
		if s.categories[i].ID == c.ID {
			s.categories[i] = c
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListCategories(_ context.Context, activeOnly bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if activeOnly && c.Archived {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- sources ---

func (s *Store) InsertSource(_ context.Context, src core.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sources {
		if existing.Kind == src.Kind && strings.EqualFold(existing.Name, src.Name) {
			return core.ErrDuplicateName
		}
	}
	s.sources = append(s.sources, src)
	return nil
}

func (s *Store) GetSource(_ context.Context, id string) (core.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.sources {
		if src.ID == id {
			return src, nil
		}
	}
	return core.Source{}, core.ErrNotFound
}

func (s *Store) UpdateSource(_ context.Context, src core.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sources {
		if s.sources[i].ID != src.ID && s.sources[i].Kind == src.Kind &&
			strings.EqualFold(s.sources[i].Name, src.Name) {
			return core.ErrDuplicateName
		}
	}
	for i := range s.sources {
		if s.sources[i].ID == src.ID {
			s.sources[i] = src
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListSources(_ context.Context, kind core.SourceKind, activeOnly bool) ([]core.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Source
	for _, src := range s.sources {
		if kind != "" && src.Kind != kind {
			continue
		}
		if activeOnly && src.Archived {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- month locks ---

func (s *Store) GetMonthLock(_ context.Context, yearMonth string) (core.MonthLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[yearMonth]
	if !ok {
		return core.MonthLock{}, core.ErrNotFound
	}
	return lock, nil
}

func (s *Store) UpsertMonthLock(_ context.Context, lock core.MonthLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lock.YearMonth] = lock
	return nil
}

func (s *Store) ListMonthLocks(_ context.Context) ([]core.MonthLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MonthLock, 0, len(s.locks))
	for _, lock := range s.locks {
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth > out[j].YearMonth })
	return out, nil
}

// --- audit log ---

func (s *Store) AppendAuditEntry(_ context.Context, e core.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, limit int) ([]core.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Reverse insertion order: entries share a timestamp when several
	// transitions happen within one second.
	out := make([]core.AuditLogEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
