// Package storage persists the ledger: transactions, income entries,
// categories and sources, month locks and the append-only audit log.
//
// The core logic only sees the Store interface; whether rows live in SQLite,
// Postgres or memory is a deployment choice.
package storage

import (
	"context"

	"duitku/internal/core"
)

// TransactionFilter narrows a transaction listing. Empty fields match all.
type TransactionFilter struct {
	YearMonth  string
	CategoryID string
	FromMonth  string // inclusive range on year_month
	ToMonth    string
}

// IncomeFilter narrows an income listing. Empty fields match all.
type IncomeFilter struct {
	YearMonth string
	SourceID  string
	FromMonth string
	ToMonth   string
}

// Store is the narrow persistence interface the core depends on. All
// methods return core.ErrNotFound for missing rows and core.ErrDuplicateName
// for unique-name violations; anything else is an internal store failure.
type Store interface {
	InsertTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

	InsertIncome(ctx context.Context, i core.Income) error
	GetIncome(ctx context.Context, id string) (core.Income, error)
	UpdateIncome(ctx context.Context, i core.Income) error
	DeleteIncome(ctx context.Context, id string) error
	ListIncome(ctx context.Context, f IncomeFilter) ([]core.Income, error)

	InsertCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, id string) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, activeOnly bool) ([]core.Category, error)

	InsertSource(ctx context.Context, s core.Source) error
	GetSource(ctx context.Context, id string) (core.Source, error)
	UpdateSource(ctx context.Context, s core.Source) error
	ListSources(ctx context.Context, kind core.SourceKind, activeOnly bool) ([]core.Source, error)

	// GetMonthLock returns core.ErrNotFound when the month has no row,
	// which callers treat as unlocked.
	GetMonthLock(ctx context.Context, yearMonth string) (core.MonthLock, error)
	UpsertMonthLock(ctx context.Context, lock core.MonthLock) error
	// ListMonthLocks returns all locks descending by month.
	ListMonthLocks(ctx context.Context) ([]core.MonthLock, error)

	AppendAuditEntry(ctx context.Context, e core.AuditLogEntry) error
	// ListAuditEntries returns the newest entries first, at most limit
	// (limit <= 0 means no cap).
	ListAuditEntries(ctx context.Context, limit int) ([]core.AuditLogEntry, error)

	Close() error
}
