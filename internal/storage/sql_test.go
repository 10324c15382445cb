package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"duitku/internal/core"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "duitku.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx := core.Transaction{
		ID:          "t1",
		DateISO:     "2025-06-15T12:00:00+07:00",
		YearMonth:   "2025-06",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
		CreatedAt:   "2025-06-15T12:00:01+07:00",
		UpdatedAt:   "2025-06-15T12:00:01+07:00",
	}
	if err := store.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	got, err := store.GetTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got != tx {
		t.Errorf("GetTransaction = %+v, want %+v", got, tx)
	}

	t.Run("empty source round-trips as empty", func(t *testing.T) {
		if got.SourceID != "" {
			t.Errorf("SourceID = %q, want empty", got.SourceID)
		}
	})

	tx.AmountRp = 75000
	tx.UpdatedAt = "2025-06-16T09:00:00+07:00"
	if err := store.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	got, _ = store.GetTransaction(ctx, "t1")
	if got.AmountRp != 75000 {
		t.Errorf("AmountRp after update = %d, want 75000", got.AmountRp)
	}

	if err := store.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := store.GetTransaction(ctx, "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction after delete = %v, want ErrNotFound", err)
	}

	t.Run("mutating a missing row", func(t *testing.T) {
		if err := store.DeleteTransaction(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("DeleteTransaction = %v, want ErrNotFound", err)
		}
		if err := store.UpdateTransaction(ctx, core.Transaction{ID: "ghost"}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("UpdateTransaction = %v, want ErrNotFound", err)
		}
	})
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	seed := []core.Transaction{
		{ID: "a", DateISO: "2025-05-10T08:00:00+07:00", YearMonth: "2025-05", CategoryID: "food", Description: "a", AmountRp: 1, CreatedAt: "x", UpdatedAt: "x"},
		{ID: "b", DateISO: "2025-06-01T08:00:00+07:00", YearMonth: "2025-06", CategoryID: "food", Description: "b", AmountRp: 2, CreatedAt: "x", UpdatedAt: "x"},
		{ID: "c", DateISO: "2025-06-20T08:00:00+07:00", YearMonth: "2025-06", CategoryID: "rent", Description: "c", AmountRp: 3, CreatedAt: "x", UpdatedAt: "x"},
		{ID: "d", DateISO: "2025-07-02T08:00:00+07:00", YearMonth: "2025-07", CategoryID: "food", Description: "d", AmountRp: 4, CreatedAt: "x", UpdatedAt: "x"},
	}
	for _, tx := range seed {
		if err := store.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction(%s): %v", tx.ID, err)
		}
	}

	tests := []struct {
		name    string
		filter  TransactionFilter
		wantIDs []string
	}{
		{
			name:    "by month, newest first",
			filter:  TransactionFilter{YearMonth: "2025-06"},
			wantIDs: []string{"c", "b"},
		},
		{
			name:    "by month and category",
			filter:  TransactionFilter{YearMonth: "2025-06", CategoryID: "food"},
			wantIDs: []string{"b"},
		},
		{
			name:    "month span",
			filter:  TransactionFilter{FromMonth: "2025-05", ToMonth: "2025-06"},
			wantIDs: []string{"c", "b", "a"},
		},
		{
			name:    "no filter returns all",
			filter:  TransactionFilter{},
			wantIDs: []string{"d", "c", "b", "a"},
		},
		{
			name:    "empty month",
			filter:  TransactionFilter{YearMonth: "2025-01"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("row[%d].ID = %q, want %q", i, got[i].ID, want)
				}
			}
		})
	}
}

func TestCategoryUniqueName(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.InsertCategory(ctx, core.Category{ID: "c1", Name: "Food"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	err := store.InsertCategory(ctx, core.Category{ID: "c2", Name: "Food"})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("InsertCategory duplicate = %v, want ErrDuplicateName", err)
	}
}

func TestSourceUniquePerKind(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.InsertSource(ctx, core.Source{ID: "s1", Name: "Salary", Kind: core.SourceIncome}); err != nil {
		t.Fatalf("InsertSource: %v", err)
	}
	// Same name under a different kind is a different source.
	if err := store.InsertSource(ctx, core.Source{ID: "s2", Name: "Salary", Kind: core.SourceFunding}); err != nil {
		t.Fatalf("InsertSource same name, other kind: %v", err)
	}
	err := store.InsertSource(ctx, core.Source{ID: "s3", Name: "Salary", Kind: core.SourceIncome})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("InsertSource duplicate = %v, want ErrDuplicateName", err)
	}

	income, err := store.ListSources(ctx, core.SourceIncome, false)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(income) != 1 {
		t.Errorf("income sources = %d, want 1", len(income))
	}
	all, err := store.ListSources(ctx, "", false)
	if err != nil {
		t.Fatalf("ListSources all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all sources = %d, want 2", len(all))
	}
}

func TestMonthLockUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.GetMonthLock(ctx, "2025-06"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetMonthLock missing = %v, want ErrNotFound", err)
	}

	lock := core.MonthLock{
		YearMonth:       "2025-06",
		Status:          core.StatusLocked,
		LockedAtISO:     "2025-07-01T00:01:00+07:00",
		ReconciledAtISO: "2025-07-01T00:01:00+07:00",
	}
	if err := store.UpsertMonthLock(ctx, lock); err != nil {
		t.Fatalf("UpsertMonthLock: %v", err)
	}

	got, err := store.GetMonthLock(ctx, "2025-06")
	if err != nil {
		t.Fatalf("GetMonthLock: %v", err)
	}
	if got != lock {
		t.Errorf("GetMonthLock = %+v, want %+v", got, lock)
	}

	// Second upsert replaces the row in place.
	lock.Status = core.StatusUnlocked
	lock.UnlockedAtISO = "2025-07-05T10:00:00+07:00"
	if err := store.UpsertMonthLock(ctx, lock); err != nil {
		t.Fatalf("UpsertMonthLock update: %v", err)
	}
	got, _ = store.GetMonthLock(ctx, "2025-06")
	if got.Status != core.StatusUnlocked || got.UnlockedAtISO != lock.UnlockedAtISO {
		t.Errorf("after upsert = %+v", got)
	}

	locks, err := store.ListMonthLocks(ctx)
	if err != nil {
		t.Fatalf("ListMonthLocks: %v", err)
	}
	if len(locks) != 1 {
		t.Errorf("ListMonthLocks = %d rows, want 1", len(locks))
	}
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := []core.AuditLogEntry{
		{ID: "e1", TsISO: "2025-07-01T00:01:00+07:00", Actor: "system", Action: core.AuditLock, Month: "2025-06"},
		{ID: "e2", TsISO: "2025-07-05T09:00:00+07:00", Actor: "AB", Action: core.AuditUnlock, Month: "2025-06", Reason: "late receipt"},
		{ID: "e3", TsISO: "2025-07-05T10:00:00+07:00", Actor: "AB", Action: core.AuditRelock, Month: "2025-06"},
	}
	for _, e := range entries {
		if err := store.AppendAuditEntry(ctx, e); err != nil {
			t.Fatalf("AppendAuditEntry(%s): %v", e.ID, err)
		}
	}

	got, err := store.ListAuditEntries(ctx, 0)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("have %d entries, want 3", len(got))
	}
	if got[0].ID != "e3" || got[2].ID != "e1" {
		t.Errorf("entries not newest first: %v, %v, %v", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[2].Reason != "" {
		t.Errorf("lock entry reason = %q, want empty", got[2].Reason)
	}
	if got[1].Reason != "late receipt" {
		t.Errorf("unlock entry reason = %q", got[1].Reason)
	}

	t.Run("limit", func(t *testing.T) {
		got, err := store.ListAuditEntries(ctx, 2)
		if err != nil {
			t.Fatalf("ListAuditEntries: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("have %d entries, want 2", len(got))
		}
	})
}
