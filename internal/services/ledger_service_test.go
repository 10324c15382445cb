package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"duitku/internal/civiltime"
	"duitku/internal/core"
	"duitku/internal/locks"
	"duitku/internal/storage/memory"
)

type capturedEvent struct {
	kind, id, action string
}

type fakePublisher struct {
	events []capturedEvent
	fail   bool
}

func (p *fakePublisher) PublishEntryChange(_ context.Context, kind, id, action string) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, capturedEvent{kind: kind, id: id, action: action})
	return nil
}

func newLedgerFixture(t *testing.T) (*LedgerService, *locks.Service, *fakePublisher) {
	t.Helper()
	store := memory.New()
	clock := civiltime.NewFixed(time.Date(2025, 7, 10, 12, 0, 0, 0, civiltime.Location()))
	lockSvc := locks.NewService(store, clock, "2025-01")
	pub := &fakePublisher{}
	return NewLedgerService(store, lockSvc, clock, pub), lockSvc, pub
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newLedgerFixture(t)

	tx, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-06-15T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == "" {
		t.Error("created transaction has no id")
	}
	if tx.YearMonth != "2025-06" {
		t.Errorf("YearMonth = %q, want %q", tx.YearMonth, "2025-06")
	}
	if tx.CreatedAt == "" || tx.UpdatedAt == "" {
		t.Error("timestamps not set")
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0] != (capturedEvent{kind: "transaction", id: tx.ID, action: "created"}) {
		t.Errorf("event = %+v", pub.events[0])
	}

	t.Run("month derived from instant, not the literal date", func(t *testing.T) {
		// 18:30Z on Jun 30 is already July in WIB.
		tx, err := svc.CreateTransaction(ctx, TransactionInput{
			DateISO:     "2025-06-30T18:30:00Z",
			CategoryID:  "transport",
			Description: "late ride",
			AmountRp:    20000,
		})
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		if tx.YearMonth != "2025-07" {
			t.Errorf("YearMonth = %q, want %q", tx.YearMonth, "2025-07")
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			in   TransactionInput
		}{
			{
				name: "bad date",
				in:   TransactionInput{DateISO: "15/06/2025", CategoryID: "c", Description: "x", AmountRp: 100},
			},
			{
				name: "negative amount",
				in:   TransactionInput{DateISO: "2025-06-15T12:00:00+07:00", CategoryID: "c", Description: "x", AmountRp: -5},
			},
			{
				name: "missing category",
				in:   TransactionInput{DateISO: "2025-06-15T12:00:00+07:00", Description: "x", AmountRp: 100},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateTransaction(ctx, tt.in)
				var verr *core.ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("CreateTransaction error = %v, want ValidationError", err)
				}
			})
		}
	})
}

func TestCreateTransactionInLockedMonth(t *testing.T) {
	ctx := context.Background()
	svc, lockSvc, pub := newLedgerFixture(t)

	if err := lockSvc.Lock(ctx, "2025-06", "system"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-06-15T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "backdated",
		AmountRp:    10000,
	})
	var mlErr *core.MonthLockedError
	if !errors.As(err, &mlErr) {
		t.Fatalf("CreateTransaction error = %v, want MonthLockedError", err)
	}
	if mlErr.Month != "2025-06" {
		t.Errorf("MonthLockedError.Month = %q, want %q", mlErr.Month, "2025-06")
	}
	if len(pub.events) != 0 {
		t.Errorf("no event should be published for a rejected write, got %d", len(pub.events))
	}
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	svc, lockSvc, pub := newLedgerFixture(t)

	tx, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-06-15T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	newAmount := int64(75000)
	updated, err := svc.UpdateTransaction(ctx, tx.ID, TransactionPatch{AmountRp: &newAmount})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.AmountRp != 75000 {
		t.Errorf("AmountRp = %d, want 75000", updated.AmountRp)
	}
	if updated.Description != "weekly shop" {
		t.Errorf("unpatched field changed: %q", updated.Description)
	}
	if pub.events[len(pub.events)-1].action != "updated" {
		t.Errorf("last event action = %q, want updated", pub.events[len(pub.events)-1].action)
	}

	t.Run("date move into a locked month is rejected", func(t *testing.T) {
		if err := lockSvc.Lock(ctx, "2025-05", "system"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		newDate := "2025-05-20T12:00:00+07:00"
		_, err := svc.UpdateTransaction(ctx, tx.ID, TransactionPatch{DateISO: &newDate})
		var mlErr *core.MonthLockedError
		if !errors.As(err, &mlErr) {
			t.Fatalf("UpdateTransaction error = %v, want MonthLockedError", err)
		}
		if mlErr.Month != "2025-05" {
			t.Errorf("MonthLockedError.Month = %q, want %q", mlErr.Month, "2025-05")
		}
	})

	t.Run("update while current month locked is rejected", func(t *testing.T) {
		if err := lockSvc.Lock(ctx, "2025-06", "system"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		defer func() {
			if err := lockSvc.Unlock(ctx, "2025-06", "test cleanup", "TT"); err != nil {
				t.Fatalf("Unlock: %v", err)
			}
		}()
		amount := int64(1)
		_, err := svc.UpdateTransaction(ctx, tx.ID, TransactionPatch{AmountRp: &amount})
		var mlErr *core.MonthLockedError
		if !errors.As(err, &mlErr) {
			t.Fatalf("UpdateTransaction error = %v, want MonthLockedError", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		amount := int64(1)
		_, err := svc.UpdateTransaction(ctx, "nope", TransactionPatch{AmountRp: &amount})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("UpdateTransaction error = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	svc, lockSvc, pub := newLedgerFixture(t)

	tx, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-06-15T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	t.Run("locked month blocks deletion", func(t *testing.T) {
		if err := lockSvc.Lock(ctx, "2025-06", "system"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		err := svc.DeleteTransaction(ctx, tx.ID)
		var mlErr *core.MonthLockedError
		if !errors.As(err, &mlErr) {
			t.Fatalf("DeleteTransaction error = %v, want MonthLockedError", err)
		}
	})

	t.Run("unlock then delete succeeds", func(t *testing.T) {
		if err := lockSvc.Unlock(ctx, "2025-06", "removing a duplicate", "AB"); err != nil {
			t.Fatalf("Unlock: %v", err)
		}
		if err := svc.DeleteTransaction(ctx, tx.ID); err != nil {
			t.Fatalf("DeleteTransaction: %v", err)
		}
		if _, err := svc.GetTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetTransaction after delete = %v, want ErrNotFound", err)
		}
		last := pub.events[len(pub.events)-1]
		if last.action != "deleted" || last.id != tx.ID {
			t.Errorf("last event = %+v, want deleted %s", last, tx.ID)
		}
	})
}

func TestCreateIncome(t *testing.T) {
	ctx := context.Background()
	svc, lockSvc, pub := newLedgerFixture(t)

	entry, err := svc.CreateIncome(ctx, IncomeInput{
		DateISO:     "2025-07-01T09:00:00+07:00",
		SourceID:    "salary",
		Description: "july salary",
		AmountRp:    8000000,
	})
	if err != nil {
		t.Fatalf("CreateIncome: %v", err)
	}
	if entry.YearMonth != "2025-07" {
		t.Errorf("YearMonth = %q, want %q", entry.YearMonth, "2025-07")
	}
	if pub.events[0].kind != "income" {
		t.Errorf("event kind = %q, want income", pub.events[0].kind)
	}

	t.Run("locked month", func(t *testing.T) {
		if err := lockSvc.Lock(ctx, "2025-06", "system"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		_, err := svc.CreateIncome(ctx, IncomeInput{
			DateISO:     "2025-06-01T09:00:00+07:00",
			SourceID:    "salary",
			Description: "backdated",
			AmountRp:    100,
		})
		var mlErr *core.MonthLockedError
		if !errors.As(err, &mlErr) {
			t.Errorf("CreateIncome error = %v, want MonthLockedError", err)
		}
	})
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := civiltime.NewFixed(time.Date(2025, 7, 10, 12, 0, 0, 0, civiltime.Location()))
	lockSvc := locks.NewService(store, clock, "2025-01")
	pub := &fakePublisher{fail: true}
	svc := NewLedgerService(store, lockSvc, clock, pub)

	tx, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-07-05T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
	})
	if err != nil {
		t.Fatalf("CreateTransaction should succeed despite publish failure: %v", err)
	}
	if _, err := svc.GetTransaction(ctx, tx.ID); err != nil {
		t.Errorf("transaction should be persisted: %v", err)
	}
}

func TestNilPublisher(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := civiltime.NewFixed(time.Date(2025, 7, 10, 12, 0, 0, 0, civiltime.Location()))
	lockSvc := locks.NewService(store, clock, "2025-01")
	svc := NewLedgerService(store, lockSvc, clock, nil)

	if _, err := svc.CreateTransaction(ctx, TransactionInput{
		DateISO:     "2025-07-05T12:00:00+07:00",
		CategoryID:  "groceries",
		Description: "weekly shop",
		AmountRp:    50000,
	}); err != nil {
		t.Fatalf("CreateTransaction with nil publisher: %v", err)
	}
}
