// Package services orchestrates ledger operations: validation, month-lock
// gating, persistence and best-effort change events, in that order.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"duitku/internal/civiltime"
	"duitku/internal/core"
	"duitku/internal/locks"
	"duitku/internal/storage"
)

// EventPublisher announces entry changes to the mirror worker. Implemented
// by the AMQP client; nil disables publishing.
type EventPublisher interface {
	PublishEntryChange(ctx context.Context, kind, id, action string) error
}

// TransactionInput carries the client-supplied fields of a new transaction.
type TransactionInput struct {
	DateISO     string `json:"dateISO"`
	CategoryID  string `json:"categoryId"`
	SourceID    string `json:"sourceId,omitempty"`
	Description string `json:"description"`
	AmountRp    int64  `json:"amountRp"`
}

// TransactionPatch updates a transaction; nil fields are left unchanged.
type TransactionPatch struct {
	DateISO     *string `json:"dateISO"`
	CategoryID  *string `json:"categoryId"`
	SourceID    *string `json:"sourceId"`
	Description *string `json:"description"`
	AmountRp    *int64  `json:"amountRp"`
}

// IncomeInput carries the client-supplied fields of a new income entry.
type IncomeInput struct {
	DateISO     string `json:"dateISO"`
	SourceID    string `json:"sourceId"`
	Description string `json:"description"`
	AmountRp    int64  `json:"amountRp"`
}

// IncomePatch updates an income entry; nil fields are left unchanged.
type IncomePatch struct {
	DateISO     *string `json:"dateISO"`
	SourceID    *string `json:"sourceId"`
	Description *string `json:"description"`
	AmountRp    *int64  `json:"amountRp"`
}

// LedgerService is the write path for transactions and income entries.
// Every mutation asks the lock service whether the record's target month is
// still open before it touches the store; the lock check and the write are
// two independent calls, not one atomic unit.
type LedgerService struct {
	store     storage.Store
	locks     *locks.Service
	clock     *civiltime.Clock
	publisher EventPublisher
}

func NewLedgerService(store storage.Store, lockSvc *locks.Service, clock *civiltime.Clock, publisher EventPublisher) *LedgerService {
	return &LedgerService{store: store, locks: lockSvc, clock: clock, publisher: publisher}
}

// --- transactions ---

func (s *LedgerService) CreateTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	now := s.clock.NowISO()
	t := core.Transaction{
		ID:          uuid.NewString(),
		DateISO:     in.DateISO,
		CategoryID:  in.CategoryID,
		SourceID:    in.SourceID,
		Description: in.Description,
		AmountRp:    in.AmountRp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	yearMonth, err := civiltime.YearMonthOf(t.DateISO)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "dateISO", Reason: err.Error()}
	}
	t.YearMonth = yearMonth

	if err := s.locks.AssertUnlocked(ctx, t.YearMonth); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID, "year_month", t.YearMonth, "amount_rp", t.AmountRp, "category_id", t.CategoryID)

	s.publish(ctx, core.EntryTransaction, t.ID, "created")
	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	updated := t
	if patch.DateISO != nil {
		updated.DateISO = *patch.DateISO
	}
	if patch.CategoryID != nil {
		updated.CategoryID = *patch.CategoryID
	}
	if patch.SourceID != nil {
		updated.SourceID = *patch.SourceID
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.AmountRp != nil {
		updated.AmountRp = *patch.AmountRp
	}
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// The record's current month must be open, and when the date moves the
	// destination month must be open too.
	if err := s.locks.AssertUnlocked(ctx, t.YearMonth); err != nil {
		return core.Transaction{}, err
	}
	if patch.DateISO != nil {
		yearMonth, err := civiltime.YearMonthOf(updated.DateISO)
		if err != nil {
			return core.Transaction{}, &core.ValidationError{Field: "dateISO", Reason: err.Error()}
		}
		updated.YearMonth = yearMonth
		if updated.YearMonth != t.YearMonth {
			if err := s.locks.AssertUnlocked(ctx, updated.YearMonth); err != nil {
				return core.Transaction{}, err
			}
		}
	}

	updated.UpdatedAt = s.clock.NowISO()
	if err := s.store.UpdateTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "year_month", updated.YearMonth)

	s.publish(ctx, core.EntryTransaction, id, "updated")
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.locks.AssertUnlocked(ctx, t.YearMonth); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "year_month", t.YearMonth)

	s.publish(ctx, core.EntryTransaction, id, "deleted")
	return nil
}

// --- income ---

func (s *LedgerService) CreateIncome(ctx context.Context, in IncomeInput) (core.Income, error) {
	now := s.clock.NowISO()
	entry := core.Income{
		ID:          uuid.NewString(),
		DateISO:     in.DateISO,
		SourceID:    in.SourceID,
		Description: in.Description,
		AmountRp:    in.AmountRp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := entry.Validate(); err != nil {
		return core.Income{}, err
	}

	yearMonth, err := civiltime.YearMonthOf(entry.DateISO)
	if err != nil {
		return core.Income{}, &core.ValidationError{Field: "dateISO", Reason: err.Error()}
	}
	entry.YearMonth = yearMonth

	if err := s.locks.AssertUnlocked(ctx, entry.YearMonth); err != nil {
		return core.Income{}, err
	}

	if err := s.store.InsertIncome(ctx, entry); err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}

	slog.InfoContext(ctx, "Income created",
		"id", entry.ID, "year_month", entry.YearMonth, "amount_rp", entry.AmountRp, "source_id", entry.SourceID)

	s.publish(ctx, core.EntryIncome, entry.ID, "created")
	return entry, nil
}

func (s *LedgerService) GetIncome(ctx context.Context, id string) (core.Income, error) {
	return s.store.GetIncome(ctx, id)
}

func (s *LedgerService) ListIncome(ctx context.Context, f storage.IncomeFilter) ([]core.Income, error) {
	return s.store.ListIncome(ctx, f)
}

func (s *LedgerService) UpdateIncome(ctx context.Context, id string, patch IncomePatch) (core.Income, error) {
	entry, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return core.Income{}, err
	}

	updated := entry
	if patch.DateISO != nil {
		updated.DateISO = *patch.DateISO
	}
	if patch.SourceID != nil {
		updated.SourceID = *patch.SourceID
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.AmountRp != nil {
		updated.AmountRp = *patch.AmountRp
	}
	if err := updated.Validate(); err != nil {
		return core.Income{}, err
	}

	if err := s.locks.AssertUnlocked(ctx, entry.YearMonth); err != nil {
		return core.Income{}, err
	}
	if patch.DateISO != nil {
		yearMonth, err := civiltime.YearMonthOf(updated.DateISO)
		if err != nil {
			return core.Income{}, &core.ValidationError{Field: "dateISO", Reason: err.Error()}
		}
		updated.YearMonth = yearMonth
		if updated.YearMonth != entry.YearMonth {
			if err := s.locks.AssertUnlocked(ctx, updated.YearMonth); err != nil {
				return core.Income{}, err
			}
		}
	}

	updated.UpdatedAt = s.clock.NowISO()
	if err := s.store.UpdateIncome(ctx, updated); err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}

	slog.InfoContext(ctx, "Income updated", "id", id, "year_month", updated.YearMonth)

	s.publish(ctx, core.EntryIncome, id, "updated")
	return updated, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, id string) error {
	entry, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return err
	}
	if err := s.locks.AssertUnlocked(ctx, entry.YearMonth); err != nil {
		return err
	}
	if err := s.store.DeleteIncome(ctx, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}

	slog.InfoContext(ctx, "Income deleted", "id", id, "year_month", entry.YearMonth)

	s.publish(ctx, core.EntryIncome, id, "deleted")
	return nil
}

// publish emits a change event after a successful write. The write already
// happened, so a publish failure only delays the mirror and is not
// surfaced to the caller.
func (s *LedgerService) publish(ctx context.Context, kind core.EntryKind, id, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryChange(ctx, string(kind), id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry change",
			"kind", string(kind), "id", id, "action", action, "error", err)
	}
}
