// Package worker mirrors ledger entries from the primary store into a
// secondary store, driven by AMQP change events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"duitku/internal/amqp"
	"duitku/internal/core"
	"duitku/internal/storage"
)

// MirrorWorker applies entry change events to the mirror store. Each event
// carries only kind, id and action; the row itself is re-read from the
// primary store, so replayed or reordered events converge on the primary's
// current state.
type MirrorWorker struct {
	primary storage.Store
	mirror  storage.Store
}

func NewMirrorWorker(primary, mirror storage.Store) *MirrorWorker {
	return &MirrorWorker{primary: primary, mirror: mirror}
}

// HandleEntryChange processes one change event. Returning an error requeues
// the message.
func (w *MirrorWorker) HandleEntryChange(ctx context.Context, msg *amqp.EntryChangeMessage) error {
	switch core.EntryKind(msg.Kind) {
	case core.EntryTransaction:
		return w.mirrorTransaction(ctx, msg)
	case core.EntryIncome:
		return w.mirrorIncome(ctx, msg)
	default:
		// Unknown kinds are dropped rather than requeued forever.
		slog.WarnContext(ctx, "Unknown entry kind in change event", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, msg *amqp.EntryChangeMessage) error {
	if msg.Action == amqp.ActionDeleted {
		err := w.mirror.DeleteTransaction(ctx, msg.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete mirrored transaction: %w", err)
		}
		return nil
	}

	t, err := w.primary.GetTransaction(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Row vanished between event and processing; the delete event that
		// removed it will clean up the mirror.
		slog.WarnContext(ctx, "Transaction missing from primary, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read transaction from primary: %w", err)
	}

	err = w.mirror.UpdateTransaction(ctx, t)
	if errors.Is(err, core.ErrNotFound) {
		err = w.mirror.InsertTransaction(ctx, t)
	}
	if err != nil {
		return fmt.Errorf("mirror transaction: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored transaction", "id", t.ID, "year_month", t.YearMonth)
	return nil
}

func (w *MirrorWorker) mirrorIncome(ctx context.Context, msg *amqp.EntryChangeMessage) error {
	if msg.Action == amqp.ActionDeleted {
		err := w.mirror.DeleteIncome(ctx, msg.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete mirrored income: %w", err)
		}
		return nil
	}

	entry, err := w.primary.GetIncome(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Income missing from primary, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read income from primary: %w", err)
	}

	err = w.mirror.UpdateIncome(ctx, entry)
	if errors.Is(err, core.ErrNotFound) {
		err = w.mirror.InsertIncome(ctx, entry)
	}
	if err != nil {
		return fmt.Errorf("mirror income: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored income", "id", entry.ID, "year_month", entry.YearMonth)
	return nil
}
