// Package locks owns the month-lock state machine: which calendar months
// still accept mutations, and the append-only audit trail of every
// transition.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"duitku/internal/civiltime"
	"duitku/internal/core"
	"duitku/internal/storage"
)

// ActorSystem is recorded on locks taken by reconciliation.
const ActorSystem = "system"

// ReconcileResult reports one reconciliation pass: every past-threshold
// month examined, and how many transitioned to locked on this pass.
type ReconcileResult struct {
	ReconciledMonths []string `json:"reconciledMonths"`
	NewlyLocked      int      `json:"newlyLockedCount"`
}

// Service is the only writer of month_locks rows. Reconciliation and the
// manual lock/unlock/relock operations all funnel through it, and each
// status transition appends exactly one audit entry.
type Service struct {
	store storage.Store
	clock *civiltime.Clock

	// epoch is the first month reconciliation ever considers, normally the
	// first month any data exists.
	epoch string

	// Daily-run guard. A read-then-write race can run reconciliation twice
	// on the same day under concurrent requests; that is acceptable because
	// reconciliation is idempotent.
	mu             sync.Mutex
	lastReconciled string
}

func NewService(store storage.Store, clock *civiltime.Clock, epochMonth string) *Service {
	return &Service{store: store, clock: clock, epoch: epochMonth}
}

// IsLocked reports whether the month is locked. A missing row counts as
// unlocked.
func (s *Service) IsLocked(ctx context.Context, yearMonth string) (bool, error) {
	lock, err := s.store.GetMonthLock(ctx, yearMonth)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get month lock: %w", err)
	}
	return lock.Status == core.StatusLocked, nil
}

// AssertUnlocked fails with a MonthLockedError naming the month if it is
// locked. Mutating callers check this before touching the ledger.
func (s *Service) AssertUnlocked(ctx context.Context, yearMonth string) error {
	locked, err := s.IsLocked(ctx, yearMonth)
	if err != nil {
		return err
	}
	if locked {
		return &core.MonthLockedError{Month: yearMonth}
	}
	return nil
}

// AllLocks returns every materialized month lock, descending by month.
func (s *Service) AllLocks(ctx context.Context) ([]core.MonthLock, error) {
	return s.store.ListMonthLocks(ctx)
}

// AuditTrail returns the newest audit entries first.
func (s *Service) AuditTrail(ctx context.Context, limit int) ([]core.AuditLogEntry, error) {
	return s.store.ListAuditEntries(ctx, limit)
}

// Lock marks the month locked. Idempotent: locking a locked month refreshes
// its timestamps and writes another audit entry.
func (s *Service) Lock(ctx context.Context, yearMonth, actor string) error {
	now := s.clock.NowISO()

	lock, err := s.store.GetMonthLock(ctx, yearMonth)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get month lock: %w", err)
	}
	lock.YearMonth = yearMonth
	lock.Status = core.StatusLocked
	lock.LockedAtISO = now
	lock.ReconciledAtISO = now

	if err := s.store.UpsertMonthLock(ctx, lock); err != nil {
		return fmt.Errorf("lock month %s: %w", yearMonth, err)
	}

	s.audit(ctx, core.AuditLogEntry{
		ID:     uuid.NewString(),
		TsISO:  now,
		Actor:  actor,
		Action: core.AuditLock,
		Month:  yearMonth,
	})

	slog.InfoContext(ctx, "Month locked", "month", yearMonth, "actor", actor)
	return nil
}

// Unlock opens a locked month for backfill. Reason and initials are both
// required; the reason is stored in the audit trail.
func (s *Service) Unlock(ctx context.Context, yearMonth, reason, initials string) error {
	if strings.TrimSpace(reason) == "" {
		return &core.ValidationError{Field: "reason", Reason: "required"}
	}
	if strings.TrimSpace(initials) == "" {
		return &core.ValidationError{Field: "initials", Reason: "required"}
	}

	now := s.clock.NowISO()

	lock, err := s.store.GetMonthLock(ctx, yearMonth)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get month lock: %w", err)
	}
	lock.YearMonth = yearMonth
	lock.Status = core.StatusUnlocked
	lock.UnlockedAtISO = now

	if err := s.store.UpsertMonthLock(ctx, lock); err != nil {
		return fmt.Errorf("unlock month %s: %w", yearMonth, err)
	}

	s.audit(ctx, core.AuditLogEntry{
		ID:     uuid.NewString(),
		TsISO:  now,
		Actor:  initials,
		Action: core.AuditUnlock,
		Month:  yearMonth,
		Reason: reason,
	})

	slog.InfoContext(ctx, "Month unlocked", "month", yearMonth, "initials", initials, "reason", reason)
	return nil
}

// Relock closes a previously unlocked month again. No reason is recorded.
func (s *Service) Relock(ctx context.Context, yearMonth, actor string) error {
	now := s.clock.NowISO()

	lock, err := s.store.GetMonthLock(ctx, yearMonth)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get month lock: %w", err)
	}
	lock.YearMonth = yearMonth
	lock.Status = core.StatusLocked
	lock.LockedAtISO = now

	if err := s.store.UpsertMonthLock(ctx, lock); err != nil {
		return fmt.Errorf("relock month %s: %w", yearMonth, err)
	}

	s.audit(ctx, core.AuditLogEntry{
		ID:     uuid.NewString(),
		TsISO:  now,
		Actor:  actor,
		Action: core.AuditRelock,
		Month:  yearMonth,
	})

	slog.InfoContext(ctx, "Month relocked", "month", yearMonth, "actor", actor)
	return nil
}

// Reconcile walks every month from the epoch through the last completed
// month and locks any past-threshold month whose row is absent or not
// locked. This re-locks months a human explicitly unlocked once they are
// past the threshold; intentional, see DESIGN.md. Safe to run repeatedly.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	lastCompleted := s.clock.LastCompletedMonth()

	slog.InfoContext(ctx, "Reconciling month locks",
		"now", s.clock.NowISO(), "epoch", s.epoch, "last_completed_month", lastCompleted)

	months, err := civiltime.MonthRange(s.epoch, lastCompleted)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("month range: %w", err)
	}

	result := ReconcileResult{ReconciledMonths: []string{}}
	for _, month := range months {
		past, err := s.clock.IsPastLockThreshold(month)
		if err != nil {
			return result, fmt.Errorf("lock threshold for %s: %w", month, err)
		}
		if !past {
			continue
		}

		lock, err := s.store.GetMonthLock(ctx, month)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return result, fmt.Errorf("get month lock: %w", err)
		}
		if errors.Is(err, core.ErrNotFound) || lock.Status != core.StatusLocked {
			if err := s.Lock(ctx, month, ActorSystem); err != nil {
				return result, err
			}
			result.NewlyLocked++
		}

		result.ReconciledMonths = append(result.ReconciledMonths, month)
	}

	slog.InfoContext(ctx, "Reconciliation complete",
		"months_checked", len(result.ReconciledMonths), "newly_locked", result.NewlyLocked)

	return result, nil
}

// CheckDaily runs reconciliation at most once per WIB calendar day for the
// lifetime of the process. Callers triggering it on the request path log
// and swallow the error so the request still proceeds.
func (s *Service) CheckDaily(ctx context.Context) error {
	today := s.clock.CurrentDate()

	s.mu.Lock()
	due := s.lastReconciled != today
	s.mu.Unlock()
	if !due {
		return nil
	}

	if _, err := s.Reconcile(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastReconciled = today
	s.mu.Unlock()
	return nil
}

// audit appends one entry for a transition that already succeeded. Lock
// integrity wins over audit completeness: a failed audit write is logged,
// never rolled back or propagated.
func (s *Service) audit(ctx context.Context, e core.AuditLogEntry) {
	if err := s.store.AppendAuditEntry(ctx, e); err != nil {
		slog.WarnContext(ctx, "Audit entry write failed after lock transition",
			"month", e.Month, "action", string(e.Action), "actor", e.Actor, "error", err)
	}
}
