package core

import (
	"regexp"
	"strings"
	"time"
)

const (
	SourceIncome  SourceKind = "income"
	SourceFunding SourceKind = "funding"

	EntryTransaction EntryKind = "transaction"
	EntryIncome      EntryKind = "income"

	StatusLocked   LockStatus = "locked"
	StatusUnlocked LockStatus = "unlocked"

	AuditLock   AuditAction = "lock"
	AuditUnlock AuditAction = "unlock"
	AuditRelock AuditAction = "relock"
)

type (
	// SourceKind distinguishes income sources from expense funding sources.
	SourceKind string

	// EntryKind distinguishes expense transactions from income entries.
	EntryKind string

	LockStatus  string
	AuditAction string

	// Transaction is a single expense entry. AmountRp is in Rupiah, the
	// smallest currency unit (no fractional subunits). YearMonth is derived
	// from DateISO in WIB, never from the offset embedded in the input.
	Transaction struct {
		ID          string `json:"id"`
		DateISO     string `json:"dateISO"`
		YearMonth   string `json:"yearMonth"`
		CategoryID  string `json:"categoryId"`
		SourceID    string `json:"sourceId,omitempty"` // optional funding source
		Description string `json:"description"`
		AmountRp    int64  `json:"amountRp"`
		CreatedAt   string `json:"createdAt"`
		UpdatedAt   string `json:"updatedAt"`
	}

	// Income mirrors Transaction with an income source instead of a category.
	Income struct {
		ID          string `json:"id"`
		DateISO     string `json:"dateISO"`
		YearMonth   string `json:"yearMonth"`
		SourceID    string `json:"sourceId"`
		Description string `json:"description"`
		AmountRp    int64  `json:"amountRp"`
		CreatedAt   string `json:"createdAt"`
		UpdatedAt   string `json:"updatedAt"`
	}

	// Category is an expense category. Archived categories are excluded from
	// active listings but kept for historical joins.
	Category struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Archived bool   `json:"archived"`
	}

	// Source is an income source or an expense funding source.
	Source struct {
		ID       string     `json:"id"`
		Name     string     `json:"name"`
		Kind     SourceKind `json:"kind"`
		Archived bool       `json:"archived"`
	}

	// MonthLock is keyed by year-month. A missing row means the month has
	// never been touched by reconciliation and counts as unlocked.
	MonthLock struct {
		YearMonth       string     `json:"yearMonth"`
		Status          LockStatus `json:"status"`
		LockedAtISO     string     `json:"lockedAtISO,omitempty"`
		UnlockedAtISO   string     `json:"unlockedAtISO,omitempty"`
		ReconciledAtISO string     `json:"reconciledAtISO,omitempty"`
	}

	// AuditLogEntry records one lock-state transition. Append-only.
	AuditLogEntry struct {
		ID     string      `json:"id"`
		TsISO  string      `json:"ts"`
		Actor  string      `json:"actor"`
		Action AuditAction `json:"action"`
		Month  string      `json:"month"`
		Reason string      `json:"reason,omitempty"` // required for unlock, empty otherwise
	}
)

var yearMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidYearMonth reports whether ym is a well-formed YYYY-MM string.
func ValidYearMonth(ym string) bool {
	return yearMonthRe.MatchString(ym)
}

// ValidDateISO reports whether s parses as an RFC 3339 timestamp.
func ValidDateISO(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// ValidDay reports whether s is a real YYYY-MM-DD calendar date.
func ValidDay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (k EntryKind) IsValid() bool {
	return k == EntryTransaction || k == EntryIncome
}

func (k SourceKind) IsValid() bool {
	return k == SourceIncome || k == SourceFunding
}

func (t Transaction) Validate() error {
	if !ValidDateISO(t.DateISO) {
		return &ValidationError{Field: "dateISO", Reason: "must be an RFC 3339 timestamp"}
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return &ValidationError{Field: "categoryId", Reason: "required"}
	}
	if strings.TrimSpace(t.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if len(t.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if t.AmountRp < 0 {
		return &ValidationError{Field: "amountRp", Reason: "must not be negative"}
	}
	return nil
}

func (i Income) Validate() error {
	if !ValidDateISO(i.DateISO) {
		return &ValidationError{Field: "dateISO", Reason: "must be an RFC 3339 timestamp"}
	}
	if strings.TrimSpace(i.SourceID) == "" {
		return &ValidationError{Field: "sourceId", Reason: "required"}
	}
	if strings.TrimSpace(i.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if len(i.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if i.AmountRp < 0 {
		return &ValidationError{Field: "amountRp", Reason: "must not be negative"}
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > 50 {
		return &ValidationError{Field: "name", Reason: "too long (max 50 characters)"}
	}
	return nil
}

func (s Source) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > 50 {
		return &ValidationError{Field: "name", Reason: "too long (max 50 characters)"}
	}
	if !s.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "must be income or funding"}
	}
	return nil
}
