package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"duitku/internal/core"
	"duitku/internal/storage/memory"
)

func TestCreateCategory(t *testing.T) {
	ctx := context.Background()
	svc := NewTaxonomyService(memory.New())

	cat, err := svc.CreateCategory(ctx, "  Groceries  ")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if cat.Name != "Groceries" {
		t.Errorf("Name = %q, want trimmed %q", cat.Name, "Groceries")
	}
	if cat.ID == "" {
		t.Error("created category has no id")
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, "groceries")
		if !errors.Is(err, core.ErrDuplicateName) {
			t.Errorf("CreateCategory duplicate error = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, "   ")
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("CreateCategory error = %v, want ValidationError", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, strings.Repeat("x", 51))
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("CreateCategory error = %v, want ValidationError", err)
		}
	})
}

func TestArchiveCategory(t *testing.T) {
	ctx := context.Background()
	svc := NewTaxonomyService(memory.New())

	cat, err := svc.CreateCategory(ctx, "Transport")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	archived := true
	updated, err := svc.UpdateCategory(ctx, cat.ID, CategoryPatch{Archived: &archived})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if !updated.Archived {
		t.Error("category should be archived")
	}

	active, err := svc.ListCategories(ctx, true)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	for _, c := range active {
		if c.ID == cat.ID {
			t.Error("archived category should not appear in active listing")
		}
	}

	all, err := svc.ListCategories(ctx, false)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	found := false
	for _, c := range all {
		if c.ID == cat.ID {
			found = true
		}
	}
	if !found {
		t.Error("archived category should appear in full listing")
	}

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.UpdateCategory(ctx, "nope", CategoryPatch{Archived: &archived})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("UpdateCategory error = %v, want ErrNotFound", err)
		}
	})
}

func TestCreateSource(t *testing.T) {
	ctx := context.Background()
	svc := NewTaxonomyService(memory.New())

	salary, err := svc.CreateSource(ctx, "Salary", core.SourceIncome)
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if _, err := svc.CreateSource(ctx, "Cash", core.SourceFunding); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	t.Run("same name allowed across kinds", func(t *testing.T) {
		if _, err := svc.CreateSource(ctx, "Salary", core.SourceFunding); err != nil {
			t.Fatalf("CreateSource same name different kind: %v", err)
		}
	})

	t.Run("duplicate within kind", func(t *testing.T) {
		_, err := svc.CreateSource(ctx, "salary", core.SourceIncome)
		if !errors.Is(err, core.ErrDuplicateName) {
			t.Errorf("CreateSource duplicate error = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		_, err := svc.CreateSource(ctx, "Wallet", "savings")
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("CreateSource error = %v, want ValidationError", err)
		}
	})

	t.Run("filter by kind", func(t *testing.T) {
		incomeSources, err := svc.ListSources(ctx, core.SourceIncome, true)
		if err != nil {
			t.Fatalf("ListSources: %v", err)
		}
		if len(incomeSources) != 1 || incomeSources[0].ID != salary.ID {
			t.Errorf("income sources = %+v, want only %s", incomeSources, salary.ID)
		}
	})

	t.Run("empty kind lists all", func(t *testing.T) {
		all, err := svc.ListSources(ctx, "", true)
		if err != nil {
			t.Fatalf("ListSources: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("all sources = %d, want 3", len(all))
		}
	})
}
