package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"duitku/internal/core"
	"duitku/internal/storage"
)

// CategoryPatch updates a category; nil fields are left unchanged.
type CategoryPatch struct {
	Name     *string `json:"name"`
	Archived *bool   `json:"archived"`
}

// SourcePatch updates a source; nil fields are left unchanged.
type SourcePatch struct {
	Name     *string `json:"name"`
	Archived *bool   `json:"archived"`
}

// TaxonomyService manages categories and sources. These are not gated by
// month locks; archiving is the soft-delete that keeps historical joins
// intact.
type TaxonomyService struct {
	store storage.Store
}

func NewTaxonomyService(store storage.Store) *TaxonomyService {
	return &TaxonomyService{store: store}
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (s *TaxonomyService) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Archived != nil {
		c.Archived = *patch.Archived
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}

	slog.InfoContext(ctx, "Category updated", "id", id, "name", c.Name, "archived", c.Archived)
	return c, nil
}

func (s *TaxonomyService) ListCategories(ctx context.Context, activeOnly bool) ([]core.Category, error) {
	return s.store.ListCategories(ctx, activeOnly)
}

func (s *TaxonomyService) CreateSource(ctx context.Context, name string, kind core.SourceKind) (core.Source, error) {
	src := core.Source{ID: uuid.NewString(), Name: strings.TrimSpace(name), Kind: kind}
	if err := src.Validate(); err != nil {
		return core.Source{}, err
	}
	if err := s.store.InsertSource(ctx, src); err != nil {
		return core.Source{}, fmt.Errorf("create source: %w", err)
	}

	slog.InfoContext(ctx, "Source created", "id", src.ID, "name", src.Name, "kind", string(src.Kind))
	return src, nil
}

func (s *TaxonomyService) UpdateSource(ctx context.Context, id string, patch SourcePatch) (core.Source, error) {
	src, err := s.store.GetSource(ctx, id)
	if err != nil {
		return core.Source{}, err
	}
	if patch.Name != nil {
		src.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Archived != nil {
		src.Archived = *patch.Archived
	}
	if err := src.Validate(); err != nil {
		return core.Source{}, err
	}
	if err := s.store.UpdateSource(ctx, src); err != nil {
		return core.Source{}, fmt.Errorf("update source: %w", err)
	}

	slog.InfoContext(ctx, "Source updated", "id", id, "name", src.Name, "archived", src.Archived)
	return src, nil
}

func (s *TaxonomyService) ListSources(ctx context.Context, kind core.SourceKind, activeOnly bool) ([]core.Source, error) {
	return s.store.ListSources(ctx, kind, activeOnly)
}
