package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
)

// InheritanceResolver seeds a stage's line items from the preceding stage's current document
type InheritanceResolver struct {
	repo document.DocumentRepository
}

// NewInheritanceResolver creates a new InheritanceResolver
func NewInheritanceResolver(repo document.DocumentRepository) *InheritanceResolver {
	return &InheritanceResolver{repo: repo}
}

// Inherit returns the preceding stage's current line items projected into target's shape.
// A missing preceding stage or document yields an empty list, not an error.
func (r *InheritanceResolver) Inherit(ctx context.Context, projectID uuid.UUID, target document.DocumentType) ([]document.LineItem, error) {
	prev, ok := document.PrecedingStage(target)
	if !ok {
		return []document.LineItem{}, nil
	}

	source, err := r.repo.GetCurrent(ctx, projectID, prev)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return []document.LineItem{}, nil
		}
		return nil, fmt.Errorf("failed to load %s for inheritance: %w", prev, err)
	}

	items := make([]document.LineItem, 0, len(source.Snapshot.Items))
	for _, item := range source.Snapshot.Items {
		items = append(items, item.CloneForTarget(target))
	}

	if priceStage, ok := document.PriceSourceStage(target); ok {
		if err := r.adoptPrices(ctx, projectID, priceStage, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// adoptPrices fills unpriced items from the matching article of the price stage.
// Items without a match keep no price and must be priced by the user.
func (r *InheritanceResolver) adoptPrices(ctx context.Context, projectID uuid.UUID, priceStage document.DocumentType, items []document.LineItem) error {
	source, err := r.repo.GetCurrent(ctx, projectID, priceStage)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load %s prices: %w", priceStage, err)
	}

	byNumber := make(map[string]document.LineItem, len(source.Snapshot.Items))
	for _, item := range source.Snapshot.Items {
		if _, seen := byNumber[item.Number]; !seen && item.IsPriced() {
			byNumber[item.Number] = item
		}
	}
	for i := range items {
		if priced, ok := byNumber[items[i].Number]; ok && !items[i].IsPriced() {
			items[i].AdoptPrices(priced)
		}
	}
	return nil
}

// InitialItems resolves inherited items and falls back to the project's default article
func (r *InheritanceResolver) InitialItems(ctx context.Context, project *document.Project, target document.DocumentType) ([]document.LineItem, error) {
	items, err := r.Inherit(ctx, project.ID, target)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}
	if item, ok := project.DefaultLineItem(target); ok {
		return []document.LineItem{item}, nil
	}
	return []document.LineItem{}, nil
}
