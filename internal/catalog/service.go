package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/internal/collection"
	"github.com/brightmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

// Service exposes the catalog operations the collection flows consume.
type Service interface {
	// VariantPrice captures the current price pair for an active variant.
	// Collections store this snapshot at add-time.
	VariantPrice(ctx context.Context, variantID uuid.UUID) (collection.PriceSnapshot, error)

	// ProductPricing aggregates the price range across a product's active
	// variants for listing surfaces.
	ProductPricing(ctx context.Context, productID uuid.UUID) (ProductPricing, error)
}

// ProductPricing is the listing view of a product's price range.
type ProductPricing struct {
	ProductID uuid.UUID
	Title     string
	Summary   collection.PriceSummary
}

type service struct {
	repo VariantReader
}

// NewService validates dependencies and builds the catalog service.
func NewService(repo VariantReader) (Service, error) {
	if repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) VariantPrice(ctx context.Context, variantID uuid.UUID) (collection.PriceSnapshot, error) {
	if variantID == uuid.Nil {
		return collection.PriceSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return collection.PriceSnapshot{}, err
	}
	if !variant.IsActive {
		return collection.PriceSnapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "variant is not available")
	}
	return priceSnapshotFor(variant)
}

func (s *service) ProductPricing(ctx context.Context, productID uuid.UUID) (ProductPricing, error) {
	if productID == uuid.Nil {
		return ProductPricing{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return ProductPricing{}, err
	}

	facts := make([]collection.PriceFact, 0, len(product.Variants))
	for i := range product.Variants {
		variant := &product.Variants[i]
		if !variant.IsActive {
			continue
		}
		if err := validatePrices(variant); err != nil {
			return ProductPricing{}, err
		}
		fact := collection.PriceFact{CurrentCents: variant.PriceCents}
		if old := variant.CompareAtPriceCents; old != nil {
			v := *old
			fact.CompareAtCents = &v
		}
		facts = append(facts, fact)
	}

	return ProductPricing{
		ProductID: product.ID,
		Title:     product.Title,
		Summary:   collection.SummarizePrices(facts),
	}, nil
}

// priceSnapshotFor converts a variant row into the snapshot collections
// capture. Prices are validated here, at the catalog boundary, so the
// aggregation and sync paths can assume non-negative values.
func priceSnapshotFor(variant *models.ProductVariant) (collection.PriceSnapshot, error) {
	if err := validatePrices(variant); err != nil {
		return collection.PriceSnapshot{}, err
	}
	snap := collection.PriceSnapshot{CurrentCents: variant.PriceCents}
	if old := variant.CompareAtPriceCents; old != nil {
		v := *old
		snap.CompareAtCents = &v
	}
	return snap, nil
}

func validatePrices(variant *models.ProductVariant) error {
	if variant.PriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant price is negative")
	}
	if variant.CompareAtPriceCents != nil && *variant.CompareAtPriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant compare-at price is negative")
	}
	return nil
}
