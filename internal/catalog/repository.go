package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

// VariantReader exposes the catalog reads the storefront needs.
type VariantReader interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	ListVariantsForProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// Repository reads products and variants.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetVariant returns a variant by id.
func (r *Repository) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant failed")
	}
	return &variant, nil
}

// ListVariantsForProduct returns every variant of the product, oldest first.
func (r *Repository) ListVariantsForProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&variants).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variants failed")
	}
	return variants, nil
}

// GetProduct returns a product with its variants preloaded.
func (r *Repository) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product failed")
	}
	return &product, nil
}
