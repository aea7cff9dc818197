package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductVariant is the purchasable unit referenced by collection items.
// CompareAtPriceCents is the optional prior price used for discount display.
type ProductVariant struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID           uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:product_variants_product_id_idx"`
	SKU                 string    `gorm:"column:sku;not null;uniqueIndex:product_variants_sku_key"`
	Title               string    `gorm:"column:title;not null"`
	PriceCents          int64     `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64    `gorm:"column:compare_at_price_cents"`
	IsActive            bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
