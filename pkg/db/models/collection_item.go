package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CollectionItem persists one line item of a Collection. Prices are the
// snapshot captured at add-time, not checkout authority.
type CollectionItem struct {
	ID                      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CollectionID            uuid.UUID `gorm:"column:collection_id;type:uuid;not null;index:collection_items_collection_id_idx;uniqueIndex:collection_items_collection_variant_key"`
	VariantID               uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:collection_items_collection_variant_key"`
	Quantity                int       `gorm:"column:quantity;not null;default:1"`
	UnitPriceCents          int64     `gorm:"column:unit_price_cents;not null"`
	CompareAtUnitPriceCents *int64    `gorm:"column:compare_at_unit_price_cents"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key so the model works on backends
// without a uuid default.
func (c *CollectionItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
