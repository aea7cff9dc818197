package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightmarket/storefront-backend/pkg/enums"
)

// Collection is the durable parent row for one principal's cart or wishlist.
// Child rows are rewritten wholesale on every push; the parent is only ever
// upserted or deleted, never duplicated per (owner_key, kind).
type Collection struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey  string               `gorm:"column:owner_key;not null;uniqueIndex:collections_owner_kind_key"`
	Kind      enums.CollectionKind `gorm:"column:kind;not null;uniqueIndex:collections_owner_kind_key"`
	Items     []CollectionItem     `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so the model works on backends
// without a uuid default.
func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
