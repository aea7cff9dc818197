package collection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightmarket/storefront-backend/pkg/db"
	"github.com/brightmarket/storefront-backend/pkg/db/models"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

// Repository persists collections and their items. Each method is a single
// statement against the database; the replace protocol composes them and
// owns the ordering guarantees.
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

// UpsertParent resolves the parent row for (ownerKey, kind), creating it on
// first use. A concurrent create racing on the unique (owner_key, kind) index
// falls back to re-reading the winner's row.
func (r *Repository) UpsertParent(ctx context.Context, ownerKey string, kind enums.CollectionKind) (uuid.UUID, error) {
	var record models.Collection
	err := r.db.WithContext(ctx).
		Where("owner_key = ? AND kind = ?", ownerKey, kind).
		First(&record).Error
	if err == nil {
		// Existing parent: a replace only rewrites the children, so the
		// parent's updated_at has to be bumped here.
		if err := r.TouchParent(ctx, record.ID, time.Now()); err != nil {
			return uuid.Nil, err
		}
		return record.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, classifyDBError(err, "look up collection")
	}

	record = models.Collection{OwnerKey: ownerKey, Kind: kind}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			var existing models.Collection
			if err := r.db.WithContext(ctx).
				Where("owner_key = ? AND kind = ?", ownerKey, kind).
				First(&existing).Error; err != nil {
				return uuid.Nil, classifyDBError(err, "re-read collection after create race")
			}
			return existing.ID, nil
		}
		return uuid.Nil, classifyDBError(err, "create collection")
	}
	return record.ID, nil
}

// DeleteItems clears every item under the parent. Zero affected rows is
// success: re-running a replace must converge, not fail.
func (r *Repository) DeleteItems(ctx context.Context, parentID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", parentID).
		Delete(&models.CollectionItem{}).Error
	if err != nil {
		return classifyDBError(err, "delete collection items")
	}
	return nil
}

// InsertItems batch-inserts the full item set under the parent.
func (r *Repository) InsertItems(ctx context.Context, parentID uuid.UUID, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.CollectionItem, 0, len(items))
	for _, item := range items {
		row := models.CollectionItem{
			CollectionID:   parentID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.Price.CurrentCents,
		}
		if old := item.Price.CompareAtCents; old != nil {
			v := *old
			row.CompareAtUnitPriceCents = &v
		}
		rows = append(rows, row)
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return classifyDBError(err, "insert collection items")
	}
	return nil
}

// Load reads a collection and its items, oldest item first.
func (r *Repository) Load(ctx context.Context, ownerKey string, kind enums.CollectionKind) (*Snapshot, error) {
	var record models.Collection
	err := r.db.WithContext(ctx).
		Where("owner_key = ? AND kind = ?", ownerKey, kind).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		return nil, classifyDBError(err, "load collection")
	}

	var rows []models.CollectionItem
	err = r.db.WithContext(ctx).
		Where("collection_id = ?", record.ID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classifyDBError(err, "load collection items")
	}

	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		item := LineItem{
			VariantID: row.VariantID,
			Quantity:  row.Quantity,
			Price:     PriceSnapshot{CurrentCents: row.UnitPriceCents},
		}
		if old := row.CompareAtUnitPriceCents; old != nil {
			v := *old
			item.Price.CompareAtCents = &v
		}
		items = append(items, item)
	}

	return &Snapshot{
		OwnerKey:  ownerKey,
		Kind:      kind,
		Items:     items,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// DeleteParent removes the parent row and its items. The items go first so a
// failure between the statements leaves an empty but loadable collection
// rather than orphaned rows.
func (r *Repository) DeleteParent(ctx context.Context, ownerKey string, kind enums.CollectionKind) error {
	var record models.Collection
	err := r.db.WithContext(ctx).
		Where("owner_key = ? AND kind = ?", ownerKey, kind).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return classifyDBError(err, "look up collection for delete")
	}

	if err := r.DeleteItems(ctx, record.ID); err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Delete(&models.Collection{}, "id = ?", record.ID).Error
	if err != nil {
		return classifyDBError(err, "delete collection")
	}
	return nil
}

// TouchParent sets the parent's updated_at so replicas can order pushes.
// UpdateColumn keeps gorm's auto-timestamp from overriding the explicit value.
func (r *Repository) TouchParent(ctx context.Context, parentID uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("id = ?", parentID).
		UpdateColumn("updated_at", at.UTC()).Error
	if err != nil {
		return classifyDBError(err, "touch collection")
	}
	return nil
}

func classifyDBError(err error, op string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, op+" hit a uniqueness conflict")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" failed")
}
