package collection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

func setupCollectionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	collections := `
CREATE TABLE IF NOT EXISTS collections (
  id TEXT PRIMARY KEY,
  owner_key TEXT NOT NULL,
  kind TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_key, kind)
);`
	items := `
CREATE TABLE IF NOT EXISTS collection_items (
  id TEXT PRIMARY KEY,
  collection_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  compare_at_unit_price_cents INTEGER,
  created_at DATETIME,
  UNIQUE (collection_id, variant_id)
);`
	require.NoError(t, db.Exec(collections).Error)
	require.NoError(t, db.Exec(items).Error)
	return db
}

func TestRepositoryUpsertParentIsStable(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	ctx := context.Background()
	ownerKey := "user:" + uuid.NewString()

	first, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first)

	second, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Equal(t, first, second, "repeated upserts must resolve the same parent")

	// A different kind under the same owner is a separate parent.
	wishlist, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindWishlist)
	require.NoError(t, err)
	require.NotEqual(t, first, wishlist)
}

func TestRepositoryUpsertParentTouchesUpdatedAt(t *testing.T) {
	t.Parallel()

	db := setupCollectionTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ownerKey := "user:" + uuid.NewString()

	parentID, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)

	// Backdate the row, then upsert again: the parent must come back with a
	// fresh updated_at even though only the children change on a replace.
	past := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, db.Exec("UPDATE collections SET updated_at = ? WHERE id = ?", past, parentID).Error)

	again, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Equal(t, parentID, again)

	var updatedAt time.Time
	require.NoError(t, db.Raw("SELECT updated_at FROM collections WHERE id = ?", parentID).Scan(&updatedAt).Error)
	require.True(t, updatedAt.After(past), "repeated upsert left updated_at stale")
}

func TestRepositoryInsertAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	ctx := context.Background()
	ownerKey := "sess:" + uuid.NewString()

	parentID, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)

	variantA := uuid.New()
	variantB := uuid.New()
	require.NoError(t, repo.InsertItems(ctx, parentID, []LineItem{
		{VariantID: variantA, Quantity: 3, Price: PriceSnapshot{CurrentCents: 1500, CompareAtCents: int64Ptr(2000)}},
		{VariantID: variantB, Quantity: 1, Price: PriceSnapshot{CurrentCents: 700}},
	}))

	snap, err := repo.Load(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Equal(t, ownerKey, snap.OwnerKey)
	require.Len(t, snap.Items, 2)

	byVariant := make(map[uuid.UUID]LineItem, len(snap.Items))
	for _, item := range snap.Items {
		byVariant[item.VariantID] = item
	}
	a := byVariant[variantA]
	require.Equal(t, 3, a.Quantity)
	require.EqualValues(t, 1500, a.Price.CurrentCents)
	require.NotNil(t, a.Price.CompareAtCents)
	require.EqualValues(t, 2000, *a.Price.CompareAtCents)
	b := byVariant[variantB]
	require.Equal(t, 1, b.Quantity)
	require.Nil(t, b.Price.CompareAtCents)
}

func TestRepositoryDeleteItemsIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	ctx := context.Background()

	parentID, err := repo.UpsertParent(ctx, "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)

	require.NoError(t, repo.InsertItems(ctx, parentID, []LineItem{
		{VariantID: uuid.New(), Quantity: 1, Price: PriceSnapshot{CurrentCents: 100}},
	}))
	require.NoError(t, repo.DeleteItems(ctx, parentID))
	require.NoError(t, repo.DeleteItems(ctx, parentID), "deleting an empty parent succeeds")
}

func TestRepositoryInsertEmptySetIsNoOp(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	parentID, err := repo.UpsertParent(context.Background(), "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, repo.InsertItems(context.Background(), parentID, nil))
}

func TestRepositoryLoadAbsentIsNotFound(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	_, err := repo.Load(context.Background(), "user:"+uuid.NewString(), enums.CollectionKindCart)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRepositoryDuplicateVariantIsConflict(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	ctx := context.Background()

	parentID, err := repo.UpsertParent(ctx, "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)

	variant := uuid.New()
	item := LineItem{VariantID: variant, Quantity: 1, Price: PriceSnapshot{CurrentCents: 100}}
	require.NoError(t, repo.InsertItems(ctx, parentID, []LineItem{item}))

	err = repo.InsertItems(ctx, parentID, []LineItem{item})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestRepositoryDeleteParentRemovesEverything(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	ctx := context.Background()
	ownerKey := "sess:" + uuid.NewString()

	parentID, err := repo.UpsertParent(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, repo.InsertItems(ctx, parentID, []LineItem{
		{VariantID: uuid.New(), Quantity: 1, Price: PriceSnapshot{CurrentCents: 100}},
	}))

	require.NoError(t, repo.DeleteParent(ctx, ownerKey, enums.CollectionKindCart))
	_, err = repo.Load(ctx, ownerKey, enums.CollectionKindCart)
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, repo.DeleteParent(ctx, ownerKey, enums.CollectionKindCart), "deleting an absent parent succeeds")
}

func TestReplacerAgainstRealRepository(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	replacer := newTestReplacer(t, repo)
	ctx := context.Background()
	ownerKey := "user:" + uuid.NewString()

	variantA := uuid.New()
	variantB := uuid.New()

	first := testSnapshot(ownerKey,
		LineItem{VariantID: variantA, Quantity: 2, Price: PriceSnapshot{CurrentCents: 500}},
		LineItem{VariantID: variantB, Quantity: 1, Price: PriceSnapshot{CurrentCents: 900}},
	)
	require.NoError(t, replacer.Push(ctx, first))

	// The second push fully supersedes the first.
	second := testSnapshot(ownerKey,
		LineItem{VariantID: variantA, Quantity: 5, Price: PriceSnapshot{CurrentCents: 500}},
	)
	require.NoError(t, replacer.Push(ctx, second))

	snap, err := repo.Load(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	require.Equal(t, variantA, snap.Items[0].VariantID)
	require.Equal(t, 5, snap.Items[0].Quantity)

	// Clearing propagates as an empty replace, not a deleted parent.
	require.NoError(t, replacer.Push(ctx, testSnapshot(ownerKey)))
	snap, err = repo.Load(ctx, ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Empty(t, snap.Items)
}
