package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

func newTestEngine(t *testing.T, store *stubDurableStore) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineParams{
		Durable: store,
		Cfg:     testSyncConfig(),
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown(context.Background()) })
	return engine
}

func TestEngineOpenHydratesFromDurableStore(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	ownerKey := "user:" + uuid.NewString()
	variant := uuid.New()
	seedSnapshot(store, ownerKey, enums.CollectionKindCart,
		LineItem{VariantID: variant, Quantity: 7, Price: PriceSnapshot{CurrentCents: 1234}})

	engine := newTestEngine(t, store)
	session, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)

	items := session.Items()
	require.Len(t, items, 1)
	require.Equal(t, variant, items[0].VariantID)
	require.Equal(t, 7, items[0].Quantity)
}

func TestEngineOpenAbsentCollectionStartsEmpty(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, newStubDurableStore())
	session, err := engine.Open(context.Background(), "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)
	require.Empty(t, session.Items())
	require.Equal(t, enums.SyncStateSynced, session.State())
}

func TestEngineOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, newStubDurableStore())
	ownerKey := "user:" + uuid.NewString()

	first, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	second, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestEngineOpenValidation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, newStubDurableStore())
	_, err := engine.Open(context.Background(), "", enums.CollectionKindCart)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = engine.Open(context.Background(), "user:"+uuid.NewString(), enums.CollectionKind("bogus"))
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestEngineMutationReachesDurableStore(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	engine := newTestEngine(t, store)

	session, err := engine.Open(context.Background(), "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)

	variant := uuid.New()
	require.NoError(t, session.Add(variant, 2, PriceSnapshot{CurrentCents: 999}))

	result, err := session.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, enums.SyncStateSynced, result.State)

	require.Len(t, store.inserted, 1)
	require.Equal(t, variant, store.inserted[0].VariantID)
	require.Equal(t, 2, store.inserted[0].Quantity)
}

func TestEngineDebouncedPushWithoutFlush(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	engine := newTestEngine(t, store)

	session, err := engine.Open(context.Background(), "sess:"+uuid.NewString(), enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, session.Add(uuid.New(), 1, PriceSnapshot{}))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.inserted) == 1
	}, time.Second, 5*time.Millisecond, "mutation must sync without an explicit flush")
}

func TestEngineTransitionRebuildsOpenSessions(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	engine := newTestEngine(t, store)
	anonKey := "sess:" + uuid.NewString()
	userKey := "user:" + uuid.NewString()
	variantA := uuid.New()
	variantB := uuid.New()

	seedSnapshot(store, anonKey, enums.CollectionKindCart, LineItem{VariantID: variantA, Quantity: 2})
	seedSnapshot(store, userKey, enums.CollectionKindCart, LineItem{VariantID: variantB, Quantity: 1})

	anonSession, err := engine.Open(context.Background(), anonKey, enums.CollectionKindCart)
	require.NoError(t, err)
	userSession, err := engine.Open(context.Background(), userKey, enums.CollectionKindCart)
	require.NoError(t, err)

	merged, err := engine.Transition(context.Background(), anonKey, userKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)

	// The authenticated session now serves the merged state.
	require.Len(t, userSession.Items(), 2)

	// The anonymous session is torn down; a fresh Open sees nothing.
	_, err = anonSession.Flush(context.Background())
	require.ErrorIs(t, err, ErrSchedulerClosed)
	reopened, err := engine.Open(context.Background(), anonKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Empty(t, reopened.Items())
}

func TestEngineTransitionFlushesUnsyncedUserMutations(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupCollectionTestDB(t))
	cfg := testSyncConfig()
	cfg.Debounce = 10 * time.Second // keep the background push out of the way
	engine, err := NewEngine(EngineParams{Durable: repo, Cfg: cfg, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown(context.Background()) })

	anonKey := "sess:" + uuid.NewString()
	userKey := "user:" + uuid.NewString()
	anonVariant := uuid.New()
	userVariant := uuid.New()

	parentID, err := repo.UpsertParent(context.Background(), anonKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, repo.InsertItems(context.Background(), parentID, []LineItem{
		{VariantID: anonVariant, Quantity: 2, Price: PriceSnapshot{CurrentCents: 300}},
	}))

	// The authenticated owner mutates locally; the debounce window keeps
	// the change out of the durable store.
	userSession, err := engine.Open(context.Background(), userKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, userSession.Add(userVariant, 1, PriceSnapshot{CurrentCents: 500}))

	merged, err := engine.Transition(context.Background(), anonKey, userKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2, "the merge must see the user's unsynced mutation")
	require.Len(t, userSession.Items(), 2)
}

func TestEngineEvictsIdleSessions(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	cfg := testSyncConfig()
	cfg.SessionIdleTimeout = 40 * time.Millisecond
	engine, err := NewEngine(EngineParams{Durable: store, Cfg: cfg, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown(context.Background()) })

	ownerKey := "sess:" + uuid.NewString()
	session, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, session.Add(uuid.New(), 2, PriceSnapshot{CurrentCents: 500}))

	// Once the session sits idle past the timeout, the reaper closes it.
	require.Eventually(t, func() bool {
		_, err := session.Flush(context.Background())
		return errors.Is(err, ErrSchedulerClosed)
	}, time.Second, 5*time.Millisecond, "idle session was never evicted")

	store.mu.Lock()
	insertedLen := len(store.inserted)
	store.mu.Unlock()
	require.Equal(t, 1, insertedLen, "eviction must flush before closing")

	// A returning principal gets a fresh session, not the closed one.
	reopened, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NotSame(t, session, reopened)
}

func TestEngineCloseFlushes(t *testing.T) {
	t.Parallel()

	store := newStubDurableStore()
	engine := newTestEngine(t, store)
	ownerKey := "sess:" + uuid.NewString()

	session, err := engine.Open(context.Background(), ownerKey, enums.CollectionKindCart)
	require.NoError(t, err)
	require.NoError(t, session.Add(uuid.New(), 3, PriceSnapshot{}))

	require.NoError(t, engine.Close(context.Background(), ownerKey, enums.CollectionKindCart))
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.inserted, 1)
}

func TestEngineCloseUnknownSessionIsNoOp(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, newStubDurableStore())
	require.NoError(t, engine.Close(context.Background(), "sess:"+uuid.NewString(), enums.CollectionKindCart))
}
