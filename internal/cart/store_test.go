package cart_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/domain"
)

func memdb(t *testing.T) *cart.SQLStore {
	t.Helper()
	store, err := cart.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreLoadEmpty(t *testing.T) {
	store := memdb(t)
	b, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestSQLStoreSaveOverwrites(t *testing.T) {
	store := memdb(t)
	require.NoError(t, store.Save([]byte(`{"items":[]}`)))
	require.NoError(t, store.Save([]byte(`{"items":[{"productId":"p1"}]}`)))

	b, err := store.Load()
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[{"productId":"p1"}]}`, string(b))
}

// Cart persisted through SQLite and reloaded yields an identical line
// set, quantities, and mode flags.
func TestCartRoundTripThroughSQLite(t *testing.T) {
	store := memdb(t)

	c := cart.New(store, cart.Pricing{Shipping: 5})
	require.NoError(t, c.AddLine(domain.Product{ID: "gbc-001", Price: 129.99}, 2))
	require.NoError(t, c.AddLine(domain.Product{ID: "radio-001", Price: 349.50}, 1))
	require.NoError(t, c.SetMode(cart.ModeBulkOrder, true))

	restored := cart.New(store, cart.Pricing{Shipping: 5})
	require.Equal(t, c.Lines(), restored.Lines())
	bulk, credit := restored.Modes()
	require.True(t, bulk)
	require.False(t, credit)
	require.Equal(t, c.Totals(), restored.Totals())
}
