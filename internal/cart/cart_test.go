package cart_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/domain"
)

// memStore records every write so tests can check write-through order.
type memStore struct {
	data   []byte
	writes [][]byte
	fail   bool
}

func (s *memStore) Load() ([]byte, error) { return s.data, nil }
func (s *memStore) Save(b []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s.data = cp
	s.writes = append(s.writes, cp)
	return nil
}

func product(id string, price float64) domain.Product {
	return domain.Product{ID: id, Name: id, Price: price}
}

func TestAddLineMergesByProduct(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})

	require.NoError(t, c.AddLine(product("p1", 100), 2))
	require.NoError(t, c.AddLine(product("p1", 100), 3))

	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Quantity)
	require.Equal(t, 500.0, c.Totals().Subtotal)
}

func TestAddLineSnapshotsPrice(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 100), 1))

	// A later catalog price change must not touch the stored line.
	require.NoError(t, c.AddLine(product("p2", 50), 1))
	lines := c.Lines()
	require.Equal(t, 100.0, lines[0].UnitPrice)

	// Merging more quantity keeps the original snapshot too.
	require.NoError(t, c.AddLine(product("p1", 120), 1))
	lines = c.Lines()
	require.Equal(t, 100.0, lines[0].UnitPrice)
	require.Equal(t, 2, lines[0].Quantity)
}

func TestAddLinePreservesInsertionOrder(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p2", 1), 1))
	require.NoError(t, c.AddLine(product("p1", 1), 1))
	require.NoError(t, c.AddLine(product("p3", 1), 1))
	require.NoError(t, c.AddLine(product("p1", 1), 1))

	lines := c.Lines()
	require.Equal(t, []string{"p2", "p1", "p3"}, []string{lines[0].ProductID, lines[1].ProductID, lines[2].ProductID})
}

func TestSetQuantityBelowOneRemovesLine(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 100), 1))

	require.NoError(t, c.SetQuantity("p1", 0))
	require.Empty(t, c.Lines())

	require.NoError(t, c.AddLine(product("p1", 100), 1))
	require.NoError(t, c.SetQuantity("p1", -3))
	require.Empty(t, c.Lines())
}

func TestSetQuantityReplaces(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 100), 2))
	require.NoError(t, c.SetQuantity("p1", 7))
	require.Equal(t, 7, c.Lines()[0].Quantity)

	// Unknown product: no-op.
	require.NoError(t, c.SetQuantity("ghost", 3))
	require.Len(t, c.Lines(), 1)
}

func TestRemoveLine(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 100), 1))
	require.NoError(t, c.RemoveLine("p1"))
	require.Empty(t, c.Lines())
	require.NoError(t, c.RemoveLine("p1")) // absent: no-op
}

func TestTotalsIdempotentAndRecomputed(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{Shipping: 10, Discount: 5})
	require.NoError(t, c.AddLine(product("p1", 100), 2))

	t1 := c.Totals()
	t2 := c.Totals()
	require.Equal(t, t1, t2)
	require.Equal(t, 200.0, t1.Subtotal)
	require.Equal(t, 205.0, t1.Total)

	require.NoError(t, c.SetQuantity("p1", 3))
	require.Equal(t, 300.0, c.Totals().Subtotal)
}

func TestTotalsEmptyCart(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{Shipping: 10})
	require.Equal(t, cart.Totals{}, c.Totals())
}

func TestModeFlags(t *testing.T) {
	c := cart.New(&memStore{}, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 100), 2))

	require.NoError(t, c.SetMode(cart.ModeBulkOrder, true))
	require.NoError(t, c.SetMode(cart.ModeCredit, true))
	bulk, credit := c.Modes()
	require.True(t, bulk)
	require.True(t, credit)

	// Toggling modes never touches lines.
	require.Equal(t, 2, c.Lines()[0].Quantity)

	require.NoError(t, c.SetMode(cart.ModeCredit, false))
	_, credit = c.Modes()
	require.False(t, credit)
}

func TestWriteThroughEveryMutationInOrder(t *testing.T) {
	store := &memStore{}
	c := cart.New(store, cart.Pricing{})

	require.NoError(t, c.AddLine(product("p1", 100), 1))
	require.NoError(t, c.SetQuantity("p1", 4))
	require.NoError(t, c.SetMode(cart.ModeBulkOrder, true))
	require.NoError(t, c.RemoveLine("p1"))
	require.Len(t, store.writes, 4)

	// Each write reflects the state right after its mutation.
	var mid struct {
		Items []domain.CartLine `json:"items"`
	}
	require.NoError(t, json.Unmarshal(store.writes[1], &mid))
	require.Equal(t, 4, mid.Items[0].Quantity)
}

func TestPersistFailureSurfaces(t *testing.T) {
	store := &memStore{fail: true}
	c := cart.New(store, cart.Pricing{})
	require.Error(t, c.AddLine(product("p1", 100), 1))
}

func TestRestoreRoundTrip(t *testing.T) {
	store := &memStore{}
	c := cart.New(store, cart.Pricing{})
	require.NoError(t, c.AddLine(product("p1", 129.99), 2))
	require.NoError(t, c.AddLine(product("p2", 349.50), 1))
	require.NoError(t, c.SetMode(cart.ModeCredit, true))

	restored := cart.New(store, cart.Pricing{})
	require.Equal(t, c.Lines(), restored.Lines())
	bulk, credit := restored.Modes()
	require.False(t, bulk)
	require.True(t, credit)
	require.Equal(t, c.Totals().Subtotal, restored.Totals().Subtotal)
}

func TestRestoreCorruptStateYieldsEmptyCart(t *testing.T) {
	store := &memStore{data: []byte(`{"items": not json`)}
	c := cart.New(store, cart.Pricing{})
	require.Empty(t, c.Lines())
}

func TestRestoreDropsInvalidLines(t *testing.T) {
	doc := `{"items":[
	  {"productId":"p1","quantity":2,"unitPrice":10},
	  {"productId":"","quantity":1,"unitPrice":1},
	  {"productId":"p1","quantity":9,"unitPrice":10},
	  {"productId":"p2","quantity":0,"unitPrice":5}
	],"isBulkOrder":false,"isCredit":false}`
	c := cart.New(&memStore{data: []byte(doc)}, cart.Pricing{})
	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "p1", lines[0].ProductID)
	require.Equal(t, 2, lines[0].Quantity)
}
