package handlers

import (
	"time"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/orders"
)

// Deps bundles the handlers over the shared sync-layer singletons. The
// application root constructs it once and owns the lifecycles; handlers
// only ever borrow.
type Deps struct {
	CatalogHandler  *CatalogHandler
	CartHandler     *CartHandler
	CheckoutHandler *CheckoutHandler
	OrderHandler    *OrderHandler
}

// Identity is the configured session identity, used as the default
// customer and buyer email where a request does not name its own.
type Identity struct {
	CustomerID string
	Email      string
}

func NewDeps(cat *catalog.Replica, crt *cart.Cart, orch *checkout.Orchestrator, ord *orders.Replica, loadTimeout time.Duration, id Identity) *Deps {
	return &Deps{
		CatalogHandler:  &CatalogHandler{Catalog: cat, LoadTimeout: loadTimeout},
		CartHandler:     &CartHandler{Cart: crt, Catalog: cat},
		CheckoutHandler: &CheckoutHandler{Orch: orch, DefaultEmail: id.Email},
		OrderHandler:    &OrderHandler{Orders: ord, LoadTimeout: loadTimeout, DefaultCustomerID: id.CustomerID},
	}
}
