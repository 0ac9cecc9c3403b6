package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/orders"
	"storefront/internal/validate"
)

type OrderHandler struct {
	Orders      *orders.Replica
	LoadTimeout time.Duration
	// DefaultCustomerID is the configured session identity, used when
	// the request names no customer.
	DefaultCustomerID string
}

// History lists the orders of one customer. Without an explicit
// customerId the configured session identity is used.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	q := c.Query("customerId")
	if q == "" {
		q = h.DefaultCustomerID
	}
	customerID, ok := validate.ID(q)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing customerId"})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	list, err := h.Orders.LoadForCustomer(ctx, customerID)
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not load orders, retry soon"})
	}
	return c.JSON(list)
}

// ListAll is the admin-scoped variant. Authorization lives in front of
// this surface, not here.
func (h *OrderHandler) ListAll(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	list, err := h.Orders.LoadAll(ctx)
	if err != nil {
		applog.Error(c, "orders.list.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not load orders, retry soon"})
	}
	return c.JSON(list)
}

func (h *OrderHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	o, err := h.Orders.LoadOne(ctx, id)
	if err != nil {
		// Serve a cached mirror if one exists; the load can be retried.
		if cached, ok := h.Orders.Get(id); ok {
			return c.JSON(cached)
		}
		applog.Error(c, "orders.detail.fail", err, map[string]any{"order_id": id})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	resp := fiber.Map{
		"order":           o,
		"trackingVisible": o.StatusEnum().TrackingVisible(),
	}
	return c.JSON(resp)
}
