package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

type CartHandler struct {
	Cart    *cart.Cart
	Catalog *catalog.Replica
}

type cartView struct {
	Items       []domain.CartLine `json:"items"`
	IsBulkOrder bool              `json:"isBulkOrder"`
	IsCredit    bool              `json:"isCredit"`
	Totals      cart.Totals       `json:"totals"`
}

func (h *CartHandler) view() cartView {
	bulk, credit := h.Cart.Modes()
	return cartView{
		Items:       h.Cart.Lines(),
		IsBulkOrder: bulk,
		IsCredit:    credit,
		Totals:      h.Cart.Totals(),
	}
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	return c.JSON(h.view())
}

type cartMutation struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var in cartMutation
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	id, ok := validate.ID(in.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	p, ok := h.Catalog.FindByID(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	qty := validate.Qty(in.Qty)
	if qty == 0 {
		qty = 1
	}
	if err := h.Cart.AddLine(p, qty); err != nil {
		applog.Error(c, "cart.add.persist", err, map[string]any{"product": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save cart"})
	}
	applog.Info(c, "cart.add", map[string]any{"product": id, "qty": qty})
	return c.JSON(h.view())
}

func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	var in cartMutation
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	id, ok := validate.ID(in.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	// qty < 1 clamps to zero, which removes the line; one policy
	// everywhere.
	if err := h.Cart.SetQuantity(id, validate.Qty(in.Qty)); err != nil {
		applog.Error(c, "cart.update.persist", err, map[string]any{"product": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save cart"})
	}
	return c.JSON(h.view())
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	var in cartMutation
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	id, ok := validate.ID(in.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	if err := h.Cart.RemoveLine(id); err != nil {
		applog.Error(c, "cart.remove.persist", err, map[string]any{"product": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save cart"})
	}
	return c.JSON(h.view())
}

type modeMutation struct {
	Flag  string `json:"flag"` // bulkOrder | credit
	Value bool   `json:"value"`
}

func (h *CartHandler) SetMode(c *fiber.Ctx) error {
	var in modeMutation
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	flag := cart.ModeFlag(in.Flag)
	if flag != cart.ModeBulkOrder && flag != cart.ModeCredit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown mode flag"})
	}
	if err := h.Cart.SetMode(flag, in.Value); err != nil {
		applog.Error(c, "cart.mode.persist", err, map[string]any{"flag": in.Flag})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save cart"})
	}
	return c.JSON(h.view())
}
