package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

type CatalogHandler struct {
	Catalog     *catalog.Replica
	LoadTimeout time.Duration
}

// List serves the replica: all products, a category slice, or a search.
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		qv, ok := validate.Q(q)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid query"})
		}
		return c.JSON(h.Catalog.Search(qv))
	}
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		id, ok := validate.ID(cat)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid category"})
		}
		return c.JSON(h.Catalog.ListByCategory(id))
	}
	return c.JSON(h.Catalog.List())
}

// Detail serves a product from the replica, falling back to a direct
// fetch for ids the replica does not hold yet.
func (h *CatalogHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	if p, ok := h.Catalog.FindByID(id); ok {
		return c.JSON(p)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	p, err := h.Catalog.FetchOne(ctx, id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	return c.JSON(p)
}

func (h *CatalogHandler) Availability(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Query("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	return c.JSON(h.Catalog.Availability(id))
}

// productForm is the admin write payload. ImageData travels
// base64-encoded in JSON.
type productForm struct {
	domain.Product
	ImageData []byte `json:"imageData,omitempty"`
}

// Create submits a new product definition. Authorization lives in
// front of this surface; the authoritative copy reaches the replica
// through the catalog push, not here.
func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	var in productForm
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	if strings.TrimSpace(in.Name) == "" || in.Price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and a positive price are required"})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	if err := h.Catalog.CreateProduct(ctx, in.Product, in.ImageData); err != nil {
		applog.Error(c, "catalog.create.fail", err, map[string]any{"name": in.Name})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not create product"})
	}
	applog.Audit(c, "catalog.create", map[string]any{"name": in.Name})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

// Update submits changed fields for an existing product.
func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	var in productForm
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	in.ID = id
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	if err := h.Catalog.UpdateProduct(ctx, in.Product, in.ImageData); err != nil {
		applog.Error(c, "catalog.update.fail", err, map[string]any{"product": id})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not update product"})
	}
	applog.Audit(c, "catalog.update", map[string]any{"product": id})
	return c.JSON(fiber.Map{"ok": true})
}

// Reload forces a full catalog load, mainly for recovery after the
// channel reported errors.
func (h *CatalogHandler) Reload(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.LoadTimeout)
	defer cancel()
	if err := h.Catalog.LoadAll(ctx); err != nil {
		applog.Error(c, "catalog.reload.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "catalog load failed, retry soon"})
	}
	return c.JSON(fiber.Map{"count": h.Catalog.Count()})
}
