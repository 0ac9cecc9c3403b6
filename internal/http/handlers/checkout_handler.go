package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/checkout"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

type CheckoutHandler struct {
	Orch *checkout.Orchestrator
	// DefaultEmail fills a form submitted without one, from the
	// configured session identity.
	DefaultEmail string
}

// Submit runs one checkout attempt. The response mirrors the
// orchestrator's outcome: a redirect URL on the hosted path, a
// submission id on the credit path, 202 when the outcome is unknown.
// Failure leaves the cart editable; it is never cleared here.
func (h *CheckoutHandler) Submit(c *fiber.Ctx) error {
	var form checkout.Form
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request body"})
	}
	if form.Email == "" {
		form.Email = h.DefaultEmail
	}
	if email, ok := validate.Email(form.Email); ok {
		form.Email = email
	} else {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "please enter a valid email"})
	}
	if postal, ok := validate.Postal(form.PostalCode); ok {
		form.PostalCode = postal
	} else {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "please enter a 5-digit postal code"})
	}

	out, err := h.Orch.Submit(c.UserContext(), form)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrSubmitInFlight):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a checkout is already in progress"})
		case errors.Is(err, checkout.ErrEmptyCart):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart is empty"})
		case out.State == checkout.StateIdle:
			// Rejected before Submitting: validation.
			applog.Warn(c, "checkout.validation.fail", map[string]any{"err": err.Error()})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "please check the checkout form"})
		default:
			applog.Error(c, "checkout.submit.fail", err, nil)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "checkout failed, your cart is unchanged",
				"state": out.StateName,
			})
		}
	}

	if out.State == checkout.StateUnknown {
		applog.Warn(c, "checkout.outcome.unknown", map[string]any{"submission_id": out.SubmissionID})
		return c.Status(fiber.StatusAccepted).JSON(out)
	}
	return c.JSON(out)
}

// Status exposes the machine's current state so views can disable the
// submit control from the source of truth.
func (h *CheckoutHandler) Status(c *fiber.Ctx) error {
	resp := fiber.Map{"state": h.Orch.State().String()}
	if err := h.Orch.LastError(); err != nil {
		resp["lastError"] = err.Error()
	}
	return c.JSON(resp)
}
