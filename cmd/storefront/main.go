package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/channel"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/orders"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	// Durable client state
	store, err := cart.OpenStore(cfg.CartDSN)
	if err != nil {
		log.Fatal(err)
	}
	sessionCart := cart.New(store, cart.Pricing{Shipping: cfg.Shipping})

	// Push channel: one shared connection per domain
	var dial channel.Dialer
	if len(cfg.Brokers) > 0 {
		dial = channel.DialKafka(channel.KafkaConfig{Brokers: cfg.Brokers, TopicPrefix: cfg.TopicPrefix})
	} else {
		log.Printf("[warn] no brokers configured; channel runs in loopback mode")
		dial = channel.DialLoopback()
	}
	hub := channel.NewHub(dial)
	defer hub.Close()

	productsConn, err := hub.Domain("products")
	if err != nil {
		log.Fatal(err)
	}
	ordersConn, err := hub.Domain("orders")
	if err != nil {
		log.Fatal(err)
	}

	// Sync layer singletons, owned here and passed by reference
	catalogReplica := catalog.New(productsConn)
	catalogReplica.Start(cfg.LoadTimeout)
	defer catalogReplica.Stop()
	orderReplica := orders.New(ordersConn)

	// First full load; failures recover on reconnect
	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.LoadTimeout)
	if err := catalogReplica.LoadAll(loadCtx); err != nil {
		applog.Error(nil, "catalog.initial.load", err, nil)
	}
	cancel()

	// Checkout
	sessions := checkout.NewSessionClient(cfg.CheckoutURL)
	orch := checkout.New(sessionCart, catalogReplica, ordersConn, sessions, cfg.AckTimeout)
	orch.OnTransition(func(from, to checkout.State) {
		applog.Info(nil, "checkout.state", map[string]any{"from": from.String(), "to": to.String()})
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Something went wrong. Please try again.",
			})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())

	// ---------- Routes ----------
	deps := handlers.NewDeps(catalogReplica, sessionCart, orch, orderReplica, cfg.LoadTimeout,
		handlers.Identity{CustomerID: cfg.CustomerID, Email: cfg.Email})

	api := app.Group("/api/v1")
	api.Get("/products", deps.CatalogHandler.List)
	api.Get("/products/:id", deps.CatalogHandler.Detail)
	availLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Warn(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/availability", availLimiter, deps.CatalogHandler.Availability)
	api.Post("/catalog/reload", deps.CatalogHandler.Reload)

	api.Post("/admin/products", deps.CatalogHandler.Create)
	api.Put("/admin/products/:id", deps.CatalogHandler.Update)

	api.Get("/cart", deps.CartHandler.View)
	api.Post("/cart", deps.CartHandler.Add)
	api.Post("/cart/quantity", deps.CartHandler.UpdateQuantity)
	api.Post("/cart/remove", deps.CartHandler.Remove)
	api.Post("/cart/mode", deps.CartHandler.SetMode)

	api.Post("/checkout", deps.CheckoutHandler.Submit)
	api.Get("/checkout/status", deps.CheckoutHandler.Status)

	api.Get("/orders", deps.OrderHandler.History)
	api.Get("/orders/all", deps.OrderHandler.ListAll)
	api.Get("/orders/:id", deps.OrderHandler.Detail)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
