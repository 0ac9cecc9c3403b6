package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	CartDSN     string        // sqlite file holding durable client state
	Brokers     []string      // kafka brokers; empty means loopback channel
	TopicPrefix string        // per-domain topics: <prefix>.<domain>.requests|events
	CheckoutURL string        // base URL of the hosted-payment backend
	CustomerID  string        // identity of this client session
	Email       string        // default buyer email
	Shipping    float64       // flat shipping applied to totals
	LoadTimeout time.Duration // replica full-load deadline
	AckTimeout  time.Duration // bounded wait for credit-order acks
	LogFile     string
}

func Load() Config {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg := Config{
		Port:        getenv("PORT", "8082"),
		CartDSN:     getenv("CART_DSN", "storefront.db"),
		TopicPrefix: getenv("TOPIC_PREFIX", "storefront"),
		CheckoutURL: getenv("CHECKOUT_URL", "http://localhost:8080"),
		CustomerID:  getenv("CUSTOMER_ID", ""),
		Email:       getenv("CUSTOMER_EMAIL", ""),
		Shipping:    5.0,
		LoadTimeout: 10 * time.Second,
		AckTimeout:  5 * time.Second,
		LogFile:     getenv("LOG_FILE", "./storefront.log"),
	}
	if v := os.Getenv("BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Brokers = append(cfg.Brokers, b)
			}
		}
	}
	if v := os.Getenv("ACK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AckTimeout = d
		}
	}
	log.Printf("[config] PORT=%s CART_DSN=%s BROKERS=%v CHECKOUT_URL=%s", cfg.Port, cfg.CartDSN, cfg.Brokers, cfg.CheckoutURL)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
