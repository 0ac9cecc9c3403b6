// Package catalog holds the client's replica of the product catalog,
// fed by a one-shot full load plus incremental update pushes.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/channel"
	"storefront/internal/domain"
	applog "storefront/internal/log"
)

// Channel events for the products domain.
const (
	EventFindAllProduct = "findAllProduct"
	EventFindOneProduct = "findOneProduct"
	EventCreateProduct  = "createProduct"
	EventUpdateProduct  = "updateProduct"
	EventProductUpdated = "productUpdated"
)

// Replica is the process-wide product replica. Views read it; only the
// sync layer mutates it. Safe for concurrent use.
type Replica struct {
	conn channel.Conn

	mu       sync.RWMutex
	products map[string]domain.Product
	loaded   bool
	applied  uint64
	lastErr  error

	genMu sync.Mutex
	gen   uint64

	offs []func()
}

func New(conn channel.Conn) *Replica {
	return &Replica{conn: conn, products: make(map[string]domain.Product)}
}

// Start subscribes to update pushes and re-issues the full load on
// every (re)connect. Call once from the application root.
func (r *Replica) Start(loadTimeout time.Duration) {
	offUpdate := r.conn.On(EventProductUpdated, func(m channel.Message) {
		var p domain.Product
		if err := channel.Normalize(m.Data).Decode(&p); err != nil {
			applog.Warn(nil, "catalog.update.bad", map[string]any{"err": err.Error()})
			return
		}
		r.ApplyUpdate(p)
	})
	offConnect := r.conn.OnConnect(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			if err := r.LoadAll(ctx); err != nil {
				applog.Error(nil, "catalog.load", err, nil)
			}
		}()
	})
	r.offs = append(r.offs, offUpdate, offConnect)
}

func (r *Replica) Stop() {
	for _, off := range r.offs {
		off()
	}
	r.offs = nil
}

// LoadAll requests the complete catalog and replaces the replica
// wholesale. A failed or malformed response leaves the previous replica
// intact and is reported both as a return value and via LastError. A
// response superseded by a newer load is discarded.
func (r *Replica) LoadAll(ctx context.Context) error {
	gen := r.nextGen()
	res, err := channel.Request(ctx, r.conn, EventFindAllProduct, nil)
	if err != nil {
		r.setErr(gen, err)
		return err
	}
	var list []domain.Product
	if err := res.Decode(&list); err != nil {
		r.setErr(gen, err)
		return err
	}
	r.apply(gen, list)
	return nil
}

func (r *Replica) nextGen() uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	r.gen++
	return r.gen
}

// apply installs a full-load result unless a newer load already did.
// Responses can arrive out of order; only the newest wins.
func (r *Replica) apply(gen uint64, list []domain.Product) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen < r.applied {
		applog.Info(nil, "catalog.load.stale", map[string]any{"count": len(list)})
		return false
	}
	m := make(map[string]domain.Product, len(list))
	for _, p := range list {
		m[p.ID] = p
	}
	r.products = m
	r.applied = gen
	r.loaded = true
	r.lastErr = nil
	applog.Info(nil, "catalog.load.ok", map[string]any{"count": len(m)})
	return true
}

// ApplyUpdate replaces a known product's fields in place. Unknown ids
// are ignored: the replica is not an open-world store, products are
// only admitted via LoadAll. Updates arriving before the first full
// load are dropped, never applied to a nonexistent baseline.
func (r *Replica) ApplyUpdate(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		applog.Info(nil, "catalog.update.prebaseline", map[string]any{"product": p.ID})
		return
	}
	if _, ok := r.products[p.ID]; !ok {
		return
	}
	r.products[p.ID] = p
}

func (r *Replica) FindByID(id string) (domain.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	return p, ok
}

func (r *Replica) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products)
}

func (r *Replica) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// LastError reports the most recent load failure; nil after a
// successful load.
func (r *Replica) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// setErr records a load failure, unless a newer load has already
// succeeded. A slow superseded load that fails late must not disturb
// the nil-after-success contract of LastError.
func (r *Replica) setErr(gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen <= r.applied {
		return
	}
	r.lastErr = err
}

// List returns all products, newest first.
func (r *Replica) List() []domain.Product {
	r.mu.RLock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func (r *Replica) ListByCategory(categoryID string) []domain.Product {
	r.mu.RLock()
	out := make([]domain.Product, 0)
	for _, p := range r.products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// Search matches q case-insensitively against name and description.
func (r *Replica) Search(q string) []domain.Product {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	r.mu.RLock()
	out := make([]domain.Product, 0)
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(ps []domain.Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt != ps[j].CreatedAt {
			return ps[i].CreatedAt > ps[j].CreatedAt
		}
		return ps[i].ID < ps[j].ID
	})
}
