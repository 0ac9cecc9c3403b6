// Package orders mirrors server-side orders for display. The client
// never computes status transitions; it shows what the server reports.
package orders

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/channel"
	"storefront/internal/domain"
)

// Channel events for the orders domain.
const (
	EventFindAllOrder   = "findAllOrder"
	EventFindUserOrders = "findUserOrders"
	EventFindOneOrder   = "findOneOrder"
	EventCreateOrder    = "createOrder"
	EventOrderSubmitAck = "orderSubmitAck"
)

// Replica is the process-wide read-side order mirror, shared by all
// views. Safe for concurrent use.
type Replica struct {
	conn channel.Conn

	mu   sync.RWMutex
	byID map[string]domain.Order
}

func New(conn channel.Conn) *Replica {
	return &Replica{conn: conn, byID: make(map[string]domain.Order)}
}

// LoadForCustomer fetches the orders belonging to one customer. Orders
// of other customers are filtered out and never cached, even if the
// shared transport hands back more than asked for.
func (r *Replica) LoadForCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	res, err := channel.Request(ctx, r.conn, EventFindUserOrders, map[string]string{"userId": customerID})
	if err != nil {
		return nil, err
	}
	var list []domain.Order
	if err := res.Decode(&list); err != nil {
		return nil, err
	}
	own := list[:0]
	for _, o := range list {
		if o.CustomerID == customerID {
			own = append(own, o)
		}
	}
	r.cache(own)
	return sortedNewestFirst(own), nil
}

// LoadAll fetches every order. Admin-scoped; authorization is enforced
// by the caller's surface, not here.
func (r *Replica) LoadAll(ctx context.Context) ([]domain.Order, error) {
	res, err := channel.Request(ctx, r.conn, EventFindAllOrder, nil)
	if err != nil {
		return nil, err
	}
	var list []domain.Order
	if err := res.Decode(&list); err != nil {
		return nil, err
	}
	r.cache(list)
	return sortedNewestFirst(list), nil
}

// LoadOne fetches a single order's detail.
func (r *Replica) LoadOne(ctx context.Context, orderID string) (domain.Order, error) {
	res, err := channel.Request(ctx, r.conn, EventFindOneOrder, map[string]string{"id": orderID})
	if err != nil {
		return domain.Order{}, err
	}
	var o domain.Order
	if err := res.Decode(&o); err != nil {
		return domain.Order{}, err
	}
	r.cache([]domain.Order{o})
	return o, nil
}

// Get reads a previously loaded order from the mirror.
func (r *Replica) Get(orderID string) (domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[orderID]
	return o, ok
}

func (r *Replica) cache(list []domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range list {
		if o.ID != "" {
			r.byID[o.ID] = o
		}
	}
}

func sortedNewestFirst(list []domain.Order) []domain.Order {
	out := make([]domain.Order, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderedAt != out[j].OrderedAt {
			return out[i].OrderedAt > out[j].OrderedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
