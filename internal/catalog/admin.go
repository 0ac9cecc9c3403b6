package catalog

import (
	"context"

	"storefront/internal/channel"
	"storefront/internal/domain"
)

// productPayload is the outbound shape for create/update requests. The
// optional image travels base64-encoded alongside the fields.
type productPayload struct {
	Product domain.Product `json:"product"`
	File    []byte         `json:"file,omitempty"`
}

// FetchOne requests a single product. A known id is refreshed in place;
// unknown ids are returned but not admitted to the replica (LoadAll is
// the only way in).
func (r *Replica) FetchOne(ctx context.Context, id string) (domain.Product, error) {
	res, err := channel.Request(ctx, r.conn, EventFindOneProduct, map[string]string{"id": id})
	if err != nil {
		return domain.Product{}, err
	}
	var p domain.Product
	if err := res.Decode(&p); err != nil {
		return domain.Product{}, err
	}
	r.ApplyUpdate(p)
	return p, nil
}

// CreateProduct submits a new product definition. Admin call sites
// only; authorization is enforced upstream.
func (r *Replica) CreateProduct(ctx context.Context, p domain.Product, file []byte) error {
	res, err := channel.Request(ctx, r.conn, EventCreateProduct, productPayload{Product: p, File: file})
	if err != nil {
		return err
	}
	var created domain.Product
	return res.Decode(&created)
}

// UpdateProduct submits changed fields for an existing product. The
// replica itself is not touched here; the authoritative copy arrives
// back through the productUpdated push.
func (r *Replica) UpdateProduct(ctx context.Context, p domain.Product, file []byte) error {
	res, err := channel.Request(ctx, r.conn, EventUpdateProduct, productPayload{Product: p, File: file})
	if err != nil {
		return err
	}
	var updated domain.Product
	return res.Decode(&updated)
}
