package catalog

import "storefront/internal/domain"

// Availability converts replica stock to IN_STOCK / LOW_STOCK /
// OUT_OF_STOCK. Unknown products read as out of stock.
func (r *Replica) Availability(productID string) domain.Availability {
	p, ok := r.FindByID(productID)
	if !ok {
		return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}
	}
	status := "OUT_OF_STOCK"
	switch {
	case p.Stock >= 5:
		status = "IN_STOCK"
	case p.Stock > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: p.Stock}
}
