package domain

// Product is a server-owned catalog entity. The client only ever holds
// replicas of it; nothing on this side mutates a Product directly.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Weight      float64 `json:"weight"`
	Stock       int     `json:"stock"` // always >= 0 server-side
	CategoryID  string  `json:"categoryId"`
	Image       string  `json:"image"`
	CreatedAt   string  `json:"createdAt"`
}

// CartLine references a product by id. UnitPrice is a snapshot taken
// when the line was added; later catalog price changes do not touch it.
type CartLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"` // >= 1 for any present line
	UnitPrice float64 `json:"unitPrice"`
}

// Address is the delivery address collected at checkout.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// DraftItem is one submitted line of an OrderDraft.
type DraftItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderDraft is the value object composed from the cart at submission
// time. It is never stored on the client.
type OrderDraft struct {
	Address       Address     `json:"address"`
	Email         string      `json:"email"`
	Items         []DraftItem `json:"items"`
	TotalWeight   float64     `json:"totalWeight"`
	OrderType     string      `json:"orderType"` // "credit" | "standard"
	IsBulkOrder   bool        `json:"isBulkOrder"`
	IsCredit      bool        `json:"isCredit"`
	PaymentMethod string      `json:"paymentMethod"` // placeholder, resolved after submission
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty,omitempty"`
}
