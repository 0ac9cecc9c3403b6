package domain

// OrderStatus is a closed enumeration. The server owns all transitions;
// the client only displays what it is told. Anything unrecognized maps
// to StatusUnknown and status-dependent UI must fail safe on it.
type OrderStatus string

const (
	StatusUnknown    OrderStatus = ""
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusReturned   OrderStatus = "RETURNED"
)

// ParseOrderStatus maps a server-reported status string onto the closed
// enumeration. ok is false for values outside it.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusReturned:
		return OrderStatus(s), true
	}
	return StatusUnknown, false
}

// Terminal reports whether no further transitions are expected.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusReturned
}

// TrackingVisible gates the tracking link: only once the order has
// actually shipped. Unknown statuses render nothing unusual.
func (s OrderStatus) TrackingVisible() bool {
	return s == StatusShipped || s == StatusDelivered
}

// OrderItem is a line of a read-side order with its resolved product
// summary.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Order is the read-side mirror of a server order. The client never
// computes state transitions on it beyond display.
type Order struct {
	ID            string      `json:"id"`
	CustomerID    string      `json:"customerId"`
	Address       Address     `json:"address"`
	Items         []OrderItem `json:"items"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"paymentStatus"`
	Total         float64     `json:"total"`
	OrderedAt     string      `json:"orderedAt"`
	PaidAt        string      `json:"paidAt"`
}

// StatusEnum returns the order's status on the closed enumeration.
func (o Order) StatusEnum() OrderStatus {
	st, _ := ParseOrderStatus(o.Status)
	return st
}
