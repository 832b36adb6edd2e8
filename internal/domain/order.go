package domain

import "time"

type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusDispatched      OrderStatus = "DISPATCHED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// transitions is the only legal movement between order statuses.
// An order enters at AWAITING_PAYMENT and ends at DISPATCHED or REJECTED.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusRejected},
	OrderStatusPaid:            {OrderStatusDispatched},
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDispatched || s == OrderStatusRejected
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is one frozen line of an order. UnitPrice is the price of the
// whole tier bundle, so an item contributes exactly UnitPrice to the subtotal.
type OrderItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Order is an immutable snapshot of a checkout; after creation only Status
// and UpdatedAt ever change.
type Order struct {
	ID             string
	CustomerID     int64
	Name           string
	Address        string
	ShippingMethod string
	DiscountCode   string
	Subtotal       float64
	DiscountAmount float64
	ShippingAmount float64
	TotalFiat      float64
	TotalCrypto    float64
	ExchangeRate   float64
	Status         OrderStatus
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
