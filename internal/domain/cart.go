package domain

import "time"

// CartLine is one chosen tier in a customer's basket. Adding the same
// product/tier twice appends a second line; lines are never merged.
type CartLine struct {
	ID          int64
	CustomerID  int64
	ProductID   int64
	ProductName string
	Quantity    float64
	UnitPrice   float64
	AddedAt     time.Time
}
