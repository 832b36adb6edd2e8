package domain

import "time"

// Tier is a fixed quantity/price bundle a product is sold in. Price is the
// price of the whole bundle, not per unit.
type Tier struct {
	Qty   float64 `json:"qty"`
	Price float64 `json:"price"`
}

type Product struct {
	ID          int64
	Name        string
	Description string
	Photo       string
	Stock       int
	Tiers       []Tier
	CreatedAt   time.Time
}

// DefaultTiers is the ladder applied to a newly created product until the
// admin replaces it.
var DefaultTiers = []Tier{
	{Qty: 1, Price: 10},
	{Qty: 3.5, Price: 5},
	{Qty: 7, Price: 4},
	{Qty: 14, Price: 3},
	{Qty: 28, Price: 2},
	{Qty: 56, Price: 1},
}
