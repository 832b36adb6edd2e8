package domain

import "time"

// Review is attached to exactly one order; a second submission for the same
// order replaces the first.
type Review struct {
	OrderID    string    `bson:"order_id" json:"order_id"`
	CustomerID int64     `bson:"customer_id" json:"customer_id"`
	Stars      int       `bson:"stars" json:"stars"`
	Text       string    `bson:"text" json:"text"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}
