package domain

import "errors"

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrNotEligible       = errors.New("order is not eligible for a review")
	ErrInvalidTransition = errors.New("illegal transition of order status")
	ErrUnauthorized      = errors.New("caller is not authorized for this action")
	ErrValidation        = errors.New("invalid input")
	ErrOrderNotFound     = errors.New("order not found")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrProductNotFound   = errors.New("product not found")
)
