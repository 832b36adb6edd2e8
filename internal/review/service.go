package review

import (
	"context"
	"fmt"

	"github.com/ordbot/storefront/internal/domain"
)

const defaultRecentLimit = 20

// OrderGetter resolves the order a review is being attached to.
type OrderGetter interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
}

// Service gates review submission on order ownership and payment state.
// Reviews are public; listing needs no caller identity.
type Service struct {
	repo   Repository
	orders OrderGetter
}

func NewService(repo Repository, orders OrderGetter) *Service {
	return &Service{repo: repo, orders: orders}
}

// Submit stores a review for the customer's order. Only the order's owner may
// review it, and only once payment has been confirmed; resubmitting replaces
// the earlier review.
func (s *Service) Submit(ctx context.Context, customerID int64, orderID string, stars int, text string) (*domain.Review, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: stars must be between 1 and 5", domain.ErrValidation)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// One answer for "not yours" and "not paid yet": a non-owner must not
	// learn that the order exists.
	if order.CustomerID != customerID ||
		(order.Status != domain.OrderStatusPaid && order.Status != domain.OrderStatusDispatched) {
		return nil, domain.ErrNotEligible
	}

	review := &domain.Review{
		OrderID:    orderID,
		CustomerID: customerID,
		Stars:      stars,
		Text:       text,
	}
	if err := s.repo.Upsert(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Service) ForOrder(ctx context.Context, orderID string) (*domain.Review, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// Recent returns the latest reviews for the public reviews screen.
func (s *Service) Recent(ctx context.Context) ([]domain.Review, error) {
	return s.repo.ListRecent(ctx, defaultRecentLimit)
}
