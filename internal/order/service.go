package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ordbot/storefront/internal/checkout"
	"github.com/ordbot/storefront/internal/domain"
	"github.com/ordbot/storefront/internal/pricing"
)

const (
	createRetries  = 3
	publishTimeout = 5 * time.Second
)

type Notifier interface {
	NotifyCustomer(ctx context.Context, customerID int64, text string)
	NotifyAdmins(ctx context.Context, text string)
}

type RateSource interface {
	Rate(ctx context.Context) float64
}

// CacheInvalidator lets the service drop the customer's cached basket after
// the order transaction has deleted the lines underneath it.
type CacheInvalidator interface {
	Invalidate(customerID int64)
}

// PaymentInstruction tells the customer how to settle the order out-of-band.
type PaymentInstruction struct {
	Amount  float64
	Address string
}

// Service drives the order lifecycle. Admin operations check the caller
// against a fixed allow-list; status changes are the source of truth and
// notifications/events around them are best-effort.
type Service struct {
	repo       Repository
	rates      RateSource
	notifier   Notifier
	events     Publisher
	carts      CacheInvalidator
	admins     map[int64]struct{}
	payAddress string
}

func NewService(repo Repository, rates RateSource, notifier Notifier, events Publisher, carts CacheInvalidator, adminIDs []int64, payAddress string) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{
		repo:       repo,
		rates:      rates,
		notifier:   notifier,
		events:     events,
		carts:      carts,
		admins:     admins,
		payAddress: payAddress,
	}
}

func (s *Service) IsAdmin(id int64) bool {
	_, ok := s.admins[id]
	return ok
}

// NewOrderID is a short token cut from a UUID; collisions are handled by
// retrying the insert.
func NewOrderID() string {
	return uuid.NewString()[:8]
}

// Create turns the completed draft plus the customer's current cart into a
// persisted order in a single transaction. The snapshot is taken at commit
// time; later cart or catalog changes cannot touch it.
func (s *Service) Create(ctx context.Context, customerID int64, draft checkout.Draft) (*domain.Order, PaymentInstruction, error) {
	rate := s.rates.Rate(ctx)

	shipping := draft.Shipping
	if shipping == "" {
		shipping = pricing.ShippingStandard
	}

	var created *domain.Order
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		created, err = s.repo.CreateOrder(ctx, customerID, func(lines []domain.CartLine) (*domain.Order, error) {
			quote := pricing.Compute(lines, shipping, draft.DiscountCode, rate)
			items := make([]domain.OrderItem, len(lines))
			for i, l := range lines {
				items[i] = domain.OrderItem{
					ProductID:   l.ProductID,
					ProductName: l.ProductName,
					Quantity:    l.Quantity,
					UnitPrice:   l.UnitPrice,
				}
			}
			return &domain.Order{
				ID:             NewOrderID(),
				CustomerID:     customerID,
				Name:           draft.Name,
				Address:        draft.Address,
				ShippingMethod: string(shipping),
				DiscountCode:   draft.DiscountCode,
				Subtotal:       quote.Subtotal,
				DiscountAmount: quote.DiscountAmount,
				ShippingAmount: quote.ShippingAmount,
				TotalFiat:      quote.TotalFiat,
				TotalCrypto:    quote.TotalCrypto,
				ExchangeRate:   rate,
				Status:         domain.OrderStatusAwaitingPayment,
				Items:          items,
			}, nil
		})
		if !errors.Is(err, ErrDuplicateOrderID) {
			break
		}
		log.Printf("order id collision, retrying (attempt %d)", attempt+1)
	}
	if err != nil {
		return nil, PaymentInstruction{}, err
	}

	s.carts.Invalidate(customerID)
	s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"New order %s from customer %d: %.2f fiat (%v crypto)",
		created.ID, customerID, created.TotalFiat, created.TotalCrypto))
	s.publish(EventOrderCreated, created, true)

	return created, PaymentInstruction{Amount: created.TotalCrypto, Address: s.payAddress}, nil
}

// ClaimPayment is the customer's "I have paid" acknowledgment. It changes
// nothing on the order; it only pings the admins.
func (s *Service) ClaimPayment(ctx context.Context, customerID int64, orderID string) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}

	s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"Customer %d claims payment for order %s", customerID, orderID))
	s.publish(EventPaymentClaimed, o, false)
	return o, nil
}

func (s *Service) Confirm(ctx context.Context, adminID int64, orderID string) (*domain.Order, error) {
	o, err := s.adminTransition(ctx, adminID, orderID,
		domain.OrderStatusAwaitingPayment, domain.OrderStatusPaid)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCustomer(ctx, o.CustomerID, fmt.Sprintf(
		"Payment confirmed for order %s. You can leave a review once it arrives.", o.ID))
	s.publish(EventOrderPaid, o, false)
	return o, nil
}

func (s *Service) Reject(ctx context.Context, adminID int64, orderID string) (*domain.Order, error) {
	o, err := s.adminTransition(ctx, adminID, orderID,
		domain.OrderStatusAwaitingPayment, domain.OrderStatusRejected)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCustomer(ctx, o.CustomerID, fmt.Sprintf(
		"Payment for order %s was rejected. Please contact support.", o.ID))
	// Stock is not restored here; the rejection event carries the snapshot
	// so a back-office consumer can compensate.
	s.publish(EventOrderRejected, o, true)
	return o, nil
}

func (s *Service) Dispatch(ctx context.Context, adminID int64, orderID string) (*domain.Order, error) {
	o, err := s.adminTransition(ctx, adminID, orderID,
		domain.OrderStatusPaid, domain.OrderStatusDispatched)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCustomer(ctx, o.CustomerID, fmt.Sprintf(
		"Order %s has been dispatched.", o.ID))
	s.publish(EventOrderDispatch, o, false)
	return o, nil
}

func (s *Service) adminTransition(ctx context.Context, adminID int64, orderID string, from, to domain.OrderStatus) (*domain.Order, error) {
	if !s.IsAdmin(adminID) {
		return nil, domain.ErrUnauthorized
	}
	if !domain.CanTransitionTo(from, to) {
		return nil, domain.ErrInvalidTransition
	}
	return s.repo.TransitionStatus(ctx, orderID, from, to)
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *Service) ListAllOrders(ctx context.Context, adminID int64) ([]*domain.Order, error) {
	if !s.IsAdmin(adminID) {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.ListAll(ctx)
}

// publish sends a lifecycle event to the stream. Failures are logged and
// never propagate; the status row is the source of truth.
func (s *Service) publish(eventType string, o *domain.Order, withItems bool) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := Event{
		Type:        eventType,
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		TotalFiat:   o.TotalFiat,
		TotalCrypto: o.TotalCrypto,
		OccurredAt:  time.Now(),
	}
	if withItems {
		event.Items = o.Items
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("failed to publish %s event for order %s: %v", eventType, o.ID, err)
	}
}
