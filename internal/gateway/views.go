package gateway

import (
	"context"
	"time"

	"github.com/ordbot/storefront/internal/domain"
)

type OrderLister interface {
	ListAll(ctx context.Context) ([]*domain.Order, error)
}

type ProductLister interface {
	Products(ctx context.Context) ([]*domain.Product, error)
}

type orderViews struct {
	src OrderLister
}

// NewOrderViews adapts the order store to the ops API shape. The underlying
// listing is already most-recent-first.
func NewOrderViews(src OrderLister) OrdersReader {
	return orderViews{src: src}
}

func (v orderViews) ListAll(ctx context.Context) ([]*OrderView, error) {
	orders, err := v.src.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, &OrderView{
			ID:          o.ID,
			CustomerID:  o.CustomerID,
			Status:      o.Status.String(),
			TotalFiat:   o.TotalFiat,
			TotalCrypto: o.TotalCrypto,
			CreatedAt:   o.CreatedAt.Format(time.RFC3339),
		})
	}
	return views, nil
}

type productViews struct {
	src ProductLister
}

func NewProductViews(src ProductLister) ProductsReader {
	return productViews{src: src}
}

func (v productViews) List(ctx context.Context) ([]*ProductView, error) {
	products, err := v.src.Products(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, &ProductView{
			ID:    p.ID,
			Name:  p.Name,
			Stock: p.Stock,
		})
	}
	return views, nil
}
