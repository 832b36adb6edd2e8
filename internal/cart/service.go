package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ordbot/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

type ProductReader interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
}

// Manager owns the per-customer basket. Reads go cache-first; every mutation
// writes to Postgres and invalidates the cache.
type Manager struct {
	repo     Repository
	cache    Cache
	products ProductReader
	sfg      singleflight.Group // Prevents cache stampede
}

func NewManager(repo Repository, cache Cache, products ProductReader) *Manager {
	return &Manager{
		repo:     repo,
		cache:    cache,
		products: products,
	}
}

// AddLine appends a new cart line after a point-in-time stock check. The
// check is a fast pre-filter only; the order transaction re-verifies stock.
func (m *Manager) AddLine(ctx context.Context, customerID, productID int64, quantity, unitPrice float64) (*domain.CartLine, error) {
	if quantity <= 0 || unitPrice <= 0 {
		return nil, fmt.Errorf("%w: quantity and price must be positive", domain.ErrValidation)
	}

	product, err := m.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < 1 {
		return nil, domain.ErrOutOfStock
	}

	line := &domain.CartLine{
		CustomerID:  customerID,
		ProductID:   productID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	if err := m.repo.AddLine(ctx, line); err != nil {
		log.Printf("repo add line error: %v", err)
		return nil, err
	}

	m.Invalidate(customerID)
	return line, nil
}

// Lines returns the customer's basket, oldest line first. An empty basket is
// a nil slice, not an error.
func (m *Manager) Lines(ctx context.Context, customerID int64) ([]domain.CartLine, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := m.sfg.Do(strconv.FormatInt(customerID, 10), func() (interface{}, error) {

		lines, err := m.cache.Get(ctx, customerID)
		if err == nil {
			return lines, nil // basket is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		lines, errList := m.repo.ListLines(ctx, customerID)
		if errList != nil {
			return nil, errList
		}

		// set cache
		go func() {
			errSet := m.cache.Set(context.Background(), customerID, lines)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return lines, nil
	})

	if err != nil {
		return nil, err
	}

	return v.([]domain.CartLine), nil
}

func (m *Manager) RemoveLine(ctx context.Context, lineID, customerID int64) error {
	if err := m.repo.RemoveLine(ctx, lineID, customerID); err != nil {
		return err
	}

	m.Invalidate(customerID)
	return nil
}

func (m *Manager) Clear(ctx context.Context, customerID int64) error {
	if err := m.repo.Clear(ctx, customerID); err != nil {
		log.Printf("repo clear cart error: %v", err)
		return err
	}

	m.Invalidate(customerID)
	return nil
}

// Invalidate drops the cached basket. The order service calls this after its
// transaction deletes the lines directly.
func (m *Manager) Invalidate(customerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.cache.Delete(ctx, customerID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
