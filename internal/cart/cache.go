package cart

import (
	"context"
	"errors"

	"github.com/ordbot/storefront/internal/domain"
)

type Cache interface {
	Get(ctx context.Context, customerID int64) ([]domain.CartLine, error)
	Set(ctx context.Context, customerID int64, lines []domain.CartLine) error
	Delete(ctx context.Context, customerID int64) error
}

var ErrCacheMiss = errors.New("cache miss")
