package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ordbot/storefront/internal/domain"
)

const (
	minStock = 1
	maxStock = 1000
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	ReplaceTiers(ctx context.Context, productID int64, tiers []domain.Tier) error
	SetStock(ctx context.Context, productID int64, stock int) error
}

// Service covers the admin side of the catalog: creating products and
// replacing their tier ladder. Reads are open to everyone.
type Service struct {
	repo ProductRepository
}

func NewService(repo ProductRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateProduct(ctx context.Context, name, description, photo string, stock int) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name must not be empty", domain.ErrValidation)
	}
	if stock < minStock || stock > maxStock {
		return nil, fmt.Errorf("%w: stock must be between %d and %d", domain.ErrValidation, minStock, maxStock)
	}

	p := &domain.Product{
		Name:        name,
		Description: strings.TrimSpace(description),
		Photo:       photo,
		Stock:       stock,
		Tiers:       append([]domain.Tier(nil), domain.DefaultTiers...),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Products(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.List(ctx)
}

// SetStock replaces a product's remaining stock. Zero is allowed so an admin
// can pull a product from sale without deleting it.
func (s *Service) SetStock(ctx context.Context, productID int64, stock int) error {
	if stock < 0 || stock > maxStock {
		return fmt.Errorf("%w: stock must be between 0 and %d", domain.ErrValidation, maxStock)
	}
	return s.repo.SetStock(ctx, productID, stock)
}

// ReplaceTiers parses the admin's "qty,price" lines and swaps the product's
// tier ladder in one update. Every bad line is reported back; nothing is
// written unless all lines parse.
func (s *Service) ReplaceTiers(ctx context.Context, productID int64, input string) ([]domain.Tier, error) {
	tiers, errs := ParseTiers(input)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(errs, "; "))
	}
	if err := s.repo.ReplaceTiers(ctx, productID, tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// ParseTiers reads one "qty,price" pair per line. Returned tiers are sorted
// by quantity; errs holds one message per rejected line.
func ParseTiers(input string) (tiers []domain.Tier, errs []string) {
	lines := strings.Split(strings.TrimSpace(input), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			errs = append(errs, fmt.Sprintf("line %d: expected qty,price", i+1))
			continue
		}
		qty, errQty := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		price, errPrice := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errQty != nil || errPrice != nil || qty <= 0 || price <= 0 {
			errs = append(errs, fmt.Sprintf("line %d: invalid numbers", i+1))
			continue
		}
		tiers = append(tiers, domain.Tier{Qty: qty, Price: price})
	}
	if len(tiers) == 0 && len(errs) == 0 {
		errs = append(errs, "no valid tiers")
	}
	sort.Slice(tiers, func(a, b int) bool { return tiers[a].Qty < tiers[b].Qty })
	return tiers, errs
}
