package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ordbot/storefront/internal/domain"
)

// Repository stores products in Postgres. Tiers are kept as a JSONB array
// ordered by quantity.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	tiersJSON, err := json.Marshal(p.Tiers)
	if err != nil {
		return fmt.Errorf("failed to marshal tiers: %w", err)
	}

	query := `INSERT INTO products (name, description, photo, stock, tiers)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Photo, p.Stock, tiersJSON,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, name, description, photo, stock, tiers, created_at
	          FROM products WHERE id = $1`

	var p domain.Product
	var tiersJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Photo, &p.Stock, &tiersJSON, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}

	if err := json.Unmarshal(tiersJSON, &p.Tiers); err != nil {
		return nil, fmt.Errorf("unmarshal product tiers: %w", err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT id, name, description, photo, stock, tiers, created_at
	          FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		var p domain.Product
		var tiersJSON []byte
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Photo, &p.Stock, &tiersJSON, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if err := json.Unmarshal(tiersJSON, &p.Tiers); err != nil {
			return nil, fmt.Errorf("unmarshal product tiers: %w", err)
		}
		products = append(products, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) ReplaceTiers(ctx context.Context, productID int64, tiers []domain.Tier) error {
	tiersJSON, err := json.Marshal(tiers)
	if err != nil {
		return fmt.Errorf("failed to marshal tiers: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET tiers = $1 WHERE id = $2`, tiersJSON, productID)
	if err != nil {
		return fmt.Errorf("update product tiers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) SetStock(ctx context.Context, productID int64, stock int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = $1 WHERE id = $2`, stock, productID)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
