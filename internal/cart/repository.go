package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ordbot/storefront/internal/domain"
)

// Repository defines cart line persistence. Consumers define this interface,
// not the Postgres implementation.
type Repository interface {
	ListLines(ctx context.Context, customerID int64) ([]domain.CartLine, error)
	AddLine(ctx context.Context, line *domain.CartLine) error
	RemoveLine(ctx context.Context, lineID, customerID int64) error
	Clear(ctx context.Context, customerID int64) error
}

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListLines(ctx context.Context, customerID int64) ([]domain.CartLine, error) {
	query := `SELECT cl.id, cl.customer_id, cl.product_id, p.name, cl.quantity, cl.unit_price, cl.added_at
	          FROM cart_lines cl JOIN products p ON cl.product_id = p.id
	          WHERE cl.customer_id = $1 ORDER BY cl.id`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(
			&l.ID, &l.CustomerID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (r *postgresRepository) AddLine(ctx context.Context, line *domain.CartLine) error {
	query := `INSERT INTO cart_lines (customer_id, product_id, quantity, unit_price)
	          VALUES ($1, $2, $3, $4) RETURNING id, added_at`

	err := r.db.QueryRowContext(ctx, query,
		line.CustomerID, line.ProductID, line.Quantity, line.UnitPrice,
	).Scan(&line.ID, &line.AddedAt)
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

// RemoveLine deletes a line only when it belongs to the requesting customer;
// the ownership check lives in the WHERE clause.
func (r *postgresRepository) RemoveLine(ctx context.Context, lineID, customerID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE id = $1 AND customer_id = $2`, lineID, customerID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, customerID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
