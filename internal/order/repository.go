package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/ordbot/storefront/internal/domain"
)

// ErrDuplicateOrderID signals an id collision on insert; the service retries
// with a fresh id.
var ErrDuplicateOrderID = errors.New("duplicate order id")

type Repository interface {
	// CreateOrder runs the whole checkout commit as one transaction: it
	// reads the customer's cart lines under lock, asks build to turn them
	// into an order, decrements stock for every snapshotted product, inserts
	// the order, and clears the cart. A failure at any step rolls the whole
	// thing back.
	CreateOrder(ctx context.Context, customerID int64, build func(lines []domain.CartLine) (*domain.Order, error)) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	// TransitionStatus applies from->to conditionally: the update only fires
	// while the order still holds the expected prior status, so two
	// concurrent admin actions cannot double-apply.
	TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
}

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateOrder(ctx context.Context, customerID int64, build func(lines []domain.CartLine) (*domain.Order, error)) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	lines, err := lockCartLines(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order, err := build(lines)
	if err != nil {
		return nil, err
	}

	// One unit of stock per distinct product in the snapshot; the WHERE
	// clause makes check-and-decrement a single atomic statement.
	for _, productID := range distinctProducts(lines) {
		result, errUpd := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - 1 WHERE id = $1 AND stock >= 1`, productID)
		if errUpd != nil {
			return nil, fmt.Errorf("decrement stock for product %d: %w", productID, errUpd)
		}
		affected, errAff := result.RowsAffected()
		if errAff != nil {
			return nil, fmt.Errorf("rows affected: %w", errAff)
		}
		if affected == 0 {
			return nil, domain.ErrOutOfStock
		}
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders
	          (id, customer_id, name, address, shipping_method, discount_code,
	           subtotal, discount_amount, shipping_amount, total_fiat, total_crypto,
	           exchange_rate, status, items, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		order.ID, order.CustomerID, order.Name, order.Address,
		order.ShippingMethod, order.DiscountCode,
		order.Subtotal, order.DiscountAmount, order.ShippingAmount,
		order.TotalFiat, order.TotalCrypto, order.ExchangeRate,
		order.Status, itemsJSON,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateOrderID
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE customer_id = $1`, customerID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order transaction: %w", err)
	}
	return order, nil
}

func lockCartLines(ctx context.Context, tx *sql.Tx, customerID int64) ([]domain.CartLine, error) {
	query := `SELECT cl.id, cl.customer_id, cl.product_id, p.name, cl.quantity, cl.unit_price, cl.added_at
	          FROM cart_lines cl JOIN products p ON cl.product_id = p.id
	          WHERE cl.customer_id = $1 ORDER BY cl.id FOR UPDATE OF cl`

	rows, err := tx.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
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

func distinctProducts(lines []domain.CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	var ids []int64
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

const orderColumns = `id, customer_id, name, address, shipping_method, discount_code,
	subtotal, discount_amount, shipping_amount, total_fiat, total_crypto,
	exchange_rate, status, items, created_at, updated_at`

func scanOrder(scanner interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var itemsJSON []byte
	err := scanner.Scan(
		&o.ID, &o.CustomerID, &o.Name, &o.Address, &o.ShippingMethod, &o.DiscountCode,
		&o.Subtotal, &o.DiscountAmount, &o.ShippingAmount, &o.TotalFiat, &o.TotalCrypto,
		&o.ExchangeRate, &o.Status, &itemsJSON, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}

func (r *postgresRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return o, nil
}

func (r *postgresRepository) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, errGet := r.Get(ctx, orderID); errGet != nil {
			return nil, errGet
		}
		return nil, domain.ErrInvalidTransition
	}

	return r.Get(ctx, orderID)
}

func (r *postgresRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by customer: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *postgresRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}
