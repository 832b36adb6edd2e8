package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPayload marks a callback payload that does not parse. Buttons are
// rendered by us, so a bad payload means a stale or forged client; it is
// reported, never panicked on.
var ErrBadPayload = errors.New("bad callback payload")

// Command is a button press decoded into a typed value. Parsing happens once
// at the boundary; the router switches on the concrete type.
type Command interface {
	isCommand()
}

type (
	ShowMenu     struct{}
	ShowProducts struct{}
	ShowBasket   struct{}
	ShowOrders   struct{}
	ShowReviews  struct{}

	// PickTier adds one tier bundle of a product to the basket.
	PickTier struct {
		ProductID int64
		Qty       float64
		Price     float64
	}
	RemoveLine struct {
		LineID int64
	}

	StartCheckout struct{}
	ConfirmOrder  struct{}
	CancelAction  struct{}

	// ClaimPaid is the customer's "I have paid" button on an order.
	ClaimPaid struct {
		OrderID string
	}

	AdminConfirm struct {
		OrderID string
	}
	AdminReject struct {
		OrderID string
	}
	AdminDispatch struct {
		OrderID string
	}
	AdminOrders     struct{}
	AdminAddProduct struct{}
	AdminEditTiers  struct {
		ProductID int64
	}
	AdminEditStock struct {
		ProductID int64
	}

	StartReview struct {
		OrderID string
	}
	PickStars struct {
		Stars int
	}
)

func (ShowMenu) isCommand()        {}
func (ShowProducts) isCommand()    {}
func (ShowBasket) isCommand()      {}
func (ShowOrders) isCommand()      {}
func (ShowReviews) isCommand()     {}
func (PickTier) isCommand()        {}
func (RemoveLine) isCommand()      {}
func (StartCheckout) isCommand()   {}
func (ConfirmOrder) isCommand()    {}
func (CancelAction) isCommand()    {}
func (ClaimPaid) isCommand()       {}
func (AdminConfirm) isCommand()    {}
func (AdminReject) isCommand()     {}
func (AdminDispatch) isCommand()   {}
func (AdminOrders) isCommand()     {}
func (AdminAddProduct) isCommand() {}
func (AdminEditTiers) isCommand()  {}
func (AdminEditStock) isCommand()  {}
func (StartReview) isCommand()     {}
func (PickStars) isCommand()       {}

var menuCommands = map[string]Command{
	"menu":     ShowMenu{},
	"products": ShowProducts{},
	"basket":   ShowBasket{},
	"orders":   ShowOrders{},
	"reviews":  ShowReviews{},
	"checkout": StartCheckout{},
	"confirm":  ConfirmOrder{},
	"cancel":   CancelAction{},
	"adm_ord":  AdminOrders{},
	"adm_add":  AdminAddProduct{},
}

// ParseCallback decodes a button payload into a Command.
func ParseCallback(data string) (Command, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadPayload)
	}

	if cmd, ok := menuCommands[data]; ok {
		return cmd, nil
	}

	switch {
	case strings.HasPrefix(data, "pick_"):
		return parsePickTier(data)
	case strings.HasPrefix(data, "remove_"):
		id, err := parseID(strings.TrimPrefix(data, "remove_"))
		if err != nil {
			return nil, err
		}
		return RemoveLine{LineID: id}, nil
	case strings.HasPrefix(data, "paid_"):
		oid, err := parseOrderID(strings.TrimPrefix(data, "paid_"))
		if err != nil {
			return nil, err
		}
		return ClaimPaid{OrderID: oid}, nil
	case strings.HasPrefix(data, "adm_ok_"):
		oid, err := parseOrderID(strings.TrimPrefix(data, "adm_ok_"))
		if err != nil {
			return nil, err
		}
		return AdminConfirm{OrderID: oid}, nil
	case strings.HasPrefix(data, "adm_no_"):
		oid, err := parseOrderID(strings.TrimPrefix(data, "adm_no_"))
		if err != nil {
			return nil, err
		}
		return AdminReject{OrderID: oid}, nil
	case strings.HasPrefix(data, "adm_go_"):
		oid, err := parseOrderID(strings.TrimPrefix(data, "adm_go_"))
		if err != nil {
			return nil, err
		}
		return AdminDispatch{OrderID: oid}, nil
	case strings.HasPrefix(data, "tiers_"):
		id, err := parseID(strings.TrimPrefix(data, "tiers_"))
		if err != nil {
			return nil, err
		}
		return AdminEditTiers{ProductID: id}, nil
	case strings.HasPrefix(data, "stock_"):
		id, err := parseID(strings.TrimPrefix(data, "stock_"))
		if err != nil {
			return nil, err
		}
		return AdminEditStock{ProductID: id}, nil
	case strings.HasPrefix(data, "review_"):
		oid, err := parseOrderID(strings.TrimPrefix(data, "review_"))
		if err != nil {
			return nil, err
		}
		return StartReview{OrderID: oid}, nil
	case strings.HasPrefix(data, "stars_"):
		n, err := strconv.Atoi(strings.TrimPrefix(data, "stars_"))
		if err != nil || n < 1 || n > 5 {
			return nil, fmt.Errorf("%w: stars in %q", ErrBadPayload, data)
		}
		return PickStars{Stars: n}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrBadPayload, data)
}

// parsePickTier decodes "pick_<productID>_<qty>_<price>".
func parsePickTier(data string) (Command, error) {
	parts := strings.Split(strings.TrimPrefix(data, "pick_"), "_")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrBadPayload, data)
	}
	id, errID := strconv.ParseInt(parts[0], 10, 64)
	qty, errQty := strconv.ParseFloat(parts[1], 64)
	price, errPrice := strconv.ParseFloat(parts[2], 64)
	if errID != nil || errQty != nil || errPrice != nil || id <= 0 || qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadPayload, data)
	}
	return PickTier{ProductID: id, Qty: qty, Price: price}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", ErrBadPayload, s)
	}
	return id, nil
}

func parseOrderID(s string) (string, error) {
	if s == "" || strings.ContainsAny(s, "_ ") {
		return "", fmt.Errorf("%w: order id %q", ErrBadPayload, s)
	}
	return s, nil
}
