package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ordbot/storefront/internal/checkout"
	"github.com/ordbot/storefront/internal/domain"
	"github.com/ordbot/storefront/internal/notify"
	"github.com/ordbot/storefront/internal/order"
)

// Update is one inbound message from the chat platform, already stripped of
// platform envelope detail.
type Update struct {
	CustomerID int64  `json:"customer_id"`
	Text       string `json:"text,omitempty"`
	PhotoRef   string `json:"photo_ref,omitempty"`
	Callback   string `json:"callback,omitempty"`
	MessageID  int64  `json:"message_id,omitempty"`
}

type CatalogService interface {
	CreateProduct(ctx context.Context, name, description, photo string, stock int) (*domain.Product, error)
	Product(ctx context.Context, id int64) (*domain.Product, error)
	Products(ctx context.Context) ([]*domain.Product, error)
	ReplaceTiers(ctx context.Context, productID int64, input string) ([]domain.Tier, error)
	SetStock(ctx context.Context, productID int64, stock int) error
}

type CartService interface {
	AddLine(ctx context.Context, customerID, productID int64, quantity, unitPrice float64) (*domain.CartLine, error)
	Lines(ctx context.Context, customerID int64) ([]domain.CartLine, error)
	RemoveLine(ctx context.Context, lineID, customerID int64) error
	Clear(ctx context.Context, customerID int64) error
}

type OrderService interface {
	Create(ctx context.Context, customerID int64, draft checkout.Draft) (*domain.Order, order.PaymentInstruction, error)
	ClaimPayment(ctx context.Context, customerID int64, orderID string) (*domain.Order, error)
	Confirm(ctx context.Context, adminID int64, orderID string) (*domain.Order, error)
	Reject(ctx context.Context, adminID int64, orderID string) (*domain.Order, error)
	Dispatch(ctx context.Context, adminID int64, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, customerID int64) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, adminID int64) ([]*domain.Order, error)
	IsAdmin(id int64) bool
}

type ReviewService interface {
	Submit(ctx context.Context, customerID int64, orderID string, stars int, text string) (*domain.Review, error)
	Recent(ctx context.Context) ([]domain.Review, error)
}

// Router turns inbound updates into service calls and replies. Free text goes
// to whichever conversation the customer has open; button payloads are parsed
// into typed commands.
type Router struct {
	sender   notify.Sender
	catalog  CatalogService
	carts    CartService
	orders   OrderService
	reviews  ReviewService
	checkout *checkout.Machine
	admin    *adminFlows
	pending  *reviewFlows
}

func NewRouter(sender notify.Sender, catalog CatalogService, carts CartService, orders OrderService, reviews ReviewService, machine *checkout.Machine) *Router {
	return &Router{
		sender:   sender,
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		reviews:  reviews,
		checkout: machine,
		admin:    newAdminFlows(),
		pending:  newReviewFlows(),
	}
}

func (r *Router) Handle(ctx context.Context, upd Update) error {
	if upd.Callback != "" {
		cmd, err := ParseCallback(upd.Callback)
		if err != nil {
			log.Printf("bad callback from customer %d: %v", upd.CustomerID, err)
			return r.reply(ctx, upd.CustomerID, "That button has expired. Send /start for the menu.")
		}
		return r.handleCommand(ctx, upd.CustomerID, cmd)
	}
	return r.handleText(ctx, upd)
}

func (r *Router) handleText(ctx context.Context, upd Update) error {
	id := upd.CustomerID
	text := strings.TrimSpace(upd.Text)

	switch text {
	case "/start":
		r.endConversations(id)
		return r.showMenu(ctx, id)
	case "/cancel":
		r.endConversations(id)
		return r.reply(ctx, id, "Cancelled. Send /start for the menu.")
	case "/admin":
		if !r.orders.IsAdmin(id) {
			return r.reply(ctx, id, "Unknown command. Send /start for the menu.")
		}
		return r.reply(ctx, id, "Admin: all orders (adm_ord), add product (adm_add).")
	case "/addproduct":
		if !r.orders.IsAdmin(id) {
			return r.reply(ctx, id, "Unknown command. Send /start for the menu.")
		}
		return r.handleCommand(ctx, id, AdminAddProduct{})
	}

	if r.checkout.Active(id) {
		return r.advanceCheckout(ctx, id, text)
	}
	if d, ok := r.pending.get(id); ok && d.stars > 0 {
		return r.finishReview(ctx, id, d, text)
	}
	if _, ok := r.admin.get(id); ok {
		return r.advanceAdminFlow(ctx, id, upd)
	}

	return r.reply(ctx, id, "Send /start for the menu.")
}

func (r *Router) handleCommand(ctx context.Context, id int64, cmd Command) error {
	switch c := cmd.(type) {
	case ShowMenu:
		return r.showMenu(ctx, id)
	case ShowProducts:
		return r.showProducts(ctx, id)
	case ShowBasket:
		return r.showBasket(ctx, id)
	case ShowOrders:
		return r.showOrders(ctx, id)
	case ShowReviews:
		return r.showReviews(ctx, id)

	case PickTier:
		return r.addToBasket(ctx, id, c)
	case RemoveLine:
		if err := r.carts.RemoveLine(ctx, c.LineID, id); err != nil {
			return r.replyError(ctx, id, err)
		}
		return r.showBasket(ctx, id)

	case StartCheckout:
		return r.startCheckout(ctx, id)
	case ConfirmOrder:
		return r.confirmOrder(ctx, id)
	case CancelAction:
		r.endConversations(id)
		return r.reply(ctx, id, "Cancelled. Send /start for the menu.")

	case ClaimPaid:
		if _, err := r.orders.ClaimPayment(ctx, id, c.OrderID); err != nil {
			return r.replyError(ctx, id, err)
		}
		return r.reply(ctx, id, fmt.Sprintf("Thanks. Order %s will be checked shortly.", c.OrderID))

	case AdminConfirm:
		return r.adminTransition(ctx, id, c.OrderID, r.orders.Confirm, "marked paid")
	case AdminReject:
		return r.adminTransition(ctx, id, c.OrderID, r.orders.Reject, "rejected")
	case AdminDispatch:
		return r.adminTransition(ctx, id, c.OrderID, r.orders.Dispatch, "dispatched")
	case AdminOrders:
		return r.showAllOrders(ctx, id)
	case AdminAddProduct:
		if !r.orders.IsAdmin(id) {
			return r.replyError(ctx, id, domain.ErrUnauthorized)
		}
		r.admin.begin(id, adminAwaitingPhoto)
		return r.reply(ctx, id, "New product: send the product photo.")
	case AdminEditTiers:
		if !r.orders.IsAdmin(id) {
			return r.replyError(ctx, id, domain.ErrUnauthorized)
		}
		d := r.admin.begin(id, adminAwaitingTiers)
		d.productID = c.ProductID
		return r.reply(ctx, id, "Send the new tiers, one \"qty,price\" per line.")
	case AdminEditStock:
		if !r.orders.IsAdmin(id) {
			return r.replyError(ctx, id, domain.ErrUnauthorized)
		}
		d := r.admin.begin(id, adminAwaitingStockEdit)
		d.productID = c.ProductID
		return r.reply(ctx, id, "New stock quantity (0-1000)?")

	case StartReview:
		r.pending.begin(id, c.OrderID)
		return r.reply(ctx, id, "How many stars? (stars_1 .. stars_5)")
	case PickStars:
		d, ok := r.pending.get(id)
		if !ok {
			return r.reply(ctx, id, "Pick an order to review first.")
		}
		d.stars = c.Stars
		return r.reply(ctx, id, "Now send a few words about your order.")
	}

	return r.reply(ctx, id, "Send /start for the menu.")
}

func (r *Router) showMenu(ctx context.Context, id int64) error {
	menu := "Welcome! products | basket | orders | reviews"
	if r.orders.IsAdmin(id) {
		menu += " | /admin"
	}
	return r.reply(ctx, id, menu)
}

func (r *Router) showProducts(ctx context.Context, id int64) error {
	products, err := r.catalog.Products(ctx)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(products) == 0 {
		return r.reply(ctx, id, "Nothing in stock right now.")
	}

	for _, p := range products {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n%s\n", p.Name, p.Description)
		for _, t := range p.Tiers {
			fmt.Fprintf(&b, "%v for %.2f (pick_%d_%v_%v)\n", t.Qty, t.Price, p.ID, t.Qty, t.Price)
		}
		if p.Photo != "" {
			if err := r.sender.SendPhoto(ctx, id, p.Photo, b.String()); err != nil {
				log.Printf("send photo failed customer_id=%d: %v", id, err)
			}
			continue
		}
		if err := r.reply(ctx, id, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) addToBasket(ctx context.Context, id int64, c PickTier) error {
	line, err := r.carts.AddLine(ctx, id, c.ProductID, c.Qty, c.Price)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.reply(ctx, id, fmt.Sprintf("Added %s (%v) for %.2f. Open your basket to check out.",
		line.ProductName, line.Quantity, line.UnitPrice))
}

func (r *Router) showBasket(ctx context.Context, id int64) error {
	lines, err := r.carts.Lines(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(lines) == 0 {
		return r.reply(ctx, id, "Your basket is empty.")
	}

	var b strings.Builder
	var subtotal float64
	b.WriteString("Your basket:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%s x%v — %.2f (remove_%d)\n", l.ProductName, l.Quantity, l.UnitPrice, l.ID)
		subtotal += l.UnitPrice
	}
	fmt.Fprintf(&b, "Subtotal: %.2f\ncheckout | cancel", subtotal)
	return r.reply(ctx, id, b.String())
}

func (r *Router) showOrders(ctx context.Context, id int64) error {
	orders, err := r.orders.ListOrders(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(orders) == 0 {
		return r.reply(ctx, id, "No orders yet.")
	}

	var b strings.Builder
	b.WriteString("Your orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s — %s — %.2f", o.ID, o.Status, o.TotalFiat)
		switch o.Status {
		case domain.OrderStatusAwaitingPayment:
			fmt.Fprintf(&b, " (paid_%s)", o.ID)
		case domain.OrderStatusPaid, domain.OrderStatusDispatched:
			fmt.Fprintf(&b, " (review_%s)", o.ID)
		}
		b.WriteString("\n")
	}
	return r.reply(ctx, id, b.String())
}

func (r *Router) showAllOrders(ctx context.Context, id int64) error {
	orders, err := r.orders.ListAllOrders(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(orders) == 0 {
		return r.reply(ctx, id, "No orders.")
	}

	var b strings.Builder
	b.WriteString("All orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s — customer %d — %s — %.2f", o.ID, o.CustomerID, o.Status, o.TotalFiat)
		switch o.Status {
		case domain.OrderStatusAwaitingPayment:
			fmt.Fprintf(&b, " (adm_ok_%s | adm_no_%s)", o.ID, o.ID)
		case domain.OrderStatusPaid:
			fmt.Fprintf(&b, " (adm_go_%s)", o.ID)
		}
		b.WriteString("\n")
	}
	return r.reply(ctx, id, b.String())
}

func (r *Router) showReviews(ctx context.Context, id int64) error {
	reviews, err := r.reviews.Recent(ctx)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(reviews) == 0 {
		return r.reply(ctx, id, "No reviews yet.")
	}

	var b strings.Builder
	b.WriteString("Recent reviews:\n")
	for _, rv := range reviews {
		fmt.Fprintf(&b, "%s — %s\n", strings.Repeat("★", rv.Stars), rv.Text)
	}
	return r.reply(ctx, id, b.String())
}

func (r *Router) startCheckout(ctx context.Context, id int64) error {
	lines, err := r.carts.Lines(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if len(lines) == 0 {
		return r.reply(ctx, id, "Your basket is empty.")
	}

	r.checkout.Begin(id)
	return r.reply(ctx, id, "What name should the order go to?")
}

func (r *Router) advanceCheckout(ctx context.Context, id int64, text string) error {
	res, err := r.checkout.Submit(id, text)
	if err != nil {
		return r.replyError(ctx, id, err)
	}

	if res.UnknownCode {
		if err := r.reply(ctx, id, "Code not recognised; continuing without a discount."); err != nil {
			return err
		}
	}
	return r.reply(ctx, id, checkoutPrompt(res))
}

func checkoutPrompt(res checkout.Result) string {
	switch res.State {
	case checkout.StateAwaitingName:
		return "What name should the order go to?"
	case checkout.StateAwaitingAddress:
		return "What is the delivery address?"
	case checkout.StateAwaitingShipping:
		return "Shipping: standard (free), tracked (+5.00) or nextday (+10.00)?"
	case checkout.StateAwaitingDiscount:
		return "Discount code? Reply \"skip\" if you have none."
	case checkout.StateReadyToConfirm:
		d := res.Draft
		return fmt.Sprintf("Ship to %s, %s via %s. confirm | cancel", d.Name, d.Address, d.Shipping)
	}
	return "Send /start for the menu."
}

func (r *Router) confirmOrder(ctx context.Context, id int64) error {
	draft, err := r.checkout.Take(id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}

	o, pay, err := r.orders.Create(ctx, id, draft)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.reply(ctx, id, fmt.Sprintf(
		"Order %s placed: %.2f (%v crypto).\nSend payment to %s, then press paid_%s.",
		o.ID, o.TotalFiat, pay.Amount, pay.Address, o.ID))
}

func (r *Router) finishReview(ctx context.Context, id int64, d *reviewDraft, text string) error {
	defer r.pending.end(id)

	if _, err := r.reviews.Submit(ctx, id, d.orderID, d.stars, text); err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.reply(ctx, id, "Thanks for the review!")
}

func (r *Router) advanceAdminFlow(ctx context.Context, id int64, upd Update) error {
	d, ok := r.admin.get(id)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(upd.Text)

	switch d.state {
	case adminAwaitingPhoto:
		if upd.PhotoRef == "" {
			return r.reply(ctx, id, "Send the product photo first.")
		}
		d.photo = upd.PhotoRef
		d.state = adminAwaitingTitle
		return r.reply(ctx, id, "Product name?")

	case adminAwaitingTitle:
		if text == "" {
			return r.reply(ctx, id, "Product name?")
		}
		d.title = text
		d.state = adminAwaitingDescription
		return r.reply(ctx, id, "Description?")

	case adminAwaitingDescription:
		if text == "" {
			return r.reply(ctx, id, "Description?")
		}
		d.description = text
		d.state = adminAwaitingStock
		return r.reply(ctx, id, "Stock quantity (1-1000)?")

	case adminAwaitingStock:
		stock, err := strconv.Atoi(text)
		if err != nil {
			return r.reply(ctx, id, "Stock quantity (1-1000)?")
		}
		p, err := r.catalog.CreateProduct(ctx, d.title, d.description, d.photo, stock)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return r.reply(ctx, id, "Stock quantity (1-1000)?")
			}
			r.admin.end(id)
			return r.replyError(ctx, id, err)
		}
		r.admin.end(id)
		return r.reply(ctx, id, fmt.Sprintf("Created %s (id %d). Edit tiers with tiers_%d, stock with stock_%d.", p.Name, p.ID, p.ID, p.ID))

	case adminAwaitingStockEdit:
		stock, err := strconv.Atoi(text)
		if err != nil {
			return r.reply(ctx, id, "New stock quantity (0-1000)?")
		}
		if err := r.catalog.SetStock(ctx, d.productID, stock); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return r.reply(ctx, id, "New stock quantity (0-1000)?")
			}
			r.admin.end(id)
			return r.replyError(ctx, id, err)
		}
		r.admin.end(id)
		return r.reply(ctx, id, fmt.Sprintf("Stock set to %d.", stock))

	case adminAwaitingTiers:
		tiers, err := r.catalog.ReplaceTiers(ctx, d.productID, text)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return r.reply(ctx, id, fmt.Sprintf("%v. Try again, one \"qty,price\" per line.", err))
			}
			r.admin.end(id)
			return r.replyError(ctx, id, err)
		}
		r.admin.end(id)
		return r.reply(ctx, id, fmt.Sprintf("Tiers updated (%d levels).", len(tiers)))
	}

	return nil
}

func (r *Router) adminTransition(ctx context.Context, id int64, orderID string, do func(context.Context, int64, string) (*domain.Order, error), verb string) error {
	o, err := do(ctx, id, orderID)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.reply(ctx, id, fmt.Sprintf("Order %s %s.", o.ID, verb))
}

func (r *Router) endConversations(id int64) {
	r.checkout.Cancel(id)
	r.admin.end(id)
	r.pending.end(id)
}

func (r *Router) reply(ctx context.Context, id int64, text string) error {
	return r.sender.SendMessage(ctx, id, text)
}

// replyError maps service errors to customer-facing text. Unexpected errors
// get a generic line; the detail stays in the log.
func (r *Router) replyError(ctx context.Context, id int64, err error) error {
	var msg string
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		msg = "Sorry, that item is out of stock."
	case errors.Is(err, domain.ErrEmptyCart):
		msg = "Your basket is empty."
	case errors.Is(err, domain.ErrNotEligible):
		msg = "You can review an order once payment is confirmed."
	case errors.Is(err, domain.ErrInvalidTransition):
		msg = "That order has already moved on."
	case errors.Is(err, domain.ErrUnauthorized):
		msg = "You are not allowed to do that."
	case errors.Is(err, domain.ErrValidation):
		msg = "That doesn't look right. Please try again."
	case errors.Is(err, domain.ErrOrderNotFound):
		msg = "Order not found."
	case errors.Is(err, domain.ErrLineNotFound):
		msg = "That basket line is gone."
	case errors.Is(err, domain.ErrProductNotFound):
		msg = "Product not found."
	case errors.Is(err, checkout.ErrNoSession):
		msg = "No checkout in progress. Open your basket to start one."
	default:
		log.Printf("unexpected error for customer %d: %v", id, err)
		msg = "Something went wrong. Please try again."
	}
	return r.reply(ctx, id, msg)
}
