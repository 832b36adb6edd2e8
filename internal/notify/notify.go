package notify

import (
	"context"
	"log"
)

// Sender is the outbound side of the chat transport. Implementations wrap
// whatever messaging platform the bot runs on.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	EditMessage(ctx context.Context, chatID int64, messageID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error
}

// Notifier delivers status messages to customers and the admin broadcast
// list. Delivery is best-effort: a blocked customer must never roll back an
// order transition, so failures are logged and swallowed.
type Notifier struct {
	sender   Sender
	adminIDs []int64
}

func NewNotifier(sender Sender, adminIDs []int64) *Notifier {
	return &Notifier{sender: sender, adminIDs: adminIDs}
}

func (n *Notifier) NotifyCustomer(ctx context.Context, customerID int64, text string) {
	if err := n.sender.SendMessage(ctx, customerID, text); err != nil {
		log.Printf("customer notification failed customer_id=%d: %v", customerID, err)
	}
}

func (n *Notifier) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range n.adminIDs {
		if err := n.sender.SendMessage(ctx, id, text); err != nil {
			log.Printf("admin notification failed admin_id=%d: %v", id, err)
		}
	}
}
