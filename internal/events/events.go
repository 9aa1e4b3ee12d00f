// Package events carries order lifecycle events from the state machine to the notifier.
package events

import (
	"context"
	"time"
)

const (
	// TypeOrderPaid is emitted once, after an order commits to PAID.
	TypeOrderPaid = "order.paid"
	// TypeOrderReceipt follows TypeOrderPaid when the buyer left an email. It is
	// delivered separately so a mail failure does not replay the canteen alert.
	TypeOrderReceipt = "order.receipt"
	// TypeOrderPaymentLate is emitted when a captured payment arrives for an expired order.
	TypeOrderPaymentLate = "order.payment_late"
)

// Item is the line item snapshot an event carries for the canteen alert.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderEvent is the message body published to the events queue.
type OrderEvent struct {
	Type              string    `json:"type"`
	OrderID           string    `json:"order_id"`
	ShortCode         string    `json:"short_code"`
	Canteen           string    `json:"canteen"`
	Email             string    `json:"email,omitempty"`
	Items             []Item    `json:"items,omitempty"`
	TotalAmount       string    `json:"total_amount"`
	Currency          string    `json:"currency"`
	Provider          string    `json:"provider,omitempty"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher emits lifecycle events. Implementations must not block on delivery to consumers.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}
