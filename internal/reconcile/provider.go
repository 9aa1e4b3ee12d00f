package reconcile

import (
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
)

// Notification is a verified, parsed provider callback.
type Notification struct {
	Provider string
	Type     string // provider event type, e.g. payment.captured
	Captured bool   // only captured payments are applied
	// Reference is what the provider echoed back about our order.
	Reference orders.Reference
	PaymentID string
	Method    string
}

// Provider verifies and parses one payment provider's webhooks.
type Provider interface {
	Name() string
	// SignatureHeader is the request header carrying the signature.
	SignatureHeader() string
	// Verify checks signature over the exact raw body. Failures wrap apperr.ErrSignature.
	Verify(body []byte, signature string) error
	// Parse decodes a body that already passed Verify.
	Parse(body []byte) (*Notification, error)
}
