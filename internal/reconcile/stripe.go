package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

const (
	StripeSignatureHeader = "Stripe-Signature"
	stripeSucceeded       = "payment_intent.succeeded"
)

// Stripe verifies with the SDK's signed-header scheme (HMAC-SHA256 over timestamp and body).
type Stripe struct {
	secret string
}

func NewStripe(webhookSecret string) *Stripe {
	return &Stripe{secret: webhookSecret}
}

func (p *Stripe) Name() string            { return "stripe" }
func (p *Stripe) SignatureHeader() string { return StripeSignatureHeader }

func (p *Stripe) Verify(body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: missing %s", apperr.ErrSignature, StripeSignatureHeader)
	}
	if err := webhook.ValidatePayload(body, signature, p.secret); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSignature, err)
	}
	return nil
}

func (p *Stripe) Parse(body []byte) (*Notification, error) {
	var ev stripe.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	n := &Notification{Provider: p.Name(), Type: string(ev.Type), Captured: string(ev.Type) == stripeSucceeded}
	if !n.Captured {
		return n, nil
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("stripe event %s has no data", ev.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	n.Reference.Primary = pi.Description
	n.Reference.Fallback = pi.Metadata["order_id"]
	n.Reference.ProviderOrderID = pi.ID
	n.PaymentID = pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		n.PaymentID = pi.LatestCharge.ID
	}
	if len(pi.PaymentMethodTypes) > 0 {
		n.Method = pi.PaymentMethodTypes[0]
	}
	return n, nil
}
