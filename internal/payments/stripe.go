package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v83"
)

const ProviderStripe = "stripe"

// stripeIntents is the part of the Stripe client the gateway calls.
type stripeIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// StripeGateway creates PaymentIntents. The order id is echoed in description and
// metadata.order_id.
type StripeGateway struct {
	intents stripeIntents
}

func NewStripeGateway(secretKey string) *StripeGateway {
	sc := stripe.NewClient(secretKey)
	return &StripeGateway{intents: sc.V1PaymentIntents}
}

func (g *StripeGateway) Name() string { return ProviderStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, reference string, metadata map[string]string) (*Intent, error) {
	md := map[string]string{"order_id": reference}
	for k, v := range metadata {
		md[k] = v
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(amountMinor),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(reference),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: md,
	}

	pi, err := g.intents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &Intent{
		Provider: ProviderStripe,
		IntentID: pi.ID,
		ClientFields: map[string]string{
			"client_secret":     pi.ClientSecret,
			"payment_intent_id": pi.ID,
			"amount":            strconv.FormatInt(amountMinor, 10),
			"currency":          strings.ToLower(currency),
		},
	}, nil
}
