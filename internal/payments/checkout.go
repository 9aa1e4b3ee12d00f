package payments

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"go.uber.org/zap"
)

// OrderService is the slice of the lifecycle Checkout depends on.
type OrderService interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	AttachIntent(ctx context.Context, orderID, provider, intentID string) (*orders.Order, error)
}

// Checkout starts payment for pending orders. It never changes order status.
type Checkout struct {
	orders  OrderService
	gateway Gateway
	metrics metrics.Recorder
	log     *zap.Logger
}

func NewCheckout(orders OrderService, gateway Gateway, rec metrics.Recorder, log *zap.Logger) *Checkout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checkout{orders: orders, gateway: gateway, metrics: metrics.OrNop(rec), log: log}
}

// InitiateResult is returned to the buyer's client.
type InitiateResult struct {
	OrderID      string            `json:"orderId"`
	Provider     string            `json:"provider"`
	IntentID     string            `json:"intentId"`
	AmountMinor  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ClientFields map[string]string `json:"clientFields"`
}

// Initiate creates a provider intent for a PENDING_PAYMENT order and records its id on
// the order before returning it. A failed gateway call leaves the order untouched.
func (c *Checkout) Initiate(ctx context.Context, orderID string) (*InitiateResult, error) {
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case orders.StatusPendingPayment:
	case orders.StatusExpired:
		return nil, apperr.Expired("order %s expired", orderID)
	default:
		return nil, apperr.Conflict("order %s is %s", orderID, o.Status)
	}

	amount, err := MinorUnits(o.TotalAmount, o.Currency)
	if err != nil {
		return nil, apperr.Validation("order %s: %s", orderID, err)
	}

	intent, err := c.gateway.CreateIntent(ctx, amount, o.Currency, o.OrderID, map[string]string{
		"short_code": o.ShortCode,
		"canteen":    o.Canteen,
	})
	if err != nil {
		c.log.Error("create payment intent failed",
			zap.String("order_id", orderID),
			zap.String("provider", c.gateway.Name()),
			zap.Error(err))
		return nil, apperr.Unavailable(err, "payment provider %s", c.gateway.Name())
	}

	if _, err := c.orders.AttachIntent(ctx, orderID, intent.Provider, intent.IntentID); err != nil {
		return nil, fmt.Errorf("record intent %s: %w", intent.IntentID, err)
	}

	c.metrics.Count(ctx, metrics.PaymentsInitiated, map[string]string{"provider": intent.Provider})
	c.log.Info("payment initiated",
		zap.String("order_id", orderID),
		zap.String("provider", intent.Provider),
		zap.String("provider_order_id", intent.IntentID),
		zap.Int64("amount_minor", amount))

	return &InitiateResult{
		OrderID:      o.OrderID,
		Provider:     intent.Provider,
		IntentID:     intent.IntentID,
		AmountMinor:  amount,
		Currency:     o.Currency,
		ClientFields: intent.ClientFields,
	}, nil
}
