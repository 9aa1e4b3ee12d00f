package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-canteen-orderflow/internal/events"
	"go.uber.org/zap"
)

// Alerts is what EventHandler needs from a notifier.
type Alerts interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendCanteenAlert(ctx context.Context, canteen, message string) error
}

// EventHandler turns lifecycle events into notifications. A returned error means the
// event should be redelivered.
type EventHandler struct {
	alerts Alerts
	log    *zap.Logger
}

func NewEventHandler(alerts Alerts, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventHandler{alerts: alerts, log: log}
}

func (h *EventHandler) Handle(ctx context.Context, ev events.OrderEvent) error {
	log := h.log.With(zap.String("type", ev.Type), zap.String("order_id", ev.OrderID))
	switch ev.Type {
	case events.TypeOrderPaid:
		if err := h.alerts.SendCanteenAlert(ctx, ev.Canteen, paidAlert(ev)); err != nil {
			return fmt.Errorf("canteen alert for %s: %w", ev.OrderID, err)
		}
		log.Info("canteen notified")
	case events.TypeOrderReceipt:
		if ev.Email == "" {
			log.Warn("receipt without email")
			return nil
		}
		subject := fmt.Sprintf("Order %s confirmed", ev.ShortCode)
		if err := h.alerts.SendEmail(ctx, ev.Email, subject, buyerConfirmation(ev)); err != nil {
			return fmt.Errorf("buyer confirmation for %s: %w", ev.OrderID, err)
		}
		log.Info("buyer notified")
	case events.TypeOrderPaymentLate:
		if err := h.alerts.SendCanteenAlert(ctx, ev.Canteen, lateAlert(ev)); err != nil {
			return fmt.Errorf("late payment alert for %s: %w", ev.OrderID, err)
		}
		log.Warn("late payment notified")
	default:
		log.Info("event ignored")
	}
	return nil
}

func itemLines(items []events.Item) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "  %d x %s\n", it.Quantity, it.Name)
	}
	return b.String()
}

func paidAlert(ev events.OrderEvent) string {
	return fmt.Sprintf("Order %s is paid.\n\nItems:\n%s\nTotal: %s %s\nOrder id: %s\n",
		ev.ShortCode, itemLines(ev.Items), ev.TotalAmount, ev.Currency, ev.OrderID)
}

func buyerConfirmation(ev events.OrderEvent) string {
	return fmt.Sprintf("Thanks! Your payment for order %s at %s was received.\n\nItems:\n%s\nTotal: %s %s\n\nShow code %s at the counter to collect your order.\n",
		ev.ShortCode, ev.Canteen, itemLines(ev.Items), ev.TotalAmount, ev.Currency, ev.ShortCode)
}

func lateAlert(ev events.OrderEvent) string {
	return fmt.Sprintf("Payment %s (%s) arrived after order %s expired. Do not prepare it; refund %s %s to the buyer.\nOrder id: %s\n",
		ev.ProviderPaymentID, ev.Provider, ev.ShortCode, ev.TotalAmount, ev.Currency, ev.OrderID)
}
