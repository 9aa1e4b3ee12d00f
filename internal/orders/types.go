package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is an order's position in the payment lifecycle.
// PENDING_PAYMENT is initial; PAID and EXPIRED are terminal.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusExpired        Status = "EXPIRED"
)

const (
	ProviderManual      = "MANUAL"
	MethodManualConfirm = "MANUAL_CONFIRM"
)

// LineItem is the canonical item representation, whatever shape the client sent.
type LineItem struct {
	ID        string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// PaymentInfo is the provider correlation data attached as the payment flow progresses.
type PaymentInfo struct {
	Provider          string
	ProviderOrderID   string // provider-side intent id
	ProviderPaymentID string // set at most once, on the PAID transition
	Method            string
}

// Order is a buyer's request for items from one canteen, tracked through payment.
type Order struct {
	OrderID     string
	ShortCode   string
	Canteen     string
	Email       string
	Items       []LineItem
	TotalAmount decimal.Decimal
	Currency    string
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	PaidAt      *time.Time
	UpdatedAt   time.Time
	PaymentInfo PaymentInfo
}

// pastDeadline reports whether now is strictly after the payment deadline, at the
// millisecond precision the store compares with.
func (o *Order) pastDeadline(now time.Time) bool {
	return now.UnixMilli() > o.ExpiresAt.UnixMilli()
}

// Reference is what a payment provider echoes back about the order it was paid for.
type Reference struct {
	Primary         string // receipt / description, may be truncated by the provider
	Fallback        string // metadata copy of the order id
	ProviderOrderID string // provider-side intent id
}
