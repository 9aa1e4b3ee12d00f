package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// orderRecord is the DynamoDB item shape. Times are epoch milliseconds so condition
// expressions can compare them numerically; payment info is flattened so the
// provider_order_id GSI can index it. Empty GSI keys are omitted, never written as "".
type orderRecord struct {
	OrderID           string       `dynamodbav:"order_id"`
	ShortCode         string       `dynamodbav:"short_code"`
	Canteen           string       `dynamodbav:"canteen"`
	Email             string       `dynamodbav:"email,omitempty"`
	Items             []itemRecord `dynamodbav:"items"`
	TotalAmount       string       `dynamodbav:"total_amount"`
	Currency          string       `dynamodbav:"currency"`
	Status            string       `dynamodbav:"status"`
	CreatedAt         int64        `dynamodbav:"created_at"`
	ExpiresAt         int64        `dynamodbav:"expires_at"`
	PaidAt            int64        `dynamodbav:"paid_at,omitempty"`
	UpdatedAt         int64        `dynamodbav:"updated_at"`
	Provider          string       `dynamodbav:"provider,omitempty"`
	ProviderOrderID   string       `dynamodbav:"provider_order_id,omitempty"`
	ProviderPaymentID string       `dynamodbav:"provider_payment_id,omitempty"`
	PaymentMethod     string       `dynamodbav:"payment_method,omitempty"`
}

type itemRecord struct {
	ID        string `dynamodbav:"id,omitempty"`
	Name      string `dynamodbav:"name,omitempty"`
	Quantity  int    `dynamodbav:"qty"`
	UnitPrice string `dynamodbav:"price"`
}

func toRecord(o *Order) orderRecord {
	rec := orderRecord{
		OrderID:           o.OrderID,
		ShortCode:         o.ShortCode,
		Canteen:           o.Canteen,
		Email:             o.Email,
		Items:             make([]itemRecord, 0, len(o.Items)),
		TotalAmount:       o.TotalAmount.String(),
		Currency:          o.Currency,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UnixMilli(),
		ExpiresAt:         o.ExpiresAt.UnixMilli(),
		UpdatedAt:         o.UpdatedAt.UnixMilli(),
		Provider:          o.PaymentInfo.Provider,
		ProviderOrderID:   o.PaymentInfo.ProviderOrderID,
		ProviderPaymentID: o.PaymentInfo.ProviderPaymentID,
		PaymentMethod:     o.PaymentInfo.Method,
	}
	if o.PaidAt != nil {
		rec.PaidAt = o.PaidAt.UnixMilli()
	}
	for _, it := range o.Items {
		rec.Items = append(rec.Items, itemRecord{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
		})
	}
	return rec
}

func (r orderRecord) toOrder() (*Order, error) {
	total, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s: total_amount %q: %w", r.OrderID, r.TotalAmount, err)
	}
	o := &Order{
		OrderID:     r.OrderID,
		ShortCode:   r.ShortCode,
		Canteen:     r.Canteen,
		Email:       r.Email,
		Items:       make([]LineItem, 0, len(r.Items)),
		TotalAmount: total,
		Currency:    r.Currency,
		Status:      Status(r.Status),
		CreatedAt:   fromMillis(r.CreatedAt),
		ExpiresAt:   fromMillis(r.ExpiresAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
		PaymentInfo: PaymentInfo{
			Provider:          r.Provider,
			ProviderOrderID:   r.ProviderOrderID,
			ProviderPaymentID: r.ProviderPaymentID,
			Method:            r.PaymentMethod,
		},
	}
	if r.PaidAt != 0 {
		paid := fromMillis(r.PaidAt)
		o.PaidAt = &paid
	}
	for _, it := range r.Items {
		price := decimal.Zero
		if it.UnitPrice != "" {
			if price, err = decimal.NewFromString(it.UnitPrice); err != nil {
				return nil, fmt.Errorf("order %s: item price %q: %w", r.OrderID, it.UnitPrice, err)
			}
		}
		o.Items = append(o.Items, LineItem{ID: it.ID, Name: it.Name, Quantity: it.Quantity, UnitPrice: price})
	}
	return o, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
