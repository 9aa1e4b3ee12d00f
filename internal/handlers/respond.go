package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"go.uber.org/zap"
)

// writeError maps err once, at the edge. Internal errors are logged and never echoed.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status, code := apperr.Status(err)
	if status >= 500 {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}
	msg := err.Error()
	if code == "internal_error" {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": code, "message": msg})
}

type itemView struct {
	ID        string      `json:"id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"price"`
}

type paymentView struct {
	Provider          string `json:"provider,omitempty"`
	ProviderOrderID   string `json:"providerOrderId,omitempty"`
	ProviderPaymentID string `json:"providerPaymentId,omitempty"`
	Method            string `json:"method,omitempty"`
}

type orderView struct {
	OrderID     string       `json:"orderId"`
	Code        string       `json:"code"`
	Canteen     string       `json:"canteen"`
	Email       string       `json:"email,omitempty"`
	Status      string       `json:"status"`
	Items       []itemView   `json:"items"`
	TotalAmount json.Number  `json:"totalAmount"`
	Currency    string       `json:"currency"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	PaidAt      *time.Time   `json:"paidAt,omitempty"`
	PaymentInfo *paymentView `json:"paymentInfo,omitempty"`
}

func newOrderView(o *orders.Order) orderView {
	v := orderView{
		OrderID:     o.OrderID,
		Code:        o.ShortCode,
		Canteen:     o.Canteen,
		Email:       o.Email,
		Status:      string(o.Status),
		Items:       make([]itemView, 0, len(o.Items)),
		TotalAmount: json.Number(o.TotalAmount.String()),
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
		ExpiresAt:   o.ExpiresAt,
		PaidAt:      o.PaidAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: json.Number(it.UnitPrice.String()),
		})
	}
	if p := o.PaymentInfo; p != (orders.PaymentInfo{}) {
		v.PaymentInfo = &paymentView{
			Provider:          p.Provider,
			ProviderOrderID:   p.ProviderOrderID,
			ProviderPaymentID: p.ProviderPaymentID,
			Method:            p.Method,
		}
	}
	return v
}

// statusView is the narrow shape polled by the buyer while paying.
type statusView struct {
	OrderID     string      `json:"orderId"`
	Status      string      `json:"status"`
	Code        string      `json:"code"`
	TotalAmount json.Number `json:"totalAmount"`
	Canteen     string      `json:"canteen"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func newStatusView(o *orders.Order) statusView {
	return statusView{
		OrderID:     o.OrderID,
		Status:      string(o.Status),
		Code:        o.ShortCode,
		TotalAmount: json.Number(o.TotalAmount.String()),
		Canteen:     o.Canteen,
		ExpiresAt:   o.ExpiresAt,
	}
}
