package validation

import (
	"github.com/shopspring/decimal"
)

// Item is one structured line item. qty and quantity are both accepted.
type Item struct {
	ID       string           `json:"id" validate:"required_without=Name"`
	Name     string           `json:"name" validate:"required_without=ID"`
	Qty      *int             `json:"qty,omitempty" validate:"required_without=Quantity"`
	Quantity *int             `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Count returns whichever quantity field the client sent.
func (it Item) Count() int {
	switch {
	case it.Qty != nil:
		return *it.Qty
	case it.Quantity != nil:
		return *it.Quantity
	}
	return 0
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	Canteen     string           `json:"canteen" validate:"required,max=100"`
	Email       string           `json:"email,omitempty" validate:"omitempty,email"`
	Items       Items            `json:"items"`
	TotalAmount *decimal.Decimal `json:"totalAmount" validate:"required"` // major units
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

// OTPRequest is the payload for POST /otp/request
type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OTPVerifyRequest is the payload for POST /otp/verify
type OTPVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}
