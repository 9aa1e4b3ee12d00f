package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(itemStructValidation, Item{})
	// the provided TotalAmount must match the sum of (price * qty) of priced items
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

func itemStructValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(Item)

	if it.Count() <= 0 {
		sl.ReportError(it.Qty, "qty", "Qty", "gt", "0")
	}
	if it.Price != nil && it.Price.IsNegative() {
		sl.ReportError(it.Price, "price", "Price", "gte", "0")
	}
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)
	if req.TotalAmount == nil {
		return
	}
	if req.TotalAmount.IsNegative() {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "gte", "0")
		return
	}

	sum := decimal.Zero
	for _, it := range req.Items.Structured {
		if it.Price != nil {
			sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Count()))))
		}
	}
	if !sum.IsZero() && !sum.Equal(*req.TotalAmount) {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "amount_match_items",
			fmt.Sprintf("items sum %s != totalAmount %s", sum, req.TotalAmount))
	}
}
