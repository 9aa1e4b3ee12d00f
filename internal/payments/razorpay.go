package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

const (
	ProviderRazorpay = "razorpay"
	// receiptMaxLen is Razorpay's limit on the receipt field.
	receiptMaxLen = 40
)

// razorpayOrders is the part of the Razorpay SDK the gateway calls.
type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway creates Razorpay Orders. The order id is echoed in receipt (truncated)
// and notes.order_id (complete).
type RazorpayGateway struct {
	orders razorpayOrders
	keyID  string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, keyID: keyID}
}

func (g *RazorpayGateway) Name() string { return ProviderRazorpay }

func (g *RazorpayGateway) CreateIntent(_ context.Context, amountMinor int64, currency, reference string, metadata map[string]string) (*Intent, error) {
	notes := map[string]interface{}{"order_id": reference}
	for k, v := range metadata {
		notes[k] = v
	}
	receipt := reference
	if len(receipt) > receiptMaxLen {
		receipt = receipt[:receiptMaxLen]
	}

	body, err := g.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": strings.ToUpper(currency),
		"receipt":  receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no id")
	}

	return &Intent{
		Provider: ProviderRazorpay,
		IntentID: id,
		ClientFields: map[string]string{
			"key_id":   g.keyID,
			"order_id": id,
			"amount":   strconv.FormatInt(amountMinor, 10),
			"currency": strings.ToUpper(currency),
		},
	}, nil
}
