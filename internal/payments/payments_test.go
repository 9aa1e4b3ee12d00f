package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"20", "INR", 2000, false},
		{"22.50", "inr", 2250, false},
		{"0.1", "USD", 10, false},
		{"0", "INR", 0, false},
		{"1500", "JPY", 1500, false},
		{"10.005", "INR", 0, true},
		{"1.5", "JPY", 0, true},
		{"-1", "INR", 0, true},
	}
	for _, tc := range cases {
		got, err := MinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
		if tc.wantErr {
			assert.Error(t, err, "%s %s", tc.amount, tc.currency)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s", tc.amount, tc.currency)
	}
}

type fakeRazorpayOrders struct {
	data map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeRazorpayOrders) Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error) {
	f.data = data
	return f.resp, f.err
}

func TestRazorpayGateway_CreateIntent(t *testing.T) {
	fake := &fakeRazorpayOrders{resp: map[string]interface{}{"id": "order_RZP1", "status": "created"}}
	g := &RazorpayGateway{orders: fake, keyID: "rzp_test_key"}
	ref := strings.Repeat("a", 36) + "-extra-long-reference"

	intent, err := g.CreateIntent(context.Background(), 2000, "inr", ref, map[string]string{"short_code": "ABC234"})
	require.NoError(t, err)

	assert.Equal(t, ProviderRazorpay, intent.Provider)
	assert.Equal(t, "order_RZP1", intent.IntentID)
	assert.Equal(t, "rzp_test_key", intent.ClientFields["key_id"])
	assert.Equal(t, int64(2000), fake.data["amount"])
	assert.Equal(t, "INR", fake.data["currency"])
	assert.Equal(t, ref[:40], fake.data["receipt"], "receipt is truncated")
	notes := fake.data["notes"].(map[string]interface{})
	assert.Equal(t, ref, notes["order_id"], "notes keep the full reference")
	assert.Equal(t, "ABC234", notes["short_code"])
}

func TestRazorpayGateway_Errors(t *testing.T) {
	g := &RazorpayGateway{orders: &fakeRazorpayOrders{err: errors.New("bad gateway")}}
	_, err := g.CreateIntent(context.Background(), 100, "INR", "ref", nil)
	assert.Error(t, err)

	g = &RazorpayGateway{orders: &fakeRazorpayOrders{resp: map[string]interface{}{}}}
	_, err = g.CreateIntent(context.Background(), 100, "INR", "ref", nil)
	assert.Error(t, err)
}

type fakeStripeIntents struct {
	params *stripe.PaymentIntentCreateParams
	err    error
}

func (f *fakeStripeIntents) Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}, nil
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	fake := &fakeStripeIntents{}
	g := &StripeGateway{intents: fake}

	intent, err := g.CreateIntent(context.Background(), 2250, "INR", "order-1", map[string]string{"canteen": "AZAD Hall"})
	require.NoError(t, err)

	assert.Equal(t, ProviderStripe, intent.Provider)
	assert.Equal(t, "pi_123", intent.IntentID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientFields["client_secret"])
	assert.Equal(t, int64(2250), *fake.params.Amount)
	assert.Equal(t, "inr", *fake.params.Currency)
	assert.Equal(t, "order-1", *fake.params.Description)
	assert.Equal(t, "order-1", fake.params.Metadata["order_id"])
	assert.Equal(t, "AZAD Hall", fake.params.Metadata["canteen"])
}

type fakeGateway struct {
	calls  int
	amount int64
	err    error
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, reference string, metadata map[string]string) (*Intent, error) {
	f.calls++
	f.amount = amountMinor
	if f.err != nil {
		return nil, f.err
	}
	return &Intent{Provider: "fake", IntentID: "intent-" + reference, ClientFields: map[string]string{"k": "v"}}, nil
}

type fakeOrders struct {
	order    *orders.Order
	getErr   error
	attached []string
}

func (f *fakeOrders) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.order, nil
}

func (f *fakeOrders) AttachIntent(ctx context.Context, orderID, provider, intentID string) (*orders.Order, error) {
	f.attached = append(f.attached, provider+"/"+intentID)
	o := *f.order
	o.PaymentInfo.Provider = provider
	o.PaymentInfo.ProviderOrderID = intentID
	return &o, nil
}

func pendingOrder() *orders.Order {
	now := time.Now()
	return &orders.Order{
		OrderID:     "order-1",
		ShortCode:   "ABC234",
		Canteen:     "AZAD Hall",
		TotalAmount: decimal.RequireFromString("20"),
		Currency:    "INR",
		Status:      orders.StatusPendingPayment,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestCheckout_Initiate(t *testing.T) {
	gw := &fakeGateway{}
	svc := &fakeOrders{order: pendingOrder()}
	c := NewCheckout(svc, gw, nil, zap.NewNop())

	res, err := c.Initiate(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), gw.amount)
	assert.Equal(t, "intent-order-1", res.IntentID)
	assert.Equal(t, int64(2000), res.AmountMinor)
	assert.Equal(t, []string{"fake/intent-order-1"}, svc.attached, "intent recorded before returning")
}

func TestCheckout_InitiateRejectsNonPending(t *testing.T) {
	gw := &fakeGateway{}
	o := pendingOrder()
	svc := &fakeOrders{order: o}
	c := NewCheckout(svc, gw, nil, nil)

	o.Status = orders.StatusExpired
	_, err := c.Initiate(context.Background(), "order-1")
	assert.ErrorIs(t, err, apperr.ErrExpired)

	o.Status = orders.StatusPaid
	_, err = c.Initiate(context.Background(), "order-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.Zero(t, gw.calls)
	assert.Empty(t, svc.attached)
}

func TestCheckout_InitiateGatewayFailure(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection reset")}
	svc := &fakeOrders{order: pendingOrder()}
	c := NewCheckout(svc, gw, nil, nil)

	_, err := c.Initiate(context.Background(), "order-1")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.ErrorIs(t, err, gw.err)
	assert.Empty(t, svc.attached, "order untouched")
}

func TestCheckout_InitiateUnknownOrder(t *testing.T) {
	svc := &fakeOrders{getErr: apperr.NotFound("order nope")}
	c := NewCheckout(svc, &fakeGateway{}, nil, nil)

	_, err := c.Initiate(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
