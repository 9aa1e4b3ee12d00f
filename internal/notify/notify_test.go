package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/imrishuroy/go-canteen-orderflow/internal/events"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func subject(m *mail.Msg) string {
	h := m.GetGenHeader(mail.HeaderSubject)
	if len(h) == 0 {
		return ""
	}
	return h[0]
}

func newNotifier(s *fakeSender) *Notifier {
	return New(s, "orders@canteen.test", map[string]string{"North Block": "north@canteen.test"}, nil)
}

func TestSendEmail_ComposesMessage(t *testing.T) {
	s := &fakeSender{}
	n := newNotifier(s)

	require.NoError(t, n.SendEmail(context.Background(), "buyer@example.com", "Your code", "123456"))
	require.Len(t, s.sent, 1)
	require.Contains(t, strings.Join(s.sent[0].GetToString(), ","), "buyer@example.com")
	require.Equal(t, "Your code", subject(s.sent[0]))
}

func TestSendEmail_RejectsBadAddress(t *testing.T) {
	s := &fakeSender{}
	err := newNotifier(s).SendEmail(context.Background(), "not-an-address", "x", "y")
	require.Error(t, err)
	require.Empty(t, s.sent)
}

func TestSendEmail_PropagatesSendFailure(t *testing.T) {
	s := &fakeSender{err: errors.New("connection refused")}
	err := newNotifier(s).SendEmail(context.Background(), "buyer@example.com", "x", "y")
	require.ErrorContains(t, err, "connection refused")
}

func TestSendCanteenAlert_LooksUpDirectory(t *testing.T) {
	s := &fakeSender{}
	n := newNotifier(s)

	require.NoError(t, n.SendCanteenAlert(context.Background(), "north block", "hello"))
	require.Len(t, s.sent, 1)
	require.Contains(t, strings.Join(s.sent[0].GetToString(), ","), "north@canteen.test")

	require.NoError(t, n.SendCanteenAlert(context.Background(), "South Block", "hello"))
	require.Len(t, s.sent, 1, "unknown canteens are skipped")
}

type recordedAlert struct {
	to, canteen, subject, body string
}

type fakeAlerts struct {
	emails  []recordedAlert
	alerts  []recordedAlert
	failFor string
}

func (f *fakeAlerts) SendEmail(_ context.Context, to, subject, body string) error {
	if f.failFor == "email" {
		return errors.New("smtp down")
	}
	f.emails = append(f.emails, recordedAlert{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeAlerts) SendCanteenAlert(_ context.Context, canteen, message string) error {
	if f.failFor == "canteen" {
		return errors.New("smtp down")
	}
	f.alerts = append(f.alerts, recordedAlert{canteen: canteen, body: message})
	return nil
}

func paidEvent() events.OrderEvent {
	return events.OrderEvent{
		Type:        events.TypeOrderPaid,
		OrderID:     "ord-1",
		ShortCode:   "K7QX2M",
		Canteen:     "North Block",
		Email:       "buyer@example.com",
		Items:       []events.Item{{Name: "Samosa", Quantity: 2}, {Name: "Chai", Quantity: 1}},
		TotalAmount: "45.00",
		Currency:    "INR",
		Provider:    "RAZORPAY",
		OccurredAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandle_PaidAlertsCanteenOnly(t *testing.T) {
	a := &fakeAlerts{}
	h := NewEventHandler(a, nil)

	require.NoError(t, h.Handle(context.Background(), paidEvent()))

	require.Len(t, a.alerts, 1)
	require.Equal(t, "North Block", a.alerts[0].canteen)
	require.Contains(t, a.alerts[0].body, "K7QX2M")
	require.Contains(t, a.alerts[0].body, "2 x Samosa")
	require.Contains(t, a.alerts[0].body, "45.00 INR")
	require.Empty(t, a.emails)
}

func TestHandle_ReceiptEmailsBuyerOnly(t *testing.T) {
	a := &fakeAlerts{}
	ev := paidEvent()
	ev.Type = events.TypeOrderReceipt

	require.NoError(t, NewEventHandler(a, nil).Handle(context.Background(), ev))
	require.Empty(t, a.alerts)
	require.Len(t, a.emails, 1)
	require.Equal(t, "buyer@example.com", a.emails[0].to)
	require.Contains(t, a.emails[0].subject, "K7QX2M")
	require.Contains(t, a.emails[0].body, "North Block")
}

func TestHandle_ReceiptWithoutEmailIsDropped(t *testing.T) {
	a := &fakeAlerts{}
	ev := paidEvent()
	ev.Type = events.TypeOrderReceipt
	ev.Email = ""

	require.NoError(t, NewEventHandler(a, nil).Handle(context.Background(), ev))
	require.Empty(t, a.alerts)
	require.Empty(t, a.emails)
}

func TestHandle_LatePaymentAlertsCanteenOnly(t *testing.T) {
	a := &fakeAlerts{}
	ev := paidEvent()
	ev.Type = events.TypeOrderPaymentLate
	ev.ProviderPaymentID = "pay_late"

	require.NoError(t, NewEventHandler(a, nil).Handle(context.Background(), ev))
	require.Len(t, a.alerts, 1)
	require.True(t, strings.Contains(a.alerts[0].body, "pay_late"))
	require.Contains(t, a.alerts[0].body, "refund")
	require.Empty(t, a.emails)
}

func TestHandle_ReturnsDeliveryErrors(t *testing.T) {
	a := &fakeAlerts{failFor: "canteen"}
	require.Error(t, NewEventHandler(a, nil).Handle(context.Background(), paidEvent()))

	// a failed receipt is retried on its own; the canteen alert went out with order.paid
	a = &fakeAlerts{failFor: "email"}
	require.NoError(t, NewEventHandler(a, nil).Handle(context.Background(), paidEvent()))
	require.Len(t, a.alerts, 1)

	receipt := paidEvent()
	receipt.Type = events.TypeOrderReceipt
	require.Error(t, NewEventHandler(a, nil).Handle(context.Background(), receipt))
	require.Len(t, a.alerts, 1)
}

func TestHandle_IgnoresUnknownTypes(t *testing.T) {
	a := &fakeAlerts{}
	ev := paidEvent()
	ev.Type = "order.created"

	require.NoError(t, NewEventHandler(a, nil).Handle(context.Background(), ev))
	require.Empty(t, a.alerts)
	require.Empty(t, a.emails)
}

func TestFromConfig_LogsWithoutHost(t *testing.T) {
	n, err := FromConfig(config.SMTPConfig{From: "orders@canteen.test"}, nil, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, LogSender{}, n.sender)
	require.NoError(t, n.SendEmail(context.Background(), "buyer@example.com", "hi", "there"))
}

func TestFromConfig_RequiresFromWithHost(t *testing.T) {
	_, err := FromConfig(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, nil, zap.NewNop())
	require.Error(t, err)

	n, err := FromConfig(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "orders@canteen.test"}, nil, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &mail.Client{}, n.sender)
}
