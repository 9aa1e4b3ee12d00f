// Package metrics counts business outcomes. Lambda deployments publish to CloudWatch;
// local runs expose a Prometheus endpoint.
package metrics

import "context"

// Metric names.
const (
	OrdersCreated     = "orders_created"
	OrdersExpired     = "orders_expired"
	WebhookOutcome    = "webhook_outcome"
	PaymentsInitiated = "payments_initiated"
	OTPSent           = "otp_sent"
	OTPSendFailed     = "otp_send_failed"
)

// Recorder counts one occurrence of name. Implementations never fail the caller.
type Recorder interface {
	Count(ctx context.Context, name string, dims map[string]string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string, map[string]string) {}

// OrNop returns r, or a Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
