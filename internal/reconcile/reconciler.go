// Package reconcile applies verified payment provider webhooks to orders exactly once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"go.uber.org/zap"
)

// Outcome is how a webhook delivery was disposed of.
type Outcome string

const (
	OutcomeRejected   Outcome = "rejected"   // signature failed; the only non-2xx outcome
	OutcomeIgnored    Outcome = "ignored"    // not a captured payment
	OutcomeUnresolved Outcome = "unresolved" // no order matches the reference
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate" // same payment already applied
	OutcomeConflict   Outcome = "conflict"  // ambiguous reference or a different payment already applied
	OutcomeExpired    Outcome = "expired"   // late payment for an expired order
	OutcomeFailed     Outcome = "failed"
)

// Lifecycle is the slice of the order service the reconciler drives.
type Lifecycle interface {
	ResolveReference(ctx context.Context, ref orders.Reference) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID string, info orders.PaymentInfo) (*orders.Order, bool, error)
}

// Reconciler verifies, parses and applies provider callbacks.
type Reconciler struct {
	providers []Provider
	orders    Lifecycle
	metrics   metrics.Recorder
	log       *zap.Logger
}

func New(orders Lifecycle, rec metrics.Recorder, log *zap.Logger, providers ...Provider) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{providers: providers, orders: orders, metrics: metrics.OrNop(rec), log: log}
}

// Handle processes one delivery of the raw body. The returned error is non-nil only for
// OutcomeRejected, in which case nothing was parsed or changed. Every other outcome must
// be acknowledged with 2xx so the provider stops retrying.
func (r *Reconciler) Handle(ctx context.Context, body []byte, header http.Header) (Outcome, error) {
	p, signature := r.provider(header)
	if p == nil {
		r.record(ctx, "unknown", OutcomeRejected)
		return OutcomeRejected, fmt.Errorf("%w: no recognised signature header", apperr.ErrSignature)
	}
	if err := p.Verify(body, signature); err != nil {
		r.log.Warn("webhook rejected", zap.String("provider", p.Name()), zap.Error(err))
		r.record(ctx, p.Name(), OutcomeRejected)
		return OutcomeRejected, err
	}

	outcome := r.apply(ctx, p, body)
	r.record(ctx, p.Name(), outcome)
	return outcome, nil
}

func (r *Reconciler) provider(header http.Header) (Provider, string) {
	for _, p := range r.providers {
		if sig := header.Get(p.SignatureHeader()); sig != "" {
			return p, sig
		}
	}
	if len(r.providers) == 1 {
		// lets the provider report the missing header itself
		return r.providers[0], ""
	}
	return nil, ""
}

func (r *Reconciler) apply(ctx context.Context, p Provider, body []byte) Outcome {
	n, err := p.Parse(body)
	if err != nil {
		r.log.Error("webhook parse failed", zap.String("provider", p.Name()), zap.Error(err))
		return OutcomeFailed
	}
	log := r.log.With(
		zap.String("provider", n.Provider),
		zap.String("event", n.Type),
		zap.String("provider_payment_id", n.PaymentID))
	if !n.Captured {
		log.Info("webhook ignored")
		return OutcomeIgnored
	}
	if n.PaymentID == "" {
		log.Warn("captured event without payment id")
		return OutcomeFailed
	}

	o, err := r.orders.ResolveReference(ctx, n.Reference)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		log.Warn("webhook unresolved",
			zap.String("reference", n.Reference.Primary),
			zap.String("fallback", n.Reference.Fallback),
			zap.String("provider_order_id", n.Reference.ProviderOrderID))
		return OutcomeUnresolved
	case errors.Is(err, apperr.ErrConflict):
		log.Error("webhook reference conflict", zap.Error(err))
		return OutcomeConflict
	case err != nil:
		log.Error("webhook resolve failed", zap.Error(err))
		return OutcomeFailed
	}

	log = log.With(zap.String("order_id", o.OrderID))
	_, applied, err := r.orders.MarkPaid(ctx, o.OrderID, orders.PaymentInfo{
		Provider:          n.Provider,
		ProviderOrderID:   n.Reference.ProviderOrderID,
		ProviderPaymentID: n.PaymentID,
		Method:            n.Method,
	})
	switch {
	case err == nil && applied:
		log.Info("webhook applied")
		return OutcomeApplied
	case err == nil:
		log.Info("webhook duplicate")
		return OutcomeDuplicate
	case errors.Is(err, apperr.ErrConflict):
		log.Error("payment conflicts with recorded payment", zap.Error(err))
		return OutcomeConflict
	case errors.Is(err, apperr.ErrExpired):
		log.Warn("late payment for expired order", zap.Error(err))
		return OutcomeExpired
	case errors.Is(err, apperr.ErrNotFound):
		return OutcomeUnresolved
	default:
		log.Error("mark paid failed", zap.Error(err))
		return OutcomeFailed
	}
}

func (r *Reconciler) record(ctx context.Context, provider string, o Outcome) {
	r.metrics.Count(ctx, metrics.WebhookOutcome, map[string]string{"provider": provider, "outcome": string(o)})
}
