package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/events"
	"github.com/imrishuroy/go-canteen-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultWindow is how long an order waits for payment.
const DefaultWindow = 5 * time.Minute

// Repository is the persistence the lifecycle needs. *Store implements it.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, o *Order, now time.Time) error
	Get(ctx context.Context, orderID string) (*Order, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) ([]*Order, error)
	List(ctx context.Context) ([]*Order, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*Order, error)
	MarkPaid(ctx context.Context, orderID string, info PaymentInfo, now time.Time) (*Order, error)
	Expire(ctx context.Context, orderID string, now time.Time) (*Order, error)
	AttachIntent(ctx context.Context, orderID, provider, intentID string, now time.Time) (*Order, error)
}

var _ Repository = (*Store)(nil)

// IDGenerator issues order ids and pickup codes.
type IDGenerator interface {
	OrderID() string
	ShortCode() (string, error)
}

// Deps wires a Service. Idempotency, Publisher and Metrics are optional.
type Deps struct {
	Repo        Repository
	IDs         IDGenerator
	Idempotency *idempotency.Store
	Publisher   events.Publisher
	Metrics     metrics.Recorder
	Logger      *zap.Logger
	Window      time.Duration
	Currency    string
}

// Service owns the order state machine: PENDING_PAYMENT -> PAID | EXPIRED.
type Service struct {
	repo      Repository
	ids       IDGenerator
	idem      *idempotency.Store
	publisher events.Publisher
	metrics   metrics.Recorder
	log       *zap.Logger
	window    time.Duration
	currency  string
	nowFunc   func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		ids:       d.IDs,
		idem:      d.Idempotency,
		publisher: d.Publisher,
		metrics:   metrics.OrNop(d.Metrics),
		log:       d.Logger,
		window:    d.Window,
		currency:  d.Currency,
		nowFunc:   time.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.idem != nil {
		// key expiry and the create transaction's condition must read the same clock
		s.idem.WithClock(func() time.Time { return s.nowFunc() })
	}
	return s
}

// CreateInput is what a buyer submits. Items are already normalized.
type CreateInput struct {
	Canteen     string
	Email       string
	Items       []LineItem
	TotalAmount *decimal.Decimal
	Currency    string
}

// Create validates the input and persists a new PENDING_PAYMENT order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	o, err := s.newOrder(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	s.created(ctx, o)
	return o, nil
}

// CreateIdempotent creates the order and binds it to key in one transaction. A repeated
// key returns the order it first created with replayed=true; reusing the key for a
// different request body is a conflict. Without an idempotency store it is Create.
func (s *Service) CreateIdempotent(ctx context.Context, key, requestHash string, in CreateInput) (o *Order, replayed bool, err error) {
	if s.idem == nil || key == "" {
		o, err = s.Create(ctx, in)
		return o, false, err
	}

	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency record: %w", err)
	}
	if rec != nil {
		return s.replay(ctx, rec, requestHash)
	}

	o, err = s.newOrder(in)
	if err != nil {
		return nil, false, err
	}
	err = s.repo.CreateWithIdempotencyTransaction(ctx, s.idem.TableName(), s.idem.NewRecord(key, o.OrderID, requestHash), o, s.nowFunc())
	if errors.Is(err, ErrIdempotencyKeyExists) {
		// lost a race with a concurrent request carrying the same key
		rec, gerr := s.idem.Get(ctx, key)
		if gerr != nil {
			return nil, false, fmt.Errorf("get idempotency record: %w", gerr)
		}
		if rec == nil {
			return nil, false, fmt.Errorf("idempotency record %s vanished: %w", key, err)
		}
		return s.replay(ctx, rec, requestHash)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create order: %w", err)
	}
	s.created(ctx, o)
	return o, false, nil
}

func (s *Service) replay(ctx context.Context, rec *idempotency.IdempotencyRecord, requestHash string) (*Order, bool, error) {
	if !rec.Matches(requestHash) {
		return nil, false, apperr.Conflict("idempotency key %s was used with a different request", rec.IdempotencyKey)
	}
	o, err := s.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, false, err
	}
	s.log.Info("idempotent replay", zap.String("order_id", o.OrderID))
	return o, true, nil
}

func (s *Service) newOrder(in CreateInput) (*Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	code, err := s.ids.ShortCode()
	if err != nil {
		return nil, fmt.Errorf("short code: %w", err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	now := s.nowFunc().UTC().Truncate(time.Millisecond)
	return &Order{
		OrderID:     s.ids.OrderID(),
		ShortCode:   code,
		Canteen:     strings.TrimSpace(in.Canteen),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Items:       in.Items,
		TotalAmount: *in.TotalAmount,
		Currency:    currency,
		Status:      StatusPendingPayment,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.window),
		UpdatedAt:   now,
	}, nil
}

func (s *Service) created(ctx context.Context, o *Order) {
	s.log.Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("canteen", o.Canteen),
		zap.String("total", o.TotalAmount.String()),
		zap.Time("expires_at", o.ExpiresAt))
	s.metrics.Count(ctx, metrics.OrdersCreated, map[string]string{"canteen": o.Canteen})
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Canteen) == "" {
		return apperr.Validation("canteen is required")
	}
	if in.TotalAmount == nil {
		return apperr.Validation("totalAmount is required")
	}
	if in.TotalAmount.IsNegative() {
		return apperr.Validation("totalAmount must not be negative")
	}
	sum := decimal.Zero
	for i, it := range in.Items {
		if strings.TrimSpace(it.ID) == "" && strings.TrimSpace(it.Name) == "" {
			return apperr.Validation("items[%d]: id or name is required", i)
		}
		if it.Quantity <= 0 {
			return apperr.Validation("items[%d]: qty must be greater than 0", i)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Validation("items[%d]: price must not be negative", i)
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !sum.IsZero() && !sum.Equal(*in.TotalAmount) {
		return apperr.Validation("totalAmount %s does not match items total %s", in.TotalAmount, sum)
	}
	return nil
}

// Get returns the order with lazy expiry applied.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if o == nil {
		return nil, apperr.NotFound("order %s", orderID)
	}
	return s.CheckExpiry(ctx, o)
}

// CheckExpiry moves a PENDING_PAYMENT order past its deadline to EXPIRED and returns the
// current state. Orders in any other state are returned unchanged.
func (s *Service) CheckExpiry(ctx context.Context, o *Order) (*Order, error) {
	o, _, err := s.expireIfDue(ctx, o, s.nowFunc(), "lazy")
	return o, err
}

// expireIfDue returns the current order and whether this call performed the transition.
func (s *Service) expireIfDue(ctx context.Context, o *Order, now time.Time, source string) (*Order, bool, error) {
	if o.Status != StatusPendingPayment || !o.pastDeadline(now) {
		return o, false, nil
	}
	updated, err := s.repo.Expire(ctx, o.OrderID, now)
	var ce *ConditionError
	if errors.As(err, &ce) {
		// someone else moved it first; report what is stored
		if ce.Current == nil {
			return nil, false, apperr.NotFound("order %s", o.OrderID)
		}
		return ce.Current, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("expire order %s: %w", o.OrderID, err)
	}
	s.log.Info("order expired", zap.String("order_id", o.OrderID), zap.String("source", source))
	s.metrics.Count(ctx, metrics.OrdersExpired, map[string]string{"source": source})
	return updated, true, nil
}

// MarkPaid applies a captured payment. applied is false when the same payment was
// already recorded. A payment for an expired order is refused with an Expired error and
// announced as order.payment_late so staff can refund it.
func (s *Service) MarkPaid(ctx context.Context, orderID string, info PaymentInfo) (o *Order, applied bool, err error) {
	if info.ProviderPaymentID == "" {
		return nil, false, apperr.Validation("providerPaymentId is required")
	}
	now := s.nowFunc()
	updated, err := s.repo.MarkPaid(ctx, orderID, info, now)
	if err == nil {
		s.log.Info("order paid",
			zap.String("order_id", orderID),
			zap.String("provider", info.Provider),
			zap.String("provider_payment_id", info.ProviderPaymentID))
		s.publish(ctx, events.TypeOrderPaid, updated, info)
		if updated.Email != "" {
			s.publish(ctx, events.TypeOrderReceipt, updated, info)
		}
		return updated, true, nil
	}

	var ce *ConditionError
	if !errors.As(err, &ce) {
		return nil, false, fmt.Errorf("mark paid %s: %w", orderID, err)
	}
	cur := ce.Current
	switch {
	case cur == nil:
		return nil, false, apperr.NotFound("order %s", orderID)
	case cur.Status == StatusPaid && cur.PaymentInfo.ProviderPaymentID == info.ProviderPaymentID:
		return cur, false, nil
	case cur.Status == StatusPaid:
		return cur, false, apperr.Conflict("order %s already paid by payment %s", orderID, cur.PaymentInfo.ProviderPaymentID)
	case cur.Status == StatusPendingPayment:
		// refused while pending means the deadline passed at update time
		if cur, _, err = s.expireIfDue(ctx, cur, now, "payment"); err != nil {
			return nil, false, err
		}
		if cur.Status == StatusPaid {
			// a concurrent capture won between the two updates
			if cur.PaymentInfo.ProviderPaymentID == info.ProviderPaymentID {
				return cur, false, nil
			}
			return cur, false, apperr.Conflict("order %s already paid by payment %s", orderID, cur.PaymentInfo.ProviderPaymentID)
		}
		if cur.Status != StatusExpired {
			return cur, false, fmt.Errorf("mark paid %s: %w", orderID, ce)
		}
	}
	s.log.Warn("payment for expired order",
		zap.String("order_id", orderID),
		zap.String("provider", info.Provider),
		zap.String("provider_payment_id", info.ProviderPaymentID))
	if info.Provider != ProviderManual {
		// no money moved on a manual confirm, so there is nothing to refund
		s.publish(ctx, events.TypeOrderPaymentLate, cur, info)
	}
	return cur, false, apperr.Expired("order %s expired at %s", orderID, cur.ExpiresAt.Format(time.RFC3339))
}

// ConfirmManually marks an order paid on staff confirmation. Repeating it is a no-op.
func (s *Service) ConfirmManually(ctx context.Context, orderID string) (*Order, bool, error) {
	return s.MarkPaid(ctx, orderID, PaymentInfo{
		Provider:          ProviderManual,
		ProviderPaymentID: "manual:" + orderID,
		Method:            MethodManualConfirm,
	})
}

// AttachIntent records the provider intent created for a PENDING_PAYMENT order.
func (s *Service) AttachIntent(ctx context.Context, orderID, provider, intentID string) (*Order, error) {
	o, err := s.repo.AttachIntent(ctx, orderID, provider, intentID, s.nowFunc())
	var ce *ConditionError
	if errors.As(err, &ce) {
		switch {
		case ce.Current == nil:
			return nil, apperr.NotFound("order %s", orderID)
		case ce.Current.Status == StatusExpired:
			return nil, apperr.Expired("order %s", orderID)
		default:
			return nil, apperr.Conflict("order %s is %s", orderID, ce.Current.Status)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("attach intent %s: %w", orderID, err)
	}
	s.log.Info("payment intent attached",
		zap.String("order_id", orderID),
		zap.String("provider", provider),
		zap.String("provider_order_id", intentID))
	return o, nil
}

// List returns all orders newest first, with lazy expiry applied.
func (s *Service) List(ctx context.Context) ([]*Order, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	now := s.nowFunc()
	for i, o := range all {
		if all[i], _, err = s.expireIfDue(ctx, o, now, "lazy"); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// ResolveReference maps what a provider echoed back to exactly one order.
// Primary and fallback naming different orders, or one provider order id matching
// several orders, is a conflict.
func (s *Service) ResolveReference(ctx context.Context, ref Reference) (*Order, error) {
	var byPrimary, byFallback *Order
	var err error
	if ref.Primary != "" {
		if byPrimary, err = s.repo.Get(ctx, ref.Primary); err != nil {
			return nil, fmt.Errorf("resolve primary %s: %w", ref.Primary, err)
		}
	}
	if ref.Fallback != "" && ref.Fallback != ref.Primary {
		if byFallback, err = s.repo.Get(ctx, ref.Fallback); err != nil {
			return nil, fmt.Errorf("resolve fallback %s: %w", ref.Fallback, err)
		}
	}
	switch {
	case byPrimary != nil && byFallback != nil && byPrimary.OrderID != byFallback.OrderID:
		return nil, apperr.Conflict("reference %s and %s name different orders", ref.Primary, ref.Fallback)
	case byPrimary != nil:
		return byPrimary, nil
	case byFallback != nil:
		return byFallback, nil
	}

	if ref.ProviderOrderID != "" {
		matches, err := s.repo.FindByProviderOrderID(ctx, ref.ProviderOrderID)
		if err != nil {
			return nil, fmt.Errorf("resolve provider order %s: %w", ref.ProviderOrderID, err)
		}
		switch len(matches) {
		case 0:
		case 1:
			return matches[0], nil
		default:
			return nil, apperr.Conflict("provider order %s matches %d orders", ref.ProviderOrderID, len(matches))
		}
	}
	return nil, apperr.NotFound("no order for reference %q/%q/%q", ref.Primary, ref.Fallback, ref.ProviderOrderID)
}

// SweepExpired expires up to limit overdue orders and reports how many it moved.
func (s *Service) SweepExpired(ctx context.Context, limit int32) (int, error) {
	now := s.nowFunc()
	due, err := s.repo.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired pending: %w", err)
	}
	moved := 0
	for _, o := range due {
		_, expired, err := s.expireIfDue(ctx, o, now, "sweeper")
		if err != nil {
			s.log.Error("sweep expire failed", zap.String("order_id", o.OrderID), zap.Error(err))
			continue
		}
		if expired {
			moved++
		}
	}
	return moved, nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *Order, info PaymentInfo) {
	if s.publisher == nil {
		return
	}
	ev := events.OrderEvent{
		Type:              eventType,
		OrderID:           o.OrderID,
		ShortCode:         o.ShortCode,
		Canteen:           o.Canteen,
		Email:             o.Email,
		TotalAmount:       o.TotalAmount.String(),
		Currency:          o.Currency,
		Provider:          info.Provider,
		ProviderPaymentID: info.ProviderPaymentID,
		OccurredAt:        s.nowFunc().UTC(),
	}
	for _, it := range o.Items {
		name := it.Name
		if name == "" {
			name = it.ID
		}
		ev.Items = append(ev.Items, events.Item{Name: name, Quantity: it.Quantity})
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Error("publish event failed",
			zap.String("type", eventType),
			zap.String("order_id", o.OrderID),
			zap.Error(err))
	}
}
