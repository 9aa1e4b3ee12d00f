// Package otp issues and verifies single-use email codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 5 * time.Minute
	CodeDigits = 6
)

// ErrInvalidCode is returned when the submitted code does not match the live challenge.
var ErrInvalidCode = fmt.Errorf("%w: code does not match", apperr.ErrValidation)

// Sender delivers the code. notify.Notifier implements it.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Service struct {
	store    Store
	sender   Sender
	ttl      time.Duration
	metrics  metrics.Recorder
	log      *zap.Logger
	validate *validatorv10.Validate
	nowFunc  func() time.Time
	codeFunc func() (string, error)
}

func NewService(store Store, sender Sender, ttl time.Duration, rec metrics.Recorder, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		sender:   sender,
		ttl:      ttl,
		metrics:  metrics.OrNop(rec),
		log:      log,
		validate: validatorv10.New(),
		nowFunc:  time.Now,
		codeFunc: newCode,
	}
}

// Request replaces any delivered challenge for email with a fresh code and sends it.
// A failed send is reported as unavailable and leaves the challenge live; the next
// request resends that same code until it expires.
func (s *Service) Request(ctx context.Context, email string) error {
	email, err := s.normalize(email)
	if err != nil {
		return err
	}
	now := s.nowFunc()
	ch, err := s.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	if ch == nil || ch.Delivered || !now.Before(ch.ExpiresAt) {
		code, err := s.codeFunc()
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		ch = &Challenge{Code: code, ExpiresAt: now.Add(s.ttl).UTC()}
		if err := s.store.Put(ctx, email, *ch); err != nil {
			return fmt.Errorf("store challenge: %w", err)
		}
	} else {
		s.log.Info("otp resending undelivered code", zap.String("email", email))
	}

	minutes := int(math.Ceil(ch.ExpiresAt.Sub(now).Minutes()))
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", ch.Code, minutes)
	if err := s.sender.SendEmail(ctx, email, "Your verification code", body); err != nil {
		s.log.Error("otp send failed", zap.String("email", email), zap.Error(err))
		s.metrics.Count(ctx, metrics.OTPSendFailed, nil)
		return apperr.Unavailable(err, "send code to %s", email)
	}
	ch.Delivered = true
	if err := s.store.Put(ctx, email, *ch); err != nil {
		// the code is out; a missed flag only means the next request resends it
		s.log.Warn("otp mark delivered failed", zap.String("email", email), zap.Error(err))
	}
	s.log.Info("otp sent", zap.String("email", email))
	s.metrics.Count(ctx, metrics.OTPSent, nil)
	return nil
}

// Verify consumes the challenge when code matches. Expired challenges are deleted.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email, err := s.normalize(email)
	if err != nil {
		return err
	}
	ch, err := s.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	if ch == nil {
		return apperr.NotFound("no code for %s", email)
	}
	if s.nowFunc().After(ch.ExpiresAt) {
		if _, err := s.store.Delete(ctx, email); err != nil {
			return fmt.Errorf("delete expired challenge: %w", err)
		}
		return apperr.Expired("code for %s", email)
	}
	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(strings.TrimSpace(code))) != 1 {
		return ErrInvalidCode
	}
	deleted, err := s.store.Delete(ctx, email)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if !deleted {
		// a concurrent verify consumed it first
		return apperr.NotFound("no code for %s", email)
	}
	s.log.Info("otp verified", zap.String("email", email))
	return nil
}

func (s *Service) normalize(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", apperr.Validation("email %q is not valid", email)
	}
	return email, nil
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
