// Package notify delivers buyer emails and canteen alerts. Nothing here touches order state.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers composed messages.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// NewSMTPClient builds a go-mail client from config. Auth is only enabled when a
// username is configured.
func NewSMTPClient(cfg config.SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// LogSender writes messages to the log instead of sending them. Used when no SMTP host
// is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	for _, m := range messages {
		s.Log.Info("email not sent (no smtp host)",
			zap.Strings("to", m.GetToString()),
			zap.Strings("subject", m.GetGenHeader(mail.HeaderSubject)))
	}
	return nil
}

// Notifier sends plain-text email to buyers and to canteens listed in its directory.
type Notifier struct {
	sender   Sender
	from     string
	canteens map[string]string
	log      *zap.Logger
}

func New(sender Sender, from string, canteens map[string]string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{sender: sender, from: from, canteens: canteens, log: log}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("from %q: %w", n.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SendCanteenAlert emails the canteen's configured address. Canteens without one are
// logged and skipped.
func (n *Notifier) SendCanteenAlert(ctx context.Context, canteen, message string) error {
	to, ok := n.canteenAddress(canteen)
	if !ok {
		n.log.Warn("no alert address for canteen", zap.String("canteen", canteen))
		return nil
	}
	return n.SendEmail(ctx, to, "New order for "+canteen, message)
}

func (n *Notifier) canteenAddress(canteen string) (string, bool) {
	if to, ok := n.canteens[canteen]; ok {
		return to, true
	}
	for name, to := range n.canteens {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(canteen)) {
			return to, true
		}
	}
	return "", false
}

// FromConfig builds a Notifier over SMTP, or over LogSender when no host is configured.
func FromConfig(cfg config.SMTPConfig, canteens map[string]string, log *zap.Logger) (*Notifier, error) {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set, emails will only be logged")
		return New(LogSender{Log: log}, cfg.From, canteens, log), nil
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	client, err := NewSMTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.From, canteens, log), nil
}
