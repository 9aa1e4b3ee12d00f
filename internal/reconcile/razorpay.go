package reconcile

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
)

const (
	RazorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayCaptured        = "payment.captured"
)

// Razorpay signs the raw body with hex HMAC-SHA256 under the webhook secret.
type Razorpay struct {
	secret []byte
}

func NewRazorpay(webhookSecret string) *Razorpay {
	return &Razorpay{secret: []byte(webhookSecret)}
}

func (p *Razorpay) Name() string            { return "razorpay" }
func (p *Razorpay) SignatureHeader() string { return RazorpaySignatureHeader }

func (p *Razorpay) Verify(body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: missing %s", apperr.ErrSignature, RazorpaySignatureHeader)
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return fmt.Errorf("%w: razorpay signature mismatch", apperr.ErrSignature)
	}
	return nil
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string          `json:"id"`
				OrderID string          `json:"order_id"`
				Method  string          `json:"method"`
				Notes   json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (p *Razorpay) Parse(body []byte) (*Notification, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode razorpay event: %w", err)
	}
	n := &Notification{Provider: p.Name(), Type: ev.Event, Captured: ev.Event == razorpayCaptured}
	if ev.Payload.Order != nil {
		n.Reference.Primary = ev.Payload.Order.Entity.Receipt
		n.Reference.ProviderOrderID = ev.Payload.Order.Entity.ID
	}
	if pay := ev.Payload.Payment; pay != nil {
		n.PaymentID = pay.Entity.ID
		n.Method = pay.Entity.Method
		if pay.Entity.OrderID != "" {
			n.Reference.ProviderOrderID = pay.Entity.OrderID
		}
		n.Reference.Fallback = noteOrderID(pay.Entity.Notes)
	}
	return n, nil
}

// noteOrderID reads notes.order_id. Razorpay sends empty notes as [] rather than {}.
func noteOrderID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var notes map[string]interface{}
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	id, _ := notes["order_id"].(string)
	return id
}
