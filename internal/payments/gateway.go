// Package payments creates provider-side payment intents for pending orders.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Intent is what a provider returned for one payment attempt.
type Intent struct {
	Provider string
	IntentID string
	// ClientFields is what the buyer's client needs to open the provider checkout.
	ClientFields map[string]string
}

// Gateway is a payment provider adapter.
type Gateway interface {
	Name() string
	// CreateIntent requests an intent for amountMinor. reference is echoed back by the
	// provider in its primary field and metadata carries the redundant copy.
	CreateIntent(ctx context.Context, amountMinor int64, currency, reference string, metadata map[string]string) (*Intent, error)
}

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "VND": true, "CLP": true, "PYG": true, "UGX": true, "XAF": true, "XOF": true,
}

// MinorUnits converts a major-unit amount to the provider's integer minor units.
// Fractions of a minor unit are rejected rather than rounded.
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := int32(2)
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		exp = 0
	}
	minor := amount.Shift(exp)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", amount, currency)
	}
	if minor.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	return minor.IntPart(), nil
}
