package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"github.com/shopspring/decimal"
)

// Items accepts either a list of structured items or the legacy flat map of
// name -> quantity, e.g. {"roti": 2}. Exactly one of the two is populated.
type Items struct {
	Structured []Item `validate:"dive"`
	Legacy     map[string]int
}

func (it *Items) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '[':
		return json.Unmarshal(b, &it.Structured)
	case '{':
		var legacy map[string]int
		if err := json.Unmarshal(b, &legacy); err != nil {
			return fmt.Errorf("items: %w", err)
		}
		for name, qty := range legacy {
			if qty < 0 {
				return fmt.Errorf("items: %s has negative quantity %d", name, qty)
			}
		}
		it.Legacy = legacy
		return nil
	default:
		return fmt.Errorf("items: expected array or object")
	}
}

func (it Items) MarshalJSON() ([]byte, error) {
	if it.Legacy != nil {
		return json.Marshal(it.Legacy)
	}
	if it.Structured == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(it.Structured)
}

// LineItems normalizes either shape. Legacy entries are sorted by name, carry no price,
// and zero quantities are dropped.
func (it Items) LineItems() []orders.LineItem {
	if it.Legacy != nil {
		names := make([]string, 0, len(it.Legacy))
		for name, qty := range it.Legacy {
			if qty > 0 {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		out := make([]orders.LineItem, 0, len(names))
		for _, name := range names {
			out = append(out, orders.LineItem{ID: name, Name: name, Quantity: it.Legacy[name], UnitPrice: decimal.Zero})
		}
		return out
	}
	out := make([]orders.LineItem, 0, len(it.Structured))
	for _, s := range it.Structured {
		price := decimal.Zero
		if s.Price != nil {
			price = *s.Price
		}
		out = append(out, orders.LineItem{ID: s.ID, Name: s.Name, Quantity: s.Count(), UnitPrice: price})
	}
	return out
}

// ToInput converts a validated request into lifecycle input.
func (r CreateOrderRequest) ToInput() orders.CreateInput {
	return orders.CreateInput{
		Canteen:     r.Canteen,
		Email:       r.Email,
		Items:       r.Items.LineItems(),
		TotalAmount: r.TotalAmount,
		Currency:    r.Currency,
	}
}
