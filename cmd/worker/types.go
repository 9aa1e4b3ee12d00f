package main

import (
	"encoding/json"
	"fmt"

	orderevents "github.com/imrishuroy/go-canteen-orderflow/internal/events"
)

// decodeEvent parses one queue message body. Messages that can never be handled are
// reported as errPoison so they are dropped rather than retried.
func decodeEvent(body string) (orderevents.OrderEvent, error) {
	var ev orderevents.OrderEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", errPoison, err)
	}
	if ev.Type == "" || ev.OrderID == "" {
		return ev, fmt.Errorf("%w: missing type or order_id", errPoison)
	}
	return ev, nil
}
