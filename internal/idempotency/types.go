package idempotency

import "time"

// StatusDone is the only state a record is written in: the record and the order it
// points at are created in the same transaction.
const StatusDone = "DONE"

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id"`
	RequestHash    string    `dynamodbav:"request_hash"` // sha256 of the create body
	CreatedAt      time.Time `dynamodbav:"created_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Matches reports whether a replayed request carries the same body as the original.
// Records written without a hash match anything.
func (r *IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == "" || r.RequestHash == requestHash
}
