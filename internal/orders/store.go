package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-canteen-orderflow/internal/aws"
)

const (
	ProviderOrderIndex = "provider_order_id-index"
	StatusExpiresIndex = "status-expires_at-index"
)

var (
	// ErrStatusMismatch is wrapped by ConditionError when a guarded update is refused.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateOrder means an item with the same order_id already exists.
	ErrDuplicateOrder = errors.New("order already exists")
	// ErrIdempotencyKeyExists means the idempotency record of a creation transaction was already written.
	ErrIdempotencyKeyExists = errors.New("idempotency key already used")
)

// ConditionError reports a refused conditional update together with the item as it
// was stored when the condition was evaluated. Current is nil when no item existed.
type ConditionError struct {
	Current *Order
}

func (e *ConditionError) Error() string {
	if e.Current == nil {
		return ErrStatusMismatch.Error() + ": order does not exist"
	}
	return fmt.Sprintf("%s: order %s is %s", ErrStatusMismatch, e.Current.OrderID, e.Current.Status)
}

func (e *ConditionError) Unwrap() error { return ErrStatusMismatch }

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// Save inserts a new order. It never overwrites.
func (s *Store) Save(ctx context.Context, o *Order) error {
	item, err := attributevalue.MarshalMap(toRecord(o))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.OrderID)
		}
		return aws.WrapAPIError("put item", err)
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable, unless a live one holds the key. A record
//     whose expires_at (epoch seconds) is before now counts as free: DynamoDB reaps TTL
//     rows lazily, up to 48h late.
//   - order record in orders table (with ConditionExpression attribute_not_exists(order_id))
//
// idempotencyItem must marshal to a map carrying idempotency_key.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, o *Order, now time.Time) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(toRecord(o))
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &idempotencyTable,
				Item:                idempMap,
				ConditionExpression: awsString("attribute_not_exists(idempotency_key) OR expires_at < :now"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
				},
			},
		},
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                orderMap,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// reasons are positional; an empty list is treated as the key check failing
			if len(tce.CancellationReasons) > 1 && reasonCode(tce.CancellationReasons[0]) != "ConditionalCheckFailed" &&
				reasonCode(tce.CancellationReasons[1]) == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.OrderID)
			}
			return fmt.Errorf("transaction canceled: %w", ErrIdempotencyKeyExists)
		}
		return aws.WrapAPIError("transact write", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, aws.WrapAPIError("get item", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decodeOrder(out.Item)
}

// FindByProviderOrderID returns every order carrying the given provider intent id.
// More than one result means two orders claim the same intent.
func (s *Store) FindByProviderOrderID(ctx context.Context, providerOrderID string) ([]*Order, error) {
	if providerOrderID == "" {
		return nil, nil
	}
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(ProviderOrderIndex),
		KeyConditionExpression: awsString("provider_order_id = :poid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":poid": &types.AttributeValueMemberS{Value: providerOrderID},
		},
	}
	var found []*Order
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, aws.WrapAPIError("query "+ProviderOrderIndex, err)
		}
		orders, err := decodeOrders(out.Items)
		if err != nil {
			return nil, err
		}
		found = append(found, orders...)
		if len(out.LastEvaluatedKey) == 0 {
			return found, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]*Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	var all []*Order
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, aws.WrapAPIError("scan", err)
		}
		orders, err := decodeOrders(out.Items)
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// ListExpiredPending returns up to limit PENDING_PAYMENT orders whose deadline is before now.
func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*Order, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(StatusExpiresIndex),
		KeyConditionExpression: awsString("#s = :pending AND expires_at < :now"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(StatusPendingPayment)},
			":now":     millis(now),
		},
	}
	var found []*Order
	for {
		if limit > 0 {
			input.Limit = awsInt32(limit - int32(len(found)))
		}
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, aws.WrapAPIError("query "+StatusExpiresIndex, err)
		}
		orders, err := decodeOrders(out.Items)
		if err != nil {
			return nil, err
		}
		found = append(found, orders...)
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && int32(len(found)) >= limit) {
			return found, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// MarkPaid moves a PENDING_PAYMENT order whose deadline has not passed to PAID.
// A refused update returns a *ConditionError carrying the stored item.
func (s *Store) MarkPaid(ctx context.Context, orderID string, info PaymentInfo, now time.Time) (*Order, error) {
	update := "SET #s = :paid, paid_at = :now, updated_at = :now, provider = :provider, provider_payment_id = :ppid"
	values := map[string]types.AttributeValue{
		":paid":     &types.AttributeValueMemberS{Value: string(StatusPaid)},
		":pending":  &types.AttributeValueMemberS{Value: string(StatusPendingPayment)},
		":now":      millis(now),
		":provider": &types.AttributeValueMemberS{Value: info.Provider},
		":ppid":     &types.AttributeValueMemberS{Value: info.ProviderPaymentID},
	}
	if info.Method != "" {
		update += ", payment_method = :method"
		values[":method"] = &types.AttributeValueMemberS{Value: info.Method}
	}
	if info.ProviderOrderID != "" {
		update += ", provider_order_id = :poid"
		values[":poid"] = &types.AttributeValueMemberS{Value: info.ProviderOrderID}
	}
	return s.conditionalUpdate(ctx, orderID, update,
		"attribute_exists(order_id) AND #s = :pending AND expires_at >= :now", values)
}

// Expire moves a PENDING_PAYMENT order whose deadline is before now to EXPIRED.
func (s *Store) Expire(ctx context.Context, orderID string, now time.Time) (*Order, error) {
	return s.conditionalUpdate(ctx, orderID,
		"SET #s = :expired, updated_at = :now",
		"attribute_exists(order_id) AND #s = :pending AND expires_at < :now",
		map[string]types.AttributeValue{
			":expired": &types.AttributeValueMemberS{Value: string(StatusExpired)},
			":pending": &types.AttributeValueMemberS{Value: string(StatusPendingPayment)},
			":now":     millis(now),
		})
}

// AttachIntent records the provider intent id on a PENDING_PAYMENT order, replacing any earlier one.
func (s *Store) AttachIntent(ctx context.Context, orderID, provider, intentID string, now time.Time) (*Order, error) {
	return s.conditionalUpdate(ctx, orderID,
		"SET provider = :provider, provider_order_id = :poid, updated_at = :now",
		"attribute_exists(order_id) AND #s = :pending",
		map[string]types.AttributeValue{
			":provider": &types.AttributeValueMemberS{Value: provider},
			":poid":     &types.AttributeValueMemberS{Value: intentID},
			":pending":  &types.AttributeValueMemberS{Value: string(StatusPendingPayment)},
			":now":      millis(now),
		})
}

func (s *Store) conditionalUpdate(ctx context.Context, orderID, update, condition string, values map[string]types.AttributeValue) (*Order, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                           &s.tableName,
		Key:                                 orderKey(orderID),
		UpdateExpression:                    &update,
		ConditionExpression:                 &condition,
		ExpressionAttributeNames:            map[string]string{"#s": "status"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			ce := &ConditionError{}
			if len(cf.Item) > 0 {
				if ce.Current, err = decodeOrder(cf.Item); err != nil {
					return nil, err
				}
			}
			return nil, ce
		}
		return nil, aws.WrapAPIError("update item", err)
	}
	return decodeOrder(out.Attributes)
}

func decodeOrder(item map[string]types.AttributeValue) (*Order, error) {
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return rec.toOrder()
}

func decodeOrders(items []map[string]types.AttributeValue) ([]*Order, error) {
	orders := make([]*Order, 0, len(items))
	for _, item := range items {
		o, err := decodeOrder(item)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func reasonCode(r types.CancellationReason) string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

func millis(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
func awsInt32(i int32) *int32    { return &i }
