package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// mockDynamo is an in-memory mock that evaluates the small expression dialect the
// stores emit: "a = b", "a >= b", "a < b", attribute_exists/attribute_not_exists joined
// by AND or OR (OR binds looser), and SET updates. Tables are keyed by order_id or idempotency_key.
type mockDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]item
	pageSize int   // Scan page size; 0 means one page
	failNext error // returned once by the next call
	updates  int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]item{}}
}

func (m *mockDynamo) table(name string) map[string]item {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]item{}
	}
	return m.tables[name]
}

func (m *mockDynamo) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// primaryKey checks idempotency_key first: idempotency records also carry order_id.
func primaryKey(it item) (string, error) {
	for _, k := range []string{"idempotency_key", "order_id"} {
		if v, ok := it[k].(*types.AttributeValueMemberS); ok {
			return v.Value, nil
		}
	}
	return "", errors.New("no primary key")
}

func copyItem(it item) item {
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := primaryKey(params.Item)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	ok, err := evalCondition(params.ConditionExpression, tbl[pk], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: awsString("conditional request failed")}
	}
	tbl[pk] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := primaryKey(params.Key)
	if err != nil {
		return nil, err
	}
	it, ok := m.table(*params.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(it)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := primaryKey(params.Key)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	current, exists := tbl[pk]
	ok, err := evalCondition(params.ConditionExpression, current, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		cf := &types.ConditionalCheckFailedException{Message: awsString("conditional request failed")}
		if exists && params.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
			cf.Item = copyItem(current)
		}
		return nil, cf
	}

	next := copyItem(current)
	for k, v := range params.Key {
		next[k] = v
	}
	if err := applySet(*params.UpdateExpression, next, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	tbl[pk] = next
	return &dyn.UpdateItemOutput{Attributes: copyItem(next)}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	var out []item
	for _, pk := range sortedKeys(m.table(*params.TableName)) {
		it := m.tables[*params.TableName][pk]
		ok, err := evalCondition(params.KeyConditionExpression, it, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyItem(it))
		}
	}
	if params.Limit != nil && int(*params.Limit) < len(out) {
		out = out[:*params.Limit]
	}
	return &dyn.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	keys := sortedKeys(tbl)
	start := 0
	if params.ExclusiveStartKey != nil {
		last, err := primaryKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, last) + 1
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}
	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, copyItem(tbl[k]))
	}
	if end < len(keys) {
		out.LastEvaluatedKey = item{"order_id": &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false
	for i, ti := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: awsString("None")}
		p := ti.Put
		if p == nil {
			return nil, errors.New("mock supports Put only")
		}
		pk, err := primaryKey(p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(p.ConditionExpression, m.table(*p.TableName)[pk], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: awsString("ConditionalCheckFailed")}
			canceled = true
		}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for _, ti := range params.TransactItems {
		pk, _ := primaryKey(ti.Put.Item)
		m.table(*ti.Put.TableName)[pk] = copyItem(ti.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) raw(table, pk string) item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(table)[pk]
}

func sortedKeys(tbl map[string]item) []string {
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// evalCondition supports unparenthesised A AND B OR C, with AND binding tighter.
func evalCondition(expr *string, it item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || *expr == "" {
		return true, nil
	}
	for _, conj := range strings.Split(*expr, " OR ") {
		ok, err := evalConjunction(conj, it, names, values)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalConjunction(expr string, it item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")")
			if it == nil || it[attr] == nil {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")")
			if it != nil && it[attr] != nil {
				return false, nil
			}
		default:
			parts := strings.Fields(clause)
			if len(parts) != 3 {
				return false, fmt.Errorf("unsupported clause %q", clause)
			}
			lhs := operand(parts[0], it, names, values)
			rhs := operand(parts[2], it, names, values)
			if lhs == nil || rhs == nil {
				return false, nil
			}
			ok, err := compare(lhs, parts[1], rhs)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func operand(tok string, it item, names map[string]string, values map[string]types.AttributeValue) types.AttributeValue {
	if strings.HasPrefix(tok, ":") {
		return values[tok]
	}
	if n, ok := names[tok]; ok {
		tok = n
	}
	if it == nil {
		return nil
	}
	return it[tok]
}

func compare(a types.AttributeValue, op string, b types.AttributeValue) (bool, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return false, nil
		}
		switch op {
		case "=":
			return av.Value == bv.Value, nil
		case "<>":
			return av.Value != bv.Value, nil
		}
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		x, err := strconv.ParseFloat(av.Value, 64)
		if err != nil {
			return false, err
		}
		y, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil {
			return false, err
		}
		switch op {
		case "=":
			return x == y, nil
		case "<":
			return x < y, nil
		case "<=":
			return x <= y, nil
		case ">":
			return x > y, nil
		case ">=":
			return x >= y, nil
		}
	}
	return false, fmt.Errorf("unsupported comparison %T %s", a, op)
}

func applySet(expr string, it item, names map[string]string, values map[string]types.AttributeValue) error {
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("unsupported update %q", expr)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("unsupported assignment %q", assign)
		}
		attr := strings.TrimSpace(parts[0])
		if n, ok := names[attr]; ok {
			attr = n
		}
		val, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("missing value for %q", assign)
		}
		it[attr] = val
	}
	return nil
}
