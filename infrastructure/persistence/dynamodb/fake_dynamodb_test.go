package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// fakeDynamo is an in-memory table with two sparse GSIs. It evaluates the condition, key
// condition and filter expressions the expression builder emits.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[itemKey]map[string]types.AttributeValue

	// transactErr, when set, is returned by the next TransactWriteItems call
	transactErr error
	// queryErr, when set, is returned by every Query call
	queryErr error

	transactCalls int
	queryCalls    int
}

var _ API = (*fakeDynamo)(nil)

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[itemKey]map[string]types.AttributeValue)}
}

var testTable = Table{Name: "collective-rides-test"}

func newTestStore(t *testing.T) (*fakeDynamo, *ClubRepository, *MembershipRepository, *InvitationRepository) {
	t.Helper()
	db := newFakeDynamo()
	return db,
		NewClubRepository(db, testTable, nil, nopLogger),
		NewMembershipRepository(db, testTable, nil, nopLogger),
		NewInvitationRepository(db, testTable, nil, nopLogger)
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[keyFromAttributes(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyFromAttributes(in.Item)
	ok, err := f.check(key, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactCalls++

	if f.transactErr != nil {
		err := f.transactErr
		f.transactErr = nil
		return nil, err
	}

	seen := make(map[itemKey]bool)
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		var (
			key    itemKey
			cond   *string
			names  map[string]string
			values map[string]types.AttributeValue
		)
		switch {
		case ti.Put != nil:
			key, cond, names, values = keyFromAttributes(ti.Put.Item), ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues
		case ti.Delete != nil:
			key, cond, names, values = keyFromAttributes(ti.Delete.Key), ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues
		case ti.ConditionCheck != nil:
			key, cond, names, values = keyFromAttributes(ti.ConditionCheck.Key), ti.ConditionCheck.ConditionExpression, ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ExpressionAttributeValues
		default:
			return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "unsupported transaction item"}
		}
		if seen[key] {
			return nil, &smithy.GenericAPIError{
				Code:    "ValidationException",
				Message: "Transaction request cannot include multiple operations on one item",
			}
		}
		seen[key] = true

		ok, err := f.check(key, cond, names, values)
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = conditionalCheckFailed
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[keyFromAttributes(ti.Put.Item)] = copyItem(ti.Put.Item)
		case ti.Delete != nil:
			delete(f.items, keyFromAttributes(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	pkAttr, skAttr := attrPK, attrSK
	if in.IndexName != nil {
		switch aws.ToString(in.IndexName) {
		case "GSI1":
			pkAttr, skAttr = attrGSI1PK, attrGSI1SK
		case "GSI2":
			pkAttr, skAttr = attrGSI2PK, attrGSI2SK
		default:
			return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "unknown index " + aws.ToString(in.IndexName)}
		}
	}

	keyCond, err := parseExpression(aws.ToString(in.KeyConditionExpression))
	if err != nil {
		return nil, err
	}
	var filter condition
	if in.FilterExpression != nil {
		if filter, err = parseExpression(*in.FilterExpression); err != nil {
			return nil, err
		}
	}
	env := func(item map[string]types.AttributeValue) evalEnv {
		return evalEnv{item: item, names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	}

	type row struct {
		sortKey string
		key     itemKey
		item    map[string]types.AttributeValue
	}
	var rows []row
	for key, item := range f.items {
		if stringAttr(item, pkAttr) == "" || stringAttr(item, skAttr) == "" {
			continue
		}
		if keyCond(env(item)) {
			rows = append(rows, row{sortKey: stringAttr(item, skAttr), key: key, item: item})
		}
	}
	less := func(a, b row) bool {
		if a.sortKey != b.sortKey {
			return a.sortKey < b.sortKey
		}
		if a.key.PK != b.key.PK {
			return a.key.PK < b.key.PK
		}
		return a.key.SK < b.key.SK
	}
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	if len(in.ExclusiveStartKey) > 0 {
		start := row{sortKey: stringAttr(in.ExclusiveStartKey, skAttr), key: keyFromAttributes(in.ExclusiveStartKey)}
		for len(rows) > 0 && !less(start, rows[0]) {
			rows = rows[1:]
		}
	}

	limit := len(rows)
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}

	out := &dynamodb.QueryOutput{}
	for _, r := range rows[:limit] {
		if filter == nil || filter(env(r.item)) {
			out.Items = append(out.Items, copyItem(r.item))
		}
	}
	if limit < len(rows) {
		last := rows[limit-1].item
		lek := map[string]types.AttributeValue{
			attrPK: last[attrPK],
			attrSK: last[attrSK],
		}
		if pkAttr != attrPK {
			lek[pkAttr], lek[skAttr] = last[pkAttr], last[skAttr]
		}
		out.LastEvaluatedKey = lek
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = int32(limit)
	return out, nil
}

func (f *fakeDynamo) check(key itemKey, expr *string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil {
		return true, nil
	}
	cond, err := parseExpression(*expr)
	if err != nil {
		return false, err
	}
	return cond(evalEnv{item: f.items[key], names: names, values: values}), nil
}

// get returns the stored item for a key, for assertions
func (f *fakeDynamo) get(key itemKey) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[key]
}

// count returns how many stored items carry the given ItemType
func (f *fakeDynamo) count(itemType ItemType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.items {
		if stringAttr(item, attrItemType) == string(itemType) {
			n++
		}
	}
	return n
}

func keyFromAttributes(av map[string]types.AttributeValue) itemKey {
	return itemKey{PK: stringAttr(av, attrPK), SK: stringAttr(av, attrSK)}
}

func stringAttr(av map[string]types.AttributeValue, name string) string {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// Expression evaluation

type evalEnv struct {
	item   map[string]types.AttributeValue
	names  map[string]string
	values map[string]types.AttributeValue
}

type condition func(evalEnv) bool

type operand func(evalEnv) types.AttributeValue

func tokenize(expr string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(expr); {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')' || c == ',' || c == '=':
			tokens = append(tokens, string(c))
			i++
		case c == '<' || c == '>':
			if i+1 < len(expr) && (expr[i+1] == '=' || (c == '<' && expr[i+1] == '>')) {
				tokens = append(tokens, expr[i:i+2])
				i += 2
			} else {
				tokens = append(tokens, string(c))
				i++
			}
		case c == '#' || c == ':' || c == '_' || c == '.' || unicode.IsLetter(c) || unicode.IsDigit(c):
			j := i + 1
			for j < len(expr) {
				r := rune(expr[j])
				if r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
					j++
					continue
				}
				break
			}
			tokens = append(tokens, expr[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in %q", c, expr)
		}
	}
	return tokens, nil
}

type exprParser struct {
	tokens []string
	pos    int
}

func parseExpression(expr string) (condition, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("trailing tokens in %q", expr)
	}
	return cond, nil
}

func (p *exprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *exprParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *exprParser) or() (condition, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(e evalEnv) bool { return l(e) || right(e) }
	}
	return left, nil
}

func (p *exprParser) and() (condition, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(e evalEnv) bool { return l(e) && right(e) }
	}
	return left, nil
}

func (p *exprParser) not() (condition, error) {
	if strings.EqualFold(p.peek(), "NOT") {
		p.next()
		inner, err := p.not()
		if err != nil {
			return nil, err
		}
		return func(e evalEnv) bool { return !inner(e) }, nil
	}
	return p.primary()
}

func (p *exprParser) primary() (condition, error) {
	tok := p.peek()
	switch {
	case tok == "(":
		p.next()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(")")
	case tok == "attribute_exists" || tok == "attribute_not_exists":
		p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		path := p.operand()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		want := tok == "attribute_exists"
		return func(e evalEnv) bool { return (path(e) != nil) == want }, nil
	case tok == "begins_with":
		p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		path := p.operand()
		if err := p.expect(","); err != nil {
			return nil, err
		}
		prefix := p.operand()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(e evalEnv) bool {
			s, ok1 := path(e).(*types.AttributeValueMemberS)
			pre, ok2 := prefix(e).(*types.AttributeValueMemberS)
			return ok1 && ok2 && strings.HasPrefix(s.Value, pre.Value)
		}, nil
	}

	left := p.operand()
	op := p.next()
	right := p.operand()
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
	return func(e evalEnv) bool {
		cmp, ok := compareValues(left(e), right(e))
		if !ok {
			return op == "<>"
		}
		switch op {
		case "=":
			return cmp == 0
		case "<>":
			return cmp != 0
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		default:
			return cmp >= 0
		}
	}, nil
}

func (p *exprParser) operand() operand {
	tok := p.next()
	switch {
	case strings.HasPrefix(tok, ":"):
		return func(e evalEnv) types.AttributeValue { return e.values[tok] }
	case strings.HasPrefix(tok, "#"):
		return func(e evalEnv) types.AttributeValue { return lookup(e.item, e.names[tok]) }
	default:
		return func(e evalEnv) types.AttributeValue { return lookup(e.item, tok) }
	}
}

func lookup(item map[string]types.AttributeValue, name string) types.AttributeValue {
	if item == nil {
		return nil
	}
	v, ok := item[name]
	if !ok {
		return nil
	}
	return v
}

// compareValues orders two scalar values of the same type; ok is false when they cannot be compared
func compareValues(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok {
			return 0, false
		}
		if av.Value == bv.Value {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}
