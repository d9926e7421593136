package dynamoclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FakeDynamoClient is an in-memory single table keyed on the "pk" and "sk"
// string attributes. UpdateItem only understands "SET #a = :a, #b = :b"
// expressions.
type FakeDynamoClient struct {
	Region string
	Err    error

	mu    sync.Mutex
	Items map[string]map[string]ddbtypes.AttributeValue
	Calls int
}

func itemKey(key map[string]ddbtypes.AttributeValue) (string, error) {
	pk, ok1 := key["pk"].(*ddbtypes.AttributeValueMemberS)
	sk, ok2 := key["sk"].(*ddbtypes.AttributeValueMemberS)
	if !ok1 || !ok2 {
		return "", fmt.Errorf("key must carry string pk and sk")
	}
	return pk.Value + "|" + sk.Value, nil
}

func (f *FakeDynamoClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.Items[k]}, nil
}

func (f *FakeDynamoClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	k, err := itemKey(params.Item)
	if err != nil {
		return nil, err
	}
	if f.Items == nil {
		f.Items = map[string]map[string]ddbtypes.AttributeValue{}
	}
	f.Items[k] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeDynamoClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	if f.Items == nil {
		f.Items = map[string]map[string]ddbtypes.AttributeValue{}
	}
	item, ok := f.Items[k]
	if !ok {
		item = map[string]ddbtypes.AttributeValue{}
		for kk, v := range params.Key {
			item[kk] = v
		}
	}
	expr := strings.TrimSpace(*params.UpdateExpression)
	set, remove := expr, ""
	if i := strings.Index(expr, "REMOVE "); i >= 0 {
		set, remove = strings.TrimSpace(expr[:i]), expr[i+len("REMOVE "):]
	}
	if set = strings.TrimPrefix(set, "SET "); set != "" {
		for _, assignment := range strings.Split(set, ",") {
			parts := strings.SplitN(assignment, "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("unsupported update expression %q", *params.UpdateExpression)
			}
			name := params.ExpressionAttributeNames[strings.TrimSpace(parts[0])]
			item[name] = params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
		}
	}
	if remove != "" {
		for _, ref := range strings.Split(remove, ",") {
			delete(item, params.ExpressionAttributeNames[strings.TrimSpace(ref)])
		}
	}
	f.Items[k] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *FakeDynamoClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	delete(f.Items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Keys returns the stored "pk|sk" keys in sorted order.
func (f *FakeDynamoClient) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.Items))
	for k := range f.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FakeDynamoClient) GetRegion() string { return f.Region }
