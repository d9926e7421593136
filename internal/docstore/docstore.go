// Package docstore keeps collections of JSON-like documents in a single
// DynamoDB table keyed by collection (pk) and document id (sk).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
)

const (
	// error msgs
	ClientNilErrMsg    = "dynamodb client is nil"
	TableNotSetErrMsg  = "table name is not set"
	EmptyKeyErrMsg     = "collection and document id are required"
	EmptyUpdateErrMsg  = "update has no fields"
	ReservedKeyErrMsg  = "document uses a reserved attribute name"
	partitionAttribute = "pk"
	sortAttribute      = "sk"
)

// Documents is the document store surface handlers depend on.
type Documents interface {
	Get(ctx context.Context, collection, id string) (map[string]any, bool, error)
	Set(ctx context.Context, collection, id string, doc map[string]any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Add(ctx context.Context, collection string, doc map[string]any) (string, error)
}

type Config struct {
	Client dynamoclient.DynamoClient
	Table  string
}

// Store implements Documents over DynamoDB.
type Store struct {
	client dynamoclient.DynamoClient
	table  string
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	if cfg.Table == "" {
		return nil, errors.New(TableNotSetErrMsg)
	}
	return &Store{client: cfg.Client, table: cfg.Table}, nil
}

func key(collection, id string) (map[string]ddbtypes.AttributeValue, error) {
	if collection == "" || id == "" {
		return nil, errors.New(EmptyKeyErrMsg)
	}
	return map[string]ddbtypes.AttributeValue{
		partitionAttribute: &ddbtypes.AttributeValueMemberS{Value: collection},
		sortAttribute:      &ddbtypes.AttributeValueMemberS{Value: id},
	}, nil
}

// Get returns the document and whether it exists.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	k, err := key(collection, id)
	if err != nil {
		return nil, false, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	doc := map[string]any{}
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	delete(doc, partitionAttribute)
	delete(doc, sortAttribute)
	return doc, true, nil
}

// Set replaces the document.
func (s *Store) Set(ctx context.Context, collection, id string, doc map[string]any) error {
	k, err := key(collection, id)
	if err != nil {
		return err
	}
	if _, ok := doc[partitionAttribute]; ok {
		return errors.New(ReservedKeyErrMsg)
	}
	if _, ok := doc[sortAttribute]; ok {
		return errors.New(ReservedKeyErrMsg)
	}
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	for name, v := range k {
		item[name] = v
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteField, used as a value in Update, removes that field.
var DeleteField = deleteField{}

type deleteField struct{}

// Update merges fields into the document, creating it when absent. Fields
// set to DeleteField are removed.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	k, err := key(collection, id)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.New(EmptyUpdateErrMsg)
	}
	names := make([]string, 0, len(fields))
	for n := range fields {
		if n == partitionAttribute || n == sortAttribute {
			return errors.New(ReservedKeyErrMsg)
		}
		names = append(names, n)
	}
	sort.Strings(names)

	exprNames := make(map[string]string, len(names))
	exprValues := make(map[string]ddbtypes.AttributeValue, len(names))
	var sets, removes []string
	for i, n := range names {
		nameRef := fmt.Sprintf("#f%d", i)
		exprNames[nameRef] = n
		if _, ok := fields[n].(deleteField); ok {
			removes = append(removes, nameRef)
			continue
		}
		v, err := attributevalue.Marshal(fields[n])
		if err != nil {
			return fmt.Errorf("encode field %s: %w", n, err)
		}
		valueRef := fmt.Sprintf(":v%d", i)
		exprValues[valueRef] = v
		sets = append(sets, nameRef+" = "+valueRef)
	}
	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	in := &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      k,
		UpdateExpression:         aws.String(strings.Join(clauses, " ")),
		ExpressionAttributeNames: exprNames,
	}
	if len(exprValues) > 0 {
		in.ExpressionAttributeValues = exprValues
	}
	if _, err := s.client.UpdateItem(ctx, in); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	k, err := key(collection, id)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       k,
	}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add stores doc under a generated, time-ordered id and returns the id.
func (s *Store) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	if err := s.Set(ctx, collection, id.String(), doc); err != nil {
		return "", err
	}
	return id.String(), nil
}
