package dynamo

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cuemby/collstore/internal/codec"
	"github.com/cuemby/collstore/pkg/collstore"
)

// toAttr encodes a record field value as the binary attribute §4.3.1
// mandates: every field, indexed or not, is stored via the codec's tagged
// binary form, so adding an index later never requires a type migration.
func toAttr(v any) (types.AttributeValue, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberB{Value: data}, nil
}

// fromAttr reverses toAttr.
func fromAttr(av types.AttributeValue) (any, error) {
	b, ok := av.(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("dynamo: attribute is not binary-encoded (%T)", av)
	}
	return codec.Unmarshal(b.Value)
}

// idAttr encodes a record's id as the DynamoDB string hash key. ids are
// always string or int64 (§3); both stringify losslessly via fmt.Sprint.
func idAttr(id any) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: fmt.Sprint(id)}
}

func idString(id any) string { return fmt.Sprint(id) }

// recordToItem encodes rec (minus "id", carried separately as the hash
// key) into a DynamoDB item.
func recordToItem(rec collstore.Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(rec))
	item["id"] = idAttr(rec[collstore.IDField])
	for k, v := range rec {
		if k == collstore.IDField {
			continue
		}
		av, err := toAttr(v)
		if err != nil {
			return nil, fmt.Errorf("dynamo: encoding field %q: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// itemToRecord reverses recordToItem, projecting to fields if non-empty.
func itemToRecord(item map[string]types.AttributeValue, fields []string) (collstore.Record, error) {
	want := map[string]bool{}
	for _, f := range fields {
		want[f] = true
	}
	rec := make(collstore.Record, len(item))
	for k, av := range item {
		if len(want) > 0 && k != collstore.IDField && !want[k] {
			continue
		}
		if k == collstore.IDField {
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("dynamo: id attribute is not a string")
			}
			rec[collstore.IDField] = s.Value
			continue
		}
		v, err := fromAttr(av)
		if err != nil {
			return nil, err
		}
		rec[k] = v
	}
	return rec, nil
}

// ixKey builds the uniqueness table's hash key for attr/value (§4.3.1):
// base64("<attr>:" || base64(value)).
func ixKey(attr string, value any) (string, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return "", err
	}
	inner := attr + ":" + base64.StdEncoding.EncodeToString(data)
	return base64.StdEncoding.EncodeToString([]byte(inner)), nil
}

// sentinelIxKey is the uniqueness table's sentinel row recording the
// current unique-attribute set, keyed on an attr that can never collide
// with a real field name.
func sentinelIxKey() string {
	return base64.StdEncoding.EncodeToString([]byte(":"))
}
