package dynamodb

import (
	"encoding/base64"
	"encoding/json"

	"collective-rides/application/ports"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LastEvaluatedKey is the resume position of a listing: the table key of the last item
// returned plus the key of the index the listing ran on
type LastEvaluatedKey struct {
	PK     string `json:"pk"`
	SK     string `json:"sk"`
	GSI1PK string `json:"gsi1pk,omitempty"`
	GSI1SK string `json:"gsi1sk,omitempty"`
	GSI2PK string `json:"gsi2pk,omitempty"`
	GSI2SK string `json:"gsi2sk,omitempty"`
}

// EncodeCursor encodes a key as an opaque URL-safe cursor
func EncodeCursor(key LastEvaluatedKey) string {
	data, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor decodes a cursor produced by EncodeCursor. An empty cursor decodes to nil.
func DecodeCursor(cursor string) (*LastEvaluatedKey, error) {
	if cursor == "" {
		return nil, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ports.ErrInvalidCursor{Reason: "not base64url"}
	}

	var key LastEvaluatedKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, ports.ErrInvalidCursor{Reason: "malformed payload"}
	}
	if key.PK == "" || key.SK == "" {
		return nil, ports.ErrInvalidCursor{Reason: "missing table key"}
	}
	return &key, nil
}

// partition returns the partition value the key holds for the given index
func (k LastEvaluatedKey) partition(index indexName) string {
	switch index {
	case indexGSI1:
		return k.GSI1PK
	case indexGSI2:
		return k.GSI2PK
	default:
		return k.PK
	}
}

// ToDynamoDBKey converts the key to an ExclusiveStartKey
func (k LastEvaluatedKey) ToDynamoDBKey() map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue)
	put := func(name, value string) {
		if value != "" {
			key[name] = &types.AttributeValueMemberS{Value: value}
		}
	}
	put(attrPK, k.PK)
	put(attrSK, k.SK)
	put(attrGSI1PK, k.GSI1PK)
	put(attrGSI1SK, k.GSI1SK)
	put(attrGSI2PK, k.GSI2PK)
	put(attrGSI2SK, k.GSI2SK)
	return key
}

// FromDynamoDBKey builds a key from a LastEvaluatedKey or from an item. Only the table key
// and the attributes of the given index are kept.
func FromDynamoDBKey(item map[string]types.AttributeValue, index indexName) LastEvaluatedKey {
	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	key := LastEvaluatedKey{PK: str(attrPK), SK: str(attrSK)}
	switch index {
	case indexGSI1:
		key.GSI1PK, key.GSI1SK = str(attrGSI1PK), str(attrGSI1SK)
	case indexGSI2:
		key.GSI2PK, key.GSI2SK = str(attrGSI2PK), str(attrGSI2SK)
	}
	return key
}
