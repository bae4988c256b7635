package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// Database is the concrete handle connect returns, exposing
// CompactionCandidates alongside the backend-agnostic collstore.Database
// methods.
type Database struct {
	*collstore.BaseDatabase
	client *dynamodb.Client
	prefix string
}

// CompactionCandidates resolves §9 Open Question (a): removed unique
// attributes leave their rows in the uniqueness table forever rather than
// being deleted eagerly on schema change (deleting them would require a
// full scan on every reconfiguration). This read-only diagnostic scans
// collectionName's uniqueness table and reports which attribute prefixes
// are present there but no longer named in schema's unique-field set, so
// an operator can decide whether to prune them out-of-band. It makes no
// writes and does not change the on-the-wire layout.
func (d *Database) CompactionCandidates(ctx context.Context, collectionName string, schema keyschema.Schema) ([]string, error) {
	wanted := map[string]bool{}
	for _, a := range schema.UniqueFields() {
		wanted[a] = true
	}

	table := uniqueTableName(d.prefix, collectionName)
	stale := map[string]bool{}
	var lastKey map[string]types.AttributeValue
	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(table), ExclusiveStartKey: lastKey})
		if err != nil {
			var rnf *types.ResourceNotFoundException
			if errors.As(err, &rnf) {
				return nil, nil
			}
			return nil, &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
		}
		for _, item := range out.Items {
			s, ok := item["ix"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			attr, ok := attrFromIxKey(s.Value)
			if !ok || wanted[attr] {
				continue
			}
			stale[attr] = true
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	result := make([]string, 0, len(stale))
	for a := range stale {
		result = append(result, a)
	}
	return result, nil
}

// attrFromIxKey reverses the attribute prefix out of an ix key built by
// ixKey, skipping the sentinel row (whose decoded body is just ":").
func attrFromIxKey(key string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", false
	}
	s := string(raw)
	if s == ":" {
		return "", false
	}
	i := strings.Index(s, ":")
	if i <= 0 {
		return "", false
	}
	return s[:i], true
}
