package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// tableManager owns the online-reconfiguration state machine of §4.3.3 for
// one collection's pair of tables.
type tableManager struct {
	client   *dynamodb.Client
	provFor  func(table, index string) (*collstore.Provision, error)
	primary  string
	unique   string
	schema   keyschema.Schema
}

func throughputFor(p *collstore.Provision) (types.BillingMode, *types.ProvisionedThroughput) {
	if p == nil {
		return types.BillingModePayPerRequest, nil
	}
	return types.BillingModeProvisioned, &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(p.Read),
		WriteCapacityUnits: aws.Int64(p.Write),
	}
}

// ensure runs the full §4.3.3 reconciliation: create-or-reconcile T,
// create-or-drop T', backfill new unique rows, write the sentinel, then
// wait for T and all of its GSIs to report ACTIVE (T' is not polled).
func (m *tableManager) ensure(ctx context.Context) error {
	if err := m.ensurePrimaryTable(ctx); err != nil {
		return err
	}
	hasUnique := len(m.schema.UniqueFields()) > 0
	if hasUnique {
		if err := m.ensureUniqueTable(ctx); err != nil {
			return err
		}
		if err := m.reconcileUniqueBackfill(ctx); err != nil {
			return err
		}
	} else {
		m.deleteUniqueTableBestEffort(ctx)
	}
	return m.waitForTable(ctx, true)
}

func (m *tableManager) ensurePrimaryTable(ctx context.Context) error {
	desired := m.schema.IndexedFields()
	var nonUnique []string
	for _, attr := range desired {
		if !m.schema.IsUnique(attr) {
			nonUnique = append(nonUnique, attr)
		}
	}

	attrDefs := []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}}
	var gsis []types.GlobalSecondaryIndex
	billing, throughput := throughputFor(mustProvision(m.provFor, m.primary, ""))
	for _, attr := range nonUnique {
		attrDefs = append(attrDefs, types.AttributeDefinition{AttributeName: aws.String(attr), AttributeType: types.ScalarAttributeTypeB})
		idxThroughput := throughput
		if billing == types.BillingModeProvisioned {
			_, idxThroughput = throughputFor(mustProvision(m.provFor, m.primary, attr))
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:             aws.String(gsiName(attr)),
			KeySchema:             []types.KeySchemaElement{{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash}},
			Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
			ProvisionedThroughput: idxThroughput,
		})
	}

	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(m.primary),
		AttributeDefinitions:  attrDefs,
		KeySchema:             []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
		BillingMode:           billing,
		ProvisionedThroughput: throughput,
		GlobalSecondaryIndexes: gsis,
	}
	_, err := m.client.CreateTable(ctx, in)
	if err == nil {
		return nil
	}
	var inUse *types.ResourceInUseException
	if !errors.As(err, &inUse) {
		return &collstore.BackendFatalError{Backend: "dynamo", Type: "CreateTable", Message: err.Error()}
	}
	return m.reconcileGSIs(ctx, nonUnique, attrDefs)
}

// reconcileGSIs compares the desired non-unique GSI set against the
// existing table's, adding missing indexes and removing surplus ones one
// at a time (UpdateTable only accepts one GSI change per call), waiting
// for ACTIVE between steps.
func (m *tableManager) reconcileGSIs(ctx context.Context, desired []string, attrDefs []types.AttributeDefinition) error {
	out, err := m.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(m.primary)})
	if err != nil {
		return &collstore.BackendFatalError{Backend: "dynamo", Type: "DescribeTable", Message: err.Error()}
	}

	existing := map[string]bool{}
	for _, g := range out.Table.GlobalSecondaryIndexes {
		existing[aws.ToString(g.IndexName)] = true
	}
	wanted := map[string]bool{}
	for _, attr := range desired {
		wanted[gsiName(attr)] = true
	}

	for name := range existing {
		if !wanted[name] {
			_, err := m.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
				TableName: aws.String(m.primary),
				GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
					{Delete: &types.DeleteGlobalSecondaryIndexAction{IndexName: aws.String(name)}},
				},
			})
			if err != nil {
				return &collstore.BackendFatalError{Backend: "dynamo", Type: "UpdateTable", Message: err.Error()}
			}
			if err := m.waitForTable(ctx, false); err != nil {
				return err
			}
		}
	}

	for _, attr := range desired {
		name := gsiName(attr)
		if existing[name] {
			continue
		}
		_, err := m.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
			TableName:            aws.String(m.primary),
			AttributeDefinitions: attrDefs,
			GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
				{Create: &types.CreateGlobalSecondaryIndexAction{
					IndexName:  aws.String(name),
					KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash}},
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				}},
			},
		})
		if err != nil {
			return &collstore.BackendFatalError{Backend: "dynamo", Type: "UpdateTable", Message: err.Error()}
		}
		if err := m.waitForTable(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

func (m *tableManager) ensureUniqueTable(ctx context.Context) error {
	_, throughput := throughputFor(sumProvision(m.perAttrProvisions()))
	billing := types.BillingModePayPerRequest
	if throughput != nil {
		billing = types.BillingModeProvisioned
	}
	_, err := m.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:             aws.String(m.unique),
		AttributeDefinitions:  []types.AttributeDefinition{{AttributeName: aws.String("ix"), AttributeType: types.ScalarAttributeTypeS}},
		KeySchema:             []types.KeySchemaElement{{AttributeName: aws.String("ix"), KeyType: types.KeyTypeHash}},
		BillingMode:           billing,
		ProvisionedThroughput: throughput,
	})
	if err == nil {
		return nil
	}
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return &collstore.BackendFatalError{Backend: "dynamo", Type: "CreateTable", Message: err.Error()}
}

func (m *tableManager) perAttrProvisions() []*collstore.Provision {
	var out []*collstore.Provision
	for _, attr := range m.schema.UniqueFields() {
		out = append(out, mustProvision(m.provFor, m.primary, attr))
	}
	return out
}

func (m *tableManager) deleteUniqueTableBestEffort(ctx context.Context) {
	_, _ = m.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(m.unique)})
}

// reconcileUniqueBackfill compares the sentinel's recorded unique-attribute
// set against the schema's, and for each newly unique attribute Scans T
// and BatchWriteItems fresh uniqueness rows (§4.3.3: old rows for removed
// attributes are left in place, since scanning to delete them is expensive
// and storage is cheap).
func (m *tableManager) reconcileUniqueBackfill(ctx context.Context) error {
	desired := m.schema.UniqueFields()
	desiredSet := map[string]bool{}
	for _, a := range desired {
		desiredSet[a] = true
	}

	prior, err := m.readSentinel(ctx)
	if err != nil {
		return err
	}
	priorSet := map[string]bool{}
	for _, a := range prior {
		priorSet[a] = true
	}

	var newlyUnique []string
	for _, a := range desired {
		if !priorSet[a] {
			newlyUnique = append(newlyUnique, a)
		}
	}
	if len(newlyUnique) == 0 && sameSet(prior, desired) {
		return nil
	}

	if len(newlyUnique) > 0 {
		if err := m.backfillAttrs(ctx, newlyUnique); err != nil {
			return err
		}
	}
	return m.writeSentinel(ctx, desired)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}

func (m *tableManager) readSentinel(ctx context.Context) ([]string, error) {
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.unique),
		Key:       map[string]types.AttributeValue{"ix": &types.AttributeValueMemberS{Value: sentinelIxKey()}},
	})
	if err != nil {
		return nil, &collstore.BackendFatalError{Backend: "dynamo", Type: "GetItem", Message: err.Error()}
	}
	if out.Item == nil {
		return nil, nil
	}
	ss, ok := out.Item["unique"].(*types.AttributeValueMemberSS)
	if !ok {
		return nil, nil
	}
	return ss.Value, nil
}

func (m *tableManager) writeSentinel(ctx context.Context, attrs []string) error {
	item := map[string]types.AttributeValue{
		"ix": &types.AttributeValueMemberS{Value: sentinelIxKey()},
	}
	if len(attrs) > 0 {
		item["unique"] = &types.AttributeValueMemberSS{Value: attrs}
	}
	_, err := m.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(m.unique), Item: item})
	if err != nil {
		return &collstore.BackendFatalError{Backend: "dynamo", Type: "PutItem", Message: err.Error()}
	}
	return nil
}

func (m *tableManager) backfillAttrs(ctx context.Context, attrs []string) error {
	var writes []types.WriteRequest
	err := m.scanAll(ctx, func(item map[string]types.AttributeValue) error {
		for _, attr := range attrs {
			av, ok := item[attr]
			if !ok {
				continue
			}
			v, err := fromAttr(av)
			if err != nil {
				return err
			}
			key, err := ixKey(attr, v)
			if err != nil {
				return err
			}
			idAV := item["id"]
			writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
				"ix": &types.AttributeValueMemberS{Value: key},
				"id": idAV,
			}}})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.batchWrite(ctx, m.unique, writes)
}

func (m *tableManager) scanAll(ctx context.Context, visit func(item map[string]types.AttributeValue) error) error {
	var lastKey map[string]types.AttributeValue
	for {
		out, err := m.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(m.primary), ExclusiveStartKey: lastKey})
		if err != nil {
			return &collstore.BackendFatalError{Backend: "dynamo", Type: "Scan", Message: err.Error()}
		}
		for _, item := range out.Items {
			if err := visit(item); err != nil {
				return err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// batchWrite chunks writes into groups of <=25 and retries UnprocessedItems
// until drained (§4.3.4).
func (m *tableManager) batchWrite(ctx context.Context, table string, writes []types.WriteRequest) error {
	for i := 0; i < len(writes); i += 25 {
		end := i + 25
		if end > len(writes) {
			end = len(writes)
		}
		chunk := writes[i:end]
		pending := map[string][]types.WriteRequest{table: chunk}
		for len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				return &collstore.BackendTransientError{Backend: "dynamo", Reason: fmt.Sprintf("dynamo: %d unprocessed items remain: %v", len(pending[table]), err)}
			}
			var out *dynamodb.BatchWriteItemOutput
			err := withRetry(ctx, func(ctx context.Context) error {
				var berr error
				out, berr = m.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
				return berr
			})
			if err != nil {
				return &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// waitForTable polls DescribeTable until TableStatus=ACTIVE and, if
// includeGSIs, every GSI reports IndexStatus=ACTIVE, with exponential
// backoff up to a 60s overall deadline (§4.3.3).
func (m *tableManager) waitForTable(ctx context.Context, includeGSIs bool) error {
	deadline := time.Now().Add(60 * time.Second)
	backoff := 100 * time.Millisecond
	for {
		out, err := m.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(m.primary)})
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			// table not yet visible; keep polling.
		} else if err != nil {
			return &collstore.BackendFatalError{Backend: "dynamo", Type: "DescribeTable", Message: err.Error()}
		} else if out.Table.TableStatus == types.TableStatusActive {
			if !includeGSIs || allGSIsActive(out.Table.GlobalSecondaryIndexes) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return &collstore.BackendTransientError{Backend: "dynamo", Reason: "table did not become ACTIVE within 60s"}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
}

func allGSIsActive(gsis []types.GlobalSecondaryIndexDescription) bool {
	for _, g := range gsis {
		if g.IndexStatus != types.IndexStatusActive {
			return false
		}
	}
	return true
}

func mustProvision(resolver func(table, index string) (*collstore.Provision, error), table, index string) *collstore.Provision {
	p, err := resolver(table, index)
	if err != nil {
		return nil
	}
	return p
}
