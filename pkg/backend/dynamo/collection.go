package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/internal/log"
	"github.com/cuemby/collstore/internal/metrics"
	"github.com/cuemby/collstore/pkg/collstore"
)

type dynamoCollection struct {
	name    string
	client  *dynamodb.Client
	primary string
	unique  string
	schema  keyschema.Schema
	tracker *inflightTracker
}

func (c *dynamoCollection) accountCapacity(op string, cc *types.ConsumedCapacity) {
	if cc == nil || cc.CapacityUnits == nil {
		return
	}
	metrics.ConsumedCapacityUnits.WithLabelValues(c.primary, op).Add(*cc.CapacityUnits)
}

// putUniqueRow conditional-puts one uniqueness row, translating a failed
// condition into *collstore.DuplicateError for attr.
func (c *dynamoCollection) putUniqueRow(ctx context.Context, attr string, value any, id any) error {
	key, err := ixKey(attr, value)
	if err != nil {
		return err
	}
	var cc *types.ConsumedCapacity
	err = withRetry(ctx, func(ctx context.Context) error {
		out, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(c.unique),
			Item:                      map[string]types.AttributeValue{"ix": &types.AttributeValueMemberS{Value: key}, "id": idAttr(id)},
			ConditionExpression:       aws.String("attribute_not_exists(ix)"),
			ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
		})
		if err == nil {
			cc = out.ConsumedCapacity
		}
		return err
	})
	c.accountCapacity("PutItem", cc)
	if err == nil {
		return nil
	}
	var cond *types.ConditionalCheckFailedException
	if errors.As(err, &cond) {
		return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
	}
	return &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
}

func (c *dynamoCollection) deleteUniqueRow(ctx context.Context, attr string, value any) {
	key, err := ixKey(attr, value)
	if err != nil {
		return
	}
	_ = withRetry(ctx, func(ctx context.Context) error {
		_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.unique),
			Key:       map[string]types.AttributeValue{"ix": &types.AttributeValueMemberS{Value: key}},
		})
		return err
	})
}

// Add implements §4.3.2 Put: conditional-put every unique-attribute
// uniqueness row first, rolling back on first failure, then
// conditional-put the primary item.
func (c *dynamoCollection) Add(ctx context.Context, record collstore.Record) error {
	defer c.tracker.begin()()
	id := record[collstore.IDField]
	var committed []string
	for _, attr := range c.schema.UniqueFields() {
		v, ok := record[attr]
		if !ok {
			continue
		}
		if err := c.putUniqueRow(ctx, attr, v, id); err != nil {
			for _, done := range committed {
				c.deleteUniqueRow(ctx, done, record[done])
			}
			return err
		}
		committed = append(committed, attr)
	}

	item, err := recordToItem(record)
	if err != nil {
		for _, done := range committed {
			c.deleteUniqueRow(ctx, done, record[done])
		}
		return err
	}

	var cc *types.ConsumedCapacity
	err = withRetry(ctx, func(ctx context.Context) error {
		out, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:              aws.String(c.primary),
			Item:                   item,
			ConditionExpression:    aws.String("attribute_not_exists(id)"),
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		})
		if err == nil {
			cc = out.ConsumedCapacity
		}
		return err
	})
	c.accountCapacity("PutItem", cc)
	if err != nil {
		for _, done := range committed {
			c.deleteUniqueRow(ctx, done, record[done])
		}
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return &collstore.DuplicateError{Collection: c.name, Attribute: collstore.IDField}
		}
		return &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
	}
	return nil
}

func (c *dynamoCollection) getByID(ctx context.Context, id any, fields []string) (collstore.Record, bool, error) {
	var cc *types.ConsumedCapacity
	var item map[string]types.AttributeValue
	err := withRetry(ctx, func(ctx context.Context) error {
		out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:              aws.String(c.primary),
			Key:                    map[string]types.AttributeValue{"id": idAttr(id)},
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		})
		if err != nil {
			return err
		}
		item, cc = out.Item, out.ConsumedCapacity
		return nil
	})
	c.accountCapacity("GetItem", cc)
	if err != nil {
		return nil, false, &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
	}
	if item == nil {
		return nil, false, nil
	}
	rec, err := itemToRecord(item, fields)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// queryGSI returns the primary ids (and full records, since the GSI
// projects ALL attributes, §6's simplification of the spec's
// BatchGetItem-merge step) matching attr == value.
func (c *dynamoCollection) queryGSI(ctx context.Context, attr string, value any, fields []string, limit int32) ([]collstore.Record, error) {
	av, err := toAttr(value)
	if err != nil {
		return nil, err
	}
	var out []collstore.Record
	var lastKey map[string]types.AttributeValue
	for {
		in := &dynamodb.QueryInput{
			TableName:                 aws.String(c.primary),
			IndexName:                 aws.String(gsiName(attr)),
			KeyConditionExpression:    aws.String("#a = :v"),
			ExpressionAttributeNames:  map[string]string{"#a": attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{":v": av},
			ExclusiveStartKey:         lastKey,
			ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
		}
		if limit > 0 {
			in.Limit = aws.Int32(limit)
		}
		var res *dynamodb.QueryOutput
		err := withRetry(ctx, func(ctx context.Context) error {
			var qerr error
			res, qerr = c.client.Query(ctx, in)
			return qerr
		})
		if err != nil {
			return nil, &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
		}
		c.accountCapacity("Query", res.ConsumedCapacity)
		for _, item := range res.Items {
			rec, err := itemToRecord(item, fields)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if limit > 0 && int32(len(out)) >= limit {
			return out[:limit], nil
		}
		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		lastKey = res.LastEvaluatedKey
	}
}

func (c *dynamoCollection) Get(ctx context.Context, attr string, value any, returnFields []string) (collstore.Record, bool, error) {
	defer c.tracker.begin()()
	switch {
	case attr == collstore.IDField:
		return c.getByID(ctx, value, returnFields)
	case c.schema.IsUnique(attr):
		id, ok, err := c.lookupUniqueID(ctx, attr, value)
		if err != nil || !ok {
			return nil, false, err
		}
		return c.getByID(ctx, id, returnFields)
	default:
		recs, err := c.queryGSI(ctx, attr, value, returnFields, 1)
		if err != nil || len(recs) == 0 {
			return nil, false, err
		}
		return recs[0], true, nil
	}
}

func (c *dynamoCollection) GetAll(ctx context.Context, attr string, value any, returnFields []string) (collstore.RecordIter, error) {
	defer c.tracker.begin()()
	switch {
	case attr == "":
		var out []collstore.Record
		err := c.scanAll(ctx, func(item map[string]types.AttributeValue) error {
			rec, err := itemToRecord(item, returnFields)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
		return collstore.NewSliceIter(out), err
	case attr == collstore.IDField:
		rec, ok, err := c.getByID(ctx, value, returnFields)
		if err != nil {
			return nil, err
		}
		if !ok {
			return collstore.NewSliceIter(nil), nil
		}
		return collstore.NewSliceIter([]collstore.Record{rec}), nil
	case c.schema.IsUnique(attr):
		rec, ok, err := c.Get(ctx, attr, value, returnFields)
		if err != nil {
			return nil, err
		}
		if !ok {
			return collstore.NewSliceIter(nil), nil
		}
		return collstore.NewSliceIter([]collstore.Record{rec}), nil
	default:
		recs, err := c.queryGSI(ctx, attr, value, returnFields, 0)
		if err != nil {
			return nil, err
		}
		return collstore.NewSliceIter(recs), nil
	}
}

func (c *dynamoCollection) scanAll(ctx context.Context, visit func(item map[string]types.AttributeValue) error) error {
	var lastKey map[string]types.AttributeValue
	for {
		var out *dynamodb.ScanOutput
		err := withRetry(ctx, func(ctx context.Context) error {
			var serr error
			out, serr = c.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:              aws.String(c.primary),
				ExclusiveStartKey:      lastKey,
				ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
			})
			return serr
		})
		if err != nil {
			return &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
		}
		c.accountCapacity("Scan", out.ConsumedCapacity)
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

func (c *dynamoCollection) lookupUniqueID(ctx context.Context, attr string, value any) (any, bool, error) {
	key, err := ixKey(attr, value)
	if err != nil {
		return nil, false, err
	}
	var out *dynamodb.GetItemOutput
	err = withRetry(ctx, func(ctx context.Context) error {
		var gerr error
		out, gerr = c.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(c.unique),
			Key:       map[string]types.AttributeValue{"ix": &types.AttributeValueMemberS{Value: key}},
		})
		return gerr
	})
	if err != nil {
		return nil, false, &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
	}
	if out.Item == nil {
		return nil, false, nil
	}
	s, ok := out.Item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, false, nil
	}
	return s.Value, true, nil
}

func (c *dynamoCollection) matchIDs(ctx context.Context, attr string, value any) ([]string, error) {
	switch {
	case attr == "":
		var ids []string
		err := c.scanAll(ctx, func(item map[string]types.AttributeValue) error {
			if s, ok := item["id"].(*types.AttributeValueMemberS); ok {
				ids = append(ids, s.Value)
			}
			return nil
		})
		return ids, err
	case attr == collstore.IDField:
		_, ok, err := c.getByID(ctx, value, []string{collstore.IDField})
		if err != nil || !ok {
			return nil, err
		}
		return []string{idString(value)}, nil
	case c.schema.IsUnique(attr):
		id, ok, err := c.lookupUniqueID(ctx, attr, value)
		if err != nil || !ok {
			return nil, err
		}
		return []string{idString(id)}, nil
	default:
		recs, err := c.queryGSI(ctx, attr, value, []string{collstore.IDField}, 0)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = idString(r[collstore.IDField])
		}
		return ids, nil
	}
}

// Update implements §4.3.2: matched ids get their unique-attribute rows
// replaced (new rows first, old rows deleted only after the primary
// update commits) and a conditional-update on the primary item guarding
// the filter attribute's original value (preserves IVP under concurrent
// writers).
func (c *dynamoCollection) Update(ctx context.Context, attr string, value any, delta collstore.Record, upsert bool) error {
	defer c.tracker.begin()()
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return err
	}

	if newID, hasID := delta[collstore.IDField]; hasID {
		if len(ids) > 1 {
			return &collstore.IDImmutableError{}
		}
		if len(ids) == 1 && idString(newID) != ids[0] {
			return &collstore.IDImmutableError{}
		}
	}

	if len(ids) == 0 {
		if !upsert {
			return nil
		}
		newRec := delta.Clone()
		newRec[collstore.IDField] = value
		return c.Add(ctx, newRec)
	}

	// Validate every matched id's touched unique fields against the stored
	// uniqueness index and against each other before writing anything, so
	// a collision on a later id in this call leaves every matched record
	// untouched (§3 AT) instead of rolling back a partially committed
	// batch.
	if err := c.validateUniqueBatch(ctx, ids, delta); err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.applyDelta(ctx, id, attr, value, delta); err != nil {
			return err
		}
	}
	return nil
}

// validateUniqueBatch checks, for every id in ids, whether delta's touched
// unique-attribute values collide with the stored uniqueness index or with
// another id's value within this same batch. It performs reads only.
func (c *dynamoCollection) validateUniqueBatch(ctx context.Context, ids []string, delta collstore.Record) error {
	reserved := map[string]string{} // attr+"\x00"+key -> owning id
	for _, id := range ids {
		for _, attr := range c.schema.UniqueFields() {
			newVal, touched := delta[attr]
			if !touched {
				continue
			}
			key, err := ixKey(attr, newVal)
			if err != nil {
				return err
			}
			reservedKey := attr + "\x00" + key
			if owner, claimed := reserved[reservedKey]; claimed && owner != id {
				return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
			reserved[reservedKey] = id

			ownerID, found, err := c.lookupUniqueID(ctx, attr, newVal)
			if err != nil {
				return err
			}
			if found && idString(ownerID) != id {
				return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
		}
	}
	return nil
}

func (c *dynamoCollection) applyDelta(ctx context.Context, id string, filterAttr string, filterValue any, delta collstore.Record) error {
	existing, ok, err := c.getByID(ctx, id, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var touchedUnique []string
	for _, attr := range c.schema.UniqueFields() {
		if _, changed := delta[attr]; changed {
			touchedUnique = append(touchedUnique, attr)
		}
	}

	var newRows []string
	for _, attr := range touchedUnique {
		if err := c.putUniqueRow(ctx, attr, delta[attr], id); err != nil {
			for _, done := range newRows {
				c.deleteUniqueRow(ctx, done, delta[done])
			}
			return err
		}
		newRows = append(newRows, attr)
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets []string
	i := 0
	for k, v := range delta {
		if k == collstore.IDField {
			continue
		}
		i++
		nameKey := fmt.Sprintf("#f%d", i)
		valKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = k
		av, err := toAttr(v)
		if err != nil {
			for _, done := range newRows {
				c.deleteUniqueRow(ctx, done, delta[done])
			}
			return err
		}
		values[valKey] = av
		sets = append(sets, nameKey+" = "+valKey)
	}
	if len(sets) == 0 {
		for _, done := range newRows {
			c.deleteUniqueRow(ctx, done, delta[done])
		}
		return nil
	}
	expr := "SET " + sets[0]
	for _, s := range sets[1:] {
		expr += ", " + s
	}
	cond := "attribute_exists(id)"
	if filterAttr != "" && filterAttr != collstore.IDField {
		fav, err := toAttr(filterValue)
		if err != nil {
			for _, done := range newRows {
				c.deleteUniqueRow(ctx, done, delta[done])
			}
			return err
		}
		names["#filter"] = filterAttr
		values[":filter"] = fav
		cond += " AND #filter = :filter"
	}

	var cc *types.ConsumedCapacity
	err = withRetry(ctx, func(ctx context.Context) error {
		out, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(c.primary),
			Key:                       map[string]types.AttributeValue{"id": idAttr(id)},
			UpdateExpression:          aws.String(expr),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
		})
		if err == nil {
			cc = out.ConsumedCapacity
		}
		return err
	})
	c.accountCapacity("UpdateItem", cc)
	if err != nil {
		for _, done := range newRows {
			c.deleteUniqueRow(ctx, done, delta[done])
		}
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			log.WithBackend("dynamo").Debug().Str("id", id).Msg("update lost race with concurrent delete or filter change")
			return nil
		}
		return &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
	}

	for _, attr := range touchedUnique {
		if oldV, ok := existing[attr]; ok {
			c.deleteUniqueRow(ctx, attr, oldV)
		}
	}
	return nil
}

// Remove implements §4.3.2: resolve ids, conditional-delete each from the
// primary table, and batch-delete its uniqueness rows.
func (c *dynamoCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	defer c.tracker.begin()()
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return 0, err
	}

	removed := 0
	var uniqueWrites []types.WriteRequest
	for _, id := range ids {
		var out *dynamodb.DeleteItemOutput
		err := withRetry(ctx, func(ctx context.Context) error {
			var derr error
			out, derr = c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:              aws.String(c.primary),
				Key:                    map[string]types.AttributeValue{"id": idAttr(id)},
				ConditionExpression:    aws.String("attribute_exists(id)"),
				ReturnValues:           types.ReturnValueAllOld,
				ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
			})
			return derr
		})
		if err != nil {
			var cond *types.ConditionalCheckFailedException
			if errors.As(err, &cond) {
				continue
			}
			return removed, &collstore.BackendTransientError{Backend: "dynamo", Reason: err.Error()}
		}
		c.accountCapacity("DeleteItem", out.ConsumedCapacity)
		removed++

		if out.Attributes != nil {
			for _, uattr := range c.schema.UniqueFields() {
				av, ok := out.Attributes[uattr]
				if !ok {
					continue
				}
				v, err := fromAttr(av)
				if err != nil {
					continue
				}
				key, err := ixKey(uattr, v)
				if err != nil {
					continue
				}
				uniqueWrites = append(uniqueWrites, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"ix": &types.AttributeValueMemberS{Value: key}},
				}})
			}
		}
	}

	if len(uniqueWrites) > 0 {
		tm := &tableManager{client: c.client, unique: c.unique}
		_ = tm.batchWrite(ctx, c.unique, uniqueWrites)
	}
	return removed, nil
}
