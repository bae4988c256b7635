package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// projectionDoc builds a bson.M projection document for returnFields.
// _id (mapped back to "id") is excluded unless "id" is itself one of
// returnFields.
func projectionDoc(returnFields []string) bson.M {
	if len(returnFields) == 0 {
		return nil
	}
	proj := bson.M{"_id": 0}
	for _, f := range returnFields {
		key := f
		if f == collstore.IDField {
			key = "_id"
		}
		proj[key] = 1
	}
	return proj
}

func findOneProjection(returnFields []string) *options.FindOneOptions {
	proj := projectionDoc(returnFields)
	if proj == nil {
		return nil
	}
	return options.FindOne().SetProjection(proj)
}

func findProjection(returnFields []string) *options.FindOptions {
	proj := projectionDoc(returnFields)
	if proj == nil {
		return nil
	}
	return options.Find().SetProjection(proj)
}

type mongoCollection struct {
	name   string
	coll   *mongodriver.Collection
	schema keyschema.Schema
	client *mongodriver.Client
}

func uniqueIndexName(attr string) string { return "uniq_" + attr }
func indexName(attr string) string       { return "idx_" + attr }

func attrFromIndexName(indexNameStr string) string {
	switch {
	case strings.HasPrefix(indexNameStr, "uniq_"):
		return strings.TrimPrefix(indexNameStr, "uniq_")
	case strings.HasPrefix(indexNameStr, "idx_"):
		return strings.TrimPrefix(indexNameStr, "idx_")
	default:
		return indexNameStr
	}
}

// asDuplicateErr inspects a Mongo write error for code 11000 (duplicate
// key) and recovers the violated attribute from the index name Mongo
// reports, falling back to "id" for the _id index itself.
func (c *mongoCollection) asDuplicateErr(err error) error {
	var we mongodriver.WriteException
	if errors.As(err, &we) {
		for _, werr := range we.WriteErrors {
			if werr.Code == 11000 {
				return &collstore.DuplicateError{Collection: c.name, Attribute: attrFromDupMessage(werr.Message)}
			}
		}
	}
	var ce mongodriver.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return &collstore.DuplicateError{Collection: c.name, Attribute: attrFromDupMessage(ce.Message)}
	}
	return &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
}

// attrFromDupMessage extracts the index name embedded in Mongo's
// duplicate-key error text ("... index: uniq_email dup key: ...") and
// maps it back to the field name.
func attrFromDupMessage(msg string) string {
	const marker = "index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return collstore.IDField
	}
	rest := msg[i+len(marker):]
	if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
		rest = rest[:sp]
	}
	if strings.HasPrefix(rest, "_id_") {
		return collstore.IDField
	}
	return attrFromIndexName(rest)
}

func docToRecord(doc bson.M) collstore.Record {
	rec := make(collstore.Record, len(doc))
	for k, v := range doc {
		key := k
		if k == "_id" {
			key = collstore.IDField
		}
		rec[key] = fromBSONValue(v)
	}
	return rec
}

func recordToDoc(rec collstore.Record) bson.M {
	doc := bson.M{}
	for k, v := range rec {
		key := k
		if k == collstore.IDField {
			key = "_id"
		}
		doc[key] = toBSONValue(v)
	}
	return doc
}

func filterFor(attr string, value any) bson.M {
	if attr == "" {
		return bson.M{}
	}
	key := attr
	if attr == collstore.IDField {
		key = "_id"
	}
	return bson.M{key: toBSONValue(value)}
}

func (c *mongoCollection) Add(ctx context.Context, record collstore.Record) error {
	_, err := c.coll.InsertOne(ctx, recordToDoc(record))
	if err != nil {
		return c.asDuplicateErr(err)
	}
	return nil
}

func (c *mongoCollection) Get(ctx context.Context, attr string, value any, returnFields []string) (collstore.Record, bool, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, filterFor(attr, value), findOneProjection(returnFields)).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	return docToRecord(doc), true, nil
}

func (c *mongoCollection) GetAll(ctx context.Context, attr string, value any, returnFields []string) (collstore.RecordIter, error) {
	cur, err := c.coll.Find(ctx, filterFor(attr, value), findProjection(returnFields))
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	defer cur.Close(ctx)

	var out []collstore.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decoding document: %w", err)
		}
		out = append(out, docToRecord(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	return collstore.NewSliceIter(out), nil
}

func (c *mongoCollection) matchIDs(ctx context.Context, attr string, value any) ([]string, error) {
	cur, err := c.coll.Find(ctx, filterFor(attr, value), findProjection([]string{collstore.IDField}))
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		ids = append(ids, fmt.Sprint(doc["_id"]))
	}
	return ids, cur.Err()
}

func (c *mongoCollection) Update(ctx context.Context, attr string, value any, delta collstore.Record, upsert bool) error {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return err
	}

	if newID, hasID := delta[collstore.IDField]; hasID {
		if len(ids) > 1 {
			return &collstore.IDImmutableError{}
		}
		if len(ids) == 1 && fmt.Sprint(newID) != ids[0] {
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

	without := delta.Clone()
	delete(without, collstore.IDField)
	set := recordToDoc(without)

	if len(ids) == 1 {
		if _, err := c.coll.UpdateOne(ctx, bson.M{"_id": ids[0]}, bson.M{"$set": set}); err != nil {
			return c.asDuplicateErr(err)
		}
		return nil
	}

	// More than one matched id: a plain UpdateMany commits documents one
	// at a time, so a unique-index violation partway through would leave
	// the earlier ids' writes committed. Apply each id's update inside a
	// session transaction instead, so any violation rolls the whole batch
	// back (§3 AT).
	session, err := c.client.StartSession()
	if err != nil {
		return &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongodriver.SessionContext) (interface{}, error) {
		for _, id := range ids {
			if _, err := c.coll.UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return c.asDuplicateErr(err)
	}
	return nil
}

func (c *mongoCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	res, err := c.coll.DeleteMany(ctx, filterFor(attr, value))
	if err != nil {
		return 0, &collstore.BackendTransientError{Backend: "mongo", Reason: err.Error()}
	}
	return int(res.DeletedCount), nil
}
