/*
Package dynamo implements collstore's managed wide-column backend over
Amazon DynamoDB via github.com/aws/aws-sdk-go-v2/service/dynamodb. It is
the most involved of the five backends: a collection is represented by
two tables.

The primary table T (hash key "id") carries one Global Secondary Index
per non-unique indexed field. The uniqueness table T' (hash key "ix",
only created when the schema has unique fields) holds one row per
unique-attribute value, so a conditional PutItem against T' is how
unique-index violations are detected and reported — DynamoDB has no
server-side multi-attribute uniqueness of its own. id-uniqueness is
enforced by a conditional PutItem against T itself.

Every value is stored as a binary attribute produced by
internal/codec's tagged encoding, so a field can be promoted to an
index later without a type migration: DynamoDB attribute types, once
written, cannot change.

Table creation, GSI reconciliation, batching with unprocessed-item
retry, capacity-hint provisioning, and name escaping are all driven
from this package; request signing is delegated entirely to the SDK's
v4 signer.
*/
package dynamo
