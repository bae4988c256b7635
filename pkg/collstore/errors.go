package collstore

import "fmt"

// DuplicateError reports that a write would have violated id-uniqueness or
// a unique-index constraint. Attribute is "id" or the offending field name.
type DuplicateError struct {
	Collection string
	Attribute  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("collstore: duplicate value for %s.%s", e.Collection, e.Attribute)
}

// NotIndexedError reports a filter against a field that is neither id nor
// listed in the collection's key schema.
type NotIndexedError struct {
	Attribute string
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("collstore: field %q is not indexed", e.Attribute)
}

// IDImmutableError reports an update delta that tries to change an existing
// record's id.
type IDImmutableError struct{}

func (e *IDImmutableError) Error() string { return "collstore: cannot change id of an existing record" }

// UpsertRequiresIDError reports an upsert requested against a filter other
// than id.
type UpsertRequiresIDError struct{}

func (e *UpsertRequiresIDError) Error() string {
	return "collstore: upsert requires a filter on id"
}

// ClosedHandleError reports an operation attempted after the owning database
// handle was closed.
type ClosedHandleError struct{}

func (e *ClosedHandleError) Error() string { return "collstore: connection closed" }

// ConfigRejectedError reports a malformed connection URL or provisioning
// hint.
type ConfigRejectedError struct {
	Reason string
}

func (e *ConfigRejectedError) Error() string { return "collstore: " + e.Reason }

// WrapperRefusedQueryError reports a get/getAll/update/remove filtered on a
// field a wrapper has declared as wrapped (and therefore opaque).
type WrapperRefusedQueryError struct {
	Op    string
	Field string
}

func (e *WrapperRefusedQueryError) Error() string {
	return fmt.Sprintf("collstore: cannot %s by wrapped value %q", e.Op, e.Field)
}

// WrappedMissingContextError reports an encryption wrapper operation that
// could not determine the record id it needed.
type WrappedMissingContextError struct {
	Reason string
}

func (e *WrappedMissingContextError) Error() string { return "collstore: " + e.Reason }

// BackendTransientError reports a retryable failure from a networked
// backend (throttling, timeout, connection reset). The HTTP/driver layer
// retries these internally with backoff; one only escapes to the caller
// once the retry budget is exhausted.
type BackendTransientError struct {
	Backend string
	Reason  string
}

func (e *BackendTransientError) Error() string {
	return fmt.Sprintf("collstore: %s: transient error: %s", e.Backend, e.Reason)
}

// BackendFatalError surfaces a non-retryable backend error verbatim,
// carrying whatever status/type/message the backend reported.
type BackendFatalError struct {
	Backend string
	Type    string
	Message string
}

func (e *BackendFatalError) Error() string {
	return fmt.Sprintf("collstore: %s: %s: %s", e.Backend, e.Type, e.Message)
}
