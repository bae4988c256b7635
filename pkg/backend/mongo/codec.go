package mongo

import "go.mongodb.org/mongo-driver/bson/primitive"

// toBSONValue normalises a record field value into something the Mongo
// driver round-trips consistently, so a value written via Add compares
// equal to the same value used later as a Get/GetAll filter.
func toBSONValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = toBSONValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = toBSONValue(vv)
		}
		return out
	default:
		return t
	}
}

// fromBSONValue reverses the driver's decode of a stored document field
// back into the plain Go types collstore.Record values use.
func fromBSONValue(v any) any {
	switch t := v.(type) {
	case primitive.Binary:
		return t.Data
	case primitive.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = fromBSONValue(vv)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = fromBSONValue(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = fromBSONValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = fromBSONValue(vv)
		}
		return out
	case int32:
		return int64(t)
	default:
		return t
	}
}
