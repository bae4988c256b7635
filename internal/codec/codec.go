package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Tag identifies the type of an encoded value. Values 0x01-0x07 are reserved;
// any other leading byte is treated as unmarked canonical JSON (see Unmarshal).
type tag byte

const (
	tagString tag = 0x01
	tagInt    tag = 0x02
	tagFloat  tag = 0x03
	tagBool   tag = 0x04
	tagNull   tag = 0x05
	tagJSON   tag = 0x06
	tagBinary tag = 0x07
)

// Marshal encodes v into its tagged byte form. v must be one of: string,
// int64 (or any Go integer type, converted to int64), float64 (or float32),
// bool, nil, []byte, or a value that marshals to nested JSON
// (map[string]any, []any, or a JSON-marshalable struct).
func Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return []byte{byte(tagNull)}, nil
	case string:
		return append([]byte{byte(tagString)}, []byte(x)...), nil
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return []byte{byte(tagBool), b}, nil
	case []byte:
		return append([]byte{byte(tagBinary)}, x...), nil
	case int:
		return marshalInt(int64(x)), nil
	case int32:
		return marshalInt(int64(x)), nil
	case int64:
		return marshalInt(x), nil
	case float32:
		return marshalFloat(float64(x)), nil
	case float64:
		return marshalFloat(x), nil
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("codec: cannot marshal %T: %w", v, err)
		}
		return append([]byte{byte(tagJSON)}, payload...), nil
	}
}

func marshalInt(x int64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(tagInt)
	binary.BigEndian.PutUint64(buf[1:], uint64(x))
	return buf
}

func marshalFloat(x float64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(tagFloat)
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(x))
	return buf
}

// Unmarshal reverses Marshal. Recognised return types: nil, string, int64,
// float64, bool, []byte, map[string]any, []any.
//
// If data's leading byte does not match a known tag, data is parsed as
// unmarked canonical JSON instead, for compatibility with records written
// before this package existed.
func Unmarshal(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: empty input")
	}
	switch tag(data[0]) {
	case tagNull:
		return nil, nil
	case tagString:
		return string(data[1:]), nil
	case tagBool:
		if len(data) < 2 {
			return nil, fmt.Errorf("codec: truncated bool")
		}
		return data[1] != 0, nil
	case tagBinary:
		out := make([]byte, len(data)-1)
		copy(out, data[1:])
		return out, nil
	case tagInt:
		if len(data) != 9 {
			return nil, fmt.Errorf("codec: truncated int")
		}
		return int64(binary.BigEndian.Uint64(data[1:])), nil
	case tagFloat:
		if len(data) != 9 {
			return nil, fmt.Errorf("codec: truncated float")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data[1:])), nil
	case tagJSON:
		return unmarshalJSON(data[1:])
	default:
		return unmarshalJSON(data)
	}
}

func unmarshalJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return normalizeJSON(v), nil
}

// normalizeJSON converts json.Number leaves (produced by UseNumber) into
// int64 where exact, else float64, so callers never see json.Number.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeJSON(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeJSON(e)
		}
		return x
	default:
		return x
	}
}
