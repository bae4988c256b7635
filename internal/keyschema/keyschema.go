package keyschema

import "fmt"

// IDField is the mandatory, always-unique primary key field of every record.
const IDField = "id"

// FieldOptions configures a single indexed field.
type FieldOptions struct {
	Unique bool
}

// Schema enumerates the indexed, non-id fields of a collection.
type Schema struct {
	fields map[string]FieldOptions
}

// New validates cfg and builds a Schema. cfg must not mention IDField: id is
// implicitly indexed and unique for every collection.
func New(cfg map[string]FieldOptions) (Schema, error) {
	if _, ok := cfg[IDField]; ok {
		return Schema{}, fmt.Errorf("keyschema: %q must not appear in the index config", IDField)
	}
	fields := make(map[string]FieldOptions, len(cfg))
	for k, v := range cfg {
		fields[k] = v
	}
	return Schema{fields: fields}, nil
}

// IsIndexed reports whether attr can be used as a lookup filter (id, or a
// field named in the schema).
func (s Schema) IsIndexed(attr string) bool {
	if attr == IDField {
		return true
	}
	_, ok := s.fields[attr]
	return ok
}

// IsUnique reports whether attr must hold distinct values across the
// collection (id always does).
func (s Schema) IsUnique(attr string) bool {
	if attr == IDField {
		return true
	}
	return s.fields[attr].Unique
}

// IndexedFields returns the non-id indexed field names, in no particular
// order.
func (s Schema) IndexedFields() []string {
	out := make([]string, 0, len(s.fields))
	for k := range s.fields {
		out = append(out, k)
	}
	return out
}

// UniqueFields returns the non-id unique field names, in no particular
// order.
func (s Schema) UniqueFields() []string {
	var out []string
	for k, opt := range s.fields {
		if opt.Unique {
			out = append(out, k)
		}
	}
	return out
}
