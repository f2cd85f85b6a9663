package domain

// FieldKind is the closed set of canonical column types. The schema document
// maps its "type" strings onto this enum exactly once at load time; all
// downstream logic switches on the enum.
type FieldKind uint8

const (
	FieldString FieldKind = iota
	FieldDate
	FieldDatetime
	FieldFloat
	FieldInt
)

// String returns the schema-document spelling of the kind.
func (k FieldKind) String() string {
	switch k {
	case FieldString:
		return "string"
	case FieldDate:
		return "date"
	case FieldDatetime:
		return "datetime"
	case FieldFloat:
		return "float"
	case FieldInt:
		return "int"
	default:
		return "unknown"
	}
}

// Field describes one canonical column.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"-"`
	Nullable bool      `json:"nullable"`
}

// Schema is the ordered canonical column set, loaded from the external
// schema document. Order is significant: it fixes canonical column order in
// mapped tables and serialized artifacts.
type Schema struct {
	Fields []Field
}

// Field returns the field with the given name and whether it exists.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}
