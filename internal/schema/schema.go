// Package schema loads the canonical schema document. The document is data,
// not code: adding or removing a canonical column means editing the JSON
// file, never the mapper or validator.
package schema

import (
	"encoding/json"
	"fmt"
	"os"

	"b3ingest/pkg/contracts/domain"
)

// EnvSchemaPath overrides the schema document location when set.
const EnvSchemaPath = "CANONICAL_SCHEMA_PATH"

// DefaultPath is the schema document location relative to the working
// directory.
const DefaultPath = "docs/schema.json"

type columnDoc struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type schemaDoc struct {
	Version int         `json:"version"`
	Columns []columnDoc `json:"columns"`
}

// Load reads and parses the schema document at path. Unknown column types
// fail the load; the FieldKind set is closed.
func Load(path string) (domain.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Schema{}, fmt.Errorf("failed to read schema document %s: %w", path, err)
	}
	return Parse(data)
}

// LoadDefault resolves the schema document from CANONICAL_SCHEMA_PATH or the
// default location.
func LoadDefault() (domain.Schema, error) {
	path := os.Getenv(EnvSchemaPath)
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Parse parses schema document bytes into a typed descriptor.
func Parse(data []byte) (domain.Schema, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Schema{}, fmt.Errorf("failed to parse schema document: %w", err)
	}
	if len(doc.Columns) == 0 {
		return domain.Schema{}, fmt.Errorf("schema document defines no columns")
	}

	fields := make([]domain.Field, 0, len(doc.Columns))
	seen := make(map[string]bool, len(doc.Columns))
	for _, c := range doc.Columns {
		if c.Name == "" {
			return domain.Schema{}, fmt.Errorf("schema document has a column with no name")
		}
		if seen[c.Name] {
			return domain.Schema{}, fmt.Errorf("schema document defines column %q twice", c.Name)
		}
		seen[c.Name] = true

		kind, err := parseKind(c.Type)
		if err != nil {
			return domain.Schema{}, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields = append(fields, domain.Field{
			Name:     c.Name,
			Kind:     kind,
			Nullable: c.Nullable,
		})
	}

	return domain.Schema{Fields: fields}, nil
}

func parseKind(s string) (domain.FieldKind, error) {
	switch s {
	case "string":
		return domain.FieldString, nil
	case "date":
		return domain.FieldDate, nil
	case "datetime":
		return domain.FieldDatetime, nil
	case "float":
		return domain.FieldFloat, nil
	case "int":
		return domain.FieldInt, nil
	default:
		return 0, fmt.Errorf("unknown type in canonical schema: %q", s)
	}
}
