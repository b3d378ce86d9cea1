// Package schema holds the in-memory representation of runtime-defined
// business models: a Schema describes an entity's fields and types, a Record
// carries one row of data shaped by such a schema. Schemas are produced by a
// separate metadata service and are immutable for the lifetime of a view.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// FieldType represents the declared type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"    // Single-line text
	FieldTypeText      FieldType = "TEXT"      // Multi-line text
	FieldTypeNumber    FieldType = "NUMBER"    // Floating point numeric data
	FieldTypeInteger   FieldType = "INTEGER"   // Whole numbers
	FieldTypeBoolean   FieldType = "BOOLEAN"   // True/false values
	FieldTypeDate      FieldType = "DATE"      // Calendar date, no time component
	FieldTypeDateTime  FieldType = "DATETIME"  // Point in time
	FieldTypeEnum      FieldType = "ENUM"      // One out of a set of pre-defined options
	FieldTypeFile      FieldType = "FILE"      // Stored file identifier
	FieldTypeReference FieldType = "REFERENCE" // Identifier of a record in another schema
)

// Field defines a single field within a schema, including its type and the
// reference/enum metadata that drives widget selection.
type Field struct {
	// Name is the field's identifier, unique within its schema. It keys the
	// record's data map and the wire filter pairs.
	Name string `json:"fieldName"`
	// Label is the human-readable display name.
	Label string `json:"label"`
	// Type is the declared field type.
	Type FieldType `json:"fieldType"`
	// Required indicates if the field is mandatory on create/update.
	Required bool `json:"required"`
	// Default provides an optional default value for create forms.
	Default any `json:"defaultValue,omitempty"`
	// Options lists the allowed values for an ENUM field, in display order.
	Options []string `json:"options,omitempty"`
	// RelatedSchema names the target schema of a REFERENCE field.
	RelatedSchema string `json:"relatedSchema,omitempty"`
	// RelatedDisplayField names the field of the target schema shown in
	// place of the raw id.
	RelatedDisplayField string `json:"relatedDisplayField,omitempty"`
	// Format is an optional value-format rule (e.g. "email", "url", "uuid")
	// enforced during local validation.
	Format string `json:"format,omitempty"`
}

// Schema defines a complete runtime business model. Fields is ordered; the
// order determines both form layout and table column order.
type Schema struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Tenant string  `json:"tenantId"`
	Fields []Field `json:"fields"`
}

// Record is one row of data shaped by a schema. The Data map is open: keys
// for fields since removed from the schema may still be present and are
// tolerated, never treated as errors.
type Record struct {
	ID         int64          `json:"id"`
	Tenant     string         `json:"tenantId"`
	SchemaName string         `json:"schemaName"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	CreatedBy  *string        `json:"createdBy,omitempty"`
}

// Page is the data service's paginated search envelope.
type Page struct {
	Content       []Record `json:"content"`
	TotalElements int64    `json:"totalElements"`
	Page          int      `json:"page"`
	Size          int      `json:"size"`
	TotalPages    int      `json:"totalPages"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field returns the declared field with the given name, if any.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the schema still declares a field with the given name.
func (s *Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// ReferenceFields returns the REFERENCE fields of the schema, in declaration order.
func (s *Schema) ReferenceFields() []Field {
	var refs []Field
	for _, f := range s.Fields {
		if f.Type == FieldTypeReference {
			refs = append(refs, f)
		}
	}
	return refs
}

// Check verifies the schema's structural invariants: identifier-safe names,
// field name uniqueness, and the REFERENCE/ENUM metadata pairings.
func (s *Schema) Check() error {
	if !identifierPattern.MatchString(s.Name) {
		return fmt.Errorf("schema name %q is not identifier-safe", s.Name)
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if !identifierPattern.MatchString(f.Name) {
			return fmt.Errorf("field name %q is not identifier-safe", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		hasRef := f.RelatedSchema != "" && f.RelatedDisplayField != ""
		if f.Type == FieldTypeReference && !hasRef {
			return fmt.Errorf("reference field %q is missing relatedSchema or relatedDisplayField", f.Name)
		}
		if f.Type != FieldTypeReference && (f.RelatedSchema != "" || f.RelatedDisplayField != "") {
			return fmt.Errorf("field %q carries reference metadata but is of type %s", f.Name, f.Type)
		}
		if f.Type == FieldTypeEnum && len(f.Options) == 0 {
			return fmt.Errorf("enum field %q has no options", f.Name)
		}
	}
	return nil
}

// ParseEnumOptions decodes enum options stored as a raw value: either an
// already-decoded string slice, a JSON-encoded array, or a single string.
// Malformed encodings yield nil rather than an error; the caller renders an
// empty choice list.
func ParseEnumOptions(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil
		}
		return out
	case json.RawMessage:
		var out []string
		if err := json.Unmarshal(v, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

// Issue represents a single validation finding on a field or record.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ValidationError is a field-scoped validation failure, raised locally before
// a mutation reaches the network or mapped back from the data service's
// field-keyed error structure.
type ValidationError struct {
	// Message is a general, human-readable summary. It also absorbs server
	// error keys that do not match any declared field.
	Message string
	// Fields maps declared field names to their inline messages.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d field error(s))", e.Message, len(e.Fields))
}

// FromIssues builds a ValidationError from validator issues.
func FromIssues(issues []Issue) *ValidationError {
	fields := make(map[string]string, len(issues))
	for _, issue := range issues {
		if issue.Field == "" {
			continue
		}
		if _, exists := fields[issue.Field]; !exists {
			fields[issue.Field] = issue.Message
		}
	}
	return &ValidationError{Message: "validation failed", Fields: fields}
}
