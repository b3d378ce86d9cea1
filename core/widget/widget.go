// Package widget maps schema field types to widget descriptors: the input
// kind, validation hints, and value transforms a presentation layer needs to
// render a field. Dispatch is table-driven over the field type taxonomy with
// an explicit fallback arm, so an unrecognized type can never crash the
// engine; it only refuses to be meaningfully editable.
package widget

import (
	"github.com/avasel/go-facet/core/schema"
)

// Kind identifies the input widget a field renders as.
type Kind string

const (
	KindText        Kind = "text"        // Single-line text input
	KindTextArea    Kind = "textarea"    // Multi-line text input
	KindNumber      Kind = "number"      // Decimal number input
	KindInteger     Kind = "integer"     // Whole number input
	KindSwitch      Kind = "switch"      // Boolean toggle
	KindDate        Kind = "date"        // Date picker
	KindDateTime    Kind = "datetime"    // Date and time picker
	KindSelect      Kind = "select"      // Choice list
	KindFile        Kind = "file"        // File reference input
	KindReference   Kind = "reference"   // Picker over a related schema
	KindUnsupported Kind = "unsupported" // Fallback: disabled plain text
)

// Option is a single selectable choice for a select widget.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Descriptor describes everything a presentation layer needs to render one
// field: the widget kind, display label, choice list, and whether the field
// is editable at all.
type Descriptor struct {
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Disabled bool     `json:"disabled"`
	Options  []Option `json:"options,omitempty"`
	// Default seeds the field's input on a create form.
	Default any `json:"default,omitempty"`
	// TargetSchema and DisplayField carry the reference metadata for
	// KindReference widgets.
	TargetSchema string `json:"targetSchema,omitempty"`
	DisplayField string `json:"displayField,omitempty"`
	// Placeholder is shown for disabled fallback widgets.
	Placeholder string `json:"placeholder,omitempty"`
}

// kindByType is the dispatch table over the declared type taxonomy.
var kindByType = map[schema.FieldType]Kind{
	schema.FieldTypeString:    KindText,
	schema.FieldTypeText:      KindTextArea,
	schema.FieldTypeNumber:    KindNumber,
	schema.FieldTypeInteger:   KindInteger,
	schema.FieldTypeBoolean:   KindSwitch,
	schema.FieldTypeDate:      KindDate,
	schema.FieldTypeDateTime:  KindDateTime,
	schema.FieldTypeEnum:      KindSelect,
	schema.FieldTypeFile:      KindFile,
	schema.FieldTypeReference: KindReference,
}

// For returns the widget descriptor for a field. It is a pure function and
// total over the taxonomy: unknown field types degrade to a disabled
// plain-text widget rather than failing.
func For(field schema.Field) Descriptor {
	label := field.Label
	if label == "" {
		label = field.Name
	}

	kind, known := kindByType[field.Type]
	if !known {
		return Descriptor{
			Kind:        KindUnsupported,
			Name:        field.Name,
			Label:       label,
			Disabled:    true,
			Placeholder: "unsupported field type: " + string(field.Type),
		}
	}

	d := Descriptor{
		Kind:     kind,
		Name:     field.Name,
		Label:    label,
		Required: field.Required,
		Default:  field.Default,
	}

	switch field.Type {
	case schema.FieldTypeEnum:
		// Malformed stored options have already degraded to nil; an empty
		// choice list renders instead of an error.
		for _, opt := range field.Options {
			d.Options = append(d.Options, Option{Label: opt, Value: opt})
		}
	case schema.FieldTypeReference:
		d.TargetSchema = field.RelatedSchema
		d.DisplayField = field.RelatedDisplayField
	}

	return d
}
