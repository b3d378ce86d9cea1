// Package render projects a schema and its records into display-ready
// structures: table columns, form field descriptors, and formatted cell
// values. It is presentation-framework agnostic; a terminal UI and a web
// template consume the same output.
package render

import (
	"fmt"

	"github.com/avasel/go-facet/core/reference"
	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/widget"
)

// Column describes one table column derived from a schema field.
type Column struct {
	Field    schema.Field
	Title    string
	Sortable bool
}

// Columns derives the table columns for a schema, in declared field order.
// Reference and file columns are not sortable; the server sorts them by raw
// identifier, which reads as random to a user.
func Columns(s *schema.Schema) []Column {
	cols := make([]Column, 0, len(s.Fields))
	for _, f := range s.Fields {
		title := f.Label
		if title == "" {
			title = f.Name
		}
		cols = append(cols, Column{
			Field:    f,
			Title:    title,
			Sortable: f.Type != schema.FieldTypeReference && f.Type != schema.FieldTypeFile,
		})
	}
	return cols
}

// FormFields derives the widget descriptors for a create or edit form, in
// declared field order.
func FormFields(s *schema.Schema) []widget.Descriptor {
	fields := make([]widget.Descriptor, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, widget.For(f))
	}
	return fields
}

// Cell formats one field of a record for table display. Reference fields
// render their cached display label when resolution has settled, and the raw
// identifier until then. A nil cache is tolerated for non-reference cells.
func Cell(f schema.Field, rec schema.Record, cache *reference.Cache) string {
	value := rec.Data[f.Name]
	if value == nil {
		return ""
	}

	switch f.Type {
	case schema.FieldTypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	case schema.FieldTypeDate:
		if t, err := widget.ParseDate(value); err == nil {
			return widget.FormatDate(t)
		}
	case schema.FieldTypeDateTime:
		if t, err := widget.ParseDateTime(value); err == nil {
			return widget.FormatDateTime(t)
		}
	case schema.FieldTypeNumber:
		if n, ok := value.(float64); ok {
			return trimFloat(n)
		}
	case schema.FieldTypeReference:
		return reference.DisplayLabel(cache, f.RelatedSchema, value)
	}

	return fmt.Sprint(value)
}

// Row formats every field of a record, keyed by field name.
func Row(s *schema.Schema, rec schema.Record, cache *reference.Cache) map[string]string {
	out := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = Cell(f, rec, cache)
	}
	return out
}

// trimFloat renders a float without a trailing ".000000" tail, keeping whole
// numbers whole.
func trimFloat(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
