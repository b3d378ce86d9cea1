package widget

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/avasel/go-facet/core/schema"
)

// Canonical on-the-wire layouts. DATE carries no time component; DATETIME is
// a point in time in RFC 3339.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// Decode converts a wire value (as delivered inside a record's data map) into
// the in-memory representation for the field's type: time.Time for
// DATE/DATETIME, int64 for INTEGER and REFERENCE, float64 for NUMBER, bool
// for BOOLEAN, string otherwise. nil passes through. Values of an unknown
// field type pass through unchanged.
func Decode(field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case schema.FieldTypeString, schema.FieldTypeText, schema.FieldTypeEnum, schema.FieldTypeFile:
		return decodeString(field, value)
	case schema.FieldTypeNumber:
		return decodeFloat(field, value)
	case schema.FieldTypeInteger, schema.FieldTypeReference:
		return decodeInt(field, value)
	case schema.FieldTypeBoolean:
		return decodeBool(field, value)
	case schema.FieldTypeDate:
		return ParseDate(value)
	case schema.FieldTypeDateTime:
		return ParseDateTime(value)
	default:
		return value, nil
	}
}

// Encode converts an in-memory value back to its wire representation. It is
// the inverse of Decode: for every supported type, Decode(Encode(v)) yields a
// value equal to v under the type's equality.
func Encode(field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case schema.FieldTypeDate:
		t, err := ParseDate(value)
		if err != nil {
			return nil, err
		}
		return FormatDate(t), nil
	case schema.FieldTypeDateTime:
		t, err := ParseDateTime(value)
		if err != nil {
			return nil, err
		}
		return FormatDateTime(t), nil
	default:
		// Non-temporal types share a wire and in-memory shape; normalize
		// through Decode so loosely-typed form input still encodes cleanly.
		return Decode(field, value)
	}
}

// ParseDate converts a wire date into a time.Time normalized to UTC midnight.
// RFC 3339 timestamps are accepted and truncated to their date part.
func ParseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		if t, err := time.Parse(DateLayout, v); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(DateTimeLayout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", v, DateLayout)
	default:
		return time.Time{}, fmt.Errorf("invalid date value of type %T", value)
	}
}

// FormatDate renders a date in the canonical wire layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateTime converts a wire timestamp into a time.Time.
func ParseDateTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(DateTimeLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid datetime %q: expected RFC 3339", v)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("invalid datetime value of type %T", value)
	}
}

// FormatDateTime renders a timestamp in the canonical wire layout, normalized
// to UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// DecodeRecord applies Decode across a schema's declared fields, producing the
// in-memory values an edit form is populated with. Keys for fields the schema
// no longer declares are ignored, not errors. A value that fails to decode is
// reported but does not abort the remaining fields.
func DecodeRecord(s *schema.Schema, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	var firstErr error
	for _, f := range s.Fields {
		raw, exists := data[f.Name]
		if !exists {
			continue
		}
		v, err := Decode(f, raw)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("field %s: %w", f.Name, err)
			}
			out[f.Name] = raw
			continue
		}
		out[f.Name] = v
	}
	return out, firstErr
}

// EncodeValues applies Encode across a schema's declared fields, producing the
// wire payload for a create or update submit.
func EncodeValues(s *schema.Schema, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for _, f := range s.Fields {
		v, exists := values[f.Name]
		if !exists {
			continue
		}
		encoded, err := Encode(f, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = encoded
	}
	return out, nil
}

func decodeString(field schema.Field, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string for %s field, got %T", field.Type, value)
	}
	return s, nil
}

func decodeFloat(field schema.Field, value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected number for %s field, got %T", field.Type, value)
	}
}

func decodeInt(field schema.Field, value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		// JSON numbers arrive as float64; only integral values qualify.
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("expected whole number, got %v", v)
		}
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected whole number, got %q", v)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("expected whole number for %s field, got %T", field.Type, value)
	}
}

func decodeBool(field schema.Field, value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected boolean for %s field, got %T", field.Type, value)
	}
}
