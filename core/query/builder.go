package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/widget"
)

// Build translates a descriptor into the wire query for the given schema.
//
// Operator defaulting: a filter without an explicit operator gets `like` for
// STRING/TEXT fields and `eq` for everything else (including fields no longer
// declared by the schema, whose type is unknowable). Two filters on the same
// field are both emitted; the server owns conflict resolution. A sort field
// that the schema no longer declares is dropped rather than erroring, since
// stale sort state after a schema edit is expected. Negative pages clamp to 0.
func Build(d Descriptor, s *schema.Schema) WireQuery {
	values := url.Values{}

	page := d.Page
	if page < 0 {
		page = 0
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("size", strconv.Itoa(d.PageSize))

	for _, f := range d.Filters {
		op := f.Operator
		if op == "" {
			op = defaultOperator(f.Field, s)
		}
		values.Add(f.Field+"."+string(op), formatValue(f.Value))
	}

	if d.SortField != "" && s.HasField(d.SortField) {
		values.Set("sortBy", d.SortField)
		dir := d.SortDirection
		if dir == "" {
			dir = SortAsc
		}
		values.Set("sortOrder", string(dir))
	}

	return WireQuery{values: values}
}

func defaultOperator(field string, s *schema.Schema) Operator {
	f, ok := s.Field(field)
	if !ok {
		return OperatorEq
	}
	switch f.Type {
	case schema.FieldTypeString, schema.FieldTypeText:
		return OperatorLike
	default:
		return OperatorEq
	}
}

// formatValue renders a filter value for the wire. Sets (for `in`) are
// comma-joined; temporal values use the canonical widget layouts.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return widget.FormatDate(v)
		}
		return widget.FormatDateTime(v)
	case []string:
		return strings.Join(v, ",")
	case []int64:
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
