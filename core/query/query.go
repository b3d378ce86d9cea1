// Package query translates declarative search-form state into the wire
// format of the generic paginated-search endpoint. A Descriptor is what a
// search form holds; a WireQuery is the flattened filter/sort/page
// representation the data service consumes.
package query

import (
	"net/url"
)

// Operator is the fixed set of comparison operators the search endpoint
// understands. The string value doubles as the wire suffix in
// `fieldName.operatorSuffix=value` pairs.
type Operator string

const (
	OperatorEq   Operator = "eq"   // equals
	OperatorNeq  Operator = "neq"  // not equals
	OperatorGt   Operator = "gt"   // greater
	OperatorGte  Operator = "gte"  // greater or equal
	OperatorLt   Operator = "lt"   // less
	OperatorLte  Operator = "lte"  // less or equal
	OperatorLike Operator = "like" // substring containment
	OperatorIn   Operator = "in"   // set membership, comma-joined
)

var knownOperators = map[Operator]struct{}{
	OperatorEq:   {},
	OperatorNeq:  {},
	OperatorGt:   {},
	OperatorGte:  {},
	OperatorLt:   {},
	OperatorLte:  {},
	OperatorLike: {},
	OperatorIn:   {},
}

// IsKnown reports whether the operator belongs to the fixed wire set.
func (o Operator) IsKnown() bool {
	_, ok := knownOperators[o]
	return ok
}

// SortDirection specifies the direction for sorting.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Filter is one search condition: field, operator, value. Operator may be
// empty; Build then applies the field type's default.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// Descriptor is the declarative state of a search form: filters in the order
// the user added them, an optional sort, and the page window. Page is 0-based.
type Descriptor struct {
	Page          int
	PageSize      int
	Filters       []Filter
	SortField     string
	SortDirection SortDirection
}

// WireQuery is the encoded form sent to the generic search endpoint:
// `fieldName.operatorSuffix=value` pairs plus page, size, sortBy, sortOrder.
type WireQuery struct {
	values url.Values
}

// Values exposes the underlying pairs, e.g. for an HTTP adapter to append as
// a query string.
func (w WireQuery) Values() url.Values {
	return w.values
}

// Encode renders the query string. Keys are emitted in sorted order, making
// the encoding deterministic and testable against the bit-exact contract.
func (w WireQuery) Encode() string {
	return w.values.Encode()
}

// Get returns the first value for a key, mirroring url.Values.
func (w WireQuery) Get(key string) string {
	return w.values.Get(key)
}
