package store

import (
	"fmt"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpIn  Op = "in"
)

// Filter is a single predicate on a field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts on a field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents from a collection. The zero value selects all.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Where returns a copy of q with an added filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an added sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

// WithLimit returns a copy of q returning at most n documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate reports the first reason q cannot be evaluated.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: filter without field", ErrInvalidQuery)
		}
		switch f.Op {
		case OpEq, OpNeq:
			if _, ok := scalar(f.Value); !ok {
				return fmt.Errorf("%w: %s %s needs a scalar value, got %T", ErrInvalidQuery, f.Field, f.Op, f.Value)
			}
		case OpIn:
			values, ok := list(f.Value)
			if !ok {
				return fmt.Errorf("%w: %s in needs a list, got %T", ErrInvalidQuery, f.Field, f.Value)
			}
			if len(values) == 0 {
				return fmt.Errorf("%w: %s in needs at least one value", ErrInvalidQuery, f.Field)
			}
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.Orders {
		if strings.TrimSpace(o.Field) == "" {
			return fmt.Errorf("%w: order without field", ErrInvalidQuery)
		}
	}
	return nil
}

// String renders q for logs.
func (q Query) String() string {
	var parts []string
	for _, f := range q.Filters {
		parts = append(parts, fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value))
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("order %s %s", o.Field, dir))
	}
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit %d", q.Limit))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ", ")
}

// List returns the values of an In filter as a slice.
func List(v any) ([]any, bool) {
	return list(v)
}

func list(v any) ([]any, bool) {
	switch lv := v.(type) {
	case []any:
		return lv, true
	case []string:
		out := make([]any, len(lv))
		for i, s := range lv {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(lv))
		for i, n := range lv {
			out[i] = n
		}
		return out, true
	case []bool:
		out := make([]any, len(lv))
		for i, b := range lv {
			out[i] = b
		}
		return out, true
	}
	return nil, false
}
