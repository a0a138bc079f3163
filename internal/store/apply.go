package store

import (
	"sort"
	"strings"
	"time"
)

// Apply evaluates q against docs in memory. Backends that cannot push a
// query down use it on the full collection. docs is not modified.
func Apply(docs []Document, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Matches(d, q.Filters) {
			out = append(out, d)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compareValues(out[i].Get(o.Field), out[j].Get(o.Field))
				if c == 0 {
					continue
				}
				if o.Desc {
					// missing values stay last in both directions
					if isMissing(out[i].Get(o.Field)) || isMissing(out[j].Get(o.Field)) {
						return c < 0
					}
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Matches reports whether d satisfies every filter.
func Matches(d Document, filters []Filter) bool {
	for _, f := range filters {
		v := d.Get(f.Field)
		switch f.Op {
		case OpEq:
			if !equalValues(v, f.Value) {
				return false
			}
		case OpNeq:
			if isMissing(v) || equalValues(v, f.Value) {
				return false
			}
		case OpIn:
			values, _ := list(f.Value)
			found := false
			for _, want := range values {
				if equalValues(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// scalar maps numeric kinds onto float64 so values from different decoders
// compare equal.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, true
	case time.Time:
		return x, true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return nil, false
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	_, ok := scalar(v)
	return !ok
}

func equalValues(a, b any) bool {
	as, aok := scalar(a)
	bs, bok := scalar(b)
	if !aok || !bok {
		return false
	}
	if at, ok := as.(time.Time); ok {
		bt, ok := bs.(time.Time)
		return ok && at.Equal(bt)
	}
	return as == bs
}

// typeRank orders values of different types: booleans, numbers, times,
// strings, then missing or composite values.
func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case float64:
		return 1
	case time.Time:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	as, aok := scalar(a)
	bs, bok := scalar(b)
	if !aok {
		as = nil
	}
	if !bok {
		bs = nil
	}
	ra, rb := typeRank(as), typeRank(bs)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := as.(type) {
	case bool:
		y := bs.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := bs.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case time.Time:
		return x.Compare(bs.(time.Time))
	case string:
		return strings.Compare(x, bs.(string))
	}
	return 0
}
