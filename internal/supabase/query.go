package supabase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// applyQuery adds q's filters, ordering and limit to a select. PostgREST
// keys filters by column, so two predicates on one column are rejected
// rather than one silently replacing the other.
func applyQuery(fb *postgrest.FilterBuilder, q store.Query) (*postgrest.FilterBuilder, error) {
	seen := make(map[string]bool)
	for _, f := range q.Filters {
		if seen[f.Field] {
			return nil, fmt.Errorf("%w: more than one filter on %s", store.ErrInvalidQuery, f.Field)
		}
		seen[f.Field] = true

		switch f.Op {
		case store.OpEq, store.OpNeq:
			v, err := literal(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", store.ErrInvalidQuery, f.Field, err)
			}
			if f.Op == store.OpEq {
				fb = fb.Eq(f.Field, v)
			} else {
				fb = fb.Neq(f.Field, v)
			}
		case store.OpIn:
			values, ok := store.List(f.Value)
			if !ok {
				return nil, fmt.Errorf("%w: %s in needs a list", store.ErrInvalidQuery, f.Field)
			}
			lits := make([]string, 0, len(values))
			for _, v := range values {
				s, err := literal(v)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", store.ErrInvalidQuery, f.Field, err)
				}
				lits = append(lits, s)
			}
			fb = fb.In(f.Field, lits)
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", store.ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.Orders {
		fb = fb.Order(o.Field, &postgrest.OrderOpts{Ascending: !o.Desc})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}
	return fb, nil
}

// literal renders a filter value in PostgREST's text form.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	}
	return "", fmt.Errorf("cannot compare against %T", v)
}

// toDocument splits a row into its id and fields. Timestamp columns, named
// *_at or *At by convention, come back as text and are parsed here.
func toDocument(row map[string]any) store.Document {
	doc := store.Document{Fields: make(map[string]any, len(row))}
	for k, v := range row {
		if k == "id" {
			doc.ID = idString(v)
			continue
		}
		if s, ok := v.(string); ok && isTimeColumn(k) {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				v = t.UTC()
			}
		}
		doc.Fields[k] = v
	}
	return doc
}

func isTimeColumn(name string) bool {
	return strings.HasSuffix(name, "_at") || strings.HasSuffix(name, "At")
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
