package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// fieldName maps the store's id pseudo-field onto _id.
func fieldName(f string) string {
	if f == "id" {
		return "_id"
	}
	return f
}

// buildFilter translates q's predicates into a filter document. Multiple
// predicates are combined with $and so repeated fields stay independent.
func buildFilter(q store.Query) (bson.M, error) {
	var clauses []bson.M
	for _, f := range q.Filters {
		name := fieldName(f.Field)
		switch f.Op {
		case store.OpEq:
			clauses = append(clauses, bson.M{name: f.Value})
		case store.OpNeq:
			clauses = append(clauses, bson.M{name: bson.M{"$exists": true, "$ne": f.Value}})
		case store.OpIn:
			values, ok := store.List(f.Value)
			if !ok {
				return nil, fmt.Errorf("%w: %s in needs a list", store.ErrInvalidQuery, f.Field)
			}
			clauses = append(clauses, bson.M{name: bson.M{"$in": bson.A(values)}})
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", store.ErrInvalidQuery, f.Op)
		}
	}
	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0], nil
	default:
		and := make(bson.A, len(clauses))
		for i, c := range clauses {
			and[i] = c
		}
		return bson.M{"$and": and}, nil
	}
}

func incrementUpdate(field string, delta int64) bson.M {
	return bson.M{"$inc": bson.M{fieldName(field): delta}}
}

func findOptions(q store.Query) *options.FindOptions {
	opts := options.Find()
	if len(q.Orders) > 0 {
		sort := bson.D{}
		for _, o := range q.Orders {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: fieldName(o.Field), Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

// toDocument converts a decoded BSON document, turning driver types into
// plain Go values at the boundary.
func toDocument(raw bson.M) store.Document {
	doc := store.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			doc.ID = idString(v)
			continue
		}
		doc.Fields[k] = convertValue(v)
	}
	return doc
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func convertValue(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		return x.String()
	case int32:
		return int64(x)
	case primitive.A:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = convertValue(inner)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = convertValue(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = convertValue(e.Value)
		}
		return out
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
