// Package filter parses filter expressions sent by clients and compiles them
// into predicates over records.
//
// A filter is a list of clause objects. Every clause must hold:
//
//	[{"user": {"in": [1, 2]}}, {"timestamp": {"gte": "2024-01-01T00:00:00Z"}}]
//
// A bare value is shorthand for "is": {"username": "alice"}. On a relation a
// list of objects is a nested filter over the related model:
//
//	[{"user": [{"username": "alice"}]}]
package filter

import (
	"fmt"
	"sort"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Operator is a comparison applied by a clause.
type Operator string

const (
	OpIs  Operator = "is"
	OpNot Operator = "not"
	OpIn  Operator = "in"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
)

func (op Operator) valid() bool {
	switch op {
	case OpIs, OpNot, OpIn, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Predicate reports whether a record matches.
type Predicate func(rec schema.Record) bool

// MatchAll matches every record.
func MatchAll(schema.Record) bool { return true }

// Source supplies the data relation clauses need.
type Source interface {
	Records(model string) ([]schema.Record, error)
	Related(model string, rel schema.Relation) (map[int64][]int64, error)
}

// Expr is a parsed, validated filter over one model.
type Expr struct {
	model   *schema.Model
	clauses []clause
}

type clause struct {
	index    int
	field    string
	op       Operator
	value    any     // scalar clauses: coerced value, or []any for "in"
	ids      []int64 // relation clauses
	relation *schema.Relation
	nested   *Expr
}

// Empty reports whether the filter matches every record.
func (e *Expr) Empty() bool {
	return e == nil || len(e.clauses) == 0
}

func invalid(index int, field, format string, args ...any) error {
	return domain.Errorf(domain.KindInvalidFilter, "filter %d: field %q: %s", index, field, fmt.Sprintf(format, args...))
}

// Parse validates raw against model. raw is the decoded JSON value of the
// filters key: null, a list of clause objects, or a single clause object.
func Parse(reg *schema.Registry, model *schema.Model, raw any) (*Expr, error) {
	expr := &Expr{model: model}

	var items []any
	switch v := raw.(type) {
	case nil:
		return expr, nil
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, domain.Errorf(domain.KindInvalidFilter, "filters must be a list of objects")
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, domain.Errorf(domain.KindInvalidFilter, "filter %d: expected an object", i)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, field := range keys {
			clauses, err := parseField(reg, model, i, field, obj[field])
			if err != nil {
				return nil, err
			}
			expr.clauses = append(expr.clauses, clauses...)
		}
	}
	return expr, nil
}

func parseField(reg *schema.Registry, model *schema.Model, index int, field string, raw any) ([]clause, error) {
	if rel, ok := model.Relation(field); ok {
		return parseRelation(reg, index, rel, raw)
	}

	f, ok := model.Field(field)
	if !ok {
		return nil, invalid(index, field, "%s has no such field", model.Name)
	}
	if f.Computed {
		return nil, invalid(index, field, "computed fields cannot be filtered")
	}

	ops, ok := raw.(map[string]any)
	if !ok {
		ops = map[string]any{string(OpIs): raw}
	}

	out := make([]clause, 0, len(ops))
	for _, name := range sortedKeys(ops) {
		op := Operator(name)
		if !op.valid() {
			return nil, invalid(index, field, "unknown operator %q", name)
		}
		c := clause{index: index, field: field, op: op}
		if op == OpIn {
			list, ok := ops[name].([]any)
			if !ok {
				return nil, invalid(index, field, "in expects a list")
			}
			values := make([]any, len(list))
			for j, item := range list {
				v, err := schema.Coerce(f, item)
				if err != nil {
					return nil, invalid(index, field, "%v", err)
				}
				values[j] = v
			}
			c.value = values
		} else {
			v, err := schema.Coerce(f, ops[name])
			if err != nil {
				return nil, invalid(index, field, "%v", err)
			}
			c.value = v
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRelation(reg *schema.Registry, index int, rel schema.Relation, raw any) ([]clause, error) {
	target, err := reg.Model(rel.Target)
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []any:
		if isIDList(v) {
			ids, err := toIDs(v)
			if err != nil {
				return nil, invalid(index, rel.Name, "%v", err)
			}
			return []clause{{index: index, field: rel.Name, op: OpIn, ids: ids, relation: &rel}}, nil
		}
		nested, err := Parse(reg, target, v)
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidFilter, "filter %d: field %q: %s", index, rel.Name, domain.MessageOf(err))
		}
		return []clause{{index: index, field: rel.Name, op: OpIn, nested: nested, relation: &rel}}, nil
	case map[string]any:
		out := make([]clause, 0, len(v))
		for _, name := range sortedKeys(v) {
			op := Operator(name)
			switch op {
			case OpIs, OpNot:
				id, err := schema.CoerceInt(v[name])
				if err != nil {
					return nil, invalid(index, rel.Name, "%v", err)
				}
				out = append(out, clause{index: index, field: rel.Name, op: op, ids: []int64{id}, relation: &rel})
			case OpIn:
				list, ok := v[name].([]any)
				if !ok {
					return nil, invalid(index, rel.Name, "in expects a list of ids")
				}
				ids, err := toIDs(list)
				if err != nil {
					return nil, invalid(index, rel.Name, "%v", err)
				}
				out = append(out, clause{index: index, field: rel.Name, op: op, ids: ids, relation: &rel})
			default:
				if op.valid() {
					return nil, invalid(index, rel.Name, "operator %q does not apply to relations", name)
				}
				return nil, invalid(index, rel.Name, "unknown operator %q", name)
			}
		}
		return out, nil
	default:
		id, err := schema.CoerceInt(raw)
		if err != nil {
			return nil, invalid(index, rel.Name, "%v", err)
		}
		return []clause{{index: index, field: rel.Name, op: OpIs, ids: []int64{id}, relation: &rel}}, nil
	}
}

// isIDList reports whether a list holds ids rather than nested clauses.
func isIDList(list []any) bool {
	for _, item := range list {
		if _, ok := item.(map[string]any); ok {
			return false
		}
	}
	return len(list) > 0
}

func toIDs(list []any) ([]int64, error) {
	ids := make([]int64, len(list))
	for i, item := range list {
		id, err := schema.CoerceInt(item)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
