// Package projector turns records into the nested response shape a client
// asked for.
//
// A field spec is one of:
//
//	true, "*" or null        every scalar field, stored and computed
//	"id,username"            the named scalar fields
//	["id", {"posts": S}]     scalar names and relations, where S is itself a
//	                         field spec or {"fields": S, "order": O, "limit": N}
package projector

import (
	"sort"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/order"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Spec is a parsed field spec. When All is set Items holds only the
// relations listed next to "*".
type Spec struct {
	All   bool
	Items []Item
}

// Item is either a scalar field name or a relation.
type Item struct {
	Field    string
	Relation *RelationSpec
}

// RelationSpec selects the related records of one relation.
type RelationSpec struct {
	Relation schema.Relation
	Target   *schema.Model
	Fields   Spec
	Order    order.By
	// Limit caps the number of related records; zero means no cap.
	Limit int
}

// AllFields is the spec that projects every scalar field.
var AllFields = Spec{All: true}

func invalidField(format string, args ...any) error {
	return domain.Errorf(domain.KindInvalidField, format, args...)
}

// Parse validates raw against model.
func Parse(reg *schema.Registry, model *schema.Model, raw any) (Spec, error) {
	switch v := raw.(type) {
	case nil:
		return AllFields, nil
	case bool:
		if !v {
			return Spec{}, invalidField("fields must not be false")
		}
		return AllFields, nil
	case string:
		if strings.TrimSpace(v) == "*" {
			return AllFields, nil
		}
		var items []any
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				items = append(items, name)
			}
		}
		if len(items) == 0 {
			return AllFields, nil
		}
		return parseList(reg, model, items)
	case []any:
		return parseList(reg, model, v)
	case map[string]any:
		return parseList(reg, model, []any{v})
	}
	return Spec{}, invalidField("fields must be true, \"*\", a string or a list")
}

func parseList(reg *schema.Registry, model *schema.Model, list []any) (Spec, error) {
	var spec Spec
	seen := make(map[string]bool)

	for _, item := range list {
		switch v := item.(type) {
		case string:
			name := strings.TrimSpace(v)
			if name == "*" {
				spec.All = true
				continue
			}
			if _, ok := model.Relation(name); ok {
				return Spec{}, invalidField("%s.%s is a relation, request it as {%q: <fields>}", model.Name, name, name)
			}
			if _, ok := model.Field(name); !ok {
				return Spec{}, invalidField("%s has no field %q", model.Name, name)
			}
			if !seen[name] {
				seen[name] = true
				spec.Items = append(spec.Items, Item{Field: name})
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, name := range keys {
				rs, err := parseRelation(reg, model, name, v[name])
				if err != nil {
					return Spec{}, err
				}
				if !seen[name] {
					seen[name] = true
					spec.Items = append(spec.Items, Item{Field: name, Relation: rs})
				}
			}
		default:
			return Spec{}, invalidField("field list entries must be names or relation objects")
		}
	}

	if spec.All {
		// Relations stay; scalars are covered by All.
		kept := spec.Items[:0]
		for _, it := range spec.Items {
			if it.Relation != nil {
				kept = append(kept, it)
			}
		}
		spec.Items = kept
	}
	return spec, nil
}

func parseRelation(reg *schema.Registry, model *schema.Model, name string, raw any) (*RelationSpec, error) {
	rel, ok := model.Relation(name)
	if !ok {
		if _, isField := model.Field(name); isField {
			return nil, invalidField("%s.%s is a scalar field, not a relation", model.Name, name)
		}
		return nil, invalidField("%s has no relation %q", model.Name, name)
	}
	target, err := reg.Model(rel.Target)
	if err != nil {
		return nil, err
	}

	rs := &RelationSpec{Relation: rel, Target: target}

	opts, isOpts := raw.(map[string]any)
	if !isOpts {
		fields, err := Parse(reg, target, raw)
		if err != nil {
			return nil, err
		}
		rs.Fields = fields
		return rs, nil
	}

	for key := range opts {
		switch key {
		case "fields", "order", "limit":
		default:
			return nil, invalidField("%s.%s: unknown option %q", model.Name, name, key)
		}
	}
	if rs.Fields, err = Parse(reg, target, opts["fields"]); err != nil {
		return nil, err
	}
	if rs.Order, err = order.Parse(target, opts["order"]); err != nil {
		return nil, err
	}
	if raw, ok := opts["limit"]; ok && raw != nil {
		limit, err := schema.CoerceInt(raw)
		if err != nil || limit < 1 {
			return nil, invalidField("%s.%s: limit must be a positive integer", model.Name, name)
		}
		rs.Limit = int(limit)
	}
	return rs, nil
}
