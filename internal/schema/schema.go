// Package schema is the static registry of models served by the query
// protocol: their scalar fields, their relations, and the edges that back
// many-to-many relations. It is built once at startup and read-only after.
package schema

import (
	"sort"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
)

// Kind is the value type of a scalar field.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindTime
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// RelationKind is the cardinality of a relation.
type RelationKind string

const (
	BelongsTo  RelationKind = "belongs-to"
	HasMany    RelationKind = "has-many"
	ManyToMany RelationKind = "many-to-many"
)

// Field is a scalar field of a model.
type Field struct {
	Name string
	Kind Kind
	// Computed fields are derived per viewer and never stored.
	Computed bool
	// Creatable fields may be supplied in a create payload.
	Creatable bool
	// Mutable fields may be changed by the record owner through update.
	Mutable  bool
	Required bool
	// MaxLen bounds string length in runes; zero means unbounded.
	MaxLen int
}

// Relation is a named association from one model to another.
type Relation struct {
	Name   string
	Kind   RelationKind
	Target string
	// Column is the foreign key column: on the owning model for BelongsTo,
	// on Target for HasMany.
	Column string
	// Edge and Side describe a ManyToMany relation: the record sits on Side
	// of Edge and related records on the opposite side.
	Edge string
	Side Side
}

// Model describes one entity type.
type Model struct {
	Name string
	// Owner names the field holding the id of the user that owns a record.
	Owner     string
	fields    []Field
	relations []Relation
	fieldIdx  map[string]int
	relIdx    map[string]int
}

// NewModel builds a model from its fields and relations.
func NewModel(name, owner string, fields []Field, relations []Relation) *Model {
	m := &Model{
		Name:      name,
		Owner:     owner,
		fields:    fields,
		relations: relations,
		fieldIdx:  make(map[string]int, len(fields)),
		relIdx:    make(map[string]int, len(relations)),
	}
	for i, f := range fields {
		m.fieldIdx[f.Name] = i
	}
	for i, r := range relations {
		m.relIdx[r.Name] = i
	}
	return m
}

// Field looks up a scalar field.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.fieldIdx[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// Relation looks up a relation.
func (m *Model) Relation(name string) (Relation, bool) {
	i, ok := m.relIdx[name]
	if !ok {
		return Relation{}, false
	}
	return m.relations[i], true
}

// Fields returns the scalar fields in declaration order.
func (m *Model) Fields() []Field {
	return m.fields
}

// Relations returns the relations in declaration order.
func (m *Model) Relations() []Relation {
	return m.relations
}

// ScalarNames returns the names of all scalar fields, stored and computed.
func (m *Model) ScalarNames() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Name
	}
	return names
}

// Registry holds every model and edge.
type Registry struct {
	models map[string]*Model
	edges  map[string]Edge
}

// NewRegistry builds a registry. It panics when a relation points at a
// model or edge that is not registered.
func NewRegistry(models []*Model, edges []Edge) *Registry {
	r := &Registry{
		models: make(map[string]*Model, len(models)),
		edges:  make(map[string]Edge, len(edges)),
	}
	for _, m := range models {
		r.models[m.Name] = m
	}
	for _, e := range edges {
		r.edges[e.Name] = e
	}
	for _, m := range models {
		for _, rel := range m.relations {
			if _, ok := r.models[rel.Target]; !ok {
				panic("schema: relation " + m.Name + "." + rel.Name + " targets unknown model " + rel.Target)
			}
			if rel.Kind == ManyToMany {
				if _, ok := r.edges[rel.Edge]; !ok {
					panic("schema: relation " + m.Name + "." + rel.Name + " uses unknown edge " + rel.Edge)
				}
			}
		}
	}
	return r
}

// Model returns the named model or an UnknownModel error.
func (r *Registry) Model(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, domain.Errorf(domain.KindUnknownModel, "model of name %q does not exist", name)
	}
	return m, nil
}

// Edge returns the named edge definition.
func (r *Registry) Edge(name string) (Edge, bool) {
	e, ok := r.edges[name]
	return e, ok
}

// Models returns the registered model names, sorted.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns the registered edges, sorted by name.
func (r *Registry) Edges() []Edge {
	edges := make([]Edge, 0, len(r.edges))
	for _, e := range r.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Name < edges[j].Name })
	return edges
}
