package projector

import (
	"github.com/edi-spaghetti/cs50w-network/internal/dataset"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Projector shapes records for one viewer over one snapshot.
type Projector struct {
	snap   *dataset.Snapshot
	viewer domain.Caller
}

// New creates a projector.
func New(snap *dataset.Snapshot, viewer domain.Caller) *Projector {
	return &Projector{snap: snap, viewer: viewer}
}

// Project returns exactly the keys spec asks for.
func (p *Projector) Project(model *schema.Model, spec Spec, rec schema.Record) (map[string]any, error) {
	out := make(map[string]any)

	if spec.All {
		for _, f := range model.Fields() {
			v, err := p.scalar(model, f, rec)
			if err != nil {
				return nil, err
			}
			out[f.Name] = v
		}
	}

	for _, it := range spec.Items {
		if it.Relation == nil {
			f, _ := model.Field(it.Field)
			v, err := p.scalar(model, f, rec)
			if err != nil {
				return nil, err
			}
			out[it.Field] = v
			continue
		}
		v, err := p.relation(model, it.Relation, rec)
		if err != nil {
			return nil, err
		}
		out[it.Field] = v
	}
	return out, nil
}

// ProjectAll projects a list of records of one model.
func (p *Projector) ProjectAll(model *schema.Model, spec Spec, recs []schema.Record) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		v, err := p.Project(model, spec, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Projector) scalar(model *schema.Model, f schema.Field, rec schema.Record) (any, error) {
	if !f.Computed {
		return rec.Get(f.Name), nil
	}
	fn, ok := computed[model.Name+"."+f.Name]
	if !ok {
		return nil, domain.Errorf(domain.KindInternal, "no resolver for computed field %s.%s", model.Name, f.Name)
	}
	return fn(p, rec)
}

func (p *Projector) relation(model *schema.Model, rs *RelationSpec, rec schema.Record) (any, error) {
	related, err := p.snap.Related(model.Name, rs.Relation)
	if err != nil {
		return nil, err
	}
	ids := append([]int64(nil), related[rec.ID]...)

	if rs.Relation.Kind == schema.BelongsTo {
		if len(ids) == 0 {
			return nil, nil
		}
		target, ok, err := p.snap.Lookup(rs.Target.Name, ids[0])
		if err != nil || !ok {
			return nil, err
		}
		return p.Project(rs.Target, rs.Fields, target)
	}

	lookup := func(id int64) (schema.Record, bool) {
		r, ok, _ := p.snap.Lookup(rs.Target.Name, id)
		return r, ok
	}
	if _, err := p.snap.Records(rs.Target.Name); err != nil {
		return nil, err
	}
	rs.Order.SortIDs(ids, lookup)
	if rs.Limit > 0 && len(ids) > rs.Limit {
		ids = ids[:rs.Limit]
	}

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		target, ok := lookup(id)
		if !ok {
			continue
		}
		v, err := p.Project(rs.Target, rs.Fields, target)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
