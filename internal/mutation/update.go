package mutation

import (
	"context"
	"sort"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/dataset"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Mode says whether the ids given for a relation are added or removed.
type Mode string

const (
	ModeAdd    Mode = "add"
	ModeRemove Mode = "remove"
)

// UpdateRequest is a decoded update body. The mode for a relation applies
// to every entry of the batch; one request cannot both add and remove on the
// same relation.
type UpdateRequest struct {
	Data        []map[string]any `json:"data"`
	MultiOption map[string]any   `json:"multiOption"`
}

type entry struct {
	index   int
	model   *schema.Model
	id      int64
	scalars map[string]any
	edits   []edgeEdit
}

type edgeEdit struct {
	edge schema.Edge
	pair schema.Pair
	mode Mode
}

// Update applies a batch of patches. Every entry is validated and
// authorized before anything is written; each entry then commits in its own
// transaction. A storage failure stops the batch and leaves earlier entries
// committed. The result holds each entry's record as it is after its write.
func (e *Executor) Update(ctx context.Context, caller domain.Caller, req UpdateRequest) ([]map[string]any, error) {
	if !caller.Authenticated() {
		return nil, domain.Errorf(domain.KindForbidden, "authentication required")
	}
	if len(req.Data) == 0 {
		return nil, domain.Errorf(domain.KindValidation, "data must hold at least one entry")
	}

	modes, err := e.parseModes(req.MultiOption)
	if err != nil {
		return nil, err
	}

	entries := make([]*entry, 0, len(req.Data))
	for i, raw := range req.Data {
		en, err := e.parseEntry(i, raw, modes, caller)
		if err != nil {
			return nil, err
		}
		entries = append(entries, en)
	}

	if err := e.authorize(ctx, caller, entries); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(entries))
	for _, en := range entries {
		rec, changed, err := e.apply(ctx, caller, en)
		if err != nil {
			return nil, err
		}
		if e.observer != nil {
			for _, ed := range changed {
				e.observer.EdgeChanged(ctx, ed.edge, ed.pair)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Executor) parseModes(raw map[string]any) (map[string]Mode, error) {
	modes := make(map[string]Mode, len(raw))
	for field, v := range raw {
		s, _ := v.(string)
		mode := Mode(strings.ToLower(strings.TrimSpace(s)))
		if mode != ModeAdd && mode != ModeRemove {
			return nil, domain.Errorf(domain.KindValidation, "multiOption %q must be %q or %q", field, ModeAdd, ModeRemove)
		}
		if !e.isEdgeRelation(field) {
			return nil, domain.Errorf(domain.KindValidation, "multiOption %q is not an editable relation", field)
		}
		modes[field] = mode
	}
	return modes, nil
}

func (e *Executor) isEdgeRelation(name string) bool {
	for _, m := range e.reg.Models() {
		model, _ := e.reg.Model(m)
		if rel, ok := model.Relation(name); ok && rel.Kind == schema.ManyToMany {
			return true
		}
	}
	return false
}

func (e *Executor) parseEntry(index int, raw map[string]any, modes map[string]Mode, caller domain.Caller) (*entry, error) {
	name, _ := raw["model"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Errorf(domain.KindMissingModel, "entry %d: model is required", index)
	}
	model, err := e.reg.Model(name)
	if err != nil {
		return nil, err
	}
	rawID, ok := raw["id"]
	if !ok {
		return nil, domain.Errorf(domain.KindValidation, "entry %d: id is required", index)
	}
	id, err := schema.CoerceInt(rawID)
	if err != nil {
		return nil, domain.Errorf(domain.KindValidation, "entry %d: id: %v", index, err)
	}

	en := &entry{index: index, model: model, id: id, scalars: make(map[string]any)}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k != "model" && k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if rel, ok := model.Relation(k); ok {
			edits, err := e.parseEdits(index, model, rel, id, raw[k], modes, caller)
			if err != nil {
				return nil, err
			}
			en.edits = append(en.edits, edits...)
			continue
		}

		f, ok := model.Field(k)
		if !ok {
			return nil, domain.Errorf(domain.KindInvalidField, "entry %d: %s has no field %q", index, model.Name, k)
		}
		if !f.Mutable {
			return nil, domain.Errorf(domain.KindValidation, "entry %d: %s.%s is read-only", index, model.Name, k)
		}
		v, err := checkValue(f, raw[k])
		if err != nil {
			return nil, domain.Errorf(domain.KindValidation, "entry %d: %s", index, domain.MessageOf(err))
		}
		en.scalars[k] = v
	}

	if len(en.scalars) == 0 && len(en.edits) == 0 {
		return nil, domain.Errorf(domain.KindValidation, "entry %d: nothing to update", index)
	}
	return en, nil
}

func (e *Executor) parseEdits(index int, model *schema.Model, rel schema.Relation, id int64, raw any, modes map[string]Mode, caller domain.Caller) ([]edgeEdit, error) {
	if rel.Kind != schema.ManyToMany {
		return nil, domain.Errorf(domain.KindValidation, "entry %d: %s.%s cannot be edited", index, model.Name, rel.Name)
	}
	mode, ok := modes[rel.Name]
	if !ok {
		return nil, domain.Errorf(domain.KindValidation, "entry %d: %s needs a multiOption mode", index, rel.Name)
	}
	edge, _ := e.reg.Edge(rel.Edge)

	var remotes []any
	if list, ok := raw.([]any); ok {
		remotes = list
	} else {
		remotes = []any{raw}
	}

	edits := make([]edgeEdit, 0, len(remotes))
	for _, r := range remotes {
		remote, err := schema.CoerceInt(r)
		if err != nil {
			return nil, domain.Errorf(domain.KindValidation, "entry %d: %s: %v", index, rel.Name, err)
		}
		p := schema.PairFrom(rel.Side, id, remote)
		if p.Get(edge.Owner) != caller.ID {
			return nil, domain.Errorf(domain.KindForbidden, "entry %d: cannot edit another user's %s", index, edge.Name)
		}
		if edge.NoSelf && p.Left == p.Right {
			return nil, domain.Errorf(domain.KindValidation, "entry %d: cannot %s yourself", index, edge.Name)
		}
		edits = append(edits, edgeEdit{edge: edge, pair: p, mode: mode})
	}
	return edits, nil
}

// authorize checks, against one snapshot, that every record an entry
// touches exists and that scalar edits come from the record owner.
func (e *Executor) authorize(ctx context.Context, caller domain.Caller, entries []*entry) error {
	return e.store.View(ctx, func(r repository.Reader) error {
		snap := dataset.New(r)
		for _, en := range entries {
			rec, ok, err := snap.Lookup(en.model.Name, en.id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.Errorf(domain.KindNotFound, "entry %d: %s %d does not exist", en.index, en.model.Name, en.id)
			}
			if len(en.scalars) > 0 && rec.Int(en.model.Owner) != caller.ID {
				return domain.Errorf(domain.KindForbidden, "entry %d: only the owner may edit this %s", en.index, en.model.Name)
			}
			for _, ed := range en.edits {
				for _, side := range []schema.Side{schema.Left, schema.Right} {
					m, id := ed.edge.ModelOf(side), ed.pair.Get(side)
					if _, ok, err := snap.Lookup(m, id); err != nil {
						return err
					} else if !ok && ed.mode == ModeAdd {
						return domain.Errorf(domain.KindNotFound, "entry %d: %s %d does not exist", en.index, m, id)
					}
				}
			}
		}
		return nil
	})
}

// apply commits one entry. Counter deltas are applied only when the edge
// write changed a row, in the same transaction as that write.
func (e *Executor) apply(ctx context.Context, caller domain.Caller, en *entry) (map[string]any, []edgeEdit, error) {
	var (
		out     map[string]any
		changed []edgeEdit
	)
	err := e.store.Atomic(ctx, func(tx repository.Tx) error {
		changed = changed[:0]
		if _, err := tx.Record(en.model.Name, en.id); err != nil {
			return err
		}

		for _, ed := range en.edits {
			var (
				ok    bool
				err   error
				delta int64
			)
			switch ed.mode {
			case ModeAdd:
				remote := ed.pair.Get(ed.edge.Owner.Other())
				if _, err := tx.Record(ed.edge.ModelOf(ed.edge.Owner.Other()), remote); err != nil {
					return err
				}
				ok, err = tx.InsertPair(ed.edge.Name, ed.pair)
				delta = 1
			case ModeRemove:
				ok, err = tx.DeletePair(ed.edge.Name, ed.pair)
				delta = -1
			}
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for _, c := range ed.edge.Counters {
				if err := tx.AddToCounter(c.Model, ed.pair.Get(c.Side), c.Field, delta); err != nil {
					return err
				}
			}
			changed = append(changed, ed)
		}

		if len(en.scalars) > 0 {
			if err := tx.Update(en.model.Name, en.id, en.scalars); err != nil {
				return err
			}
		}

		var err error
		out, err = project(tx, en.model, en.id, caller)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, changed, nil
}
