// Package dataset caches what one request reads from storage so that the
// filter evaluator and the projector see a single consistent view and never
// load a table or an edge more than once.
package dataset

import (
	"sort"

	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Snapshot is a read-through cache over a repository.Reader. It is owned
// by a single request and is not safe for concurrent use.
type Snapshot struct {
	reader  repository.Reader
	records map[string][]schema.Record
	byID    map[string]map[int64]schema.Record
	pairs   map[string][]schema.Pair
	pairSet map[string]map[schema.Pair]struct{}
	related map[relationKey]map[int64][]int64
}

type relationKey struct {
	model    string
	relation string
}

// New creates a snapshot reading through r.
func New(r repository.Reader) *Snapshot {
	return &Snapshot{
		reader:  r,
		records: make(map[string][]schema.Record),
		byID:    make(map[string]map[int64]schema.Record),
		pairs:   make(map[string][]schema.Pair),
		pairSet: make(map[string]map[schema.Pair]struct{}),
		related: make(map[relationKey]map[int64][]int64),
	}
}

// Records returns every record of model in id order.
func (s *Snapshot) Records(model string) ([]schema.Record, error) {
	if recs, ok := s.records[model]; ok {
		return recs, nil
	}
	recs, err := s.reader.Records(model)
	if err != nil {
		return nil, err
	}
	idx := make(map[int64]schema.Record, len(recs))
	for _, rec := range recs {
		idx[rec.ID] = rec
	}
	s.records[model] = recs
	s.byID[model] = idx
	return recs, nil
}

// Lookup returns one record by id.
func (s *Snapshot) Lookup(model string, id int64) (schema.Record, bool, error) {
	if _, err := s.Records(model); err != nil {
		return schema.Record{}, false, err
	}
	rec, ok := s.byID[model][id]
	return rec, ok, nil
}

// Pairs returns every instance of an edge.
func (s *Snapshot) Pairs(edge string) ([]schema.Pair, error) {
	if pairs, ok := s.pairs[edge]; ok {
		return pairs, nil
	}
	pairs, err := s.reader.Pairs(edge)
	if err != nil {
		return nil, err
	}
	set := make(map[schema.Pair]struct{}, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	s.pairs[edge] = pairs
	s.pairSet[edge] = set
	return pairs, nil
}

// HasPair reports whether an edge instance exists.
func (s *Snapshot) HasPair(edge string, p schema.Pair) (bool, error) {
	if _, err := s.Pairs(edge); err != nil {
		return false, err
	}
	_, ok := s.pairSet[edge][p]
	return ok, nil
}

// Related maps each record id of model to the ids of its related records
// under rel, sorted ascending. Records without related ids are absent.
func (s *Snapshot) Related(model string, rel schema.Relation) (map[int64][]int64, error) {
	key := relationKey{model: model, relation: rel.Name}
	if m, ok := s.related[key]; ok {
		return m, nil
	}

	out := make(map[int64][]int64)
	switch rel.Kind {
	case schema.BelongsTo:
		recs, err := s.Records(model)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			out[rec.ID] = []int64{rec.Int(rel.Column)}
		}
	case schema.HasMany:
		targets, err := s.Records(rel.Target)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			owner := t.Int(rel.Column)
			out[owner] = append(out[owner], t.ID)
		}
	case schema.ManyToMany:
		pairs, err := s.Pairs(rel.Edge)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			local := p.Get(rel.Side)
			out[local] = append(out[local], p.Get(rel.Side.Other()))
		}
	}
	for _, ids := range out {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	s.related[key] = out
	return out, nil
}
