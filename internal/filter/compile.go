package filter

import (
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Compile binds the expression to src and returns a predicate. Data needed
// by relation clauses is loaded here; the predicate itself is pure.
func (e *Expr) Compile(src Source) (Predicate, error) {
	if e.Empty() {
		return MatchAll, nil
	}

	preds := make([]Predicate, 0, len(e.clauses))
	for _, c := range e.clauses {
		var (
			p   Predicate
			err error
		)
		if c.relation != nil {
			p, err = e.compileRelation(c, src)
			if err != nil {
				return nil, err
			}
		} else {
			p = compileScalar(c)
		}
		preds = append(preds, p)
	}

	return func(rec schema.Record) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}, nil
}

func compileScalar(c clause) Predicate {
	field, op, want := c.field, c.op, c.value
	switch op {
	case OpIn:
		values := want.([]any)
		return func(rec schema.Record) bool {
			got := rec.Get(field)
			for _, v := range values {
				if schema.Compare(got, v) == 0 {
					return true
				}
			}
			return false
		}
	case OpNot:
		return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) != 0 }
	case OpLt:
		return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) < 0 }
	case OpLte:
		return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) <= 0 }
	case OpGt:
		return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) > 0 }
	case OpGte:
		return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) >= 0 }
	}
	return func(rec schema.Record) bool { return schema.Compare(rec.Get(field), want) == 0 }
}

func (e *Expr) compileRelation(c clause, src Source) (Predicate, error) {
	related, err := src.Related(e.model.Name, *c.relation)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(c.ids))
	for _, id := range c.ids {
		wanted[id] = struct{}{}
	}

	if c.nested != nil {
		match, err := c.nested.Compile(src)
		if err != nil {
			return nil, err
		}
		targets, err := src.Records(c.relation.Target)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if match(t) {
				wanted[t.ID] = struct{}{}
			}
		}
	}

	anyWanted := func(rec schema.Record) bool {
		for _, id := range related[rec.ID] {
			if _, ok := wanted[id]; ok {
				return true
			}
		}
		return false
	}
	if c.op == OpNot {
		return func(rec schema.Record) bool { return !anyWanted(rec) }, nil
	}
	return anyWanted, nil
}
