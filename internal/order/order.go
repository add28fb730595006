// Package order parses sort specifications and sorts records by them.
package order

import (
	"sort"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Key is one sort key. A leading "-" on the wire means descending.
type Key struct {
	Field string
	Desc  bool
}

func (k Key) String() string {
	if k.Desc {
		return "-" + k.Field
	}
	return k.Field
}

// By is an ordered list of sort keys. Ties are broken by ascending id, so
// an empty By is the natural order.
type By []Key

// Parse validates an order spec against model: null, "" or a string such as
// "-timestamp" or "user_id,-id", or a list of such strings.
func Parse(model *schema.Model, raw any) (By, error) {
	var tokens []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		tokens = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, domain.Errorf(domain.KindInvalidField, "order entries must be strings")
			}
			tokens = append(tokens, s)
		}
	default:
		return nil, domain.Errorf(domain.KindInvalidField, "order must be a string or a list of strings")
	}

	var by By
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key := Key{Field: tok}
		if strings.HasPrefix(tok, "-") {
			key = Key{Field: tok[1:], Desc: true}
		}
		f, ok := model.Field(key.Field)
		if !ok || f.Computed {
			return nil, domain.Errorf(domain.KindInvalidField, "cannot order by %s - not a valid field", tok)
		}
		by = append(by, key)
	}
	return by, nil
}

// Sort sorts recs in place.
func (by By) Sort(recs []schema.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return by.less(recs[i], recs[j])
	})
}

func (by By) less(a, b schema.Record) bool {
	for _, k := range by {
		c := schema.Compare(a.Get(k.Field), b.Get(k.Field))
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return a.ID < b.ID
}

// SortIDs orders ids by the records they resolve to through lookup. Ids
// that do not resolve sort last.
func (by By) SortIDs(ids []int64, lookup func(id int64) (schema.Record, bool)) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, okA := lookup(ids[i])
		b, okB := lookup(ids[j])
		if !okA || !okB {
			return okA && !okB
		}
		return by.less(a, b)
	})
}
