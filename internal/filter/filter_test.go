package filter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/dataset"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository/repotest"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

// matching returns the ids of model records the filter selects.
func matching(t *testing.T, model, raw string) []int64 {
	t.Helper()
	reg := schema.Default()
	m, err := reg.Model(model)
	require.NoError(t, err)

	expr, err := Parse(reg, m, decode(t, raw))
	require.NoError(t, err)

	snap := dataset.New(repotest.Network())
	pred, err := expr.Compile(snap)
	require.NoError(t, err)

	recs, err := snap.Records(model)
	require.NoError(t, err)
	var ids []int64
	for _, rec := range recs {
		if pred(rec) {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		filter string
		want   []int64
	}{
		{"null matches all", schema.ModelPost, `null`, []int64{1, 2, 3, 4}},
		{"empty list matches all", schema.ModelPost, `[]`, []int64{1, 2, 3, 4}},
		{"implicit is", schema.ModelUser, `[{"username": "bob"}]`, []int64{2}},
		{"single object", schema.ModelUser, `{"username": {"not": "bob"}}`, []int64{1, 3}},
		{"in", schema.ModelPost, `[{"id": {"in": [1, 4, 9]}}]`, []int64{1, 4}},
		{"range", schema.ModelPost, `[{"like_count": {"gte": 1}}]`, []int64{1, 2}},
		{"ops in one object are anded", schema.ModelPost, `[{"id": {"gt": 1, "lt": 4}}]`, []int64{2, 3}},
		{"clauses are anded", schema.ModelPost, `[{"user_id": 1}, {"content": "again"}]`, []int64{3}},
		{"time", schema.ModelPost, `[{"timestamp": {"lt": "2024-01-12T00:00:00Z"}}]`, []int64{1, 2}},
		{"belongs-to is", schema.ModelPost, `[{"user": 1}]`, []int64{1, 3}},
		{"belongs-to in", schema.ModelPost, `[{"user": {"in": [2, 3]}}]`, []int64{2, 4}},
		{"id list shorthand", schema.ModelPost, `[{"user": [2, 3]}]`, []int64{2, 4}},
		{"many-to-many is", schema.ModelUser, `[{"followers": {"is": 3}}]`, []int64{2}},
		{"many-to-many not", schema.ModelUser, `[{"followers": {"not": 1}}]`, []int64{1, 3}},
		{"has-many", schema.ModelUser, `[{"posts": {"in": [4]}}]`, []int64{3}},
		{"feed of leaders", schema.ModelPost, `[{"user": [{"followers": 3}]}]`, []int64{2}},
		{"nested scalar", schema.ModelPost, `[{"user": [{"username": {"in": ["alice", "carol"]}}]}]`, []int64{1, 3, 4}},
		{"liked by", schema.ModelPost, `[{"likes": 2}]`, []int64{1}},
		{"no match", schema.ModelUser, `[{"username": "dave"}]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matching(t, tt.model, tt.filter))
		})
	}
}

func TestFilter_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		message string
	}{
		{"unknown field", `[{"title": "x"}]`, `filter 0: field "title"`},
		{"computed field", `[{"id": 1}, {"i_like": true}]`, `filter 1: field "i_like": computed`},
		{"unknown operator", `[{"id": {"like": 1}}]`, `unknown operator "like"`},
		{"wrong type", `[{"content": 5}]`, `filter 0: field "content"`},
		{"in needs list", `[{"id": {"in": 3}}]`, "in expects a list"},
		{"range on relation", `[{"user": {"gt": 1}}]`, "does not apply to relations"},
		{"nested unknown", `[{"user": [{"nope": 1}]}]`, `field "user"`},
		{"not a list", `"id=1"`, "filters must be a list"},
		{"clause not object", `[1]`, "filter 0: expected an object"},
	}

	reg := schema.Default()
	post, err := reg.Model(schema.ModelPost)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(reg, post, decode(t, tt.filter))
			require.Error(t, err)
			assert.Equal(t, domain.KindInvalidFilter, domain.KindOf(err))
			assert.Contains(t, domain.MessageOf(err), tt.message)
		})
	}
}
