package projector

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

func project(t *testing.T, viewer domain.Caller, model string, id int64, fields string) map[string]any {
	t.Helper()
	reg := schema.Default()
	m, err := reg.Model(model)
	require.NoError(t, err)

	spec, err := Parse(reg, m, decode(t, fields))
	require.NoError(t, err)

	snap := dataset.New(repotest.Network())
	rec, ok, err := snap.Lookup(model, id)
	require.NoError(t, err)
	require.True(t, ok)

	out, err := New(snap, viewer).Project(m, spec, rec)
	require.NoError(t, err)
	return out
}

var alice = domain.Caller{ID: 1, Username: "alice"}

func TestProject_AllScalars(t *testing.T) {
	for _, fields := range []string{`true`, `"*"`, `null`} {
		out := project(t, alice, schema.ModelUser, 2, fields)
		assert.ElementsMatch(t, []string{
			"id", "username", "date_joined", "follower_count", "leader_count",
			"is_following", "can_follow", "is_self",
		}, keys(out), fields)
		assert.Equal(t, true, out["is_following"])
		assert.Equal(t, true, out["can_follow"])
		assert.Equal(t, false, out["is_self"])
		assert.Equal(t, int64(2), out["follower_count"])
	}
}

func TestProject_CommaString(t *testing.T) {
	out := project(t, alice, schema.ModelPost, 2, `"id, content,username"`)
	assert.Equal(t, map[string]any{"id": int64(2), "content": "hello world", "username": "bob"}, out)
}

func TestProject_ViewerFlags(t *testing.T) {
	out := project(t, alice, schema.ModelUser, 1, `"is_self,can_follow,is_following"`)
	assert.Equal(t, map[string]any{"is_self": true, "can_follow": false, "is_following": false}, out)

	out = project(t, domain.Anonymous(), schema.ModelUser, 2, `"is_self,can_follow,is_following"`)
	assert.Equal(t, map[string]any{"is_self": false, "can_follow": false, "is_following": false}, out)

	out = project(t, alice, schema.ModelPost, 2, `"i_like"`)
	assert.Equal(t, true, out["i_like"])
	out = project(t, alice, schema.ModelPost, 1, `"i_like"`)
	assert.Equal(t, false, out["i_like"])
}

func TestProject_Relations(t *testing.T) {
	out := project(t, alice, schema.ModelPost, 4, `["id", {"user": "username"}, {"likes": "id"}]`)
	assert.Equal(t, map[string]any{
		"id":    int64(4),
		"user":  map[string]any{"username": "carol"},
		"likes": []map[string]any{},
	}, out)

	out = project(t, alice, schema.ModelUser, 1, `[{"posts": {"fields": "id", "order": "-timestamp", "limit": 1}}]`)
	assert.Equal(t, []map[string]any{{"id": int64(3)}}, out["posts"])

	out = project(t, alice, schema.ModelUser, 2, `[{"followers": ["username", {"posts": "content"}]}]`)
	assert.Equal(t, []map[string]any{
		{"username": "alice", "posts": []map[string]any{{"content": "first"}, {"content": "again"}}},
		{"username": "carol", "posts": []map[string]any{{"content": "carol here"}}},
	}, out["followers"])
}

func TestProject_AllWithRelation(t *testing.T) {
	out := project(t, alice, schema.ModelPost, 1, `["*", {"likes": "username"}]`)
	assert.Contains(t, out, "content")
	assert.Contains(t, out, "i_like")
	assert.Equal(t, []map[string]any{{"username": "bob"}, {"username": "carol"}}, out["likes"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields string
	}{
		{"unknown scalar", `"id,title"`},
		{"relation as scalar", `["posts"]`},
		{"scalar as relation", `[{"username": "*"}]`},
		{"unknown relation", `[{"comments": "*"}]`},
		{"nested unknown", `[{"posts": "id,title"}]`},
		{"bad option", `[{"posts": {"fields": "id", "page": 2}}]`},
		{"bad order", `[{"posts": {"order": "-i_like"}}]`},
		{"bad limit", `[{"posts": {"limit": 0}}]`},
		{"false", `false`},
		{"number", `3`},
	}

	reg := schema.Default()
	user, err := reg.Model(schema.ModelUser)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(reg, user, decode(t, tt.fields))
			require.Error(t, err)
			assert.Equal(t, domain.KindInvalidField, domain.KindOf(err))
		})
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
