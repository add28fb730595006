package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
)

func TestRegistry_UnknownModel(t *testing.T) {
	reg := Default()

	_, err := reg.Model("comment")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnknownModel, domain.KindOf(err))
}

func TestRegistry_UserModel(t *testing.T) {
	reg := Default()
	user, err := reg.Model(ModelUser)
	require.NoError(t, err)

	f, ok := user.Field("is_following")
	require.True(t, ok)
	assert.True(t, f.Computed)

	f, ok = user.Field("follower_count")
	require.True(t, ok)
	assert.False(t, f.Computed)
	assert.False(t, f.Mutable)

	rel, ok := user.Relation("followers")
	require.True(t, ok)
	assert.Equal(t, ManyToMany, rel.Kind)
	assert.Equal(t, EdgeFollow, rel.Edge)
	assert.Equal(t, Right, rel.Side)

	_, ok = user.Field("posts")
	assert.False(t, ok, "relations are not scalar fields")
}

func TestRegistry_PostModel(t *testing.T) {
	reg := Default()
	post, err := reg.Model(ModelPost)
	require.NoError(t, err)

	content, ok := post.Field("content")
	require.True(t, ok)
	assert.True(t, content.Mutable)
	assert.Equal(t, MaxContentLen, content.MaxLen)

	ts, ok := post.Field("timestamp")
	require.True(t, ok)
	assert.False(t, ts.Mutable)
	assert.False(t, ts.Creatable)

	rel, ok := post.Relation("user")
	require.True(t, ok)
	assert.Equal(t, BelongsTo, rel.Kind)
	assert.Equal(t, "user_id", post.Owner)
}

func TestRegistry_NewRegistryPanicsOnDanglingRelation(t *testing.T) {
	m := NewModel("thing", "id", []Field{{Name: "id", Kind: KindInt}},
		[]Relation{{Name: "parts", Kind: HasMany, Target: "part", Column: "thing_id"}})

	assert.Panics(t, func() { NewRegistry([]*Model{m}, nil) })
}

func TestEdge_PairSides(t *testing.T) {
	reg := Default()
	follow, ok := reg.Edge(EdgeFollow)
	require.True(t, ok)

	// user 2 gains follower 1: the record is the leader (right side)
	p := PairFrom(Right, 2, 1)
	assert.Equal(t, Pair{Left: 1, Right: 2}, p)
	assert.Equal(t, int64(1), p.Get(follow.Owner))
	assert.Equal(t, "leader_id", follow.Column(Right))
	assert.Equal(t, Left, Right.Other())
}

func TestCoerce(t *testing.T) {
	id := Field{Name: "id", Kind: KindInt}

	v, err := Coerce(id, json.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Coerce(id, float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = Coerce(id, json.Number("1.5"))
	assert.Error(t, err)

	_, err = Coerce(id, "42")
	assert.Error(t, err)

	ts := Field{Name: "timestamp", Kind: KindTime}
	v, err = Coerce(ts, "2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), v)

	_, err = Coerce(Field{Name: "content", Kind: KindString}, true)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(int64(1), int64(2)))
	assert.Equal(t, 0, Compare("a", "a"))
	assert.Equal(t, 1, Compare("b", "a"))

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, -1, Compare(early, early.Add(time.Second)))
	assert.Equal(t, 1, Compare(true, false))
}
