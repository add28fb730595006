package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/repository/repotest"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

func TestSnapshot_CachesReads(t *testing.T) {
	r := repotest.Network()
	s := New(r)

	for i := 0; i < 3; i++ {
		recs, err := s.Records(schema.ModelUser)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	}
	rec, ok, err := s.Lookup(schema.ModelUser, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", rec.Get("username"))

	_, ok, err = s.Lookup(schema.ModelUser, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, r.Calls["Records"])
}

func TestSnapshot_Related(t *testing.T) {
	reg := schema.Default()
	user, err := reg.Model(schema.ModelUser)
	require.NoError(t, err)
	post, err := reg.Model(schema.ModelPost)
	require.NoError(t, err)

	s := New(repotest.Network())

	rel := func(m *schema.Model, name string) schema.Relation {
		r, ok := m.Relation(name)
		require.True(t, ok)
		return r
	}

	followers, err := s.Related(schema.ModelUser, rel(user, "followers"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, followers[2])
	assert.Equal(t, []int64{2}, followers[1])
	assert.Empty(t, followers[3])

	leaders, err := s.Related(schema.ModelUser, rel(user, "leaders"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, leaders[3])

	posts, err := s.Related(schema.ModelUser, rel(user, "posts"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, posts[1])

	author, err := s.Related(schema.ModelPost, rel(post, "user"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, author[4])

	likers, err := s.Related(schema.ModelPost, rel(post, "likes"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, likers[1])

	ok, err := s.HasPair(schema.EdgeLike, schema.Pair{Left: 1, Right: 2})
	require.NoError(t, err)
	assert.True(t, ok)
}
