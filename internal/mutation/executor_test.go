package mutation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
)

var (
	alice = domain.Caller{ID: 1, Username: "alice"}
	bob   = domain.Caller{ID: 2, Username: "bob"}
	admin = domain.Caller{ID: 1, Username: "alice", Permissions: []string{domain.PermCreateUser}}
	clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type recordingObserver struct {
	mu    sync.Mutex
	pairs []schema.Pair
}

func (o *recordingObserver) EdgeChanged(_ context.Context, _ schema.Edge, p schema.Pair) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pairs = append(o.pairs, p)
}

type fixture struct {
	exec     *Executor
	store    *repository.GormStore
	observer *recordingObserver
}

// newFixture seeds users alice(1), bob(2) and carol(3) and one post by bob.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	reg := schema.Default()
	store := repository.NewGormStore(db, reg)
	require.NoError(t, store.Atomic(context.Background(), func(tx repository.Tx) error {
		for _, name := range []string{"alice", "bob", "carol"} {
			if _, err := tx.Insert(schema.ModelUser, map[string]any{"username": name, "date_joined": clock}); err != nil {
				return err
			}
		}
		_, err := tx.Insert(schema.ModelPost, map[string]any{"user_id": int64(2), "content": "bob's post", "timestamp": clock})
		return err
	}))

	obs := &recordingObserver{}
	return &fixture{
		exec:     NewExecutor(reg, store, WithClock(func() time.Time { return clock }), WithObserver(obs)),
		store:    store,
		observer: obs,
	}
}

func (f *fixture) record(t *testing.T, model string, id int64) schema.Record {
	t.Helper()
	var rec schema.Record
	require.NoError(t, f.store.View(context.Background(), func(r repository.Reader) error {
		var err error
		rec, err = r.Record(model, id)
		return err
	}))
	return rec
}

func (f *fixture) pairs(t *testing.T, edge string) []schema.Pair {
	t.Helper()
	var out []schema.Pair
	require.NoError(t, f.store.View(context.Background(), func(r repository.Reader) error {
		var err error
		out, err = r.Pairs(edge)
		return err
	}))
	return out
}

func updateRequest(t *testing.T, body string) UpdateRequest {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var req UpdateRequest
	require.NoError(t, dec.Decode(&req))
	return req
}

func payload(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var p map[string]any
	require.NoError(t, dec.Decode(&p))
	return p
}

func TestUpdate_FollowIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := `{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "add"}}`

	out, err := f.exec.Update(ctx, alice, updateRequest(t, req))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0]["id"])
	assert.Equal(t, int64(1), out[0]["follower_count"])
	assert.Equal(t, true, out[0]["is_following"])

	out, err = f.exec.Update(ctx, alice, updateRequest(t, req))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out[0]["follower_count"])

	assert.Equal(t, int64(1), f.record(t, schema.ModelUser, 2).Int("follower_count"))
	assert.Equal(t, int64(1), f.record(t, schema.ModelUser, 1).Int("leader_count"))
	assert.Equal(t, []schema.Pair{{Left: 1, Right: 2}}, f.observer.pairs, "only the first add changed the edge")
}

func TestUpdate_RemoveMissingIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "remove"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(0), out[0]["follower_count"])
	assert.Equal(t, false, out[0]["is_following"])
	assert.Empty(t, f.observer.pairs)

	_, err = f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "add"}}`))
	require.NoError(t, err)
	out, err = f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "remove"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(0), out[0]["follower_count"])
	assert.Equal(t, int64(0), f.record(t, schema.ModelUser, 1).Int("leader_count"))
	assert.Empty(t, f.pairs(t, schema.EdgeFollow))
}

// The in-memory SQLite store has a single connection, so these updates run
// one transaction at a time and only idempotency is exercised here. The
// postgres-tagged variant runs them in parallel transactions.
func TestUpdate_ConcurrentAddsCountOnce(t *testing.T) {
	f := newFixture(t)
	req := updateRequest(t, `{"data": [{"model": "post", "id": 1, "likes": 1}], "multiOption": {"likes": "add"}}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.exec.Update(context.Background(), alice, req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.record(t, schema.ModelPost, 1).Int("like_count"))
	assert.Len(t, f.pairs(t, schema.EdgeLike), 1)
}

func TestUpdate_LikeFromEitherSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "user", "id": 1, "likes": [1]}], "multiOption": {"likes": "add"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out[0]["id"])

	out, err = f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "post", "id": 1, "likes": 1}], "multiOption": {"likes": "add"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out[0]["like_count"])
	assert.Equal(t, true, out[0]["i_like"])
	assert.Equal(t, "bob", out[0]["username"])
}

func TestUpdate_EdgeAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
	}{
		{"follow on behalf of carol", `{"data": [{"model": "user", "id": 2, "followers": 3}], "multiOption": {"followers": "add"}}`},
		{"make bob follow", `{"data": [{"model": "user", "id": 2, "leaders": 3}], "multiOption": {"leaders": "add"}}`},
		{"like as bob", `{"data": [{"model": "post", "id": 1, "likes": 2}], "multiOption": {"likes": "add"}}`},
		{"remove bob's like", `{"data": [{"model": "user", "id": 2, "likes": 1}], "multiOption": {"likes": "remove"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exec.Update(ctx, alice, updateRequest(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		})
	}

	assert.Empty(t, f.pairs(t, schema.EdgeFollow))
	assert.Empty(t, f.pairs(t, schema.EdgeLike))
	assert.Equal(t, int64(0), f.record(t, schema.ModelUser, 2).Int("follower_count"))
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		kind domain.Kind
	}{
		{"empty batch", `{"data": []}`, domain.KindValidation},
		{"missing model", `{"data": [{"id": 1, "content": "x"}]}`, domain.KindMissingModel},
		{"unknown model", `{"data": [{"model": "comment", "id": 1}]}`, domain.KindUnknownModel},
		{"missing id", `{"data": [{"model": "post", "content": "x"}]}`, domain.KindValidation},
		{"no mode", `{"data": [{"model": "user", "id": 2, "followers": 1}]}`, domain.KindValidation},
		{"bad mode", `{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "toggle"}}`, domain.KindValidation},
		{"mode on non-edge", `{"data": [{"model": "post", "id": 1, "likes": 1}], "multiOption": {"likes": "add", "posts": "add"}}`, domain.KindValidation},
		{"self follow", `{"data": [{"model": "user", "id": 1, "followers": 1}], "multiOption": {"followers": "add"}}`, domain.KindValidation},
		{"read-only field", `{"data": [{"model": "post", "id": 1, "timestamp": "2020-01-01T00:00:00Z"}]}`, domain.KindValidation},
		{"unknown field", `{"data": [{"model": "post", "id": 1, "title": "x"}]}`, domain.KindInvalidField},
		{"nothing to do", `{"data": [{"model": "post", "id": 1}]}`, domain.KindValidation},
		{"missing record", `{"data": [{"model": "user", "id": 99, "followers": 1}], "multiOption": {"followers": "add"}}`, domain.KindNotFound},
		{"missing target", `{"data": [{"model": "user", "id": 1, "leaders": 99}], "multiOption": {"leaders": "add"}}`, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exec.Update(ctx, alice, updateRequest(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err), domain.MessageOf(err))
		})
	}

	_, err := f.exec.Update(ctx, domain.Anonymous(), updateRequest(t,
		`{"data": [{"model": "user", "id": 2, "followers": 1}], "multiOption": {"followers": "add"}}`))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestUpdate_BatchValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)

	_, err := f.exec.Update(context.Background(), alice, updateRequest(t, `{
		"data": [
			{"model": "user", "id": 2, "followers": 1},
			{"model": "user", "id": 3, "followers": 2}
		],
		"multiOption": {"followers": "add"}}`))
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Empty(t, f.pairs(t, schema.EdgeFollow))

	out, err := f.exec.Update(context.Background(), alice, updateRequest(t, `{
		"data": [
			{"model": "user", "id": 2, "followers": 1},
			{"model": "user", "id": 3, "followers": [1]}
		],
		"multiOption": {"followers": "add"}}`))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), out[1]["id"])
	assert.Equal(t, int64(2), f.record(t, schema.ModelUser, 1).Int("leader_count"))
}

func TestCreateAndEditPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.exec.Create(ctx, alice, payload(t, `{"model": "post", "content": "hello there"}`))
	require.NoError(t, err)
	id := created["id"].(int64)
	assert.Equal(t, "hello there", created["content"])
	assert.Equal(t, int64(1), created["user_id"])
	assert.Equal(t, "alice", created["username"])
	assert.Equal(t, int64(0), created["like_count"])
	assert.Equal(t, false, created["i_like"])
	assert.True(t, clock.Equal(created["timestamp"].(time.Time)))

	_, err = f.exec.Update(ctx, bob, updateRequest(t,
		`{"data": [{"model": "post", "id": `+jsonInt(id)+`, "content": "hijacked"}]}`))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	out, err := f.exec.Update(ctx, alice, updateRequest(t,
		`{"data": [{"model": "post", "id": `+jsonInt(id)+`, "content": "edited"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "edited", out[0]["content"])

	rec := f.record(t, schema.ModelPost, id)
	assert.Equal(t, "edited", rec.Get("content"))
	assert.Equal(t, int64(1), rec.Int("user_id"))
	assert.True(t, clock.Equal(rec.Get("timestamp").(time.Time)))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller domain.Caller
		body   string
		kind   domain.Kind
	}{
		{"too long", alice, `{"model": "post", "content": "` + strings.Repeat("é", schema.MaxContentLen+1) + `"}`, domain.KindValidation},
		{"blank", alice, `{"model": "post", "content": "   "}`, domain.KindValidation},
		{"missing content", alice, `{"model": "post"}`, domain.KindValidation},
		{"server field", alice, `{"model": "post", "content": "x", "user_id": 2}`, domain.KindValidation},
		{"wrong type", alice, `{"model": "post", "content": 5}`, domain.KindValidation},
		{"missing model", alice, `{"content": "x"}`, domain.KindMissingModel},
		{"unknown model", alice, `{"model": "comment"}`, domain.KindUnknownModel},
		{"anonymous", domain.Anonymous(), `{"model": "post", "content": "x"}`, domain.KindForbidden},
		{"user without permission", alice, `{"model": "user", "username": "dave"}`, domain.KindForbidden},
		{"duplicate username", admin, `{"model": "user", "username": "bob"}`, domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exec.Create(ctx, tt.caller, payload(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err), domain.MessageOf(err))
		})
	}

	exact := strings.Repeat("é", schema.MaxContentLen)
	_, err := f.exec.Create(ctx, alice, payload(t, `{"model": "post", "content": "`+exact+`"}`))
	assert.NoError(t, err)
}

func TestCreate_User(t *testing.T) {
	f := newFixture(t)

	out, err := f.exec.Create(context.Background(), admin, payload(t, `{"model": "user", "username": "dave"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), out["id"])
	assert.Equal(t, "dave", out["username"])
	assert.Equal(t, int64(0), out["follower_count"])
	assert.Equal(t, true, out["can_follow"])
	assert.True(t, clock.Equal(out["date_joined"].(time.Time)))
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
