package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edi-spaghetti/cs50w-network/internal/config"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/internal/store"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
)

type fakeHotKeys struct {
	keys    []store.CounterKey
	removed []store.CounterKey
}

func (f *fakeHotKeys) RecordAccess(_ context.Context, key store.CounterKey) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeHotKeys) GetTopHotKeys(_ context.Context, n int64) ([]store.CounterKey, error) {
	if int64(len(f.keys)) > n {
		return f.keys[:n], nil
	}
	return f.keys, nil
}

func (f *fakeHotKeys) RemoveHotKeys(_ context.Context, keys []store.CounterKey) error {
	f.removed = append(f.removed, keys...)
	gone := make(map[store.CounterKey]bool, len(keys))
	for _, k := range keys {
		gone[k] = true
	}
	kept := f.keys[:0]
	for _, k := range f.keys {
		if !gone[k] {
			kept = append(kept, k)
		}
	}
	f.keys = kept
	return nil
}

func (f *fakeHotKeys) Close() error { return nil }

// driftedStore holds two users and one post whose edges were written
// without touching the counters.
func driftedStore(t *testing.T) *repository.GormStore {
	t.Helper()
	db, err := repository.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s := repository.NewGormStore(db, schema.Default())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Atomic(context.Background(), func(tx repository.Tx) error {
		for _, name := range []string{"alice", "bob"} {
			if _, err := tx.Insert(schema.ModelUser, map[string]any{"username": name, "date_joined": now}); err != nil {
				return err
			}
		}
		if _, err := tx.Insert(schema.ModelPost, map[string]any{"user_id": int64(1), "content": "hi", "timestamp": now}); err != nil {
			return err
		}
		if _, err := tx.InsertPair(schema.EdgeFollow, schema.Pair{Left: 1, Right: 2}); err != nil {
			return err
		}
		if _, err := tx.InsertPair(schema.EdgeLike, schema.Pair{Left: 2, Right: 1}); err != nil {
			return err
		}
		return tx.AddToCounter(schema.ModelUser, 1, "follower_count", 5)
	}))
	return s
}

func counter(t *testing.T, s repository.Store, model string, id int64, field string) int64 {
	t.Helper()
	var v int64
	require.NoError(t, s.View(context.Background(), func(r repository.Reader) error {
		rec, err := r.Record(model, id)
		v = rec.Int(field)
		return err
	}))
	return v
}

func TestRepairAll(t *testing.T) {
	s := driftedStore(t)
	r := New(nil, s, schema.Default(), config.ReconcilerConfig{Concurrency: 2})

	repaired, err := r.RepairAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, repaired)

	assert.Equal(t, int64(0), counter(t, s, schema.ModelUser, 1, "follower_count"))
	assert.Equal(t, int64(1), counter(t, s, schema.ModelUser, 1, "leader_count"))
	assert.Equal(t, int64(1), counter(t, s, schema.ModelUser, 2, "follower_count"))
	assert.Equal(t, int64(1), counter(t, s, schema.ModelPost, 1, "like_count"))

	repaired, err = r.RepairAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, repaired, "a second pass finds nothing to repair")
}

func TestReconcile_HotKeysOnly(t *testing.T) {
	s := driftedStore(t)
	hot := &fakeHotKeys{keys: []store.CounterKey{
		{Model: schema.ModelPost, ID: 1, Field: "like_count"},
		{Model: schema.ModelUser, ID: 99, Field: "follower_count"},
		{Model: schema.ModelUser, ID: 1, Field: "bogus"},
	}}
	r := New(hot, s, schema.Default(), config.ReconcilerConfig{})

	repaired, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Len(t, hot.removed, 3)
	assert.Empty(t, hot.keys)

	assert.Equal(t, int64(1), counter(t, s, schema.ModelPost, 1, "like_count"))
	assert.Equal(t, int64(0), counter(t, s, schema.ModelUser, 2, "follower_count"), "cold counters are left alone")
}

func TestReconcile_KeepsKeysBeyondTopN(t *testing.T) {
	s := driftedStore(t)
	like := store.CounterKey{Model: schema.ModelPost, ID: 1, Field: "like_count"}
	follower := store.CounterKey{Model: schema.ModelUser, ID: 1, Field: "follower_count"}
	hot := &fakeHotKeys{keys: []store.CounterKey{like, follower}}
	r := New(hot, s, schema.Default(), config.ReconcilerConfig{TopN: 1})

	repaired, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, []store.CounterKey{like}, hot.removed)
	assert.Equal(t, []store.CounterKey{follower}, hot.keys, "unprocessed keys wait for the next cycle")

	repaired, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, int64(0), counter(t, s, schema.ModelUser, 1, "follower_count"))
	assert.Empty(t, hot.keys)
}

// racingStore lands a concurrent follow, with its counter bump, between
// the reconciler's read of the counter and its recount of the edges.
type racingStore struct {
	repository.Store
	locked int
}

func (s *racingStore) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.Atomic(ctx, func(tx repository.Tx) error {
		return fn(&racingTx{Tx: tx, s: s})
	})
}

type racingTx struct {
	repository.Tx
	s *racingStore
}

func (tx *racingTx) RecordForUpdate(model string, id int64) (schema.Record, error) {
	tx.s.locked++
	rec, err := tx.Tx.RecordForUpdate(model, id)
	if err != nil {
		return rec, err
	}
	if _, err := tx.Tx.InsertPair(schema.EdgeFollow, schema.Pair{Left: 2, Right: id}); err != nil {
		return rec, err
	}
	return rec, tx.Tx.AddToCounter(model, id, "follower_count", 1)
}

func TestRepair_WritesRecountedValue(t *testing.T) {
	base := driftedStore(t)
	rs := &racingStore{Store: base}
	r := New(nil, rs, schema.Default(), config.ReconcilerConfig{})

	changed, err := r.Repair(context.Background(), store.CounterKey{Model: schema.ModelUser, ID: 1, Field: "follower_count"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, rs.locked)

	// stored 5 before the follow, 6 after, with one edge: the counter must
	// equal the edge count, not the stale read plus a delta.
	assert.Equal(t, int64(1), counter(t, base, schema.ModelUser, 1, "follower_count"))
}

func TestReconcile_NoStore(t *testing.T) {
	r := New(nil, nil, schema.Default(), config.ReconcilerConfig{})
	n, err := r.Reconcile(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartStop(t *testing.T) {
	s := driftedStore(t)
	hot := &fakeHotKeys{}
	r := New(hot, s, schema.Default(), config.ReconcilerConfig{Interval: time.Millisecond})

	r.Start(context.Background())
	r.Stop()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
