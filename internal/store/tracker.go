package store

import (
	"context"

	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

// Tracker marks the counters of a changed edge as hot so the reconciler
// looks at them first. Tracking is best effort: failures are logged and
// never reach the caller.
type Tracker struct {
	store HotKeyStore
}

// NewTracker creates a tracker. A nil store makes every call a no-op.
func NewTracker(store HotKeyStore) *Tracker {
	return &Tracker{store: store}
}

// Keys lists the counters an instance of edge contributes to.
func Keys(edge schema.Edge, p schema.Pair) []CounterKey {
	keys := make([]CounterKey, 0, len(edge.Counters))
	for _, c := range edge.Counters {
		keys = append(keys, CounterKey{Model: c.Model, ID: p.Get(c.Side), Field: c.Field})
	}
	return keys
}

// EdgeChanged records an access for every counter of the edge.
func (t *Tracker) EdgeChanged(ctx context.Context, edge schema.Edge, p schema.Pair) {
	if t == nil || t.store == nil {
		return
	}
	for _, k := range Keys(edge, p) {
		if err := t.store.RecordAccess(ctx, k); err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Str("counter", k.String()).Msg("failed to record hot counter")
		}
	}
}
