// Package mutation applies create and update requests: field validation,
// ownership checks, and edge edits that keep denormalized counters in step
// with the edges they count.
package mutation

import (
	"context"
	"time"

	"github.com/edi-spaghetti/cs50w-network/internal/dataset"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/projector"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// EdgeObserver is told about every edge a committed mutation added or
// removed.
type EdgeObserver interface {
	EdgeChanged(ctx context.Context, edge schema.Edge, p schema.Pair)
}

// Executor runs mutations against a store.
type Executor struct {
	reg      *schema.Registry
	store    repository.Store
	now      func() time.Time
	observer EdgeObserver
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the clock used for server-stamped times.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithObserver registers an observer for committed edge changes.
func WithObserver(o EdgeObserver) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates a new mutation executor.
func NewExecutor(reg *schema.Registry, store repository.Store, opts ...Option) *Executor {
	e := &Executor{
		reg:   reg,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// project re-reads one record inside tx and projects every scalar field
// for the viewer.
func project(tx repository.Reader, model *schema.Model, id int64, viewer domain.Caller) (map[string]any, error) {
	snap := dataset.New(tx)
	rec, err := tx.Record(model.Name, id)
	if err != nil {
		return nil, err
	}
	return projector.New(snap, viewer).Project(model, projector.AllFields, rec)
}
