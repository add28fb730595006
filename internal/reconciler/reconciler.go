package reconciler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edi-spaghetti/cs50w-network/internal/config"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/internal/store"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

const (
	defaultInterval    = 60 * time.Second
	defaultTopN        = 100
	defaultConcurrency = 4
)

// Reconciler periodically recounts hot counters from the edge tables and
// repairs any drift.
type Reconciler struct {
	hot    store.HotKeyStore
	repo   repository.Store
	reg    *schema.Registry
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler. hot may be nil, in which case only
// RepairAll does any work.
func New(hot store.HotKeyStore, repo repository.Store, reg *schema.Registry, cfg config.ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Reconciler{
		hot:    hot,
		repo:   repo,
		reg:    reg,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				l := pkglog.L()
				l.Error().Err(err).Msg("reconciler: cycle failed")
			}
		}
	}
}

// Reconcile repairs the hottest counters recorded since the last cycle and
// drops their scores. It returns how many counters were repaired.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	if r.hot == nil {
		return 0, nil
	}
	l := pkglog.L()

	keys, err := r.hot.GetTopHotKeys(ctx, int64(r.cfg.TopN))
	if err != nil {
		return 0, fmt.Errorf("get top hot keys: %w", err)
	}
	if len(keys) == 0 {
		l.Debug().Msg("reconciler: no hot keys to reconcile")
		return 0, nil
	}

	repaired, err := r.repairKeys(ctx, keys)
	if err != nil {
		return repaired, err
	}

	if err := r.hot.RemoveHotKeys(ctx, keys); err != nil {
		return repaired, fmt.Errorf("remove hot keys: %w", err)
	}

	l.Info().
		Int(pkglog.FieldCount, len(keys)).
		Int("repaired", repaired).
		Msg("reconciler: hot-key reconciliation complete")
	return repaired, nil
}

// RepairAll recounts every counter of every record.
func (r *Reconciler) RepairAll(ctx context.Context) (int, error) {
	var keys []store.CounterKey
	err := r.repo.View(ctx, func(rd repository.Reader) error {
		seen := make(map[string]bool)
		for _, e := range r.reg.Edges() {
			for _, c := range e.Counters {
				if seen[c.Model+"."+c.Field] {
					continue
				}
				seen[c.Model+"."+c.Field] = true
				recs, err := rd.Records(c.Model)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					keys = append(keys, store.CounterKey{Model: c.Model, ID: rec.ID, Field: c.Field})
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return r.repairKeys(ctx, keys)
}

func (r *Reconciler) repairKeys(ctx context.Context, keys []store.CounterKey) (int, error) {
	var repaired atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, k := range keys {
		g.Go(func() error {
			ok, err := r.Repair(gctx, k)
			if err != nil {
				if domain.KindOf(err) == domain.KindUnavailable {
					return err
				}
				l := pkglog.L()
				l.Warn().Err(err).Str("counter", k.String()).Msg("reconciler: skipping counter")
				return nil
			}
			if ok {
				repaired.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(repaired.Load()), err
}

// Repair recounts one counter and overwrites it when it drifted. It reports
// whether the stored value changed. A counter on a deleted record is
// skipped.
func (r *Reconciler) Repair(ctx context.Context, key store.CounterKey) (bool, error) {
	sources := r.sources(key)
	if len(sources) == 0 {
		return false, fmt.Errorf("no edge maintains %s.%s", key.Model, key.Field)
	}

	var changed bool
	err := r.repo.Atomic(ctx, func(tx repository.Tx) error {
		// The row lock keeps concurrent edge writes, which bump this counter,
		// out until the recount below commits.
		rec, err := tx.RecordForUpdate(key.Model, key.ID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil
			}
			return err
		}

		var actual int64
		for _, src := range sources {
			n, err := tx.CountPairs(src.edge, src.side, key.ID)
			if err != nil {
				return err
			}
			actual += n
		}

		stored := rec.Int(key.Field)
		if stored == actual {
			return nil
		}
		if err := tx.SetCounter(key.Model, key.ID, key.Field, actual); err != nil {
			return err
		}
		changed = true

		l := pkglog.L()
		l.Warn().
			Str(pkglog.FieldModel, key.Model).
			Int64(pkglog.FieldRecordID, key.ID).
			Str("field", key.Field).
			Int64("stored", stored).
			Int64("actual", actual).
			Msg("reconciler: repaired counter drift")
		return nil
	})
	return changed, err
}

type counterSource struct {
	edge string
	side schema.Side
}

func (r *Reconciler) sources(key store.CounterKey) []counterSource {
	var out []counterSource
	for _, e := range r.reg.Edges() {
		for _, c := range e.Counters {
			if c.Model == key.Model && c.Field == key.Field {
				out = append(out, counterSource{edge: e.Name, side: c.Side})
			}
		}
	}
	return out
}
