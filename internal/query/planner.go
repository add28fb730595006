// Package query runs search requests: filter, order, paginate, project.
package query

import (
	"context"
	"math"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/dataset"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/filter"
	"github.com/edi-spaghetti/cs50w-network/internal/order"
	"github.com/edi-spaghetti/cs50w-network/internal/projector"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

const (
	DefaultPageSize = 10
	DefaultMaxLimit = 100

	// maxPage keeps page numbers within int on 32-bit platforms.
	maxPage = math.MaxInt32
)

// Request is a decoded search body. Fields, Filters, Order, Limit and Page
// hold raw JSON values decoded with UseNumber.
type Request struct {
	Model   string `json:"model"`
	Fields  any    `json:"fields"`
	Filters any    `json:"filters"`
	Order   any    `json:"order"`
	Limit   any    `json:"limit"`
	Page    any    `json:"page"`
}

// Result is one page of a search.
type Result struct {
	Data        []map[string]any `json:"data"`
	PageNum     int              `json:"pageNum"`
	PageCount   int              `json:"pageCount"`
	HasPrevious bool             `json:"hasPrevious"`
	HasNext     bool             `json:"hasNext"`
}

// Options configure paging.
type Options struct {
	PageSize int
	MaxLimit int
}

// Planner executes searches against a store.
type Planner struct {
	reg   *schema.Registry
	store repository.Store
	opts  Options
}

// NewPlanner creates a planner. Zero options take the defaults.
func NewPlanner(reg *schema.Registry, store repository.Store, opts Options) *Planner {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.PageSize > opts.MaxLimit {
		opts.PageSize = opts.MaxLimit
	}
	return &Planner{reg: reg, store: store, opts: opts}
}

// plan is a validated request.
type plan struct {
	model   *schema.Model
	fields  projector.Spec
	filters *filter.Expr
	order   order.By
	limit   int
	page    int
}

func (p *Planner) validate(req Request) (*plan, error) {
	name := strings.TrimSpace(req.Model)
	if name == "" {
		return nil, domain.Errorf(domain.KindMissingModel, "model is required")
	}
	model, err := p.reg.Model(name)
	if err != nil {
		return nil, err
	}

	pl := &plan{model: model, limit: p.opts.PageSize, page: 1}
	if pl.fields, err = projector.Parse(p.reg, model, req.Fields); err != nil {
		return nil, err
	}
	if pl.filters, err = filter.Parse(p.reg, model, req.Filters); err != nil {
		return nil, err
	}
	if pl.order, err = order.Parse(model, req.Order); err != nil {
		return nil, err
	}

	if req.Limit != nil {
		limit, err := schema.CoerceInt(req.Limit)
		if err != nil || limit < 1 {
			return nil, domain.Errorf(domain.KindInvalidField, "limit must be a positive integer")
		}
		pl.limit = int(min(limit, int64(p.opts.MaxLimit)))
	}
	if req.Page != nil {
		page, err := schema.CoerceInt(req.Page)
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidField, "page must be an integer")
		}
		if page > 1 {
			pl.page = int(min(page, maxPage))
		}
	}
	return pl, nil
}

// Search validates req and returns one page of projected records. All reads
// happen inside one storage snapshot.
func (p *Planner) Search(ctx context.Context, viewer domain.Caller, req Request) (*Result, error) {
	pl, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = p.store.View(ctx, func(r repository.Reader) error {
		res, runErr := p.run(dataset.New(r), viewer, pl)
		result = res
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Planner) run(snap *dataset.Snapshot, viewer domain.Caller, pl *plan) (*Result, error) {
	match, err := pl.filters.Compile(snap)
	if err != nil {
		return nil, err
	}
	all, err := snap.Records(pl.model.Name)
	if err != nil {
		return nil, err
	}

	matched := make([]schema.Record, 0, len(all))
	for _, rec := range all {
		if match(rec) {
			matched = append(matched, rec)
		}
	}
	pl.order.Sort(matched)

	pageCount := (len(matched) + pl.limit - 1) / pl.limit
	var window []schema.Record
	if pl.page <= pageCount {
		start := (pl.page - 1) * pl.limit
		window = matched[start:min(start+pl.limit, len(matched))]
	}

	data, err := projector.New(snap, viewer).ProjectAll(pl.model, pl.fields, window)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:        data,
		PageNum:     pl.page,
		PageCount:   pageCount,
		HasPrevious: pl.page > 1,
		HasNext:     pl.page < pageCount,
	}, nil
}
