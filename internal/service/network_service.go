package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edi-spaghetti/cs50w-network/internal/audit"
	"github.com/edi-spaghetti/cs50w-network/internal/csrf"
	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/query"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

const defaultTimeout = 5 * time.Second

type searcher interface {
	Search(ctx context.Context, viewer domain.Caller, req query.Request) (*query.Result, error)
}

// networkService implements NetworkService.
type networkService struct {
	planner  searcher
	executor *mutation.Executor
	csrf     csrf.Store
	timeout  time.Duration
	sf       singleflight.Group
}

// NewNetworkService creates a new NetworkService. Every call runs under
// timeout; zero takes the default.
func NewNetworkService(planner *query.Planner, executor *mutation.Executor, tokens csrf.Store, timeout time.Duration) NetworkService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &networkService{
		planner:  planner,
		executor: executor,
		csrf:     tokens,
		timeout:  timeout,
	}
}

func (s *networkService) WhoAmI(_ context.Context, caller domain.Caller) Identity {
	if !caller.Authenticated() {
		return Identity{Anonymous: true}
	}
	id, name := caller.ID, caller.Username
	return Identity{ID: &id, Username: &name}
}

// Search runs a query. Identical concurrent searches by the same viewer
// share one execution.
func (s *networkService) Search(ctx context.Context, caller domain.Caller, req query.Request) (*query.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, err, "failed to encode search request")
	}
	key := strconv.FormatInt(caller.ID, 10) + "|" + string(body)

	// The flight outlives any single waiter; each waiter gives up on its own
	// context.
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.planner.Search(ctx, caller, req)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		err := domain.Wrap(domain.KindUnavailable, ctx.Err(), "storage unavailable, try again")
		s.logFailure(ctx, "search", err)
		return nil, err
	}
	if r.Err != nil {
		s.logFailure(ctx, "search", r.Err)
		return nil, r.Err
	}

	res, ok := r.Val.(*query.Result)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	if r.Shared {
		l := pkglog.Ctx(ctx)
		l.Debug().Str(pkglog.FieldModel, req.Model).Msg("search result shared with a concurrent request")
	}
	return res, nil
}

func (s *networkService) Create(ctx context.Context, caller domain.Caller, payload map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.executor.Create(ctx, caller, payload)
	if err != nil {
		s.logFailure(ctx, "create", err)
		if domain.KindOf(err) == domain.KindForbidden {
			audit.LogWithDetail(ctx, audit.ActionForbidden, caller.ID, domain.MessageOf(err), "create rejected")
		}
		return nil, err
	}

	model, _ := payload["model"].(string)
	id, _ := rec["id"].(int64)
	audit.LogRecord(ctx, audit.ActionCreate, caller.ID, model, id, "record created")
	return rec, nil
}

func (s *networkService) Update(ctx context.Context, caller domain.Caller, req mutation.UpdateRequest) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	recs, err := s.executor.Update(ctx, caller, req)
	if err != nil {
		s.logFailure(ctx, "update", err)
		if domain.KindOf(err) == domain.KindForbidden {
			audit.LogWithDetail(ctx, audit.ActionForbidden, caller.ID, domain.MessageOf(err), "update rejected")
		}
		return nil, err
	}

	for i, rec := range recs {
		model, _ := req.Data[i]["model"].(string)
		id, _ := rec["id"].(int64)
		audit.LogRecord(ctx, audit.ActionUpdate, caller.ID, model, id, "record updated")
	}
	return recs, nil
}

func (s *networkService) IssueCSRF(ctx context.Context, caller domain.Caller) (string, error) {
	if !caller.Authenticated() || caller.SessionID == "" {
		return "", domain.Errorf(domain.KindForbidden, "authentication required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.csrf.Issue(ctx, caller.SessionID)
	if err != nil {
		err = domain.Wrap(domain.KindUnavailable, err, "session store unavailable, try again")
		s.logFailure(ctx, "csrf", err)
		return "", err
	}
	audit.Log(ctx, audit.ActionCSRFIssue, caller.ID, "csrf token issued")
	return token, nil
}

// logFailure logs server-side failures at error level and client mistakes
// at debug.
func (s *networkService) logFailure(ctx context.Context, op string, err error) {
	l := pkglog.Ctx(ctx)
	kind := domain.KindOf(err)
	evt := l.Debug()
	if kind == domain.KindInternal || kind == domain.KindUnavailable {
		evt = l.Error()
	}
	evt.Err(err).
		Str(pkglog.FieldOperation, op).
		Str(pkglog.FieldErrorKind, string(kind)).
		Msg("operation failed")
}
