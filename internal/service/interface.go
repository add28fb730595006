package service

import (
	"context"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/query"
)

// Identity is the whoami response. ID and Username are nil for anonymous
// callers.
type Identity struct {
	ID        *int64  `json:"id"`
	Username  *string `json:"username"`
	Anonymous bool    `json:"anonymous"`
}

// NetworkService is the operation surface the HTTP layer calls.
type NetworkService interface {
	WhoAmI(ctx context.Context, caller domain.Caller) Identity
	Search(ctx context.Context, caller domain.Caller, req query.Request) (*query.Result, error)
	Create(ctx context.Context, caller domain.Caller, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, caller domain.Caller, req mutation.UpdateRequest) ([]map[string]any, error)
	IssueCSRF(ctx context.Context, caller domain.Caller) (string, error)
}
