package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/models"
)

// Source looks up memberships for the resolver. *Service implements it;
// tests substitute fakes.
type Source interface {
	// ContextFor returns the workspace context for (user, workspace), or
	// nil when the user is not a member.
	ContextFor(ctx context.Context, userID, workspaceID uuid.UUID) (*Context, error)
	// FirstContext returns the user's earliest membership, or nil when the
	// user belongs to no workspace.
	FirstContext(ctx context.Context, userID uuid.UUID) (*Context, error)
}

// Strategy attempts one way of picking the active workspace. A nil result
// with a nil error means "no opinion, try the next one".
type Strategy func(ctx context.Context, src Source, user *models.User, hint string) (*Context, error)

// HeaderHint resolves the workspace named by the X-Workspace-Id header,
// provided the user is actually a member of it.
func HeaderHint(ctx context.Context, src Source, user *models.User, hint string) (*Context, error) {
	if hint == "" {
		return nil, nil
	}
	id, err := uuid.Parse(hint)
	if err != nil {
		return nil, nil
	}
	return src.ContextFor(ctx, user.ID, id)
}

// UserDefault resolves the user's stored default workspace.
func UserDefault(ctx context.Context, src Source, user *models.User, _ string) (*Context, error) {
	if user.DefaultWorkspaceID == nil {
		return nil, nil
	}
	return src.ContextFor(ctx, user.ID, *user.DefaultWorkspaceID)
}

// FirstMembership falls back to the user's earliest membership.
func FirstMembership(ctx context.Context, src Source, user *models.User, _ string) (*Context, error) {
	return src.FirstContext(ctx, user.ID)
}

// Resolver picks the active workspace for a request by trying an ordered
// list of strategies; the first non-nil context wins. A user with zero
// memberships resolves to nil, and routes that need workspace scope must
// reject that with 401 rather than proceed.
type Resolver struct {
	src   Source
	chain []Strategy
}

func NewResolver(src Source) *Resolver {
	return &Resolver{
		src:   src,
		chain: []Strategy{HeaderHint, UserDefault, FirstMembership},
	}
}

func (r *Resolver) Resolve(ctx context.Context, user *models.User, hint string) (*Context, error) {
	for _, strategy := range r.chain {
		tc, err := strategy(ctx, r.src, user, hint)
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		if tc != nil {
			return tc, nil
		}
	}
	return nil, nil
}
