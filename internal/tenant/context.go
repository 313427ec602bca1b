package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/models"
)

// Context is the resolved workspace scope of a request: the workspace and
// the authenticated user's membership in it.
type Context struct {
	Workspace  *models.Workspace  `json:"workspace"`
	Membership *models.Membership `json:"membership"`
}

type contextKey string

const (
	workspaceKey contextKey = "workspace"
	userKey      contextKey = "user"
)

func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, workspaceKey, tc)
}

func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(workspaceKey).(*Context)
	return tc
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if tc := FromContext(ctx); tc != nil && tc.Workspace != nil {
		return tc.Workspace.ID
	}
	return uuid.Nil
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}
