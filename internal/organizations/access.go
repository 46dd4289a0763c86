package organizations

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/response"
)

// MemberLookup resolves a user's role in an organization.
type MemberLookup interface {
	GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
}

// Resolver maps the id in a route parameter to the organization owning it.
type Resolver func(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

// Self resolves an organization id to itself.
func Self(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	return id, nil
}

// RequireAccess validates that the caller is a member of the organization owning the resource
// named by the route parameter, then stores the organization id and the caller's role in
// context. Call after JWT.
func RequireAccess(members MemberLookup, resolve Resolver, param string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(param))
		if err != nil {
			response.BadRequest(c, "invalid "+param)
			c.Abort()
			return
		}
		ctx := c.Request.Context()
		orgID, err := resolve(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "not found")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("resolve organization failed", zap.Error(err), zap.String("id", id.String()))
			response.Internal(c, "failed to load resource")
			c.Abort()
			return
		}
		role, err := members.GetUserRole(ctx, orgID, middleware.UserID(c))
		if errors.Is(err, database.ErrNotFound) {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("membership lookup failed", zap.Error(err))
			response.Internal(c, "failed to check membership")
			c.Abort()
			return
		}
		c.Set(middleware.ContextOrganizationID, orgID)
		c.Set(middleware.ContextOrgRole, role)
		c.Next()
	}
}
