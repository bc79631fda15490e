package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

const ContextCaller = "caller"

// CallerResolver turns a bearer token into the calling account.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (*model.Caller, error)
}

type AuthMiddleware struct {
	resolver CallerResolver
}

func NewAuthMiddleware(resolver CallerResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate resolves the bearer token on every request and stores the
// caller in the gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthenticated(nil))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthenticated(nil))
			return
		}

		caller, err := m.resolver.ResolveCaller(c.Request.Context(), parts[1])
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextCaller, caller)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthenticated(nil))
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden("your role cannot use this endpoint"))
	}
}

// CallerFrom returns the caller set by Authenticate.
func CallerFrom(c *gin.Context) (*model.Caller, bool) {
	v, ok := c.Get(ContextCaller)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*model.Caller)
	return caller, ok && caller != nil
}
