package api

import (
	"context"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/identity"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tenancy"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// authMiddleware verifies the Authorization bearer token and binds the
// resulting user id onto the request context (not yet a team — that's
// tenancy.RequireTeamHeader's job, chained after this).
func authMiddleware(verifier *identity.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			userID, err := verifier.Verify(req.Context(), req.Header.Get("Authorization"))
			if err != nil {
				return err
			}
			ctx := tenancy.Bind(req.Context(), userID, "", "")
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// membershipLookup adapts *store.Store to tenancy.MemberLookup: the store
// returns the full membership row (or nil) while tenancy only needs the
// narrower (role, isMember) shape.
type membershipLookup struct {
	store *store.Store
}

func (m membershipLookup) GetMembership(ctx context.Context, teamID, userID string) (string, bool, error) {
	membership, err := m.store.GetMembership(ctx, teamID, userID)
	if err != nil {
		return "", false, err
	}
	if membership == nil {
		return "", false, nil
	}
	return membership.Role, true, nil
}
