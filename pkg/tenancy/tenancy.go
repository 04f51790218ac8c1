// Package tenancy binds an authenticated request to exactly one team and
// enforces role-based access within it. No handler may read or write a
// tenant-scoped row without going through a context carrying a bound
// TeamID; ownership mismatches must always read as NotFound, never
// Forbidden (so as not to leak whether a resource exists in another tenant).
package tenancy

import (
	"context"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	teamIDKey
	roleKey
)

// Bind stores the authenticated caller's identity on the context.
func Bind(ctx context.Context, userID, teamID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, teamIDKey, teamID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func TeamID(ctx context.Context) string {
	v, _ := ctx.Value(teamIDKey).(string)
	return v
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(roleKey).(string)
	return v
}

// RoleRank orders roles from least to most privileged; RequireRole succeeds
// when the caller's role ranks at or above the minimum.
var roleRank = map[string]int{"viewer": 0, "member": 1, "admin": 2}

// RequireRole reports whether the context's bound role meets the minimum.
func RequireRole(ctx context.Context, minimum string) error {
	have, ok := roleRank[Role(ctx)]
	if !ok {
		return apperr.Forbiddenf("no role bound to request")
	}
	want, ok := roleRank[minimum]
	if !ok {
		return apperr.Internalf("unknown role requirement %q", minimum)
	}
	if have < want {
		return apperr.Forbiddenf("requires role %q or higher", minimum)
	}
	return nil
}

// MemberLookup resolves a user's role within a team; implemented by
// pkg/api's adapter over pkg/store.Store.GetMembership.
type MemberLookup interface {
	GetMembership(ctx context.Context, teamID, userID string) (role string, isMember bool, err error)
}

// RequireTeamHeader builds echo middleware that reads X-Team-Id, confirms
// the authenticated user (already bound by pkg/identity's middleware) is a
// member of that team, and binds team id and role onto the request context.
// Routes that are not team-scoped (team creation, team listing) must not use
// this middleware.
func RequireTeamHeader(lookup MemberLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			userID := UserID(req.Context())
			if userID == "" {
				return apperr.Unauthenticatedf("no authenticated user bound to request")
			}
			teamID := req.Header.Get("X-Team-Id")
			if teamID == "" {
				return apperr.InvalidInputf("missing X-Team-Id header")
			}
			role, isMember, err := lookup.GetMembership(req.Context(), teamID, userID)
			if err != nil {
				return err
			}
			if !isMember {
				// Never distinguish "team doesn't exist" from "not a member of it".
				return apperr.NotFoundf("team %s", teamID)
			}
			ctx := Bind(req.Context(), userID, teamID, role)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
