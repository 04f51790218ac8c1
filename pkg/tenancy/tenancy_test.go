package tenancy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

func TestBind_RoundTripsThroughAccessors(t *testing.T) {
	ctx := Bind(context.Background(), "user-1", "team-1", "admin")
	assert.Equal(t, "user-1", UserID(ctx))
	assert.Equal(t, "team-1", TeamID(ctx))
	assert.Equal(t, "admin", Role(ctx))
}

func TestAccessors_ReturnEmptyOnUnboundContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", UserID(ctx))
	assert.Equal(t, "", TeamID(ctx))
	assert.Equal(t, "", Role(ctx))
}

func TestRequireRole_OrdersByRank(t *testing.T) {
	admin := Bind(context.Background(), "u", "t", "admin")
	member := Bind(context.Background(), "u", "t", "member")
	viewer := Bind(context.Background(), "u", "t", "viewer")

	assert.NoError(t, RequireRole(admin, "member"))
	assert.NoError(t, RequireRole(member, "member"))
	assert.Error(t, RequireRole(viewer, "member"))
}

func TestRequireRole_UnboundRoleIsForbidden(t *testing.T) {
	err := RequireRole(context.Background(), "member")
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

type stubMemberLookup struct {
	role     string
	isMember bool
	err      error
}

func (s stubMemberLookup) GetMembership(ctx context.Context, teamID, userID string) (string, bool, error) {
	return s.role, s.isMember, s.err
}

func newTestEcho(lookup MemberLookup) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			ctx := Bind(c.Request().Context(), "user-1", "", "")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	e.Use(RequireTeamHeader(lookup))
	e.GET("/test", func(c *echo.Context) error {
		return c.String(http.StatusOK, TeamID(c.Request().Context())+":"+Role(c.Request().Context()))
	})
	return e
}

func TestRequireTeamHeader_BindsTeamAndRoleOnSuccess(t *testing.T) {
	e := newTestEcho(stubMemberLookup{role: "admin", isMember: true})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Team-Id", "team-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "team-42:admin", rec.Body.String())
}

func TestRequireTeamHeader_MissingHeaderIsInvalidInput(t *testing.T) {
	var capturedErr error
	e := newTestEcho(stubMemberLookup{role: "admin", isMember: true})
	e.HTTPErrorHandler = func(err error, c *echo.Context) {
		capturedErr = err
		_ = c.NoContent(http.StatusTeapot)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Error(t, capturedErr)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(capturedErr))
}

func TestRequireTeamHeader_NonMemberIsNotFoundNotForbidden(t *testing.T) {
	var capturedErr error
	e := newTestEcho(stubMemberLookup{isMember: false})
	e.HTTPErrorHandler = func(err error, c *echo.Context) {
		capturedErr = err
		_ = c.NoContent(http.StatusTeapot)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Team-Id", "team-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Error(t, capturedErr)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(capturedErr), "a non-member must never be told Forbidden, which would leak the team's existence")
}
