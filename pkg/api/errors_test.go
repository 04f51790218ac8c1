package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

func newErrorTestEcho(handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler
	e.GET("/test", handler)
	return e
}

func TestHTTPErrorHandler_LockedMapsTo423(t *testing.T) {
	e := newErrorTestEcho(func(c *echo.Context) error {
		return apperr.Lockedf("%q locked by agent agent-1, try again in 5 seconds", "file.txt")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Contains(t, rec.Body.String(), "locked by agent agent-1")
}

func TestHTTPErrorHandler_ConflictMapsTo409NotLocked(t *testing.T) {
	e := newErrorTestEcho(func(c *echo.Context) error {
		return apperr.Conflictf("a table named %q already exists", "leads")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTPErrorHandler_NotFoundMapsTo404(t *testing.T) {
	e := newErrorTestEcho(func(c *echo.Context) error {
		return apperr.NotFoundf("agent %s", "agent-1")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPErrorHandler_UnmappedKindDefaultsTo500(t *testing.T) {
	e := newErrorTestEcho(func(c *echo.Context) error {
		return assertPlainError("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHTTPErrorHandler_EchoHTTPErrorPassesThroughItsOwnCode(t *testing.T) {
	e := newErrorTestEcho(func(c *echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
}

type assertPlainError string

func (e assertPlainError) Error() string { return string(e) }
