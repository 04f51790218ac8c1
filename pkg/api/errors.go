package api

import (
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
)

// errorResponse is the body every failure returns, per the response
// conventions: {error, code?}.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.Unauthenticated:     http.StatusUnauthorized,
	apperr.Forbidden:           http.StatusForbidden,
	apperr.NotFound:            http.StatusNotFound,
	apperr.InvalidInput:        http.StatusBadRequest,
	apperr.Conflict:            http.StatusConflict,
	apperr.Locked:              http.StatusLocked,
	apperr.RateLimited:         http.StatusTooManyRequests,
	apperr.ProviderErrorKind:   http.StatusBadGateway,
	apperr.InsufficientCredits: http.StatusPaymentRequired,
	apperr.Misconfigured:       http.StatusInternalServerError,
	apperr.Internal:            http.StatusInternalServerError,
}

// httpErrorHandler is installed as the Echo instance's HTTPErrorHandler so
// every handler can just `return err` and have it translated uniformly —
// ownership failures become 404, never 403, matching apperr.NotFoundf's own
// contract.
func httpErrorHandler(err error, c *echo.Context) {
	if he, ok := err.(*echo.HTTPError); ok {
		if c.Response().Committed {
			return
		}
		_ = c.JSON(he.Code, errorResponse{Error: fmt.Sprint(he.Message)})
		return
	}

	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		slog.Error("unhandled request error", "error", err, "path", c.Request().URL.Path)
	}
	if c.Response().Committed {
		return
	}
	if writeErr := c.JSON(status, errorResponse{Error: err.Error(), Code: string(kind)}); writeErr != nil {
		slog.Error("failed writing error response", "error", writeErr)
	}
}
