package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerCredentialRoutes(g *echo.Group, s *Server) {
	g.GET("/credentials", s.listCredentialsHandler)
	g.PUT("/credentials/:service_id", s.putCredentialHandler)
	g.DELETE("/credentials/:service_id", s.deleteCredentialHandler)
}

// credentialSummary omits the encrypted blob: credential values are never
// readable back through the API once stored, only rotated or deleted.
type credentialSummary struct {
	ServiceID string `json:"service_id"`
	CredType  string `json:"cred_type"`
}

func (s *Server) listCredentialsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	creds, err := s.store.ListCredentials(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	out := make([]credentialSummary, 0, len(creds))
	for _, cr := range creds {
		out = append(out, credentialSummary{ServiceID: cr.ServiceID, CredType: cr.CredType})
	}
	return c.JSON(http.StatusOK, out)
}

type putCredentialRequest struct {
	CredType string `json:"cred_type"`
	Value    string `json:"value"`
}

func (s *Server) putCredentialHandler(c *echo.Context) error {
	var req putCredentialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CredType == "" || req.Value == "" {
		return apperr.InvalidInputf("cred_type and value are required")
	}
	ctx := c.Request().Context()
	if err := tenancy.RequireRole(ctx, "admin"); err != nil {
		return err
	}

	blob, err := s.vault.Encrypt(req.Value)
	if err != nil {
		return apperr.Internalf("encrypt credential: %v", err)
	}
	if err := s.store.UpsertCredential(ctx, tenancy.TeamID(ctx), c.PathParam("service_id"), req.CredType, blob); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteCredentialHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := tenancy.RequireRole(ctx, "admin"); err != nil {
		return err
	}
	if err := s.store.DeleteCredential(ctx, tenancy.TeamID(ctx), c.PathParam("service_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
