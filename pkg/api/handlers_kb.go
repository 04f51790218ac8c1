package api

import (
	"io"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/kb"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerKBRoutes(g *echo.Group, s *Server) {
	g.GET("/kb/documents", s.listKBDocumentsHandler)
	g.POST("/kb/documents", s.uploadKBDocumentHandler)
	g.GET("/kb/documents/:id", s.getKBDocumentHandler)
	g.DELETE("/kb/documents/:id", s.deleteKBDocumentHandler)
	g.GET("/kb/search", s.searchKBHandler)
}

func (s *Server) listKBDocumentsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	docs, err := s.store.ListKBDocuments(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

// uploadKBDocumentHandler handles POST /api/v1/kb/documents as a multipart
// upload, parsing and validating the file before handing full text to the
// ingestion pipeline.
func (s *Server) uploadKBDocumentHandler(c *echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.InvalidInputf("file is required: %v", err)
	}
	format := c.FormValue("format")
	if format == "" {
		return apperr.InvalidInputf("format is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return apperr.InvalidInputf("could not open upload: %v", err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return apperr.InvalidInputf("could not read upload: %v", err)
	}

	text, err := kb.Parse(fileHeader.Filename, format, raw)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	doc, err := s.kb.Ingest(ctx, tenancy.TeamID(ctx), fileHeader.Filename, format, text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) getKBDocumentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	doc, err := s.store.GetKBDocument(ctx, tenancy.TeamID(ctx), c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteKBDocumentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.DeleteKBDocument(ctx, tenancy.TeamID(ctx), c.PathParam("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) searchKBHandler(c *echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return apperr.InvalidInputf("q is required")
	}
	topK := 5
	if v := c.QueryParam("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}
	ctx := c.Request().Context()
	results, err := s.kb.Search(ctx, tenancy.TeamID(ctx), query, topK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}
