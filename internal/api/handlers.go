package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/romangod6/sitemapdump/internal/app"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/indexer"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/pattern"
)

type Handler struct {
	app *app.App
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PaginationResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalCount int         `json:"total_count,omitempty"`
}

type CollectRequest struct {
	Domain      string `json:"domain" binding:"required"`
	Protocol    string `json:"protocol"`
	SitemapPath string `json:"sitemapPath"`
	URLPattern  string `json:"urlPattern"`
}

type CollectResponse struct {
	Run     *models.Run `json:"run"`
	URLs    []string    `json:"urls"`
	Fetched []string    `json:"fetched"`
	Skipped []string    `json:"skipped"`
}

type IndexRequest struct {
	Pattern string   `json:"pattern" binding:"required"`
	URLs    []string `json:"urls" binding:"required"`
}

type IndexResponse struct {
	Run       *models.Run       `json:"run"`
	Rows      []models.IndexRow `json:"rows"`
	Unmatched []string          `json:"unmatched"`
}

func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

func (h *Handler) Collect(c *gin.Context) {
	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid collect request"})
		return
	}

	var pat *pattern.Pattern
	if req.URLPattern != "" {
		var err error
		if pat, err = pattern.Compile(req.URLPattern); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	site := models.NewWebsite(req.Domain, req.Protocol, req.SitemapPath, pat)
	run, res, err := h.app.Collect(c.Request.Context(), site)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, CollectResponse{
		Run:     run,
		URLs:    res.URLs.Sorted(),
		Fetched: nonNil(res.Fetched),
		Skipped: nonNil(res.Skipped),
	})
}

func (h *Handler) Index(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid index request"})
		return
	}

	b, err := indexer.NewBuilder(req.Pattern, h.app.Logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	run, res, err := h.app.Index(c.Request.Context(), b, "api", req.URLs)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []models.IndexRow{}
	}
	c.JSON(http.StatusOK, IndexResponse{
		Run:       run,
		Rows:      rows,
		Unmatched: nonNil(res.Unmatched),
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	runs, err := h.app.Store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch runs"})
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:  runs,
		Page:  page,
		Limit: limit,
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) ListRunURLs(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	urls, err := h.app.Store.ListURLs(c.Request.Context(), run.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch URLs"})
		return
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:       nonNil(urls),
		Page:       page,
		Limit:      limit,
		TotalCount: run.ItemCount,
	})
}

func (h *Handler) ListRunRows(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	rows, err := h.app.Store.ListIndexRows(c.Request.Context(), run.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch index rows"})
		return
	}
	if rows == nil {
		rows = []models.IndexRow{}
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:       rows,
		Page:       page,
		Limit:      limit,
		TotalCount: run.ItemCount,
	})
}

func (h *Handler) requireStore(c *gin.Context) bool {
	if h.app.Store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "No run store configured"})
		return false
	}
	return true
}

func (h *Handler) lookupRun(c *gin.Context) (*models.Run, bool) {
	if !h.requireStore(c) {
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid run ID"})
		return nil, false
	}

	run, err := h.app.Store.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch run"})
		return nil, false
	}
	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Run not found"})
		return nil, false
	}

	return run, true
}

// statusFor maps an error kind to the response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrFetch), errors.Is(err, errs.ErrParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Utility functions
func getPaginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return page, limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
