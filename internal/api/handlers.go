// Package api exposes the ingestion gateway over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/gateway"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

// Gateway defines the operations needed by the handlers.
type Gateway interface {
	List(ctx context.Context, q gateway.ListQuery) (gateway.ListResponse, error)
	Saved(ctx context.Context) (gateway.SavedResponse, error)
	Save(ctx context.Context, articleID string) (gateway.SaveResponse, error)
	Unsave(ctx context.Context, articleID string) (gateway.UnsaveResponse, error)
	Trigger(ctx context.Context, source string, force bool) (gateway.TriggerResponse, error)
	Status(ctx context.Context) (gateway.StatusResponse, error)
}

// Handler serves the article endpoints.
type Handler struct {
	gw  Gateway
	log logger.Logger
}

// NewHandler creates a new article handler.
func NewHandler(gw Gateway, log logger.Logger) *Handler {
	return &Handler{gw: gw, log: logger.OrNop(log)}
}

type saveRequest struct {
	ArticleID string `json:"article_id" binding:"required"`
}

// ListArticles handles GET /api/articles.
func (h *Handler) ListArticles(c *gin.Context) {
	saved, ok := boolQuery(c, "saved")
	if !ok {
		return
	}
	resp, err := h.gw.List(c.Request.Context(), gateway.ListQuery{
		Source: c.Query("source"),
		Saved:  saved,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SavedArticles handles GET /api/articles/saved.
func (h *Handler) SavedArticles(c *gin.Context) {
	resp, err := h.gw.Saved(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SaveArticle handles POST /api/articles/save.
func (h *Handler) SaveArticle(c *gin.Context) {
	var req saveRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	resp, err := h.gw.Save(c.Request.Context(), req.ArticleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UnsaveArticle handles DELETE /api/articles/save/:article_id.
func (h *Handler) UnsaveArticle(c *gin.Context) {
	resp, err := h.gw.Unsave(c.Request.Context(), c.Param("article_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TriggerScrape handles POST /api/scrape.
func (h *Handler) TriggerScrape(c *gin.Context) {
	force, ok := boolQuery(c, "force")
	if !ok {
		return
	}
	resp, err := h.gw.Trigger(c.Request.Context(), c.Query("source"), force)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/status.
func (h *Handler) Status(c *gin.Context) {
	resp, err := h.gw.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.ErrorObj("request failed", "request_error", map[string]any{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// boolQuery parses an optional boolean query parameter, writing a 400 on bad input.
func boolQuery(c *gin.Context, key string) (bool, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + " parameter"})
		return false, false
	}
	return v, true
}
