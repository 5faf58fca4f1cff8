package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goassemble/internal/fragment"
	"github.com/jonesrussell/goassemble/internal/gateway"
	"github.com/jonesrussell/goassemble/internal/logger"
	"github.com/jonesrussell/goassemble/internal/resource"
)

// Handler exposes the gateway query surface over HTTP.
type Handler struct {
	gw      *gateway.Gateway
	log     logger.Logger
	name    string
	version string
}

// NewHandler creates the API handler.
func NewHandler(gw *gateway.Gateway, log logger.Logger, name, version string) *Handler {
	return &Handler{gw: gw, log: log, name: name, version: version}
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.name,
		"version": h.version,
	})
}

// credentials builds Credentials from the user/locale query parameters.
// Requests without either parameter share the anonymous cache entries.
func credentials(c *gin.Context) *gateway.Credentials {
	user := c.Query("user")
	locale := c.Query("locale")
	if user == "" && locale == "" {
		return nil
	}
	return &gateway.Credentials{User: user, Locale: locale}
}

// Block renders a named block from a provider page.
// GET /api/v1/block/:name?page=/news.html
func (h *Handler) Block(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}
	name := c.Param("name")

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.gw.RenderBlock(c.Request.Context(), page, name, credentials(c), c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// templateRequest is the body of a template render call. Params keep their
// order from the JSON array; substitution is applied in that order.
type templateRequest struct {
	Page   string `binding:"required" json:"page"`
	Name   string `json:"name"`
	Params []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"params"`
}

// Template renders a provider template with the given parameters.
// POST /api/v1/template
func (h *Handler) Template(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := make([]fragment.Param, len(req.Params))
	for i, p := range req.Params {
		params[i] = fragment.Param{Name: p.Name, Value: p.Value}
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.gw.RenderTemplate(c.Request.Context(), req.Page, req.Name, params, credentials(c), c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// Content streams a provider resource through unmodified.
// GET /content/*path
func (h *Handler) Content(c *gin.Context) {
	relURL := c.Param("path")
	// user/locale travel as credentials, not as part of the passthrough query.
	q := c.Request.URL.Query()
	q.Del("user")
	q.Del("locale")
	if enc := q.Encode(); enc != "" {
		relURL += "?" + enc
	}

	sink := newResponseSink(c.Writer)
	err := h.gw.RenderResource(c.Request.Context(), relURL, credentials(c), sink)
	if err == nil {
		return
	}
	if errors.Is(err, gateway.ErrResourceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found", "path": relURL})
		return
	}
	_ = c.Error(err)
	if !sink.opened {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed"})
	}
}

// responseSink adapts the HTTP response writer to the resource sink
// interface. The status line goes out on Open, so failures after that point
// can only truncate the body.
type responseSink struct {
	w      http.ResponseWriter
	opened bool
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	return &responseSink{w: w}
}

func (r *responseSink) Open(meta resource.Metadata) error {
	if meta.ContentType != "" {
		r.w.Header().Set("Content-Type", meta.ContentType)
	}
	r.w.WriteHeader(http.StatusOK)
	r.opened = true
	return nil
}

func (r *responseSink) Write(p []byte) (int, error) {
	return r.w.Write(p)
}

func (r *responseSink) Close() error { return nil }
