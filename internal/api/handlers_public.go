package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListTools returns the active catalog. With offset/limit query parameters it
// switches to the paginated variant.
func (h *Handlers) ListTools(c *gin.Context) {
	if c.Query("offset") != "" || c.Query("limit") != "" {
		offset := intQuery(c, "offset", 0)
		limit := intQuery(c, "limit", 20)
		page, err := h.catalog.ListToolsPage(c.Request.Context(), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	tools, err := h.catalog.ListTools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

// GetTool returns a single active tool by slug
func (h *Handlers) GetTool(c *gin.Context) {
	tool, err := h.catalog.GetTool(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// ListPopularTools returns the most used active tools
func (h *Handlers) ListPopularTools(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	tools, err := h.catalog.ListPopularTools(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

// RecordUsage increments the tool's usage counter. Usage tracking is
// best-effort: an unknown slug is accepted and dropped rather than failing
// the caller.
func (h *Handlers) RecordUsage(c *gin.Context) {
	status, err := h.catalog.RecordUsage(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": status.String()})
}

// ListTags returns all tags with their active tool counts
func (h *Handlers) ListTags(c *gin.Context) {
	tags, err := h.catalog.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag returns a single tag by slug
func (h *Handlers) GetTag(c *gin.Context) {
	tag, err := h.catalog.GetTag(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// ListToolsByTag returns the active tools carrying the tag. With offset/limit
// query parameters it switches to the paginated variant.
func (h *Handlers) ListToolsByTag(c *gin.Context) {
	slug := c.Param("slug")

	if c.Query("offset") != "" || c.Query("limit") != "" {
		offset := intQuery(c, "offset", 0)
		limit := intQuery(c, "limit", 20)
		page, err := h.catalog.ListToolsByTagPage(c.Request.Context(), slug, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	tools, err := h.catalog.ListToolsByTag(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

// Search performs the public full-text search
func (h *Handlers) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	tools, err := h.catalog.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
