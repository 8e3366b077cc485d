// Package api wires the catalog engine to a gin JSON API: a public read
// surface and an /admin back office. Authentication and HTML rendering live
// outside this service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devtoolhub/toolhub/internal/catalog"
)

// Handlers bundles the injected services behind the HTTP surface
type Handlers struct {
	catalog *catalog.Service
	admin   *catalog.Admin
	rels    *catalog.Relationships
	log     *zap.Logger
}

// NewHandlers constructs the handler set
func NewHandlers(svc *catalog.Service, admin *catalog.Admin, rels *catalog.Relationships, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{catalog: svc, admin: admin, rels: rels, log: log}
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.Default()

	// Ping endpoint for health check
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/tools", h.ListTools)
		v1.GET("/tools/popular", h.ListPopularTools)
		v1.GET("/tools/:slug", h.GetTool)
		v1.POST("/tools/:slug/usage", h.RecordUsage)
		v1.GET("/tags", h.ListTags)
		v1.GET("/tags/:slug", h.GetTag)
		v1.GET("/tags/:slug/tools", h.ListToolsByTag)
		v1.GET("/search", h.Search)
	}

	admin := r.Group("/admin")
	{
		admin.GET("/tools", h.AdminSearchTools)
		admin.POST("/tools", h.AdminCreateTool)
		admin.PUT("/tools/:id", h.AdminUpdateTool)
		admin.POST("/tools/:id/toggle", h.AdminToggleTool)
		admin.DELETE("/tools/:id", h.AdminDeleteTool)

		admin.POST("/tags", h.AdminCreateTag)
		admin.PUT("/tags/:id", h.AdminUpdateTag)
		admin.DELETE("/tags/:id", h.AdminDeleteTag)

		admin.POST("/relationships/assign", h.AdminAssignTag)
		admin.POST("/relationships/unassign", h.AdminUnassignTag)
		admin.POST("/relationships/bulk", h.AdminBulkRelationships)
		admin.GET("/relationships/matrix", h.AdminRelationshipMatrix)
		admin.GET("/relationships/stats", h.AdminRelationshipStats)

		admin.GET("/filter-options", h.AdminFilterOptions)
	}

	return r
}

// respondError translates catalog errors into HTTP responses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, catalog.ErrSlugTaken),
		errors.Is(err, catalog.ErrAlreadyAssigned),
		errors.Is(err, catalog.ErrNotAssigned),
		errors.Is(err, catalog.ErrTagInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// audit emits the who/what of an admin mutation. Audit rows are persisted by
// an external collaborator; this service only logs the action.
func (h *Handlers) audit(c *gin.Context, action string, fields ...zap.Field) {
	fields = append(fields,
		zap.String("action", action),
		zap.String("actor", c.GetHeader("X-Admin-User")),
		zap.String("ip", c.ClientIP()),
		zap.String("user_agent", c.Request.UserAgent()),
	)
	h.log.Info("admin action", fields...)
}
