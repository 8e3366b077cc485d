package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devtoolhub/toolhub/internal/catalog"
	"github.com/devtoolhub/toolhub/internal/store"
)

// AdminCreateTool creates a tool
func (h *Handlers) AdminCreateTool(c *gin.Context) {
	var input catalog.CreateToolInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tool, err := h.admin.CreateTool(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tool.create", zap.String("slug", tool.Slug))
	c.JSON(http.StatusCreated, tool)
}

// AdminUpdateTool updates a tool
func (h *Handlers) AdminUpdateTool(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool id"})
		return
	}

	var input catalog.UpdateToolInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tool, err := h.admin.UpdateTool(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tool.update", zap.String("tool_id", id.String()))
	c.JSON(http.StatusOK, tool)
}

// AdminToggleTool flips the tool's active flag
func (h *Handlers) AdminToggleTool(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool id"})
		return
	}

	tool, err := h.admin.ToggleTool(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tool.toggle",
		zap.String("tool_id", id.String()),
		zap.Bool("is_active", tool.IsActive))
	c.JSON(http.StatusOK, tool)
}

// AdminDeleteTool deletes a tool
func (h *Handlers) AdminDeleteTool(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool id"})
		return
	}

	if err := h.admin.DeleteTool(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tool.delete", zap.String("tool_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "tool deleted"})
}

// AdminCreateTag creates a tag
func (h *Handlers) AdminCreateTag(c *gin.Context) {
	var input catalog.CreateTagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := h.admin.CreateTag(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tag.create", zap.String("slug", tag.Slug))
	c.JSON(http.StatusCreated, tag)
}

// AdminUpdateTag updates a tag
func (h *Handlers) AdminUpdateTag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	var input catalog.UpdateTagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := h.admin.UpdateTag(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tag.update", zap.String("tag_id", id.String()))
	c.JSON(http.StatusOK, tag)
}

// AdminDeleteTag deletes a tag unless tools still carry it
func (h *Handlers) AdminDeleteTag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	if err := h.admin.DeleteTag(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "tag.delete", zap.String("tag_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}

// RelationshipInput identifies a single tool/tag pair
type RelationshipInput struct {
	ToolID uuid.UUID `json:"tool_id" binding:"required"`
	TagID  uuid.UUID `json:"tag_id" binding:"required"`
}

// AdminAssignTag creates a relationship. The manager does not flush the
// cache itself; the controller does, after the audit entry.
func (h *Handlers) AdminAssignTag(c *gin.Context) {
	var input RelationshipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rels.AssignTag(c.Request.Context(), input.ToolID, input.TagID); err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "relationship.assign",
		zap.String("tool_id", input.ToolID.String()),
		zap.String("tag_id", input.TagID.String()))
	if err := h.catalog.FlushCache(c.Request.Context()); err != nil {
		h.log.Warn("cache flush failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"message": "tag assigned"})
}

// AdminUnassignTag removes a relationship
func (h *Handlers) AdminUnassignTag(c *gin.Context) {
	var input RelationshipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rels.UnassignTag(c.Request.Context(), input.ToolID, input.TagID); err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "relationship.unassign",
		zap.String("tool_id", input.ToolID.String()),
		zap.String("tag_id", input.TagID.String()))
	if err := h.catalog.FlushCache(c.Request.Context()); err != nil {
		h.log.Warn("cache flush failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "tag unassigned"})
}

// BulkRelationshipInput applies an action across toolIds x tagIds
type BulkRelationshipInput struct {
	ToolIDs []uuid.UUID `json:"tool_ids" binding:"required"`
	TagIDs  []uuid.UUID `json:"tag_ids" binding:"required"`
	Action  string      `json:"action" binding:"required,oneof=assign unassign"`
}

// AdminBulkRelationships runs a bulk assign/unassign
func (h *Handlers) AdminBulkRelationships(c *gin.Context) {
	var input BulkRelationshipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rels.BulkManage(c.Request.Context(), catalog.BulkRequest{
		ToolIDs: input.ToolIDs,
		TagIDs:  input.TagIDs,
		Action:  catalog.BulkAction(input.Action),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "relationship.bulk",
		zap.String("bulk_action", input.Action),
		zap.Int("affected", result.Affected),
		zap.Int("skipped", result.Skipped))
	if err := h.catalog.FlushCache(c.Request.Context()); err != nil {
		h.log.Warn("cache flush failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, result)
}

// AdminRelationshipMatrix returns the full bipartite relationship graph
func (h *Handlers) AdminRelationshipMatrix(c *gin.Context) {
	matrix, err := h.rels.Matrix(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matrix)
}

// AdminRelationshipStats returns join-table aggregates
func (h *Handlers) AdminRelationshipStats(c *gin.Context) {
	stats, err := h.rels.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AdminSearchTools runs the advanced filter over the whole catalog
func (h *Handlers) AdminSearchTools(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	filters, err := parseAdvancedFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.catalog.FindToolsAdvanced(c.Request.Context(), page, limit, *filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdminFilterOptions returns tag list and usage-count bounds for the filter UI
func (h *Handlers) AdminFilterOptions(c *gin.Context) {
	opts, err := h.catalog.GetFilterOptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func parseAdvancedFilters(c *gin.Context) (*catalog.AdvancedFilters, error) {
	f := catalog.AdvancedFilters{
		Search:      c.Query("search"),
		WithoutTags: c.Query("without_tags") == "true",
		Sort:        store.SortField(c.Query("sort")),
		Desc:        c.Query("order") == "desc",
	}

	if v := c.Query("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}
	for _, raw := range c.QueryArray("tag_id") {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		f.TagIDs = append(f.TagIDs, id)
	}
	if v := c.Query("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		f.CreatedFrom = &t
	}
	if v := c.Query("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		f.CreatedTo = &t
	}
	if v := c.Query("usage_min"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		f.UsageMin = &n
	}
	if v := c.Query("usage_max"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		f.UsageMax = &n
	}

	return &f, nil
}
