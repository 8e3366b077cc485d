package catalog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/devtoolhub/toolhub/internal/models"
)

// Tool is the shaped record the catalog exposes to controllers. Join rows are
// flattened into Tags and the usage aggregate is computed; raw table structure
// never crosses this boundary.
type Tool struct {
	ID           uuid.UUID       `json:"id"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Icon         string          `json:"icon"`
	DisplayOrder int             `json:"display_order"`
	IsActive     bool            `json:"is_active"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Tags         []Tag           `json:"tags"`
	UsageCount   int64           `json:"usage_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Tag is the shaped tag record. ToolCount is the number of active tools
// carrying the tag; it is only populated by tag listings.
type Tag struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	ToolCount   int64     `json:"tool_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToolPage is a paginated tool listing with the total matching count
type ToolPage struct {
	Items  []Tool `json:"items"`
	Total  int64  `json:"total"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func toolView(m models.Tool) Tool {
	tags := make([]Tag, 0, len(m.ToolTags))
	for _, link := range m.ToolTags {
		if link.Tag == nil {
			continue
		}
		tags = append(tags, tagView(*link.Tag, 0))
	}

	return Tool{
		ID:           m.ID,
		Slug:         m.Slug,
		Name:         m.Name,
		Description:  m.Description,
		Icon:         m.Icon,
		DisplayOrder: m.DisplayOrder,
		IsActive:     m.IsActive,
		Metadata:     json.RawMessage(m.Metadata),
		Tags:         tags,
		UsageCount:   m.UsageCount(),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toolViews(ms []models.Tool) []Tool {
	out := make([]Tool, 0, len(ms))
	for _, m := range ms {
		out = append(out, toolView(m))
	}
	return out
}

func tagView(m models.Tag, toolCount int64) Tag {
	return Tag{
		ID:          m.ID,
		Slug:        m.Slug,
		Name:        m.Name,
		Description: m.Description,
		Color:       m.Color,
		ToolCount:   toolCount,
		CreatedAt:   m.CreatedAt,
	}
}
