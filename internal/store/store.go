// Package store is the persistence gateway for the catalog. The engine talks
// to the Store interface only; the production implementation is GORM over
// PostgreSQL, tests run the same implementation over SQLite.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devtoolhub/toolhub/internal/models"
)

// SortField enumerates the sort keys a caller may request. SortUsageCount is
// not expressible at the storage layer; callers that request it must order in
// memory (see catalog's advanced filter).
type SortField string

const (
	SortDisplayOrder SortField = "display_order"
	SortName         SortField = "name"
	SortCreatedAt    SortField = "created_at"
	SortUsageCount   SortField = "usage_count"
)

// StorageSortable reports whether the field can be pushed down as an ORDER BY.
func (f SortField) StorageSortable() bool {
	switch f {
	case SortDisplayOrder, SortName, SortCreatedAt:
		return true
	}
	return false
}

// ToolQuery describes a tool listing. Every field except Sort on usage count
// is pushed down to the database.
type ToolQuery struct {
	// Search matches name, description and slug of the tool, or name and slug
	// of any associated tag. Matching is a case-insensitive substring.
	Search string
	// Active filters on the lifecycle flag when non-nil
	Active *bool
	// TagIDs keeps tools carrying at least one of the given tags
	TagIDs []uuid.UUID
	// TagSlug keeps tools associated with the tag of that slug
	TagSlug string
	// CreatedFrom/CreatedTo bound the creation timestamp (inclusive)
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// WithoutTags keeps only tools with no tag associations
	WithoutTags bool

	// Sort and Desc select the ORDER BY. An empty or non-storage-sortable
	// field falls back to is_active desc, display_order asc.
	Sort SortField
	Desc bool

	// Offset/Limit paginate at the storage layer. Limit <= 0 means no limit.
	Offset int
	Limit  int

	// IncludeTags preloads the join rows together with their tags
	IncludeTags bool
	// IncludeUsage preloads the usage stat rows
	IncludeUsage bool
}

// Store is the persistence gateway contract consumed by the catalog engine.
//
// Lookup methods return (nil, nil) when the record does not exist; storage
// failures are returned as errors.
type Store interface {
	// Tools
	CreateTool(ctx context.Context, tool *models.Tool) error
	UpdateTool(ctx context.Context, tool *models.Tool) error
	DeleteTool(ctx context.Context, id uuid.UUID) error
	GetToolByID(ctx context.Context, id uuid.UUID) (*models.Tool, error)
	GetToolBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tool, error)
	// LookupToolID resolves a slug to the tool id without loading relations.
	LookupToolID(ctx context.Context, slug string, activeOnly bool) (uuid.UUID, bool, error)
	ListTools(ctx context.Context, q ToolQuery) ([]models.Tool, error)
	CountTools(ctx context.Context, q ToolQuery) (int64, error)

	// Tags
	CreateTag(ctx context.Context, tag *models.Tag) error
	UpdateTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, id uuid.UUID) error
	GetTagByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
	GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	// TagToolCounts returns, per tag id, the number of join rows whose tool is
	// currently active.
	TagToolCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	// CountTagAssignments counts all join rows for the tag, active or not.
	CountTagAssignments(ctx context.Context, tagID uuid.UUID) (int64, error)

	// Relationships
	GetToolTag(ctx context.Context, toolID, tagID uuid.UUID) (*models.ToolTag, error)
	CreateToolTag(ctx context.Context, link *models.ToolTag) error
	DeleteToolTag(ctx context.Context, toolID, tagID uuid.UUID) error
	ListToolTags(ctx context.Context) ([]models.ToolTag, error)
	CountToolTags(ctx context.Context) (int64, error)
	CountToolsWithTags(ctx context.Context) (int64, error)
	CountTagsWithTools(ctx context.Context) (int64, error)

	// Usage. IncrementUsage must be a single atomic upsert-with-increment so
	// concurrent recordings against the same tool never lose updates.
	IncrementUsage(ctx context.Context, toolID uuid.UUID, now time.Time) error
}
