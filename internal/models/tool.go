package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tool represents a utility tool in the catalog
type Tool struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	Slug         string         `json:"slug" gorm:"not null;uniqueIndex:idx_tools_slug;type:varchar(128)"`
	Name         string         `json:"name" gorm:"not null"`
	Description  string         `json:"description"`
	Icon         string         `json:"icon"`
	DisplayOrder int            `json:"display_order" gorm:"not null;default:0;index:idx_tools_display_order"`
	IsActive     bool           `json:"is_active" gorm:"not null;default:true"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// One-to-Many Relations
	ToolTags   []*ToolTag        `json:"tool_tags,omitempty" gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE"`
	UsageStats []*ToolUsageStats `json:"usage_stats,omitempty" gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the primary key so the schema works on any dialect
func (t *Tool) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// UsageCount sums the tool's usage stat rows. The column is not persisted on
// the tool itself; the stats table may fan out to more than one row per tool.
func (t *Tool) UsageCount() int64 {
	var total int64
	for _, s := range t.UsageStats {
		total += s.UsageCount
	}
	return total
}

// ToolUsageStats holds the usage counter for a single tool. One row per tool,
// created on first use and incremented in place afterwards.
type ToolUsageStats struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	ToolID     uuid.UUID `json:"tool_id" gorm:"not null;type:uuid;uniqueIndex:idx_tool_usage_stats_tool"`
	UsageCount int64     `json:"usage_count" gorm:"not null;default:0"`
	LastUsedAt time.Time `json:"last_used_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// Foreign Key Relations
	Tool *Tool `json:"tool,omitempty" gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (ToolUsageStats) TableName() string {
	return "tool_usage_stats"
}

// BeforeCreate assigns the primary key so the schema works on any dialect
func (s *ToolUsageStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
