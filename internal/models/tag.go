package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag represents a tag in the catalog
type Tag struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Slug        string    `json:"slug" gorm:"not null;uniqueIndex:idx_tags_slug;type:varchar(128)"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Color       string    `json:"color" gorm:"type:varchar(32)"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// One-to-Many Relations
	ToolTags []*ToolTag `json:"tool_tags,omitempty" gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the primary key so the schema works on any dialect
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ToolTag is the tool/tag join row. At most one row exists per pair; the pair
// is the primary key.
type ToolTag struct {
	ToolID    uuid.UUID `json:"tool_id" gorm:"primaryKey;type:uuid"`
	TagID     uuid.UUID `json:"tag_id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// Foreign Key Relations
	Tool *Tool `json:"tool,omitempty" gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE"`
	Tag  *Tag  `json:"tag,omitempty" gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (ToolTag) TableName() string {
	return "tool_tags"
}
