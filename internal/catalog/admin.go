package catalog

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/devtoolhub/toolhub/internal/cache"
	"github.com/devtoolhub/toolhub/internal/models"
	"github.com/devtoolhub/toolhub/internal/store"
)

// Admin is the back-office write surface: tool and tag lifecycle. Every
// successful mutation flushes the whole cache; correctness over hit rate.
type Admin struct {
	store store.Store
	cache cache.Cache
	log   *zap.Logger
}

// NewAdmin constructs the admin service
func NewAdmin(st store.Store, c cache.Cache, log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	return &Admin{store: st, cache: c, log: log}
}

// CreateToolInput carries the fields of a new tool. Slug is derived from Name
// when empty.
type CreateToolInput struct {
	Name         string          `json:"name" binding:"required"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	Icon         string          `json:"icon"`
	DisplayOrder int             `json:"display_order"`
	Metadata     json.RawMessage `json:"metadata"`
}

// UpdateToolInput carries the updatable tool fields; nil fields are untouched.
// Setting Slug is an explicit rename and re-checks uniqueness.
type UpdateToolInput struct {
	Name         *string         `json:"name"`
	Slug         *string         `json:"slug"`
	Description  *string         `json:"description"`
	Icon         *string         `json:"icon"`
	DisplayOrder *int            `json:"display_order"`
	IsActive     *bool           `json:"is_active"`
	Metadata     json.RawMessage `json:"metadata"`
}

// CreateTagInput carries the fields of a new tag
type CreateTagInput struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// UpdateTagInput carries the updatable tag fields; nil fields are untouched
type UpdateTagInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (a *Admin) flush(ctx context.Context) {
	if err := a.cache.FlushAll(ctx); err != nil {
		a.log.Warn("cache flush after admin write failed", zap.Error(err))
	}
}

// toolSlugTaken checks the slug against all tools, active or not
func (a *Admin) toolSlugTaken(ctx context.Context, s string, self uuid.UUID) (bool, error) {
	existing, err := a.store.GetToolBySlug(ctx, s, false)
	if err != nil {
		return false, err
	}
	return existing != nil && existing.ID != self, nil
}

// CreateTool creates a tool. The slug defaults to a URL-safe derivation of the
// name and must be globally unique.
func (a *Admin) CreateTool(ctx context.Context, in CreateToolInput) (*Tool, error) {
	s := in.Slug
	if s == "" {
		s = slug.Make(in.Name)
	}

	taken, err := a.toolSlugTaken(ctx, s, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	tool := models.Tool{
		Slug:         s,
		Name:         in.Name,
		Description:  in.Description,
		Icon:         in.Icon,
		DisplayOrder: in.DisplayOrder,
		IsActive:     true,
		Metadata:     datatypes.JSON(in.Metadata),
	}
	if err := a.store.CreateTool(ctx, &tool); err != nil {
		return nil, err
	}

	a.flush(ctx)
	v := toolView(tool)
	return &v, nil
}

// UpdateTool applies the non-nil fields to the tool
func (a *Admin) UpdateTool(ctx context.Context, id uuid.UUID, in UpdateToolInput) (*Tool, error) {
	tool, err := a.store.GetToolByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrNotFound
	}

	if in.Slug != nil && *in.Slug != tool.Slug {
		taken, err := a.toolSlugTaken(ctx, *in.Slug, tool.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlugTaken
		}
		tool.Slug = *in.Slug
	}
	if in.Name != nil {
		tool.Name = *in.Name
	}
	if in.Description != nil {
		tool.Description = *in.Description
	}
	if in.Icon != nil {
		tool.Icon = *in.Icon
	}
	if in.DisplayOrder != nil {
		tool.DisplayOrder = *in.DisplayOrder
	}
	if in.IsActive != nil {
		tool.IsActive = *in.IsActive
	}
	if in.Metadata != nil {
		tool.Metadata = datatypes.JSON(in.Metadata)
	}

	if err := a.store.UpdateTool(ctx, tool); err != nil {
		return nil, err
	}

	a.flush(ctx)
	v := toolView(*tool)
	return &v, nil
}

// ToggleTool flips the tool's active flag
func (a *Admin) ToggleTool(ctx context.Context, id uuid.UUID) (*Tool, error) {
	tool, err := a.store.GetToolByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrNotFound
	}

	tool.IsActive = !tool.IsActive
	if err := a.store.UpdateTool(ctx, tool); err != nil {
		return nil, err
	}

	a.flush(ctx)
	v := toolView(*tool)
	return &v, nil
}

// DeleteTool removes the tool together with its join rows and usage stats
func (a *Admin) DeleteTool(ctx context.Context, id uuid.UUID) error {
	tool, err := a.store.GetToolByID(ctx, id)
	if err != nil {
		return err
	}
	if tool == nil {
		return ErrNotFound
	}

	if err := a.store.DeleteTool(ctx, id); err != nil {
		return err
	}

	a.flush(ctx)
	return nil
}

// CreateTag creates a tag with a unique slug
func (a *Admin) CreateTag(ctx context.Context, in CreateTagInput) (*Tag, error) {
	s := in.Slug
	if s == "" {
		s = slug.Make(in.Name)
	}

	existing, err := a.store.GetTagBySlug(ctx, s)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}

	tag := models.Tag{
		Slug:        s,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	}
	if err := a.store.CreateTag(ctx, &tag); err != nil {
		return nil, err
	}

	a.flush(ctx)
	v := tagView(tag, 0)
	return &v, nil
}

// UpdateTag applies the non-nil fields to the tag
func (a *Admin) UpdateTag(ctx context.Context, id uuid.UUID, in UpdateTagInput) (*Tag, error) {
	tag, err := a.store.GetTagByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, ErrNotFound
	}

	if in.Slug != nil && *in.Slug != tag.Slug {
		existing, err := a.store.GetTagBySlug(ctx, *in.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != tag.ID {
			return nil, ErrSlugTaken
		}
		tag.Slug = *in.Slug
	}
	if in.Name != nil {
		tag.Name = *in.Name
	}
	if in.Description != nil {
		tag.Description = *in.Description
	}
	if in.Color != nil {
		tag.Color = *in.Color
	}

	if err := a.store.UpdateTag(ctx, tag); err != nil {
		return nil, err
	}

	a.flush(ctx)
	v := tagView(*tag, 0)
	return &v, nil
}

// DeleteTag removes a tag. A tag still assigned to any tool, active or not,
// cannot be deleted.
func (a *Admin) DeleteTag(ctx context.Context, id uuid.UUID) error {
	tag, err := a.store.GetTagByID(ctx, id)
	if err != nil {
		return err
	}
	if tag == nil {
		return ErrNotFound
	}

	n, err := a.store.CountTagAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrTagInUse
	}

	if err := a.store.DeleteTag(ctx, id); err != nil {
		return err
	}

	a.flush(ctx)
	return nil
}
