package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/devtoolhub/toolhub/internal/models"
)

// Gorm implements Store on top of a *gorm.DB
type Gorm struct {
	db *gorm.DB
}

// Open connects to PostgreSQL, runs migrations and returns the store
func Open(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &Gorm{db: db}, nil
}

// New wraps an existing connection without migrating. Tests use this with a
// SQLite database.
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// AutoMigrate runs auto migration for all catalog models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tool{},
		&models.Tag{},
		&models.ToolTag{},
		&models.ToolUsageStats{},
	)
}

// DB exposes the underlying connection for health checks and shutdown
func (g *Gorm) DB() *gorm.DB {
	return g.db
}

// Close closes the underlying connection pool
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Tools ---

func (g *Gorm) CreateTool(ctx context.Context, tool *models.Tool) error {
	return g.db.WithContext(ctx).Create(tool).Error
}

func (g *Gorm) UpdateTool(ctx context.Context, tool *models.Tool) error {
	return g.db.WithContext(ctx).Omit("ToolTags", "UsageStats").Save(tool).Error
}

func (g *Gorm) DeleteTool(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Select(clause.Associations).Delete(&models.Tool{ID: id}).Error
}

func (g *Gorm) GetToolByID(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	var tool models.Tool
	err := g.db.WithContext(ctx).
		Preload("ToolTags.Tag").
		Preload("UsageStats").
		First(&tool, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (g *Gorm) GetToolBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tool, error) {
	q := g.db.WithContext(ctx).
		Preload("ToolTags.Tag").
		Preload("UsageStats").
		Where("slug = ?", slug)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var tool models.Tool
	err := q.First(&tool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (g *Gorm) LookupToolID(ctx context.Context, slug string, activeOnly bool) (uuid.UUID, bool, error) {
	q := g.db.WithContext(ctx).Model(&models.Tool{}).Where("slug = ?", slug)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var ids []uuid.UUID
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return uuid.Nil, false, err
	}
	if len(ids) == 0 {
		return uuid.Nil, false, nil
	}
	return ids[0], true, nil
}

func (g *Gorm) ListTools(ctx context.Context, q ToolQuery) ([]models.Tool, error) {
	db := g.applyToolQuery(g.db.WithContext(ctx).Model(&models.Tool{}), q)

	if q.IncludeTags {
		db = db.Preload("ToolTags.Tag")
	}
	if q.IncludeUsage {
		db = db.Preload("UsageStats")
	}

	db = db.Order(toolOrder(q))
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var tools []models.Tool
	if err := db.Find(&tools).Error; err != nil {
		return nil, err
	}
	return tools, nil
}

func (g *Gorm) CountTools(ctx context.Context, q ToolQuery) (int64, error) {
	var count int64
	db := g.applyToolQuery(g.db.WithContext(ctx).Model(&models.Tool{}), q)
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyToolQuery pushes down every predicate of the query. Offset, limit and
// ordering are applied by the caller.
func (g *Gorm) applyToolQuery(db *gorm.DB, q ToolQuery) *gorm.DB {
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		db = db.Where(
			`LOWER(tools.name) LIKE ? OR LOWER(tools.description) LIKE ? OR LOWER(tools.slug) LIKE ?
			OR EXISTS (
				SELECT 1 FROM tool_tags
				JOIN tags ON tags.id = tool_tags.tag_id
				WHERE tool_tags.tool_id = tools.id
				AND (LOWER(tags.name) LIKE ? OR LOWER(tags.slug) LIKE ?)
			)`,
			needle, needle, needle, needle, needle,
		)
	}
	if q.Active != nil {
		db = db.Where("tools.is_active = ?", *q.Active)
	}
	if len(q.TagIDs) > 0 {
		db = db.Where(
			"EXISTS (SELECT 1 FROM tool_tags WHERE tool_tags.tool_id = tools.id AND tool_tags.tag_id IN ?)",
			q.TagIDs,
		)
	}
	if q.TagSlug != "" {
		db = db.Where(
			`EXISTS (
				SELECT 1 FROM tool_tags
				JOIN tags ON tags.id = tool_tags.tag_id
				WHERE tool_tags.tool_id = tools.id AND tags.slug = ?
			)`,
			q.TagSlug,
		)
	}
	if q.CreatedFrom != nil {
		db = db.Where("tools.created_at >= ?", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		db = db.Where("tools.created_at <= ?", *q.CreatedTo)
	}
	if q.WithoutTags {
		db = db.Where("NOT EXISTS (SELECT 1 FROM tool_tags WHERE tool_tags.tool_id = tools.id)")
	}
	return db
}

func toolOrder(q ToolQuery) string {
	if !q.Sort.StorageSortable() {
		// Usage count cannot be ordered here; fall back to the default.
		return "tools.is_active DESC, tools.display_order ASC"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("tools.%s %s", string(q.Sort), dir)
}

// --- Tags ---

func (g *Gorm) CreateTag(ctx context.Context, tag *models.Tag) error {
	return g.db.WithContext(ctx).Create(tag).Error
}

func (g *Gorm) UpdateTag(ctx context.Context, tag *models.Tag) error {
	return g.db.WithContext(ctx).Omit("ToolTags").Save(tag).Error
}

func (g *Gorm) DeleteTag(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Delete(&models.Tag{ID: id}).Error
}

func (g *Gorm) GetTagByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	var tag models.Tag
	err := g.db.WithContext(ctx).First(&tag, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (g *Gorm) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	err := g.db.WithContext(ctx).First(&tag, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (g *Gorm) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := g.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (g *Gorm) TagToolCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		TagID uuid.UUID
		N     int64
	}
	err := g.db.WithContext(ctx).
		Model(&models.ToolTag{}).
		Select("tool_tags.tag_id AS tag_id, COUNT(*) AS n").
		Joins("JOIN tools ON tools.id = tool_tags.tool_id").
		Where("tools.is_active = ?", true).
		Group("tool_tags.tag_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.TagID] = r.N
	}
	return counts, nil
}

func (g *Gorm) CountTagAssignments(ctx context.Context, tagID uuid.UUID) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.ToolTag{}).
		Where("tag_id = ?", tagID).
		Count(&count).Error
	return count, err
}

// --- Relationships ---

func (g *Gorm) GetToolTag(ctx context.Context, toolID, tagID uuid.UUID) (*models.ToolTag, error) {
	var link models.ToolTag
	err := g.db.WithContext(ctx).
		First(&link, "tool_id = ? AND tag_id = ?", toolID, tagID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (g *Gorm) CreateToolTag(ctx context.Context, link *models.ToolTag) error {
	return g.db.WithContext(ctx).Create(link).Error
}

func (g *Gorm) DeleteToolTag(ctx context.Context, toolID, tagID uuid.UUID) error {
	return g.db.WithContext(ctx).
		Where("tool_id = ? AND tag_id = ?", toolID, tagID).
		Delete(&models.ToolTag{}).Error
}

func (g *Gorm) ListToolTags(ctx context.Context) ([]models.ToolTag, error) {
	var links []models.ToolTag
	if err := g.db.WithContext(ctx).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (g *Gorm) CountToolTags(ctx context.Context) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.ToolTag{}).Count(&count).Error
	return count, err
}

func (g *Gorm) CountToolsWithTags(ctx context.Context) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.ToolTag{}).
		Distinct("tool_id").
		Count(&count).Error
	return count, err
}

func (g *Gorm) CountTagsWithTools(ctx context.Context) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.ToolTag{}).
		Distinct("tag_id").
		Count(&count).Error
	return count, err
}

// --- Usage ---

// IncrementUsage upserts the usage row in a single statement: insert with
// count 1 on first use, otherwise increment in place. The unqualified column
// reference in the assignment resolves to the existing row on both PostgreSQL
// and SQLite, which keeps concurrent increments lossless.
func (g *Gorm) IncrementUsage(ctx context.Context, toolID uuid.UUID, now time.Time) error {
	stats := models.ToolUsageStats{
		ToolID:     toolID,
		UsageCount: 1,
		LastUsedAt: now,
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tool_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": now,
		}),
	}).Create(&stats).Error
}
