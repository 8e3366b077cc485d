package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devtoolhub/toolhub/internal/models"
)

// openTestStore runs the production store implementation against an in-memory
// SQLite database. A single connection keeps concurrent writers serialized the
// way a real server's transaction isolation would.
func openTestStore(t *testing.T) *Gorm {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return New(db)
}

func mkTool(t *testing.T, st *Gorm, name, slug string, order int, active bool) *models.Tool {
	t.Helper()
	tool := &models.Tool{
		Slug:         slug,
		Name:         name,
		DisplayOrder: order,
		IsActive:     active,
	}
	require.NoError(t, st.CreateTool(context.Background(), tool))
	return tool
}

func mkTag(t *testing.T, st *Gorm, name, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Slug: slug, Name: name}
	require.NoError(t, st.CreateTag(context.Background(), tag))
	return tag
}

func link(t *testing.T, st *Gorm, tool *models.Tool, tag *models.Tag) {
	t.Helper()
	require.NoError(t, st.CreateToolTag(context.Background(), &models.ToolTag{
		ToolID: tool.ID,
		TagID:  tag.ID,
	}))
}

func TestGetToolBySlug(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mkTool(t, st, "Base64 Encoder", "base64", 1, true)
	mkTool(t, st, "Retired Tool", "retired", 2, false)

	tool, err := st.GetToolBySlug(ctx, "base64", true)
	require.NoError(t, err)
	require.NotNil(t, tool)
	assert.Equal(t, "Base64 Encoder", tool.Name)

	// Inactive tools are invisible to active-only lookups
	tool, err = st.GetToolBySlug(ctx, "retired", true)
	require.NoError(t, err)
	assert.Nil(t, tool)

	tool, err = st.GetToolBySlug(ctx, "retired", false)
	require.NoError(t, err)
	require.NotNil(t, tool)

	tool, err = st.GetToolBySlug(ctx, "missing", false)
	require.NoError(t, err)
	assert.Nil(t, tool)
}

func TestListToolsOrderingAndPagination(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	mkTool(t, st, "C Tool", "c-tool", 3, true)
	mkTool(t, st, "A Tool", "a-tool", 1, true)
	mkTool(t, st, "B Tool", "b-tool", 2, true)

	tools, err := st.ListTools(ctx, ToolQuery{Sort: SortDisplayOrder})
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "a-tool", tools[0].Slug)
	assert.Equal(t, "c-tool", tools[2].Slug)

	tools, err = st.ListTools(ctx, ToolQuery{Sort: SortName, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "C Tool", tools[0].Name)

	tools, err = st.ListTools(ctx, ToolQuery{Sort: SortDisplayOrder, Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "b-tool", tools[0].Slug)

	total, err := st.CountTools(ctx, ToolQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	hash := mkTool(t, st, "Hash Generator", "hash-generator", 1, true)
	mkTool(t, st, "Favicon Maker", "favicon", 2, true)
	crypto := mkTag(t, st, "Cryptography", "cryptography")
	link(t, st, hash, crypto)

	tools, err := st.ListTools(ctx, ToolQuery{Search: "HASH"})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "hash-generator", tools[0].Slug)

	// Tag names match too
	tools, err = st.ListTools(ctx, ToolQuery{Search: "crypto"})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "hash-generator", tools[0].Slug)

	tools, err = st.ListTools(ctx, ToolQuery{Search: "nothing-matches"})
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestTagMembershipAndWithoutTags(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tagged := mkTool(t, st, "Tagged", "tagged", 1, true)
	bare := mkTool(t, st, "Bare", "bare", 2, true)
	tag := mkTag(t, st, "Encoding", "encoding")
	link(t, st, tagged, tag)

	tools, err := st.ListTools(ctx, ToolQuery{TagIDs: []uuid.UUID{tag.ID}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, tagged.ID, tools[0].ID)

	tools, err = st.ListTools(ctx, ToolQuery{TagSlug: "encoding"})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	tools, err = st.ListTools(ctx, ToolQuery{WithoutTags: true})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, bare.ID, tools[0].ID)
}

func TestCreatedDateRange(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	old := mkTool(t, st, "Old", "old", 1, true)
	cutoff := time.Now().Add(-24 * time.Hour)
	require.NoError(t, st.DB().Model(old).Update("created_at", cutoff.Add(-24*time.Hour)).Error)
	mkTool(t, st, "New", "new", 2, true)

	tools, err := st.ListTools(ctx, ToolQuery{CreatedFrom: &cutoff})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "new", tools[0].Slug)

	tools, err = st.ListTools(ctx, ToolQuery{CreatedTo: &cutoff})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "old", tools[0].Slug)
}

func TestTagToolCountsOnlyActive(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	active := mkTool(t, st, "Active", "active", 1, true)
	inactive := mkTool(t, st, "Inactive", "inactive", 2, false)
	tag := mkTag(t, st, "Misc", "misc")
	link(t, st, active, tag)
	link(t, st, inactive, tag)

	counts, err := st.TagToolCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[tag.ID])

	// The delete guard counts every association regardless of lifecycle
	n, err := st.CountTagAssignments(ctx, tag.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRelationshipCounts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	t1 := mkTool(t, st, "T1", "t1", 1, true)
	t2 := mkTool(t, st, "T2", "t2", 2, true)
	mkTool(t, st, "T3", "t3", 3, true)
	a := mkTag(t, st, "A", "a")
	b := mkTag(t, st, "B", "b")
	link(t, st, t1, a)
	link(t, st, t1, b)
	link(t, st, t2, a)

	total, err := st.CountToolTags(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	tools, err := st.CountToolsWithTags(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tools)

	tags, err := st.CountTagsWithTools(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tags)
}

func TestIncrementUsageUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tool := mkTool(t, st, "Counter", "counter", 1, true)

	// First use creates the row
	require.NoError(t, st.IncrementUsage(ctx, tool.ID, time.Now()))
	// Subsequent uses increment in place
	require.NoError(t, st.IncrementUsage(ctx, tool.ID, time.Now()))
	require.NoError(t, st.IncrementUsage(ctx, tool.ID, time.Now()))

	got, err := st.GetToolByID(ctx, tool.ID)
	require.NoError(t, err)
	require.Len(t, got.UsageStats, 1)
	assert.EqualValues(t, 3, got.UsageStats[0].UsageCount)
	assert.EqualValues(t, 3, got.UsageCount())
}

func TestIncrementUsageConcurrent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tool := mkTool(t, st, "Hot Tool", "hot", 1, true)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.IncrementUsage(ctx, tool.ID, time.Now())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := st.GetToolByID(ctx, tool.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workers, got.UsageCount())
}

func TestLookupToolID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tool := mkTool(t, st, "Lookup", "lookup", 1, true)
	mkTool(t, st, "Hidden", "hidden", 2, false)

	id, found, err := st.LookupToolID(ctx, "lookup", true)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tool.ID, id)

	_, found, err = st.LookupToolID(ctx, "hidden", true)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = st.LookupToolID(ctx, "missing", false)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteToolCascades(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tool := mkTool(t, st, "Doomed", "doomed", 1, true)
	tag := mkTag(t, st, "Sticky", "sticky")
	link(t, st, tool, tag)
	require.NoError(t, st.IncrementUsage(ctx, tool.ID, time.Now()))

	require.NoError(t, st.DeleteTool(ctx, tool.ID))

	got, err := st.GetToolByID(ctx, tool.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.CountToolTags(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
