package catalog

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

	"github.com/devtoolhub/toolhub/internal/cache"
	"github.com/devtoolhub/toolhub/internal/models"
	"github.com/devtoolhub/toolhub/internal/store"
)

// countingStore wraps the real store and counts calls per method, so tests can
// assert that cached reads never reach storage.
type countingStore struct {
	store.Store
	mu     sync.Mutex
	counts map[string]int
}

func newCountingStore(st store.Store) *countingStore {
	return &countingStore{Store: st, counts: make(map[string]int)}
}

func (c *countingStore) bump(name string) {
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
}

func (c *countingStore) calls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

func (c *countingStore) ListTools(ctx context.Context, q store.ToolQuery) ([]models.Tool, error) {
	c.bump("ListTools")
	return c.Store.ListTools(ctx, q)
}

func (c *countingStore) CountTools(ctx context.Context, q store.ToolQuery) (int64, error) {
	c.bump("CountTools")
	return c.Store.CountTools(ctx, q)
}

func (c *countingStore) GetToolBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tool, error) {
	c.bump("GetToolBySlug")
	return c.Store.GetToolBySlug(ctx, slug, activeOnly)
}

func (c *countingStore) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	c.bump("GetTagBySlug")
	return c.Store.GetTagBySlug(ctx, slug)
}

func (c *countingStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	c.bump("ListTags")
	return c.Store.ListTags(ctx)
}

func (c *countingStore) LookupToolID(ctx context.Context, slug string, activeOnly bool) (uuid.UUID, bool, error) {
	c.bump("LookupToolID")
	return c.Store.LookupToolID(ctx, slug, activeOnly)
}

func (c *countingStore) IncrementUsage(ctx context.Context, toolID uuid.UUID, now time.Time) error {
	c.bump("IncrementUsage")
	return c.Store.IncrementUsage(ctx, toolID, now)
}

// testEnv wires the catalog services against an in-memory SQLite store and an
// in-process cache, the same shape the server assembles in production.
type testEnv struct {
	svc   *Service
	admin *Admin
	rels  *Relationships
	st    *countingStore
	raw   *store.Gorm
	cache *cache.MemoryCache
}

func newTestEnv(t *testing.T) *testEnv {
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

	require.NoError(t, store.AutoMigrate(db))

	raw := store.New(db)
	st := newCountingStore(raw)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	return &testEnv{
		svc:   NewService(st, mc, nil),
		admin: NewAdmin(st, mc, nil),
		rels:  NewRelationships(st, nil),
		st:    st,
		raw:   raw,
		cache: mc,
	}
}

func (e *testEnv) seedTool(t *testing.T, name, slug string, order int, active bool) *models.Tool {
	t.Helper()
	tool := &models.Tool{Slug: slug, Name: name, DisplayOrder: order, IsActive: active}
	require.NoError(t, e.raw.CreateTool(context.Background(), tool))
	return tool
}

func (e *testEnv) seedTag(t *testing.T, name, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Slug: slug, Name: name}
	require.NoError(t, e.raw.CreateTag(context.Background(), tag))
	return tag
}

func (e *testEnv) seedLink(t *testing.T, tool *models.Tool, tag *models.Tag) {
	t.Helper()
	require.NoError(t, e.raw.CreateToolTag(context.Background(), &models.ToolTag{
		ToolID: tool.ID,
		TagID:  tag.ID,
	}))
}

func (e *testEnv) seedUsage(t *testing.T, tool *models.Tool, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.raw.IncrementUsage(context.Background(), tool.ID, time.Now()))
	}
}

func TestListToolsServesSecondReadFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "Base64 Encoder", "base64", 1, true)
	env.seedTool(t, "Hash Generator", "hash", 2, true)
	env.seedTool(t, "Retired", "retired", 3, false)

	first, err := env.svc.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "base64", first[0].Slug)

	second, err := env.svc.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)

	assert.Equal(t, 1, env.st.calls("ListTools"))
}

func TestGetToolCachesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.GetTool(ctx, "no-such-tool")
		require.ErrorIs(t, err, ErrNotFound)
	}

	// The miss is memoized as an explicit null; only the first lookup hits
	// the store.
	assert.Equal(t, 1, env.st.calls("GetToolBySlug"))
}

func TestGetToolIgnoresInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "Hidden", "hidden", 1, false)

	_, err := env.svc.GetTool(ctx, "hidden")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordUsageFlushesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "Counter", "counter", 1, true)

	tool, err := env.svc.GetTool(ctx, "counter")
	require.NoError(t, err)
	assert.EqualValues(t, 0, tool.UsageCount)

	status, err := env.svc.RecordUsage(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, UsageRecorded, status)

	// Flush makes the next read observe the new count
	tool, err = env.svc.GetTool(ctx, "counter")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tool.UsageCount)
	assert.Equal(t, 2, env.st.calls("GetToolBySlug"))
}

func TestRecordUsageUnknownSlugIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "Warm", "warm", 1, true)
	_, err := env.svc.ListTools(ctx)
	require.NoError(t, err)

	status, err := env.svc.RecordUsage(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, UsageSkipped, status)
	assert.Equal(t, 0, env.st.calls("IncrementUsage"))

	// A skipped event leaves the cache warm
	_, err = env.svc.ListTools(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.st.calls("ListTools"))
}

func TestRecordUsageInactiveToolIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "Dormant", "dormant", 1, false)

	status, err := env.svc.RecordUsage(ctx, "dormant")
	require.NoError(t, err)
	assert.Equal(t, UsageSkipped, status)
}

func TestListPopularToolsOrdersByUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	low := env.seedTool(t, "Low", "low", 1, true)
	mid := env.seedTool(t, "Mid", "mid", 2, true)
	high := env.seedTool(t, "High", "high", 3, true)
	env.seedUsage(t, low, 1)
	env.seedUsage(t, mid, 5)
	env.seedUsage(t, high, 12)

	tools, err := env.svc.ListPopularTools(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "high", tools[0].Slug)
	assert.Equal(t, "mid", tools[1].Slug)
	assert.EqualValues(t, 12, tools[0].UsageCount)
}

func TestListTagsIncludesActiveToolCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active := env.seedTool(t, "Active", "active", 1, true)
	inactive := env.seedTool(t, "Inactive", "inactive", 2, false)
	tag := env.seedTag(t, "Encoding", "encoding")
	env.seedLink(t, active, tag)
	env.seedLink(t, inactive, tag)

	tags, err := env.svc.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.EqualValues(t, 1, tags[0].ToolCount)

	got, err := env.svc.GetTag(ctx, "encoding")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ToolCount)
}

func TestGetTagCachesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetTag(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.GetTag(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, env.st.calls("GetTagBySlug"))
}

func TestSearchMatchesTagNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hash := env.seedTool(t, "Hash Generator", "hash-generator", 1, true)
	env.seedTool(t, "Favicon Maker", "favicon", 2, true)
	crypto := env.seedTag(t, "Cryptography", "cryptography")
	env.seedLink(t, hash, crypto)

	tools, err := env.svc.Search(ctx, "CRYPTO")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "hash-generator", tools[0].Slug)
}

func TestListToolsPageTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		env.seedTool(t, fmt.Sprintf("Tool %d", i), fmt.Sprintf("tool-%d", i), i, true)
	}

	page, err := env.svc.ListToolsPage(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "tool-3", page.Items[0].Slug)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Offset)
	assert.Equal(t, 2, page.Limit)
}

func TestListToolsByTagPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tag := env.seedTag(t, "Encoding", "encoding")
	for i := 1; i <= 3; i++ {
		tool := env.seedTool(t, fmt.Sprintf("Enc %d", i), fmt.Sprintf("enc-%d", i), i, true)
		env.seedLink(t, tool, tag)
	}
	env.seedTool(t, "Unrelated", "unrelated", 9, true)

	page, err := env.svc.ListToolsByTagPage(ctx, "encoding", 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 3, page.Total)
}

func TestFlushCacheInvalidatesReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedTool(t, "One", "one", 1, true)

	_, err := env.svc.ListTools(ctx)
	require.NoError(t, err)
	require.NoError(t, env.svc.FlushCache(ctx))
	_, err = env.svc.ListTools(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, env.st.calls("ListTools"))
}

// TestCatalogLifecycle drives the whole engine the way the HTTP surface does:
// admin create, tagging, concurrent usage recording, then a popular listing
// that reflects everything.
func TestCatalogLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tool, err := env.admin.CreateTool(ctx, CreateToolInput{Name: "My Tool"})
	require.NoError(t, err)
	assert.Equal(t, "my-tool", tool.Slug)

	tag, err := env.admin.CreateTag(ctx, CreateTagInput{Name: "Utilities"})
	require.NoError(t, err)
	assert.Equal(t, "utilities", tag.Slug)

	require.NoError(t, env.rels.AssignTag(ctx, tool.ID, tag.ID))
	require.NoError(t, env.svc.FlushCache(ctx))

	const uses = 3
	var wg sync.WaitGroup
	for i := 0; i < uses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := env.svc.RecordUsage(ctx, "my-tool")
			assert.NoError(t, err)
			assert.Equal(t, UsageRecorded, status)
		}()
	}
	wg.Wait()

	popular, err := env.svc.ListPopularTools(ctx, 1)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "my-tool", popular[0].Slug)
	assert.EqualValues(t, uses, popular[0].UsageCount)
	require.Len(t, popular[0].Tags, 1)
	assert.Equal(t, "utilities", popular[0].Tags[0].Slug)
}
