// Package catalog implements the tool/tag catalog engine: cache-aside reads,
// usage recording, relationship management and hybrid advanced filtering.
package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/devtoolhub/toolhub/internal/cache"
	"github.com/devtoolhub/toolhub/internal/store"
)

// DefaultTTL is the uniform lifetime of every cached read
const DefaultTTL = 5 * time.Minute

// Service is the catalog read service. Every public read follows the same
// cache-aside pattern: structured key, cached hit returned as-is (including
// negative entries), miss loads from the store, shapes DTOs and populates the
// cache.
type Service struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewService constructs the read service. A nil logger falls back to a no-op.
func NewService(st store.Store, c cache.Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: st,
		cache: c,
		ttl:   DefaultTTL,
		log:   log,
		now:   time.Now,
	}
}

// WithTTL overrides the cache lifetime applied to reads
func (s *Service) WithTTL(ttl time.Duration) *Service {
	s.ttl = ttl
	return s
}

// WithClock replaces the service's time source; tests pin usage timestamps
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FlushCache drops every cached read. Controllers call this after mutations
// they perform outside the service (relationship writes, admin writes go
// through Admin which flushes itself).
func (s *Service) FlushCache(ctx context.Context) error {
	return s.cache.FlushAll(ctx)
}

// fetchCached is the single cache-aside implementation. Values are cached as
// JSON; a nil pointer result marshals to an explicit null, so "not found" is
// cached just like a hit and repeated lookups for a missing key stay off the
// store within the TTL window.
func fetchCached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		s.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	} else if !cache.IsCacheMiss(err) {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func activePtr() *bool {
	v := true
	return &v
}

// ListTools returns the active tools ordered by display order
func (s *Service) ListTools(ctx context.Context) ([]Tool, error) {
	return fetchCached(ctx, s, cacheKey("tools.list"), func(ctx context.Context) ([]Tool, error) {
		tools, err := s.store.ListTools(ctx, store.ToolQuery{
			Active:       activePtr(),
			Sort:         store.SortDisplayOrder,
			IncludeTags:  true,
			IncludeUsage: true,
		})
		if err != nil {
			return nil, err
		}
		return toolViews(tools), nil
	})
}

// GetTool returns a single active tool by slug, or ErrNotFound
func (s *Service) GetTool(ctx context.Context, slug string) (*Tool, error) {
	key := cacheKey("tools.get", keyText(slug))
	v, err := fetchCached(ctx, s, key, func(ctx context.Context) (*Tool, error) {
		m, err := s.store.GetToolBySlug(ctx, slug, true)
		if err != nil {
			return nil, err
		}
		if m == nil {
			// Cached as an explicit null so the miss is memoized too.
			return nil, nil
		}
		t := toolView(*m)
		return &t, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// ListToolsByTag returns the active tools associated with the tag slug,
// ordered by display order
func (s *Service) ListToolsByTag(ctx context.Context, tagSlug string) ([]Tool, error) {
	key := cacheKey("tools.by_tag", keyText(tagSlug))
	return fetchCached(ctx, s, key, func(ctx context.Context) ([]Tool, error) {
		tools, err := s.store.ListTools(ctx, store.ToolQuery{
			Active:       activePtr(),
			TagSlug:      tagSlug,
			Sort:         store.SortDisplayOrder,
			IncludeTags:  true,
			IncludeUsage: true,
		})
		if err != nil {
			return nil, err
		}
		return toolViews(tools), nil
	})
}

// ListTags returns all tags ordered by name, each with the count of active
// tools carrying it
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	return fetchCached(ctx, s, cacheKey("tags.list"), func(ctx context.Context) ([]Tag, error) {
		tags, err := s.store.ListTags(ctx)
		if err != nil {
			return nil, err
		}
		counts, err := s.store.TagToolCounts(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]Tag, 0, len(tags))
		for _, t := range tags {
			out = append(out, tagView(t, counts[t.ID]))
		}
		return out, nil
	})
}

// GetTag returns a single tag by slug with its active tool count, or ErrNotFound
func (s *Service) GetTag(ctx context.Context, slug string) (*Tag, error) {
	key := cacheKey("tags.get", keyText(slug))
	v, err := fetchCached(ctx, s, key, func(ctx context.Context) (*Tag, error) {
		m, err := s.store.GetTagBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, nil
		}
		counts, err := s.store.TagToolCounts(ctx)
		if err != nil {
			return nil, err
		}
		t := tagView(*m, counts[m.ID])
		return &t, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// ListPopularTools returns the top limit active tools by usage count,
// most-recently-updated first among ties. The usage aggregate is not a stored
// column, so ordering happens here rather than in the store.
func (s *Service) ListPopularTools(ctx context.Context, limit int) ([]Tool, error) {
	key := cacheKey("tools.popular", keyInt(limit))
	return fetchCached(ctx, s, key, func(ctx context.Context) ([]Tool, error) {
		tools, err := s.store.ListTools(ctx, store.ToolQuery{
			Active:       activePtr(),
			IncludeTags:  true,
			IncludeUsage: true,
		})
		if err != nil {
			return nil, err
		}

		views := toolViews(tools)
		sort.SliceStable(views, func(i, j int) bool {
			if views[i].UsageCount != views[j].UsageCount {
				return views[i].UsageCount > views[j].UsageCount
			}
			return views[i].UpdatedAt.After(views[j].UpdatedAt)
		})

		if limit > 0 && limit < len(views) {
			views = views[:limit]
		}
		return views, nil
	})
}

// Search returns active tools whose name, description or slug contains the
// query, or that carry a tag whose name or slug contains it. Matching is
// case-insensitive.
func (s *Service) Search(ctx context.Context, query string) ([]Tool, error) {
	key := cacheKey("tools.search", keyText(query))
	return fetchCached(ctx, s, key, func(ctx context.Context) ([]Tool, error) {
		tools, err := s.store.ListTools(ctx, store.ToolQuery{
			Search:       query,
			Active:       activePtr(),
			Sort:         store.SortDisplayOrder,
			IncludeTags:  true,
			IncludeUsage: true,
		})
		if err != nil {
			return nil, err
		}
		return toolViews(tools), nil
	})
}

// ListToolsPage is ListTools with storage-level pagination and a total count
func (s *Service) ListToolsPage(ctx context.Context, offset, limit int) (*ToolPage, error) {
	key := cacheKey("tools.page", keyInt(offset), keyInt(limit))
	return fetchCached(ctx, s, key, func(ctx context.Context) (*ToolPage, error) {
		q := store.ToolQuery{
			Active:       activePtr(),
			Sort:         store.SortDisplayOrder,
			Offset:       offset,
			Limit:        limit,
			IncludeTags:  true,
			IncludeUsage: true,
		}
		tools, err := s.store.ListTools(ctx, q)
		if err != nil {
			return nil, err
		}
		total, err := s.store.CountTools(ctx, store.ToolQuery{Active: activePtr()})
		if err != nil {
			return nil, err
		}
		return &ToolPage{Items: toolViews(tools), Total: total, Offset: offset, Limit: limit}, nil
	})
}

// ListToolsByTagPage is ListToolsByTag with storage-level pagination
func (s *Service) ListToolsByTagPage(ctx context.Context, tagSlug string, offset, limit int) (*ToolPage, error) {
	key := cacheKey("tools.by_tag.page", keyText(tagSlug), keyInt(offset), keyInt(limit))
	return fetchCached(ctx, s, key, func(ctx context.Context) (*ToolPage, error) {
		q := store.ToolQuery{
			Active:       activePtr(),
			TagSlug:      tagSlug,
			Sort:         store.SortDisplayOrder,
			Offset:       offset,
			Limit:        limit,
			IncludeTags:  true,
			IncludeUsage: true,
		}
		tools, err := s.store.ListTools(ctx, q)
		if err != nil {
			return nil, err
		}
		total, err := s.store.CountTools(ctx, store.ToolQuery{Active: activePtr(), TagSlug: tagSlug})
		if err != nil {
			return nil, err
		}
		return &ToolPage{Items: toolViews(tools), Total: total, Offset: offset, Limit: limit}, nil
	})
}
