package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/devtoolhub/toolhub/internal/store"
)

// AdvancedFilters is the admin search filter set. UsageMin/UsageMax range over
// the computed usage aggregate, which the storage layer cannot filter or sort
// on; their presence switches the engine to the in-memory path.
type AdvancedFilters struct {
	Search      string
	Active      *bool
	TagIDs      []uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	WithoutTags bool
	UsageMin    *int64
	UsageMax    *int64
	Sort        store.SortField
	Desc        bool
}

// usageFiltered reports whether the filter set references the computed field
func (f AdvancedFilters) usageFiltered() bool {
	return f.UsageMin != nil || f.UsageMax != nil
}

// AdvancedResult is a paginated advanced search result. Total is the count of
// matches after all filtering, including the in-memory usage range.
type AdvancedResult struct {
	Items []Tool `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// FilterOptions gives a filter UI its bounds: the full tag list and the
// observed usage-count range across all tools.
type FilterOptions struct {
	Tags     []Tag `json:"tags"`
	UsageMin int64 `json:"usage_min"`
	UsageMax int64 `json:"usage_max"`
}

func (f AdvancedFilters) toQuery() store.ToolQuery {
	return store.ToolQuery{
		Search:      f.Search,
		Active:      f.Active,
		TagIDs:      f.TagIDs,
		CreatedFrom: f.CreatedFrom,
		CreatedTo:   f.CreatedTo,
		WithoutTags: f.WithoutTags,
	}
}

func (f AdvancedFilters) key(page, limit int) string {
	return cacheKey("tools.advanced",
		keyInt(page), keyInt(limit),
		keyText(f.Search), keyOptBool(f.Active), keyIDs(f.TagIDs),
		keyOptTime(f.CreatedFrom), keyOptTime(f.CreatedTo),
		keyBool(f.WithoutTags),
		keyOptInt64(f.UsageMin), keyOptInt64(f.UsageMax),
		string(f.Sort), keyBool(f.Desc),
	)
}

// FindToolsAdvanced answers the admin search. Two paths:
//
// Pushdown: without a usage-count filter every predicate, the sort and the
// pagination run at the storage layer. A requested usage-count sort falls back
// to the default ordering there, since the aggregate is not a stored column.
//
// In-memory: with a usage-count range present, the storage-expressible
// predicates still push down to shrink the candidate set, then usage counts
// are computed, range-filtered, sorted and paginated here. Total reflects the
// post-filter candidate count. O(matching-rows) memory is accepted: the
// catalog is an admin-curated list, not a high-cardinality dataset.
func (s *Service) FindToolsAdvanced(ctx context.Context, page, limit int, f AdvancedFilters) (*AdvancedResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	return fetchCached(ctx, s, f.key(page, limit), func(ctx context.Context) (*AdvancedResult, error) {
		if f.usageFiltered() {
			return s.findToolsInMemory(ctx, page, limit, f)
		}
		return s.findToolsPushdown(ctx, page, limit, f)
	})
}

func (s *Service) findToolsPushdown(ctx context.Context, page, limit int, f AdvancedFilters) (*AdvancedResult, error) {
	q := f.toQuery()
	q.Sort = f.Sort
	q.Desc = f.Desc
	q.Offset = (page - 1) * limit
	q.Limit = limit
	q.IncludeTags = true
	q.IncludeUsage = true

	tools, err := s.store.ListTools(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountTools(ctx, f.toQuery())
	if err != nil {
		return nil, err
	}

	return &AdvancedResult{Items: toolViews(tools), Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) findToolsInMemory(ctx context.Context, page, limit int, f AdvancedFilters) (*AdvancedResult, error) {
	q := f.toQuery()
	q.IncludeTags = true
	q.IncludeUsage = true

	tools, err := s.store.ListTools(ctx, q)
	if err != nil {
		return nil, err
	}

	views := toolViews(tools)
	filtered := views[:0]
	for _, v := range views {
		if f.UsageMin != nil && v.UsageCount < *f.UsageMin {
			continue
		}
		if f.UsageMax != nil && v.UsageCount > *f.UsageMax {
			continue
		}
		filtered = append(filtered, v)
	}

	sortTools(filtered, f.Sort, f.Desc)

	total := int64(len(filtered))
	start := (page - 1) * limit
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return &AdvancedResult{Items: filtered[start:end], Total: total, Page: page, Limit: limit}, nil
}

// sortTools orders shaped tools by the requested field. Unknown fields fall
// back to the default active-first, display-order ordering.
func sortTools(views []Tool, field store.SortField, desc bool) {
	less := func(i, j int) bool {
		switch field {
		case store.SortName:
			return views[i].Name < views[j].Name
		case store.SortCreatedAt:
			return views[i].CreatedAt.Before(views[j].CreatedAt)
		case store.SortDisplayOrder:
			return views[i].DisplayOrder < views[j].DisplayOrder
		case store.SortUsageCount:
			return views[i].UsageCount < views[j].UsageCount
		default:
			if views[i].IsActive != views[j].IsActive {
				return views[i].IsActive
			}
			return views[i].DisplayOrder < views[j].DisplayOrder
		}
	}
	if desc && field != "" {
		sort.SliceStable(views, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(views, less)
}

// GetFilterOptions returns the bounds for building a filter UI
func (s *Service) GetFilterOptions(ctx context.Context) (*FilterOptions, error) {
	return fetchCached(ctx, s, cacheKey("tools.filter_options"), func(ctx context.Context) (*FilterOptions, error) {
		tags, err := s.ListTags(ctx)
		if err != nil {
			return nil, err
		}

		tools, err := s.store.ListTools(ctx, store.ToolQuery{IncludeUsage: true})
		if err != nil {
			return nil, err
		}

		opts := &FilterOptions{Tags: tags}
		for i, t := range tools {
			n := t.UsageCount()
			if i == 0 {
				opts.UsageMin, opts.UsageMax = n, n
				continue
			}
			if n < opts.UsageMin {
				opts.UsageMin = n
			}
			if n > opts.UsageMax {
				opts.UsageMax = n
			}
		}
		return opts, nil
	})
}
