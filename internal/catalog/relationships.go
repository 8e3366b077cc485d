package catalog

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devtoolhub/toolhub/internal/models"
	"github.com/devtoolhub/toolhub/internal/store"
)

// Relationships manages the tool/tag join. A pair is either unassigned or
// assigned; AssignTag and UnassignTag are the only transitions. The manager
// does not touch the cache: controllers flush after logging the audit action.
type Relationships struct {
	store store.Store
	log   *zap.Logger
}

// NewRelationships constructs the relationship manager
func NewRelationships(st store.Store, log *zap.Logger) *Relationships {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relationships{store: st, log: log}
}

// BulkAction selects what a bulk request does to each pair
type BulkAction string

const (
	BulkAssign   BulkAction = "assign"
	BulkUnassign BulkAction = "unassign"
)

// BulkRequest applies an action across the Cartesian product of tool and tag ids
type BulkRequest struct {
	ToolIDs []uuid.UUID
	TagIDs  []uuid.UUID
	Action  BulkAction
}

// BulkResult counts the outcome of a bulk request. Affected + Skipped always
// equals the Cartesian product size.
type BulkResult struct {
	Affected int `json:"affected"`
	Skipped  int `json:"skipped"`
}

// Matrix is the complete bipartite relationship graph: every tool, every tag,
// and each tool's assigned tag ids. Built for a checkbox-grid admin UI that
// diffs the whole board in one round trip.
type Matrix struct {
	Tools       []Tool                    `json:"tools"`
	Tags        []Tag                     `json:"tags"`
	Assignments map[uuid.UUID][]uuid.UUID `json:"assignments"`
}

// Stats summarizes the join table
type Stats struct {
	TotalAssignments int64   `json:"total_assignments"`
	ToolsWithTags    int64   `json:"tools_with_tags"`
	TagsWithTools    int64   `json:"tags_with_tools"`
	AvgTagsPerTool   float64 `json:"avg_tags_per_tool"`
}

// AssignTag creates the join row for the pair. Assigning an existing pair is
// an error, not a no-op.
func (r *Relationships) AssignTag(ctx context.Context, toolID, tagID uuid.UUID) error {
	existing, err := r.store.GetToolTag(ctx, toolID, tagID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyAssigned
	}

	tool, err := r.store.GetToolByID(ctx, toolID)
	if err != nil {
		return err
	}
	if tool == nil {
		return fmt.Errorf("tool %s: %w", toolID, ErrNotFound)
	}
	tag, err := r.store.GetTagByID(ctx, tagID)
	if err != nil {
		return err
	}
	if tag == nil {
		return fmt.Errorf("tag %s: %w", tagID, ErrNotFound)
	}

	return r.store.CreateToolTag(ctx, &models.ToolTag{ToolID: toolID, TagID: tagID})
}

// UnassignTag deletes the join row for the pair
func (r *Relationships) UnassignTag(ctx context.Context, toolID, tagID uuid.UUID) error {
	existing, err := r.store.GetToolTag(ctx, toolID, tagID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotAssigned
	}
	return r.store.DeleteToolTag(ctx, toolID, tagID)
}

// BulkManage applies the action to every pair in toolIDs x tagIDs. Pairs that
// cannot transition (already assigned, not assigned, unresolved ids) are
// counted as skipped; the batch never aborts on a single pair. The whole batch
// only fails when every single call errored against the store.
func (r *Relationships) BulkManage(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	res := &BulkResult{}
	total := len(req.ToolIDs) * len(req.TagIDs)
	storageFailures := 0

	for _, toolID := range req.ToolIDs {
		for _, tagID := range req.TagIDs {
			var err error
			switch req.Action {
			case BulkUnassign:
				err = r.UnassignTag(ctx, toolID, tagID)
			default:
				err = r.AssignTag(ctx, toolID, tagID)
			}

			if err == nil {
				res.Affected++
				continue
			}
			res.Skipped++
			if !isExpectedSkip(err) {
				storageFailures++
				r.log.Warn("bulk relationship pair failed",
					zap.String("tool_id", toolID.String()),
					zap.String("tag_id", tagID.String()),
					zap.Error(err))
			}
		}
	}

	if total > 0 && storageFailures == total {
		return nil, fmt.Errorf("bulk relationship update: store unreachable for all %d pairs", total)
	}
	return res, nil
}

func isExpectedSkip(err error) bool {
	return errorIsAny(err, ErrAlreadyAssigned, ErrNotAssigned, ErrNotFound)
}

// Matrix returns the full bipartite graph
func (r *Relationships) Matrix(ctx context.Context) (*Matrix, error) {
	tools, err := r.store.ListTools(ctx, store.ToolQuery{Sort: store.SortDisplayOrder})
	if err != nil {
		return nil, err
	}
	tags, err := r.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.store.ListToolTags(ctx)
	if err != nil {
		return nil, err
	}

	assignments := make(map[uuid.UUID][]uuid.UUID, len(tools))
	for _, link := range links {
		assignments[link.ToolID] = append(assignments[link.ToolID], link.TagID)
	}

	tagViews := make([]Tag, 0, len(tags))
	for _, t := range tags {
		tagViews = append(tagViews, tagView(t, 0))
	}

	return &Matrix{
		Tools:       toolViews(tools),
		Tags:        tagViews,
		Assignments: assignments,
	}, nil
}

// Stats returns join-table totals and the average tags per tool, rounded to
// two decimal places
func (r *Relationships) Stats(ctx context.Context) (*Stats, error) {
	totalLinks, err := r.store.CountToolTags(ctx)
	if err != nil {
		return nil, err
	}
	toolsWithTags, err := r.store.CountToolsWithTags(ctx)
	if err != nil {
		return nil, err
	}
	tagsWithTools, err := r.store.CountTagsWithTools(ctx)
	if err != nil {
		return nil, err
	}
	totalTools, err := r.store.CountTools(ctx, store.ToolQuery{})
	if err != nil {
		return nil, err
	}

	avg := 0.0
	if totalTools > 0 {
		avg = math.Round(float64(totalLinks)/float64(totalTools)*100) / 100
	}

	return &Stats{
		TotalAssignments: totalLinks,
		ToolsWithTags:    toolsWithTags,
		TagsWithTools:    tagsWithTools,
		AvgTagsPerTool:   avg,
	}, nil
}
