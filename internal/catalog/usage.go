package catalog

import (
	"context"

	"go.uber.org/zap"
)

// UsageStatus reports the outcome of a usage recording. Usage tracking is
// best-effort: a failed slug lookup must never fail the caller's primary
// operation, so that case surfaces as a status instead of an error.
type UsageStatus int

const (
	// UsageRecorded means the counter was incremented and the cache flushed
	UsageRecorded UsageStatus = iota
	// UsageSkipped means the slug did not resolve to an active tool, or the
	// lookup itself failed; the event was logged and dropped
	UsageSkipped
	// UsageFailed means the counter upsert failed; the cache was NOT flushed
	UsageFailed
)

func (s UsageStatus) String() string {
	switch s {
	case UsageRecorded:
		return "recorded"
	case UsageSkipped:
		return "skipped"
	case UsageFailed:
		return "failed"
	}
	return "unknown"
}

// RecordUsage increments the usage counter for the active tool with the given
// slug. The increment is a single atomic upsert at the storage layer; on
// success the whole cache is flushed so subsequent reads observe the new
// count. A failed upsert returns UsageFailed with the error and leaves the
// cache intact, since the cached state may still be accurate.
func (s *Service) RecordUsage(ctx context.Context, slug string) (UsageStatus, error) {
	id, found, err := s.store.LookupToolID(ctx, slug, true)
	if err != nil {
		s.log.Warn("usage lookup failed", zap.String("slug", slug), zap.Error(err))
		return UsageSkipped, nil
	}
	if !found {
		s.log.Warn("usage recorded for unknown tool", zap.String("slug", slug))
		return UsageSkipped, nil
	}

	if err := s.store.IncrementUsage(ctx, id, s.now()); err != nil {
		return UsageFailed, err
	}

	if err := s.cache.FlushAll(ctx); err != nil {
		s.log.Warn("cache flush after usage failed", zap.Error(err))
	}
	return UsageRecorded, nil
}
