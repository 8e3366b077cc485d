package catalog

import "errors"

// Catalog error taxonomy. Controllers translate these into user-facing
// responses; anything else is a storage failure and propagates unchanged.
var (
	// ErrNotFound means a slug or id does not resolve to a (visible) record.
	// Inactive tools are treated as not found by public lookups.
	ErrNotFound = errors.New("catalog: not found")

	// ErrSlugTaken means a create or rename collides with an existing slug
	ErrSlugTaken = errors.New("catalog: slug already in use")

	// ErrAlreadyAssigned means the tool/tag pair already has a join row
	ErrAlreadyAssigned = errors.New("catalog: tag already assigned to tool")

	// ErrNotAssigned means the tool/tag pair has no join row to remove
	ErrNotAssigned = errors.New("catalog: tag not assigned to tool")

	// ErrTagInUse means the tag still has tool associations and cannot be deleted
	ErrTagInUse = errors.New("catalog: tag still assigned to tools")
)

func errorIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
