package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cache keys are structured as op:part:part..., built from normalized
// parameters so the same logical query always maps to the same key. String
// concatenation of raw parameters invites collisions; every part goes through
// a typed formatter instead.

func cacheKey(op string, parts ...string) string {
	if len(parts) == 0 {
		return op
	}
	return op + ":" + strings.Join(parts, ":")
}

func keyInt(v int) string {
	return strconv.Itoa(v)
}

func keyBool(v bool) string {
	return strconv.FormatBool(v)
}

// keyOptBool distinguishes unset from false
func keyOptBool(v *bool) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatBool(*v)
}

func keyOptInt64(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func keyOptTime(v *time.Time) string {
	if v == nil {
		return "-"
	}
	return v.UTC().Format(time.RFC3339)
}

// keyIDs sorts the ids so that permutations of the same set share a key
func keyIDs(ids []uuid.UUID) string {
	if len(ids) == 0 {
		return "-"
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	sort.Strings(ss)
	return strings.Join(ss, ",")
}

// keyText guards free-form input against colliding with the key separator
func keyText(s string) string {
	return strings.ReplaceAll(s, ":", "\x00")
}
