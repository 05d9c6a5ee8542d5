package pipeline

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// primaryKeyPattern matches a field exactly named "id", or ending in
// "id" (case-insensitive), per §4.F stage 1's auto-detection rule.
var primaryKeyPattern = regexp.MustCompile(`(?i)^id$|id$`)

// DetectPrimaryKey returns the configured primary key if non-empty,
// otherwise the first candidate field (by sorted name, since a decoded
// JSON object does not preserve source key order in Go's map
// representation) whose name matches §4.F's auto-detection pattern.
func DetectPrimaryKey(configured string, doc Document) (string, error) {
	if configured != "" {
		return configured, nil
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if primaryKeyPattern.MatchString(name) {
			return name, nil
		}
	}
	return "", apperr.Validation("no primary key configured and no field name matches the auto-detection pattern (/^id$|id$/i)")
}

// externalIDOf extracts doc's external id as a string, per the common
// coercion of a primary-key value (string or number) into the id space.
func externalIDOf(doc Document, primaryKey string) (string, error) {
	v, ok := doc[primaryKey]
	if !ok {
		return "", apperr.Validation("document is missing its primary key field %q", primaryKey)
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", apperr.Validation("document's primary key field %q is empty", primaryKey)
		}
		return t, nil
	case float64:
		return formatNumericID(t), nil
	default:
		return "", apperr.Validation("document's primary key field %q must be a string or number, got %T", primaryKey, v)
	}
}

func formatNumericID(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
