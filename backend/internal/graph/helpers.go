package graph

import (
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getMapFromRecord(record *neo4j.Record, key string) map[string]any {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return map[string]any{}
	}
	if m, ok := val.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

var relTypeSanitizer = regexp.MustCompile(`[^A-Z0-9_]`)

// sanitizeRelType turns a free-form relationship type ("friends_with") into
// a Cypher-safe relationship identifier ("FRIENDS_WITH"). Relationship types
// cannot be parameterized in Cypher, so this is what keeps analyzer-supplied
// strings out of query text.
func sanitizeRelType(relType string) string {
	upper := strings.ToUpper(strings.TrimSpace(relType))
	upper = strings.ReplaceAll(upper, " ", "_")
	upper = strings.ReplaceAll(upper, "-", "_")
	upper = relTypeSanitizer.ReplaceAllString(upper, "")
	upper = strings.Trim(upper, "_")
	if upper == "" || (upper[0] >= '0' && upper[0] <= '9') {
		return "RELATES_TO"
	}
	return upper
}
