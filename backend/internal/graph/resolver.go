package graph

import "storygraph/backend/internal/story"

// Resolver decides the key under which an incoming entity mention merges
// with existing nodes of the same label within a project. Name-based
// resolution is the default heuristic; stricter strategies (for example
// analyzer-supplied stable ids) can be injected without touching the merge
// algorithm.
type Resolver interface {
	// Key returns the resolution key for an entity mention. label is one of
	// story.MergeableLabels, analyzerID is the id the manuscript analyzer
	// attached to the mention (may be empty).
	Key(label, name, analyzerID string) string
}

// NameResolver merges mentions by normalized name: case-folded, trimmed,
// inner whitespace collapsed. Two unrelated entities sharing a name within
// one project will merge under this strategy.
type NameResolver struct{}

func (NameResolver) Key(_, name, _ string) string {
	return story.NormalizeName(name)
}

// StableIDResolver prefers the analyzer-supplied id when present and falls
// back to normalized-name matching otherwise
type StableIDResolver struct{}

func (StableIDResolver) Key(_, name, analyzerID string) string {
	if analyzerID != "" {
		return analyzerID
	}
	return story.NormalizeName(name)
}
