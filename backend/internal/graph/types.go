package graph

// Node is one graph node as served to read-side callers: its label, id and
// full property bag
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Edge is one graph edge with resolved endpoint ids
type Edge struct {
	Type       string         `json:"type"`
	SourceID   string         `json:"source"`
	TargetID   string         `json:"target"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Overview is the read-side view of a project's graph
type Overview struct {
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	NodesByType map[string]int `json:"nodesByType"`
}

// AuditRecord is one StateChange row as read back from the store, ordered
// by (chapter, createdAt) per entity attribute for historical replay
type AuditRecord struct {
	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType"`
	Attribute  string `json:"attribute"`
	OldValue   string `json:"oldValue"`
	NewValue   string `json:"newValue"`
	Reason     string `json:"reason"`
	Chapter    int    `json:"chapter"`
}
