package graph

import (
	"context"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/story"
	apperrors "storygraph/backend/pkg/errors"
)

// GetAsOfChapter reconstructs the graph's state as it was after chapter n
// was ingested: only nodes introduced by then, only appearances and events
// up to then, and mutable attributes (relationship sentiment/strength, plot
// thread status) at their historical values via StateChange replay. A
// chapter number beyond the story returns whatever exists, and an unknown
// project returns an empty view rather than an error.
func (r *Repository) GetAsOfChapter(ctx context.Context, projectID string, chapter int) (*Overview, error) {
	if projectID == "" {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeValidation, "project is required", nil)
	}
	if chapter < 1 {
		return &Overview{Nodes: []Node{}, Edges: []Edge{}, NodesByType: map[string]int{}}, nil
	}

	nodes, err := r.fetchNodesAsOf(ctx, projectID, chapter)
	if err != nil {
		return nil, err
	}

	allEdges, err := r.fetchProjectEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}

	audit, err := r.fetchAuditLog(ctx, projectID)
	if err != nil {
		return nil, err
	}
	history := groupAudit(audit)

	included := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		included[n.ID] = true
	}

	// An edge survives time travel only if both endpoints do; appearance
	// edges additionally carry the chapter they record
	edges := make([]Edge, 0, len(allEdges))
	for _, e := range allEdges {
		if !included[e.SourceID] || !included[e.TargetID] {
			continue
		}
		if edgeChapter, ok := intProp(e.Properties, "chapter"); ok && edgeChapter > chapter {
			continue
		}
		edges = append(edges, replayEdge(e, history, chapter))
	}

	byType := make(map[string]int)
	for i, n := range nodes {
		byType[n.Label]++
		if n.Label == story.LabelPlotThread {
			nodes[i] = replayPlotThread(n, history, chapter)
		}
	}

	return &Overview{Nodes: nodes, Edges: edges, NodesByType: byType}, nil
}

func (r *Repository) fetchNodesAsOf(ctx context.Context, projectID string, chapter int) ([]Node, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Chapters filter on their own number, chapter-scoped records
	// (events, markers, audit entries) on their chapter, mergeable
	// entities on the chapter that introduced them
	query := `
		MATCH (n {project: $project})
		WHERE (n:Chapter AND n.number <= $chapter)
		   OR ((n:Event OR n:TemporalMarker OR n:StateChange) AND n.chapter <= $chapter)
		   OR (n.introducedIn IS NOT NULL AND n.introducedIn <= $chapter)
		RETURN labels(n)[0] as label, n.id as id, properties(n) as props
	`

	result, err := session.Run(ctx, query, map[string]any{
		"project": projectID,
		"chapter": chapter,
	})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch as-of nodes", err)
	}

	var nodes []Node
	for result.Next(ctx) {
		record := result.Record()
		nodes = append(nodes, Node{
			ID:         getStringFromRecord(record, "id"),
			Label:      getStringFromRecord(record, "label"),
			Properties: getMapFromRecord(record, "props"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to stream as-of nodes", err)
	}
	return nodes, nil
}

// fetchAuditLog returns every StateChange of a project ordered by
// (chapter, createdAt), the replay order
func (r *Repository) fetchAuditLog(ctx context.Context, projectID string) ([]AuditRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (sc:StateChange {project: $project})
		RETURN sc.entityId as entityId, sc.entityType as entityType,
		       sc.attribute as attribute, sc.oldValue as oldValue,
		       sc.newValue as newValue, sc.reason as reason,
		       sc.chapter as chapter
		ORDER BY sc.chapter ASC, sc.createdAt ASC
	`

	result, err := session.Run(ctx, query, map[string]any{"project": projectID})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch audit log", err)
	}

	var records []AuditRecord
	for result.Next(ctx) {
		record := result.Record()
		records = append(records, AuditRecord{
			EntityID:   getStringFromRecord(record, "entityId"),
			EntityType: getStringFromRecord(record, "entityType"),
			Attribute:  getStringFromRecord(record, "attribute"),
			OldValue:   getStringFromRecord(record, "oldValue"),
			NewValue:   getStringFromRecord(record, "newValue"),
			Reason:     getStringFromRecord(record, "reason"),
			Chapter:    getIntFromRecord(record, "chapter"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to stream audit log", err)
	}
	return records, nil
}

// auditHistory indexes ordered audit records by entity id and attribute
type auditHistory map[string]map[string][]AuditRecord

func groupAudit(records []AuditRecord) auditHistory {
	history := make(auditHistory)
	for _, rec := range records {
		byAttr, ok := history[rec.EntityID]
		if !ok {
			byAttr = make(map[string][]AuditRecord)
			history[rec.EntityID] = byAttr
		}
		byAttr[rec.Attribute] = append(byAttr[rec.Attribute], rec)
	}
	return history
}

// valueAsOf reconstructs an attribute's historical value. The first change
// recorded after the target chapter holds, in its oldValue, the value that
// was current as of that chapter; if no later change exists the stored
// value already is the historical one.
func valueAsOf(ordered []AuditRecord, chapter int) (string, bool) {
	for _, rec := range ordered {
		if rec.Chapter > chapter {
			return rec.OldValue, true
		}
	}
	return "", false
}

// replayEdge rewinds a narrative edge's sentiment and strength to their
// values as of the given chapter
func replayEdge(e Edge, history auditHistory, chapter int) Edge {
	relID, _ := e.Properties["id"].(string)
	if relID == "" {
		return e
	}
	byAttr, ok := history[relID]
	if !ok {
		return e
	}

	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	if v, ok := valueAsOf(byAttr["sentiment"], chapter); ok {
		props["sentiment"] = v
	}
	if v, ok := valueAsOf(byAttr["strength"], chapter); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			props["strength"] = f
		}
	}
	e.Properties = props
	return e
}

// replayPlotThread rewinds a plot thread's status
func replayPlotThread(n Node, history auditHistory, chapter int) Node {
	byAttr, ok := history[n.ID]
	if !ok {
		return n
	}
	v, ok := valueAsOf(byAttr["status"], chapter)
	if !ok {
		return n
	}

	props := make(map[string]any, len(n.Properties))
	for k, val := range n.Properties {
		props[k] = val
	}
	props["status"] = v
	n.Properties = props
	return n
}

func intProp(props map[string]any, key string) (int, bool) {
	switch v := props[key].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
