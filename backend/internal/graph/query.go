package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/story"
	apperrors "storygraph/backend/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetOverview returns every node and edge of one project, with a per-label
// node count. A project filter is always required: read paths never cross
// story namespaces.
func (r *Repository) GetOverview(ctx context.Context, projectID string) (*Overview, error) {
	if projectID == "" {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeValidation, "project is required", nil)
	}

	var nodes []Node
	var edges []Edge

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = r.fetchProjectNodes(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = r.fetchProjectEdges(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	for _, n := range nodes {
		byType[n.Label]++
	}

	return &Overview{Nodes: nodes, Edges: edges, NodesByType: byType}, nil
}

func (r *Repository) fetchProjectNodes(ctx context.Context, projectID string) ([]Node, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n {project: $project})
		RETURN labels(n)[0] as label, n.id as id, properties(n) as props
	`

	result, err := session.Run(ctx, query, map[string]any{"project": projectID})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch nodes", err)
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
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to stream nodes", err)
	}
	return nodes, nil
}

func (r *Repository) fetchProjectEdges(ctx context.Context, projectID string) ([]Edge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Narrative edges expose their analyzer-supplied type; structural edges
	// expose the Cypher relationship type
	query := `
		MATCH (a {project: $project})-[rel]->(b {project: $project})
		RETURN coalesce(rel.type, type(rel)) as relType,
		       a.id as source, b.id as target,
		       properties(rel) as props
	`

	result, err := session.Run(ctx, query, map[string]any{"project": projectID})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch edges", err)
	}

	var edges []Edge
	for result.Next(ctx) {
		record := result.Record()
		edges = append(edges, Edge{
			Type:       getStringFromRecord(record, "relType"),
			SourceID:   getStringFromRecord(record, "source"),
			TargetID:   getStringFromRecord(record, "target"),
			Properties: getMapFromRecord(record, "props"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to stream edges", err)
	}
	return edges, nil
}

// ListChapters returns the chapter navigation metadata for one project,
// ascending by number, one entry per distinct chapter number
func (r *Repository) ListChapters(ctx context.Context, projectID string) ([]story.ChapterInfo, error) {
	if projectID == "" {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeValidation, "project is required", nil)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (ch:Chapter {project: $project})
		RETURN ch.id as id, ch.number as number, ch.summary as summary, ch.version as version
		ORDER BY ch.number ASC
	`

	result, err := session.Run(ctx, query, map[string]any{"project": projectID})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to list chapters", err)
	}

	chapters := []story.ChapterInfo{}
	for result.Next(ctx) {
		record := result.Record()
		chapters = append(chapters, story.ChapterInfo{
			ID:      getStringFromRecord(record, "id"),
			Number:  getIntFromRecord(record, "number"),
			Summary: getStringFromRecord(record, "summary"),
			Version: getIntFromRecord(record, "version"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to stream chapters", err)
	}
	return chapters, nil
}

// Clear deletes every node, edge and audit record of one project. Clearing
// an already-empty project is a no-op. An empty projectID wipes the entire
// store; that path exists for demo/reset flows only.
func (r *Repository) Clear(ctx context.Context, projectID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `MATCH (n {project: $project}) DETACH DELETE n`
	params := map[string]any{"project": projectID}
	if projectID == "" {
		query = `MATCH (n) DETACH DELETE n`
		params = nil
	}

	if _, err := session.Run(ctx, query, params); err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to clear graph", err)
	}

	r.logger.Info("Graph cleared", zap.String("project", projectID))
	return nil
}
