package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/story"
	apperrors "storygraph/backend/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// GetCurrentContext derives the compact "what is true right now" snapshot
// fed to continuity and creative tooling: the characters active in the most
// recent chapter's events, the thread statuses still open, the latest mood
// and tension. It is computed purely from current graph state and stores
// nothing of its own.
func (r *Repository) GetCurrentContext(ctx context.Context, projectID string) (*story.NarrativeContext, error) {
	if projectID == "" {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeValidation, "project is required", nil)
	}

	nc := &story.NarrativeContext{
		ProjectID:        projectID,
		ActiveCharacters: []string{},
		OpenPlotThreads:  []string{},
		RecentEvents:     []string{},
		GeneratedAt:      time.Now().UTC(),
	}

	latest, found, err := r.fetchLatestChapter(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !found {
		// A project with no ingested chapters has an empty context, not an
		// error: navigation UIs stay resilient
		return nc, nil
	}

	nc.ChapterNumber = latest.number
	nc.Mood = latest.mood
	nc.Tension = latest.tension

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nc.ActiveCharacters, err = r.fetchActiveCharacters(gctx, projectID, latest.number)
		return err
	})
	g.Go(func() error {
		var err error
		nc.RecentEvents, nc.CurrentLocation, err = r.fetchRecentEvents(gctx, projectID, latest.number)
		return err
	})
	g.Go(func() error {
		var err error
		nc.OpenPlotThreads, err = r.fetchOpenPlotThreads(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return nc, nil
}

type latestChapter struct {
	number  int
	mood    string
	tension string
}

func (r *Repository) fetchLatestChapter(ctx context.Context, projectID string) (latestChapter, bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (ch:Chapter {project: $project})
		RETURN ch.number as number, ch.mood as mood, ch.tension as tension
		ORDER BY ch.number DESC
		LIMIT 1
	`

	result, err := session.Run(ctx, query, map[string]any{"project": projectID})
	if err != nil {
		return latestChapter{}, false, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch latest chapter", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return latestChapter{}, false, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to read latest chapter", err)
		}
		return latestChapter{}, false, nil
	}

	record := result.Record()
	return latestChapter{
		number:  getIntFromRecord(record, "number"),
		mood:    getStringFromRecord(record, "mood"),
		tension: getStringFromRecord(record, "tension"),
	}, true, nil
}

// fetchActiveCharacters returns the characters involved in the latest
// chapter's events
func (r *Repository) fetchActiveCharacters(ctx context.Context, projectID string, chapter int) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Event {project: $project, chapter: $chapter})-[:INVOLVES]->(c:Character)
		RETURN DISTINCT c.name as name
		ORDER BY name ASC
	`

	result, err := session.Run(ctx, query, map[string]any{
		"project": projectID,
		"chapter": chapter,
	})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch active characters", err)
	}

	names := []string{}
	for result.Next(ctx) {
		if name := getStringFromRecord(result.Record(), "name"); name != "" {
			names = append(names, name)
		}
	}
	return names, result.Err()
}

// fetchRecentEvents returns the latest chapter's event names in ingestion
// order, plus the location of the last event as the current location
func (r *Repository) fetchRecentEvents(ctx context.Context, projectID string, chapter int) ([]string, string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Event {project: $project, chapter: $chapter})
		OPTIONAL MATCH (e)-[:LOCATED_AT]->(l:Location)
		RETURN e.name as name, l.name as location
		ORDER BY e.createdAt ASC
	`

	result, err := session.Run(ctx, query, map[string]any{
		"project": projectID,
		"chapter": chapter,
	})
	if err != nil {
		return nil, "", apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch recent events", err)
	}

	events := []string{}
	location := ""
	for result.Next(ctx) {
		record := result.Record()
		if name := getStringFromRecord(record, "name"); name != "" {
			events = append(events, name)
		}
		if loc := getStringFromRecord(record, "location"); loc != "" {
			location = loc
		}
	}
	return events, location, result.Err()
}

// fetchOpenPlotThreads returns every thread whose status has not reached
// resolved
func (r *Repository) fetchOpenPlotThreads(ctx context.Context, projectID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (p:PlotThread {project: $project})
		WHERE p.status IS NULL OR p.status <> $resolved
		RETURN p.name as name
		ORDER BY name ASC
	`

	result, err := session.Run(ctx, query, map[string]any{
		"project":  projectID,
		"resolved": story.StatusResolved,
	})
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConnectivity, "failed to fetch open plot threads", err)
	}

	names := []string{}
	for result.Next(ctx) {
		if name := getStringFromRecord(result.Record(), "name"); name != "" {
			names = append(names, name)
		}
	}
	return names, result.Err()
}
