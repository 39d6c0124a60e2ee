package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	apperrors "storygraph/backend/pkg/errors"
	"go.uber.org/zap"
)

const (
	schemaMaxAttempts = 3
	schemaBaseDelay   = 500 * time.Millisecond
)

// schemaStatements are the uniqueness constraints and indexes the engine
// relies on. Every statement is IF NOT EXISTS, so the whole set is safe to
// run concurrently and repeatedly.
var schemaStatements = []string{
	`CREATE CONSTRAINT character_project_name IF NOT EXISTS FOR (c:Character) REQUIRE (c.project, c.normalizedName) IS UNIQUE`,
	`CREATE CONSTRAINT location_project_name IF NOT EXISTS FOR (l:Location) REQUIRE (l.project, l.normalizedName) IS UNIQUE`,
	`CREATE CONSTRAINT object_project_name IF NOT EXISTS FOR (o:Object) REQUIRE (o.project, o.normalizedName) IS UNIQUE`,
	`CREATE CONSTRAINT plot_thread_project_name IF NOT EXISTS FOR (p:PlotThread) REQUIRE (p.project, p.normalizedName) IS UNIQUE`,
	`CREATE CONSTRAINT chapter_project_number IF NOT EXISTS FOR (ch:Chapter) REQUIRE (ch.project, ch.number) IS UNIQUE`,
	`CREATE INDEX chapter_number IF NOT EXISTS FOR (ch:Chapter) ON (ch.number)`,
	`CREATE INDEX event_project_chapter IF NOT EXISTS FOR (e:Event) ON (e.project, e.chapter)`,
	`CREATE INDEX state_change_project_chapter IF NOT EXISTS FOR (sc:StateChange) ON (sc.project, sc.chapter)`,
}

// EnsureSchema creates the uniqueness constraints and indexes the merge
// algorithm depends on. It only touches schema, never data. Transient
// connectivity errors are retried with exponential backoff; eventual success
// is invisible to callers.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= schemaMaxAttempts; attempt++ {
		lastErr = r.applySchema(ctx)
		if lastErr == nil {
			r.schemaReady.Store(true)
			return nil
		}

		if attempt < schemaMaxAttempts {
			delay := schemaBaseDelay * time.Duration(1<<(attempt-1))
			r.logger.Warn("Schema initialization failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return apperrors.NewStoreUnreachable(r.driver.Target().Host, ctx.Err())
			}
		}
	}

	return apperrors.NewStoreUnreachable(r.driver.Target().Host, lastErr)
}

func (r *Repository) applySchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	return nil
}

// ensureSchemaOnce applies the schema before the first write on this
// repository. Later writes skip the round trip.
func (r *Repository) ensureSchemaOnce(ctx context.Context) error {
	if r.schemaReady.Load() {
		return nil
	}
	return r.EnsureSchema(ctx)
}
