package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/story"
	apperrors "storygraph/backend/pkg/errors"
	"go.uber.org/zap"
)

// SyncChapter merges one chapter's structured analysis into the cumulative
// story graph. The whole merge runs in a single managed write transaction:
// on any failure nothing is visible and the caller gets a failure result
// instead of an error, so the already-computed analysis is not discarded.
// Re-running the same analysis for the same chapter converges to the same
// stored state, aside from append-only StateChange audit records.
//
// Syncs are serialized per project; a caller-supplied ctx deadline aborts
// the transaction cleanly.
func (r *Repository) SyncChapter(ctx context.Context, analysis *story.ChapterAnalysis) *story.SyncResult {
	if err := story.ValidateAnalysis(analysis); err != nil {
		return &story.SyncResult{Success: false, Message: err.Error()}
	}

	if err := r.ensureSchemaOnce(ctx); err != nil {
		return r.failResult(analysis, err)
	}

	mu := r.lockProject(analysis.ProjectID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := r.upsertChapter(ctx, tx, analysis); err != nil {
			return nil, err
		}
		for _, c := range analysis.Characters {
			if err := r.mergeCharacter(ctx, tx, analysis, c); err != nil {
				return nil, err
			}
		}
		for _, l := range analysis.Locations {
			if err := r.mergeLocation(ctx, tx, analysis, l); err != nil {
				return nil, err
			}
		}
		for _, o := range analysis.Objects {
			if err := r.mergeObject(ctx, tx, analysis, o); err != nil {
				return nil, err
			}
		}
		for _, p := range analysis.PlotThreads {
			if err := r.mergePlotThread(ctx, tx, analysis, p); err != nil {
				return nil, err
			}
		}
		for _, e := range analysis.Events {
			if err := r.mergeEvent(ctx, tx, analysis, e); err != nil {
				return nil, err
			}
		}
		for _, rel := range analysis.Relationships {
			if err := r.mergeRelationship(ctx, tx, analysis, rel); err != nil {
				return nil, err
			}
		}
		for _, sc := range analysis.StateChanges {
			if err := r.appendStateChange(ctx, tx, analysis, sc); err != nil {
				return nil, err
			}
		}
		for _, tm := range analysis.TemporalMarkers {
			if err := r.mergeTemporalMarker(ctx, tx, analysis, tm); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return r.failResult(analysis, apperrors.NewSyncFailed(analysis.ProjectID, analysis.ChapterNumber, err))
	}

	r.logger.Info("Chapter synchronized",
		zap.String("project", analysis.ProjectID),
		zap.Int("chapter", analysis.ChapterNumber),
		zap.Int("characters", len(analysis.Characters)),
		zap.Int("locations", len(analysis.Locations)),
		zap.Int("objects", len(analysis.Objects)),
		zap.Int("events", len(analysis.Events)),
		zap.Int("relationships", len(analysis.Relationships)),
		zap.Int("plot_threads", len(analysis.PlotThreads)),
		zap.Duration("took", time.Since(start)),
	)

	return &story.SyncResult{
		Success:       true,
		Message:       fmt.Sprintf("chapter %d synchronized", analysis.ChapterNumber),
		ProjectID:     analysis.ProjectID,
		ChapterNumber: analysis.ChapterNumber,
	}
}

// failResult logs a sync failure and wraps it as a result. The engine never
// retries a failed sync itself; retry policy belongs to the caller.
func (r *Repository) failResult(analysis *story.ChapterAnalysis, err error) *story.SyncResult {
	r.logger.Error("Chapter sync failed",
		zap.String("project", analysis.ProjectID),
		zap.Int("chapter", analysis.ChapterNumber),
		zap.Error(err),
	)
	return &story.SyncResult{
		Success:       false,
		Message:       err.Error(),
		ProjectID:     analysis.ProjectID,
		ChapterNumber: analysis.ChapterNumber,
	}
}

// upsertChapter creates the Chapter node for (project, number) or, on
// re-analysis, bumps its version and overwrites summary and timestamp
func (r *Repository) upsertChapter(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis) error {
	version := a.Version
	if version < 1 {
		version = 1
	}

	query := `
		MERGE (ch:Chapter {project: $project, number: $number})
		ON CREATE SET ch.id = $chapterID,
		              ch.version = $version,
		              ch.createdAt = datetime($now)
		ON MATCH SET ch.version = ch.version + 1
		SET ch.summary = $summary,
		    ch.mood = $mood,
		    ch.tension = $tension,
		    ch.updatedAt = datetime($now)
		RETURN ch.version as version
	`

	chapterID := a.ChapterID
	if chapterID == "" {
		chapterID = uuid.New().String()
	}

	result, err := tx.Run(ctx, query, map[string]any{
		"project":   a.ProjectID,
		"number":    a.ChapterNumber,
		"chapterID": chapterID,
		"version":   version,
		"summary":   a.Summary,
		"mood":      a.Mood,
		"tension":   a.Tension,
		"now":       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chapter %d: %w", a.ChapterNumber, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify chapter upsert: %w", err)
	}
	return nil
}

// mergeCharacter resolves a character mention to an existing or new node,
// overwrites every non-empty supplied field (introducedIn stays immutable)
// and records the appearance in this chapter
func (r *Repository) mergeCharacter(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, c story.Character) error {
	query := `
		MERGE (c:Character {project: $project, normalizedName: $key})
		ON CREATE SET c.id = $id,
		              c.introducedIn = $chapter,
		              c.createdAt = datetime($now)
		SET c.name = CASE WHEN $name <> '' THEN $name ELSE c.name END,
		    c.role = CASE WHEN $role <> '' THEN $role ELSE c.role END,
		    c.description = CASE WHEN $description <> '' THEN $description ELSE c.description END,
		    c.traits = CASE WHEN size($traits) > 0 THEN $traits ELSE coalesce(c.traits, []) END,
		    c.motivations = CASE WHEN size($motivations) > 0 THEN $motivations ELSE coalesce(c.motivations, []) END,
		    c.stub = false
		WITH c
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (c)-[:APPEARS_IN {chapter: $chapter}]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":     a.ProjectID,
		"key":         r.resolver.Key(story.LabelCharacter, c.Name, c.ID),
		"id":          uuid.New().String(),
		"chapter":     a.ChapterNumber,
		"name":        c.Name,
		"role":        c.Role,
		"description": c.Description,
		"traits":      toAnySlice(c.Traits),
		"motivations": toAnySlice(c.Motivations),
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge character %q: %w", c.Name, err)
	}
	return nil
}

// mergeLocation merges a location and, when a parent is named, a
// CONTAINED_IN edge to a (possibly stub) parent location
func (r *Repository) mergeLocation(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, l story.Location) error {
	query := `
		MERGE (l:Location {project: $project, normalizedName: $key})
		ON CREATE SET l.id = $id,
		              l.introducedIn = $chapter,
		              l.createdAt = datetime($now)
		SET l.name = CASE WHEN $name <> '' THEN $name ELSE l.name END,
		    l.type = CASE WHEN $type <> '' THEN $type ELSE l.type END,
		    l.description = CASE WHEN $description <> '' THEN $description ELSE l.description END,
		    l.stub = false
		WITH l
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (l)-[:APPEARS_IN {chapter: $chapter}]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":     a.ProjectID,
		"key":         r.resolver.Key(story.LabelLocation, l.Name, l.ID),
		"id":          uuid.New().String(),
		"chapter":     a.ChapterNumber,
		"name":        l.Name,
		"type":        l.Type,
		"description": l.Description,
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge location %q: %w", l.Name, err)
	}

	if l.ContainedIn == "" {
		return nil
	}

	parentQuery := `
		MATCH (l:Location {project: $project, normalizedName: $key})
		MERGE (parent:Location {project: $project, normalizedName: $parentKey})
		ON CREATE SET parent.id = $parentID,
		              parent.name = $parentName,
		              parent.introducedIn = $chapter,
		              parent.stub = true,
		              parent.createdAt = datetime($now)
		MERGE (l)-[:CONTAINED_IN]->(parent)
	`

	_, err = tx.Run(ctx, parentQuery, map[string]any{
		"project":    a.ProjectID,
		"key":        r.resolver.Key(story.LabelLocation, l.Name, l.ID),
		"parentKey":  r.resolver.Key(story.LabelLocation, l.ContainedIn, ""),
		"parentID":   uuid.New().String(),
		"parentName": l.ContainedIn,
		"chapter":    a.ChapterNumber,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to link location %q to parent %q: %w", l.Name, l.ContainedIn, err)
	}
	return nil
}

// mergeObject merges an object and rewires its OWNS edge when ownership
// changed hands
func (r *Repository) mergeObject(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, o story.Object) error {
	query := `
		MERGE (o:Object {project: $project, normalizedName: $key})
		ON CREATE SET o.id = $id,
		              o.introducedIn = $chapter,
		              o.createdAt = datetime($now)
		SET o.name = CASE WHEN $name <> '' THEN $name ELSE o.name END,
		    o.type = CASE WHEN $type <> '' THEN $type ELSE o.type END,
		    o.description = CASE WHEN $description <> '' THEN $description ELSE o.description END,
		    o.significance = CASE WHEN $significance <> '' THEN $significance ELSE o.significance END,
		    o.owner = CASE WHEN $owner <> '' THEN $owner ELSE o.owner END,
		    o.stub = false
		WITH o
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (o)-[:APPEARS_IN {chapter: $chapter}]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":      a.ProjectID,
		"key":          r.resolver.Key(story.LabelObject, o.Name, o.ID),
		"id":           uuid.New().String(),
		"chapter":      a.ChapterNumber,
		"name":         o.Name,
		"type":         o.Type,
		"description":  o.Description,
		"significance": o.Significance,
		"owner":        o.Owner,
		"now":          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge object %q: %w", o.Name, err)
	}

	if o.Owner == "" {
		return nil
	}

	// The object has exactly one current owner: drop edges from previous
	// owners before merging the new one
	ownerQuery := `
		MATCH (o:Object {project: $project, normalizedName: $key})
		OPTIONAL MATCH (prev:Character)-[stale:OWNS]->(o)
		WHERE prev.normalizedName <> $ownerKey
		DELETE stale
		WITH DISTINCT o
		MERGE (owner:Character {project: $project, normalizedName: $ownerKey})
		ON CREATE SET owner.id = $ownerID,
		              owner.name = $ownerName,
		              owner.introducedIn = $chapter,
		              owner.stub = true,
		              owner.createdAt = datetime($now)
		MERGE (owner)-[:OWNS]->(o)
	`

	_, err = tx.Run(ctx, ownerQuery, map[string]any{
		"project":   a.ProjectID,
		"key":       r.resolver.Key(story.LabelObject, o.Name, o.ID),
		"ownerKey":  r.resolver.Key(story.LabelCharacter, o.Owner, ""),
		"ownerID":   uuid.New().String(),
		"ownerName": o.Owner,
		"chapter":   a.ChapterNumber,
		"now":       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to link object %q to owner %q: %w", o.Name, o.Owner, err)
	}
	return nil
}

// mergePlotThread merges a plot thread. A status transition appends a
// StateChange audit record before the stored value is overwritten, so
// time-travel replay can reconstruct the status as of any chapter.
func (r *Repository) mergePlotThread(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, p story.PlotThread) error {
	query := `
		MERGE (p:PlotThread {project: $project, normalizedName: $key})
		ON CREATE SET p.id = $id,
		              p.introducedIn = $chapter,
		              p.status = $status,
		              p.createdAt = datetime($now)
		WITH p, p.status AS oldStatus
		SET p.name = CASE WHEN $name <> '' THEN $name ELSE p.name END,
		    p.description = CASE WHEN $description <> '' THEN $description ELSE p.description END,
		    p.status = CASE WHEN $status <> '' THEN $status ELSE p.status END
		FOREACH (_ IN CASE WHEN oldStatus IS NOT NULL AND $status <> '' AND oldStatus <> $status THEN [1] ELSE [] END |
			CREATE (sc:StateChange {
				id: $scID,
				project: $project,
				entityId: p.id,
				entityType: 'PlotThread',
				attribute: 'status',
				oldValue: oldStatus,
				newValue: $status,
				reason: $reason,
				chapter: $chapter,
				createdAt: datetime($now)
			})
			MERGE (p)-[:HAS_STATE_CHANGE]->(sc)
		)
		WITH p
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (p)-[:APPEARS_IN {chapter: $chapter}]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":     a.ProjectID,
		"key":         r.resolver.Key(story.LabelPlotThread, p.Name, p.ID),
		"id":          uuid.New().String(),
		"scID":        uuid.New().String(),
		"chapter":     a.ChapterNumber,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"reason":      fmt.Sprintf("plot thread status changed in chapter %d", a.ChapterNumber),
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge plot thread %q: %w", p.Name, err)
	}

	for _, charName := range p.RelatedCharacters {
		if charName == "" {
			continue
		}
		if err := r.linkThreadCharacter(ctx, tx, a, p, charName); err != nil {
			return err
		}
	}
	for _, eventName := range p.RelatedEvents {
		if eventName == "" {
			continue
		}
		if err := r.linkThreadEvent(ctx, tx, a, p, eventName); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) linkThreadCharacter(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, p story.PlotThread, charName string) error {
	query := `
		MATCH (p:PlotThread {project: $project, normalizedName: $key})
		MERGE (c:Character {project: $project, normalizedName: $charKey})
		ON CREATE SET c.id = $charID,
		              c.name = $charName,
		              c.introducedIn = $chapter,
		              c.stub = true,
		              c.createdAt = datetime($now)
		MERGE (p)-[:INVOLVES]->(c)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":  a.ProjectID,
		"key":      r.resolver.Key(story.LabelPlotThread, p.Name, p.ID),
		"charKey":  r.resolver.Key(story.LabelCharacter, charName, ""),
		"charID":   uuid.New().String(),
		"charName": charName,
		"chapter":  a.ChapterNumber,
		"now":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to link plot thread %q to character %q: %w", p.Name, charName, err)
	}
	return nil
}

func (r *Repository) linkThreadEvent(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, p story.PlotThread, eventName string) error {
	// Events are chapter-scoped, so only events of this chapter can be
	// referenced by name; unknown names are skipped rather than stubbed
	query := `
		MATCH (p:PlotThread {project: $project, normalizedName: $key})
		MATCH (e:Event {project: $project, chapter: $chapter, normalizedName: $eventKey})
		MERGE (p)-[:INVOLVES]->(e)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":  a.ProjectID,
		"key":      r.resolver.Key(story.LabelPlotThread, p.Name, p.ID),
		"eventKey": story.NormalizeName(eventName),
		"chapter":  a.ChapterNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to link plot thread %q to event %q: %w", p.Name, eventName, err)
	}
	return nil
}

// mergeEvent creates a chapter-scoped event. Identity is (project, chapter,
// name): re-syncing the same chapter converges to one node, while the same
// event name in another chapter is a distinct node.
func (r *Repository) mergeEvent(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, e story.Event) error {
	query := `
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (e:Event {project: $project, chapter: $chapter, normalizedName: $key})
		ON CREATE SET e.id = $id,
		              e.createdAt = datetime($now)
		SET e.name = $name,
		    e.description = $description,
		    e.type = $type,
		    e.isTemporal = $isTemporal,
		    e.temporalType = $temporalType
		MERGE (e)-[:OCCURS_IN]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":      a.ProjectID,
		"chapter":      a.ChapterNumber,
		"key":          story.NormalizeName(e.Name),
		"id":           uuid.New().String(),
		"name":         e.Name,
		"description":  e.Description,
		"type":         e.Type,
		"isTemporal":   e.IsTemporal,
		"temporalType": e.TemporalType,
		"now":          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge event %q: %w", e.Name, err)
	}

	for _, charName := range e.Characters {
		if charName == "" {
			continue
		}
		involveQuery := `
			MATCH (e:Event {project: $project, chapter: $chapter, normalizedName: $key})
			MERGE (c:Character {project: $project, normalizedName: $charKey})
			ON CREATE SET c.id = $charID,
			              c.name = $charName,
			              c.introducedIn = $chapter,
			              c.stub = true,
			              c.createdAt = datetime($now)
			MERGE (e)-[:INVOLVES]->(c)
		`
		_, err := tx.Run(ctx, involveQuery, map[string]any{
			"project":  a.ProjectID,
			"chapter":  a.ChapterNumber,
			"key":      story.NormalizeName(e.Name),
			"charKey":  r.resolver.Key(story.LabelCharacter, charName, ""),
			"charID":   uuid.New().String(),
			"charName": charName,
			"now":      time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("failed to link event %q to character %q: %w", e.Name, charName, err)
		}
	}

	if e.Location == "" {
		return nil
	}

	locationQuery := `
		MATCH (e:Event {project: $project, chapter: $chapter, normalizedName: $key})
		MERGE (l:Location {project: $project, normalizedName: $locKey})
		ON CREATE SET l.id = $locID,
		              l.name = $locName,
		              l.introducedIn = $chapter,
		              l.stub = true,
		              l.createdAt = datetime($now)
		MERGE (e)-[:LOCATED_AT]->(l)
	`

	_, err = tx.Run(ctx, locationQuery, map[string]any{
		"project": a.ProjectID,
		"chapter": a.ChapterNumber,
		"key":     story.NormalizeName(e.Name),
		"locKey":  r.resolver.Key(story.LabelLocation, e.Location, ""),
		"locID":   uuid.New().String(),
		"locName": e.Location,
		"now":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to link event %q to location %q: %w", e.Name, e.Location, err)
	}
	return nil
}

// mergeRelationship resolves both endpoints (creating stubs for unseen
// names), merges the edge keyed by (project, source, target, type) and, when
// sentiment or strength moved, appends StateChange audit records before
// overwriting
func (r *Repository) mergeRelationship(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, rel story.Relationship) error {
	srcLabel := entityLabel(rel.SourceType)
	dstLabel := entityLabel(rel.TargetType)

	if err := r.ensureStub(ctx, tx, a, srcLabel, rel.Source); err != nil {
		return apperrors.NewEntityResolutionFailed(rel.Source, srcLabel, err)
	}
	if err := r.ensureStub(ctx, tx, a, dstLabel, rel.Target); err != nil {
		return apperrors.NewEntityResolutionFailed(rel.Target, dstLabel, err)
	}

	sentiment := rel.Sentiment
	if sentiment == "" {
		sentiment = "neutral"
	}

	// Relationship types become the edge label; the raw type string is kept
	// as the `type` property, which is also what marks an edge as narrative
	// rather than structural
	query := fmt.Sprintf(`
		MATCH (src:%s {project: $project, normalizedName: $srcKey})
		MATCH (dst:%s {project: $project, normalizedName: $dstKey})
		MERGE (src)-[rel:%s]->(dst)
		ON CREATE SET rel.id = $relID,
		              rel.project = $project,
		              rel.type = $relType,
		              rel.sentiment = $sentiment,
		              rel.strength = $strength,
		              rel.introducedIn = $chapter,
		              rel.createdAt = datetime($now)
		WITH src, dst, rel, rel.sentiment AS oldSentiment, rel.strength AS oldStrength
		SET rel.description = CASE WHEN $description <> '' THEN $description ELSE rel.description END,
		    rel.sentiment = $sentiment,
		    rel.strength = $strength,
		    rel.updatedIn = $chapter
		FOREACH (_ IN CASE WHEN oldSentiment <> $sentiment THEN [1] ELSE [] END |
			CREATE (sc:StateChange {
				id: $sentimentScID,
				project: $project,
				entityId: rel.id,
				entityType: 'Relationship',
				attribute: 'sentiment',
				oldValue: oldSentiment,
				newValue: $sentiment,
				reason: $reason,
				chapter: $chapter,
				createdAt: datetime($now)
			})
			MERGE (src)-[:HAS_STATE_CHANGE]->(sc)
		)
		FOREACH (_ IN CASE WHEN abs(oldStrength - $strength) > 0.000001 THEN [1] ELSE [] END |
			CREATE (sc:StateChange {
				id: $strengthScID,
				project: $project,
				entityId: rel.id,
				entityType: 'Relationship',
				attribute: 'strength',
				oldValue: toString(oldStrength),
				newValue: toString($strength),
				reason: $reason,
				chapter: $chapter,
				createdAt: datetime($now)
			})
			MERGE (src)-[:HAS_STATE_CHANGE]->(sc)
		)
	`, srcLabel, dstLabel, sanitizeRelType(rel.Type))

	_, err := tx.Run(ctx, query, map[string]any{
		"project":       a.ProjectID,
		"srcKey":        r.resolver.Key(srcLabel, rel.Source, ""),
		"dstKey":        r.resolver.Key(dstLabel, rel.Target, ""),
		"relID":         uuid.New().String(),
		"relType":       rel.Type,
		"sentiment":     sentiment,
		"strength":      rel.Strength,
		"description":   rel.Description,
		"chapter":       a.ChapterNumber,
		"sentimentScID": uuid.New().String(),
		"strengthScID":  uuid.New().String(),
		"reason":        fmt.Sprintf("relationship %s updated in chapter %d", rel.Type, a.ChapterNumber),
		"now":           time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge relationship %s-[%s]->%s: %w", rel.Source, rel.Type, rel.Target, err)
	}
	return nil
}

// ensureStub guarantees a node exists for a referenced entity name. Stubs
// carry introducedIn of the referencing chapter and are promoted in place
// when a later analysis supplies the full entity.
func (r *Repository) ensureStub(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, label, name string) error {
	query := fmt.Sprintf(`
		MERGE (n:%s {project: $project, normalizedName: $key})
		ON CREATE SET n.id = $id,
		              n.name = $name,
		              n.introducedIn = $chapter,
		              n.stub = true,
		              n.createdAt = datetime($now)
	`, label)

	_, err := tx.Run(ctx, query, map[string]any{
		"project": a.ProjectID,
		"key":     r.resolver.Key(label, name, ""),
		"id":      uuid.New().String(),
		"name":    name,
		"chapter": a.ChapterNumber,
		"now":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure %s stub %q: %w", label, name, err)
	}
	return nil
}

// appendStateChange appends an explicit analyzer-supplied audit record
// without further interpretation. Literal re-submission accumulates
// duplicates; that is accepted, not corrected.
func (r *Repository) appendStateChange(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, sc story.StateChange) error {
	query := `
		CREATE (sc:StateChange {
			id: $id,
			project: $project,
			entityId: $entityId,
			entityType: $entityType,
			attribute: $attribute,
			oldValue: $oldValue,
			newValue: $newValue,
			reason: $reason,
			chapter: $chapter,
			createdAt: datetime($now)
		})
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"id":         uuid.New().String(),
		"project":    a.ProjectID,
		"entityId":   sc.EntityID,
		"entityType": sc.EntityType,
		"attribute":  sc.Attribute,
		"oldValue":   sc.OldValue,
		"newValue":   sc.NewValue,
		"reason":     sc.Reason,
		"chapter":    a.ChapterNumber,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to append state change for %s: %w", sc.EntityID, err)
	}
	return nil
}

// mergeTemporalMarker creates a flashback/flashforward annotation linked to
// the chapter and the events it names. Identity is (project, chapter,
// marker id) so re-syncs converge.
func (r *Repository) mergeTemporalMarker(ctx context.Context, tx neo4j.ManagedTransaction, a *story.ChapterAnalysis, tm story.TemporalMarker) error {
	markerKey := tm.ID
	if markerKey == "" {
		markerKey = story.NormalizeName(tm.Type + " " + tm.Description)
	}

	query := `
		MATCH (ch:Chapter {project: $project, number: $chapter})
		MERGE (tm:TemporalMarker {project: $project, chapter: $chapter, markerId: $markerKey})
		ON CREATE SET tm.id = $id,
		              tm.createdAt = datetime($now)
		SET tm.type = $type,
		    tm.description = $description,
		    tm.fromTime = $fromTime,
		    tm.toTime = $toTime
		MERGE (tm)-[:MARKS]->(ch)
	`

	_, err := tx.Run(ctx, query, map[string]any{
		"project":     a.ProjectID,
		"chapter":     a.ChapterNumber,
		"markerKey":   markerKey,
		"id":          uuid.New().String(),
		"type":        tm.Type,
		"description": tm.Description,
		"fromTime":    tm.FromTime,
		"toTime":      tm.ToTime,
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to merge temporal marker %q: %w", markerKey, err)
	}

	for _, eventName := range tm.AffectedEvents {
		if eventName == "" {
			continue
		}
		affectQuery := `
			MATCH (tm:TemporalMarker {project: $project, chapter: $chapter, markerId: $markerKey})
			MATCH (e:Event {project: $project, chapter: $chapter, normalizedName: $eventKey})
			MERGE (tm)-[:AFFECTS]->(e)
		`
		_, err := tx.Run(ctx, affectQuery, map[string]any{
			"project":   a.ProjectID,
			"chapter":   a.ChapterNumber,
			"markerKey": markerKey,
			"eventKey":  story.NormalizeName(eventName),
		})
		if err != nil {
			return fmt.Errorf("failed to link temporal marker %q to event %q: %w", markerKey, eventName, err)
		}
	}
	return nil
}

// entityLabel maps an analyzer-supplied entity type to a graph label,
// defaulting to Character (the overwhelmingly common relationship endpoint)
func entityLabel(entityType string) string {
	for _, label := range story.MergeableLabels {
		if entityType == label {
			return label
		}
	}
	return story.LabelCharacter
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
