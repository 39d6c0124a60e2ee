package graph

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/story"
)

// These tests require a running Neo4j instance. Set NEO4J_URI, NEO4J_USER,
// NEO4J_PASSWORD environment variables; they are skipped under -short.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
}

// setupTestRepo returns a repository against a fresh, uniquely named test
// project and cleans it up when the test finishes
func setupTestRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	repo := NewRepository(driver)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}

	projectID := fmt.Sprintf("test-project-%s", time.Now().Format("20060102150405.000"))

	t.Cleanup(func() {
		_ = repo.Clear(ctx, projectID)
		_ = repo.Close()
	})

	return repo, projectID
}

func chapterOne(projectID string) *story.ChapterAnalysis {
	return story.EnchantedKingdomChapters(projectID)[0]
}

func chapterTwo(projectID string) *story.ChapterAnalysis {
	return story.EnchantedKingdomChapters(projectID)[1]
}

func TestSyncChapter_Validation(t *testing.T) {
	// No store needed: validation rejects before any write
	repo := NewRepository(nil)
	result := repo.SyncChapter(context.Background(), &story.ChapterAnalysis{})
	if result.Success {
		t.Fatal("expected validation failure for empty analysis")
	}
}

func TestSyncChapter_EndToEnd(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	result := repo.SyncChapter(ctx, chapterOne(projectID))
	if !result.Success {
		t.Fatalf("chapter 1 sync failed: %s", result.Message)
	}

	overview, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if got := overview.NodesByType[story.LabelCharacter]; got != 5 {
		t.Errorf("expected 5 characters after chapter 1, got %d", got)
	}
	if got := overview.NodesByType[story.LabelLocation]; got != 4 {
		t.Errorf("expected 4 locations after chapter 1, got %d", got)
	}
	if got := overview.NodesByType[story.LabelObject]; got != 2 {
		t.Errorf("expected 2 objects after chapter 1, got %d", got)
	}
	if got := overview.NodesByType[story.LabelEvent]; got != 3 {
		t.Errorf("expected 3 events after chapter 1, got %d", got)
	}

	result = repo.SyncChapter(ctx, chapterTwo(projectID))
	if !result.Success {
		t.Fatalf("chapter 2 sync failed: %s", result.Message)
	}

	// Chapter 2 introduces Pyrrhus and Sable and reuses ELENA/Marcus:
	// 7 characters total, not 9
	overview, err = repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if got := overview.NodesByType[story.LabelCharacter]; got != 7 {
		t.Errorf("expected 7 characters after chapter 2, got %d", got)
	}
}

func TestSyncChapter_Idempotence(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	analysis := chapterOne(projectID)
	if result := repo.SyncChapter(ctx, analysis); !result.Success {
		t.Fatalf("first sync failed: %s", result.Message)
	}

	first, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}

	if result := repo.SyncChapter(ctx, analysis); !result.Success {
		t.Fatalf("second sync failed: %s", result.Message)
	}

	second, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}

	// Same node set per label; StateChange audit records are the one
	// intentionally append-only exception
	for label, count := range first.NodesByType {
		if label == "StateChange" {
			continue
		}
		if second.NodesByType[label] != count {
			t.Errorf("label %s: %d nodes after first sync, %d after re-sync", label, count, second.NodesByType[label])
		}
	}

	// Re-analysis bumps the chapter version but keeps one chapter node
	chapters, err := repo.ListChapters(ctx, projectID)
	if err != nil {
		t.Fatalf("ListChapters failed: %v", err)
	}
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Version != 2 {
		t.Errorf("expected version 2 after re-sync, got %d", chapters[0].Version)
	}
}

func TestSyncChapter_EntityResolutionAcrossCase(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	ch1 := &story.ChapterAnalysis{
		ProjectID:     projectID,
		ChapterNumber: 1,
		Summary:       "Elena appears",
		Characters:    []story.Character{{Name: "Elena", Role: "protagonist"}},
	}
	ch2 := &story.ChapterAnalysis{
		ProjectID:     projectID,
		ChapterNumber: 2,
		Summary:       "Elena again, loudly",
		Characters:    []story.Character{{Name: "ELENA", Description: "Changed by the journey"}},
	}

	if result := repo.SyncChapter(ctx, ch1); !result.Success {
		t.Fatalf("chapter 1 sync failed: %s", result.Message)
	}
	if result := repo.SyncChapter(ctx, ch2); !result.Success {
		t.Fatalf("chapter 2 sync failed: %s", result.Message)
	}

	overview, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if got := overview.NodesByType[story.LabelCharacter]; got != 1 {
		t.Fatalf("expected one Elena node, got %d", got)
	}

	// Non-empty fields from chapter 2 overwrite; chapter 1 fields survive;
	// introducedIn never moves
	for _, n := range overview.Nodes {
		if n.Label != story.LabelCharacter {
			continue
		}
		if n.Properties["role"] != "protagonist" {
			t.Errorf("expected role to survive merge, got %v", n.Properties["role"])
		}
		if n.Properties["description"] != "Changed by the journey" {
			t.Errorf("expected description overwritten, got %v", n.Properties["description"])
		}
		if intro, _ := intProp(n.Properties, "introducedIn"); intro != 1 {
			t.Errorf("expected introducedIn 1, got %d", intro)
		}
	}
}

func TestSyncChapter_RelationshipMergeNotDuplication(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	if result := repo.SyncChapter(ctx, chapterOne(projectID)); !result.Success {
		t.Fatalf("chapter 1 sync failed: %s", result.Message)
	}
	if result := repo.SyncChapter(ctx, chapterTwo(projectID)); !result.Success {
		t.Fatalf("chapter 2 sync failed: %s", result.Message)
	}

	overview, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}

	// Exactly one friends_with edge, holding the chapter-2 strength
	var friendEdges []Edge
	for _, e := range overview.Edges {
		if e.Type == "friends_with" {
			friendEdges = append(friendEdges, e)
		}
	}
	if len(friendEdges) != 1 {
		t.Fatalf("expected 1 friends_with edge, got %d", len(friendEdges))
	}
	if s, ok := friendEdges[0].Properties["strength"].(float64); !ok || s != 0.95 {
		t.Errorf("expected strength 0.95, got %v", friendEdges[0].Properties["strength"])
	}

	// Exactly one StateChange recording 0.9 -> 0.95
	audit, err := repo.fetchAuditLog(ctx, projectID)
	if err != nil {
		t.Fatalf("fetchAuditLog failed: %v", err)
	}
	strengthChanges := 0
	for _, rec := range audit {
		if rec.EntityType == "Relationship" && rec.Attribute == "strength" {
			strengthChanges++
			if rec.OldValue != "0.9" || rec.NewValue != "0.95" {
				t.Errorf("expected 0.9 -> 0.95, got %s -> %s", rec.OldValue, rec.NewValue)
			}
		}
	}
	if strengthChanges != 1 {
		t.Errorf("expected exactly 1 strength StateChange, got %d", strengthChanges)
	}
}

func TestGetAsOfChapter_TimeTravel(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	for _, analysis := range story.EnchantedKingdomChapters(projectID) {
		if result := repo.SyncChapter(ctx, analysis); !result.Success {
			t.Fatalf("chapter %d sync failed: %s", analysis.ChapterNumber, result.Message)
		}
	}

	hasPyrrhus := func(o *Overview) bool {
		for _, n := range o.Nodes {
			if n.Label == story.LabelCharacter && n.Properties["normalizedName"] == "pyrrhus" {
				return true
			}
		}
		return false
	}

	// Pyrrhus enters in chapter 2
	asOf1, err := repo.GetAsOfChapter(ctx, projectID, 1)
	if err != nil {
		t.Fatalf("GetAsOfChapter(1) failed: %v", err)
	}
	if hasPyrrhus(asOf1) {
		t.Error("Pyrrhus must not exist as of chapter 1")
	}
	if got := asOf1.NodesByType[story.LabelCharacter]; got != 5 {
		t.Errorf("expected 5 characters as of chapter 1, got %d", got)
	}

	for _, n := range []int{2, 3} {
		asOf, err := repo.GetAsOfChapter(ctx, projectID, n)
		if err != nil {
			t.Fatalf("GetAsOfChapter(%d) failed: %v", n, err)
		}
		if !hasPyrrhus(asOf) {
			t.Errorf("Pyrrhus must exist as of chapter %d", n)
		}
	}

	// friends_with strength rewinds to its chapter-1 value
	for _, e := range asOf1.Edges {
		if e.Type == "friends_with" {
			if s, ok := e.Properties["strength"].(float64); !ok || s != 0.9 {
				t.Errorf("expected strength 0.9 as of chapter 1, got %v", e.Properties["strength"])
			}
		}
	}

	// Events of later chapters are invisible
	for _, n := range asOf1.Nodes {
		if n.Label == story.LabelEvent {
			if ch, _ := intProp(n.Properties, "chapter"); ch > 1 {
				t.Errorf("event from chapter %d leaked into as-of-1 view", ch)
			}
		}
	}

	// Unrest in Veyra resolves in chapter 3; earlier views show it open
	asOf2, err := repo.GetAsOfChapter(ctx, projectID, 2)
	if err != nil {
		t.Fatalf("GetAsOfChapter(2) failed: %v", err)
	}
	for _, n := range asOf2.Nodes {
		if n.Label == story.LabelPlotThread && n.Properties["normalizedName"] == "unrest in veyra" {
			if n.Properties["status"] == story.StatusResolved {
				t.Error("Unrest in Veyra must not be resolved as of chapter 2")
			}
		}
	}
}

func TestGetAsOfChapter_UnknownChapter(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	// Nothing ingested: empty result, not an error
	overview, err := repo.GetAsOfChapter(ctx, projectID, 7)
	if err != nil {
		t.Fatalf("GetAsOfChapter failed: %v", err)
	}
	if len(overview.Nodes) != 0 {
		t.Errorf("expected empty view, got %d nodes", len(overview.Nodes))
	}
}

func TestClear_ProjectIsolation(t *testing.T) {
	repo, projectA := setupTestRepo(t)
	ctx := context.Background()

	projectB := projectA + "-b"
	t.Cleanup(func() { _ = repo.Clear(context.Background(), projectB) })

	if result := repo.SyncChapter(ctx, chapterOne(projectA)); !result.Success {
		t.Fatalf("project A sync failed: %s", result.Message)
	}
	if result := repo.SyncChapter(ctx, chapterOne(projectB)); !result.Success {
		t.Fatalf("project B sync failed: %s", result.Message)
	}

	if err := repo.Clear(ctx, projectA); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	overviewA, err := repo.GetOverview(ctx, projectA)
	if err != nil {
		t.Fatalf("GetOverview(A) failed: %v", err)
	}
	if len(overviewA.Nodes) != 0 {
		t.Errorf("expected project A empty after clear, got %d nodes", len(overviewA.Nodes))
	}

	overviewB, err := repo.GetOverview(ctx, projectB)
	if err != nil {
		t.Fatalf("GetOverview(B) failed: %v", err)
	}
	if got := overviewB.NodesByType[story.LabelCharacter]; got != 5 {
		t.Errorf("project B must be untouched, expected 5 characters, got %d", got)
	}

	// Clearing an already-empty project is a no-op
	if err := repo.Clear(ctx, projectA); err != nil {
		t.Errorf("clearing empty project must not error: %v", err)
	}
}

func TestListChapters_Ordering(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	// Ingest out of order
	for _, n := range []int{3, 1, 2} {
		analysis := &story.ChapterAnalysis{
			ProjectID:     projectID,
			ChapterNumber: n,
			Summary:       fmt.Sprintf("chapter %d", n),
			Characters:    []story.Character{{Name: fmt.Sprintf("Walk-on %d", n)}},
		}
		if result := repo.SyncChapter(ctx, analysis); !result.Success {
			t.Fatalf("chapter %d sync failed: %s", n, result.Message)
		}
	}

	chapters, err := repo.ListChapters(ctx, projectID)
	if err != nil {
		t.Fatalf("ListChapters failed: %v", err)
	}
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	for i, ch := range chapters {
		if ch.Number != i+1 {
			t.Errorf("position %d: expected chapter %d, got %d", i, i+1, ch.Number)
		}
	}
}

func TestGetCurrentContext(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	for _, analysis := range story.EnchantedKingdomChapters(projectID) {
		if result := repo.SyncChapter(ctx, analysis); !result.Success {
			t.Fatalf("chapter %d sync failed: %s", analysis.ChapterNumber, result.Message)
		}
	}

	nc, err := repo.GetCurrentContext(ctx, projectID)
	if err != nil {
		t.Fatalf("GetCurrentContext failed: %v", err)
	}

	if nc.ChapterNumber != 3 {
		t.Errorf("expected latest chapter 3, got %d", nc.ChapterNumber)
	}
	if nc.Mood != "resolve" || nc.Tension != "peak" {
		t.Errorf("expected chapter 3 mood/tension, got %q/%q", nc.Mood, nc.Tension)
	}

	// Chapter 3 events involve Elena and Marcus
	active := map[string]bool{}
	for _, name := range nc.ActiveCharacters {
		active[name] = true
	}
	if !active["Elena"] || !active["Marcus"] {
		t.Errorf("expected Elena and Marcus active, got %v", nc.ActiveCharacters)
	}

	// Unrest in Veyra resolved in chapter 3, the others stay open
	for _, name := range nc.OpenPlotThreads {
		if name == "Unrest in Veyra" {
			t.Error("resolved thread reported as open")
		}
	}
	if len(nc.OpenPlotThreads) == 0 {
		t.Error("expected open plot threads")
	}
}

func TestGetCurrentContext_EmptyProject(t *testing.T) {
	repo, projectID := setupTestRepo(t)

	nc, err := repo.GetCurrentContext(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetCurrentContext failed: %v", err)
	}
	if nc.ChapterNumber != 0 || len(nc.ActiveCharacters) != 0 {
		t.Errorf("expected empty context for fresh project, got %+v", nc)
	}
}

func TestSyncChapter_CancelledContext(t *testing.T) {
	repo, projectID := setupTestRepo(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	result := repo.SyncChapter(cancelled, chapterOne(projectID))
	if result.Success {
		t.Fatal("expected sync to fail under a cancelled context")
	}

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	result = repo.SyncChapter(expired, chapterOne(projectID))
	if result.Success {
		t.Fatal("expected sync to fail under an expired deadline")
	}

	// All-or-nothing: the aborted transaction must leave no partial
	// chapter, no entities, no stubs
	overview, err := repo.GetOverview(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if len(overview.Nodes) != 0 {
		t.Errorf("expected empty project after aborted syncs, got %d nodes", len(overview.Nodes))
	}
}

func TestGetAsOfChapter_RepeatedUpdatesWithinChapter(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	if result := repo.SyncChapter(ctx, chapterOne(projectID)); !result.Success {
		t.Fatalf("chapter 1 sync failed: %s", result.Message)
	}
	second := chapterTwo(projectID)
	if result := repo.SyncChapter(ctx, second); !result.Success {
		t.Fatalf("chapter 2 sync failed: %s", result.Message)
	}

	// Re-analysis moves the strength again within the same chapter, well
	// inside one second; replay order across the two audit records must
	// stay deterministic
	second.Relationships[0].Strength = 0.97
	if result := repo.SyncChapter(ctx, second); !result.Success {
		t.Fatalf("chapter 2 re-sync failed: %s", result.Message)
	}

	strengthAsOf := func(n int) float64 {
		t.Helper()
		asOf, err := repo.GetAsOfChapter(ctx, projectID, n)
		if err != nil {
			t.Fatalf("GetAsOfChapter(%d) failed: %v", n, err)
		}
		for _, e := range asOf.Edges {
			if e.Type == "friends_with" {
				s, _ := e.Properties["strength"].(float64)
				return s
			}
		}
		t.Fatalf("no friends_with edge as of chapter %d", n)
		return 0
	}

	if s := strengthAsOf(1); s != 0.9 {
		t.Errorf("expected strength 0.9 as of chapter 1, got %v", s)
	}
	if s := strengthAsOf(2); s != 0.97 {
		t.Errorf("expected strength 0.97 as of chapter 2, got %v", s)
	}
}

func TestSyncChapter_ConcurrentSameProject(t *testing.T) {
	repo, projectID := setupTestRepo(t)
	ctx := context.Background()

	// Two racing syncs both introducing Elena must converge on one node
	analysis1 := &story.ChapterAnalysis{
		ProjectID:     projectID,
		ChapterNumber: 1,
		Summary:       "first",
		Characters:    []story.Character{{Name: "Elena"}},
	}
	analysis2 := &story.ChapterAnalysis{
		ProjectID:     projectID,
		ChapterNumber: 2,
		Summary:       "second",
		Characters:    []story.Character{{Name: "elena"}},
	}

	done := make(chan *story.SyncResult, 2)
	go func() { done <- repo.SyncChapter(ctx, analysis1) }()
	go func() { done <- repo.SyncChapter(ctx, analysis2) }()
	for i := 0; i < 2; i++ {
		if result := <-done; !result.Success {
			t.Fatalf("concurrent sync failed: %s", result.Message)
		}
	}

	overview, err := repo.GetOverview(ctx, projectID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if got := overview.NodesByType[story.LabelCharacter]; got != 1 {
		t.Errorf("expected one Elena node after concurrent syncs, got %d", got)
	}
}
