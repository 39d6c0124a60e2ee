package story

import (
	"regexp"
	"strings"
	"time"
)

// Entity labels used in the graph store. Character, Location, Object and
// PlotThread are mergeable: the same normalized name within a project always
// resolves to the same node. Events and chapters are chapter-scoped.
const (
	LabelCharacter  = "Character"
	LabelLocation   = "Location"
	LabelObject     = "Object"
	LabelEvent      = "Event"
	LabelPlotThread = "PlotThread"
	LabelChapter    = "Chapter"
)

// MergeableLabels lists the entity labels subject to name-based resolution
var MergeableLabels = []string{LabelCharacter, LabelLocation, LabelObject, LabelPlotThread}

// Plot thread lifecycle statuses
const (
	StatusIntroduced = "introduced"
	StatusDeveloping = "developing"
	StatusClimax     = "climax"
	StatusResolved   = "resolved"
)

// Character is a person or agent in the story
type Character struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"required"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Motivations []string `json:"motivations"`
}

// Location is a place in the story
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"omitempty,oneof=interior exterior"`
	Description string `json:"description"`
	ContainedIn string `json:"containedIn,omitempty"`
}

// Object is a prop or artifact
type Object struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type" validate:"omitempty,oneof=macguffin weapon document symbolic prop"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
	Owner        string `json:"owner,omitempty"` // Character name
}

// Event is something that happens within one chapter. Events are
// chapter-local and never merged across chapters.
type Event struct {
	ID           string   `json:"id"`
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Type         string   `json:"type" validate:"omitempty,oneof=action conflict revelation"`
	Characters   []string `json:"characters"`
	Location     string   `json:"location"`
	IsTemporal   bool     `json:"isTemporal"`
	TemporalType string   `json:"temporalType" validate:"omitempty,oneof=current flashback flashforward"`
}

// Relationship is a typed link between two entities. Unique per
// (project, source, target, type); re-ingestion updates, never duplicates.
type Relationship struct {
	ID          string  `json:"id"`
	Source      string  `json:"source" validate:"required"`
	SourceType  string  `json:"sourceType" validate:"omitempty,oneof=Character Location Object PlotThread"`
	Target      string  `json:"target" validate:"required"`
	TargetType  string  `json:"targetType" validate:"omitempty,oneof=Character Location Object PlotThread"`
	Type        string  `json:"type" validate:"required"`
	Description string  `json:"description"`
	Sentiment   string  `json:"sentiment" validate:"omitempty,oneof=positive negative neutral ambiguous"`
	Strength    float64 `json:"strength" validate:"min=0,max=1"`
}

// PlotThread is a narrative arc
type PlotThread struct {
	ID                string   `json:"id"`
	Name              string   `json:"name" validate:"required"`
	Description       string   `json:"description"`
	Status            string   `json:"status" validate:"omitempty,oneof=introduced developing climax resolved"`
	RelatedCharacters []string `json:"relatedCharacters"`
	RelatedEvents     []string `json:"relatedEvents"`
}

// TemporalMarker is a flashback/flashforward annotation on a chapter
type TemporalMarker struct {
	ID             string   `json:"id"`
	Type           string   `json:"type" validate:"omitempty,oneof=flashback flashforward"`
	Description    string   `json:"description"`
	FromTime       string   `json:"fromTime"`
	ToTime         string   `json:"toTime"`
	AffectedEvents []string `json:"affectedEvents"`
}

// StateChange is an append-only audit record of one mutable-attribute
// transition. Replaying these reconstructs historical values.
type StateChange struct {
	EntityID   string `json:"entityId" validate:"required"`
	EntityType string `json:"entityType" validate:"required"`
	Attribute  string `json:"attribute" validate:"required"`
	OldValue   string `json:"oldValue"`
	NewValue   string `json:"newValue"`
	Reason     string `json:"reason"`
	Chapter    int    `json:"chapter,omitempty"`
}

// ChapterAnalysis is the structured per-chapter analysis produced by the
// manuscript analyzer and consumed by the graph synchronizer
type ChapterAnalysis struct {
	ProjectID       string           `json:"projectId" validate:"required"`
	ChapterID       string           `json:"chapterId"`
	ChapterNumber   int              `json:"chapterNumber" validate:"required,min=1"`
	Version         int              `json:"version" validate:"min=0"`
	Summary         string           `json:"summary"`
	Mood            string           `json:"mood,omitempty"`
	Tension         string           `json:"tension,omitempty"`
	Characters      []Character      `json:"characters" validate:"dive"`
	Locations       []Location       `json:"locations" validate:"dive"`
	Objects         []Object         `json:"objects" validate:"dive"`
	Events          []Event          `json:"events" validate:"dive"`
	Relationships   []Relationship   `json:"relationships" validate:"dive"`
	PlotThreads     []PlotThread     `json:"plotThreads" validate:"dive"`
	TemporalMarkers []TemporalMarker `json:"temporalMarkers" validate:"dive"`
	StateChanges    []StateChange    `json:"stateChanges" validate:"dive"`
}

// SyncResult is what SyncChapter returns. A graph-write failure never
// surfaces as a panic or error, so the expensive analysis is not discarded.
type SyncResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ProjectID     string `json:"projectId,omitempty"`
	ChapterNumber int    `json:"chapterNumber,omitempty"`
}

// ChapterInfo is one entry of the chapter navigation listing
type ChapterInfo struct {
	ID      string `json:"id"`
	Number  int    `json:"number"`
	Summary string `json:"summary"`
	Version int    `json:"version"`
}

// NarrativeContext is the derived "what is true right now" snapshot consumed
// by continuity and creative tooling
type NarrativeContext struct {
	ProjectID        string   `json:"projectId"`
	ChapterNumber    int      `json:"chapterNumber"`
	ActiveCharacters []string `json:"activeCharacters"`
	CurrentLocation  string   `json:"currentLocation"`
	OpenPlotThreads  []string `json:"openPlotThreads"`
	RecentEvents     []string `json:"recentEvents"`
	Mood             string   `json:"mood"`
	Tension          string   `json:"tension"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeName folds an entity name to its canonical resolution key:
// lowercase, trimmed, inner whitespace collapsed
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return whitespaceRe.ReplaceAllString(name, " ")
}
