package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"storygraph/backend/internal/story"
)

func TestNameResolver_Key(t *testing.T) {
	res := NameResolver{}

	assert.Equal(t, "elena", res.Key(story.LabelCharacter, "Elena", ""))
	assert.Equal(t, "elena", res.Key(story.LabelCharacter, "ELENA", "char-42"))
	assert.Equal(t, "the gilded stag", res.Key(story.LabelLocation, "  The   Gilded Stag ", ""))
}

func TestStableIDResolver_Key(t *testing.T) {
	res := StableIDResolver{}

	// Analyzer-supplied ids win when present
	assert.Equal(t, "char-42", res.Key(story.LabelCharacter, "Elena", "char-42"))
	// Otherwise the strategy degrades to name matching
	assert.Equal(t, "elena", res.Key(story.LabelCharacter, "ELENA", ""))
}

func TestSanitizeRelType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"friends_with", "FRIENDS_WITH"},
		{"reports to", "REPORTS_TO"},
		{"rival-of", "RIVAL_OF"},
		{"OWNS", "OWNS"},
		{"loves!; DROP ALL", "LOVES_DROP_ALL"},
		{"", "RELATES_TO"},
		{"123", "RELATES_TO"},
		{"---", "RELATES_TO"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeRelType(tt.input), "input %q", tt.input)
	}
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, story.LabelLocation, entityLabel("Location"))
	assert.Equal(t, story.LabelObject, entityLabel("Object"))
	assert.Equal(t, story.LabelPlotThread, entityLabel("PlotThread"))
	// Unknown and empty types default to Character
	assert.Equal(t, story.LabelCharacter, entityLabel(""))
	assert.Equal(t, story.LabelCharacter, entityLabel("Widget"))
}
