// Package analyzer is the external manuscript-analysis boundary: it turns
// raw chapter text into the structured analysis the graph synchronizer
// consumes. The extraction itself is delegated to an LLM behind an
// OpenAI-compatible endpoint; this package only owns the interface.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"storygraph/backend/internal/story"
	"storygraph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Analyzer produces a structured per-chapter analysis from manuscript text
type Analyzer interface {
	AnalyzeChapter(ctx context.Context, req Request) (*story.ChapterAnalysis, error)
}

// Request carries one chapter's text plus the continuity context from
// previously ingested chapters
type Request struct {
	ProjectID     string
	ChapterNumber int
	Text          string
	Previous      *story.NarrativeContext
}

// LLMAnalyzer calls an OpenAI-compatible endpoint (LiteLLM in front of the
// actual model) and parses the JSON analysis it returns
type LLMAnalyzer struct {
	client *openai.Client
	model  string
	mu     sync.RWMutex // Protects model field for concurrent access
	logger *zap.Logger
}

// NewLLMAnalyzer creates an analyzer against the given endpoint
func NewLLMAnalyzer(baseURL, apiKey, modelID string) *LLMAnalyzer {
	// LiteLLM accepts a dummy key when none is configured
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &LLMAnalyzer{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger.Get(),
	}
}

// SetModel updates the model used by this analyzer
func (a *LLMAnalyzer) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("Analyzer model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAnalyzer) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

const systemPrompt = `You are a narrative analysis engine. Given one chapter
of a manuscript, extract its story entities as a single JSON object with the
fields: projectId, chapterNumber, summary, mood, tension, characters,
locations, objects, events, relationships, plotThreads, temporalMarkers,
stateChanges. Use the exact field names and enumerations of the schema you
were shown. Reuse existing entity names verbatim when the chapter refers to
entities from the provided story context. Respond with JSON only.`

// AnalyzeChapter runs one extraction pass and validates the result before
// handing it to the caller
func (a *LLMAnalyzer) AnalyzeChapter(ctx context.Context, req Request) (*story.ChapterAnalysis, error) {
	userPrompt := buildPrompt(req)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.GetModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	// The model does not get to decide which project or chapter it wrote to
	analysis.ProjectID = req.ProjectID
	analysis.ChapterNumber = req.ChapterNumber

	if err := story.ValidateAnalysis(analysis); err != nil {
		return nil, fmt.Errorf("analysis failed validation: %w", err)
	}

	a.logger.Info("Chapter analyzed",
		zap.String("project", req.ProjectID),
		zap.Int("chapter", req.ChapterNumber),
		zap.Int("characters", len(analysis.Characters)),
		zap.Int("events", len(analysis.Events)),
	)

	return analysis, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder

	if req.Previous != nil && req.Previous.ChapterNumber > 0 {
		ctxJSON, err := json.Marshal(req.Previous)
		if err == nil {
			sb.WriteString("Story context from previous chapters:\n")
			sb.Write(ctxJSON)
			sb.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&sb, "Analyze chapter %d:\n\n%s", req.ChapterNumber, req.Text)
	return sb.String()
}

// parseAnalysis tolerates models that wrap the JSON in a code fence
func parseAnalysis(content string) (*story.ChapterAnalysis, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var analysis story.ChapterAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	return &analysis, nil
}
