package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"grant-scout/internal/ai"
	"grant-scout/internal/grantsgov"
	"grant-scout/internal/matching"
	"grant-scout/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	grantPlaceholder   = "{{GRANT_JSON}}"
	profilePlaceholder = "{{PROFILE_JSON}}"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns a grant and a researcher profile into an application briefing
// by prompting a Gemini model and parsing its JSON reply.
type Summarizer struct {
	generator    contentGenerator
	logger       *zap.Logger
	maxLogLength int
}

func NewSummarizer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Summarizer {
	return &Summarizer{
		generator:    generator,
		logger:       logger,
		maxLogLength: maxLogLength,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, grant *grantsgov.Grant, profile *matching.Profile) (*ai.Summary, error) {
	if grant == nil {
		return nil, errors.New("grant must not be nil")
	}

	prompt, err := s.buildPrompt(grant, profile)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sending grant briefing prompt",
		zap.String("grant_id", grant.ID),
		zap.String("prompt", utils.TruncateForLog(prompt, s.maxLogLength)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize grant %q: %w", grant.ID, err)
	}

	s.logger.Debug("received grant briefing response",
		zap.String("grant_id", grant.ID),
		zap.String("response", utils.TruncateForLog(raw, s.maxLogLength)),
	)

	summary, err := parseSummary(raw)
	if err != nil {
		return nil, fmt.Errorf("parse briefing for grant %q: %w", grant.ID, err)
	}

	return summary, nil
}

func (s *Summarizer) buildPrompt(grant *grantsgov.Grant, profile *matching.Profile) (string, error) {
	grantJSON, err := json.MarshalIndent(grant, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal grant: %w", err)
	}

	profileJSON := []byte("{}")
	if profile != nil {
		profileJSON, err = json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal profile: %w", err)
		}
	}

	prompt := strings.ReplaceAll(promptTemplate, grantPlaceholder, string(grantJSON))
	prompt = strings.ReplaceAll(prompt, profilePlaceholder, string(profileJSON))

	return prompt, nil
}

func parseSummary(raw string) (*ai.Summary, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("unmarshal briefing payload: %w", err)
	}

	summary := &ai.Summary{
		Headline: coerceString(data["headline"]),
		Tips:     coerceStrings(data["tips"]),
		Raw:      raw,
	}

	if summary.Headline == "" {
		return nil, errors.New("briefing payload has no headline")
	}

	return summary, nil
}

// extractJSON strips optional markdown code fences and returns the first JSON
// object found in the model output.
func extractJSON(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("no JSON object found in model output")
	}

	return cleaned[start : end+1], nil
}

func coerceString(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func coerceStrings(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
