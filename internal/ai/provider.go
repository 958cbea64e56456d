// Package ai generates test cases from an application map with an LLM.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/v0xg/autoqa/internal/model"
)

// DefaultMaxTests caps generation when the caller gives no limit
const DefaultMaxTests = 10

// Provider defines the interface for AI test generation
type Provider interface {
	GenerateTests(ctx context.Context, app *model.ApplicationMap, maxTests int) ([]model.TestCase, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// parseTestsJSON extracts and parses a JSON array from a response that may contain surrounding text
func parseTestsJSON(response string) ([]model.TestCase, error) {
	// First try direct parsing
	var tests []model.TestCase
	if err := json.Unmarshal([]byte(response), &tests); err == nil {
		return tests, nil
	}

	start := strings.Index(response, "[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	// Find matching closing bracket, ignoring brackets inside strings
	depth := 0
	end := -1
	inString, escaped := false, false
	for i := start; i < len(response) && end == -1; i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("no matching closing bracket found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &tests); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return tests, nil
}

// finalizeTests drops empty tests, caps the count and assigns ids
func finalizeTests(tests []model.TestCase, maxTests int) []model.TestCase {
	out := make([]model.TestCase, 0, len(tests))
	for _, tc := range tests {
		if len(tc.Steps) == 0 {
			continue
		}
		if maxTests > 0 && len(out) == maxTests {
			break
		}
		if tc.ID == "" {
			tc.ID = uuid.NewString()
		}
		if tc.Name == "" {
			tc.Name = "Generated test " + tc.ID[:min(8, len(tc.ID))]
		}
		out = append(out, tc)
	}
	return out
}

func generate(ctx context.Context, vendor string, app *model.ApplicationMap, maxTests int, complete func(ctx context.Context, userPrompt string) (string, error)) ([]model.TestCase, error) {
	if maxTests <= 0 {
		maxTests = DefaultMaxTests
	}
	userPrompt, err := buildUserPrompt(app, maxTests)
	if err != nil {
		return nil, err
	}

	responseText, err := complete(ctx, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", vendor, err)
	}
	if responseText == "" {
		return nil, fmt.Errorf("empty response from %s", vendor)
	}

	tests, err := parseTestsJSON(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response as JSON: %w\nResponse: %s", vendor, err, responseText)
	}
	return finalizeTests(tests, maxTests), nil
}
