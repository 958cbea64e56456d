package ai

import (
	"encoding/json"
	"fmt"

	"github.com/v0xg/autoqa/internal/model"
)

const systemPrompt = `You are a QA engineer who writes end-to-end browser tests. Your task is to turn a map of a web application into executable test cases.

You will receive an application map with:
1. website: crawled pages, each with its interactive elements (type, locator, text), inferred user flows and interactions
2. api: discovered HTTP endpoints and the inferred authentication type

Output a JSON array of test cases. Each test case has:
- "name": short description of what the test verifies
- "steps": ordered array of steps

Each step has an "action" and the fields that action needs:
- "navigate": "url"
- "click": "locator"
- "fill": "locator", "value"
- "select": "locator", "value"
- "waitForNavigation": no fields
- "waitForTimeout": "timeout" in milliseconds
- "waitForLoadState": "state" (load, domcontentloaded or networkidle)
- "assert": "assertType" (title, url or errorMessage) and "expected" (a substring)
- "apiRequest": "method", "url", optional "data", "expectedStatus"
- "comment": "text"

Guidelines:
- Use only locators that appear in the application map, exactly as written
- Start every browser test with a navigate step to an absolute page url
- Follow a click that submits a form or follows a link with waitForNavigation
- End each test with at least one assert
- Cover critical user flows first, then forms, then API endpoints
- Use realistic test data (e.g. "qa.user@example.com")

Example output:
[
  {"name": "Login with valid credentials", "steps": [
    {"action": "navigate", "url": "https://app.example.com/login"},
    {"action": "fill", "locator": "#email", "value": "qa.user@example.com"},
    {"action": "fill", "locator": "[name=\"password\"]", "value": "Secret123!"},
    {"action": "click", "locator": "button:has-text(\"Sign in\")"},
    {"action": "waitForNavigation"},
    {"action": "assert", "assertType": "url", "expected": "/dashboard"}
  ]}
]

Respond ONLY with the JSON array, no explanation or markdown.`

// promptMap strips what the model cannot use (screenshots) from the map
func promptMap(app *model.ApplicationMap) *model.ApplicationMap {
	if app == nil || app.Website == nil {
		return app
	}
	site := *app.Website
	site.Pages = make([]model.CrawledPage, len(app.Website.Pages))
	for i, p := range app.Website.Pages {
		p.Screenshot = ""
		site.Pages[i] = p
	}
	out := *app
	out.Website = &site
	return &out
}

func buildUserPrompt(app *model.ApplicationMap, maxTests int) (string, error) {
	data, err := json.MarshalIndent(promptMap(app), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal application map: %w", err)
	}
	return fmt.Sprintf("Application map:\n%s\n\nGenerate at most %d test cases.", data, maxTests), nil
}
