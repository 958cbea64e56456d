package crawler

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/v0xg/autoqa/internal/model"
)

type flowRule struct {
	name     string
	priority model.FlowPriority
	keywords []string
	steps    []string
}

var flowRules = []flowRule{
	{
		name:     "User Login",
		priority: model.PriorityCritical,
		keywords: []string{"login"},
		steps: []string{
			"Navigate to login page",
			"Enter credentials",
			"Submit login form",
			"Verify successful login",
		},
	},
	{
		name:     "User Registration",
		priority: model.PriorityHigh,
		keywords: []string{"register", "signup"},
		steps: []string{
			"Navigate to registration page",
			"Fill registration form",
			"Submit registration",
			"Verify account creation",
		},
	},
	{
		name:     "Checkout Process",
		priority: model.PriorityCritical,
		keywords: []string{"checkout", "cart"},
		steps: []string{
			"Add item to cart",
			"Open cart",
			"Proceed to checkout",
			"Complete purchase",
		},
	},
}

// flowMatcher finds every flow keyword in one pass over the crawled text
type flowMatcher struct {
	matcher *ahocorasick.Matcher
	rule    []int // dictionary index -> flowRules index
}

func newFlowMatcher() *flowMatcher {
	var dict []string
	var rule []int
	for i, r := range flowRules {
		for _, kw := range r.keywords {
			dict = append(dict, kw)
			rule = append(rule, i)
		}
	}
	return &flowMatcher{
		matcher: ahocorasick.NewStringMatcher(dict),
		rule:    rule,
	}
}

var defaultFlows = newFlowMatcher()

// inferFlows derives user flows from keywords in page URLs, titles and
// element text. Flows come back in rule order, each at most once.
func inferFlows(pages []model.CrawledPage) []model.UserFlow {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.URL)
		sb.WriteByte('\n')
		sb.WriteString(p.Title)
		sb.WriteByte('\n')
		for _, el := range p.Elements {
			sb.WriteString(el.Text)
			sb.WriteByte('\n')
		}
	}
	corpus := []byte(strings.ToLower(sb.String()))

	found := make([]bool, len(flowRules))
	for _, idx := range defaultFlows.matcher.MatchThreadSafe(corpus) {
		found[defaultFlows.rule[idx]] = true
	}

	flows := []model.UserFlow{}
	for i, r := range flowRules {
		if !found[i] {
			continue
		}
		flows = append(flows, model.UserFlow{
			Name:     r.name,
			Steps:    append([]string(nil), r.steps...),
			Priority: r.priority,
		})
	}
	return flows
}

// deriveInteractions maps buttons and links to clicks and inputs to fills
func deriveInteractions(pages []model.CrawledPage) []model.Interaction {
	interactions := []model.Interaction{}
	for _, p := range pages {
		for _, el := range p.Elements {
			var typ model.InteractionType
			switch el.Type {
			case model.ElementButton, model.ElementLink:
				typ = model.InteractionClick
			case model.ElementInput:
				typ = model.InteractionFill
			default:
				continue
			}
			interactions = append(interactions, model.Interaction{
				Type:    typ,
				Locator: el.Locator,
				PageURL: p.URL,
				Text:    el.Text,
			})
		}
	}
	return interactions
}
