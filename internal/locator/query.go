package locator

import "strings"

const (
	textPrefix  = "text="
	hasTextOpen = `:has-text("`
	hasTextEnd  = `")`
)

// Query is a locator split into the parts a driver resolves: a CSS selector
// and an optional text the element must contain.
type Query struct {
	CSS  string
	Text string
}

// HasText builds a text-matching locator scoped to tag
func HasText(tag, text string) string {
	return tag + hasTextOpen + escapeQuotes(text) + hasTextEnd
}

// Parse splits a locator into CSS and text parts.
//
//	text=Sign in              -> {"*", "Sign in"}
//	button:has-text("Save")   -> {"button", "Save"}
//	#submit                   -> {"#submit", ""}
func Parse(loc string) Query {
	loc = strings.TrimSpace(loc)

	if strings.HasPrefix(loc, textPrefix) {
		text := strings.TrimPrefix(loc, textPrefix)
		if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
			text = unescapeQuotes(text[1 : len(text)-1])
		}
		return Query{CSS: "*", Text: text}
	}

	if i := strings.Index(loc, hasTextOpen); i >= 0 && strings.HasSuffix(loc, hasTextEnd) {
		css := loc[:i]
		if css == "" {
			css = "*"
		}
		text := loc[i+len(hasTextOpen) : len(loc)-len(hasTextEnd)]
		return Query{CSS: css, Text: unescapeQuotes(text)}
	}

	return Query{CSS: loc}
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func unescapeQuotes(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}
