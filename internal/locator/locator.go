// Package locator derives stable element locators and, when a locator stops
// resolving, heuristic substitutes for it.
package locator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/v0xg/autoqa/internal/browser"
)

const maxTextLocatorLen = 50

var (
	identRe  = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)
	idRe     = regexp.MustCompile(`^#(-?[A-Za-z_][A-Za-z0-9_-]*)$`)
	classRe  = regexp.MustCompile(`^\.(-?[A-Za-z_][A-Za-z0-9_-]*)$`)
	testIDRe = regexp.MustCompile(`data-testid="([^"]+)"`)
)

// GenerateLocator returns the most stable locator available for an element.
// Preference order: data-testid, id, name, aria-label, short visible text,
// first two classes, then structural position.
func GenerateLocator(el browser.ElementInfo) string {
	tag := strings.ToLower(el.Tag)
	if tag == "" {
		tag = "*"
	}

	if v := el.Attr("data-testid"); v != "" {
		return attr("data-testid", v)
	}
	if v := el.Attr("id"); v != "" {
		if identRe.MatchString(v) {
			return "#" + v
		}
		return attr("id", v)
	}
	if v := el.Attr("name"); v != "" {
		return attr("name", v)
	}
	if v := el.Attr("aria-label"); v != "" {
		return attr("aria-label", v)
	}

	text := strings.Join(strings.Fields(el.Text), " ")
	if n := utf8.RuneCountInString(text); n > 0 && n < maxTextLocatorLen {
		return HasText(tag, text)
	}

	if classes := validClasses(el.Attr("class"), 2); len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}

	if el.ParentTag != "" && el.Index > 0 {
		return fmt.Sprintf("%s > %s:nth-child(%d)", strings.ToLower(el.ParentTag), tag, el.Index)
	}
	return tag
}

// GenerateAlternatives rewrites a failed locator into plausible substitutes,
// in the order they should be tried. The result never contains the input
// and may be empty.
func GenerateAlternatives(failed string) []string {
	var alts []string
	seen := map[string]bool{failed: true}
	add := func(candidates ...string) {
		for _, c := range candidates {
			if !seen[c] {
				seen[c] = true
				alts = append(alts, c)
			}
		}
	}

	if m := idRe.FindStringSubmatch(failed); m != nil {
		add(attr("name", m[1]), "."+m[1], attr("data-testid", m[1]))
	}
	if m := classRe.FindStringSubmatch(failed); m != nil {
		add("#"+m[1], attr("data-testid", m[1]))
	}
	if m := testIDRe.FindStringSubmatch(failed); m != nil {
		if identRe.MatchString(m[1]) {
			add("#" + m[1])
		}
		add(attr("name", m[1]))
	}
	if strings.Contains(failed, hasTextOpen) {
		if q := Parse(failed); q.Text != "" {
			add("text="+q.Text, attr("aria-label", q.Text))
		}
	}

	return alts
}

func attr(name, value string) string {
	return fmt.Sprintf(`[%s="%s"]`, name, escapeQuotes(value))
}

func validClasses(class string, limit int) []string {
	var out []string
	for _, c := range strings.Fields(class) {
		if !identRe.MatchString(c) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
