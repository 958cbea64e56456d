package static

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/autoqa/internal/browser"
)

func elementInfo(s *goquery.Selection) browser.ElementInfo {
	attrs := make(map[string]string)
	if node := s.Get(0); node != nil {
		for _, a := range node.Attr {
			attrs[a.Key] = a.Val
		}
	}

	tag := goquery.NodeName(s)
	text := elementText(s)

	var parentTag string
	if parent := s.Parent(); parent.Length() > 0 {
		parentTag = goquery.NodeName(parent)
	}

	return browser.ElementInfo{
		Tag:        tag,
		Attributes: attrs,
		Text:       text,
		Visible:    visible(s),
		ParentTag:  parentTag,
		Index:      s.PrevAll().Length() + 1,
	}
}

// visible approximates rendering: an element is hidden when it or an
// ancestor is non-rendered markup, carries the hidden attribute, or is
// styled inline with display:none / visibility:hidden.
func visible(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
		return false
	}
	for n := s; n.Length() > 0; n = n.Parent() {
		switch goquery.NodeName(n) {
		case "head", "script", "style", "template", "noscript", "title":
			return false
		}
		if _, ok := n.Attr("hidden"); ok {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// elementText is what a text locator matches: an input's value, otherwise
// the collapsed text content
func elementText(s *goquery.Selection) string {
	if goquery.NodeName(s) == "input" {
		return collapse(s.AttrOr("value", ""))
	}
	return collapse(s.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return collapse(opt.Text())
}
