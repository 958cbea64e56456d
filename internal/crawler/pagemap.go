package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/recording"
)

const (
	buttonQuery = `button, input[type="submit"], input[type="button"]`
	linkQuery   = `a[href]`
	formQuery   = `form`
	fieldQuery  = `form input, form select, form textarea`

	maxLinksPerPage = 50
)

// pageElements collects a page's elements, unique by locator
type pageElements struct {
	seen     map[string]bool
	elements []model.InteractiveElement
}

func (p *pageElements) add(typ model.ElementType, info browser.ElementInfo) {
	loc := locator.GenerateLocator(info)
	if p.seen[loc] {
		return
	}
	p.seen[loc] = true

	text := info.Text
	if text == "" {
		text = info.Attr("placeholder")
	}
	p.elements = append(p.elements, model.InteractiveElement{
		Type:    typ,
		Locator: loc,
		Text:    text,
		Visible: info.Visible,
	})
}

// extractPage reads the loaded page into a CrawledPage and returns the
// same-origin links to follow, in document order.
func (c *WebsiteCrawler) extractPage(ctx context.Context, page browser.Page, pageURL string) (*model.CrawledPage, []string, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read title: %w", err)
	}

	// links resolve against where we actually landed
	base, err := url.Parse(pageURL)
	if current, uerr := page.URL(ctx); uerr == nil {
		if u, perr := url.Parse(current); perr == nil && u.Host != "" {
			base, err = u, nil
		}
	}
	if err != nil {
		return nil, nil, err
	}

	found := &pageElements{seen: make(map[string]bool)}

	buttons, err := visibleElements(ctx, page, buttonQuery)
	if err != nil {
		return nil, nil, err
	}
	for _, b := range buttons {
		found.add(model.ElementButton, b)
	}

	anchors, err := visibleElements(ctx, page, linkQuery)
	if err != nil {
		return nil, nil, err
	}
	if len(anchors) > maxLinksPerPage {
		anchors = anchors[:maxLinksPerPage]
	}
	var links []string
	seenLinks := make(map[string]bool)
	for _, a := range anchors {
		target, ok := resolveLink(base, a.Attr("href"))
		if !ok {
			continue
		}
		found.add(model.ElementLink, a)
		if seenLinks[target] {
			continue
		}
		seenLinks[target] = true
		links = append(links, target)
	}

	forms, err := visibleElements(ctx, page, formQuery)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range forms {
		found.add(model.ElementForm, f)
	}

	fields, err := visibleElements(ctx, page, fieldQuery)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range fields {
		typ := model.ElementInput
		if f.Tag == "select" {
			typ = model.ElementSelect
		}
		found.add(typ, f)
	}

	crawled := &model.CrawledPage{
		URL:      pageURL,
		Title:    title,
		Elements: found.elements,
	}
	if crawled.Elements == nil {
		crawled.Elements = []model.InteractiveElement{}
	}
	if c.opts.Screenshots {
		crawled.Screenshot = c.thumbnail(ctx, page, pageURL)
	}
	return crawled, links, nil
}

func visibleElements(ctx context.Context, page browser.Page, css string) ([]browser.ElementInfo, error) {
	all, err := page.Elements(ctx, css)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", css, err)
	}
	visible := all[:0]
	for _, el := range all {
		if el.Visible {
			visible = append(visible, el)
		}
	}
	return visible, nil
}

// resolveLink makes href absolute, dropping in-page anchors and script links
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

// thumbnail is best effort: any failure just leaves the page without one
func (c *WebsiteCrawler) thumbnail(ctx context.Context, page browser.Page, pageURL string) string {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		c.log.Debug("Screenshot failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	thumb, err := recording.ThumbnailBase64(shot, recording.DefaultThumbnailWidth)
	if err != nil {
		c.log.Debug("Thumbnail failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	return thumb
}
