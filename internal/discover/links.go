// Package discover finds issue documents linked from an archive index page.
package discover

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

// UntitledTitle is used when an anchor has neither text nor a title attribute.
const UntitledTitle = "Untitled"

// ParseLinks selects anchors whose resolved URL path ends in ext and returns
// them in document order. Relative hrefs resolve against baseURL. A document
// URL linked more than once keeps its first occurrence.
func ParseLinks(baseURL, html, ext string) ([]archive.Candidate, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse archive page: %w", err)
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	seen := make(map[string]struct{})
	var out []archive.Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := resolve(base, href)
		if !ok || !strings.HasSuffix(strings.ToLower(resolved.Path), ext) {
			return
		}
		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, archive.Candidate{
			Title:       anchorTitle(s),
			DocumentURL: link,
		})
	})
	return out, nil
}

func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

func anchorTitle(s *goquery.Selection) string {
	if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
		return text
	}
	if attr, ok := s.Attr("title"); ok {
		if title := strings.Join(strings.Fields(attr), " "); title != "" {
			return title
		}
	}
	return UntitledTitle
}
