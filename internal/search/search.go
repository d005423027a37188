// Package search holds the matching rules shared by every index backend:
// query normalization, result ordering and highlighted snippets.
package search

import (
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

// Highlight markers wrapped around matched terms in snippets.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// DefaultRadius is the number of runes kept on each side of the first match.
const DefaultRadius = 80

// NormalizeQuery lower-cases q and collapses whitespace. An empty result means
// the query must return no issues.
func NormalizeQuery(q string) string {
	return NormalizeText(q)
}

// NormalizeText lower-cases s and collapses whitespace runs to single spaces,
// the form stored in index entries.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Matches reports whether the normalized phrase occurs in title or text.
func Matches(phrase, title, text string) (titleMatch, textMatch bool) {
	if phrase == "" {
		return false, false
	}
	return strings.Contains(NormalizeText(title), phrase), strings.Contains(NormalizeText(text), phrase)
}

// Sort orders hits: title matches first, then newest publication date, then
// title, then id.
func Sort(hits []archive.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.TitleMatch != b.TitleMatch {
			return a.TitleMatch
		}
		if !a.Issue.PublicationDate.Equal(b.Issue.PublicationDate) {
			return a.Issue.PublicationDate.After(b.Issue.PublicationDate)
		}
		if a.Issue.Title != b.Issue.Title {
			return a.Issue.Title < b.Issue.Title
		}
		return a.Issue.ID < b.Issue.ID
	})
}

// SortIssues orders issues newest first, ties broken by title then id.
func SortIssues(issues []archive.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if !a.PublicationDate.Equal(b.PublicationDate) {
			return a.PublicationDate.After(b.PublicationDate)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

// Snippet returns an HTML-escaped window of text around the first
// case-insensitive occurrence of query, with every occurrence inside the
// window wrapped in <mark>. Whitespace is collapsed first so phrases match
// across line breaks. When text has no match the title is used instead; when
// neither matches the result is empty.
func Snippet(title, text, query string, radius int) string {
	phrase := NormalizeQuery(query)
	if phrase == "" {
		return ""
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	for _, source := range []string{text, title} {
		flat := strings.Join(strings.Fields(source), " ")
		if s, ok := window(flat, phrase, radius); ok {
			return s
		}
	}
	return ""
}

func window(flat, phrase string, radius int) (string, bool) {
	runes := []rune(flat)
	lower := []rune(strings.ToLower(flat))
	target := []rune(phrase)
	// ToLower can change rune counts for a few scripts; fall back to an exact
	// rune-by-rune comparison on mismatch.
	if len(lower) != len(runes) {
		lower = runes
	}
	first := indexRunes(lower, target, 0)
	if first < 0 {
		return "", false
	}

	start := max(first-radius, 0)
	end := min(first+len(target)+radius, len(runes))

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	pos := start
	for pos < end {
		next := indexRunes(lower[:end], target, pos)
		if next < 0 {
			b.WriteString(html.EscapeString(string(runes[pos:end])))
			break
		}
		b.WriteString(html.EscapeString(string(runes[pos:next])))
		b.WriteString(MarkOpen)
		b.WriteString(html.EscapeString(string(runes[next : next+len(target)])))
		b.WriteString(MarkClose)
		pos = next + len(target)
	}
	if end < len(runes) {
		b.WriteString("…")
	}
	return b.String(), true
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
