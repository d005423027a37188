// Package infer derives stable issue identifiers and publication dates from
// scraped titles.
//
// Date rules, applied in order:
//   - the first 4-digit year between 1800 and 2099 anchors the date;
//   - a month name (full or three-letter) maps to the first of that month;
//   - otherwise a season maps to its northern-hemisphere start:
//     spring 03-21, summer 06-21, autumn/fall 09-23, winter 12-21;
//   - a bare year maps to January 1;
//   - no year at all maps to DefaultDate.
//
// Seasons are not disambiguated by hemisphere; "Winter 2001" from a southern
// publication still lands in December.
package infer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDate is used when a title carries no year signal.
var DefaultDate = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	yearPattern = regexp.MustCompile(`(?:^|[^0-9])((?:18|19|20)[0-9]{2})(?:[^0-9]|$)`)
	wordPattern = regexp.MustCompile(`[a-z]+`)
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
)

var seasonAnchors = map[string]monthDay{
	"spring": {time.March, 21},
	"summer": {time.June, 21},
	"autumn": {time.September, 23},
	"fall":   {time.September, 23},
	"winter": {time.December, 21},
}

var monthAnchors = map[string]time.Month{}

type monthDay struct {
	month time.Month
	day   int
}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthAnchors[name] = m
		monthAnchors[name[:3]] = m
	}
	monthAnchors["sept"] = time.September
}

// Infer returns the identifier and publication date for a title.
func Infer(title string) (string, time.Time) {
	date := InferDate(title)
	return BuildID(title, date.Year()), date
}

// InferDate maps a title to a deterministic publication date.
func InferDate(title string) time.Time {
	year, ok := findYear(title)
	if !ok {
		return DefaultDate
	}
	words := wordPattern.FindAllString(strings.ToLower(title), -1)
	for _, w := range words {
		if m, ok := monthAnchors[w]; ok {
			return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	for _, w := range words {
		if a, ok := seasonAnchors[w]; ok {
			return time.Date(year, a.month, a.day, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// BuildID slugifies the title and appends the year unless the slug already
// ends with it.
func BuildID(title string, year int) string {
	suffix := strconv.Itoa(year)
	slug := Slugify(title)
	if slug == "" {
		return "untitled-" + suffix
	}
	if slug == suffix || strings.HasSuffix(slug, "-"+suffix) {
		return slug
	}
	return slug + "-" + suffix
}

// Slugify lower-cases s, collapses non-alphanumeric runs to a single hyphen
// and trims hyphens from both ends.
func Slugify(s string) string {
	slug := nonAlnumRun.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

func findYear(title string) (int, bool) {
	m := yearPattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}
