// Package extract turns downloaded documents into plain text. Extraction is
// delegated to external tools or parsers; output is always treated as
// untrusted plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

// Noop never extracts anything. Issues stay searchable by title only.
type Noop struct{}

// Extract returns an empty string.
func (Noop) Extract(context.Context, string) (string, error) {
	return "", nil
}

// Chain tries each extractor in order and returns the first non-empty text.
type Chain []archive.TextExtractor

// Extract runs the chain. The returned error joins every extractor failure and
// is only non-nil when no extractor produced text.
func (c Chain) Extract(ctx context.Context, path string) (string, error) {
	var errs []error
	for i, ex := range c {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract canceled: %w", err)
		}
		text, err := ex.Extract(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("extractor %d: %w", i, err))
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", errors.Join(errs...)
}

// Sanitize normalizes extractor output: invalid UTF-8 and control characters
// are dropped, line endings become \n, trailing spaces are trimmed and runs
// of blank lines collapse to one.
func Sanitize(raw string) string {
	s := strings.ToValidUTF8(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
