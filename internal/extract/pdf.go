package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDF reads the embedded text layer of a PDF without external tools. Scanned
// issues without a text layer yield an empty string.
type PDF struct {
	// parse replaces the text layer reader; nil uses ledongthuc/pdf.
	parse func(path string) (string, error)
}

type parseResult struct {
	text string
	err  error
}

// Extract parses the document at path. The parser cannot be interrupted, so
// it runs on its own goroutine and Extract returns as soon as ctx is done;
// the abandoned parse finishes in the background and its result is dropped.
func (p PDF) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract canceled: %w", err)
	}
	parse := p.parse
	if parse == nil {
		parse = readTextLayer
	}

	done := make(chan parseResult, 1)
	go func() {
		text, err := parse(path)
		done <- parseResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("extract pdf %s: %w", path, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return Sanitize(res.text), nil
	}
}

func readTextLayer(path string) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf %s: %v", path, rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
