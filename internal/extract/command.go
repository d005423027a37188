package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// InputPlaceholder is replaced with the document path in Command.Args.
const InputPlaceholder = "{in}"

// Command runs an external extraction tool and reads text from its stdout.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// NewPDFToText returns a Command running poppler's pdftotext.
func NewPDFToText(timeout time.Duration) *Command {
	return &Command{
		Name:    "pdftotext",
		Args:    []string{"-layout", "-enc", "UTF-8", InputPlaceholder, "-"},
		Timeout: timeout,
	}
}

// Extract runs the command against path.
func (c *Command) Extract(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", errors.New("extract command is not configured")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(c.Args)+1)
	substituted := false
	for _, a := range c.Args {
		if strings.Contains(a, InputPlaceholder) {
			substituted = true
			a = strings.ReplaceAll(a, InputPlaceholder, path)
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, args...) //nolint:gosec // command comes from operator config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit stdout must not hold Run open past cancellation.
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", c.Name, ctx.Err())
		}
		return "", fmt.Errorf("%s failed: %w (stderr: %s)", c.Name, err, strings.TrimSpace(stderr.String()))
	}
	return Sanitize(stdout.String()), nil
}
