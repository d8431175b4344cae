// Package mediaconch wraps the MediaConch CLI policy check used on a
// representative DPX frame before cooking and on every cooked container.
package mediaconch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dpxflow/internal/services"
	"dpxflow/internal/services/toolexec"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec toolexec.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeout bounds each check.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Verdict is a conformance decision plus the raw report.
type Verdict struct {
	Pass   bool
	Report string
}

// Client wraps MediaConch CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    toolexec.Executor
}

// New constructs a MediaConch client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("mediaconch binary required")
	}
	client := &Client{binary: binary, exec: toolexec.Command{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Check validates file against policy. A report containing "fail!" is not
// conforming; otherwise a line starting with "pass!" is. Anything else is a
// tool error.
func (c *Client) Check(ctx context.Context, policy, file string) (Verdict, error) {
	if strings.TrimSpace(policy) == "" {
		return Verdict{}, services.Wrap(services.ErrConfiguration, "policy check", "mediaconch", "policy path required", nil)
	}
	checkCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var transcript toolexec.Transcript
	runErr := c.exec.Run(checkCtx, c.binary, []string{"--force", "-p", policy, file}, transcript.Line)
	report := strings.TrimSpace(string(transcript.Bytes()))

	switch {
	case strings.Contains(report, "fail!"):
		return Verdict{Pass: false, Report: report}, nil
	case hasPassLine(report):
		return Verdict{Pass: true, Report: report}, nil
	case runErr != nil:
		return Verdict{Report: report}, toolexec.Classify(checkCtx, "policy check", "mediaconch", runErr)
	default:
		return Verdict{Report: report}, services.Wrap(services.ErrExternalTool, "policy check", "mediaconch", fmt.Sprintf("unrecognised report %q", firstLine(report)), nil)
	}
}

func hasPassLine(report string) bool {
	for line := range strings.Lines(report) {
		if strings.HasPrefix(strings.TrimSpace(line), "pass!") {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
