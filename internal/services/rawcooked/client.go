package rawcooked

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"dpxflow/internal/classify"
	"dpxflow/internal/services/toolexec"
)

// ProbeOutcome is the result of a successful reversibility probe.
type ProbeOutcome string

const (
	ProbePassed    ProbeOutcome = "passed"
	ProbeOversized ProbeOutcome = "oversized"
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

// WithSamples sets the -s sample count passed to the encode.
func WithSamples(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.samples = n
		}
	}
}

// WithFramemd5 toggles manifest generation.
func WithFramemd5(enabled bool) Option {
	return func(c *Client) {
		c.framemd5 = enabled
	}
}

// WithTimeouts bounds the probe and the encode. Zero leaves a bound unset.
func WithTimeouts(probe, cook time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = probe
		c.cookTimeout = cook
	}
}

// Client wraps RAWcooked CLI interactions.
type Client struct {
	binary       string
	license      string
	samples      int
	framemd5     bool
	probeTimeout time.Duration
	cookTimeout  time.Duration
	probeRules   classify.RuleSet
	exec         toolexec.Executor
}

// New constructs a RAWcooked client.
func New(binary, license string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rawcooked binary required")
	}
	license = strings.TrimSpace(license)
	if license == "" {
		return nil, errors.New("rawcooked license required")
	}
	client := &Client{
		binary:     binary,
		license:    license,
		samples:    5281680,
		framemd5:   true,
		probeRules: classify.ProbeRules(),
		exec:       toolexec.Command{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Framemd5 reports whether encodes write a manifest.
func (c *Client) Framemd5() bool {
	return c.framemd5
}

// Probe runs a check-only pass over path. The oversized diagnostic wins over
// the exit status; otherwise a failed or timed-out invocation is an error.
func (c *Client) Probe(ctx context.Context, path string) (ProbeOutcome, []byte, error) {
	probeCtx, cancel := withTimeout(ctx, c.probeTimeout)
	defer cancel()

	args := []string{"--license", c.license, "--check", "--no-encode", path}
	var transcript toolexec.Transcript
	runErr := c.exec.Run(probeCtx, c.binary, args, transcript.Line)
	output := transcript.Bytes()

	if c.probeRules.Classify(output).Disposition == classify.DispositionOversized {
		return ProbeOversized, output, nil
	}
	if runErr != nil {
		return "", output, toolexec.Classify(probeCtx, "reversibility probe", "rawcooked --check", runErr)
	}
	return ProbePassed, output, nil
}

// CookRequest describes one encode.
type CookRequest struct {
	Source string
	Output string
	V2     bool
}

// CookArgs builds the argument list for an encode.
func (c *Client) CookArgs(req CookRequest) []string {
	args := []string{"--license", c.license, "-y", "--all", "--no-accept-gaps"}
	if req.V2 {
		args = append(args, "--output-version", "2")
	}
	args = append(args, "-s", strconv.Itoa(c.samples))
	if c.framemd5 {
		args = append(args, "--framemd5")
	}
	return append(args, req.Source, "-o", req.Output)
}

// Cook encodes req.Source into req.Output and returns the combined tool
// output, which callers persist whether or not the encode succeeded.
func (c *Client) Cook(ctx context.Context, req CookRequest) ([]byte, error) {
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Output) == "" {
		return nil, errors.New("cook source and output required")
	}
	cookCtx, cancel := withTimeout(ctx, c.cookTimeout)
	defer cancel()

	var transcript toolexec.Transcript
	runErr := c.exec.Run(cookCtx, c.binary, c.CookArgs(req), transcript.Line)
	return transcript.Bytes(), toolexec.Classify(cookCtx, "encode", "rawcooked", runErr)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
