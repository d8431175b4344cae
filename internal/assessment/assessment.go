// Package assessment runs the pre-cook gates over newly delivered sequences:
// frame gap validation, the reversibility probe, and the DPX policy check.
// Each gate routes every sequence it sees to exactly one next stage or holds
// it in place with an incident.
package assessment

import (
	"context"
	"fmt"
	"log/slog"

	"dpxflow/internal/fileutil"
	"dpxflow/internal/logging"
	"dpxflow/internal/router"
	"dpxflow/internal/sequence"
	"dpxflow/internal/services"
	"dpxflow/internal/services/mediaconch"
	"dpxflow/internal/services/rawcooked"
	"dpxflow/internal/stage"
)

// Prober runs the reversibility probe.
type Prober interface {
	Probe(ctx context.Context, path string) (rawcooked.ProbeOutcome, []byte, error)
}

// PolicyChecker validates a file against a MediaConch policy.
type PolicyChecker interface {
	Check(ctx context.Context, policy, file string) (mediaconch.Verdict, error)
}

// Options toggles the gates.
type Options struct {
	CheckGaps   bool
	CheckPolicy bool
	DPXPolicy   string
}

// Transition is one routing decision.
type Transition struct {
	Sequence string      `json:"sequence"`
	From     stage.Stage `json:"from"`
	To       stage.Stage `json:"to"`
	Path     string      `json:"path"`
	Reason   string      `json:"reason"`
}

// Report summarizes one assessment run.
type Report struct {
	NoPreprocessing bool                    `json:"no_preprocessing,omitempty"`
	Discovered      int                     `json:"discovered"`
	Frameless       []string                `json:"frameless,omitempty"`
	Gaps            []sequence.SequenceGaps `json:"gaps,omitempty"`
	Transitions     []Transition            `json:"transitions,omitempty"`
	Incidents       []services.Incident     `json:"incidents,omitempty"`
}

// Assessor drives the pre-cook gates.
type Assessor struct {
	fsys    fileutil.FS
	router  *router.Router
	prober  Prober
	checker PolicyChecker
	opts    Options
	logger  *slog.Logger
}

// New constructs an Assessor.
func New(fsys fileutil.FS, r *router.Router, prober Prober, checker PolicyChecker, opts Options, logger *slog.Logger) *Assessor {
	return &Assessor{
		fsys:    fsys,
		router:  r,
		prober:  prober,
		checker: checker,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "assessment"),
	}
}

// Run executes the enabled gates. With both checks disabled it does nothing
// and says so. An error is returned only when a stage directory cannot be
// listed; per-sequence problems become incidents.
func (a *Assessor) Run(ctx context.Context) (Report, error) {
	var report Report
	if !a.opts.CheckGaps && !a.opts.CheckPolicy {
		report.NoPreprocessing = true
		a.logger.Info("no preprocessing configured; assessment skipped", logging.EventType("assessment_skipped"))
		return report, nil
	}

	intake, err := a.discover(stage.AssessmentIntake, &report)
	if err != nil {
		return report, err
	}
	// Sequences left in the pending stage by an earlier run are picked up
	// too. They are listed before the gap gate fills that stage.
	leftover, err := a.discover(stage.PolicyCheckPending, &report)
	if err != nil {
		return report, err
	}
	report.Discovered = len(intake) + len(leftover)

	pending := sequence.NewSet(leftover...).Union(a.gapGate(ctx, intake, &report))

	if a.opts.CheckPolicy {
		pending = a.probeGate(ctx, pending, &report)
		pending = a.policyGate(ctx, pending, &report)
	}
	a.promote(ctx, pending, &report)

	a.logger.Info("assessment complete", logging.Args(
		logging.Int("discovered", report.Discovered),
		logging.Int("transitions", len(report.Transitions)),
		logging.Int("incidents", len(report.Incidents)),
		logging.EventType("assessment_complete"),
	)...)
	return report, nil
}

func (a *Assessor) discover(s stage.Stage, report *Report) ([]sequence.Sequence, error) {
	dir := a.router.Layout().Dir(s)
	seqs, frameless, err := sequence.Discover(a.fsys, dir, s)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", s, err)
	}
	for _, name := range frameless {
		logging.WarnWithContext(a.logger, "folder has no DPX frames; ignored", "sequence_frameless",
			logging.Sequence(name),
			logging.Stage(s.String()),
			logging.String(logging.FieldErrorHint, "check the delivery contains .dpx files"),
			logging.String(logging.FieldImpact, "folder stays where it is"),
		)
	}
	report.Frameless = append(report.Frameless, frameless...)
	return seqs, nil
}

// gapGate routes intake sequences to gap-check-failed or policy-check-pending
// and returns the set now waiting in policy-check-pending. With gap checking
// disabled every sequence passes through.
func (a *Assessor) gapGate(ctx context.Context, intake []sequence.Sequence, report *Report) sequence.Set {
	var passed []sequence.Sequence
	for _, seq := range intake {
		if ctx.Err() != nil {
			break
		}
		to, reason := stage.PolicyCheckPending, "gap check disabled"
		if a.opts.CheckGaps {
			gaps, err := sequence.CheckGaps(a.fsys, seq)
			if err != nil {
				report.Incidents = append(report.Incidents, a.router.Hold(ctx, seq, err))
				continue
			}
			reason = "no gaps"
			if gaps.HasGap() {
				to, reason = stage.GapCheckFailed, gapReason(gaps)
				report.Gaps = append(report.Gaps, gaps)
			}
		}
		moved, ok := a.route(ctx, seq, to, reason, report)
		if ok && to == stage.PolicyCheckPending {
			passed = append(passed, moved)
		}
	}
	return sequence.NewSet(passed...)
}

// probeGate sends sequences whose reversibility data would be oversized to
// ready-to-cook-v2 and returns the rest.
func (a *Assessor) probeGate(ctx context.Context, pending sequence.Set, report *Report) sequence.Set {
	var remaining []sequence.Sequence
	for _, seq := range pending.Sequences() {
		if ctx.Err() != nil {
			break
		}
		outcome, _, err := a.prober.Probe(services.WithSequence(ctx, seq.Name), seq.Path)
		if err != nil {
			report.Incidents = append(report.Incidents, a.router.Hold(ctx, seq, err))
			continue
		}
		if outcome == rawcooked.ProbeOversized {
			a.route(ctx, seq, stage.ReadyToCookV2, "reversibility file oversized", report)
			continue
		}
		remaining = append(remaining, seq)
	}
	return sequence.NewSet(remaining...)
}

// policyGate checks a representative frame of each sequence and routes
// non-conforming ones to policy-check-failed.
func (a *Assessor) policyGate(ctx context.Context, pending sequence.Set, report *Report) sequence.Set {
	var passed []sequence.Sequence
	for _, seq := range pending.Sequences() {
		if ctx.Err() != nil {
			break
		}
		file, err := sequence.Representative(a.fsys, seq)
		if err != nil {
			report.Incidents = append(report.Incidents, a.router.Hold(ctx, seq, err))
			continue
		}
		verdict, err := a.checker.Check(services.WithSequence(ctx, seq.Name), a.opts.DPXPolicy, file)
		if err != nil {
			report.Incidents = append(report.Incidents, a.router.Hold(ctx, seq, err))
			continue
		}
		if !verdict.Pass {
			a.route(ctx, seq, stage.PolicyCheckFailed, "dpx policy failed", report)
			continue
		}
		passed = append(passed, seq)
	}
	return sequence.NewSet(passed...)
}

func (a *Assessor) promote(ctx context.Context, pending sequence.Set, report *Report) {
	reason := "assessment passed"
	if !a.opts.CheckPolicy {
		reason = "policy check disabled"
	}
	for _, seq := range pending.Sequences() {
		if ctx.Err() != nil {
			return
		}
		a.route(ctx, seq, stage.ReadyToCook, reason, report)
	}
}

func (a *Assessor) route(ctx context.Context, seq sequence.Sequence, to stage.Stage, reason string, report *Report) (sequence.Sequence, bool) {
	moved, err := a.router.Move(ctx, seq, to)
	if err != nil {
		// Move already journaled the hold.
		report.Incidents = append(report.Incidents, services.NewIncident(seq.Name, seq.Path, seq.Stage.String(), err))
		return seq, false
	}
	report.Transitions = append(report.Transitions, Transition{
		Sequence: seq.Name,
		From:     seq.Stage,
		To:       to,
		Path:     moved.Path,
		Reason:   reason,
	})
	return moved, true
}

func gapReason(gaps sequence.SequenceGaps) string {
	missing := 0
	for _, d := range gaps.Dirs {
		missing += d.MissingCount()
	}
	return fmt.Sprintf("%d missing frame(s)", missing)
}
