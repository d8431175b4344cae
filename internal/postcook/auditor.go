package postcook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"dpxflow/internal/classify"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/logging"
	"dpxflow/internal/router"
	"dpxflow/internal/sequence"
	"dpxflow/internal/services"
	"dpxflow/internal/services/mediaconch"
	"dpxflow/internal/stage"
)

// PolicyChecker validates a file against a MediaConch policy.
type PolicyChecker interface {
	Check(ctx context.Context, policy, file string) (mediaconch.Verdict, error)
}

// Options configures an audit.
type Options struct {
	MKVPolicy string
	// Framemd5 makes a missing manifest an integrity incident.
	Framemd5 bool
}

// Routed records a pair sent to a review stage.
type Routed struct {
	Base    string      `json:"base"`
	To      stage.Stage `json:"to"`
	Reasons []string    `json:"reasons"`
}

// Report summarizes one audit.
type Report struct {
	Pairs            int                 `json:"pairs"`
	OrphanContainers []string            `json:"orphan_containers,omitempty"`
	OrphanLogs       []string            `json:"orphan_logs,omitempty"`
	Completed        []string            `json:"completed,omitempty"`
	Review           []Routed            `json:"review,omitempty"`
	SourcesCompleted []string            `json:"sources_completed,omitempty"`
	Incidents        []services.Incident `json:"incidents,omitempty"`
}

// Auditor runs the post-cook gates.
type Auditor struct {
	fsys    fileutil.FS
	router  *router.Router
	checker PolicyChecker
	rules   classify.RuleSet
	opts    Options
	logger  *slog.Logger
}

// New constructs an Auditor.
func New(fsys fileutil.FS, r *router.Router, checker PolicyChecker, opts Options, logger *slog.Logger) *Auditor {
	return &Auditor{
		fsys:    fsys,
		router:  r,
		checker: checker,
		rules:   classify.CookLogRules(),
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "postcook"),
	}
}

// Run audits every pair in the in-flight directory and then completes the
// sources whose containers passed. An error is returned only when a stage
// directory cannot be listed.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	var report Report
	layout := a.router.Layout()
	cookedDir := layout.Dir(stage.MKVCooked)

	entries, err := a.fsys.ReadDir(cookedDir)
	if err != nil {
		return report, services.Wrap(services.ErrNotFound, stage.MKVCooked.String(), "list", "in-flight directory unreadable: "+cookedDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	pairing := classify.PairArtifacts(names)
	report.Pairs = len(pairing.Pairs)
	report.OrphanContainers = pairing.OrphanContainers
	report.OrphanLogs = pairing.OrphanLogs
	for _, name := range append(append([]string{}, pairing.OrphanContainers...), pairing.OrphanLogs...) {
		report.Incidents = append(report.Incidents, a.orphan(cookedDir, name))
	}

	sources, err := a.sources()
	if err != nil {
		return report, err
	}

	for _, pair := range pairing.Pairs {
		if ctx.Err() != nil {
			break
		}
		a.audit(services.WithSequence(ctx, pair.Base), cookedDir, pair, sources, &report)
	}

	a.completeSources(ctx, sources, &report)

	a.logger.Info("post-cook audit complete", logging.Args(
		logging.Int("pairs", report.Pairs),
		logging.Int("completed", len(report.Completed)),
		logging.Int("review", len(report.Review)),
		logging.Int("incidents", len(report.Incidents)),
		logging.EventType("postcook_complete"),
	)...)
	return report, nil
}

func (a *Auditor) orphan(cookedDir, name string) services.Incident {
	path := filepath.Join(cookedDir, name)
	err := services.Wrap(services.ErrOrphanArtifact, stage.MKVCooked.String(), "pair", "no matching container or log for "+name, nil)
	logging.WarnWithContext(a.logger, "orphan artifact", "orphan_artifact",
		logging.String("file", name),
		logging.String(logging.FieldErrorHint, "an encode may still be running or its log was removed"),
		logging.String(logging.FieldImpact, "artifact left in "+stage.MKVCooked.String()),
	)
	return services.NewIncident(baseName(name), path, stage.MKVCooked.String(), err)
}

func (a *Auditor) audit(ctx context.Context, cookedDir string, pair classify.Pair, sources sequence.Set, report *Report) {
	container := filepath.Join(cookedDir, pair.Container)
	held := sequence.Sequence{Name: pair.Base, Path: container, Stage: stage.MKVCooked}

	verdict, err := a.checker.Check(ctx, a.opts.MKVPolicy, container)
	if err != nil {
		report.Incidents = append(report.Incidents, a.router.Hold(ctx, held, err))
		return
	}
	if !verdict.Pass {
		a.review(ctx, cookedDir, pair, stage.MKVPolicyFailed, []string{"mkv_policy"}, sources, report)
		return
	}

	data, err := a.fsys.ReadFile(filepath.Join(cookedDir, pair.Log))
	if err != nil {
		report.Incidents = append(report.Incidents, a.router.Hold(ctx, held, err))
		return
	}
	if result := a.rules.Classify(data); result.Matched() {
		a.review(ctx, cookedDir, pair, stage.PostCookReviewFailed, result.HitNames(), sources, report)
		return
	}

	dest := filepath.Join(a.router.Layout().Dir(stage.Completed), pair.Base)
	if err := a.movePair(ctx, cookedDir, pair, dest); err != nil {
		report.Incidents = append(report.Incidents, a.router.Hold(ctx, held, err))
		return
	}
	report.Completed = append(report.Completed, pair.Base)
	a.logger.Info("container completed", logging.Args(
		logging.Sequence(pair.Base),
		logging.String("dest", dest),
		logging.EventType("container_completed"),
	)...)
}

// review moves a failing pair into <review>/<base>/ and brings its source
// folder and manifest along when the source is still waiting to be completed.
func (a *Auditor) review(ctx context.Context, cookedDir string, pair classify.Pair, to stage.Stage, reasons []string, sources sequence.Set, report *Report) {
	dest := filepath.Join(a.router.Layout().Dir(to), pair.Base)
	if err := a.movePair(ctx, cookedDir, pair, dest); err != nil {
		held := sequence.Sequence{Name: pair.Base, Path: filepath.Join(cookedDir, pair.Container), Stage: stage.MKVCooked}
		report.Incidents = append(report.Incidents, a.router.Hold(ctx, held, err))
		return
	}
	report.Review = append(report.Review, Routed{Base: pair.Base, To: to, Reasons: reasons})
	logging.WarnWithContext(a.logger, "container sent to review", "container_review",
		logging.Sequence(pair.Base),
		logging.Stage(to.String()),
		logging.Any("reasons", reasons),
		logging.String(logging.FieldErrorHint, "inspect "+pair.Log),
		logging.String(logging.FieldImpact, "sequence needs manual review"),
	)

	src, ok := sources.Get(pair.Base)
	if !ok {
		return
	}
	if _, err := a.moveSource(ctx, src, filepath.Join(dest, src.Name)); err != nil {
		report.Incidents = append(report.Incidents, services.NewIncident(src.Name, src.Path, src.Stage.String(), err))
	}
}

// movePair relocates a container and its log into dest as a unit. Both
// destinations must be free before either file moves, and the container is
// put back when the log cannot follow it.
func (a *Auditor) movePair(ctx context.Context, cookedDir string, pair classify.Pair, dest string) error {
	for _, name := range []string{pair.Container, pair.Log} {
		if target := filepath.Join(dest, name); fileutil.Exists(a.fsys, target) {
			return fmt.Errorf("%w: %s", fileutil.ErrDestinationExists, target)
		}
	}

	container := filepath.Join(cookedDir, pair.Container)
	movedContainer, err := a.router.Relocate(ctx, pair.Base, stage.MKVCooked, container, filepath.Join(dest, pair.Container))
	if err != nil {
		return err
	}
	if _, err := a.router.Relocate(ctx, pair.Base, stage.MKVCooked, filepath.Join(cookedDir, pair.Log), filepath.Join(dest, pair.Log)); err != nil {
		to, _ := a.router.Layout().StageContaining(movedContainer)
		if _, restoreErr := a.router.Relocate(ctx, pair.Base, to, movedContainer, container); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restore %s: %w", pair.Container, restoreErr))
		}
		return err
	}
	return nil
}

// completeSources moves every ready source whose container reached the
// completed stage, in this run or an earlier one.
func (a *Auditor) completeSources(ctx context.Context, sources sequence.Set, report *Report) {
	completedDir := a.router.Layout().Dir(stage.Completed)
	reviewed := make(map[string]bool, len(report.Review))
	for _, r := range report.Review {
		reviewed[r.Base] = true
	}

	for _, src := range sources.Sequences() {
		if ctx.Err() != nil {
			return
		}
		if reviewed[src.Name] {
			continue
		}
		dest := filepath.Join(completedDir, src.Name)
		if !slices.Contains(report.Completed, src.Name) && !fileutil.Exists(a.fsys, filepath.Join(dest, src.Name+classify.ContainerExt)) {
			continue
		}
		moved, err := a.moveSource(ctx, src, filepath.Join(dest, src.Name+"_processed_dpx"))
		if err != nil {
			report.Incidents = append(report.Incidents, services.NewIncident(src.Name, src.Path, src.Stage.String(), err))
		}
		if moved {
			report.SourcesCompleted = append(report.SourcesCompleted, src.Name)
		}
	}
}

// moveSource relocates a source folder to folderDst and its manifest next to
// it, reporting whether the folder moved. A missing manifest is an integrity
// error once the folder has moved.
func (a *Auditor) moveSource(ctx context.Context, src sequence.Sequence, folderDst string) (bool, error) {
	if _, err := a.router.Relocate(ctx, src.Name, src.Stage, src.Path, folderDst); err != nil {
		a.router.Hold(ctx, src, err)
		return false, err
	}
	manifest := filepath.Join(filepath.Dir(src.Path), src.ManifestName())
	manifestDst := filepath.Join(filepath.Dir(folderDst), src.ManifestName())
	if !fileutil.Exists(a.fsys, manifest) {
		if !a.opts.Framemd5 {
			return true, nil
		}
		err := services.Wrap(services.ErrIntegrity, src.Stage.String(), "complete", "framemd5 manifest missing for "+src.Name, nil)
		logging.WarnWithContext(a.logger, "manifest missing", "manifest_missing",
			logging.Sequence(src.Name),
			logging.String("expected", manifest),
			logging.String(logging.FieldErrorHint, "regenerate the framemd5 before archiving"),
			logging.String(logging.FieldImpact, "sequence moved without a manifest"),
		)
		return true, err
	}
	if _, err := a.router.Relocate(ctx, src.Name, src.Stage, manifest, manifestDst); err != nil {
		return true, err
	}
	return true, nil
}

// sources gathers the sequences still waiting in the ready stages.
func (a *Auditor) sources() (sequence.Set, error) {
	layout := a.router.Layout()
	var all []sequence.Sequence
	for _, s := range []stage.Stage{stage.ReadyToCookV2, stage.ReadyToCook} {
		seqs, _, err := sequence.Discover(a.fsys, layout.Dir(s), s)
		if err != nil {
			return sequence.Set{}, err
		}
		all = append(all, seqs...)
	}
	return sequence.NewSet(all...), nil
}

func baseName(file string) string {
	if base, ok := strings.CutSuffix(file, classify.LogExt); ok {
		return base
	}
	return strings.TrimSuffix(file, classify.ContainerExt)
}
