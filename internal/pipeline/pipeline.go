package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dpxflow/internal/assessment"
	"dpxflow/internal/config"
	"dpxflow/internal/encoding"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/logging"
	"dpxflow/internal/postcook"
	"dpxflow/internal/router"
	"dpxflow/internal/services"
	"dpxflow/internal/stage"
)

// Tools bundles the external tool adapters a run needs.
type Tools struct {
	Prober assessment.Prober
	Policy assessment.PolicyChecker
	Cooker encoding.Cooker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder journals every move and hold.
func WithRecorder(rec router.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = rec
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline wires the stage components over one configured tree.
type Pipeline struct {
	cfg      *config.Config
	fsys     fileutil.FS
	tools    Tools
	recorder router.Recorder
	logger   *slog.Logger
	router   *router.Router
}

// New constructs a Pipeline.
func New(cfg *config.Config, fsys fileutil.FS, tools Tools, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	if tools.Prober == nil || tools.Policy == nil || tools.Cooker == nil {
		return nil, errors.New("pipeline requires prober, policy checker, and cooker")
	}
	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("stage layout: %w", err)
	}
	p := &Pipeline{cfg: cfg, fsys: fsys, tools: tools, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	routerOpts := []router.Option{router.WithLogger(p.logger)}
	if p.recorder != nil {
		routerOpts = append(routerOpts, router.WithRecorder(p.recorder))
	}
	p.router = router.New(fsys, layout, routerOpts...)
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	return p, nil
}

// Layout returns the stage layout the pipeline runs over.
func (p *Pipeline) Layout() stage.Layout {
	return p.router.Layout()
}

// Assess runs the pre-cook gates.
func (p *Pipeline) Assess(ctx context.Context) (assessment.Report, error) {
	a := assessment.New(p.fsys, p.router, p.tools.Prober, p.tools.Policy, assessment.Options{
		CheckGaps:   p.cfg.Workflow.CheckGaps,
		CheckPolicy: p.cfg.Workflow.CheckPolicy,
		DPXPolicy:   p.cfg.MediaConch.DPXPolicy,
	}, p.logger)
	return a.Run(services.WithStage(ctx, "assessment"))
}

// Cook encodes the v2 directory and then the standard one.
func (p *Pipeline) Cook(ctx context.Context) ([]encoding.Report, error) {
	d := encoding.NewDispatcher(p.fsys, p.tools.Cooker, encoding.Options{
		CookedDir: p.Layout().Dir(stage.MKVCooked),
		BatchSize: p.cfg.Workflow.BatchSize,
		Workers:   p.cfg.Workflow.Workers,
	}, p.logger)

	var reports []encoding.Report
	for _, mode := range []encoding.Mode{encoding.ModeV2, encoding.ModeV1} {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		report, err := d.Dispatch(ctx, p.Layout().Dir(mode.Stage()), mode)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// PostCook audits the in-flight directory.
func (p *Pipeline) PostCook(ctx context.Context) (postcook.Report, error) {
	a := postcook.New(p.fsys, p.router, p.tools.Policy, postcook.Options{
		MKVPolicy: p.cfg.MediaConch.MKVPolicy,
		Framemd5:  p.cfg.RAWcooked.Framemd5,
	}, p.logger)
	return a.Run(services.WithStage(ctx, "postcook"))
}

// Run executes a full pass under the run lock and writes the run report.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	lock, err := AcquireLock(p.cfg.LockPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("release run lock failed", logging.Error(err))
		}
	}()

	report := &RunReport{RunID: uuid.NewString(), Started: time.Now().UTC()}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := p.logger.With(logging.String(logging.FieldRunID, report.RunID))
	logger.Info("run started", logging.Args(
		logging.String("root", p.cfg.Paths.RootDir),
		logging.Bool("check_gaps", p.cfg.Workflow.CheckGaps),
		logging.Bool("check_policy", p.cfg.Workflow.CheckPolicy),
		logging.EventType("run_start"),
	)...)

	runErr := p.runStages(ctx, report)
	report.Finished = time.Now().UTC()
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if path, err := WriteReport(p.cfg.ReportDir(), report); err != nil {
		logging.WarnWithContext(logger, "run report not written", "run_report_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir is writable"),
		)
	} else {
		report.Path = path
	}
	logging.Prune(logger, p.cfg.ReportDir(), reportPattern, p.cfg.Logging.RetentionDays)

	logger.Info("run complete", logging.Args(
		logging.Duration("elapsed", report.Finished.Sub(report.Started)),
		logging.Int("incidents", report.IncidentCount()),
		logging.String("report", report.Path),
		logging.EventType("run_complete"),
	)...)
	return report, runErr
}

func (p *Pipeline) runStages(ctx context.Context, report *RunReport) error {
	rec, err := Reconcile(p.fsys, p.Layout())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	report.Reconcile = rec
	rec.Log(p.logger)

	if report.Assessment, err = p.Assess(ctx); err != nil {
		return fmt.Errorf("assess: %w", err)
	}
	if report.Encodes, err = p.Cook(ctx); err != nil {
		return fmt.Errorf("cook: %w", err)
	}
	if report.PostCook, err = p.PostCook(ctx); err != nil {
		return fmt.Errorf("postcook: %w", err)
	}
	return nil
}
