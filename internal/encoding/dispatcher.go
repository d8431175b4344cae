package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"dpxflow/internal/classify"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/logging"
	"dpxflow/internal/services"
	"dpxflow/internal/services/rawcooked"
	"dpxflow/internal/stage"
)

// Mode selects the RAWcooked container version.
type Mode int

const (
	ModeV1 Mode = iota
	ModeV2
)

func (m Mode) String() string {
	if m == ModeV2 {
		return "v2"
	}
	return "v1"
}

// Stage returns the ready stage a mode drains.
func (m Mode) Stage() stage.Stage {
	if m == ModeV2 {
		return stage.ReadyToCookV2
	}
	return stage.ReadyToCook
}

// Cooker runs one encode and returns its combined output.
type Cooker interface {
	Cook(ctx context.Context, req rawcooked.CookRequest) ([]byte, error)
}

// Job is the outcome of one encode.
type Job struct {
	Sequence  string        `json:"sequence"`
	Source    string        `json:"source"`
	Container string        `json:"container"`
	Log       string        `json:"log"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Succeeded reports whether the encode exited cleanly.
func (j Job) Succeeded() bool { return j.Err == nil }

// Report summarizes one dispatch.
type Report struct {
	Mode      string              `json:"mode"`
	Dir       string              `json:"dir"`
	Listed    int                 `json:"listed"`
	Skipped   []string            `json:"skipped,omitempty"`
	Deferred  []string            `json:"deferred,omitempty"`
	Jobs      []Job               `json:"jobs,omitempty"`
	Incidents []services.Incident `json:"incidents,omitempty"`
}

// Empty reports whether the dispatch found nothing to encode.
func (r Report) Empty() bool { return len(r.Jobs) == 0 }

// Failed counts jobs whose encode returned an error.
func (r Report) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if !j.Succeeded() {
			n++
		}
	}
	return n
}

// Options bounds a dispatch.
type Options struct {
	CookedDir string
	BatchSize int
	Workers   int
}

// Dispatcher fans encodes out over a bounded pool.
type Dispatcher struct {
	fsys   fileutil.FS
	cooker Cooker
	opts   Options
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher. Non-positive limits fall back to one.
func NewDispatcher(fsys fileutil.FS, cooker Cooker, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Dispatcher{
		fsys:   fsys,
		cooker: cooker,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "encoding"),
	}
}

// Dispatch encodes up to one batch of the sequences in dir. Only a listing
// failure is returned as an error; per-sequence failures are in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, dir string, mode Mode) (Report, error) {
	report := Report{Mode: mode.String(), Dir: dir}
	names, err := d.candidates(dir)
	if err != nil {
		return report, err
	}
	report.Listed = len(names)

	var batch []string
	for _, name := range names {
		if d.inFlight(name) {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if len(batch) == d.opts.BatchSize {
			report.Deferred = append(report.Deferred, name)
			continue
		}
		batch = append(batch, name)
	}
	if len(batch) == 0 {
		d.logger.Info("nothing to encode", logging.Args(
			logging.String("dir", dir),
			logging.String("mode", mode.String()),
			logging.Int("skipped", len(report.Skipped)),
			logging.EventType("encode_idle"),
		)...)
		return report, nil
	}

	jobs := make([]Job, len(batch))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.opts.Workers)
	for i, name := range batch {
		group.Go(func() error {
			jobs[i] = d.cook(groupCtx, dir, name, mode)
			return nil
		})
	}
	_ = group.Wait()

	report.Jobs = jobs
	for _, job := range jobs {
		if job.Err != nil {
			report.Incidents = append(report.Incidents, services.NewIncident(job.Sequence, job.Source, mode.Stage().String(), job.Err))
		}
	}
	d.logger.Info("encode batch complete", logging.Args(
		logging.String("mode", mode.String()),
		logging.Int("encoded", len(jobs)-report.Failed()),
		logging.Int("failed", report.Failed()),
		logging.Int("deferred", len(report.Deferred)),
		logging.EventType("encode_batch_complete"),
	)...)
	return report, nil
}

func (d *Dispatcher) candidates(dir string) ([]string, error) {
	entries, err := d.fsys.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "encoding", "list", "ready directory unreadable: "+dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || fileutil.IsPartial(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dispatcher) inFlight(name string) bool {
	return fileutil.Exists(d.fsys, d.containerPath(name)) || fileutil.Exists(d.fsys, d.logPath(name))
}

func (d *Dispatcher) containerPath(name string) string {
	return filepath.Join(d.opts.CookedDir, name+classify.ContainerExt)
}

func (d *Dispatcher) logPath(name string) string {
	return filepath.Join(d.opts.CookedDir, name+classify.LogExt)
}

func (d *Dispatcher) cook(ctx context.Context, dir, name string, mode Mode) Job {
	job := Job{
		Sequence:  name,
		Source:    filepath.Join(dir, name),
		Container: d.containerPath(name),
		Log:       d.logPath(name),
	}
	ctx = services.WithSequence(services.WithStage(ctx, mode.Stage().String()), name)
	logger := d.logger.With(logging.Sequence(name))
	logger.Info("encode started", logging.Args(
		logging.String("mode", mode.String()),
		logging.String("output", job.Container),
		logging.EventType("encode_start"),
	)...)

	started := time.Now()
	output, err := d.cooker.Cook(ctx, rawcooked.CookRequest{
		Source: job.Source,
		Output: job.Container,
		V2:     mode == ModeV2,
	})
	job.Duration = time.Since(started)

	if appendErr := d.fsys.AppendFile(job.Log, output); appendErr != nil {
		logging.WarnWithContext(logger, "encode log not written", "encode_log_failed",
			logging.String("log", job.Log),
			logging.Error(appendErr),
			logging.String(logging.FieldErrorHint, "check the in-flight directory is writable"),
			logging.String(logging.FieldImpact, "post-cook audit will report an orphan container"),
		)
		if err == nil {
			err = fmt.Errorf("write encode log: %w", appendErr)
		}
	}

	if err != nil {
		job.Err = err
		job.Error = err.Error()
		logging.WarnWithContext(logger, "encode failed", "encode_failed",
			logging.Duration("duration", job.Duration),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see "+filepath.Base(job.Log)),
			logging.String(logging.FieldImpact, "sequence stays in "+mode.Stage().String()),
		)
		return job
	}
	logger.Info("encode finished", logging.Args(
		logging.Duration("duration", job.Duration),
		logging.EventType("encode_complete"),
	)...)
	return job
}
