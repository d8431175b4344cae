// Package router relocates sequences and their artifacts between stage
// directories. A move is the only way a sequence changes stage; a hold leaves
// it where it is and is recorded for the operator.
package router

import (
	"context"
	"log/slog"
	"path/filepath"

	"dpxflow/internal/fileutil"
	"dpxflow/internal/journal"
	"dpxflow/internal/logging"
	"dpxflow/internal/sequence"
	"dpxflow/internal/services"
	"dpxflow/internal/stage"
)

// Recorder persists transition history.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder journals every move and hold.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Router moves sequences between the directories of a stage layout.
type Router struct {
	fsys     fileutil.FS
	layout   stage.Layout
	recorder Recorder
	logger   *slog.Logger
}

// New constructs a Router.
func New(fsys fileutil.FS, layout stage.Layout, opts ...Option) *Router {
	r := &Router{fsys: fsys, layout: layout, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "router")
	return r
}

// Layout returns the stage layout the router moves within.
func (r *Router) Layout() stage.Layout {
	return r.layout
}

// Move relocates seq into the directory of stage to, carrying its framemd5
// sidecar when one sits beside it. The returned Sequence carries the path the
// move produced. On failure seq is returned unchanged with the error and the
// failure is journaled as a hold.
func (r *Router) Move(ctx context.Context, seq sequence.Sequence, to stage.Stage) (sequence.Sequence, error) {
	targetDir := r.layout.Dir(to)
	if targetDir == "" {
		return seq, services.Wrap(services.ErrConfiguration, to.String(), "move", "stage directory not configured", nil)
	}
	if err := r.fsys.MkdirAll(targetDir, 0o755); err != nil {
		r.Hold(ctx, seq, err)
		return seq, err
	}

	dst, err := fileutil.Move(r.fsys, seq.Path, filepath.Join(targetDir, seq.Name))
	if err != nil {
		r.Hold(ctx, seq, err)
		return seq, err
	}

	moved := seq
	moved.Path = dst
	moved.Stage = to
	r.record(ctx, journal.Entry{
		Sequence: seq.Name,
		Kind:     journal.KindMove,
		From:     seq.Stage.String(),
		To:       to.String(),
		Path:     dst,
	})
	r.logger.Info("sequence moved", logging.Args(
		logging.Sequence(seq.Name),
		logging.Stage(to.String()),
		logging.String("from", seq.Stage.String()),
		logging.String("to", dst),
		logging.EventType("sequence_moved"),
	)...)

	manifest := filepath.Join(filepath.Dir(seq.Path), seq.ManifestName())
	if fileutil.Exists(r.fsys, manifest) {
		if _, err := r.Relocate(ctx, seq.Name, seq.Stage, manifest, filepath.Join(targetDir, seq.ManifestName())); err != nil {
			logging.WarnWithContext(r.logger, "manifest left behind", "manifest_move_failed",
				logging.Sequence(seq.Name),
				logging.String("manifest", manifest),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "move the .framemd5 next to the sequence folder by hand"),
				logging.String(logging.FieldImpact, "completion will report a missing manifest"),
			)
		}
	}
	return moved, nil
}

// Relocate moves a single artifact (a container, a log, a manifest, or a
// source folder) to an explicit destination and journals it. The destination
// must not exist; its parent is created. A failed relocation is not journaled;
// the caller holds the owning sequence.
func (r *Router) Relocate(ctx context.Context, name string, from stage.Stage, src, dst string) (string, error) {
	moved, err := fileutil.Move(r.fsys, src, dst)
	if err != nil {
		return "", err
	}
	to, _ := r.layout.StageContaining(moved)
	r.record(ctx, journal.Entry{
		Sequence: name,
		Kind:     journal.KindMove,
		From:     from.String(),
		To:       to.String(),
		Path:     moved,
		Detail:   filepath.Base(src),
	})
	r.logger.Debug("artifact moved", logging.Args(
		logging.Sequence(name),
		logging.String("from", src),
		logging.String("to", moved),
		logging.EventType("artifact_moved"),
	)...)
	return moved, nil
}

// Hold records that seq stays in place and returns the incident describing
// why.
func (r *Router) Hold(ctx context.Context, seq sequence.Sequence, cause error) services.Incident {
	inc := services.NewIncident(seq.Name, seq.Path, seq.Stage.String(), cause)
	r.record(ctx, journal.Entry{
		Sequence: seq.Name,
		Kind:     journal.KindHold,
		From:     seq.Stage.String(),
		Path:     seq.Path,
		Detail:   inc.Message,
	})
	logging.WarnWithContext(r.logger, "sequence held", "sequence_held",
		logging.Sequence(seq.Name),
		logging.Stage(seq.Stage.String()),
		logging.String("kind", inc.Kind),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, holdHint(inc.Kind)),
	)
	return inc
}

func (r *Router) record(ctx context.Context, entry journal.Entry) {
	if r.recorder == nil {
		return
	}
	if entry.RunID == "" {
		entry.RunID, _ = services.RunIDFromContext(ctx)
	}
	if err := r.recorder.Record(ctx, entry); err != nil {
		logging.WarnWithContext(r.logger, "journal write failed", "journal_write_failed",
			logging.Sequence(entry.Sequence),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.db in log_dir"),
			logging.String(logging.FieldImpact, "transition history incomplete; routing unaffected"),
		)
	}
}

func holdHint(kind string) string {
	switch kind {
	case "timeout":
		return "raise the tool timeout or check the tool is not hanging"
	case "tool_invocation":
		return "run the tool by hand against the sequence to see its output"
	case "discovery":
		return "check the sequence folder contains DPX frames"
	default:
		return "check the destination is empty and writable"
	}
}
