// Package grader wires acquisition, sandboxed evaluation, scoring, and
// reporting into the grading pipeline, and fans submissions out over a
// bounded worker pool. Every requested submission yields exactly one
// GradingResult; submission-level failures are folded into the result, never
// returned as errors.
package grader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"raggrader/internal/acquire"
	"raggrader/internal/config"
	"raggrader/internal/eval"
	"raggrader/internal/report"
	"raggrader/internal/result"
	"raggrader/internal/sandbox"
	"raggrader/internal/score"
)

// Acquirer resolves a submission reference into a workspace snapshot.
// Satisfied by *acquire.Acquirer.
type Acquirer interface {
	Acquire(ctx context.Context, ref string) (*acquire.Workspace, error)
}

// Engine grades submissions against an immutable configuration. It is safe
// for concurrent use; per-submission state lives entirely in the pipeline
// invocation.
type Engine struct {
	cfg      *config.Config
	log      *zap.Logger
	acquirer Acquirer
	eval     *eval.Evaluator
	runDir   string
}

// New builds an engine with the default backends: git/archive acquisition
// and Docker sandboxes.
func New(cfg *config.Config, log *zap.Logger) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid grading config: %w", err)
	}
	return NewWith(cfg, log, acquire.New(cfg.Acquisition, log), sandbox.NewDockerRunner(log))
}

// NewWith builds an engine around explicit acquisition and sandbox
// implementations. Configuration mistakes (bad rubric, bad thresholds)
// surface here, before any grading starts. When a results directory is
// configured, a fresh run directory is created for this engine's reports.
func NewWith(cfg *config.Config, log *zap.Logger, acq Acquirer, runner sandbox.Runner) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid grading config: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		log:      log.Named("grader"),
		acquirer: acq,
		eval:     eval.New(runner, cfg.Sandbox, log),
	}
	if cfg.Results.Dir != "" {
		runDir, err := result.CreateRunDir(cfg.Results.Dir)
		if err != nil {
			return nil, fmt.Errorf("preparing results dir: %w", err)
		}
		e.runDir = runDir
	}
	return e, nil
}

// RunDir is where this engine persists reports; empty when persistence is
// disabled.
func (e *Engine) RunDir() string { return e.runDir }

// GradeSubmission runs the full pipeline for one submission. It always
// returns a result: acquisition failures, sandbox infrastructure failures,
// cancellation, and even pipeline panics come back as a failed result, not
// an error.
func (e *Engine) GradeSubmission(ctx context.Context, ref string) result.GradingResult {
	return e.gradeOne(ctx, 0, ref)
}

func (e *Engine) gradeOne(ctx context.Context, index int, ref string) result.GradingResult {
	log := e.log.With(zap.Int("index", index), zap.String("submission", ref))
	start := time.Now()

	res := e.pipeline(ctx, log, ref)
	res.DurationS = int(time.Since(start).Seconds())

	if e.runDir != "" {
		path, err := report.Write(e.runDir, index, report.Build(res, e.cfg.Rubric))
		if err != nil {
			log.Warn("persisting report", zap.Error(err))
		} else {
			res.ReportPath = path
		}
	}

	log.Info("graded submission",
		zap.Bool("success", res.Success),
		zap.Bool("cancelled", res.Cancelled),
		zap.Float64("total", res.Total),
		zap.String("grade", res.Grade),
		zap.Int("duration_s", res.DurationS))
	return res
}

// pipeline is acquire → evaluate → aggregate for one submission. The
// deferred recover is a last-resort net for programming defects in the
// pipeline itself; expected failures are handled on their own paths.
func (e *Engine) pipeline(ctx context.Context, log *zap.Logger, ref string) (res result.GradingResult) {
	res = result.GradingResult{
		SubmissionID: ref,
		GradingID:    result.NewGradingID(),
		Grade:        score.Letter(0, e.cfg.GradeThresholds),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("grading pipeline panicked", zap.Any("panic", r))
			res = result.GradingResult{
				SubmissionID: ref,
				GradingID:    res.GradingID,
				Grade:        score.Letter(0, e.cfg.GradeThresholds),
				Err:          fmt.Sprintf("internal grading failure: %v", r),
			}
		}
	}()

	if ctx.Err() != nil {
		res.Cancelled = true
		res.Err = "grading cancelled before start"
		return res
	}

	ws, err := e.acquirer.Acquire(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			res.Err = "grading cancelled during acquisition"
			return res
		}
		log.Warn("acquisition failed", zap.Error(err))
		res.Err = err.Error()
		return res
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn("cleaning workspace", zap.Error(cerr))
		}
	}()

	entries, err := e.eval.Evaluate(ctx, ws, e.cfg.Rubric)
	res.Entries = entries
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			res.Err = "grading cancelled during evaluation"
			return res
		}
		log.Warn("evaluation aborted", zap.Error(err))
		res.Err = err.Error()
		return res
	}

	res.Total = score.Aggregate(entries, e.cfg.Rubric)
	res.Grade = score.Letter(res.Total, e.cfg.GradeThresholds)
	res.Success = true
	return res
}
