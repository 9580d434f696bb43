// Package eval runs rubric criteria against an acquired workspace. Each
// criterion is dispatched by kind and evaluated in isolation: a crash,
// timeout, or malformed output scores that criterion 0 with a rationale and
// leaves its siblings untouched. Only sandbox infrastructure failures and
// cancellation abort the submission.
package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"raggrader/internal/acquire"
	"raggrader/internal/config"
	"raggrader/internal/result"
	"raggrader/internal/sandbox"
)

// Container mount points for grader-supplied material.
const (
	harnessPath  = "/harness"
	fixturesPath = "/fixtures"
)

type Evaluator struct {
	runner   sandbox.Runner
	box      config.Sandbox
	log      *zap.Logger
	dispatch map[config.Kind]evalFunc
}

type evalOutput struct {
	raw       float64
	rationale string
	truncated bool
}

type evalFunc func(ctx context.Context, ws *acquire.Workspace, c config.Criterion) (evalOutput, error)

func New(runner sandbox.Runner, box config.Sandbox, log *zap.Logger) *Evaluator {
	ev := &Evaluator{
		runner: runner,
		box:    box,
		log:    log.Named("eval"),
	}
	ev.dispatch = map[config.Kind]evalFunc{
		config.KindFunctional: ev.evalFunctional,
		config.KindRetrieval:  ev.evalRetrieval,
		config.KindStatic:     ev.evalStatic,
	}
	return ev
}

// Evaluate runs the criteria in configured order, producing one entry per
// completed criterion. The returned error is non-nil only for failures
// fatal to the whole submission: sandbox infrastructure errors and context
// cancellation. Entries already produced are returned alongside it.
func (ev *Evaluator) Evaluate(ctx context.Context, ws *acquire.Workspace, criteria []config.Criterion) ([]result.ScoreEntry, error) {
	entries := make([]result.ScoreEntry, 0, len(criteria))
	for _, c := range criteria {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		fn, ok := ev.dispatch[c.Kind]
		if !ok {
			// Unreachable with validated config.
			return entries, fmt.Errorf("criterion %q: no evaluator for kind %q", c.ID, c.Kind)
		}

		out, err := ev.safeEval(ctx, fn, ws, c)
		entry := result.ScoreEntry{
			CriterionID: c.ID,
			Max:         c.MaxScore,
			Rationale:   out.rationale,
			Truncated:   out.truncated,
		}
		if err != nil {
			var infra *sandbox.InfraError
			if errors.As(err, &infra) {
				return entries, err
			}
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			ev.log.Warn("criterion evaluation failed",
				zap.String("submission", ws.Ref),
				zap.String("criterion", c.ID),
				zap.Error(err))
			entry.Err = err.Error()
			if entry.Rationale == "" {
				entry.Rationale = "criterion evaluation failed"
			}
		} else {
			entry.Raw = clamp(out.raw, 0, c.MaxScore)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// safeEval converts a panicking evaluator into a criterion-level error.
func (ev *Evaluator) safeEval(ctx context.Context, fn evalFunc, ws *acquire.Workspace, c config.Criterion) (out evalOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("criterion evaluator panicked: %v", r)
		}
	}()
	return fn(ctx, ws, c)
}

func (ev *Evaluator) runSpec(ws *acquire.Workspace, c config.Criterion, argv []string, outDir string, extra []sandbox.Mount) sandbox.Spec {
	image := c.Image
	if image == "" {
		image = ev.box.Image
	}
	mounts := extra
	if c.HarnessDir != "" {
		mounts = append(mounts, sandbox.Mount{Source: c.HarnessDir, Target: harnessPath, ReadOnly: true})
	}
	return sandbox.Spec{
		Image:        image,
		Command:      argv,
		Env:          c.Env,
		WorkspaceDir: ws.Dir,
		OutDir:       outDir,
		ExtraMounts:  mounts,
		Network:      ev.box.Network,
		Limits: sandbox.Limits{
			WallClock:   c.Timeout(ev.box.Timeout()),
			MemoryBytes: ev.box.MemoryBytes(),
			CPU:         ev.box.CPULimit,
			Pids:        ev.box.PidsLimit,
			OutputBytes: ev.box.OutputLimitBytes(),
		},
	}
}

// logTail condenses a run's output into a rationale-sized excerpt.
func logTail(outcome *sandbox.Outcome) string {
	combined := strings.TrimSpace(outcome.Stderr)
	if combined == "" {
		combined = strings.TrimSpace(outcome.Stdout)
	}
	if combined == "" {
		return ""
	}
	const max = 400
	if len(combined) > max {
		combined = combined[len(combined)-max:]
	}
	return combined
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
