package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"raggrader/internal/acquire"
	"raggrader/internal/config"
	"raggrader/internal/sandbox"
)

// testsFileName is the structured results file a harness may write under
// /out. It takes priority over anything printed to the log streams.
const testsFileName = "tests.json"

type testsFile struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (ev *Evaluator) evalFunctional(ctx context.Context, ws *acquire.Workspace, c config.Criterion) (evalOutput, error) {
	argv, err := c.Argv(ws.MainFile, ws.Language)
	if err != nil {
		return evalOutput{}, fmt.Errorf("building command: %w", err)
	}
	outDir, err := os.MkdirTemp("", "raggrader-out-*")
	if err != nil {
		return evalOutput{}, &sandbox.InfraError{Op: "allocating results dir", Err: err}
	}
	defer os.RemoveAll(outDir)

	outcome, err := ev.runner.Run(ctx, ev.runSpec(ws, c, argv, outDir, nil))
	if err != nil {
		return evalOutput{}, err
	}
	if outcome.TimedOut {
		return evalOutput{
			rationale: fmt.Sprintf("test run timed out after %s", c.Timeout(ev.box.Timeout())),
			truncated: outcome.Truncated,
		}, nil
	}

	passed, failed, ok := readTestsFile(outDir)
	if !ok {
		passed, failed, ok = parseTestCounts(outcome.Stdout + "\n" + outcome.Stderr)
	}
	if !ok {
		if outcome.ExitCode == 0 {
			return evalOutput{
				raw:       c.MaxScore,
				rationale: "test harness exited cleanly",
				truncated: outcome.Truncated,
			}, nil
		}
		rationale := fmt.Sprintf("test harness exited with code %d before reporting results", outcome.ExitCode)
		if tail := logTail(outcome); tail != "" {
			rationale += ": " + tail
		}
		return evalOutput{rationale: rationale, truncated: outcome.Truncated}, nil
	}

	total := passed + failed
	if total == 0 {
		if outcome.ExitCode == 0 {
			return evalOutput{raw: c.MaxScore, rationale: "no tests collected, harness exited cleanly", truncated: outcome.Truncated}, nil
		}
		return evalOutput{rationale: "no tests collected", truncated: outcome.Truncated}, nil
	}
	rate := float64(passed) / float64(total)
	return evalOutput{
		raw:       rate * c.MaxScore,
		rationale: fmt.Sprintf("%d of %d tests passed", passed, total),
		truncated: outcome.Truncated,
	}, nil
}

func readTestsFile(outDir string) (passed, failed int, ok bool) {
	data, err := os.ReadFile(filepath.Join(outDir, testsFileName))
	if err != nil {
		return 0, 0, false
	}
	var tf testsFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return 0, 0, false
	}
	if tf.Passed < 0 || tf.Failed < 0 {
		return 0, 0, false
	}
	return tf.Passed, tf.Failed, true
}

// parseTestCounts recovers pass/fail counts from raw harness output. It
// understands JUnit XML testsuite headers and pytest-style summary lines in
// either order ("8 passed, 2 failed" or "2 failed, 8 passed in 0.12s").
func parseTestCounts(output string) (passed, failed int, ok bool) {
	if strings.Contains(output, "<testsuite") {
		return parseJUnitCounts(output)
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.Trim(line, "= \t\r")
		if !strings.Contains(line, "passed") && !strings.Contains(line, "failed") {
			continue
		}
		var p, f, e int
		seen := false
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			var n int
			switch {
			case scanCount(part, "passed", &n):
				p, seen = n, true
			case scanCount(part, "failed", &n):
				f, seen = n, true
			case scanCount(part, "errors", &n) || scanCount(part, "error", &n):
				e, seen = n, true
			}
		}
		if seen {
			return p, f + e, true
		}
	}
	return 0, 0, false
}

// scanCount matches parts shaped like "8 passed" or "2 failed in 0.12s".
func scanCount(s, word string, n *int) bool {
	fields := strings.Fields(s)
	if len(fields) < 2 || fields[1] != word {
		return false
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil || v < 0 {
		return false
	}
	*n = v
	return true
}

func parseJUnitCounts(output string) (passed, failed int, ok bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "<testsuite") {
			continue
		}
		var tests, failures, errs int
		fmt.Sscanf(extractAttr(line, "tests"), "%d", &tests)
		fmt.Sscanf(extractAttr(line, "failures"), "%d", &failures)
		fmt.Sscanf(extractAttr(line, "errors"), "%d", &errs)
		if tests > 0 {
			passed = tests - failures - errs
			if passed < 0 {
				passed = 0
			}
			return passed, tests - passed, true
		}
	}
	return 0, 0, false
}

func extractAttr(line, attr string) string {
	key := attr + `="`
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	start := idx + len(key)
	end := strings.Index(line[start:], `"`)
	if end < 0 {
		return ""
	}
	return line[start : start+end]
}
