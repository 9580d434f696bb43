package eval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"raggrader/internal/acquire"
	"raggrader/internal/config"
)

// Static checks never execute candidate logic; they only read the snapshot.
// Files above this size are skipped so a hostile tree cannot stall a walk.
const maxScanFileBytes = 1 << 20

var staticSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// scanExts are the file extensions source-contains and source-regex checks
// look inside by default; a check's own extension list overrides this.
var scanExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".go": true, ".dart": true, ".java": true, ".rb": true, ".rs": true,
	".yaml": true, ".yml": true, ".toml": true, ".json": true,
	".cfg": true, ".ini": true, ".env": true,
}

type sourceFile struct {
	rel     string
	content string
	lower   string
}

func (ev *Evaluator) evalStatic(_ context.Context, ws *acquire.Workspace, c config.Criterion) (evalOutput, error) {
	files, err := scanSources(ws.Dir)
	if err != nil {
		return evalOutput{}, fmt.Errorf("scanning workspace: %w", err)
	}

	passed := 0
	var failed []string
	for _, check := range c.Checks {
		if runCheck(ws.Dir, files, check) {
			passed++
		} else {
			failed = append(failed, check.Name)
		}
	}

	rationale := fmt.Sprintf("%d of %d checks passed", passed, len(c.Checks))
	if len(failed) > 0 {
		shown := failed
		if len(shown) > 5 {
			shown = shown[:5]
		}
		rationale += "; missing: " + strings.Join(shown, ", ")
		if len(failed) > len(shown) {
			rationale += fmt.Sprintf(" (+%d more)", len(failed)-len(shown))
		}
	}
	return evalOutput{
		raw:       float64(passed) / float64(len(c.Checks)) * c.MaxScore,
		rationale: rationale,
	}, nil
}

func runCheck(dir string, files []sourceFile, check config.StaticCheck) bool {
	switch check.Kind {
	case config.CheckFileExists:
		for _, p := range check.Paths {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err == nil {
				return true
			}
		}
		return false
	case config.CheckSourceContains:
		for _, f := range scoped(files, check.Extensions) {
			for _, p := range check.Patterns {
				if strings.Contains(f.lower, strings.ToLower(p)) {
					return true
				}
			}
		}
		return false
	case config.CheckSourceRegex:
		for _, p := range check.Patterns {
			// Patterns were compiled once during config validation.
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			for _, f := range scoped(files, check.Extensions) {
				if re.MatchString(f.content) {
					return true
				}
			}
		}
		return false
	}
	return false
}

func scoped(files []sourceFile, exts []string) []sourceFile {
	if len(exts) == 0 {
		return files
	}
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		want[strings.ToLower(e)] = true
	}
	var out []sourceFile
	for _, f := range files {
		if want[strings.ToLower(filepath.Ext(f.rel))] {
			out = append(out, f)
		}
	}
	return out
}

// scanSources loads every scannable file in the snapshot once, shared by all
// checks of the criterion.
func scanSources(dir string) ([]sourceFile, error) {
	var files []sourceFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if staticSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !scannable(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxScanFileBytes {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		content := string(data)
		files = append(files, sourceFile{
			rel:     filepath.ToSlash(rel),
			content: content,
			lower:   strings.ToLower(content),
		})
		return nil
	})
	return files, err
}

// scannable admits known source and config extensions plus .env variants
// (.env.example and friends carry the configuration patterns the rubric
// looks for).
func scannable(name string) bool {
	if strings.HasPrefix(name, ".env") {
		return true
	}
	return scanExts[strings.ToLower(filepath.Ext(name))]
}
