package result

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRunDir makes a timestamped directory under baseDir/runs and points
// baseDir/latest at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// NewGradingID returns a unique id of the form grade_<unix>_<uuid8>.
func NewGradingID() string {
	return fmt.Sprintf("grade_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// ReportFileName builds a stable, filesystem-safe report name for the
// submission at the given batch position.
func ReportFileName(index int, ref string) string {
	return fmt.Sprintf("%03d-%s.json", index+1, SlugFromRef(ref))
}

// SlugFromRef reduces a submission reference (URL, path, archive name) to a
// short name safe for use in file paths.
func SlugFromRef(ref string) string {
	s := ref
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 && i < len(s)-1 {
		// Keep owner/repo for hosted refs, just the base for paths.
		if j := strings.LastIndexByte(s[:i], '/'); j >= 0 {
			s = s[j+1:]
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "submission"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}
