package result_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"raggrader/internal/result"
)

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	runDir, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		t.Errorf("run directory not created: %s", runDir)
	}
	latest := filepath.Join(base, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != runDir {
		t.Errorf("latest symlink: got %q, want %q", target, runDir)
	}
}

func TestNewGradingID(t *testing.T) {
	a := result.NewGradingID()
	b := result.NewGradingID()
	if !strings.HasPrefix(a, "grade_") {
		t.Errorf("unexpected id format: %q", a)
	}
	if a == b {
		t.Errorf("ids must be unique, got %q twice", a)
	}
}

func TestSlugFromRef(t *testing.T) {
	cases := []struct {
		ref  string
		want string
	}{
		{"https://github.com/student/rag-pipeline.git", "student-rag-pipeline"},
		{"git@github.com:student/rag-pipeline.git", "github-com-student-rag-pipeline"},
		{"/tmp/submissions/alice", "submissions-alice"},
		{"submission.tar.gz", "submission-tar-gz"},
		{"", "submission"},
		{"///", "submission"},
	}
	for _, tc := range cases {
		if got := result.SlugFromRef(tc.ref); got != tc.want {
			t.Errorf("SlugFromRef(%q): got %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestReportFileName(t *testing.T) {
	got := result.ReportFileName(0, "https://github.com/student/rag-pipeline")
	if got != "001-student-rag-pipeline.json" {
		t.Errorf("got %q", got)
	}
}
