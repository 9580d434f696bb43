package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"raggrader/internal/config"
	"raggrader/internal/report"
	"raggrader/internal/result"
)

func sampleCriteria() []config.Criterion {
	return []config.Criterion{
		{ID: "functional", Name: "Functional pipeline tests", Weight: 40, MaxScore: 100},
		{ID: "retrieval", Name: "Retrieval quality", Weight: 30, MaxScore: 100},
	}
}

func sampleResult() result.GradingResult {
	return result.GradingResult{
		SubmissionID: "https://github.com/student/rag-pipeline",
		Success:      true,
		Entries: []result.ScoreEntry{
			{CriterionID: "functional", Raw: 90, Max: 100, Rationale: "9 of 10 tests passed"},
			{CriterionID: "retrieval", Raw: 75, Max: 100, Rationale: "precision@5 0.750 over 3 queries (3 answered)", Truncated: true},
		},
		Total:     84.0,
		Grade:     "B",
		DurationS: 42,
	}
}

func TestBuild(t *testing.T) {
	p := report.Build(sampleResult(), sampleCriteria())

	if p.SubmissionID != "https://github.com/student/rag-pipeline" {
		t.Errorf("submission id: got %q", p.SubmissionID)
	}
	if !p.Success || p.TotalScore != 84.0 || p.Grade != "B" {
		t.Errorf("summary fields: %+v", p)
	}
	if len(p.Criteria) != 2 {
		t.Fatalf("criteria: got %d, want 2", len(p.Criteria))
	}
	if p.Criteria[0].Name != "Functional pipeline tests" {
		t.Errorf("criterion name from rubric: got %q", p.Criteria[0].Name)
	}
	if p.Criteria[1].RawScore != 75 || p.Criteria[1].MaxScore != 100 {
		t.Errorf("scores: %+v", p.Criteria[1])
	}
	if !p.Criteria[1].Truncated {
		t.Error("truncation flag lost")
	}
	if p.Error != "" {
		t.Errorf("unexpected top-level error %q", p.Error)
	}
}

func TestBuildFoldsCriterionError(t *testing.T) {
	res := sampleResult()
	res.Entries[0].Err = "criterion evaluator panicked: nil map"
	res.Entries[0].Rationale = "criterion evaluation failed"

	p := report.Build(res, sampleCriteria())
	if !strings.Contains(p.Criteria[0].Rationale, "panicked") {
		t.Errorf("criterion error must surface in rationale: %q", p.Criteria[0].Rationale)
	}
}

func TestBuildFailedAcquisition(t *testing.T) {
	res := result.GradingResult{
		SubmissionID: "https://github.com/student/missing",
		Success:      false,
		Total:        0,
		Grade:        "F",
		Err:          `acquiring "https://github.com/student/missing": not found`,
	}
	p := report.Build(res, sampleCriteria())
	if p.Success {
		t.Error("success must be false")
	}
	if len(p.Criteria) != 0 {
		t.Errorf("failed acquisition carries no criteria, got %d", len(p.Criteria))
	}
	if p.Error == "" {
		t.Error("top-level error missing")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := report.Build(sampleResult(), sampleCriteria())

	path, err := report.Write(dir, 0, p)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(path, "001-student-rag-pipeline.json") {
		t.Errorf("report path: got %q", path)
	}

	got, err := report.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.SubmissionID != p.SubmissionID || got.TotalScore != p.TotalScore || got.Grade != p.Grade {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Criteria) != len(p.Criteria) {
		t.Errorf("criteria count: got %d", len(got.Criteria))
	}
}

func TestReadDirPreservesBatchOrder(t *testing.T) {
	dir := t.TempDir()
	refs := []string{"zeta/last", "alpha/first", "mid/one"}
	for i, ref := range refs {
		p := report.Payload{SubmissionID: ref, Success: true, Grade: "A"}
		if _, err := report.Write(dir, i, p); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	payloads, err := report.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(payloads) != 3 {
		t.Fatalf("got %d payloads", len(payloads))
	}
	for i, ref := range refs {
		if payloads[i].SubmissionID != ref {
			t.Errorf("payloads[%d]: got %q, want %q", i, payloads[i].SubmissionID, ref)
		}
	}
}

func summaryFixture() []report.Payload {
	return []report.Payload{
		{SubmissionID: "a/pipeline", Success: true, TotalScore: 92.5, Grade: "A"},
		{SubmissionID: "b/pipeline", Success: true, TotalScore: 71.0, Grade: "C"},
		{SubmissionID: "c/broken", Success: false, TotalScore: 0, Grade: "F", Error: "acquiring: not found"},
		{SubmissionID: "d/late", Cancelled: true, TotalScore: 0, Grade: "F", Error: "grading cancelled"},
	}
}

func TestSummarizeTable(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Summarize(&buf, summaryFixture(), "table"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"a/pipeline", "92.5", "failed", "cancelled",
		"4 submissions: 2 graded, 1 failed, 1 cancelled",
		"mean score 81.8", "A=1 C=1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestSummarizeMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Summarize(&buf, summaryFixture(), "markdown"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "| Submission |") {
		t.Errorf("markdown header missing:\n%s", out)
	}
	if !strings.Contains(out, "| a/pipeline | ok | 92.5 | A |") {
		t.Errorf("markdown row missing:\n%s", out)
	}
}

func TestSummarizeJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Summarize(&buf, summaryFixture(), "json"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	var decoded []report.Payload
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("summary json does not parse: %v", err)
	}
	if len(decoded) != 4 {
		t.Errorf("got %d payloads", len(decoded))
	}
}

func TestGenerateFromRunDir(t *testing.T) {
	dir := t.TempDir()
	p := report.Build(sampleResult(), sampleCriteria())
	if _, err := report.Write(dir, 0, p); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var buf bytes.Buffer
	if err := report.Generate(dir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "student/rag-pipeline") {
		t.Errorf("output missing submission:\n%s", buf.String())
	}

	if err := report.Generate(t.TempDir(), "table", &buf); err == nil {
		t.Error("empty run dir must be an error")
	}
}
