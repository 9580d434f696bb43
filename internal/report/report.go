// Package report assembles the structured grading payload handed to
// external renderers, persists per-submission reports as JSON, and renders
// human-readable batch summaries. Nothing here executes candidate code.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"raggrader/internal/config"
	"raggrader/internal/result"
)

// Payload is the boundary artifact consumed by the CLI, CSV, and HTML
// collaborators. They treat it as read-only input.
type Payload struct {
	SubmissionID string            `json:"submission_id"`
	Success      bool              `json:"success"`
	Cancelled    bool              `json:"cancelled,omitempty"`
	TotalScore   float64           `json:"total_score"`
	Grade        string            `json:"grade"`
	Criteria     []CriterionDetail `json:"criteria"`
	Error        string            `json:"error,omitempty"`
	DurationS    int               `json:"duration_s"`
}

// CriterionDetail is one rubric criterion's breakdown within a Payload.
type CriterionDetail struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	RawScore  float64 `json:"raw_score"`
	MaxScore  float64 `json:"max_score"`
	Rationale string  `json:"rationale,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
}

// Build assembles the payload for one grading result. Criterion display
// names come from the rubric; everything else is copied from the result, so
// the payload is always self-consistent with it.
func Build(res result.GradingResult, criteria []config.Criterion) Payload {
	names := make(map[string]string, len(criteria))
	for _, c := range criteria {
		names[c.ID] = c.Name
	}
	details := make([]CriterionDetail, 0, len(res.Entries))
	for _, e := range res.Entries {
		name := names[e.CriterionID]
		if name == "" {
			name = e.CriterionID
		}
		rationale := e.Rationale
		if e.Err != "" {
			if rationale == "" {
				rationale = e.Err
			} else if !strings.Contains(rationale, e.Err) {
				rationale += "; error: " + e.Err
			}
		}
		details = append(details, CriterionDetail{
			ID:        e.CriterionID,
			Name:      name,
			RawScore:  e.Raw,
			MaxScore:  e.Max,
			Rationale: rationale,
			Truncated: e.Truncated,
		})
	}
	return Payload{
		SubmissionID: res.SubmissionID,
		Success:      res.Success,
		Cancelled:    res.Cancelled,
		TotalScore:   res.Total,
		Grade:        res.Grade,
		Criteria:     details,
		Error:        res.Err,
		DurationS:    res.DurationS,
	}
}

// Write persists the payload as <nnn>-<slug>.json in dir and returns the
// full path.
func Write(dir string, index int, p Payload) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(dir, result.ReportFileName(index, p.SubmissionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Read loads one stored report.
func Read(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &p, nil
}

// ReadDir loads every stored report in a run directory, ordered by file
// name. Report names carry the batch position prefix, so this restores the
// original submission order.
func ReadDir(dir string) ([]Payload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading run dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	payloads := make([]Payload, 0, len(names))
	for _, name := range names {
		p, err := Read(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, *p)
	}
	return payloads, nil
}

// Generate reads the stored reports of a run and renders their summary.
func Generate(runDir, format string, w io.Writer) error {
	payloads, err := ReadDir(runDir)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return fmt.Errorf("no reports found in %s", runDir)
	}
	return Summarize(w, payloads, format)
}

// Summarize renders a batch summary in the requested format: table
// (default), markdown, or json.
func Summarize(w io.Writer, payloads []Payload, format string) error {
	switch format {
	case "markdown":
		return writeMarkdown(payloads, w)
	case "json":
		return writeJSON(payloads, w)
	default:
		return writeTable(payloads, w)
	}
}

type batchStats struct {
	graded    int
	failed    int
	cancelled int
	meanScore float64
	grades    []gradeCount
}

type gradeCount struct {
	grade string
	count int
}

func statsOf(payloads []Payload) batchStats {
	var s batchStats
	byGrade := map[string]int{}
	var sum float64
	for _, p := range payloads {
		switch {
		case p.Cancelled:
			s.cancelled++
		case !p.Success:
			s.failed++
		default:
			s.graded++
			sum += p.TotalScore
			byGrade[p.Grade]++
		}
	}
	if s.graded > 0 {
		s.meanScore = sum / float64(s.graded)
	}
	for grade, count := range byGrade {
		s.grades = append(s.grades, gradeCount{grade, count})
	}
	sort.Slice(s.grades, func(i, j int) bool {
		return s.grades[i].grade < s.grades[j].grade
	})
	return s
}

func (s batchStats) distribution() string {
	if len(s.grades) == 0 {
		return ""
	}
	parts := make([]string, len(s.grades))
	for i, g := range s.grades {
		parts[i] = fmt.Sprintf("%s=%d", g.grade, g.count)
	}
	return strings.Join(parts, " ")
}

func statusOf(p Payload) string {
	switch {
	case p.Cancelled:
		return "cancelled"
	case !p.Success:
		return "failed"
	default:
		return "ok"
	}
}

func writeTable(payloads []Payload, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMISSION\tSTATUS\tSCORE\tGRADE\tERROR")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, p := range payloads {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\n",
			p.SubmissionID, statusOf(p), p.TotalScore, p.Grade, clip(p.Error, 60))
	}
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	s := statsOf(payloads)
	fmt.Fprintf(tw, "%d submissions: %d graded, %d failed, %d cancelled\n",
		len(payloads), s.graded, s.failed, s.cancelled)
	if s.graded > 0 {
		fmt.Fprintf(tw, "mean score %.1f\tgrades: %s\n", s.meanScore, s.distribution())
	}
	return tw.Flush()
}

func writeMarkdown(payloads []Payload, w io.Writer) error {
	fmt.Fprintln(w, "| Submission | Status | Score | Grade | Error |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, p := range payloads {
		fmt.Fprintf(w, "| %s | %s | %.1f | %s | %s |\n",
			p.SubmissionID, statusOf(p), p.TotalScore, p.Grade, clip(p.Error, 60))
	}
	s := statsOf(payloads)
	fmt.Fprintf(w, "\n%d submissions: %d graded, %d failed, %d cancelled",
		len(payloads), s.graded, s.failed, s.cancelled)
	if s.graded > 0 {
		fmt.Fprintf(w, " — mean score %.1f, grades %s", s.meanScore, s.distribution())
	}
	fmt.Fprintln(w)
	return nil
}

func writeJSON(payloads []Payload, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payloads)
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
