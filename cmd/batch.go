package cmd

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"raggrader/internal/grader"
	"raggrader/internal/report"
)

var flagConcurrency int

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <refs-file>",
		Short: "Grade every submission listed in a file",
		Long:  "Read submission references from a file (one per line, # comments and blank lines skipped), grade them concurrently, persist per-submission reports plus a summary.csv into the run directory, and print the batch summary.",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "max concurrent gradings (default from config)")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	refs, err := readRefs(args[0])
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no submission references in %s", args[0])
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, err := grader.New(cfg, log)
	if err != nil {
		return err
	}
	if dir := engine.RunDir(); dir != "" {
		fmt.Printf("Run directory: %s\n\n", dir)
	}

	results := engine.GradeBatch(cmd.Context(), refs, flagConcurrency)

	payloads := make([]report.Payload, len(results))
	for i, res := range results {
		payloads[i] = report.Build(res, cfg.Rubric)
	}
	if dir := engine.RunDir(); dir != "" {
		if err := writeSummaryCSV(filepath.Join(dir, "summary.csv"), payloads); err != nil {
			return err
		}
	}
	return report.Summarize(os.Stdout, payloads, "table")
}

func readRefs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening refs file: %w", err)
	}
	defer f.Close()

	var refs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading refs file: %w", err)
	}
	return refs, nil
}

func writeSummaryCSV(path string, payloads []report.Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"submission_id", "status", "total_score", "grade", "error"}); err != nil {
		return err
	}
	for _, p := range payloads {
		rec := []string{
			p.SubmissionID,
			payloadStatus(p),
			strconv.FormatFloat(p.TotalScore, 'f', 1, 64),
			p.Grade,
			p.Error,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func payloadStatus(p report.Payload) string {
	switch {
	case p.Cancelled:
		return "cancelled"
	case !p.Success:
		return "failed"
	default:
		return "graded"
	}
}
