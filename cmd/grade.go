package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"raggrader/internal/grader"
	"raggrader/internal/report"
)

func newGradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grade <ref>",
		Short: "Grade a single submission and print its report",
		Long:  "Grade one submission, identified by a git URL, local directory, or archive path, and print the structured report payload as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
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

			res := engine.GradeSubmission(cmd.Context(), args[0])
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report.Build(res, cfg.Rubric)); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("grading failed: %s", res.Err)
			}
			return nil
		},
	}
}
