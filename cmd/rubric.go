package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRubricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rubric",
		Short: "Print the effective grading rubric",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tWEIGHT\tMAX\tTIMEOUT")
			for _, c := range cfg.Rubric {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.0f\t%s\n",
					c.ID, c.Name, c.Kind, c.Weight, c.MaxScore, c.Timeout(cfg.Sandbox.Timeout()))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Print("\nGrade thresholds:")
			for _, th := range cfg.GradeThresholds {
				fmt.Printf(" %s>=%.0f", th.Letter, th.Score)
			}
			fmt.Println()
			return nil
		},
	}
}
