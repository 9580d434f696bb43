package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"raggrader/internal/config"
)

var (
	cfgFile     string
	flagVerbose bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "raggrader",
		Short: "Automated grading for student RAG pipeline submissions",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "raggrader.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	root.AddCommand(newGradeCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newRubricCmd())
	return root
}

// loadConfig reads the configured file, falling back to the built-in
// defaults when the default file is simply absent. A missing file named
// explicitly on the command line is still an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg := config.Default()
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(cfgFile)
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
