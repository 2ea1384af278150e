package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/config"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "datachat: chat with your data",
	Long: `datachat infers the schema of uploaded CSV, JSON, SQLite and SQL dump
files, samples their rows and answers SQL questions about them.

Use "datachat serve" to start the HTTP API and "datachat infer" to inspect a
file from the terminal.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = version + " (" + commit + ", " + date + ")"
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// effectiveLevel prefers --log-level over the config file.
func effectiveLevel(cfg *config.Config) string {
	if logLevel != "" {
		return logLevel
	}
	return cfg.Logging.Level
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.datachat/datachat.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}
