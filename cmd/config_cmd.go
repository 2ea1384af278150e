package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and initialize the datachat configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Server:\n")
		fmt.Fprintf(out, "    Port:           %d\n", cfg.Server.Port)
		fmt.Fprintf(out, "    CORS:           %t\n", cfg.Server.CORS)
		fmt.Fprintf(out, "    Static dir:     %s\n", orNone(cfg.Server.StaticDir))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Mongo:\n")
		fmt.Fprintf(out, "    URI:            %s\n", orNone(maskSecret(cfg.Mongo.URI)))
		fmt.Fprintf(out, "    Database:       %s\n", cfg.Mongo.Database)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Storage:\n")
		fmt.Fprintf(out, "    Backend:        %s\n", cfg.Storage.Backend)
		if cfg.Storage.Backend == config.StorageS3 {
			fmt.Fprintf(out, "    Bucket:         %s\n", cfg.Storage.Bucket)
			fmt.Fprintf(out, "    Prefix:         %s\n", orNone(cfg.Storage.Prefix))
			fmt.Fprintf(out, "    Region:         %s\n", orNone(cfg.Storage.Region))
		} else {
			fmt.Fprintf(out, "    Directory:      %s\n", cfg.Storage.Directory)
		}
		fmt.Fprintf(out, "    Max upload:     %d bytes\n", cfg.Upload.MaxBytes)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  LLM:\n")
		fmt.Fprintf(out, "    Provider:       %s\n", orNone(cfg.LLM.Provider))
		if cfg.LLM.Provider != "" {
			fmt.Fprintf(out, "    Model:          %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "    Endpoint:       %s\n", orNone(cfg.LLM.Endpoint))
			fmt.Fprintf(out, "    API key:        %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Fprintf(out, "    Graph dir:      %s\n", cfg.LLM.GraphDir)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Logging:\n")
		fmt.Fprintf(out, "    Level:          %s\n", cfg.Logging.Level)
		fmt.Fprintf(out, "    Directory:      %s\n", cfg.Logging.Directory)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		problems := cfg.Validate()
		if len(problems) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Validation errors:")
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
			}
			return fmt.Errorf("%d validation error(s)", len(problems))
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
