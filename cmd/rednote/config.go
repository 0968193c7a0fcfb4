package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rednote/pkg/config"
	"rednote/pkg/selectors"
	"rednote/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage rednote configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REDNOTE_*)
  - .env files (./.env and ~/.rednote.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default value",
	Long: `Write a configuration file with all available options set to their defaults.

The file is created as 'rednote.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The Redis password
is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration. This checks:
  - YAML syntax
  - Value ranges and known enum values
  - Output and log directory accessibility
  - The selector override file, if any`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "rednote.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the file, for example to pick a cookie store or output directory")
	fmt.Fprintln(out, "2. Run 'rednote config validate' to check it")
	fmt.Fprintln(out, "3. Run 'rednote login' to create a session")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	display := *cfg
	if display.Redis.Password != "" {
		display.Redis.Password = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(out, string(data))
	return nil
}

// configProblems runs the checks that need the filesystem.
func configProblems(cfg *config.Config) (problems, warnings []string) {
	if cfg.Output.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if _, err := selectors.Load(cfg.Selectors.File); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := os.Stat(cfg.Session.CookiePath); os.IsNotExist(err) && cfg.Session.CookieStore == "file" {
		warnings = append(warnings, "no cookie jar yet, run 'rednote login'")
	}
	if !cfg.Browser.Headless {
		warnings = append(warnings, "browser.headless is off, every command opens a window")
	}
	return problems, warnings
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems, warnings := configProblems(cfg)
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Cookie store: %s (%s)\n", cfg.Session.CookieStore, cfg.Session.CookiePath)
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(out, "  Media: %d workers, %d requests/minute\n", cfg.Media.Concurrency, cfg.Media.RequestsPerMinute)
	fmt.Fprintf(out, "  Retry: %s, %d attempts\n", cfg.Retry.Strategy, cfg.Retry.MaxAttempts)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
