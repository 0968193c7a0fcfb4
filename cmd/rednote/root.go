package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rednote/pkg/auth"
	"rednote/pkg/browser"
	"rednote/pkg/config"
	"rednote/pkg/engine"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/selectors"
	"rednote/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rednote",
	Short: "Extract notes from Xiaohongshu and replay interactions through a real browser",
	Long: `rednote drives a real Chrome session against Xiaohongshu (RedNote).

Features:
  - QR code login with cookies persisted to a file, keychain, encrypted file or Redis
  - Keyword search and profile extraction with sort and period filters
  - Single note and comment extraction from a URL or share text
  - Like and comment replay with human-like pacing
  - Long resumable crawls exported to disk, with Prometheus metrics`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if !verbose && !quiet {
			ui.SetProgressOnlyMode(true)
		}
		if noColor {
			ui.SetColor(false)
		}

		if verbose && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and runs it until
// an interrupt or termination signal.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("Error", err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./rednote.yaml or ~/.config/rednote/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotated file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send desktop notifications when long runs finish")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and results")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show logo, info lines and per-note progress")

	rootCmd.PersistentFlags().Bool("headless", true, "run Chrome without a window")
	rootCmd.PersistentFlags().String("chrome-path", "", "Chrome executable")
	rootCmd.PersistentFlags().String("cookie-store", "", "cookie store: file, encrypted, keyring, redis")
	rootCmd.PersistentFlags().String("cookie-path", "", "cookie jar file")
	rootCmd.PersistentFlags().String("profile", "", "account profile name for keyring and redis stores")
	rootCmd.PersistentFlags().String("selectors", "", "YAML file overriding page selectors")

	rootCmd.SetVersionTemplate(`rednote {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects every flag the user set explicitly, keyed by name,
// so only those override the file and environment configuration.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "bool":
			v, _ := cmd.Flags().GetBool(f.Name)
			flags[f.Name] = v
		case "string":
			flags[f.Name] = f.Value.String()
		}
	})
	return flags
}

// loadConfig loads the layered configuration and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, err
	}
	if quiet && !cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("rednote starting")
	return cfg, nil
}

// app bundles what a command needs to talk to the site.
type app struct {
	cfg     *config.Config
	store   auth.CookieStore
	metrics *metrics.Metrics
	engine  *engine.Engine
}

// newApp wires the engine from cfg. Close releases the cookie store.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.GetLogger()

	store, err := auth.NewStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie store: %w", err)
	}

	sel, err := selectors.Load(cfg.Selectors.File)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	if want := cfg.Selectors.Version; want != "" && want != sel.Version {
		log.WithFields(map[string]interface{}{
			"configured": want,
			"loaded":     sel.Version,
		}).Warn("selector set version differs from the configured one")
	}

	m := metrics.New()
	eng := engine.New(engine.Options{
		Launcher:  browser.NewChromeLauncher(log),
		Store:     store,
		Selectors: sel,
		Config:    cfg,
		Metrics:   m,
		Logger:    log,
	})

	return &app{cfg: cfg, store: store, metrics: m, engine: eng}, nil
}

func (a *app) Close() {
	closeStore(a.store)
}

func closeStore(store auth.CookieStore) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.WithError(err).Warn("failed to close cookie store")
		}
	}
}

// setup is the common prologue of commands that drive a browser.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}
