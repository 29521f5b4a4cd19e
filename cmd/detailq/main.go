package main

import (
	"fmt"
	"os"
	"time"

	drainrun "github.com/rzbill/detailq/internal/cmd/drain"
	cfgpkg "github.com/rzbill/detailq/internal/config"
	"github.com/rzbill/detailq/internal/runtime"
	logpkg "github.com/rzbill/detailq/pkg/log"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "detailq",
		Short:         "Drain detail working files",
		Long:          "detailq reads the records of a detail working file, hands each one to processing and marks it done in place.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("DETAILQ_CONFIG"), "JSON config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading DETAILQ_* variables")
	rootCmd.PersistentFlags().String("file", "", "Detail working file (overrides config)")
	rootCmd.PersistentFlags().String("journal-dir", "", "Journal directory (default: <data dir>/journal)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")

	rootCmd.AddCommand(newDrainCommand(), newHistoryCommand(), newVersionCommand())
	return rootCmd
}

// loadConfig layers defaults, the config file, the dotenv file, DETAILQ_*
// variables and finally flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		return cfgpkg.Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("file"); v != "" {
		cfg.WorkFile = v
	}
	if v, _ := cmd.Flags().GetString("journal-dir"); v != "" {
		cfg.JournalDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg cfgpkg.Config) logpkg.Logger {
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Log.Level); e == nil {
			lvl = l
		}
		logger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Pebble logs through the standard library logger.
	logpkg.RedirectStdLog(logger)
	return logger
}

func newDrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Deliver and acknowledge every record of the work file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			wait, _ := cmd.Flags().GetBool("wait")

			// Run stops on SIGINT/SIGTERM itself.
			stats, err := drainrun.Run(cmd.Context(), drainrun.Options{
				Config:      cfg,
				DryRun:      dryRun,
				WaitForFile: wait,
				Logger:      newLogger(cfg),
			})
			if err != nil {
				return fmt.Errorf("drain: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered=%d patched=%d suppressed=%d failed=%d consumed=%d/%d\n",
				stats.Delivered, stats.Patched, stats.Suppressed, stats.Failed, stats.Consumed, stats.FileSize)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Deliver records without marking them done or journaling")
	cmd.Flags().Bool("wait", false, "Wait for the work file to appear")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled acknowledgments of the work file, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: newLogger(cfg)})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			cp, ok, err := rt.Journal().Cursor(cfg.WorkFile)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "consumed %d of %d bytes (checkpoint %s)\n",
					cp.Consumed, cp.FileSize, time.UnixMilli(cp.UpdatedMs).Format(time.RFC3339))
			}
			entries, err := rt.Journal().List(cfg.WorkFile, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				state := "done"
				switch {
				case e.Error != "":
					state = "error: " + e.Error
				case e.Suppressed:
					state = "suppressed"
				case !e.Patched:
					state = "unmarked"
				}
				fmt.Fprintf(out, "%s offset=%d len=%d priority=%s %s\n",
					time.UnixMilli(e.AckedMs).Format(time.RFC3339), e.Offset, e.Length, e.Priority, state)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum entries to show")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "detailq", version)
		},
	}
}
