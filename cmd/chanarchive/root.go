package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"chanarchive/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chanarchive",
	Short: "Archive the media posted in Discord channels",
	Long: `chanarchive walks a channel backward one calendar day at a time, from
today (or the newest message) down to 2015-01-01, and downloads every
attachment and embedded image or video it finds.

Features:
  - Token stored in the system keychain or an encrypted file
  - Credential sent only to Discord hosts, even across redirects
  - Shared 429 cooldown and optional request pacing
  - Chunked downloads with byte ranges
  - Resumable walks through per-channel checkpoints
  - SQLite archive index and Prometheus metrics
  - Scheduled re-runs with cron expressions`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.Default().SetQuiet(true)
		}
	},
}

// Execute runs the root command and returns the process exit code
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("Error", err.Error())
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.chanarchive.yaml or ~/.config/chanarchive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`chanarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetErr(os.Stderr)
}
