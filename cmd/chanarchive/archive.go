package main

import (
	"errors"

	"chanarchive/pkg/archiver"
	"chanarchive/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	archiveFlags runFlags
	fromDate     string
	resume       bool
	forceRestart bool
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive [guild_id/channel_id ...]",
	Short: "Download the media of one or more channels",
	Long: `Walk each channel backward one day at a time and download every
attachment and embedded image or video.

The walk starts at --from when given, otherwise at the saved checkpoint when
--resume is set, otherwise at the day of the newest message in the channel.
It ends at 2015-01-01. Channels given as arguments replace the targets of
the configuration file.

Files are written to <output>/scrapes/<guild>/<channel>/.`,
	Example: `  # Archive one channel
  chanarchive archive 81384788765712384/81384788765712385

  # Start at a given day with five parallel downloads
  chanarchive archive 81384788765712384/81384788765712385 --from 2023-06-30 --concurrent 5

  # Continue an interrupted walk
  chanarchive archive --resume

  # Stop at the first failure and keep an index of everything fetched
  chanarchive archive --error-policy fail_fast --index ./archive.db`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveFlags.register(archiveCmd)
	archiveCmd.Flags().StringVar(&fromDate, "from", "", "first day to scan (YYYY-MM-DD), walking backward from it")
	archiveCmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpoint")
	archiveCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard any checkpoint and start over")
	archiveCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

func runArchive(cmd *cobra.Command, args []string) error {
	flags, err := archiveFlags.toMap(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	archiveFlags.apply(cfg)

	from, err := parseDay(fromDate, cfg.Location())
	if err != nil {
		return err
	}

	targets := archiver.Targets(cfg)
	if len(targets) == 0 {
		return errors.New("no channels to archive: pass <guild_id>/<channel_id> or set targets in the config file")
	}

	if err := resolveToken(cfg, archiveFlags.account); err != nil {
		return err
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	ui.PrintInfo("Error policy", cfg.Errors.Policy)

	err = s.run(cmd.Context(), targets, archiver.RunOptions{
		From:         from,
		Resume:       resume,
		ForceRestart: forceRestart,
	})
	if err != nil {
		return err
	}

	ui.PrintSuccess("[ARCHIVE COMPLETE]")
	return nil
}
