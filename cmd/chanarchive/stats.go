package main

import (
	"errors"
	"fmt"
	"time"

	"chanarchive/pkg/index"
	"chanarchive/pkg/ui"

	"github.com/spf13/cobra"
)

var statsIndexPath string

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show per-channel totals from the archive index",
	Example: `  chanarchive stats --index ./archive.db`,
	Args:    cobra.NoArgs,
	RunE:    runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsIndexPath, "index", "", "SQLite archive index path (default from config)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"index": statsIndexPath})
	if err != nil {
		return err
	}
	if cfg.Index.Path == "" {
		return errors.New("no index configured: pass --index or set index.path")
	}

	store, err := index.Open(cfg.Index.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.ChannelStats(cmd.Context())
	if err != nil {
		return err
	}

	ui.Default().Table("Archive Index", statsHeaders, statsRows(stats))
	return nil
}

var statsHeaders = []string{"Guild", "Channel", "Runs", "Days", "Empty", "Failed", "Pages lost", "Files", "Skipped", "Incomplete", "Errors", "Size", "Last run"}

func statsRows(stats []index.ChannelStats) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		last := "-"
		if !s.LastRun.IsZero() {
			last = s.LastRun.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			s.GuildID,
			s.ChannelID,
			fmt.Sprint(s.Runs),
			fmt.Sprint(s.DaysScanned),
			fmt.Sprint(s.DaysEmpty),
			fmt.Sprint(s.DaysFailed),
			fmt.Sprint(s.PagesLost),
			fmt.Sprint(s.FilesDownloaded),
			fmt.Sprint(s.FilesSkipped),
			fmt.Sprint(s.FilesIncomplete),
			fmt.Sprint(s.FilesFailed),
			ui.FormatBytes(s.Bytes),
			last,
		})
	}
	return rows
}
