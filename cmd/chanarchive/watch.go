package main

import (
	"errors"
	"fmt"
	"time"

	"chanarchive/pkg/archiver"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/ui"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	watchFlags runFlags
	cronSpec   string
	runNow     bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [guild_id/channel_id ...]",
	Short: "Re-archive channels on a cron schedule",
	Long: `Run the archive for every target on a schedule until interrupted.

Each run resumes an interrupted walk from its checkpoint, otherwise it starts
at the newest message. Files already on disk are skipped, so a run only
fetches what is new. A run still in progress when the next one is due makes
the next one skip.`,
	Example: `  # Every night at 03:30
  chanarchive watch --cron "30 3 * * *"

  # Every six hours, starting immediately
  chanarchive watch 81384788765712384/81384788765712385 --cron "@every 6h" --now`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&cronSpec, "cron", "", "cron expression or descriptor (default from config, @daily)")
	watchCmd.Flags().BoolVar(&runNow, "now", false, "run once immediately before waiting for the schedule")
}

func runWatch(cmd *cobra.Command, args []string) error {
	flags, err := watchFlags.toMap(args)
	if err != nil {
		return err
	}
	flags["cron"] = cronSpec

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	watchFlags.apply(cfg)

	targets := archiver.Targets(cfg)
	if len(targets) == 0 {
		return errors.New("no channels to watch: pass <guild_id>/<channel_id> or set targets in the config file")
	}

	if err := resolveToken(cfg, watchFlags.account); err != nil {
		return err
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	log := logger.GetLogger()
	job := func() {
		if err := s.run(ctx, targets, archiver.RunOptions{Resume: true}); err != nil {
			log.WithError(err).Error("Scheduled run failed")
			ui.PrintWarning("Scheduled run failed", err.Error())
		}
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(cfg.Schedule.Cron, job)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", cfg.Schedule.Cron, err)
	}

	if runNow {
		job()
		if ctx.Err() != nil {
			return nil
		}
	}

	c.Start()
	ui.PrintInfo("Schedule", cfg.Schedule.Cron)
	ui.PrintInfo("Next run", c.Entry(id).Next.Format(time.RFC1123))

	<-ctx.Done()
	ui.PrintInfo("Stopping", "waiting for the current run to finish")
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(time.Minute):
		log.Warn("Scheduled run did not stop in time")
	}
	return nil
}

// cronLogger routes cron's own log lines through the application logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields("cron: "+msg, kv(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields("cron: "+msg, kv(keysAndValues))
}

func kv(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

var _ cron.Logger = cronLogger{}
