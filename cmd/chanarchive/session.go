package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chanarchive/pkg/archiver"
	"chanarchive/pkg/auth"
	"chanarchive/pkg/config"
	"chanarchive/pkg/discord"
	"chanarchive/pkg/index"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/metrics"
	"chanarchive/pkg/search"
	"chanarchive/pkg/ui"
)

// loadConfig loads the configuration with the global flags applied and
// initializes the global logger from it.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.GetLogger().WithField("version", version).Debug("chanarchive starting")
	return cfg, nil
}

// resolveToken fills cfg.Discord.Token. A token from the config file,
// environment or --token wins unless a stored account is named explicitly.
func resolveToken(cfg *config.Config, accountName string) error {
	log := logger.GetLogger()
	if accountName == "" && cfg.Discord.Token != "" {
		log.Info("Using token from configuration")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		return fmt.Errorf("no token found: run 'chanarchive auth login' or set CHANARCHIVE_TOKEN: %w", err)
	}
	if err != nil {
		return err
	}

	cfg.Discord.Token = account.Token
	if account.UserAgent != "" {
		cfg.Discord.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Name).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Name)
	return nil
}

// session owns everything one archive run or watch loop shares
type session struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Collector
	index    *index.Store
	server   *http.Server
	progress *ui.ProgressDisplay
	archiver *archiver.Archiver
}

func newSession(cfg *config.Config) (*session, error) {
	s := &session{
		cfg:      cfg,
		log:      logger.GetLogger(),
		progress: ui.NewProgressDisplay(ui.Default()),
	}

	if cfg.Metrics.Addr != "" {
		s.metrics = metrics.New()
		s.serveMetrics()
	}

	client, err := discord.NewFromConfig(cfg, s.log, s.metrics)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	opts := []archiver.Option{
		archiver.WithLogger(s.log),
		archiver.WithMetrics(s.metrics),
		archiver.WithProgress(s.progress),
	}
	if cfg.Index.Path != "" {
		s.index, err = index.Open(cfg.Index.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, archiver.WithIndex(s.index))
	}

	s.archiver, err = archiver.New(cfg, client, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize archiver: %w", err)
	}
	return s, nil
}

func (s *session) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())
	s.server = &http.Server{
		Addr:              s.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Metrics server stopped")
		}
	}()
	s.log.WithField("addr", s.cfg.Metrics.Addr).Info("Serving metrics")
}

// run archives every target once and prints the per-channel table
func (s *session) run(ctx context.Context, targets []search.Target, opts archiver.RunOptions) error {
	ui.PrintHighlight(fmt.Sprintf("[ARCHIVING %d CHANNEL(S)]", len(targets)))
	summaries, err := s.archiver.ArchiveAll(ctx, targets, opts)
	printSummaries(summaries)

	days, failed, files, bytes := s.progress.Totals()
	ui.PrintInfo("Days scanned", fmt.Sprintf("%d (%d failed)", days, failed))
	ui.PrintInfo("Files downloaded", fmt.Sprintf("%d (%s)", files, ui.FormatBytes(bytes)))
	ui.PrintInfo("Elapsed", s.progress.Elapsed().Round(time.Second).String())
	return err
}

// Close stops the metrics listener and closes the index
func (s *session) Close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to stop metrics server")
		}
		cancel()
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close index")
		}
	}
}

func printSummaries(summaries []*archiver.Summary) {
	headers := []string{"Channel", "Start", "Oldest", "Days", "Empty", "Failed", "Pages lost", "Files", "Skipped", "Incomplete", "Size", "Status"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		if s == nil {
			continue
		}
		status := "done"
		if s.Err != nil {
			status = "interrupted"
		}
		rows = append(rows, []string{
			s.GuildName + "/" + s.ChannelName,
			formatDay(s.StartDay),
			formatDay(s.LastDay),
			fmt.Sprint(s.DaysScanned),
			fmt.Sprint(s.DaysEmpty),
			fmt.Sprint(s.DaysFailed),
			fmt.Sprint(s.PagesLost),
			fmt.Sprint(s.Files.Completed),
			fmt.Sprint(s.Files.Skipped),
			fmt.Sprint(s.Files.Incomplete),
			ui.FormatBytes(s.Files.Bytes),
			status,
		})
	}
	ui.Default().Table("Channels", headers, rows)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
