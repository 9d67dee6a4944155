// Package archiver walks channels backward one day at a time, from a start
// day down to the backend epoch, downloading the media each day references.
package archiver

import (
	"context"
	"fmt"
	"time"

	"chanarchive/internal/downloader"
	"chanarchive/pkg/checkpoint"
	"chanarchive/pkg/config"
	"chanarchive/pkg/errors"
	"chanarchive/pkg/index"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/metrics"
	"chanarchive/pkg/retry"
	"chanarchive/pkg/search"
	"chanarchive/pkg/selector"
	"chanarchive/pkg/snowflake"
	"chanarchive/pkg/storage"
	"chanarchive/pkg/ui"

	"github.com/bwmarrin/discordgo"
)

// Backend is the part of the transport the archiver calls
type Backend interface {
	search.Fetcher
	downloader.Sender
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	LatestMessage(ctx context.Context, guildID, channelID string) (*discordgo.Message, error)
}

// DayObserver is told about every finished day
type DayObserver interface {
	DayDone(r ui.DayReport)
}

// RunOptions controls where a channel walk starts
type RunOptions struct {
	// From overrides every other start day source when set
	From time.Time
	// Resume continues from a saved cursor
	Resume bool
	// ForceRestart discards a saved cursor
	ForceRestart bool
}

// Archiver drives the day walk for one or more channels
type Archiver struct {
	cfg        *config.Config
	client     Backend
	paginator  *search.Paginator
	downloader downloader.Downloader
	storage    *storage.Manager
	clock      snowflake.Clock
	query      search.Query
	filter     selector.TypeFilter

	index    *index.Store
	metrics  *metrics.Collector
	progress DayObserver
	logger   logger.Logger
}

// Option configures an Archiver
type Option func(*Archiver)

func WithLogger(l logger.Logger) Option {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(a *Archiver) { a.metrics = m }
}

// WithIndex records every day and download in the archive index
func WithIndex(s *index.Store) Option {
	return func(a *Archiver) { a.index = s }
}

func WithProgress(o DayObserver) Option {
	return func(a *Archiver) { a.progress = o }
}

// WithDownloader replaces the chunked downloader
func WithDownloader(d downloader.Downloader) Option {
	return func(a *Archiver) { a.downloader = d }
}

// WithClock fixes the zone days are cut in
func WithClock(c snowflake.Clock) Option {
	return func(a *Archiver) { a.clock = c }
}

// New creates an Archiver writing below cfg.Output.BaseDirectory
func New(cfg *config.Config, client Backend, opts ...Option) (*Archiver, error) {
	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.SanitizeFileNames)
	if err != nil {
		return nil, err
	}

	a := &Archiver{
		cfg:     cfg,
		client:  client,
		storage: store,
		clock:   snowflake.NewClock(cfg.Location()),
		query:   search.QueryFromConfig(cfg.Query),
		filter:  selector.TypeFilter(cfg.Types),
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.paginator = search.NewPaginator(client, a.logger)
	if cfg.Retry.DayAttempts > 1 {
		a.paginator.FirstPage = &retry.Config{
			MaxAttempts: cfg.Retry.DayAttempts,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    cfg.Retry.BaseDelay,
				MaxDelay:     cfg.Retry.MaxDelay,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
			RetryIf: retry.DefaultRetryIf,
		}
	}
	if a.downloader == nil {
		a.downloader = downloader.NewChunked(client, cfg.Download.ChunkSize, a.logger)
	}
	return a, nil
}

// LatestMessageDate returns the day of the newest message in a channel.
// ok is false for an empty channel.
func (a *Archiver) LatestMessageDate(ctx context.Context, t search.Target) (day time.Time, ok bool, err error) {
	msg, err := a.client.LatestMessage(ctx, t.GuildID, t.ChannelID)
	if err != nil {
		return time.Time{}, false, err
	}
	if msg == nil {
		return time.Time{}, false, nil
	}
	id, err := snowflake.ParseID(msg.ID)
	if err != nil {
		return time.Time{}, false, err
	}
	return a.clock.Day(snowflake.Time(id)), true, nil
}

// names resolves the on-disk guild and channel directory names
func (a *Archiver) names(ctx context.Context, t search.Target) (string, string) {
	guildName := ""
	if g, err := a.client.Guild(ctx, t.GuildID); err == nil && g.Name != "" {
		guildName = a.displayName(t.GuildID, g.Name)
	} else {
		a.logger.WarnWithFields("Unable to resolve guild name, generating one", map[string]interface{}{
			"guild_id": t.GuildID,
		})
		guildName = fallbackName(t.GuildID)
	}

	channelName := ""
	if c, err := a.client.Channel(ctx, t.ChannelID); err == nil && c.Name != "" {
		channelName = a.displayName(t.ChannelID, c.Name)
	} else {
		a.logger.WarnWithFields("Unable to resolve channel name, generating one", map[string]interface{}{
			"channel_id": t.ChannelID,
		})
		channelName = fallbackName(t.ChannelID)
	}
	return guildName, channelName
}

func (a *Archiver) displayName(id, name string) string {
	if a.cfg.Output.SanitizeFileNames {
		name = storage.SafeName(name)
	}
	return fmt.Sprintf("%s_%s", id, name)
}

func fallbackName(id string) string {
	return fmt.Sprintf("%s_%s", id, storage.RandomSuffix(8))
}

// startDay applies the precedence: explicit date, saved cursor, newest
// message, today.
func (a *Archiver) startDay(ctx context.Context, t search.Target, opts RunOptions, cursor *checkpoint.Cursor) time.Time {
	if !opts.From.IsZero() {
		return a.clock.Day(opts.From)
	}
	if cursor != nil {
		return a.clock.Day(cursor.CurrentDay)
	}

	day, ok, err := a.LatestMessageDate(ctx, t)
	switch {
	case err != nil:
		a.logger.WarnWithFields("Latest message probe failed, starting today", map[string]interface{}{
			"channel_id": t.ChannelID,
			"error":      err.Error(),
		})
	case ok:
		return day
	}
	return a.clock.Today()
}

func (a *Archiver) checkpointFor(t search.Target, opts RunOptions) (*checkpoint.Manager, *checkpoint.Cursor, error) {
	if !a.cfg.Checkpoint.Enabled {
		return nil, nil, nil
	}

	mgr, err := checkpoint.NewManager(a.cfg.Checkpoint.Directory, t.GuildID, t.ChannelID)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case opts.ForceRestart:
		if err := mgr.Delete(); err != nil {
			a.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		return mgr, nil, nil
	case opts.Resume:
		cursor, err := mgr.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		return mgr, cursor, nil
	case mgr.Exists():
		a.logger.WarnWithFields("Existing checkpoint ignored; pass --resume to continue it", map[string]interface{}{
			"channel_id": t.ChannelID,
			"path":       mgr.Path(),
		})
	}
	return mgr, nil, nil
}

func (a *Archiver) failFast() bool {
	return a.cfg.FailFast()
}

// errDayFailed wraps a day-level failure for fail-fast mode
func errDayFailed(day time.Time, err error) error {
	return fmt.Errorf("day %s: %w", day.Format(time.DateOnly), err)
}

func errPagesLost(day time.Time, lost int) error {
	return errors.New(errors.ErrorTypePartialPageLoss, 0, "day %s: %d search pages lost", day.Format(time.DateOnly), lost)
}

func errIncomplete(r downloader.Result) error {
	if r.Err != nil {
		return errors.Wrap(errors.ErrorTypeDownloadIncomplete, r.Err, "download "+r.Task.URL)
	}
	return errors.New(errors.ErrorTypeDownloadIncomplete, 0, "download %s: %s", r.Task.URL, r.Outcome)
}
