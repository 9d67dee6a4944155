package archiver

import (
	"context"
	"fmt"
	"time"

	"chanarchive/internal/downloader"
	"chanarchive/pkg/checkpoint"
	"chanarchive/pkg/index"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/search"
	"chanarchive/pkg/selector"
	"chanarchive/pkg/ui"
)

// Summary totals one channel walk
type Summary struct {
	Target      search.Target
	GuildName   string
	ChannelName string
	RunID       string

	StartDay time.Time
	// LastDay is the oldest day scanned
	LastDay time.Time

	DaysScanned int
	DaysEmpty   int
	DaysFailed  int
	PagesLost   int
	Files       downloader.Summary

	Duration time.Duration
	Err      error
}

// Done reports whether the walk reached the backend epoch
func (s *Summary) Done() bool {
	return s.Err == nil
}

type channelRun struct {
	*Archiver
	target      search.Target
	guildName   string
	channelName string
	runID       string
	log         logger.Logger
	summary     *Summary
	checkpoints *checkpoint.Manager
	cursor      *checkpoint.Cursor
}

// ArchiveChannel walks one channel from its start day down to 2015-01-01.
// A start day before 2015 fails with an invalid_date error before any
// search request. In best-effort mode failed days, lost pages and broken
// downloads are logged and skipped; in fail-fast mode the first one ends the
// walk with an error. The summary is returned in both cases.
func (a *Archiver) ArchiveChannel(ctx context.Context, t search.Target, opts RunOptions) (*Summary, error) {
	begin := time.Now()
	summary := &Summary{Target: t}
	log := a.logger.WithFields(map[string]interface{}{
		"guild_id":   t.GuildID,
		"channel_id": t.ChannelID,
	})

	mgr, cursor, err := a.checkpointFor(t, opts)
	if err != nil {
		summary.Err = err
		return summary, err
	}

	day := a.startDay(ctx, t, opts, cursor)
	summary.StartDay = day
	if _, err := a.clock.DayWindow(day); err != nil {
		summary.Err = err
		return summary, err
	}

	summary.GuildName, summary.ChannelName = a.names(ctx, t)
	if cursor != nil {
		summary.GuildName, summary.ChannelName = pick(cursor.GuildName, summary.GuildName), pick(cursor.ChannelName, summary.ChannelName)
	}

	run := &channelRun{
		Archiver:    a,
		target:      t,
		guildName:   summary.GuildName,
		channelName: summary.ChannelName,
		log:         log,
		summary:     summary,
		checkpoints: mgr,
		cursor:      cursor,
	}
	if err := run.begin(ctx, day); err != nil {
		summary.Err = err
		return summary, err
	}

	log.InfoWithFields("Archiving channel", map[string]interface{}{
		"guild":     summary.GuildName,
		"channel":   summary.ChannelName,
		"start_day": day.Format(time.DateOnly),
	})

	err = run.walk(ctx, day)
	summary.Duration = time.Since(begin)
	summary.Err = err
	run.finish(err)

	log.InfoWithFields("Channel finished", map[string]interface{}{
		"days_scanned": summary.DaysScanned,
		"days_failed":  summary.DaysFailed,
		"pages_lost":   summary.PagesLost,
		"downloaded":   summary.Files.Completed,
		"bytes":        summary.Files.Bytes,
		"duration":     summary.Duration,
	})
	return summary, err
}

func pick(saved, resolved string) string {
	if saved != "" {
		return saved
	}
	return resolved
}

func (r *channelRun) begin(ctx context.Context, day time.Time) error {
	if r.checkpoints != nil {
		if r.cursor == nil {
			cursor, err := r.checkpoints.Create(r.target.GuildID, r.target.ChannelID, day)
			if err != nil {
				return err
			}
			r.cursor = cursor
		}
		r.cursor.GuildName, r.cursor.ChannelName = r.guildName, r.channelName
	}

	if r.index != nil {
		runID, err := r.index.BeginRun(ctx, r.target.GuildID, r.target.ChannelID, day)
		if err != nil {
			return err
		}
		r.runID = runID
		r.summary.RunID = runID
	}
	return nil
}

func (r *channelRun) walk(ctx context.Context, day time.Time) error {
	for !r.clock.BeforeMin(day) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.scanDay(ctx, day); err != nil {
			return err
		}

		prev := r.clock.Day(day.AddDate(0, 0, -1))
		if r.cursor != nil {
			if err := r.checkpoints.Advance(r.cursor, prev); err != nil {
				r.log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
		day = prev
	}
	return nil
}

// scanDay fetches, caches and downloads one day
func (r *channelRun) scanDay(ctx context.Context, day time.Time) error {
	window, err := r.clock.DayWindow(day)
	if err != nil {
		return err
	}

	res, err := r.paginator.FetchDay(ctx, r.target, window, r.query)
	r.summary.DaysScanned++
	r.summary.LastDay = day
	r.metrics.ObserveDay(res.Status.String())
	report := ui.DayReport{ChannelID: r.target.ChannelID, Day: day, Status: res.Status.String()}

	if err != nil {
		r.summary.DaysFailed++
		if r.cursor != nil {
			r.cursor.DaysFailed++
		}
		r.recordDay(ctx, day, res)
		r.notify(report)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.WarnWithFields("Day skipped", map[string]interface{}{
			"day":   day.Format(time.DateOnly),
			"error": err.Error(),
		})
		if r.failFast() {
			return errDayFailed(day, err)
		}
		return nil
	}

	if res.Status == search.DayEmpty {
		r.summary.DaysEmpty++
		if r.cursor != nil {
			r.cursor.DaysEmpty++
		}
		r.recordDay(ctx, day, res)
		r.notify(report)
		return nil
	}

	report.Messages = len(res.Messages)
	if res.PagesFailed > 0 {
		r.summary.PagesLost += res.PagesFailed
		if r.cursor != nil {
			r.cursor.PagesLost += res.PagesFailed
		}
		r.metrics.ObservePagesLost(res.PagesFailed)
	}

	if r.cfg.Output.CacheJSON {
		if _, err := r.storage.SaveDayJSON(r.guildName, r.channelName, day, res.Page()); err != nil {
			r.log.WithError(err).Warn("Failed to cache day")
		}
	}

	results, err := r.download(ctx, res)
	r.recordDay(ctx, day, res)

	files := downloader.Summarize(results)
	report.Downloaded = files.Completed
	report.Bytes = files.Bytes
	r.notify(report)
	if err != nil {
		return err
	}

	logger.LogChannelProgress(r.log, r.target.ChannelID, day.Format(time.DateOnly), res.Status.String(), len(res.Messages))

	if r.failFast() {
		if res.PagesFailed > 0 {
			return errPagesLost(day, res.PagesFailed)
		}
		for _, dr := range results {
			if dr.Outcome == downloader.Incomplete || dr.Outcome == downloader.Failed {
				return errIncomplete(dr)
			}
		}
	}
	return nil
}

func (r *channelRun) download(ctx context.Context, res *search.Result) ([]downloader.Result, error) {
	refs := selector.Select(res.All(), r.filter)
	if len(refs) == 0 {
		return nil, nil
	}

	tasks := make([]downloader.Task, 0, len(refs))
	for _, ref := range refs {
		dest, err := r.storage.FilePath(r.guildName, r.channelName, ref.URL)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, downloader.Task{URL: ref.URL, Destination: dest, MessageID: ref.MessageID})
	}

	results := downloader.DownloadAll(ctx, r.downloader, r.cfg.Download.ConcurrentDownloads, tasks, r.log)

	for _, dr := range results {
		r.metrics.ObserveDownload(dr.Outcome.String(), dr.Bytes)
		r.summary.Files.Bytes += dr.Bytes
		switch dr.Outcome {
		case downloader.Completed:
			r.summary.Files.Completed++
		case downloader.Skipped:
			r.summary.Files.Skipped++
		case downloader.Incomplete:
			r.summary.Files.Incomplete++
		default:
			r.summary.Files.Failed++
		}
		if r.cursor != nil && dr.Outcome == downloader.Completed {
			r.cursor.FilesDownloaded++
			r.cursor.BytesDownloaded += dr.Bytes
		}
		r.recordDownload(ctx, dr)
	}
	return results, nil
}

func (r *channelRun) recordDay(ctx context.Context, day time.Time, res *search.Result) {
	if r.index == nil {
		return
	}
	err := r.index.RecordDay(context.WithoutCancel(ctx), r.runID, index.DayRecord{
		GuildID:        r.target.GuildID,
		ChannelID:      r.target.ChannelID,
		Day:            day,
		Status:         res.Status.String(),
		TotalResults:   res.TotalResults,
		Messages:       len(res.Messages),
		PagesRequested: res.PagesRequested,
		PagesFailed:    res.PagesFailed,
	})
	if err != nil {
		r.log.WithError(err).Warn("Failed to index day")
	}
}

func (r *channelRun) recordDownload(ctx context.Context, dr downloader.Result) {
	if r.index == nil {
		return
	}
	rec := index.FileRecord{
		GuildID:     r.target.GuildID,
		ChannelID:   r.target.ChannelID,
		MessageID:   dr.Task.MessageID,
		URL:         dr.Task.URL,
		Destination: dr.Task.Destination,
		Outcome:     dr.Outcome.String(),
		Bytes:       dr.Bytes,
	}
	if dr.Err != nil {
		rec.Error = dr.Err.Error()
	}
	if err := r.index.RecordDownload(context.WithoutCancel(ctx), r.runID, rec); err != nil {
		r.log.WithError(err).Warn("Failed to index download")
	}
}

func (r *channelRun) notify(report ui.DayReport) {
	if r.progress != nil {
		r.progress.DayDone(report)
	}
}

// finish closes the run: a completed walk drops its checkpoint, an
// interrupted one keeps it for --resume.
func (r *channelRun) finish(err error) {
	status := "done"
	switch {
	case err == nil:
		if r.checkpoints != nil {
			if derr := r.checkpoints.Delete(); derr != nil {
				r.log.WithError(derr).Warn("Failed to delete checkpoint")
			}
		}
	case r.cursor != nil:
		if serr := r.checkpoints.Save(r.cursor); serr != nil {
			r.log.WithError(serr).Warn("Failed to save checkpoint")
		}
		status = "interrupted"
	default:
		status = "interrupted"
	}

	if r.index != nil {
		if ferr := r.index.FinishRun(context.Background(), r.runID, status); ferr != nil {
			r.log.WithError(ferr).Warn("Failed to finish index run")
		}
	}
}

// Describe renders a one-line summary
func (s *Summary) Describe() string {
	return fmt.Sprintf("%s/%s: %d days (%d empty, %d failed), %d pages lost, %d downloaded, %d skipped, %d incomplete, %d failed",
		s.GuildName, s.ChannelName, s.DaysScanned, s.DaysEmpty, s.DaysFailed, s.PagesLost,
		s.Files.Completed, s.Files.Skipped, s.Files.Incomplete, s.Files.Failed)
}
