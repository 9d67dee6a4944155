// Package index keeps a SQLite ledger of archive runs: one row per run, per
// scanned day and per download attempt.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Store is the archive index
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// DayRecord is one scanned day of a channel
type DayRecord struct {
	GuildID        string
	ChannelID      string
	Day            time.Time
	Status         string
	TotalResults   int
	Messages       int
	PagesRequested int
	PagesFailed    int
}

// FileRecord is one download attempt
type FileRecord struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	URL         string
	Destination string
	Outcome     string
	Bytes       int64
	Error       string
}

// ChannelStats aggregates everything recorded for a channel
type ChannelStats struct {
	GuildID         string
	ChannelID       string
	Runs            int
	DaysScanned     int
	DaysEmpty       int
	DaysFailed      int
	PagesLost       int
	FilesDownloaded int
	FilesSkipped    int
	FilesIncomplete int
	FilesFailed     int
	Bytes           int64
	LastRun         time.Time
}

// Open opens or creates the index at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		guild_id    TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		start_day   TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		status      TEXT NOT NULL DEFAULT 'running'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_channel ON runs(guild_id, channel_id);

	CREATE TABLE IF NOT EXISTS days (
		run_id          TEXT NOT NULL REFERENCES runs(id),
		guild_id        TEXT NOT NULL,
		channel_id      TEXT NOT NULL,
		day             TEXT NOT NULL,
		status          TEXT NOT NULL,
		total_results   INTEGER NOT NULL DEFAULT 0,
		messages        INTEGER NOT NULL DEFAULT 0,
		pages_requested INTEGER NOT NULL DEFAULT 0,
		pages_failed    INTEGER NOT NULL DEFAULT 0,
		recorded_at     TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);
	CREATE INDEX IF NOT EXISTS idx_days_channel ON days(guild_id, channel_id);

	CREATE TABLE IF NOT EXISTS files (
		id          TEXT PRIMARY KEY,
		run_id      TEXT NOT NULL REFERENCES runs(id),
		guild_id    TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		message_id  TEXT,
		url         TEXT NOT NULL,
		destination TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		bytes       INTEGER NOT NULL DEFAULT 0,
		error       TEXT,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_channel ON files(guild_id, channel_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun opens a run for a channel and returns its ULID
func (s *Store) BeginRun(ctx context.Context, guildID, channelID string, startDay time.Time) (string, error) {
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, guild_id, channel_id, start_day, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, guildID, channelID, startDay.Format(time.DateOnly), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordDay stores the outcome of one day. Re-recording a day in the same
// run replaces the earlier row.
func (s *Store) RecordDay(ctx context.Context, runID string, d DayRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO days
			(run_id, guild_id, channel_id, day, status, total_results, messages, pages_requested, pages_failed, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, d.GuildID, d.ChannelID, d.Day.Format(time.DateOnly), d.Status,
		d.TotalResults, d.Messages, d.PagesRequested, d.PagesFailed,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record day: %w", err)
	}
	return nil
}

// RecordDownload stores one download outcome
func (s *Store) RecordDownload(ctx context.Context, runID string, f FileRecord) error {
	var errText sql.NullString
	if f.Error != "" {
		errText = sql.NullString{String: f.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files
			(id, run_id, guild_id, channel_id, message_id, url, destination, outcome, bytes, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.newID(), runID, f.GuildID, f.ChannelID, f.MessageID, f.URL, f.Destination,
		f.Outcome, f.Bytes, errText, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), status, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// ChannelStats returns totals per channel, ordered by guild and channel
func (s *Store) ChannelStats(ctx context.Context) ([]ChannelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.guild_id, r.channel_id, COUNT(*), MAX(r.started_at),
			COALESCE((SELECT COUNT(*) FROM days d WHERE d.guild_id = r.guild_id AND d.channel_id = r.channel_id), 0),
			COALESCE((SELECT COUNT(*) FROM days d WHERE d.guild_id = r.guild_id AND d.channel_id = r.channel_id AND d.status = 'empty'), 0),
			COALESCE((SELECT COUNT(*) FROM days d WHERE d.guild_id = r.guild_id AND d.channel_id = r.channel_id AND d.status = 'failed'), 0),
			COALESCE((SELECT SUM(pages_failed) FROM days d WHERE d.guild_id = r.guild_id AND d.channel_id = r.channel_id), 0),
			COALESCE((SELECT COUNT(*) FROM files f WHERE f.guild_id = r.guild_id AND f.channel_id = r.channel_id AND f.outcome = 'completed'), 0),
			COALESCE((SELECT COUNT(*) FROM files f WHERE f.guild_id = r.guild_id AND f.channel_id = r.channel_id AND f.outcome = 'skipped'), 0),
			COALESCE((SELECT COUNT(*) FROM files f WHERE f.guild_id = r.guild_id AND f.channel_id = r.channel_id AND f.outcome = 'incomplete'), 0),
			COALESCE((SELECT COUNT(*) FROM files f WHERE f.guild_id = r.guild_id AND f.channel_id = r.channel_id AND f.outcome = 'failed'), 0),
			COALESCE((SELECT SUM(bytes) FROM files f WHERE f.guild_id = r.guild_id AND f.channel_id = r.channel_id), 0)
		FROM runs r
		GROUP BY r.guild_id, r.channel_id
		ORDER BY r.guild_id, r.channel_id`)
	if err != nil {
		return nil, fmt.Errorf("channel stats: %w", err)
	}
	defer rows.Close()

	var out []ChannelStats
	for rows.Next() {
		var cs ChannelStats
		var lastRun string
		if err := rows.Scan(&cs.GuildID, &cs.ChannelID, &cs.Runs, &lastRun,
			&cs.DaysScanned, &cs.DaysEmpty, &cs.DaysFailed, &cs.PagesLost,
			&cs.FilesDownloaded, &cs.FilesSkipped, &cs.FilesIncomplete, &cs.FilesFailed,
			&cs.Bytes); err != nil {
			return nil, fmt.Errorf("scan channel stats: %w", err)
		}
		cs.LastRun, _ = time.Parse(time.RFC3339, lastRun)
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
