package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	start := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)

	runID, err := s.BeginRun(ctx, "g1", "c1", start)
	require.NoError(t, err)
	_, err = ulid.Parse(runID)
	require.NoError(t, err, "run ids are ULIDs")

	require.NoError(t, s.RecordDay(ctx, runID, DayRecord{GuildID: "g1", ChannelID: "c1", Day: start, Status: "fetched", TotalResults: 30, Messages: 25, PagesRequested: 2, PagesFailed: 1}))
	require.NoError(t, s.RecordDay(ctx, runID, DayRecord{GuildID: "g1", ChannelID: "c1", Day: start.AddDate(0, 0, -1), Status: "empty"}))
	require.NoError(t, s.RecordDay(ctx, runID, DayRecord{GuildID: "g1", ChannelID: "c1", Day: start.AddDate(0, 0, -2), Status: "failed"}))

	require.NoError(t, s.RecordDownload(ctx, runID, FileRecord{GuildID: "g1", ChannelID: "c1", URL: "https://x/a.png", Destination: "/tmp/a.png", Outcome: "completed", Bytes: 100}))
	require.NoError(t, s.RecordDownload(ctx, runID, FileRecord{GuildID: "g1", ChannelID: "c1", URL: "https://x/b.png", Destination: "/tmp/b.png", Outcome: "skipped"}))
	require.NoError(t, s.RecordDownload(ctx, runID, FileRecord{GuildID: "g1", ChannelID: "c1", URL: "https://x/c.mp4", Destination: "/tmp/c.mp4", Outcome: "incomplete", Bytes: 50, Error: "chunk 2 failed"}))

	require.NoError(t, s.FinishRun(ctx, runID, "done"))

	stats, err := s.ChannelStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	cs := stats[0]
	assert.Equal(t, "c1", cs.ChannelID)
	assert.Equal(t, 1, cs.Runs)
	assert.Equal(t, 3, cs.DaysScanned)
	assert.Equal(t, 1, cs.DaysEmpty)
	assert.Equal(t, 1, cs.DaysFailed)
	assert.Equal(t, 1, cs.PagesLost)
	assert.Equal(t, 1, cs.FilesDownloaded)
	assert.Equal(t, 1, cs.FilesSkipped)
	assert.Equal(t, 1, cs.FilesIncomplete)
	assert.Equal(t, 0, cs.FilesFailed)
	assert.Equal(t, int64(150), cs.Bytes)
	assert.False(t, cs.LastRun.IsZero())
}

func TestRecordDayReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	day := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

	runID, err := s.BeginRun(ctx, "g", "c", day)
	require.NoError(t, err)
	require.NoError(t, s.RecordDay(ctx, runID, DayRecord{GuildID: "g", ChannelID: "c", Day: day, Status: "failed"}))
	require.NoError(t, s.RecordDay(ctx, runID, DayRecord{GuildID: "g", ChannelID: "c", Day: day, Status: "fetched"}))

	stats, err := s.ChannelStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].DaysScanned)
	assert.Equal(t, 0, stats[0].DaysFailed)
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.FinishRun(context.Background(), "missing", "done"))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, "g", "c", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.ChannelStats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}
