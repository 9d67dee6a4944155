package downloader

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chanarchive/pkg/discord"
	"chanarchive/pkg/errors"
	"chanarchive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = bytes.Repeat([]byte("0123456789"), 13) // 130 bytes

type fileServer struct {
	mu      sync.Mutex
	ranges  []string
	ranged  bool
	failOn  string
	ignore  bool
	missing bool
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ranges = append(s.ranges, r.Header.Get("Range"))
	s.mu.Unlock()

	switch {
	case s.missing:
		http.NotFound(w, r)
	case s.failOn != "" && r.Header.Get("Range") == s.failOn:
		http.Error(w, "boom", http.StatusInternalServerError)
	case s.ranged && !s.ignore:
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	default:
		if s.ranged {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func (s *fileServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func setup(t *testing.T, fs *fileServer, chunk int64) (*Chunked, string, string) {
	t.Helper()
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	client := discord.NewClient(discord.NewCredential("token", "UA"),
		discord.WithHTTPClient(srv.Client()),
		discord.WithLogger(logger.NewNopLogger()),
		discord.WithRetryAfterPadding(0),
	)
	dest := filepath.Join(t.TempDir(), "guild", "channel", "a_file.bin")
	return NewChunked(client, chunk, logger.NewNopLogger()), srv.URL + "/attachments/1/file.bin", dest
}

func TestPlan(t *testing.T) {
	assert.Equal(t, []Span{{0, 49}, {50, 99}, {100, 129}}, Plan(130, 50))
	assert.Equal(t, []Span{{0, 49}, {50, 99}}, Plan(100, 50))
	assert.Nil(t, Plan(0, 50))
	assert.Nil(t, Plan(10, 0))
	assert.Equal(t, "bytes=100-129", Span{100, 129}.Header())
	assert.Equal(t, int64(30), Span{100, 129}.Len())
}

func TestDownloadInChunks(t *testing.T) {
	fs := &fileServer{ranged: true}
	d, url, dest := setup(t, fs, 50)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	require.NoError(t, res.Err)
	assert.Equal(t, Completed, res.Outcome)
	assert.Equal(t, int64(130), res.Bytes)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, []string{"", "bytes=0-49", "bytes=50-99", "bytes=100-129"}, fs.seen())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadSkipsExisting(t *testing.T) {
	fs := &fileServer{ranged: true}
	d, url, dest := setup(t, fs, 50)
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("partial"), 0644))

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Skipped, res.Outcome)
	assert.Empty(t, fs.seen())

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "partial", string(data))
}

func TestDownloadWithoutRangeSupport(t *testing.T) {
	fs := &fileServer{}
	d, url, dest := setup(t, fs, 50)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Completed, res.Outcome)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, []string{""}, fs.seen())

	data, _ := os.ReadFile(dest)
	assert.Equal(t, payload, data)
}

func TestDownloadSmallerThanChunk(t *testing.T) {
	fs := &fileServer{ranged: true}
	d, url, dest := setup(t, fs, 1000)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Completed, res.Outcome)
	assert.Len(t, fs.seen(), 1)
}

func TestDownloadChunkFailureLeavesPartialFile(t *testing.T) {
	fs := &fileServer{ranged: true, failOn: "bytes=50-99"}
	d, url, dest := setup(t, fs, 50)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Incomplete, res.Outcome)
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeDownloadIncomplete))
	assert.Equal(t, int64(50), res.Bytes)
	assert.Equal(t, []string{"", "bytes=0-49", "bytes=50-99"}, fs.seen())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload[:50], data)

	// the partial file now counts as present
	again := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Skipped, again.Outcome)
}

func TestDownloadRangeIgnored(t *testing.T) {
	fs := &fileServer{ranged: true, ignore: true}
	d, url, dest := setup(t, fs, 50)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Incomplete, res.Outcome)
	assert.Equal(t, 0, res.Chunks)
}

func TestDownloadHeadFailure(t *testing.T) {
	fs := &fileServer{missing: true}
	d, url, dest := setup(t, fs, 50)

	res := d.Download(context.Background(), Task{URL: url, Destination: dest})
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeHTTPStatus))
	assert.NoFileExists(t, dest)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "incomplete", Incomplete.String())
	assert.Equal(t, "failed", Failed.String())
}
