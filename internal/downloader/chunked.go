// Package downloader transfers media files to disk, in byte ranges when the
// server allows it, and runs many transfers through a bounded worker pool.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chanarchive/pkg/discord"
	"chanarchive/pkg/errors"
	"chanarchive/pkg/logger"
)

// Outcome is the typed result of one task
type Outcome int

const (
	// Skipped: the destination already existed, no request was made
	Skipped Outcome = iota
	Completed
	// Incomplete: a chunk failed, the partial file stays on disk
	Incomplete
	// Failed: nothing was written
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Completed:
		return "completed"
	case Incomplete:
		return "incomplete"
	default:
		return "failed"
	}
}

// Task is one file to fetch
type Task struct {
	URL         string
	Destination string
	MessageID   string
}

// Result describes what happened to a task
type Result struct {
	Task     Task
	Outcome  Outcome
	Bytes    int64
	Chunks   int
	Err      error
	Duration time.Duration
}

// Sender issues GETs through the credential-scoped transport
type Sender interface {
	Send(ctx context.Context, r discord.Request) (*http.Response, error)
}

// Downloader runs a single task
type Downloader interface {
	Download(ctx context.Context, task Task) Result
}

// Chunked downloads a file in fixed-size byte ranges. Chunks of one file are
// requested strictly in order and appended to the destination.
type Chunked struct {
	client    Sender
	chunkSize int64
	logger    logger.Logger
}

// NewChunked creates a Chunked downloader. A chunkSize <= 0 disables ranges.
func NewChunked(client Sender, chunkSize int64, log logger.Logger) *Chunked {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Chunked{client: client, chunkSize: chunkSize, logger: log}
}

// Span is an inclusive byte range
type Span struct {
	Start int64
	End   int64
}

// Header renders the Range header value
func (s Span) Header() string {
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End)
}

// Len is the number of bytes covered
func (s Span) Len() int64 {
	return s.End - s.Start + 1
}

// Plan splits size bytes into chunk-sized spans plus one remainder span
func Plan(size, chunk int64) []Span {
	if size <= 0 || chunk <= 0 {
		return nil
	}
	n, rem := size/chunk, size%chunk
	spans := make([]Span, 0, n+1)
	for i := int64(0); i < n; i++ {
		spans = append(spans, Span{Start: i * chunk, End: i*chunk + chunk - 1})
	}
	if rem > 0 {
		spans = append(spans, Span{Start: n * chunk, End: size - 1})
	}
	return spans
}

// Download fetches task.URL into task.Destination
func (d *Chunked) Download(ctx context.Context, task Task) Result {
	start := time.Now()
	res := d.download(ctx, task)
	res.Task = task
	res.Duration = time.Since(start)

	fields := map[string]interface{}{
		"destination": task.Destination,
		"outcome":     res.Outcome.String(),
		"bytes":       res.Bytes,
		"chunks":      res.Chunks,
	}
	switch res.Outcome {
	case Incomplete, Failed:
		fields["error"] = fmt.Sprint(res.Err)
		d.logger.WarnWithFields("download did not complete", fields)
	default:
		d.logger.DebugWithFields("download finished", fields)
	}
	return res
}

func (d *Chunked) download(ctx context.Context, task Task) Result {
	if _, err := os.Stat(task.Destination); err == nil {
		return Result{Outcome: Skipped}
	}

	if err := os.MkdirAll(filepath.Dir(task.Destination), 0755); err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	head, err := d.client.Send(ctx, discord.Request{URL: task.URL})
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	size := head.ContentLength
	ranged := strings.EqualFold(strings.TrimSpace(head.Header.Get("Accept-Ranges")), "bytes")

	if !ranged || d.chunkSize <= 0 || size < 0 || size < d.chunkSize {
		defer head.Body.Close()
		return d.single(task.Destination, head.Body)
	}
	head.Body.Close()

	return d.ranged(ctx, task, size)
}

// single streams the whole body in one write
func (d *Chunked) single(dest string, body io.Reader) Result {
	f, err := openAppend(dest)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		return Result{
			Outcome: Incomplete,
			Bytes:   n,
			Err:     errors.Wrap(errors.ErrorTypeDownloadIncomplete, err, "body interrupted"),
		}
	}
	return Result{Outcome: Completed, Bytes: n, Chunks: 1}
}

func (d *Chunked) ranged(ctx context.Context, task Task, size int64) Result {
	f, err := openAppend(task.Destination)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	defer f.Close()

	res := Result{Outcome: Completed}
	for _, span := range Plan(size, d.chunkSize) {
		n, err := d.fetchSpan(ctx, task.URL, span, f)
		res.Bytes += n
		if err != nil {
			res.Outcome = Incomplete
			res.Err = errors.Wrap(errors.ErrorTypeDownloadIncomplete, err,
				fmt.Sprintf("chunk %s of %d bytes", span.Header(), size))
			return res
		}
		res.Chunks++
	}
	return res
}

func (d *Chunked) fetchSpan(ctx context.Context, url string, span Span, w io.Writer) (int64, error) {
	resp, err := d.client.Send(ctx, discord.Request{URL: url, Range: span.Header()})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, errors.New(errors.ErrorTypeHTTPStatus, resp.StatusCode, "range request answered without partial content")
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, span.Len()))
	if err != nil {
		return n, err
	}
	if n != span.Len() {
		return n, fmt.Errorf("short chunk: got %d of %d bytes", n, span.Len())
	}
	return n, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open destination: %w", err)
	}
	return f, nil
}
