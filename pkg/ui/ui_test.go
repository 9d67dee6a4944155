package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrinterLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Info("Channel", "123")
	p.Success("done")
	p.Warning("slow", "429")
	p.Error("failed", "boom")

	out := buf.String()
	assert.Contains(t, out, "Channel:")
	assert.Contains(t, out, "123")
	assert.Contains(t, out, "slow: 429")
	assert.Contains(t, out, "failed: boom")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestQuietKeepsErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetQuiet(true)

	p.Info("a", "b")
	p.Success("ok")
	p.Error("bad")

	assert.Equal(t, "bad\n", buf.String())
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Table("Stats", []string{"channel", "files"}, [][]string{{"1234567890", "3"}, {"1", "12"}})
	out := buf.String()
	assert.Contains(t, out, "Stats")
	assert.Contains(t, out, "channel")
	assert.Contains(t, out, "1234567890  3")

	buf.Reset()
	p.Table("Empty", []string{"x"}, nil)
	assert.Contains(t, buf.String(), "no rows")
}

func TestDefaultPrinter(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(NewPrinter(&buf))
	defer SetDefault(prev)

	PrintInfo("k", "v")
	PrintError("e")
	assert.Contains(t, buf.String(), "k:")
	assert.Contains(t, buf.String(), "e")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(1536*1024))
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewProgressDisplay(NewPrinter(&buf))

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d.DayDone(DayReport{ChannelID: "c1", Day: day, Status: "fetched", Messages: 4, Downloaded: 2, Bytes: 2048})
	d.DayDone(DayReport{ChannelID: "c1", Day: day.AddDate(0, 0, -1), Status: "failed"})

	days, failed, files, bytes := d.Totals()
	assert.Equal(t, 2, days)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(2048), bytes)
	assert.Contains(t, buf.String(), "2024-01-02")
	assert.Contains(t, buf.String(), "2.0 KiB")
	assert.Greater(t, d.Elapsed(), time.Duration(0))
}
