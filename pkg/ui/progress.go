package ui

import (
	"fmt"
	"sync"
	"time"
)

// DayReport is what the progress display shows for one finished day
type DayReport struct {
	ChannelID  string
	Day        time.Time
	Status     string
	Messages   int
	Downloaded int
	Bytes      int64
}

// ProgressDisplay prints one line per finished day and keeps running totals
type ProgressDisplay struct {
	mu        sync.Mutex
	p         *Printer
	startTime time.Time

	days       int
	failedDays int
	files      int
	bytes      int64
}

// NewProgressDisplay creates a display writing through p
func NewProgressDisplay(p *Printer) *ProgressDisplay {
	return &ProgressDisplay{p: p, startTime: time.Now()}
}

// DayDone records and prints one day
func (d *ProgressDisplay) DayDone(r DayReport) {
	d.mu.Lock()
	d.days++
	if r.Status == "failed" {
		d.failedDays++
	}
	d.files += r.Downloaded
	d.bytes += r.Bytes
	d.mu.Unlock()

	line := fmt.Sprintf("%s %s  %-7s msgs=%d files=%d %s",
		d.p.st.muted.Render(r.ChannelID),
		r.Day.Format(time.DateOnly),
		r.Status,
		r.Messages,
		r.Downloaded,
		FormatBytes(r.Bytes))

	switch r.Status {
	case "failed":
		d.p.println(false, d.p.st.warning.Render(line))
	case "empty":
		d.p.println(false, d.p.st.muted.Render(line))
	default:
		d.p.println(false, line)
	}
}

// Totals returns days seen, failed days, files and bytes so far
func (d *ProgressDisplay) Totals() (days, failed, files int, bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.days, d.failedDays, d.files, d.bytes
}

// Elapsed returns the time since the display was created
func (d *ProgressDisplay) Elapsed() time.Duration {
	return time.Since(d.startTime)
}
