package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// ProgressCallback receives one update per processed shared chat
type ProgressCallback interface {
	Update(title string, firstMsg string)
	Finish()
}

// ProgressReporter draws a one-line progress bar
type ProgressReporter struct {
	writer    io.Writer
	total     int
	current   int
	startTime time.Time
	lastTitle string
}

func NewProgressReporter(w io.Writer, total int) *ProgressReporter {
	return &ProgressReporter{
		writer:    w,
		total:     total,
		startTime: time.Now(),
	}
}

func (p *ProgressReporter) Update(title string, firstMsg string) {
	p.current++
	if p.total <= 0 {
		return
	}

	pct := float64(p.current) / float64(p.total) * 100

	barWidth := 30
	filled := min(barWidth, barWidth*p.current/p.total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	display := models.TruncateTitle(title, 50)

	_, _ = fmt.Fprintf(p.writer, "\r[%s] %3.0f%% (%d/%d) | %s",
		bar, pct, p.current, p.total, display)

	p.lastTitle = display
}

func (p *ProgressReporter) Finish() {
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "\nProcessed %s shared %s in %s\n",
		humanize.Comma(int64(p.current)), pluralChats(p.current), elapsed.Round(time.Millisecond))
}

func pluralChats(n int) string {
	if n == 1 {
		return "chat"
	}
	return "chats"
}
