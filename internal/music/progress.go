package music

import (
	"fmt"
	"strings"
	"time"
)

type Progress struct {
	Position time.Duration
	Duration time.Duration
	Live     bool
}

// NewProgress clamps position into [0, duration]. Streams and tracks with no
// known duration are reported live.
func NewProgress(position, duration time.Duration, stream bool) Progress {
	if stream || duration <= 0 {
		return Progress{Position: max(0, position), Live: true}
	}
	return Progress{
		Position: min(duration, max(0, position)),
		Duration: duration,
	}
}

func (p Progress) Ratio() float64 {
	if p.Live || p.Duration <= 0 {
		return 0
	}
	return float64(p.Position) / float64(p.Duration)
}

func (p Progress) Bar(size int) string {
	if size <= 0 {
		size = 12
	}
	if p.Live {
		return "○" + strings.Repeat("─", size)
	}
	marker := min(size, max(0, int(p.Ratio()*float64(size))))
	return strings.Repeat("━", marker) + "◉" + strings.Repeat("─", size-marker)
}

func (p Progress) String() string {
	if p.Live {
		return "live"
	}
	return fmt.Sprintf("%s / %s", FormatDuration(p.Position), FormatDuration(p.Duration))
}

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
