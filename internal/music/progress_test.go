package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProgress(t *testing.T) {
	tests := []struct {
		name     string
		position time.Duration
		duration time.Duration
		stream   bool
		ratio    float64
		live     bool
	}{
		{name: "midway", position: time.Minute, duration: 2 * time.Minute, ratio: 0.5},
		{name: "stale position past end", position: 10 * time.Minute, duration: 2 * time.Minute, ratio: 1},
		{name: "negative position", position: -time.Second, duration: 2 * time.Minute, ratio: 0},
		{name: "stream", position: time.Minute, duration: 2 * time.Minute, stream: true, live: true},
		{name: "unknown duration", position: time.Minute, live: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(tt.position, tt.duration, tt.stream)
			assert.Equal(t, tt.ratio, p.Ratio())
			assert.Equal(t, tt.live, p.Live)
			assert.GreaterOrEqual(t, p.Position, time.Duration(0))
		})
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "━━━━━━━━━━◉", NewProgress(time.Hour, time.Minute, false).Bar(10))
	assert.Equal(t, "◉──────────", NewProgress(0, time.Minute, false).Bar(10))
	assert.Equal(t, "━━━━━◉─────", NewProgress(30*time.Second, time.Minute, false).Bar(10))
	assert.Equal(t, "○──────────", NewProgress(0, 0, true).Bar(10))
}

func TestProgressString(t *testing.T) {
	assert.Equal(t, "live", NewProgress(time.Minute, 0, true).String())
	assert.Equal(t, "01:05 / 1:02:03", NewProgress(65*time.Second, time.Hour+2*time.Minute+3*time.Second, false).String())
}
