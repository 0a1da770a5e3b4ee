package music

import "errors"

var (
	ErrServiceNotReady  = errors.New("music service is not ready")
	ErrNoTrackAvailable = errors.New("no track available")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrSessionStopped   = errors.New("session is stopped")
	ErrQueueFull        = errors.New("queue is full")
	ErrMissingInput     = errors.New("input is required")
	ErrNoMatches        = errors.New("no matches found")
	ErrPlayerDisabled   = errors.New("music player is disabled")
)
