package shared

import (
	"errors"

	"github.com/cybercade/bot/internal/music"
	"github.com/cybercade/bot/internal/nodes"
)

// ErrorMessage turns a playback error into the reply shown to the user.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, music.ErrPlayerDisabled):
		return "The music player is disabled right now."
	case errors.Is(err, music.ErrServiceNotReady), errors.Is(err, nodes.ErrNoSuitableNodes):
		return "No audio node is available yet. Please try again in a moment."
	case errors.Is(err, music.ErrNothingPlaying), errors.Is(err, music.ErrSessionStopped):
		return "Nothing is playing."
	case errors.Is(err, music.ErrNoTrackAvailable):
		return "There is no next track. Playback has stopped."
	case errors.Is(err, music.ErrQueueFull):
		return "The queue is full."
	case errors.Is(err, music.ErrMissingInput):
		return "Tell me what to play."
	case errors.Is(err, music.ErrNoMatches):
		return "No results found."
	case errors.Is(err, ErrNoVoiceChannel):
		return "Join a voice channel first."
	default:
		return "Something went wrong. Please try again."
	}
}
