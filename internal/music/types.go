package music

import (
	"strings"
	"time"
)

type TrackSource string

const (
	TrackSourceYouTube    TrackSource = "youtube"
	TrackSourceSpotify    TrackSource = "spotify"
	TrackSourceSoundCloud TrackSource = "soundcloud"
	TrackSourceUnknown    TrackSource = "unknown"
)

func ParseTrackSource(name string) TrackSource {
	switch TrackSource(strings.ToLower(strings.TrimSpace(name))) {
	case TrackSourceYouTube, "youtubemusic":
		return TrackSourceYouTube
	case TrackSourceSpotify:
		return TrackSourceSpotify
	case TrackSourceSoundCloud:
		return TrackSourceSoundCloud
	default:
		return TrackSourceUnknown
	}
}

type RepeatMode string

const (
	RepeatModeNone  RepeatMode = "none"
	RepeatModeTrack RepeatMode = "track"
	RepeatModeAll   RepeatMode = "all"
)

func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch RepeatMode(strings.ToLower(strings.TrimSpace(s))) {
	case RepeatModeNone, "off", "":
		return RepeatModeNone, true
	case RepeatModeTrack, "one":
		return RepeatModeTrack, true
	case RepeatModeAll, "queue", "loop":
		return RepeatModeAll, true
	}
	return RepeatModeNone, false
}

// Position says where new tracks go in the queue.
type Position int

const (
	AtEnd Position = iota
	AtStart
)

func ParsePosition(s string) Position {
	if strings.EqualFold(strings.TrimSpace(s), "start") {
		return AtStart
	}
	return AtEnd
}

type Track struct {
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	URI         string        `json:"uri"`
	Duration    time.Duration `json:"duration"`
	ArtworkURL  string        `json:"artwork_url"`
	IsStream    bool          `json:"is_stream"`
	RequesterID string        `json:"requester_id"`
	Source      TrackSource   `json:"source"`
	// Encoded is the audio client's opaque handle for the track.
	Encoded string `json:"encoded"`
}

type State string

const (
	StateEmpty   State = "empty"
	StateQueued  State = "queued"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" || r.MessageID == ""
}

type QueueSettings struct {
	RepeatMode RepeatMode `json:"repeat_mode"`
}

// Snapshot is a copy of a session's state for rendering.
type Snapshot struct {
	GuildID       string
	State         State
	Current       *Track
	Queue         []Track
	RepeatMode    RepeatMode
	TextChannelID string
	Progress      Progress
}
