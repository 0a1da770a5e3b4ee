package music

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Player is the per-guild audio actuator. Implementations talk to the audio
// client; a session never knows which node serves it.
type Player interface {
	Play(ctx context.Context, guildID string, track Track) error
	Stop(ctx context.Context, guildID string) error
	SetPaused(ctx context.Context, guildID string, paused bool) error
	Position(guildID string) time.Duration
	// Release destroys the guild's player and leaves voice.
	Release(ctx context.Context, guildID string) error
}

// Session is the playback state of one guild.
type Session struct {
	guildID  string
	player   Player
	maxQueue int
	log      *slog.Logger
	onChange func(*Session)

	mu            sync.Mutex
	state         State
	current       *Track
	finished      *Track
	queue         []Track
	repeat        RepeatMode
	textChannelID string
	panel         MessageRef
	lastActive    time.Time
}

func NewSession(guildID string, player Player, maxQueue int, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		guildID:    guildID,
		player:     player,
		maxQueue:   maxQueue,
		log:        log.With("guild_id", guildID),
		state:      StateEmpty,
		repeat:     RepeatModeNone,
		lastActive: time.Now(),
	}
}

func (s *Session) GuildID() string { return s.guildID }

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(s)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Current() (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Track{}, false
	}
	return *s.current, true
}

func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Session) RepeatMode() RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

func (s *Session) SetRepeatMode(mode RepeatMode) {
	s.mu.Lock()
	s.repeat = mode
	s.lastActive = time.Now()
	s.mu.Unlock()
	s.changed()
}

func (s *Session) TextChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

func (s *Session) BindTextChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channelID != "" {
		s.textChannelID = channelID
	}
}

func (s *Session) PanelMessage() MessageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel
}

func (s *Session) SetPanelMessage(ref MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = ref
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Enqueue adds a track at either end of the queue. The current track is
// never touched.
func (s *Session) Enqueue(track Track, pos Position) error {
	_, err := s.EnqueueAll([]Track{track}, pos)
	return err
}

// EnqueueAll adds tracks in their given order at either end of the queue and
// reports how many fit.
func (s *Session) EnqueueAll(tracks []Track, pos Position) (int, error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return 0, ErrSessionStopped
	}

	if s.maxQueue > 0 {
		room := s.maxQueue - len(s.queue)
		if room <= 0 {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %d tracks", ErrQueueFull, s.maxQueue)
		}
		if len(tracks) > room {
			tracks = tracks[:room]
		}
	}

	if pos == AtStart {
		s.queue = append(slices.Clone(tracks), s.queue...)
	} else {
		s.queue = append(s.queue, tracks...)
	}
	if s.state == StateEmpty && len(s.queue) > 0 {
		s.state = StateQueued
	}
	s.lastActive = time.Now()
	s.mu.Unlock()

	s.changed()
	return len(tracks), nil
}

// next picks the track to play. The finished track is replayed under TRACK
// repeat unless skipping, and re-appended to the tail under ALL.
func (s *Session) nextLocked(skipping bool) (Track, bool) {
	finished := s.finished
	s.finished = nil

	if finished != nil {
		switch s.repeat {
		case RepeatModeTrack:
			if !skipping {
				return *finished, true
			}
		case RepeatModeAll:
			s.queue = append(s.queue, *finished)
		}
	}

	if len(s.queue) == 0 {
		return Track{}, false
	}
	next := s.queue[0]
	s.queue = slices.Delete(s.queue, 0, 1)
	return next, true
}

func (s *Session) idleStateLocked() State {
	if len(s.queue) > 0 {
		return StateQueued
	}
	return StateEmpty
}

// Play starts the next track unless something is already playing.
func (s *Session) Play(ctx context.Context) (Track, error) {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return Track{}, ErrSessionStopped
	case StatePlaying, StatePaused:
		cur := *s.current
		s.mu.Unlock()
		return cur, nil
	}
	return s.startLocked(ctx, false)
}

// startLocked is entered with s.mu held and releases it.
func (s *Session) startLocked(ctx context.Context, skipping bool) (Track, error) {
	next, ok := s.nextLocked(skipping)
	if !ok {
		s.current = nil
		s.state = StateEmpty
		s.mu.Unlock()
		s.changed()
		return Track{}, ErrNoTrackAvailable
	}

	picked := &next
	s.current = picked
	s.state = StatePlaying
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err := s.player.Play(ctx, s.guildID, next); err != nil {
		s.mu.Lock()
		if s.current == picked {
			s.current = nil
			s.queue = append([]Track{next}, s.queue...)
			s.state = StateQueued
		}
		s.mu.Unlock()
		s.log.Warn("track start failed", "track", next.Title, "error", err)
		s.changed()
		return Track{}, fmt.Errorf("play %q: %w", next.Title, err)
	}

	s.mu.Lock()
	stopped := s.state == StateStopped
	s.mu.Unlock()
	if stopped {
		// Stop ran while the track was starting; its release came first.
		if err := s.player.Release(context.WithoutCancel(ctx), s.guildID); err != nil {
			s.log.Warn("release after stop failed", "error", err)
		}
		return Track{}, ErrSessionStopped
	}

	s.log.Debug("track started", "track", next.Title, "queue", s.QueueLen())
	s.changed()
	return next, nil
}

// Skip ends the current track and advances. TRACK repeat does not hold the
// skipped track.
func (s *Session) Skip(ctx context.Context) (Track, error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return Track{}, ErrSessionStopped
	}
	if s.current == nil && len(s.queue) == 0 {
		s.mu.Unlock()
		return Track{}, ErrNothingPlaying
	}

	s.finished = s.current
	s.current = nil
	s.state = s.idleStateLocked()

	if len(s.queue) == 0 && s.repeat != RepeatModeAll {
		s.finished = nil
		s.mu.Unlock()
		if err := s.player.Stop(ctx, s.guildID); err != nil {
			s.log.Warn("stop on skip failed", "error", err)
		}
		s.changed()
		return Track{}, ErrNoTrackAvailable
	}
	return s.startLocked(ctx, true)
}

func (s *Session) Pause(ctx context.Context) error { return s.setPaused(ctx, true) }
func (s *Session) Resume(ctx context.Context) error { return s.setPaused(ctx, false) }

// TogglePause flips the paused flag and reports the new value.
func (s *Session) TogglePause(ctx context.Context) (bool, error) {
	paused := s.State() != StatePaused
	return paused, s.setPaused(ctx, paused)
}

func (s *Session) setPaused(ctx context.Context, paused bool) error {
	target := StatePlaying
	if paused {
		target = StatePaused
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	if s.current == nil {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	if s.state == target {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.player.SetPaused(ctx, s.guildID, paused); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current != nil && (s.state == StatePlaying || s.state == StatePaused) {
		s.state = target
		s.lastActive = time.Now()
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// Stop clears everything and releases the guild's audio connection. The
// session is unusable afterwards.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.queue = nil
	s.current = nil
	s.finished = nil
	s.state = StateStopped
	s.mu.Unlock()

	s.changed()
	if err := s.player.Release(ctx, s.guildID); err != nil {
		return fmt.Errorf("release player: %w", err)
	}
	return nil
}

// Shuffle reorders the pending queue and returns its length.
func (s *Session) Shuffle() int {
	s.mu.Lock()
	rand.Shuffle(len(s.queue), func(i, j int) {
		s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	})
	n := len(s.queue)
	s.mu.Unlock()
	s.changed()
	return n
}

// OnTrackStart records activity for the track the audio client started.
func (s *Session) OnTrackStart(encoded string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Encoded == encoded {
		s.lastActive = time.Now()
	}
}

// OnTrackEnd advances the queue when the audio client reports the current
// track finished. Ends for tracks other than the current one are stale and
// ignored, as are ends the client marks as not starting the next track.
func (s *Session) OnTrackEnd(ctx context.Context, encoded string, mayStartNext bool) (Track, error) {
	if !mayStartNext {
		return Track{}, nil
	}

	s.mu.Lock()
	if s.state == StateStopped || s.current == nil {
		s.mu.Unlock()
		return Track{}, nil
	}
	if encoded != "" && s.current.Encoded != encoded {
		s.mu.Unlock()
		return Track{}, nil
	}

	s.finished = s.current
	s.current = nil
	s.state = s.idleStateLocked()
	return s.startLocked(ctx, false)
}

func (s *Session) OnTrackException(encoded, message string) {
	s.log.Warn("track exception", "encoded", encoded, "message", message)
}

// Progress is the live position of the current track clamped to its length.
func (s *Session) Progress() Progress {
	cur, ok := s.Current()
	if !ok {
		return Progress{}
	}
	return NewProgress(s.player.Position(s.guildID), cur.Duration, cur.IsStream)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		GuildID:       s.guildID,
		State:         s.state,
		Queue:         slices.Clone(s.queue),
		RepeatMode:    s.repeat,
		TextChannelID: s.textChannelID,
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	s.mu.Unlock()

	if snap.Current != nil {
		snap.Progress = NewProgress(s.player.Position(s.guildID), snap.Current.Duration, snap.Current.IsStream)
	}
	return snap
}
