package music

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInactivityTimeout = 300 * time.Second
	janitorInterval          = 30 * time.Second
	settingsTimeout          = 2 * time.Second
)

// Readiness reports whether the audio node fleet can serve playback.
type Readiness interface {
	Ready() bool
}

type ManagerConfig struct {
	MaxQueueSize      int
	InactivityTimeout time.Duration
	PanelInterval     time.Duration
}

type ManagerOption func(*Manager)

func WithSettingsStore(store SettingsStore) ManagerOption {
	return func(m *Manager) { m.settings = store }
}

func WithControlPanel(renderer PanelRenderer, store PanelStore) ManagerOption {
	return func(m *Manager) {
		m.renderer = renderer
		m.panelStore = store
	}
}

// Manager owns every guild's session. There is one per process and it is
// passed to whoever needs sessions.
type Manager struct {
	cfg        ManagerConfig
	fleet      Readiness
	player     Player
	settings   SettingsStore
	renderer   PanelRenderer
	panelStore PanelStore
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession

	janitorStop chan struct{}
	janitorDone chan struct{}
}

type managedSession struct {
	session *Session
	panel   *ControlPanel
}

func NewManager(cfg ManagerConfig, fleet Readiness, player Player, log *slog.Logger, opts ...ManagerOption) *Manager {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		fleet:    fleet,
		player:   player,
		log:      log.With("component", "music"),
		sessions: make(map[string]*managedSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Ready() bool {
	return m.fleet != nil && m.fleet.Ready()
}

// Session returns the guild's session, creating it on first use. Playback
// commands go through here so an empty fleet surfaces as ErrServiceNotReady.
func (m *Manager) Session(ctx context.Context, guildID string) (*Session, error) {
	if !m.Ready() {
		return nil, ErrServiceNotReady
	}

	m.mu.Lock()
	if ms, ok := m.sessions[guildID]; ok && ms.session.State() != StateStopped {
		m.mu.Unlock()
		return ms.session, nil
	}

	session := NewSession(guildID, m.player, m.cfg.MaxQueueSize, m.log)
	ms := &managedSession{session: session}
	if m.renderer != nil {
		ms.panel = NewControlPanel(session, m.renderer, m.panelStore, m.cfg.PanelInterval, m.log)
		panel := ms.panel
		session.onChange = func(*Session) {
			go panel.Refresh(context.Background())
		}
		panel.Start()
	}
	m.sessions[guildID] = ms
	m.mu.Unlock()

	m.loadSettings(ctx, session)
	m.log.Info("playback session created", "guild_id", guildID)
	return session, nil
}

func (m *Manager) loadSettings(ctx context.Context, session *Session) {
	if m.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, settingsTimeout)
	defer cancel()

	settings, err := m.settings.GetSettings(ctx, session.GuildID())
	if err != nil {
		m.log.Warn("playback settings unavailable", "guild_id", session.GuildID(), "error", err)
		return
	}
	if mode, ok := ParseRepeatMode(string(settings.RepeatMode)); ok {
		session.SetRepeatMode(mode)
	}
}

// Existing returns a live session without creating one.
func (m *Manager) Existing(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[guildID]
	if !ok || ms.session.State() == StateStopped {
		return nil, false
	}
	return ms.session, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetRepeatMode changes and persists the guild's repeat mode.
func (m *Manager) SetRepeatMode(ctx context.Context, guildID string, mode RepeatMode) error {
	session, ok := m.Existing(guildID)
	if !ok {
		return ErrNothingPlaying
	}
	session.SetRepeatMode(mode)

	if m.settings == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, settingsTimeout)
	defer cancel()
	if err := m.settings.SetSettings(ctx, guildID, QueueSettings{RepeatMode: mode}); err != nil {
		m.log.Warn("repeat mode not persisted", "guild_id", guildID, "error", err)
	}
	return nil
}

// Stop stops and discards the guild's session.
func (m *Manager) Stop(ctx context.Context, guildID string) error {
	m.mu.Lock()
	ms, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !ok {
		return ErrNothingPlaying
	}
	return m.discard(ctx, ms)
}

func (m *Manager) discard(ctx context.Context, ms *managedSession) error {
	err := ms.session.Stop(ctx)
	if ms.panel != nil {
		ms.panel.Close(ctx)
	}
	m.log.Info("playback session discarded", "guild_id", ms.session.GuildID())
	return err
}

// RefreshPanel redraws the guild's control panel right away.
func (m *Manager) RefreshPanel(ctx context.Context, guildID string) {
	m.mu.Lock()
	ms, ok := m.sessions[guildID]
	m.mu.Unlock()
	if ok && ms.panel != nil {
		ms.panel.Refresh(ctx)
	}
}

func (m *Manager) HandleTrackStart(guildID, encoded string) {
	if session, ok := m.Existing(guildID); ok {
		session.OnTrackStart(encoded)
	}
}

func (m *Manager) HandleTrackEnd(ctx context.Context, guildID, encoded string, mayStartNext bool) {
	session, ok := m.Existing(guildID)
	if !ok {
		return
	}
	next, err := session.OnTrackEnd(ctx, encoded, mayStartNext)
	switch {
	case errors.Is(err, ErrNoTrackAvailable):
		m.log.Info("queue finished", "guild_id", guildID)
	case err != nil:
		m.log.Warn("advancing queue failed", "guild_id", guildID, "error", err)
	case next.Encoded != "":
		m.log.Debug("queue advanced", "guild_id", guildID, "track", next.Title)
	}
}

func (m *Manager) HandleTrackException(guildID, encoded, message string) {
	if session, ok := m.Existing(guildID); ok {
		session.OnTrackException(encoded, message)
	}
}

// StartJanitor stops sessions that have been idle for the inactivity timeout.
func (m *Manager) StartJanitor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.janitorStop != nil {
		return
	}
	m.janitorStop = make(chan struct{})
	m.janitorDone = make(chan struct{})

	interval := min(janitorInterval, m.cfg.InactivityTimeout)
	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				m.sweepIdle(context.Background(), now)
			}
		}
	}(m.janitorStop, m.janitorDone)
}

func (m *Manager) sweepIdle(ctx context.Context, now time.Time) int {
	var idle []*managedSession

	m.mu.Lock()
	for guildID, ms := range m.sessions {
		state := ms.session.State()
		if state == StateStopped {
			delete(m.sessions, guildID)
			continue
		}
		if state == StatePlaying {
			continue
		}
		if now.Sub(ms.session.LastActive()) >= m.cfg.InactivityTimeout {
			delete(m.sessions, guildID)
			idle = append(idle, ms)
		}
	}
	m.mu.Unlock()

	for _, ms := range idle {
		m.log.Info("stopping idle playback session", "guild_id", ms.session.GuildID())
		if err := m.discard(ctx, ms); err != nil {
			m.log.Warn("idle session release failed", "guild_id", ms.session.GuildID(), "error", err)
		}
	}
	return len(idle)
}

// Close stops the janitor and every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	stop, done := m.janitorStop, m.janitorDone
	m.janitorStop, m.janitorDone = nil, nil
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	for _, ms := range sessions {
		if err := m.discard(ctx, ms); err != nil {
			m.log.Warn("session release on shutdown failed", "guild_id", ms.session.GuildID(), "error", err)
		}
	}
}
