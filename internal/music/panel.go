package music

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultPanelInterval = 10 * time.Second

// PanelRenderer draws the now-playing message in a chat channel.
type PanelRenderer interface {
	Send(ctx context.Context, channelID string, snap Snapshot) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, snap Snapshot) error
	Delete(ctx context.Context, ref MessageRef) error
}

// PanelStore remembers panel messages across restarts.
type PanelStore interface {
	SavePanel(ctx context.Context, guildID string, ref MessageRef) error
	DeletePanel(ctx context.Context, guildID string) error
}

// ControlPanel keeps one now-playing message in sync with a session.
type ControlPanel struct {
	session  *Session
	renderer PanelRenderer
	store    PanelStore
	interval time.Duration
	log      *slog.Logger

	inFlight atomic.Bool
	mu       sync.Mutex
	closed   bool

	stop chan struct{}
	done chan struct{}
}

func NewControlPanel(session *Session, renderer PanelRenderer, store PanelStore, interval time.Duration, log *slog.Logger) *ControlPanel {
	if interval <= 0 {
		interval = DefaultPanelInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &ControlPanel{
		session:  session,
		renderer: renderer,
		store:    store,
		interval: interval,
		log:      log.With("guild_id", session.GuildID()),
	}
}

func (p *ControlPanel) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil || p.closed {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.Refresh(context.Background())
			}
		}
	}(p.stop, p.done)
}

// Refresh redraws the panel. It reports false when another refresh was
// already running and this one was collapsed into it.
func (p *ControlPanel) Refresh(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	p.renderLocked(ctx)
	return true
}

func (p *ControlPanel) renderLocked(ctx context.Context) {
	snap := p.session.Snapshot()
	ref := p.session.PanelMessage()

	if snap.Current == nil {
		p.deleteLocked(ctx, ref)
		return
	}

	if !ref.IsZero() {
		err := p.renderer.Edit(ctx, ref, snap)
		if err == nil {
			return
		}
		p.log.Warn("control panel edit failed, sending a new one", "error", err)
		p.deleteLocked(ctx, ref)
	}

	if snap.TextChannelID == "" {
		return
	}
	newRef, err := p.renderer.Send(ctx, snap.TextChannelID, snap)
	if err != nil {
		p.log.Warn("control panel send failed", "channel_id", snap.TextChannelID, "error", err)
		return
	}
	p.session.SetPanelMessage(newRef)
	if p.store != nil {
		if err := p.store.SavePanel(ctx, p.session.GuildID(), newRef); err != nil {
			p.log.Warn("control panel not persisted", "error", err)
		}
	}
}

func (p *ControlPanel) deleteLocked(ctx context.Context, ref MessageRef) {
	if ref.IsZero() {
		return
	}
	if err := p.renderer.Delete(ctx, ref); err != nil {
		p.log.Debug("control panel delete failed", "error", err)
	}
	p.session.SetPanelMessage(MessageRef{})
	if p.store != nil {
		if err := p.store.DeletePanel(ctx, p.session.GuildID()); err != nil {
			p.log.Warn("control panel row not deleted", "error", err)
		}
	}
}

// Close stops the ticker and removes the message.
func (p *ControlPanel) Close(ctx context.Context) {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.deleteLocked(ctx, p.session.PanelMessage())
}
