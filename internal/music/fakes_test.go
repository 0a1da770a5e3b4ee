package music

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlayer struct {
	mu       sync.Mutex
	played   []string
	stops    int
	released int
	paused   []bool
	position time.Duration
	playErr  error

	// entered and gate, when set, hold Play until the test lets it through.
	entered chan struct{}
	gate    chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context, guildID string, track Track) error {
	if p.gate != nil {
		p.entered <- struct{}{}
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.played = append(p.played, track.Encoded)
	return nil
}

func (p *fakePlayer) Stop(ctx context.Context, guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) SetPaused(ctx context.Context, guildID string, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = append(p.paused, paused)
	return nil
}

func (p *fakePlayer) Position(guildID string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Release(ctx context.Context, guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	return nil
}

func (p *fakePlayer) releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *fakePlayer) playedTracks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func track(id string) Track {
	return Track{
		Title:    "title " + id,
		Author:   "author",
		URI:      "https://example.com/" + id,
		Duration: 3 * time.Minute,
		Encoded:  id,
	}
}

func tracks(ids ...string) []Track {
	out := make([]Track, len(ids))
	for i, id := range ids {
		out[i] = track(id)
	}
	return out
}

func encodedOf(ts []Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Encoded
	}
	return out
}

type staticReadiness bool

func (r staticReadiness) Ready() bool { return bool(r) }

type fakeLoader struct {
	mu     sync.Mutex
	result LoadResult
	err    error
	calls  []string
}

func (l *fakeLoader) LoadTracks(ctx context.Context, identifier string) (LoadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, identifier)
	if l.err != nil {
		return LoadResult{}, l.err
	}
	res := l.result
	res.Tracks = append([]Track(nil), l.result.Tracks...)
	return res, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	sent    int
	edits   int
	deleted []MessageRef
	editErr error
	block   chan struct{}
}

func (r *fakeRenderer) Send(ctx context.Context, channelID string, snap Snapshot) (MessageRef, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
	return MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", r.sent)}, nil
}

func (r *fakeRenderer) Edit(ctx context.Context, ref MessageRef, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits++
	return r.editErr
}

func (r *fakeRenderer) Delete(ctx context.Context, ref MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, ref)
	return nil
}

func (r *fakeRenderer) counts() (sent, edits, deleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.edits, len(r.deleted)
}

type memoryPanelStore struct {
	mu   sync.Mutex
	refs map[string]MessageRef
}

func newMemoryPanelStore() *memoryPanelStore {
	return &memoryPanelStore{refs: make(map[string]MessageRef)}
}

func (s *memoryPanelStore) SavePanel(ctx context.Context, guildID string, ref MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[guildID] = ref
	return nil
}

func (s *memoryPanelStore) DeletePanel(ctx context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, guildID)
	return nil
}

func (s *memoryPanelStore) get(guildID string) (MessageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[guildID]
	return ref, ok
}

type memorySettings struct {
	mu   sync.Mutex
	data map[string]QueueSettings
}

func (s *memorySettings) GetSettings(ctx context.Context, guildID string) (QueueSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[guildID], nil
}

func (s *memorySettings) SetSettings(ctx context.Context, guildID string, settings QueueSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]QueueSettings)
	}
	s.data[guildID] = settings
	return nil
}
