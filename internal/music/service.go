package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Loader resolves user input into playable tracks through the audio client.
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (LoadResult, error)
}

type LoadKind string

const (
	LoadTrack    LoadKind = "track"
	LoadPlaylist LoadKind = "playlist"
	LoadSearch   LoadKind = "search"
	LoadEmpty    LoadKind = "empty"
)

type LoadResult struct {
	Kind         LoadKind
	Tracks       []Track
	PlaylistName string
}

const searchPrefix = "ytmsearch:"

type PlayRequest struct {
	GuildID       string
	TextChannelID string
	RequesterID   string
	Input         string
	Position      Position
}

type PlayResult struct {
	Added        []Track
	PlaylistName string
	// Started is set when this request started playback.
	Started *Track
}

// Service turns play requests into queued tracks.
type Service struct {
	manager *Manager
	loader  Loader
	enabled bool
}

func NewService(manager *Manager, loader Loader, enabled bool) *Service {
	return &Service{
		manager: manager,
		loader:  loader,
		enabled: enabled,
	}
}

func (s *Service) Enabled() bool { return s.enabled }

func (s *Service) Manager() *Manager { return s.manager }

// Identifier maps free text to a search query and leaves links alone.
func Identifier(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return input
	}
	return searchPrefix + input
}

func (s *Service) ResolveInput(ctx context.Context, input string, requesterID string) (LoadResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return LoadResult{}, ErrMissingInput
	}

	result, err := s.loader.LoadTracks(ctx, Identifier(input))
	if err != nil {
		return LoadResult{}, err
	}
	if result.Kind == LoadEmpty || len(result.Tracks) == 0 {
		return LoadResult{}, ErrNoMatches
	}
	if result.Kind == LoadSearch {
		result.Tracks = result.Tracks[:1]
	}

	for i := range result.Tracks {
		result.Tracks[i].RequesterID = requesterID
	}
	return result, nil
}

// Play resolves the input, queues what it found and starts playback when the
// session is idle.
func (s *Service) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	if !s.enabled {
		return PlayResult{}, ErrPlayerDisabled
	}

	session, err := s.manager.Session(ctx, req.GuildID)
	if err != nil {
		return PlayResult{}, err
	}

	loaded, err := s.ResolveInput(ctx, req.Input, req.RequesterID)
	if err != nil {
		return PlayResult{}, err
	}

	session.BindTextChannel(req.TextChannelID)
	n, err := session.EnqueueAll(loaded.Tracks, req.Position)
	if err != nil {
		return PlayResult{}, err
	}

	result := PlayResult{
		Added:        loaded.Tracks[:n],
		PlaylistName: loaded.PlaylistName,
	}

	state := session.State()
	if state == StatePlaying || state == StatePaused {
		return result, nil
	}

	started, err := session.Play(ctx)
	if err != nil && !errors.Is(err, ErrNoTrackAvailable) {
		return result, fmt.Errorf("start playback: %w", err)
	}
	if err == nil {
		result.Started = &started
	}
	return result, nil
}
