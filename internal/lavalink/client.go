package lavalink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/cybercade/bot/internal/music"
	"github.com/cybercade/bot/internal/nodes"
)

const defaultStatusPoll = 2 * time.Second

var (
	ErrNoNode       = errors.New("no audio node available")
	ErrInvalidGuild = errors.New("invalid guild id")
	ErrNoGateway    = errors.New("no gateway session for guild")
)

// VoiceGateway sends voice state changes for the bot user.
type VoiceGateway interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// TrackEvents receives playback events from the audio client.
type TrackEvents interface {
	HandleTrackStart(guildID, encoded string)
	HandleTrackEnd(ctx context.Context, guildID, encoded string, mayStartNext bool)
	HandleTrackException(guildID, encoded, message string)
}

// Client adapts disgolink to the node connector and the per-guild player.
type Client struct {
	link       disgolink.Client
	log        *slog.Logger
	statusPoll time.Duration

	mu      sync.RWMutex
	events  TrackEvents
	gateway func(guildID string) VoiceGateway
	volume  int
}

func New(userID string, log *slog.Logger) (*Client, error) {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse bot user id: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		log:        log.With("component", "lavalink"),
		statusPoll: defaultStatusPoll,
		volume:     100,
	}
	c.link = disgolink.New(id,
		disgolink.WithListenerFunc(c.onTrackStart),
		disgolink.WithListenerFunc(c.onTrackEnd),
		disgolink.WithListenerFunc(c.onTrackException),
		disgolink.WithListenerFunc(c.onTrackStuck),
	)
	return c, nil
}

func (c *Client) SetTrackEvents(events TrackEvents) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
}

// SetGateway installs the lookup for the gateway session serving a guild.
func (c *Client) SetGateway(fn func(guildID string) VoiceGateway) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gateway = fn
}

// SetDefaultVolume sets the volume new tracks start at.
func (c *Client) SetDefaultVolume(volume int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = min(1000, max(0, volume))
}

func (c *Client) defaultVolume() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

func (c *Client) trackEvents() TrackEvents {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events
}

func (c *Client) voiceGateway(guildID string) VoiceGateway {
	c.mu.RLock()
	fn := c.gateway
	c.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(guildID)
}

// Connect registers a node with the audio client.
func (c *Client) Connect(ctx context.Context, cfg nodes.NodeConfig) (nodes.Conn, error) {
	node, err := c.link.AddNode(ctx, disgolink.NodeConfig{
		Name:     cfg.Identifier,
		Address:  cfg.Address(),
		Password: cfg.Password,
		Secure:   cfg.Secure,
	})
	if err != nil {
		return nil, err
	}
	return newNodeConn(c.link, node, cfg.Identifier, c.statusPoll), nil
}

func parseGuild(guildID string) (snowflake.ID, error) {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidGuild, guildID)
	}
	return id, nil
}

func (c *Client) player(guildID string) (disgolink.Player, error) {
	id, err := parseGuild(guildID)
	if err != nil {
		return nil, err
	}
	if p := c.link.ExistingPlayer(id); p != nil {
		return p, nil
	}
	if c.link.BestNode() == nil {
		return nil, ErrNoNode
	}
	return c.link.Player(id), nil
}

func (c *Client) Play(ctx context.Context, guildID string, track music.Track) error {
	p, err := c.player(guildID)
	if err != nil {
		return err
	}
	return p.Update(ctx,
		lavalink.WithTrack(lavalink.Track{Encoded: track.Encoded}),
		lavalink.WithPaused(false),
		lavalink.WithVolume(c.defaultVolume()),
	)
}

func (c *Client) Stop(ctx context.Context, guildID string) error {
	id, err := parseGuild(guildID)
	if err != nil {
		return err
	}
	p := c.link.ExistingPlayer(id)
	if p == nil {
		return nil
	}
	return p.Update(ctx, lavalink.WithNullTrack())
}

func (c *Client) SetPaused(ctx context.Context, guildID string, paused bool) error {
	id, err := parseGuild(guildID)
	if err != nil {
		return err
	}
	p := c.link.ExistingPlayer(id)
	if p == nil {
		return ErrNoNode
	}
	return p.Update(ctx, lavalink.WithPaused(paused))
}

func (c *Client) Position(guildID string) time.Duration {
	id, err := parseGuild(guildID)
	if err != nil {
		return 0
	}
	p := c.link.ExistingPlayer(id)
	if p == nil {
		return 0
	}
	return time.Duration(p.Position()) * time.Millisecond
}

// Release destroys the guild's player and leaves the voice channel.
func (c *Client) Release(ctx context.Context, guildID string) error {
	id, err := parseGuild(guildID)
	if err != nil {
		return err
	}

	var errs []error
	if p := c.link.ExistingPlayer(id); p != nil {
		if err := p.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("destroy player: %w", err))
		}
		c.link.RemovePlayer(id)
	}
	if err := c.LeaveVoice(guildID); err != nil && !errors.Is(err, ErrNoGateway) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) JoinVoice(guildID, channelID string) error {
	gw := c.voiceGateway(guildID)
	if gw == nil {
		return ErrNoGateway
	}
	return gw.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

func (c *Client) LeaveVoice(guildID string) error {
	gw := c.voiceGateway(guildID)
	if gw == nil {
		return ErrNoGateway
	}
	return gw.ChannelVoiceJoinManual(guildID, "", false, false)
}

// OnVoiceStateUpdate forwards the bot's own voice state to the audio client.
func (c *Client) OnVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e == nil || e.VoiceState == nil || s.State == nil || s.State.User == nil {
		return
	}
	if e.UserID != s.State.User.ID {
		return
	}
	id, err := parseGuild(e.GuildID)
	if err != nil {
		return
	}

	var channelID *snowflake.ID
	if e.ChannelID != "" {
		if ch, err := snowflake.Parse(e.ChannelID); err == nil {
			channelID = &ch
		}
	}
	c.link.OnVoiceStateUpdate(context.Background(), id, channelID, e.SessionID)
}

func (c *Client) OnVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if e == nil {
		return
	}
	id, err := parseGuild(e.GuildID)
	if err != nil {
		return
	}
	c.link.OnVoiceServerUpdate(context.Background(), id, e.Token, e.Endpoint)
}

// LoadTracks resolves an identifier on the best node.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (music.LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return music.LoadResult{}, music.ErrServiceNotReady
	}

	var (
		result  music.LoadResult
		loadErr error
	)
	node.LoadTracksHandler(ctx, identifier, disgolink.NewResultHandler(
		func(track lavalink.Track) {
			result = music.LoadResult{Kind: music.LoadTrack, Tracks: []music.Track{convertTrack(track)}}
		},
		func(playlist lavalink.Playlist) {
			result = music.LoadResult{
				Kind:         music.LoadPlaylist,
				Tracks:       convertTracks(playlist.Tracks),
				PlaylistName: playlist.Info.Name,
			}
		},
		func(tracks []lavalink.Track) {
			result = music.LoadResult{Kind: music.LoadSearch, Tracks: convertTracks(tracks)}
		},
		func() {
			result = music.LoadResult{Kind: music.LoadEmpty}
		},
		func(err error) {
			loadErr = err
		},
	))
	if loadErr != nil {
		return music.LoadResult{}, fmt.Errorf("load tracks: %w", loadErr)
	}
	return result, nil
}

// Close removes every node connection.
func (c *Client) Close() {
	c.link.Close()
}

func convertTracks(in []lavalink.Track) []music.Track {
	out := make([]music.Track, 0, len(in))
	for _, t := range in {
		out = append(out, convertTrack(t))
	}
	return out
}

func convertTrack(t lavalink.Track) music.Track {
	track := music.Track{
		Title:    t.Info.Title,
		Author:   t.Info.Author,
		Duration: time.Duration(t.Info.Length) * time.Millisecond,
		IsStream: t.Info.IsStream,
		Source:   music.ParseTrackSource(t.Info.SourceName),
		Encoded:  t.Encoded,
	}
	if t.Info.URI != nil {
		track.URI = *t.Info.URI
	}
	if t.Info.ArtworkURL != nil {
		track.ArtworkURL = *t.Info.ArtworkURL
	}
	return track
}
