package lavalink

import (
	"context"
	"time"

	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
)

const trackEventTimeout = 10 * time.Second

func (c *Client) onTrackStart(p disgolink.Player, e lavalink.TrackStartEvent) {
	if h := c.trackEvents(); h != nil {
		h.HandleTrackStart(p.GuildID().String(), e.Track.Encoded)
	}
}

func (c *Client) onTrackEnd(p disgolink.Player, e lavalink.TrackEndEvent) {
	h := c.trackEvents()
	if h == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), trackEventTimeout)
	defer cancel()
	h.HandleTrackEnd(ctx, p.GuildID().String(), e.Track.Encoded, e.Reason.MayStartNext())
}

func (c *Client) onTrackException(p disgolink.Player, e lavalink.TrackExceptionEvent) {
	if h := c.trackEvents(); h != nil {
		h.HandleTrackException(p.GuildID().String(), e.Track.Encoded, e.Exception.Message)
	}
}

func (c *Client) onTrackStuck(p disgolink.Player, e lavalink.TrackStuckEvent) {
	c.log.Warn("track stuck", "guild_id", p.GuildID().String(), "title", e.Track.Info.Title)
}
