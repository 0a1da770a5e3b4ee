package lavalink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercade/bot/internal/music"
	"github.com/cybercade/bot/internal/nodes"
)

func TestConvertTrack(t *testing.T) {
	uri := "https://youtu.be/abc"
	art := "https://i.ytimg.com/abc.jpg"
	got := convertTrack(lavalink.Track{
		Encoded: "QAAA",
		Info: lavalink.TrackInfo{
			Identifier: "abc",
			Author:     "artist",
			Length:     lavalink.Duration(185_000),
			Title:      "song",
			URI:        &uri,
			SourceName: "youtube",
			ArtworkURL: &art,
		},
	})

	assert.Equal(t, music.Track{
		Title:      "song",
		Author:     "artist",
		URI:        uri,
		Duration:   185 * time.Second,
		ArtworkURL: art,
		Source:     music.TrackSourceYouTube,
		Encoded:    "QAAA",
	}, got)
}

func TestConvertStreamWithoutLinks(t *testing.T) {
	got := convertTrack(lavalink.Track{
		Encoded: "QBBB",
		Info:    lavalink.TrackInfo{Title: "radio", IsStream: true, SourceName: "http"},
	})
	assert.True(t, got.IsStream)
	assert.Empty(t, got.URI)
	assert.Equal(t, music.TrackSourceUnknown, got.Source)
}

func TestStatusEvent(t *testing.T) {
	ev, ok := statusEvent(disgolink.StatusConnected)
	require.True(t, ok)
	assert.Equal(t, nodes.NodeConnected, ev.Type)

	ev, ok = statusEvent(disgolink.StatusDisconnected)
	require.True(t, ok)
	assert.Equal(t, nodes.NodeDisconnected, ev.Type)

	_, ok = statusEvent(disgolink.StatusConnecting)
	assert.False(t, ok)
}

type recordingGateway struct {
	calls [][2]string
	err   error
}

func (g *recordingGateway) ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error {
	g.calls = append(g.calls, [2]string{gID, cID})
	return g.err
}

func TestVoiceJoinAndLeave(t *testing.T) {
	c, err := New("123456789012345678", quiet())
	require.NoError(t, err)

	assert.ErrorIs(t, c.JoinVoice("1", "2"), ErrNoGateway)

	gw := &recordingGateway{}
	c.SetGateway(func(string) VoiceGateway { return gw })
	require.NoError(t, c.JoinVoice("1", "2"))
	require.NoError(t, c.LeaveVoice("1"))
	assert.Equal(t, [][2]string{{"1", "2"}, {"1", ""}}, gw.calls)

	gw.err = errors.New("gateway closed")
	assert.Error(t, c.LeaveVoice("1"))
}

func TestPlayerWithoutNodes(t *testing.T) {
	c, err := New("123456789012345678", quiet())
	require.NoError(t, err)

	err = c.Play(context.Background(), "111111111111111111", music.Track{Encoded: "x"})
	assert.ErrorIs(t, err, ErrNoNode)
	assert.ErrorIs(t, c.Play(context.Background(), "not-a-guild", music.Track{}), ErrInvalidGuild)
	assert.Zero(t, c.Position("111111111111111111"))
	assert.NoError(t, c.Stop(context.Background(), "111111111111111111"))

	_, err = c.LoadTracks(context.Background(), "ytmsearch:x")
	assert.ErrorIs(t, err, music.ErrServiceNotReady)
}

func TestNewRejectsBadUserID(t *testing.T) {
	_, err := New("bot", quiet())
	assert.Error(t, err)
}

func TestDefaultVolumeClamped(t *testing.T) {
	c, err := New("123456789012345678", quiet())
	require.NoError(t, err)
	assert.Equal(t, 100, c.defaultVolume())

	c.SetDefaultVolume(150)
	assert.Equal(t, 150, c.defaultVolume())
	c.SetDefaultVolume(-3)
	assert.Zero(t, c.defaultVolume())
	c.SetDefaultVolume(5000)
	assert.Equal(t, 1000, c.defaultVolume())
}
