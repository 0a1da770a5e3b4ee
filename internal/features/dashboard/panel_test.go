package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercade/bot/internal/music"
)

type fakeMessenger struct {
	sent    []*discordgo.MessageSend
	edits   []*discordgo.MessageEdit
	deleted []string
	nextID  int
	editErr error
}

func (f *fakeMessenger) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	f.nextID++
	return &discordgo.Message{ID: "m" + string(rune('0'+f.nextID)), ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeMessenger) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	return nil
}

type fakeLister struct {
	panels map[string]music.MessageRef
	err    error
}

func (f fakeLister) ListPanels(context.Context) (map[string]music.MessageRef, error) {
	return f.panels, f.err
}

type fakeStore struct {
	deleted []string
}

func (f *fakeStore) SavePanel(context.Context, string, music.MessageRef) error { return nil }

func (f *fakeStore) DeletePanel(_ context.Context, guildID string) error {
	f.deleted = append(f.deleted, guildID)
	return nil
}

func playingSnapshot() music.Snapshot {
	cur := music.Track{
		Title:       "Harder_Better",
		Author:      "Daft Punk",
		URI:         "https://example.com/hb",
		Duration:    4 * time.Minute,
		RequesterID: "u1",
		Source:      music.TrackSourceYouTube,
	}
	return music.Snapshot{
		GuildID:    "g1",
		State:      music.StatePlaying,
		Current:    &cur,
		Queue:      []music.Track{{Title: "One"}, {Title: "Two"}, {Title: "Three"}, {Title: "Four"}},
		RepeatMode: music.RepeatModeAll,
		Progress:   music.NewProgress(time.Minute, 4*time.Minute, false),
	}
}

func texts(components []discordgo.MessageComponent) string {
	var b strings.Builder
	for _, c := range components {
		switch v := c.(type) {
		case discordgo.Container:
			b.WriteString(texts(v.Components))
		case discordgo.Section:
			b.WriteString(texts(v.Components))
		case discordgo.TextDisplay:
			b.WriteString(v.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func buttons(components []discordgo.MessageComponent) map[string]discordgo.Button {
	out := make(map[string]discordgo.Button)
	for _, c := range components {
		switch v := c.(type) {
		case discordgo.Container:
			for k, b := range buttons(v.Components) {
				out[k] = b
			}
		case discordgo.ActionsRow:
			for _, inner := range v.Components {
				if b, ok := inner.(discordgo.Button); ok {
					out[b.CustomID] = b
				}
			}
		}
	}
	return out
}

func TestBuildPanelComponentsPlaying(t *testing.T) {
	components := BuildPanelComponents(playingSnapshot())
	content := texts(components)

	assert.Contains(t, content, `[Harder\_Better](https://example.com/hb)`)
	assert.Contains(t, content, "`01:00` `━━━◉─────────` `04:00`")
	assert.Contains(t, content, "Repeat **Queue** • 📋 Queue **4**")
	assert.Contains(t, content, "<@u1>")
	assert.Contains(t, content, "3. Three")
	assert.NotContains(t, content, "4. Four")

	btns := buttons(components)
	require.Len(t, btns, 7)
	assert.Equal(t, "Pause", btns[ButtonPause].Label)
	assert.Equal(t, discordgo.SuccessButton, btns[ButtonLoop].Style)
	assert.Equal(t, discordgo.SecondaryButton, btns[ButtonRepeat].Style)
	assert.False(t, btns[ButtonShuffle].Disabled)
}

func TestBuildPanelComponentsPausedStream(t *testing.T) {
	snap := playingSnapshot()
	snap.State = music.StatePaused
	snap.Current.IsStream = true
	snap.Progress = music.NewProgress(time.Hour, 0, true)
	snap.Queue = nil

	components := BuildPanelComponents(snap)
	assert.Contains(t, texts(components), "LIVE")
	assert.Contains(t, texts(components), "Paused")

	btns := buttons(components)
	assert.Equal(t, "Resume", btns[ButtonPause].Label)
	assert.True(t, btns[ButtonShuffle].Disabled)
}

func TestBuildPanelComponentsIdle(t *testing.T) {
	components := BuildPanelComponents(music.Snapshot{GuildID: "g1", State: music.StateEmpty})
	assert.Contains(t, texts(components), "Nothing is playing")
	assert.Empty(t, buttons(components))
}

func TestRendererRoundTrip(t *testing.T) {
	api := &fakeMessenger{}
	r := NewRenderer(api)
	ctx := context.Background()

	ref, err := r.Send(ctx, "c1", playingSnapshot())
	require.NoError(t, err)
	assert.Equal(t, music.MessageRef{ChannelID: "c1", MessageID: "m1"}, ref)
	assert.Equal(t, discordgo.MessageFlagsIsComponentsV2, api.sent[0].Flags)

	require.NoError(t, r.Edit(ctx, ref, playingSnapshot()))
	require.Len(t, api.edits, 1)
	assert.Equal(t, "m1", api.edits[0].ID)

	api.editErr = errors.New("unknown message")
	assert.Error(t, r.Edit(ctx, ref, playingSnapshot()))

	require.NoError(t, r.Delete(ctx, ref))
	assert.Equal(t, []string{"c1/m1"}, api.deleted)
}

func TestPurgeStale(t *testing.T) {
	api := &fakeMessenger{}
	store := &fakeStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	lister := fakeLister{panels: map[string]music.MessageRef{
		"g1": {ChannelID: "c1", MessageID: "m1"},
		"g2": {ChannelID: "c2", MessageID: "m2"},
	}}

	n := NewRenderer(api).PurgeStale(context.Background(), lister, store, log)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"c1/m1", "c2/m2"}, api.deleted)
	assert.ElementsMatch(t, []string{"g1", "g2"}, store.deleted)

	n = NewRenderer(api).PurgeStale(context.Background(), fakeLister{err: errors.New("down")}, store, log)
	assert.Zero(t, n)
}
