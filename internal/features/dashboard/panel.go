package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const (
	ButtonNext    = "dashboard_next"
	ButtonPause   = "dashboard_pause"
	ButtonStop    = "dashboard_stop"
	ButtonRepeat  = "dashboard_repeat"
	ButtonLoop    = "dashboard_loop"
	ButtonShuffle = "dashboard_shuffle"
	ButtonQueue   = "dashboard_queue"

	CustomIDPrefix = "dashboard_"

	progressBarSize = 12
	upNextLimit     = 3
)

// Messenger is the slice of the discord REST API the panel needs.
type Messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Renderer draws control panels as components v2 messages.
type Renderer struct {
	api Messenger
}

func NewRenderer(api Messenger) *Renderer {
	return &Renderer{api: api}
}

func (r *Renderer) Send(ctx context.Context, channelID string, snap music.Snapshot) (music.MessageRef, error) {
	msg, err := r.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Components: BuildPanelComponents(snap),
		Flags:      discordgo.MessageFlagsIsComponentsV2,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return music.MessageRef{}, err
	}
	return music.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (r *Renderer) Edit(ctx context.Context, ref music.MessageRef, snap music.Snapshot) error {
	components := BuildPanelComponents(snap)
	_, err := r.api.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Components: &components,
		Flags:      discordgo.MessageFlagsIsComponentsV2,
	}, discordgo.WithContext(ctx))
	return err
}

func (r *Renderer) Delete(ctx context.Context, ref music.MessageRef) error {
	return r.api.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
}

// PanelLister lists panels recorded by a previous run.
type PanelLister interface {
	ListPanels(ctx context.Context) (map[string]music.MessageRef, error)
}

// PurgeStale deletes panels left behind by a previous process and forgets
// them. It returns how many were removed.
func (r *Renderer) PurgeStale(ctx context.Context, lister PanelLister, store music.PanelStore, log *slog.Logger) int {
	panels, err := lister.ListPanels(ctx)
	if err != nil {
		log.Warn("listing stale panels failed", "error", err)
		return 0
	}

	removed := 0
	for guildID, ref := range panels {
		if err := r.Delete(ctx, ref); err != nil {
			log.Debug("stale panel already gone", "guild_id", guildID, "error", err)
		}
		if err := store.DeletePanel(ctx, guildID); err != nil {
			log.Warn("forgetting stale panel failed", "guild_id", guildID, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func repeatLabel(mode music.RepeatMode) string {
	switch mode {
	case music.RepeatModeTrack:
		return "Track"
	case music.RepeatModeAll:
		return "Queue"
	default:
		return "Off"
	}
}

func sourceLabel(source music.TrackSource) string {
	switch source {
	case music.TrackSourceYouTube:
		return "YouTube"
	case music.TrackSourceSpotify:
		return "Spotify"
	case music.TrackSourceSoundCloud:
		return "SoundCloud"
	default:
		return "Unknown"
	}
}

func trackLine(t music.Track) string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Unknown title"
	}
	title = shared.EscapeMarkdown(shared.Truncate(title, 80))
	if t.URI != "" {
		return fmt.Sprintf("[%s](%s)", title, t.URI)
	}
	return title
}

func progressLine(p music.Progress) string {
	if p.Live {
		return "`🔴 LIVE`"
	}
	return fmt.Sprintf("`%s` `%s` `%s`",
		music.FormatDuration(p.Position), p.Bar(progressBarSize), music.FormatDuration(p.Duration))
}

func BuildPanelComponents(snap music.Snapshot) []discordgo.MessageComponent {
	accent := 0x3C6AA1
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	components := []discordgo.MessageComponent{
		discordgo.TextDisplay{Content: "▶️ **Now playing**"},
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
	}

	if snap.Current == nil {
		components = append(components, discordgo.TextDisplay{Content: "🟡 **Nothing is playing**"})
		return []discordgo.MessageComponent{
			discordgo.Container{AccentColor: &accent, Components: components},
		}
	}

	cur := *snap.Current
	nowPlaying := []discordgo.MessageComponent{
		discordgo.TextDisplay{Content: "🎧 **" + trackLine(cur) + "**"},
		discordgo.TextDisplay{Content: progressLine(snap.Progress)},
	}
	if art := strings.TrimSpace(cur.ArtworkURL); art != "" {
		components = append(components, discordgo.Section{
			Components: nowPlaying,
			Accessory: discordgo.Thumbnail{
				Media: discordgo.UnfurledMediaItem{URL: art},
			},
		})
	} else {
		components = append(components, nowPlaying...)
	}

	status := "▶️ **Playing**"
	if snap.State == music.StatePaused {
		status = "⏸️ **Paused**"
	}
	meta := []string{status, "🎵 " + sourceLabel(cur.Source)}
	if cur.Author != "" {
		meta = append(meta, shared.EscapeMarkdown(cur.Author))
	}

	components = append(components,
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
		discordgo.TextDisplay{Content: strings.Join(meta, " • ")},
		discordgo.TextDisplay{Content: fmt.Sprintf("🔁 Repeat **%s** • 📋 Queue **%d**", repeatLabel(snap.RepeatMode), len(snap.Queue))},
	)
	if cur.RequesterID != "" {
		components = append(components, discordgo.TextDisplay{Content: fmt.Sprintf("`Requested by` <@%s>", cur.RequesterID)})
	}
	if len(snap.Queue) > 0 {
		next := make([]string, 0, upNextLimit)
		for idx, t := range snap.Queue[:min(upNextLimit, len(snap.Queue))] {
			next = append(next, fmt.Sprintf("%d. %s", idx+1, trackLine(t)))
		}
		components = append(components, discordgo.TextDisplay{Content: "**Up next**\n" + strings.Join(next, "\n")})
	}

	components = append(components,
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
		discordgo.ActionsRow{Components: playbackButtons(snap)},
		discordgo.ActionsRow{Components: queueButtons(snap)},
	)

	return []discordgo.MessageComponent{
		discordgo.Container{AccentColor: &accent, Components: components},
	}
}

func playbackButtons(snap music.Snapshot) []discordgo.MessageComponent {
	pauseLabel := "Pause"
	pauseStyle := discordgo.SecondaryButton
	if snap.State == music.StatePaused {
		pauseLabel = "Resume"
		pauseStyle = discordgo.SuccessButton
	}

	return []discordgo.MessageComponent{
		discordgo.Button{Style: pauseStyle, Label: pauseLabel, CustomID: ButtonPause},
		discordgo.Button{Style: discordgo.PrimaryButton, Label: "Next", CustomID: ButtonNext},
		discordgo.Button{Style: discordgo.DangerButton, Label: "Stop", CustomID: ButtonStop},
	}
}

func queueButtons(snap music.Snapshot) []discordgo.MessageComponent {
	toggle := func(on bool) discordgo.ButtonStyle {
		if on {
			return discordgo.SuccessButton
		}
		return discordgo.SecondaryButton
	}

	return []discordgo.MessageComponent{
		discordgo.Button{Style: toggle(snap.RepeatMode == music.RepeatModeTrack), Label: "Repeat one", CustomID: ButtonRepeat},
		discordgo.Button{Style: toggle(snap.RepeatMode == music.RepeatModeAll), Label: "Loop all", CustomID: ButtonLoop},
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "Shuffle", CustomID: ButtonShuffle, Disabled: len(snap.Queue) < 2},
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "Queue", CustomID: ButtonQueue},
	}
}
