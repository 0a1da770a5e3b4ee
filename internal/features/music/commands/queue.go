package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/dashboard"
	"github.com/cybercade/bot/internal/features/music/queueview"
	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

func (h *Handler) Queue(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}

	perPage := int(shared.GetOptionInt64(options, "limit"))
	components, _ := queueview.BuildQueueComponents(session.Snapshot(), 1, perPage)
	shared.RespondComponents(s, i, discordgo.InteractionResponseChannelMessageWithSource, components)
}

func (h *Handler) NowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}
	shared.RespondComponents(s, i, discordgo.InteractionResponseChannelMessageWithSource, dashboard.BuildPanelComponents(session.Snapshot()))
}

// Save sends the current track to the requester's DMs.
func (h *Handler) Save(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}
	snap := session.Snapshot()
	if snap.Current == nil {
		shared.RespondEphemeral(s, i, "Nothing is playing.")
		return
	}

	dm, err := s.UserChannelCreate(shared.GetInteractionUserID(i))
	if err != nil {
		shared.RespondEphemeral(s, i, "I could not open a DM with you.")
		return
	}
	if _, err := s.ChannelMessageSendEmbed(dm.ID, saveEmbed(*snap.Current, snap.Progress)); err != nil {
		h.log.Debug("save DM failed", "user_id", shared.GetInteractionUserID(i), "error", err)
		shared.RespondEphemeral(s, i, "I could not DM you. Check your privacy settings.")
		return
	}
	shared.RespondEphemeral(s, i, "📬 Sent the track to your DMs.")
}

func saveEmbed(t music.Track, progress music.Progress) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  shared.Truncate(t.Title, 256),
		URL:    t.URI,
		Color:  shared.AccentColor,
		Footer: &discordgo.MessageEmbedFooter{Text: "Saved at " + progress.String()},
	}
	if t.Author != "" {
		embed.Description = "by " + t.Author
	}
	if t.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL}
	}
	return embed
}
