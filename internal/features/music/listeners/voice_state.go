package listeners

import (
	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
)

func (h *Handler) HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s == nil || vs == nil || vs.GuildID == "" {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if botID == "" {
		return
	}

	session, ok := h.manager.Existing(vs.GuildID)
	if !ok {
		return
	}

	guild, err := shared.GuildWithVoiceStates(s, vs.GuildID)
	if err != nil {
		return
	}

	if !BotAlone(guild.VoiceStates, botID) {
		return
	}

	h.stopAlone(vs.GuildID, session.TextChannelID(), s)
}

// BotAlone reports whether the bot sits in a voice channel nobody else is in.
func BotAlone(states []*discordgo.VoiceState, botID string) bool {
	botChannelID, err := shared.VoiceChannelOf(states, botID)
	if err != nil {
		return false
	}

	for _, state := range states {
		if state.ChannelID == botChannelID && state.UserID != botID {
			return false
		}
	}
	return true
}
