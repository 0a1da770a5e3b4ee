package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

const syncTrigger = "!sync"

// HandleSyncMessage re-registers slash commands in the current guild when the
// bot owner types !sync.
func (h *Handlers) HandleSyncMessage(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if s == nil || m == nil || m.Author == nil {
		return false
	}
	if m.Author.Bot || m.GuildID == "" {
		return false
	}
	if strings.TrimSpace(m.Content) != syncTrigger {
		return false
	}

	if h.ownerID == "" || m.Author.ID != h.ownerID {
		_, _ = s.ChannelMessageSend(m.ChannelID, "Only the bot owner can use this command.")
		return true
	}

	appID := h.appID
	if appID == "" && s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	}
	if appID == "" {
		_, _ = s.ChannelMessageSend(m.ChannelID, "Command sync failed: application id unknown.")
		return true
	}

	if _, err := RegisterCommands(s, appID, m.GuildID, h.log); err != nil {
		h.log.Warn("command sync failed", "guild_id", m.GuildID, "error", err)
		_, _ = s.ChannelMessageSend(m.ChannelID, "Command sync failed: "+err.Error())
		return true
	}

	h.log.Info("commands synced", "guild_id", m.GuildID, "owner_id", m.Author.ID)
	_, _ = s.ChannelMessageSend(m.ChannelID, "Slash commands synced to this server.")
	return true
}
