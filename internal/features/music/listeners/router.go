package listeners

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/music/queueview"
	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const voiceEmptyNotice = "🔇 Everyone left the voice channel, so playback stopped."

type Handler struct {
	manager *music.Manager
	log     *slog.Logger
}

func NewHandler(manager *music.Manager, log *slog.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

func (h *Handler) RouteMusicComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Type != discordgo.InteractionMessageComponent {
		return false
	}

	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, "music_") {
		return false
	}

	h.HandleMusicComponent(s, i)
	return true
}

func (h *Handler) HandleMusicComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	page, perPage, ok := queueview.ParseQueuePageCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	session, exists := h.manager.Existing(i.GuildID)
	if !exists {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrNothingPlaying))
		return
	}

	components, _ := queueview.BuildQueueComponents(session.Snapshot(), page, perPage)
	shared.RespondComponents(s, i, discordgo.InteractionResponseUpdateMessage, components)
}

func (h *Handler) stopAlone(guildID, textChannelID string, s *discordgo.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.manager.Stop(ctx, guildID); err != nil {
		h.log.Debug("auto-stop skipped", "guild_id", guildID, "error", err)
		return
	}
	h.log.Info("voice channel empty, playback stopped", "guild_id", guildID)

	if textChannelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Description: voiceEmptyNotice,
		Color:       0x3C6AA1,
	}
	if _, err := s.ChannelMessageSendEmbed(textChannelID, embed); err != nil {
		h.log.Warn("failed to send voice-empty notice", "guild_id", guildID, "error", err)
	}
}
