package listeners

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/dashboard"
	"github.com/cybercade/bot/internal/features/music/queueview"
	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const buttonTimeout = 5 * time.Second

type Handler struct {
	manager *music.Manager
	log     *slog.Logger
}

func NewHandler(manager *music.Manager, log *slog.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

// RouteDashboardComponent handles control panel buttons and reports whether
// it consumed the interaction.
func (h *Handler) RouteDashboardComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Type != discordgo.InteractionMessageComponent {
		return false
	}

	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, dashboard.CustomIDPrefix) {
		return false
	}

	h.handle(s, i, customID)
	return true
}

func (h *Handler) handle(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This button only works in a server.")
		return
	}

	session, ok := h.manager.Existing(i.GuildID)
	if !ok {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrNothingPlaying))
		return
	}

	if customID == dashboard.ButtonQueue {
		components, _ := queueview.BuildQueueComponents(session.Snapshot(), 1, queueview.DefaultPerPage)
		shared.RespondComponents(s, i, discordgo.InteractionResponseChannelMessageWithSource, components)
		return
	}

	if _, err := shared.FindUserVoiceChannel(s, i.GuildID, shared.GetInteractionUserID(i)); err != nil {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(shared.ErrNoVoiceChannel))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), buttonTimeout)
	defer cancel()

	if err := h.apply(ctx, session, customID); err != nil {
		h.log.Debug("panel action failed", "guild_id", i.GuildID, "button", customID, "error", err)
		shared.RespondEphemeral(s, i, shared.ErrorMessage(err))
		return
	}

	if customID == dashboard.ButtonStop {
		shared.RespondEphemeral(s, i, "Stopped playback and cleared the queue.")
		return
	}
	RespondUpdatePanel(s, i, session.Snapshot(), h.log)
}

func (h *Handler) apply(ctx context.Context, session *music.Session, customID string) error {
	guildID := session.GuildID()
	switch customID {
	case dashboard.ButtonPause:
		_, err := session.TogglePause(ctx)
		return err
	case dashboard.ButtonNext:
		_, err := session.Skip(ctx)
		return err
	case dashboard.ButtonStop:
		return h.manager.Stop(ctx, guildID)
	case dashboard.ButtonRepeat:
		return h.manager.SetRepeatMode(ctx, guildID, ToggleRepeat(session.RepeatMode(), music.RepeatModeTrack))
	case dashboard.ButtonLoop:
		return h.manager.SetRepeatMode(ctx, guildID, ToggleRepeat(session.RepeatMode(), music.RepeatModeAll))
	case dashboard.ButtonShuffle:
		session.Shuffle()
		return nil
	}
	return nil
}

// ToggleRepeat switches to mode, or back to none when mode is already on.
func ToggleRepeat(current, mode music.RepeatMode) music.RepeatMode {
	if current == mode {
		return music.RepeatModeNone
	}
	return mode
}

func RespondUpdatePanel(s *discordgo.Session, i *discordgo.InteractionCreate, snap music.Snapshot, log *slog.Logger) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Components: dashboard.BuildPanelComponents(snap),
			Flags:      discordgo.MessageFlagsIsComponentsV2,
		},
	})
	if err != nil {
		log.Warn("failed to update panel message", "guild_id", snap.GuildID, "error", err)
	}
}
