package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const controlTimeout = 5 * time.Second

func controlContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), controlTimeout)
}

func (h *Handler) Skip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}
	ctx, cancel := controlContext()
	defer cancel()

	next, err := session.Skip(ctx)
	if err != nil {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(err))
		return
	}
	shared.RespondEphemeral(s, i, "⏭️ Skipped. Now playing "+describeTrack(next))
}

func (h *Handler) Stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, ok := h.session(s, i); !ok {
		return
	}
	ctx, cancel := controlContext()
	defer cancel()

	if err := h.manager().Stop(ctx, i.GuildID); err != nil {
		h.log.Warn("stop failed", "guild_id", i.GuildID, "error", err)
		shared.RespondEphemeral(s, i, shared.ErrorMessage(err))
		return
	}
	shared.RespondEphemeral(s, i, "⏹️ Stopped playback and cleared the queue.")
}

func (h *Handler) Pause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.setPaused(s, i, true)
}

func (h *Handler) Resume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.setPaused(s, i, false)
}

func (h *Handler) setPaused(s *discordgo.Session, i *discordgo.InteractionCreate, paused bool) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}
	ctx, cancel := controlContext()
	defer cancel()

	var err error
	if paused {
		err = session.Pause(ctx)
	} else {
		err = session.Resume(ctx)
	}
	if err != nil {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(err))
		return
	}
	if paused {
		shared.RespondEphemeral(s, i, "⏸️ Paused.")
	} else {
		shared.RespondEphemeral(s, i, "▶️ Resumed.")
	}
}

func (h *Handler) Shuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := h.session(s, i)
	if !ok {
		return
	}
	n := session.Shuffle()
	shared.RespondEphemeral(s, i, fmt.Sprintf("🔀 Shuffled %d queued tracks.", n))
}

func (h *Handler) Repeat(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if _, ok := h.session(s, i); !ok {
		return
	}

	mode, valid := music.ParseRepeatMode(shared.GetOptionString(options, "mode"))
	if !valid {
		shared.RespondEphemeral(s, i, "Unknown repeat mode. Use off, track or all.")
		return
	}

	ctx, cancel := controlContext()
	defer cancel()
	if err := h.manager().SetRepeatMode(ctx, i.GuildID, mode); err != nil {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(err))
		return
	}
	shared.RespondEphemeral(s, i, "🔁 Repeat mode set to **"+repeatName(mode)+"**.")
}

func repeatName(mode music.RepeatMode) string {
	switch mode {
	case music.RepeatModeTrack:
		return "track"
	case music.RepeatModeAll:
		return "all"
	default:
		return "off"
	}
}
