package commands

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const (
	playTimeout         = 30 * time.Second
	autocompleteTimeout = 2500 * time.Millisecond
	autocompleteMinLen  = 2
	autocompleteResults = 10
)

func (h *Handler) Play(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}
	if !h.service.Enabled() {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrPlayerDisabled))
		return
	}
	if !h.manager().Ready() {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrServiceNotReady))
		return
	}

	input := strings.TrimSpace(shared.GetOptionString(options, "input"))
	if input == "" {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrMissingInput))
		return
	}
	pos := music.ParsePosition(shared.GetOptionString(options, "position"))

	userID := shared.GetInteractionUserID(i)
	channelID, err := shared.FindUserVoiceChannel(s, i.GuildID, userID)
	if err != nil {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(shared.ErrNoVoiceChannel))
		return
	}

	if err := shared.DeferEphemeral(s, i); err != nil {
		h.log.Warn("play defer failed", "guild_id", i.GuildID, "error", err)
		return
	}

	if err := h.voice.JoinVoice(i.GuildID, channelID); err != nil {
		h.log.Warn("voice join failed", "guild_id", i.GuildID, "channel_id", channelID, "error", err)
		shared.FollowupEphemeral(s, i, "I could not join your voice channel.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	res, err := h.service.Play(ctx, music.PlayRequest{
		GuildID:       i.GuildID,
		TextChannelID: i.ChannelID,
		RequesterID:   userID,
		Input:         input,
		Position:      pos,
	})
	if err != nil {
		h.log.Info("play request failed", "guild_id", i.GuildID, "input", input, "error", err)
		shared.FollowupEphemeral(s, i, shared.ErrorMessage(err))
		return
	}

	shared.FollowupEphemeral(s, i, playSummary(res, pos))
}

// Autocomplete suggests search results while the user types the play input.
func (h *Handler) Autocomplete(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	var choices []*discordgo.ApplicationCommandOptionChoice

	focused := shared.FocusedOption(options)
	if focused != nil && focused.Name == "input" && h.service.Enabled() && h.manager().Ready() {
		query := strings.TrimSpace(focused.StringValue())
		if len([]rune(query)) >= autocompleteMinLen {
			ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
			tracks, err := h.searcher.Search(ctx, query, autocompleteResults)
			cancel()
			if err != nil {
				h.log.Debug("autocomplete search failed", "query", query, "error", err)
			}
			choices = autocompleteChoices(tracks)
		}
	}
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		h.log.Debug("autocomplete respond failed", "error", err)
	}
}
