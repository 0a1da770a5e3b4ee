package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const maxChoiceLength = 100

// Voice moves the bot between voice channels.
type Voice interface {
	JoinVoice(guildID, channelID string) error
}

type Handler struct {
	service  *music.Service
	searcher *music.Searcher
	voice    Voice
	log      *slog.Logger
}

func NewHandler(service *music.Service, searcher *music.Searcher, voice Voice, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		searcher: searcher,
		voice:    voice,
		log:      log,
	}
}

func (h *Handler) manager() *music.Manager {
	return h.service.Manager()
}

// session returns the guild's live session or replies that nothing is playing.
func (h *Handler) session(s *discordgo.Session, i *discordgo.InteractionCreate) (*music.Session, bool) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return nil, false
	}
	if !h.service.Enabled() {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrPlayerDisabled))
		return nil, false
	}
	session, ok := h.manager().Existing(i.GuildID)
	if !ok {
		shared.RespondEphemeral(s, i, shared.ErrorMessage(music.ErrNothingPlaying))
		return nil, false
	}
	return session, true
}

func describeTrack(t music.Track) string {
	title := shared.EscapeMarkdown(shared.Truncate(strings.TrimSpace(t.Title), 80))
	if title == "" {
		title = "Unknown title"
	}
	if t.URI != "" {
		title = fmt.Sprintf("[%s](%s)", title, t.URI)
	}
	if t.IsStream {
		return title + " `live`"
	}
	return fmt.Sprintf("%s `%s`", title, music.FormatDuration(t.Duration))
}

// playSummary is the reply to a successful play request.
func playSummary(res music.PlayResult, pos music.Position) string {
	var b strings.Builder
	switch {
	case res.PlaylistName != "":
		fmt.Fprintf(&b, "Added **%d** tracks from **%s**", len(res.Added), shared.EscapeMarkdown(res.PlaylistName))
	case len(res.Added) == 1:
		fmt.Fprintf(&b, "Added %s", describeTrack(res.Added[0]))
	default:
		fmt.Fprintf(&b, "Added **%d** tracks", len(res.Added))
	}
	if pos == music.AtStart {
		b.WriteString(" to the front of the queue.")
	} else {
		b.WriteString(" to the queue.")
	}
	if res.Started != nil {
		fmt.Fprintf(&b, "\n▶️ Now playing %s", describeTrack(*res.Started))
	}
	return b.String()
}

// autocompleteChoices maps search hits to choices whose value is replayable
// as play input.
func autocompleteChoices(tracks []music.Track) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(tracks))
	for _, t := range tracks {
		name := t.Title
		if t.Author != "" {
			name = t.Title + " - " + t.Author
		}
		value := t.URI
		if value == "" || len(value) > maxChoiceLength {
			value = t.Title
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  shared.Truncate(name, maxChoiceLength),
			Value: shared.Truncate(value, maxChoiceLength),
		})
	}
	return choices
}
