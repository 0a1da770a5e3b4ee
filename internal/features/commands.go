package commands

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	dashboardlisteners "github.com/cybercade/bot/internal/features/dashboard/listeners"
	"github.com/cybercade/bot/internal/features/fleet"
	musiccmd "github.com/cybercade/bot/internal/features/music/commands"
	musiclisteners "github.com/cybercade/bot/internal/features/music/listeners"
	"github.com/cybercade/bot/internal/features/ping"
	"github.com/cybercade/bot/internal/features/shared"
)

var manageGuild int64 = discordgo.PermissionManageGuild

var CommandList = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Show bot and audio node status",
	},
	{
		Name:        "music",
		Description: "Play and control music",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a song, playlist or search result",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "input",
						Description:  "Link or search terms",
						Required:     true,
						Autocomplete: true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "position",
						Description: "Where to put it in the queue",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "End of queue", Value: "end"},
							{Name: "Play next", Value: "start"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "limit",
						Description: "Tracks per page",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "repeat",
				Description: "Set the repeat mode",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "off / track / all",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Off", Value: "none"},
							{Name: "Repeat track", Value: "track"},
							{Name: "Repeat queue", Value: "all"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "save",
				Description: "DM yourself the current track",
			},
		},
	},
	{
		Name:                     "nodes",
		Description:              "Inspect and refresh the audio node fleet",
		DefaultMemberPermissions: &manageGuild,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "List managed audio nodes",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "refresh",
				Description: "Top the fleet up from the node directory now",
			},
		},
	},
}

// Handlers routes gateway events to the feature handlers.
type Handlers struct {
	appID   string
	ownerID string
	log     *slog.Logger

	ping      *ping.Handler
	music     *musiccmd.Handler
	fleet     *fleet.Handler
	dashboard *dashboardlisteners.Handler
	listeners *musiclisteners.Handler
}

type Deps struct {
	AppID   string
	OwnerID string
	Log     *slog.Logger

	Ping      *ping.Handler
	Music     *musiccmd.Handler
	Fleet     *fleet.Handler
	Dashboard *dashboardlisteners.Handler
	Listeners *musiclisteners.Handler
}

func New(d Deps) *Handlers {
	return &Handlers{
		appID:     d.AppID,
		ownerID:   d.OwnerID,
		log:       d.Log,
		ping:      d.Ping,
		music:     d.Music,
		fleet:     d.Fleet,
		dashboard: d.Dashboard,
		listeners: d.Listeners,
	}
}

func (h *Handlers) handleMusicGroupCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := shared.GetSubcommandOption(i.ApplicationCommandData())
	if sub == nil {
		shared.RespondEphemeral(s, i, "Pick a subcommand.")
		return
	}

	switch sub.Name {
	case "play":
		h.music.Play(s, i, sub.Options)
	case "skip":
		h.music.Skip(s, i)
	case "stop":
		h.music.Stop(s, i)
	case "pause":
		h.music.Pause(s, i)
	case "resume":
		h.music.Resume(s, i)
	case "nowplaying":
		h.music.NowPlaying(s, i)
	case "queue":
		h.music.Queue(s, i, sub.Options)
	case "repeat":
		h.music.Repeat(s, i, sub.Options)
	case "shuffle":
		h.music.Shuffle(s, i)
	case "save":
		h.music.Save(s, i)
	default:
		shared.RespondEphemeral(s, i, "Unsupported music command.")
	}
}

func (h *Handlers) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "ping":
		h.ping.Command(s, i)
	case "music":
		h.handleMusicGroupCommand(s, i)
	case "nodes":
		h.fleet.Command(s, i)
	}
}

func (h *Handlers) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "music" {
		return
	}
	if sub := shared.GetSubcommandOption(data); sub != nil && sub.Name == "play" {
		h.music.Autocomplete(s, i, sub.Options)
	}
}

func RegisterCommands(s *discordgo.Session, appID string, guildID string, log *slog.Logger) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	log.Info("registering commands", "count", len(CommandList), "scope", scope)

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, CommandList)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}

func (h *Handlers) AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		h.HandleSyncMessage(s, m)
	})

	s.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		h.listeners.HandleVoiceStateUpdate(s, vs)
	})

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			h.handleCommand(s, i)
		case discordgo.InteractionApplicationCommandAutocomplete:
			h.handleAutocomplete(s, i)
		case discordgo.InteractionMessageComponent:
			if h.ping.Route(s, i) {
				return
			}
			if h.listeners.RouteMusicComponent(s, i) {
				return
			}
			h.dashboard.RouteDashboardComponent(s, i)
		}
	})
}
