package ping

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/nodes"
)

const RefreshCustomID = "ping_refresh"

var startedAt = time.Now()

// Fleet reports the managed audio nodes.
type Fleet interface {
	Nodes() []nodes.NodeStatus
	Target() int
}

// Sessions reports active playback sessions.
type Sessions interface {
	Len() int
}

type Status struct {
	APILatency     time.Duration
	GatewayLatency time.Duration
	Guilds         int
	Shards         int
	Nodes          int
	TargetNodes    int
	Sessions       int
	Uptime         time.Duration
	MemoryMB       float64
	At             time.Time
}

type Handler struct {
	fleet    Fleet
	sessions Sessions
}

func NewHandler(fleet Fleet, sessions Sessions) *Handler {
	return &Handler{fleet: fleet, sessions: sessions}
}

func (h *Handler) status(s *discordgo.Session) Status {
	latency := s.HeartbeatLatency().Round(time.Millisecond)
	gatewayLatency := latency
	if !s.LastHeartbeatAck.IsZero() {
		gatewayLatency = time.Since(s.LastHeartbeatAck).Round(time.Millisecond)
	}

	guilds := 0
	if s.State != nil {
		guilds = len(s.State.Guilds)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		APILatency:     latency,
		GatewayLatency: gatewayLatency,
		Guilds:         guilds,
		Shards:         max(1, s.ShardCount),
		Uptime:         time.Since(startedAt).Round(time.Second),
		MemoryMB:       float64(mem.Alloc) / 1024.0 / 1024.0,
		At:             time.Now(),
	}
	if h.fleet != nil {
		for _, n := range h.fleet.Nodes() {
			if n.Connected {
				st.Nodes++
			}
		}
		st.TargetNodes = h.fleet.Target()
	}
	if h.sessions != nil {
		st.Sessions = h.sessions.Len()
	}
	return st
}

func BuildComponents(st Status) []discordgo.MessageComponent {
	colorLilac := 0xC8A2C8
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &colorLilac,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: "**Pong!**"},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.Section{
					Components: []discordgo.MessageComponent{
						discordgo.TextDisplay{Content: fmt.Sprintf("**API latency:** %s • **Gateway:** %s", st.APILatency, st.GatewayLatency)},
						discordgo.TextDisplay{Content: fmt.Sprintf("**Servers:** %d • **Shards:** %d", st.Guilds, st.Shards)},
						discordgo.TextDisplay{Content: fmt.Sprintf("**Audio nodes:** %d/%d • **Players:** %d", st.Nodes, st.TargetNodes, st.Sessions)},
					},
					Accessory: discordgo.Button{
						Style:    discordgo.PrimaryButton,
						Label:    "Refresh",
						CustomID: RefreshCustomID,
					},
				},
				discordgo.TextDisplay{Content: fmt.Sprintf("Uptime %s • Memory %.2f MB", st.Uptime, st.MemoryMB)},
				discordgo.TextDisplay{Content: fmt.Sprintf("Updated <t:%d:R>", st.At.Unix())},
			},
		},
	}
}

func (h *Handler) Command(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	shared.RespondComponents(s, i, discordgo.InteractionResponseChannelMessageWithSource, BuildComponents(h.status(s)))
}

// Route handles the refresh button and reports whether it consumed the interaction.
func (h *Handler) Route(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Type != discordgo.InteractionMessageComponent {
		return false
	}
	if i.MessageComponentData().CustomID != RefreshCustomID {
		return false
	}
	shared.RespondComponents(s, i, discordgo.InteractionResponseUpdateMessage, BuildComponents(h.status(s)))
	return true
}
