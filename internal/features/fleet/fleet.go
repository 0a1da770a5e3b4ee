package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/nodes"
)

const refreshTimeout = 30 * time.Second

// Controller is the part of the node lifecycle controller exposed to admins.
type Controller interface {
	Nodes() []nodes.NodeStatus
	Target() int
	Phase() nodes.Phase
	Refresh(ctx context.Context) (int, error)
}

type Handler struct {
	controller Controller
	log        *slog.Logger
}

func NewHandler(controller Controller, log *slog.Logger) *Handler {
	return &Handler{controller: controller, log: log}
}

func (h *Handler) Command(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !shared.IsManager(i) {
		shared.RespondEphemeral(s, i, "You need the Manage Server permission for this command.")
		return
	}

	sub := shared.GetSubcommandOption(i.ApplicationCommandData())
	if sub == nil {
		shared.RespondEphemeral(s, i, "Pick a subcommand.")
		return
	}

	switch sub.Name {
	case "status":
		shared.RespondEphemeral(s, i, StatusText(h.controller.Nodes(), h.controller.Target(), h.controller.Phase()))
	case "refresh":
		h.refresh(s, i)
	default:
		shared.RespondEphemeral(s, i, "Unsupported nodes subcommand.")
	}
}

func (h *Handler) refresh(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := shared.DeferEphemeral(s, i); err != nil {
		h.log.Warn("nodes refresh defer failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	added, err := h.controller.Refresh(ctx)
	h.log.Info("manual node refresh", "user_id", shared.GetInteractionUserID(i), "added", added, "error", err)
	shared.FollowupEphemeral(s, i, RefreshText(added, err)+"\n\n"+StatusText(h.controller.Nodes(), h.controller.Target(), h.controller.Phase()))
}

func RefreshText(added int, err error) string {
	switch {
	case errors.Is(err, nodes.ErrCycleInFlight):
		return "A refresh is already running. It will run once more when it finishes."
	case errors.Is(err, nodes.ErrCatalogUnavailable):
		return "The node directory is unreachable right now."
	case errors.Is(err, nodes.ErrNoSuitableNodes):
		return "The directory has no suitable nodes right now."
	case err != nil:
		return "Refresh failed: " + err.Error()
	case added == 0:
		return "The fleet is already at its target."
	default:
		return fmt.Sprintf("Connected **%d** new node(s).", added)
	}
}

func StatusText(list []nodes.NodeStatus, target int, phase nodes.Phase) string {
	connected := 0
	for _, n := range list {
		if n.Connected {
			connected++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛰️ **Audio nodes** %d/%d connected (target %d) • cycle `%s`", connected, len(list), target, phase)
	if len(list) == 0 {
		b.WriteString("\nNo nodes are managed yet.")
		return b.String()
	}
	for _, n := range list {
		state := "🟢"
		if !n.Connected {
			state = "🔴"
		}
		fmt.Fprintf(&b, "\n%s `%s` %s • since <t:%d:R>", state, n.Identifier, n.Address, n.ManagedSince.Unix())
	}
	return b.String()
}
