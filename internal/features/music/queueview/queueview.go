package queueview

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cybercade/bot/internal/features/shared"
	"github.com/cybercade/bot/internal/music"
)

const (
	CustomIDPrefix = "music_queue_page"
	DefaultPerPage = 10
	MaxPerPage     = 25
)

type PageInfo struct {
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	StartIndex int
	EndIndex   int
}

// Paginate clamps page and perPage and works out the slice bounds.
func Paginate(total, page, perPage int) PageInfo {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = clamp(perPage, 1, MaxPerPage)
	pages := max(1, int(math.Ceil(float64(total)/float64(perPage))))
	page = clamp(page, 1, pages)

	start := (page - 1) * perPage
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: pages,
		StartIndex: start,
		EndIndex:   min(start+perPage, total),
	}
}

// BuildQueueComponents renders one page of the pending queue.
func BuildQueueComponents(snap music.Snapshot, page int, perPage int) ([]discordgo.MessageComponent, PageInfo) {
	info := Paginate(len(snap.Queue), page, perPage)

	var list strings.Builder
	for i, t := range snap.Queue[info.StartIndex:info.EndIndex] {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d. %s `%s`", info.StartIndex+i+1, titleOf(t), lengthOf(t))
	}
	listContent := list.String()
	if listContent == "" {
		listContent = "The queue is empty."
	}

	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall
	accent := shared.AccentColor
	page, perPage = info.Page, info.PerPage

	components := []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: "📋 **Queue**"},
				discordgo.TextDisplay{Content: nowPlayingLine(snap)},
				discordgo.TextDisplay{Content: fmt.Sprintf("Page **%d/%d** · **%d** tracks · repeat **%s**", page, info.TotalPages, info.TotalItems, snap.RepeatMode)},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.TextDisplay{Content: listContent},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Style:    discordgo.SecondaryButton,
							Label:    "Previous",
							CustomID: MakeQueuePageCustomID(page-1, perPage),
							Disabled: page <= 1,
						},
						discordgo.Button{
							Style:    discordgo.SecondaryButton,
							Label:    "Next",
							CustomID: MakeQueuePageCustomID(page+1, perPage),
							Disabled: page >= info.TotalPages,
						},
					},
				},
			},
		},
	}

	return components, info
}

func titleOf(t music.Track) string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Unknown title"
	}
	title = shared.EscapeMarkdown(shared.Truncate(title, 60))
	if t.URI != "" {
		return fmt.Sprintf("[%s](%s)", title, t.URI)
	}
	return title
}

func lengthOf(t music.Track) string {
	if t.IsStream {
		return "live"
	}
	return music.FormatDuration(t.Duration)
}

func nowPlayingLine(snap music.Snapshot) string {
	if snap.Current == nil {
		return "Nothing is playing."
	}
	return fmt.Sprintf("Now: %s · %s", titleOf(*snap.Current), snap.Progress)
}

func MakeQueuePageCustomID(page int, perPage int) string {
	if page < 1 {
		page = 1
	}
	perPage = clamp(perPage, 1, MaxPerPage)
	return fmt.Sprintf("%s:%d:%d", CustomIDPrefix, page, perPage)
}

func ParseQueuePageCustomID(customID string) (page int, perPage int, ok bool) {
	if !strings.HasPrefix(customID, CustomIDPrefix+":") {
		return 0, 0, false
	}

	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		return 0, 0, false
	}

	pageVal, err := strconv.Atoi(parts[1])
	if err != nil || pageVal < 1 {
		return 0, 0, false
	}

	perPageVal, err := strconv.Atoi(parts[2])
	if err != nil || perPageVal < 1 {
		return 0, 0, false
	}

	return pageVal, clamp(perPageVal, 1, MaxPerPage), true
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}
