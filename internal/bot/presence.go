package bot

import (
	"fmt"
	"time"
)

const presenceUpdateInterval = 60 * time.Second

func (b *Bot) startPresenceUpdater() {
	if b.presenceStop != nil {
		return
	}
	b.presenceStop = make(chan struct{})
	go func(stop chan struct{}) {
		ticker := time.NewTicker(presenceUpdateInterval)
		defer ticker.Stop()

		b.updatePresence()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.updatePresence()
			}
		}
	}(b.presenceStop)
}

func (b *Bot) stopPresenceUpdater() {
	if b.presenceStop == nil {
		return
	}
	close(b.presenceStop)
	b.presenceStop = nil
}

func presenceText(shardID, guilds, players int) string {
	status := fmt.Sprintf("shard #%d • %d servers", max(1, shardID+1), guilds)
	if players > 0 {
		status += fmt.Sprintf(" • %d playing", players)
	}
	return status
}

func (b *Bot) updatePresence() {
	players := 0
	if b.music != nil {
		players = b.music.Len()
	}

	for _, s := range b.sessions {
		guildCount := 0
		if s.State != nil {
			guildCount = len(s.State.Guilds)
		}

		if err := s.UpdateGameStatus(0, presenceText(s.ShardID, guildCount, players)); err != nil {
			b.log.Debug("failed to update presence", "shard", s.ShardID, "error", err)
		}
	}
}
