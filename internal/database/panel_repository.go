package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/cybercade/bot/internal/music"
)

const panelRepoTimeout = 2 * time.Second

// PanelRepository stores the now-playing message of each guild so panels
// left behind by a previous process can be removed.
type PanelRepository struct {
	db *sql.DB
}

func NewPanelRepository(db *sql.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

func (r *PanelRepository) SavePanel(ctx context.Context, guildID string, ref music.MessageRef) error {
	if r == nil || r.db == nil {
		return nil
	}
	if guildID == "" || ref.IsZero() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO control_panels (guild_id, channel_id, message_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guild_id)
		DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			message_id = EXCLUDED.message_id,
			updated_at = NOW();
	`

	_, err := r.db.ExecContext(ctx, query, guildID, ref.ChannelID, ref.MessageID)
	return err
}

func (r *PanelRepository) DeletePanel(ctx context.Context, guildID string) error {
	if r == nil || r.db == nil {
		return nil
	}
	if guildID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM control_panels WHERE guild_id = $1`, guildID)
	return err
}

// ListPanels returns every stored panel keyed by guild.
func (r *PanelRepository) ListPanels(ctx context.Context) (map[string]music.MessageRef, error) {
	out := make(map[string]music.MessageRef)
	if r == nil || r.db == nil {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT guild_id, channel_id, message_id FROM control_panels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var guildID string
		var ref music.MessageRef
		if err := rows.Scan(&guildID, &ref.ChannelID, &ref.MessageID); err != nil {
			return nil, err
		}
		out[guildID] = ref
	}
	return out, rows.Err()
}
