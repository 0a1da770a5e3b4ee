package music

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"
)

const settingsKeyPrefix = "music:settings:"

// SettingsStore persists per-guild playback preferences.
type SettingsStore interface {
	GetSettings(ctx context.Context, guildID string) (QueueSettings, error)
	SetSettings(ctx context.Context, guildID string, settings QueueSettings) error
}

type RedisSettingsStore struct {
	client *redislib.Client
}

func NewRedisSettingsStore(client *redislib.Client) *RedisSettingsStore {
	return &RedisSettingsStore{client: client}
}

func (q *RedisSettingsStore) GetSettings(ctx context.Context, guildID string) (QueueSettings, error) {
	if q.client == nil {
		return QueueSettings{}, fmt.Errorf("redis client is nil")
	}
	if guildID == "" {
		return QueueSettings{}, fmt.Errorf("guild id is required")
	}

	data, err := q.client.HGetAll(ctx, settingsKey(guildID)).Result()
	if err != nil {
		return QueueSettings{}, err
	}
	return decodeSettings(data), nil
}

func (q *RedisSettingsStore) SetSettings(ctx context.Context, guildID string, settings QueueSettings) error {
	if q.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if guildID == "" {
		return fmt.Errorf("guild id is required")
	}

	return q.client.HSet(ctx, settingsKey(guildID), encodeSettings(settings)).Err()
}

func settingsKey(guildID string) string {
	return settingsKeyPrefix + guildID
}

func decodeSettings(data map[string]string) QueueSettings {
	settings := QueueSettings{RepeatMode: RepeatModeNone}
	if v, ok := data["repeat_mode"]; ok {
		if mode, valid := ParseRepeatMode(v); valid {
			settings.RepeatMode = mode
		}
	}
	return settings
}

func encodeSettings(settings QueueSettings) map[string]any {
	mode := settings.RepeatMode
	if mode == "" {
		mode = RepeatModeNone
	}
	return map[string]any{"repeat_mode": string(mode)}
}
