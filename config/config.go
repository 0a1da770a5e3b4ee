package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken  string
	ApplicationID string

	GuildID string
	OwnerID string

	ShardCount int

	ServiceName      string
	LogLevel         string
	LogFormat        string
	OTelEndpoint     string
	AutoLeaveTimeout int
	DefaultVolume    int
	MaxQueueSize     int

	MusicPlayerEnabled bool
	PanelRefresh       time.Duration

	NodeDirectoryURL    string
	NodeTargetCount     int
	NodeRequiredSources []string
	NodeCatalogTimeout  time.Duration
	NodeConnectTimeout  time.Duration
	NodeFaultDelay      time.Duration
	NodeSweepInterval   time.Duration
	NodeInitialDelay    time.Duration

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
}

const DefaultNodeDirectoryURL = "https://lavalink-api.appujet.site/api/nodes"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		ApplicationID: os.Getenv("DISCORD_APPLICATION_ID"),

		GuildID: os.Getenv("DISCORD_GUILD_ID"),
		OwnerID: os.Getenv("BOT_OWNER_ID"),

		ShardCount: getEnvAsIntWithDefault("SHARD_COUNT", 0),

		ServiceName:      getEnvWithDefault("SERVICE_NAME", "cybercade"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:        getEnvWithDefault("LOG_FORMAT", "text"),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_ENDPOINT"),
		AutoLeaveTimeout: getEnvAsIntWithDefault("AUTO_LEAVE_TIMEOUT", 300),
		DefaultVolume:    getEnvAsIntWithDefault("DEFAULT_VOLUME", 100),
		MaxQueueSize:     getEnvAsIntWithDefault("MAX_QUEUE_SIZE", 500),

		MusicPlayerEnabled: getEnvAsBoolWithDefault("MUSIC_PLAYER_ENABLED", true),
		PanelRefresh:       getEnvAsDuration("PANEL_REFRESH_INTERVAL", 10*time.Second),

		NodeDirectoryURL:    getEnvWithDefault("NODE_DIRECTORY_URL", DefaultNodeDirectoryURL),
		NodeTargetCount:     getEnvAsIntWithDefault("NODE_TARGET_COUNT", 3),
		NodeRequiredSources: getEnvAsList("NODE_REQUIRED_SOURCES", []string{"youtube", "soundcloud", "spotify"}),
		NodeCatalogTimeout:  getEnvAsDuration("NODE_CATALOG_TIMEOUT", 10*time.Second),
		NodeConnectTimeout:  getEnvAsDuration("NODE_CONNECT_TIMEOUT", 15*time.Second),
		NodeFaultDelay:      getEnvAsDuration("NODE_FAULT_DELAY", 5*time.Second),
		NodeSweepInterval:   getEnvAsDuration("NODE_SWEEP_INTERVAL", 5*time.Minute),
		NodeInitialDelay:    getEnvAsDuration("NODE_INITIAL_DELAY", 5*time.Second),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvAsInt("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  os.Getenv("DB_SSLMODE"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvAsInt("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntWithDefault("REDIS_DB", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}

	if c.ApplicationID == "" {
		return errors.New("DISCORD_APPLICATION_ID is required")
	}

	if c.DefaultVolume < 0 || c.DefaultVolume > 200 {
		return errors.New("DEFAULT_VOLUME must be between 0 and 200")
	}

	if c.MaxQueueSize < 1 {
		return errors.New("MAX_QUEUE_SIZE must be at least 1")
	}

	if c.NodeTargetCount < 0 {
		return errors.New("NODE_TARGET_COUNT must not be negative")
	}

	if c.MusicPlayerEnabled && c.NodeDirectoryURL == "" {
		return errors.New("NODE_DIRECTORY_URL is required when the music player is enabled")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.GuildID != ""
}

func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != "" && c.DBName != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnvAsInt(key string) int {
	return getEnvAsIntWithDefault(key, 0)
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
