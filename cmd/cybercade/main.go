package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cybercade/bot/config"
	"github.com/cybercade/bot/internal/bot"
	"github.com/cybercade/bot/internal/logging"
	"github.com/cybercade/bot/internal/telemetry"
)

const usage = `Please ensure you have set the following environment variables:
  DISCORD_TOKEN          - Your Discord bot token (required)
  DISCORD_APPLICATION_ID - Your Discord application ID (required)

Optional environment variables:
  DISCORD_GUILD_ID       - Guild ID for development (registers commands to specific guild)
  BOT_OWNER_ID           - User allowed to run !sync
  SHARD_COUNT            - Number of shards (0 = auto-detect)
  LOG_LEVEL, LOG_FORMAT  - debug|info|warn|error, text|json
  DEFAULT_VOLUME         - Default volume level (0-200, default: 100)
  MAX_QUEUE_SIZE         - Maximum queue size per guild (default: 500)
  AUTO_LEAVE_TIMEOUT     - Idle seconds before a player is released (0 = disabled, default: 300)
  MUSIC_PLAYER_ENABLED   - Set false to turn music commands off (default: true)
  PANEL_REFRESH_INTERVAL - Control panel refresh interval (default: 10s)
  OTEL_EXPORTER_ENDPOINT - OTLP gRPC collector for traces

Audio nodes:
  NODE_DIRECTORY_URL, NODE_TARGET_COUNT, NODE_REQUIRED_SOURCES,
  NODE_CATALOG_TIMEOUT, NODE_CONNECT_TIMEOUT, NODE_FAULT_DELAY,
  NODE_SWEEP_INTERVAL, NODE_INITIAL_DELAY

Database configuration:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE

Redis configuration:
  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB`

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n\n%s\n", err, usage)
		os.Exit(1)
	}

	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()

	mode := "production"
	if cfg.IsDevelopment() {
		mode = "development"
	}
	log.Info("configuration loaded",
		"mode", mode,
		"guild_id", cfg.GuildID,
		"shards", cfg.ShardCount,
		"default_volume", cfg.DefaultVolume,
		"max_queue_size", cfg.MaxQueueSize,
		"auto_leave_seconds", cfg.AutoLeaveTimeout,
		"music_enabled", cfg.MusicPlayerEnabled,
		"node_directory", cfg.NodeDirectoryURL,
		"node_target", cfg.NodeTargetCount,
		"node_sources", strings.Join(cfg.NodeRequiredSources, ","),
		"database", cfg.DatabaseEnabled(),
		"redis", cfg.RedisEnabled(),
		"tracing", cfg.OTelEndpoint != "",
	)

	b, err := bot.New(cfg, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	log.Info("starting bot")
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	log.Info("bot is running, press CTRL+C to exit")
	<-ctx.Done()

	log.Info("shutting down")
	if err := b.Stop(); err != nil {
		log.Warn("failed to stop bot cleanly", "error", err)
	}
	return nil
}
