package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	redislib "github.com/redis/go-redis/v9"

	"github.com/cybercade/bot/config"
	"github.com/cybercade/bot/internal/database"
	commands "github.com/cybercade/bot/internal/features"
	"github.com/cybercade/bot/internal/features/dashboard"
	dashboardlisteners "github.com/cybercade/bot/internal/features/dashboard/listeners"
	"github.com/cybercade/bot/internal/features/fleet"
	musiccmd "github.com/cybercade/bot/internal/features/music/commands"
	musiclisteners "github.com/cybercade/bot/internal/features/music/listeners"
	"github.com/cybercade/bot/internal/features/ping"
	"github.com/cybercade/bot/internal/lavalink"
	"github.com/cybercade/bot/internal/music"
	"github.com/cybercade/bot/internal/nodes"
	"github.com/cybercade/bot/internal/redis"
)

const shutdownTimeout = 15 * time.Second

type Bot struct {
	config       *config.Config
	log          *slog.Logger
	sessions     []*discordgo.Session
	started      bool
	presenceStop chan struct{}

	db     *sql.DB
	redis  *redislib.Client
	audio  *lavalink.Client
	fleet  *nodes.Controller
	music  *music.Manager
	cancel context.CancelFunc
}

func New(cfg *config.Config, log *slog.Logger) (*Bot, error) {
	shardCount := cfg.ShardCount
	if shardCount < 1 {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		if gw, err := s.GatewayBot(); err == nil && gw.Shards > 0 {
			shardCount = gw.Shards
		} else {
			log.Warn("failed to auto-detect shard count, defaulting to 1", "error", err)
			shardCount = 1
		}
	}

	if shardCount < 1 {
		shardCount = 1
	}

	sessions := make([]*discordgo.Session, 0, shardCount)
	for shard := range shardCount {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		s.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent

		if shardCount > 1 {
			s.Identify.Shard = &[2]int{shard, shardCount}
			s.ShardCount = shardCount
		}

		sessions = append(sessions, s)
	}

	return &Bot{
		config:   cfg,
		log:      log,
		sessions: sessions,
	}, nil
}

// ShardFor returns the shard index that owns a guild.
func ShardFor(guildID string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % uint64(shardCount))
}

func (b *Bot) gatewayFor(guildID string) lavalink.VoiceGateway {
	if len(b.sessions) == 0 {
		return nil
	}
	return b.sessions[ShardFor(guildID, len(b.sessions))]
}

func (b *Bot) openStores(ctx context.Context) {
	cfg := b.config
	if cfg.DatabaseEnabled() {
		db, err := database.Open(ctx, &database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, b.log)
		if err != nil {
			b.log.Warn("database initialization failed, panels will not survive restarts", "error", err)
		} else {
			b.db = db
		}
	}

	if cfg.RedisEnabled() {
		client, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, b.log)
		if err != nil {
			b.log.Warn("redis initialization failed, repeat settings will not persist", "error", err)
		} else {
			b.redis = client
		}
	}
}

func (b *Bot) Start(ctx context.Context) error {
	if b.started {
		return nil
	}
	if len(b.sessions) == 0 {
		return nil
	}

	cfg := b.config
	ctx, b.cancel = context.WithCancel(ctx)
	b.openStores(ctx)

	me, err := b.sessions[0].User("@me")
	if err != nil {
		return fmt.Errorf("resolve bot user: %w", err)
	}

	b.audio, err = lavalink.New(me.ID, b.log)
	if err != nil {
		return err
	}
	b.audio.SetGateway(b.gatewayFor)
	b.audio.SetDefaultVolume(cfg.DefaultVolume)

	catalog := nodes.NewHTTPCatalog(cfg.NodeDirectoryURL, cfg.NodeRequiredSources, cfg.NodeCatalogTimeout, b.log)
	b.fleet = nodes.NewController(nodes.ControllerConfig{
		Target:         cfg.NodeTargetCount,
		FaultDelay:     cfg.NodeFaultDelay,
		SweepInterval:  cfg.NodeSweepInterval,
		InitialDelay:   cfg.NodeInitialDelay,
		ConnectTimeout: cfg.NodeConnectTimeout,
	}, nodes.NewRegistry(), catalog, b.audio, b.log)

	renderer := dashboard.NewRenderer(b.sessions[0])
	opts := []music.ManagerOption{}
	if b.redis != nil {
		opts = append(opts, music.WithSettingsStore(music.NewRedisSettingsStore(b.redis)))
	}
	if b.db != nil {
		panels := database.NewPanelRepository(b.db)
		if n := renderer.PurgeStale(ctx, panels, panels, b.log); n > 0 {
			b.log.Info("removed stale control panels", "count", n)
		}
		opts = append(opts, music.WithControlPanel(renderer, panels))
	} else {
		opts = append(opts, music.WithControlPanel(renderer, nil))
	}

	b.music = music.NewManager(music.ManagerConfig{
		MaxQueueSize:      cfg.MaxQueueSize,
		InactivityTimeout: time.Duration(cfg.AutoLeaveTimeout) * time.Second,
		PanelInterval:     cfg.PanelRefresh,
	}, b.fleet, b.audio, b.log, opts...)
	b.audio.SetTrackEvents(b.music)

	service := music.NewService(b.music, b.audio, cfg.MusicPlayerEnabled)
	handlers := commands.New(commands.Deps{
		AppID:     cfg.ApplicationID,
		OwnerID:   cfg.OwnerID,
		Log:       b.log,
		Ping:      ping.NewHandler(b.fleet, b.music),
		Music:     musiccmd.NewHandler(service, music.NewSearcher(b.audio), b.audio, b.log),
		Fleet:     fleet.NewHandler(b.fleet, b.log),
		Dashboard: dashboardlisteners.NewHandler(b.music, b.log),
		Listeners: musiclisteners.NewHandler(b.music, b.log),
	})

	for _, s := range b.sessions {
		b.registerHandlers(s)
		s.AddHandler(b.audio.OnVoiceStateUpdate)
		s.AddHandler(b.audio.OnVoiceServerUpdate)
		handlers.AddHandlers(s)
	}

	if _, err := commands.RegisterCommands(b.sessions[0], cfg.ApplicationID, cfg.GuildID, b.log); err != nil {
		b.log.Warn("failed to register slash commands", "error", err)
	}

	for _, s := range b.sessions {
		if err := s.Open(); err != nil {
			return err
		}
	}

	if cfg.MusicPlayerEnabled {
		b.fleet.Start(ctx)
	}
	if cfg.AutoLeaveTimeout > 0 {
		b.music.StartJanitor()
	}

	b.startPresenceUpdater()
	b.started = true
	b.log.Info("bot sessions opened", "shards", len(b.sessions), "music_enabled", cfg.MusicPlayerEnabled)
	return nil
}

func (b *Bot) registerHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			b.log.Info("bot ready", "user", r.User.Username, "shard", s.ShardID, "guilds", len(r.Guilds))
		} else {
			b.log.Info("bot ready", "shard", s.ShardID)
		}
		b.updatePresence()
	})
}

func (b *Bot) Stop() error {
	if !b.started {
		return nil
	}
	b.started = false
	b.stopPresenceUpdater()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	b.music.Close(ctx)
	b.fleet.Stop()
	b.audio.Close()
	if b.cancel != nil {
		b.cancel()
	}

	var errs []error
	for _, s := range b.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.log.Warn("failed to close database", "error", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			b.log.Warn("failed to close redis", "error", err)
		}
	}

	b.log.Info("bot sessions closed", "shards", len(b.sessions))
	return errors.Join(errs...)
}
