package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/config"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/server"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	"github.com/kapu/campaign-ops-go/internal/service/cache"
	"github.com/kapu/campaign-ops-go/internal/service/defense"
	"github.com/kapu/campaign-ops-go/internal/service/network"
	"github.com/kapu/campaign-ops-go/internal/service/profile"
	"github.com/kapu/campaign-ops-go/internal/service/targeting"
	"github.com/kapu/campaign-ops-go/internal/service/translate"
	"github.com/kapu/campaign-ops-go/internal/session"
	"go.uber.org/zap"
)

// Container bundles the assembled services.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Sessions *session.Manager
	Server   *server.Server

	closers []func()
}

// Close releases infrastructure in reverse order of construction.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles every service. Heavy initialisation (AI clients, Redis)
// happens here so the session layer stays focused on orchestration.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	m := metrics.New()
	clock := clockwork.NewRealClock()

	// Scout cache: Redis when configured, in-process otherwise
	var backend cache.Cache
	if cfg.Redis.Enabled {
		redisCache, redisErr := cache.NewRedisCache(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if redisErr != nil {
			return nil, fmt.Errorf("failed to create cache service: %w", redisErr)
		}
		backend = redisCache
	} else {
		backend = cache.NewMemoryCache(clock)
		logger.Info("Redis disabled, using in-memory scout cache")
	}
	closers = append(closers, func() {
		_ = backend.Close()
	})
	scoutCache := cache.NewScoutCache(backend, cfg.Acquisition.CacheTTL, m, logger)

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:   cfg.Gemini.APIKey,
		OpenAIAPIKey:   cfg.OpenAI.APIKey,
		TextModel:      cfg.Gemini.TextModel,
		ImageModel:     cfg.Gemini.ImageModel,
		SpeechModel:    cfg.Gemini.SpeechModel,
		Voice:          cfg.Gemini.Voice,
		OpenAIModel:    cfg.OpenAI.Model,
		EnableFallback: cfg.OpenAI.EnableFallback,
		Metrics:        m,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	// Defense
	var prober defense.PageProber
	if cfg.Acquisition.PageProbe {
		prober = defense.NewHTTPPageProbe(logger)
	}
	coordinator := defense.NewCoordinator(modelManager, prober, scoutCache, clock, defense.CoordinatorConfig{
		SimulationDelay: cfg.Acquisition.SimulationDelay,
	}, m, logger)

	profiles, err := profile.NewStore(cfg.Profiles.File, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate profiles: %w", err)
	}

	seed := uint64(cfg.Simulator.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	parser := network.NewParser(rand.New(rand.NewPCG(seed, seed>>1)))

	services := session.Services{
		Scout:      coordinator,
		Vision:     defense.NewVisionAdapter(modelManager, logger),
		Analysis:   defense.NewAnalysisEngine(modelManager, logger),
		Targeting:  targeting.NewPipeline(modelManager, modelManager, logger),
		Network:    network.NewAgent(parser, modelManager, logger),
		Translator: translate.NewTranslator(modelManager, logger),
		Profiles:   profiles,
	}

	// Sessions outlive ctx, which only bounds initialisation; Shutdown ends them.
	sessions := session.NewManager(context.Background(), services, session.ManagerConfig{
		Operator: session.Credentials{Username: cfg.Operator.Username, Password: cfg.Operator.Password},
		IdleTTL:  cfg.Session.IdleTTL,
		Controller: session.Config{
			CancelOnModeSwitch:  cfg.Session.CancelOnModeSwitch,
			ImageConcurrency:    cfg.Assets.ImageConcurrency,
			AudioConcurrency:    cfg.Assets.AudioConcurrency,
			CampaignConcurrency: cfg.Assets.CampaignConcurrency,
			SimulatorSeed:       cfg.Simulator.Seed,
		},
	}, clock, m, logger)
	closers = append(closers, sessions.Shutdown)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Circuit:         modelManager,
	}, sessions, m, logger)

	logger.Info("Services assembled",
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("openai_fallback", cfg.OpenAI.EnableFallback),
		zap.Bool("page_probe", cfg.Acquisition.PageProbe),
		zap.Int("profiles", len(profiles.List())),
	)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Sessions: sessions,
		Server:   srv,
		closers:  closers,
	}, nil
}
