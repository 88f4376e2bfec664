package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/annelo/envstream/internal/config"
	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/gameloop"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/journal"
	"github.com/annelo/envstream/internal/layout"
	"github.com/annelo/envstream/internal/noisegeneration"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/playermanager"
	"github.com/annelo/envstream/internal/plugin"
	"github.com/annelo/envstream/internal/sink"
	"github.com/annelo/envstream/internal/streaming"
)

// ServiceName имя сервиса в gRPC health
const ServiceName = "envstream.Streaming"

// StreamService связывает генератор, контроллер стриминга, синк и игровую петлю
type StreamService struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	registry plugin.PluginRegistry

	players    *playermanager.PlayerManager
	pieces     *pieces.Registry
	generator  *layout.Generator
	controller *streaming.Controller
	sink       *sink.InstancedSink
	streamSys  *gameloop.StreamingSystem
	journal    *journal.Writer
	health     *health.Server

	// игровая петля
	loop *gameloop.Loop

	mu         sync.RWMutex
	lastReport streaming.Report
	startedAt  time.Time

	// остановка: stepMu держит синхронный Step, loopDone закрывается после выхода Run
	stepMu     sync.Mutex
	stopped    bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	stopOnce   sync.Once
}

// New собирает сервис из конфигурации. Ошибки конфигурации фатальны.
func New(cfg *config.Config, reg plugin.PluginRegistry, logger *zap.SugaredLogger) (*StreamService, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pr := pieces.DefaultRegistry()
	if cfg.World.PiecesFile != "" {
		var err error
		if pr, err = pieces.LoadRegistryYAML(cfg.World.PiecesFile); err != nil {
			return nil, err
		}
	}
	if cfg.Sink.InstanceCapScale != 1 {
		pr.ScaleInstanceCaps(cfg.Sink.InstanceCapScale)
	}
	if err := pr.Validate(); err != nil {
		return nil, err
	}

	gen, err := layout.New(pr, cfg.Streaming.ChunkSize, cfg.World.Seed, cfg.Layout)
	if err != nil {
		return nil, err
	}

	themes, err := resolveThemePolicy(cfg, reg)
	if err != nil {
		return nil, err
	}
	difficulty := streaming.DistanceDifficulty{
		Divisor: cfg.Streaming.Difficulty.Divisor,
		Min:     cfg.Streaming.Difficulty.Min,
		Max:     cfg.Streaming.Difficulty.Max,
	}

	s := &StreamService{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		players:   playermanager.NewPlayerManager(),
		pieces:    pr,
		generator: gen,
		sink:      sink.NewInstancedSink(pr, cfg.Sink.PoolSize, logger.Named("sink")),
		health:    health.NewServer(),
	}

	r := cfg.Runner
	if err := s.players.AddPlayer(r.ID, r.Name, geom.Vec3(r.Start)); err != nil {
		return nil, fmt.Errorf("add runner: %w", err)
	}
	_ = s.players.Update(r.ID, func(p *playermanager.PlayerData) { p.Speed = r.Speed })

	s.controller, err = streaming.New(cfg.Streaming.Config, gen, s.players.Source(r.ID), s.sink,
		streaming.WithLogger(logger.Named("streaming")),
		streaming.WithThemePolicy(themes),
		streaming.WithDifficultyPolicy(difficulty),
		streaming.WithHooks(plugin.StreamingHooks(reg)),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Journal.Enabled {
		s.journal = journal.NewWriter(cfg.Journal.Dir, "ticks")
	}

	// Регистрируем core-системы в реестре
	s.streamSys = gameloop.NewStreamingSystem(s.controller, cfg.Streaming.Interval)
	reg.RegisterGameSystem(gameloop.NewRunnerSystem())
	reg.RegisterGameSystem(s.streamSys)

	logger.Infow("stream service ready",
		"seed", cfg.World.Seed,
		"chunk_size", cfg.Streaming.ChunkSize,
		"load_radius", cfg.Streaming.LoadRadius,
		"theme_policy", cfg.Streaming.ThemePolicy,
	)
	return s, nil
}

func resolveThemePolicy(cfg *config.Config, reg plugin.PluginRegistry) (streaming.ThemePolicy, error) {
	switch name := cfg.Streaming.ThemePolicy; name {
	case "threshold":
		return streaming.DefaultThemes(), nil
	case "noise":
		return streaming.NoiseThemes{Noise: noisegeneration.NewThemeNoise(cfg.World.Seed)}, nil
	default:
		if p, ok := reg.ThemePolicy(name); ok {
			return p, nil
		}
		return nil, errs.Config("streaming.theme_policy", fmt.Sprintf("unknown policy %q", name))
	}
}

// handleReport пишет отчёт тика в журнал и лог
func (s *StreamService) handleReport(rep streaming.Report) {
	s.mu.Lock()
	s.lastReport = rep
	j := s.journal
	s.mu.Unlock()

	if j != nil {
		if err := j.WriteReport(rep); err != nil {
			s.logger.Warnw("journal write failed", "error", err)
		}
	}
	if rep.SinkFailures > 0 {
		s.logger.Infow("chunks deferred by sink", "count", rep.SinkFailures, "tick", rep.Tick)
	}
	if rep.GenerationFailures > 0 {
		s.logger.Warnw("chunk generation failed", "count", rep.GenerationFailures, "tick", rep.Tick)
	}
}

// LastReport возвращает отчёт последнего тика стриминга
func (s *StreamService) LastReport() streaming.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

func (s *StreamService) Controller() *streaming.Controller     { return s.controller }
func (s *StreamService) Players() *playermanager.PlayerManager { return s.players }
func (s *StreamService) Sink() *sink.InstancedSink             { return s.sink }

// since считает аптайм для вывода status
func since(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Since(t).Round(time.Millisecond)
}
