package service

import (
	"context"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annelo/envstream/internal/gameloop"
)

// Start запускает игровую петлю со всеми зарегистрированными системами.
// Петля работает до отмены ctx или до Stop.
func (s *StreamService) Start(ctx context.Context) {
	deps := gameloop.Dependencies{
		Players:  s.players,
		Logger:   s.logger.Named("gameloop"),
		OnReport: s.handleReport,
	}
	systems := s.registry.GameSystems()
	loop := gameloop.NewLoop(s.cfg.Server.TickPeriod, deps, systems...)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.stepMu.Lock()
	s.loop = loop
	s.stepMu.Unlock()
	s.mu.Lock()
	s.startedAt = time.Now()
	s.cancelLoop = cancel
	s.loopDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		loop.Run(runCtx)
	}()
	go s.monitorStats(runCtx)

	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Step прогоняет один тик петли синхронно. Используется в тестах и REPL.
// После Stop ничего не делает.
func (s *StreamService) Step(ctx context.Context, dt time.Duration) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.stopped {
		return
	}
	if s.loop == nil {
		deps := gameloop.Dependencies{Players: s.players, Logger: s.logger.Named("gameloop"), OnReport: s.handleReport}
		s.loop = gameloop.NewLoop(s.cfg.Server.TickPeriod, deps, s.registry.GameSystems()...)
	}
	s.loop.Step(ctx, dt)
}

// monitorStats периодически пишет счётчики контроллера.
func (s *StreamService) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := s.controller.Stats()
			s.logger.Infow("streaming stats",
				"ticks", st.Ticks,
				"loaded", st.Loaded,
				"evicted", st.Evicted,
				"sink_failures", st.SinkFailures,
				"resident", s.controller.Index().Len(),
			)
		case <-ctx.Done():
			return
		}
	}
}
