package service_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/config"
	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/gameloop"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/journal"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/plugin"
	"github.com/annelo/envstream/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Streaming.LoadRadius = 3000
	cfg.Journal.Enabled = true
	cfg.Journal.Dir = t.TempDir()
	return cfg
}

func TestNew_RegistersCoreSystems(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	s, err := service.New(testConfig(t), reg, nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	systems := reg.GameSystems()
	require.Len(t, systems, 2, "expected runner and streaming systems")
	assert.IsType(t, gameloop.NewRunnerSystem(), systems[0])
	assert.IsType(t, &gameloop.StreamingSystem{}, systems[1])
}

func TestNew_UnknownThemePolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Streaming.ThemePolicy = "nope"
	_, err := service.New(cfg, plugin.NewDefaultRegistry(), nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestNew_PluginThemePolicy(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	reg.RegisterThemePolicy("allcave", constTheme(pieces.Cave))
	cfg := testConfig(t)
	cfg.Streaming.ThemePolicy = "allcave"
	s, err := service.New(cfg, reg, nil)
	require.NoError(t, err)

	s.Step(context.Background(), 0)
	snap := s.Controller().Snapshot()
	require.NotEmpty(t, snap)
	for _, rec := range snap {
		assert.Equal(t, pieces.Cave, rec.Theme)
	}
}

type constTheme pieces.Theme

func (c constTheme) ThemeFor(geom.Vec3) pieces.Theme { return pieces.Theme(c) }

func TestStep_StreamsAndJournals(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	cfg := testConfig(t)
	s, err := service.New(cfg, reg, nil)
	require.NoError(t, err)
	s.RegisterCommands(reg)

	ctx := context.Background()
	s.Step(ctx, 0)
	assert.Equal(t, 9, s.Controller().Index().Len())
	assert.Equal(t, 9, s.Sink().Chunks())
	assert.Equal(t, uint64(1), s.LastReport().Tick)

	out, err := plugin.Dispatch(reg, "teleport 100000 0")
	require.NoError(t, err)
	assert.Contains(t, out, "100000")
	s.Step(ctx, cfg.Streaming.Interval)
	assert.False(t, s.Controller().Index().Contains(chunkindex.Key{}))

	out, err = plugin.Dispatch(reg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ticks=2")

	out, err = plugin.Dispatch(reg, "chunk 50:0")
	require.NoError(t, err)
	assert.Contains(t, out, "theme=mountain")

	out, err = plugin.Dispatch(reg, "dash")
	require.NoError(t, err)
	assert.Equal(t, "dash!\n", out)

	out, err = plugin.Dispatch(reg, "budget")
	require.NoError(t, err)
	assert.Contains(t, out, "ground")

	s.Stop()
	s.Stop()
	assert.Equal(t, 0, s.Sink().Chunks())

	entries, err := journal.ReadFile(latestJournal(t, cfg.Journal.Dir))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Loaded, 9)
	assert.Len(t, entries[1].Evicted, 9)
}

func TestRegisterServer_Health(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	s, err := service.New(testConfig(t), reg, nil)
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	s.RegisterServer(srv)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(ctx, 2*time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &grpc_health_v1.HealthCheckRequest{Service: service.ServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check())

	s.Start(ctx)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check())

	s.Stop()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check())
}

func TestNewLogger(t *testing.T) {
	l, err := service.NewLogger(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = service.NewLogger(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.True(t, errs.IsConfiguration(err))
}

func TestStop_IndexAndSinkStayInSync(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	cfg := testConfig(t)
	s, err := service.New(cfg, reg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	s.Step(ctx, 0)
	require.Equal(t, 9, s.Controller().Index().Len())
	require.Equal(t, s.Controller().Index().Len(), s.Sink().Chunks())

	s.Stop()
	assert.Equal(t, 0, s.Controller().Index().Len())
	assert.Equal(t, 0, s.Sink().Chunks())

	// A tick arriving after shutdown must not repopulate either side.
	s.Step(ctx, cfg.Streaming.Interval)
	assert.Equal(t, 0, s.Controller().Index().Len())
	assert.Equal(t, 0, s.Sink().Chunks())
	assert.Equal(t, uint64(1), s.Controller().Stats().Ticks)
}

func TestStop_WaitsForRunningLoop(t *testing.T) {
	reg := plugin.NewDefaultRegistry()
	cfg := testConfig(t)
	cfg.Server.TickPeriod = time.Millisecond
	s, err := service.New(cfg, reg, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return s.LastReport().Tick > 0 }, time.Second, time.Millisecond)

	s.Stop()
	ticks := s.Controller().Stats().Ticks
	assert.Equal(t, 0, s.Controller().Index().Len())
	assert.Equal(t, 0, s.Sink().Chunks())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, s.Controller().Stats().Ticks, "loop must be stopped")

	// Every journalled tick is on disk after Stop.
	entries, err := journal.ReadFile(latestJournal(t, cfg.Journal.Dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
