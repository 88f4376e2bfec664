package gameloop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/gameloop"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/playermanager"
	"github.com/annelo/envstream/internal/streaming"
)

type countingTicker struct {
	calls int
	err   error
}

func (c *countingTicker) Tick(ctx context.Context) (streaming.Report, error) {
	c.calls++
	return streaming.Report{Tick: uint64(c.calls)}, c.err
}

type panicSystem struct{ ticks int }

func (p *panicSystem) Init(gameloop.Dependencies) error { return nil }
func (p *panicSystem) Name() string                     { return "panic" }
func (p *panicSystem) Tick(context.Context, time.Duration) {
	p.ticks++
	panic("boom")
}

func TestStreamingSystem_Interval(t *testing.T) {
	ctrl := &countingTicker{}
	var reports []streaming.Report
	sys := gameloop.NewStreamingSystem(ctrl, 2*time.Second)
	loop := gameloop.NewLoop(50*time.Millisecond, gameloop.Dependencies{
		OnReport: func(rep streaming.Report) { reports = append(reports, rep) },
	}, sys)

	ctx := context.Background()
	loop.Step(ctx, 500*time.Millisecond) // first step loads immediately
	assert.Equal(t, 1, ctrl.calls)

	loop.Step(ctx, time.Second)
	loop.Step(ctx, 900*time.Millisecond)
	assert.Equal(t, 1, ctrl.calls)

	loop.Step(ctx, 100*time.Millisecond)
	assert.Equal(t, 2, ctrl.calls)
	assert.Equal(t, 2, sys.Runs())
	require.Len(t, reports, 2)
	assert.Equal(t, uint64(2), reports[1].Tick)
}

func TestStreamingSystem_ErrorSkipsReport(t *testing.T) {
	ctrl := &countingTicker{err: errors.New("no position")}
	called := false
	loop := gameloop.NewLoop(time.Second, gameloop.Dependencies{
		OnReport: func(streaming.Report) { called = true },
	}, gameloop.NewStreamingSystem(ctrl, time.Second))
	loop.Step(context.Background(), time.Second)
	assert.Equal(t, 1, ctrl.calls)
	assert.False(t, called)
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	p := &panicSystem{}
	ctrl := &countingTicker{}
	loop := gameloop.NewLoop(time.Second, gameloop.Dependencies{}, p, gameloop.NewStreamingSystem(ctrl, time.Second))
	assert.NotPanics(t, func() { loop.Step(context.Background(), time.Second) })
	assert.Equal(t, 1, p.ticks)
	assert.Equal(t, 1, ctrl.calls)
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	ctrl := &countingTicker{}
	loop := gameloop.NewLoop(5*time.Millisecond, gameloop.Dependencies{}, gameloop.NewStreamingSystem(ctrl, time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunnerSystem_MovesAndDashes(t *testing.T) {
	pm := playermanager.NewPlayerManager()
	require.NoError(t, pm.AddPlayer("r", "Runner", geom.Vec3{}))
	require.NoError(t, pm.Update("r", func(p *playermanager.PlayerData) { p.Speed = gameloop.DefaultRunSpeed }))

	loop := gameloop.NewLoop(time.Second, gameloop.Dependencies{Players: pm}, gameloop.NewRunnerSystem())
	loop.Step(context.Background(), time.Second)
	p, _ := pm.GetPlayer("r")
	assert.InDelta(t, 600.0, p.Position.X(), 1e-9)

	ok, err := gameloop.Dash(pm, "r")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = gameloop.Dash(pm, "r")
	assert.False(t, ok, "dash while dashing")

	loop.Step(context.Background(), time.Second)
	p, _ = pm.GetPlayer("r")
	assert.InDelta(t, 600.0+600.0+gameloop.DashDistance, p.Position.X(), 1e-6)
	assert.Zero(t, p.DashRemaining)
	assert.InDelta(t, 1.0, p.DashCooldown, 1e-9)

	ok, _ = gameloop.Dash(pm, "r")
	assert.False(t, ok, "dash on cooldown")
	loop.Step(context.Background(), time.Second)
	ok, _ = gameloop.Dash(pm, "r")
	assert.True(t, ok)

	_, err = gameloop.Dash(pm, "missing")
	assert.ErrorIs(t, err, playermanager.ErrPlayerNotFound)
}
