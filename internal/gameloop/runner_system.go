package gameloop

import (
	"context"
	"time"

	"github.com/annelo/envstream/internal/playermanager"
)

// Параметры бега и рывка.
const (
	DefaultRunSpeed = 600.0
	DashDistance    = 1000.0
	DashDuration    = 0.3
	DashCooldown    = 2.0
)

// RunnerSystem двигает всех игроков вдоль +X. Рывок и перезарядка: явные
// счётчики, которые уменьшаются на каждом тике.
type RunnerSystem struct {
	deps Dependencies
}

func NewRunnerSystem() *RunnerSystem { return &RunnerSystem{} }

func (r *RunnerSystem) Name() string { return "runner" }

func (r *RunnerSystem) Init(deps Dependencies) error {
	r.deps = deps
	return nil
}

func (r *RunnerSystem) Tick(ctx context.Context, dt time.Duration) {
	if r.deps.Players == nil {
		return
	}
	sec := dt.Seconds()
	for _, p := range r.deps.Players.GetAllPlayers() {
		_ = r.deps.Players.Update(p.ID, func(pd *playermanager.PlayerData) {
			Advance(pd, sec)
		})
	}
}

// Advance сдвигает одного игрока на sec секунд.
func Advance(p *playermanager.PlayerData, sec float64) {
	dist := p.Speed * sec
	if p.DashRemaining > 0 {
		d := sec
		if d > p.DashRemaining {
			d = p.DashRemaining
		}
		dist += DashDistance / DashDuration * d
		p.DashRemaining -= d
	}
	if p.DashCooldown > 0 {
		p.DashCooldown -= sec
		if p.DashCooldown < 0 {
			p.DashCooldown = 0
		}
	}
	p.Position[0] += dist
}

// Dash запускает рывок, если нет текущего и прошла перезарядка.
func Dash(pm *playermanager.PlayerManager, id string) (bool, error) {
	started := false
	err := pm.Update(id, func(p *playermanager.PlayerData) {
		if p.DashRemaining > 0 || p.DashCooldown > 0 {
			return
		}
		p.DashRemaining = DashDuration
		p.DashCooldown = DashCooldown
		started = true
	})
	return started, err
}
