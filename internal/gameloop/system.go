package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/envstream/internal/playermanager"
	"github.com/annelo/envstream/internal/streaming"
)

// System описывает логику, выполняемую каждый тик цикла.
type System interface {
	// Init вызывается один раз перед запуском цикла.
	Init(deps Dependencies) error
	// Tick вызывается каждый игровой тик.
	Tick(ctx context.Context, dt time.Duration)
	// Name возвращает читаемое имя системы.
	Name() string
}

// Dependencies передаются системам при инициализации.
type Dependencies struct {
	Players *playermanager.PlayerManager
	Logger  *zap.SugaredLogger
	// OnReport получает отчёт каждого тика стриминга (журнал, метрики).
	OnReport func(rep streaming.Report)
}

func (d Dependencies) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return d.Logger
}
