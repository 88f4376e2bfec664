package gameloop

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/envstream/internal/streaming"
)

// DefaultStreamingInterval задаёт, как часто пересчитываются чанки.
const DefaultStreamingInterval = 2 * time.Second

// Ticker это то, что StreamingSystem дёргает раз в интервал.
type Ticker interface {
	Tick(ctx context.Context) (streaming.Report, error)
}

// StreamingSystem копит dt и запускает тик стриминга по достижении интервала.
// Первый Tick цикла сразу загружает стартовые чанки.
type StreamingSystem struct {
	ctrl     Ticker
	interval time.Duration
	acc      time.Duration
	deps     Dependencies
	logger   *zap.SugaredLogger
	runs     int
}

func NewStreamingSystem(ctrl Ticker, interval time.Duration) *StreamingSystem {
	if interval <= 0 {
		interval = DefaultStreamingInterval
	}
	return &StreamingSystem{ctrl: ctrl, interval: interval, acc: interval}
}

func (s *StreamingSystem) Name() string { return "streaming" }

func (s *StreamingSystem) Init(deps Dependencies) error {
	if s.ctrl == nil {
		return errors.New("streaming system without controller")
	}
	s.deps = deps
	s.logger = deps.logger()
	return nil
}

func (s *StreamingSystem) Tick(ctx context.Context, dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	s.runs++

	rep, err := s.ctrl.Tick(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warnw("streaming tick skipped", "error", err)
		}
		return
	}
	if s.deps.OnReport != nil {
		s.deps.OnReport(rep)
	}
}

// Runs возвращает число запусков контроллера.
func (s *StreamingSystem) Runs() int { return s.runs }
