package service

import (
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Stop останавливает петлю и дожидается её выхода, затем выгружает все чанки
// через контроллер, закрывает журнал и снимает сервис с обслуживания.
// Индекс и синк после Stop пусты; последующие Step ничего не делают.
func (s *StreamService) Stop() {
	s.stopOnce.Do(func() {
		s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		s.mu.RLock()
		cancel, done, started := s.cancelLoop, s.loopDone, s.startedAt
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
			<-done
		}

		// Ждём синхронный Step, если он идёт, и запрещаем новые
		s.stepMu.Lock()
		s.stopped = true
		s.stepMu.Unlock()

		evicted := s.controller.EvictAll()
		s.sink.Reset()
		s.health.Shutdown()

		s.mu.Lock()
		j := s.journal
		s.journal = nil
		s.mu.Unlock()
		if j != nil {
			if err := j.Close(); err != nil {
				s.logger.Warnw("journal close failed", "error", err)
			}
		}
		s.logger.Infow("stream service stopped", "evicted", len(evicted), "uptime", since(started))
	})
}
