package service

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RegisterServer регистрирует health-сервис и reflection для grpcurl.
func (s *StreamService) RegisterServer(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	reflection.Register(grpcServer)
}
