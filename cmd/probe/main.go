package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annelo/envstream/internal/service"
)

var (
	serverAddr   = flag.String("addr", "localhost:50051", "gRPC адрес сервера")
	clientsCount = flag.Int("n", 1, "Количество параллельных проверок")
	duration     = flag.Duration("duration", 0, "Длительность наблюдения (0 = одна проверка)")
	interval     = flag.Duration("interval", time.Second, "Пауза между проверками")
)

func main() {
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	if *duration == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service.ServiceName})
		if err != nil {
			log.Fatalf("check error: %v", err)
		}
		log.Printf("%s: %s", service.ServiceName, resp.GetStatus())
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			os.Exit(1)
		}
		return
	}

	log.Printf("Наблюдаем %s: %d клиентов в течение %s", *serverAddr, *clientsCount, *duration)
	stopCtx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var ok, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *clientsCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runProbe(stopCtx, client, id, &ok, &failed)
		}(i)
	}
	wg.Wait()
	log.Printf("probe завершил работу: serving=%d failed=%d", ok.Load(), failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func runProbe(ctx context.Context, client grpc_health_v1.HealthClient, id int, ok, failed *atomic.Int64) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		cctx, cancel := context.WithTimeout(ctx, *interval)
		resp, err := client.Check(cctx, &grpc_health_v1.HealthCheckRequest{Service: service.ServiceName})
		cancel()
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			failed.Add(1)
			log.Printf("[probe %d] check error: %v", id, err)
		case resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING:
			failed.Add(1)
			log.Printf("[probe %d] status %s", id, resp.GetStatus())
		default:
			ok.Add(1)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
