package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	yaml "gopkg.in/yaml.v3"

	"github.com/annelo/envstream/internal/config"
	"github.com/annelo/envstream/internal/plugin"
	"github.com/annelo/envstream/internal/service"
)

var (
	configPath = flag.String("config", "", "Путь к YAML-конфигу (пусто = значения по умолчанию)")
	envFile    = flag.String("env", ".env", "Файл с переменными окружения")
	addr       = flag.String("addr", "", "Адрес gRPC сервера (перекрывает конфиг)")
	seed       = flag.Int64("seed", -1, "Сид мира (0 = случайный, -1 = из конфига)")
	noREPL     = flag.Bool("no-repl", false, "Не запускать консоль администратора")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *addr != "" {
		cfg.Server.GRPCAddr = *addr
	}
	if *seed >= 0 {
		cfg.World.Seed = *seed
	}
	// Если сид равен нулю, генерируем случайный
	if cfg.World.Seed == 0 {
		cfg.World.Seed = time.Now().UnixNano()
	}
	if *noREPL {
		cfg.Server.AdminREPL = false
	}

	logger, err := service.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Ошибка логгера: %v", err)
	}
	defer logger.Sync()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("Не удалось создать слушателя: %v", err)
	}
	grpcServer := grpc.NewServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1) Реестр: встроенные команды администратора считаются ядром
	reg := plugin.NewDefaultRegistry()
	pm := plugin.NewPluginManager(cfg.Plugins.Dir, logger.Named("plugins"))
	var streamService *service.StreamService
	registerAdminCommands(reg, pm, cancel, func() *service.StreamService { return streamService }, grpcServer)
	reg.MarkCore()

	// 2) Плагины грузим до сборки сервиса: они могут добавить политику тем
	if err := pm.LoadPlugins(reg); err != nil {
		logger.Warnw("plugins not loaded", "dir", cfg.Plugins.Dir, "error", err)
	}

	// 3) Сервис стриминга
	streamService, err = service.New(cfg, reg, logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации сервиса: %v", err)
	}
	streamService.RegisterServer(grpcServer)
	streamService.RegisterCommands(reg)
	streamService.Start(ctx)

	// Обрабатываем сигналы для корректного завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Info("shutdown signal received")
		cancel()
		streamService.Stop()
		grpcServer.GracefulStop()
	}()

	if cfg.Server.AdminREPL {
		go runREPL(reg)
	}

	logger.Infow("stream server listening", "addr", lis.Addr().String(), "seed", cfg.World.Seed)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

func registerAdminCommands(reg *plugin.DefaultRegistry, pm *plugin.PluginManager, cancel context.CancelFunc, svc func() *service.StreamService, grpcServer *grpc.Server) {
	reg.RegisterCommand("reload", "Reload plugins", func(args []string) (string, error) {
		if err := pm.ReloadPlugins(reg); err != nil {
			return "", err
		}
		// Команды сервиса зарегистрированы после MarkCore и снимаются вместе с плагинами.
		// Петля уже собрана, поэтому системы повторно не регистрируем.
		if s := svc(); s != nil {
			s.RegisterCommands(reg)
		}
		return "Plugins reloaded successfully\n", nil
	})
	reg.RegisterCommand("stop", "Stop server", func(args []string) (string, error) {
		cancel()
		if s := svc(); s != nil {
			s.Stop()
		}
		go grpcServer.GracefulStop()
		return "Server stopping\n", nil
	})
	reg.RegisterCommand("help", "List commands", func(args []string) (string, error) {
		return plugin.Help(reg), nil
	})
	reg.RegisterCommand("plugins", "List loaded plugins", func(args []string) (string, error) {
		var sb strings.Builder
		for _, meta := range reg.PluginMetas() {
			sb.WriteString(fmt.Sprintf("%s v%s by %s: %s\n", meta.Name, meta.Version, meta.Author, meta.Description))
		}
		res := pm.LastResult()
		if len(res.Skipped)+len(res.Failed) > 0 {
			sb.WriteString(fmt.Sprintf("skipped: %v, failed: %v\n", res.Skipped, res.Failed))
		}
		return sb.String(), nil
	})
	reg.RegisterCommand("config", "Show plugin config: config <pluginName>", func(args []string) (string, error) {
		if len(args) < 1 {
			return "Usage: config <pluginName>\n", nil
		}
		cfg := reg.PluginConfig(args[0])
		if cfg == nil {
			return fmt.Sprintf("No config for plugin %s\n", args[0]), nil
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

// runREPL читает команды администратора из stdin
func runREPL(reg plugin.PluginRegistry) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		out, err := plugin.Dispatch(reg, strings.TrimSpace(line))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Print(out)
	}
}
