package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/api"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/game"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/network"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/gen"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $BLOCKVERSE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.SetLogDir(cfg.Logging.Dir)
	logging.SetConsoleLevel(logging.ParseLevel(cfg.Logging.Level))
	levels := make(map[string]logging.LogLevel, len(cfg.Logging.Components))
	for component, level := range cfg.Logging.Components {
		levels[component] = logging.ParseLevel(level)
	}
	logging.GetLoggerManager().SetComponentLevels(levels)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск Blockverse сервера...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("⚠️ Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === ХРАНИЛИЩЕ И МИР ===
	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer store.Close()

	meta, err := world.EnsureMeta(store, world.Meta{Generator: cfg.World.Type, Seed: cfg.World.Seed})
	if err != nil {
		return err
	}
	logging.Info("🌍 Мир %s, seed=%d, создан %s", meta.Generator, meta.Seed, meta.Created.Format(time.RFC3339))

	var generator world.Generator
	switch cfg.World.Type {
	case config.WorldFlat:
		generator = world.NewFlatGenerator(cfg.World.FlatHeight)
	default:
		generator = gen.NewPerlinGenerator(cfg.World.Seed)
	}
	w := world.NewWorld(generator, store)

	// === СИМУЛЯЦИЯ ===
	m := metrics.New(nil)

	gameCfg := game.DefaultConfig()
	gameCfg.TickInterval = cfg.Server.TickInterval
	gameCfg.ViewRadius = cfg.Server.ViewRadius
	gameCfg.MaxChunksPerSnapshot = cfg.Server.MaxChunksPerSnapshot
	gameCfg.CompressChunks = cfg.Server.Compress()
	gameCfg.SpawnRadius = cfg.World.SpawnRadius
	gameCfg.Seed = cfg.World.Seed
	gameCfg.Animals = cfg.World.Animals

	server := game.NewServer(w, gameCfg, m)
	server.SpawnAnimals(cfg.World.Animals)

	// === ЛЕНТА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	if bus != nil {
		defer bus.Close()
		if _, err := eventbus.StartLoggingListener(bus); err != nil {
			logging.Warn("⚠️ LoggingListener не запущен: %v", err)
		}
		go eventbus.NewMetricsExporter(bus, nil).Run(ctx, time.Second)
		server.SetEventBus(bus)
	}

	// === СЕТЬ ===
	lcfg := network.DefaultListenerConfig()
	lcfg.TCPAddr = fmt.Sprintf(":%d", cfg.Server.GetTCPPort())
	lcfg.KCPAddr = fmt.Sprintf(":%d", cfg.Server.GetKCPPort())
	lcfg.EditRate = cfg.Server.EditRate
	lcfg.EditBurst = cfg.Server.EditBurst

	listener := network.NewListener(lcfg, m, func(ch *network.ServerChannel) {
		server.Connect(ch)
	})
	if err := listener.Start(); err != nil {
		return fmt.Errorf("сеть: %w", err)
	}
	defer listener.Close()

	// === REST API И МЕТРИКИ ===
	sampler, err := metrics.NewProcessSampler()
	if err != nil {
		logging.Warn("⚠️ Метрики процесса недоступны: %v", err)
	} else {
		go sampler.Run(ctx, m, 5*time.Second)
	}

	rest := api.NewRestServer(api.Config{
		Addr:    fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Game:    server,
		Sampler: sampler,
		WS:      listener.ServeWS,
	})
	go func() {
		if err := rest.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
		}
	}()

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 Игровой трафик: TCP %s, KCP %s, WebSocket /ws", listener.TCPAddr(), listener.KCPAddr())
	logging.Info("   🌐 REST API: http://localhost:%d", cfg.Server.GetRESTPort())
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())
	logging.Info("   ⏱️  Тик: %v, радиус обзора: %d", gameCfg.TickInterval, gameCfg.ViewRadius)

	// Run возвращается после отмены ctx, отключив всех клиентов
	if err := server.Run(ctx); err != nil {
		return err
	}
	logging.Info("📡 Получен сигнал завершения, остановка сервисов...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	return nil
}

// openEventBus создаёт шину для ленты событий мира; nil — лента отключена
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch cfg.Backend {
	case config.BusMemory:
		logging.Info("📨 Лента событий в памяти")
		return eventbus.NewMemoryBus(1024), nil
	case config.BusNATS:
		logging.Info("📨 Лента событий NATS JetStream: %s, stream=%s", cfg.URL, cfg.Stream)
		return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	default:
		return nil, nil
	}
}

// openStore открывает файл сохранения выбранного бэкенда
func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendNop:
		logging.Info("💾 Хранилище отключено, мир временный")
		return storage.Nop{}, nil
	case config.BackendMemory:
		logging.Info("💾 Хранилище в памяти")
		return storage.NewMemory(), nil
	case config.BackendRedis:
		rc := storage.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		logging.Info("💾 Хранилище Redis: %s", rc.Addr)
		return storage.NewRedis(rc)
	case config.BackendMySQL:
		logging.Info("💾 Хранилище MariaDB/MySQL, таблица %s", cfg.MySQLTable)
		return storage.NewMaria(storage.MariaConfig{DSN: cfg.MySQLDSN, Table: cfg.MySQLTable})
	case config.BackendMongo:
		logging.Info("💾 Хранилище MongoDB: %s.%s", cfg.MongoDatabase, cfg.MongoCollection)
		return storage.NewMongo(storage.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	default:
		logging.Info("💾 Хранилище BadgerDB: %s", cfg.Path)
		return storage.NewBadger(cfg.Path)
	}
}
