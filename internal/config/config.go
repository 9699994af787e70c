package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
// Незаданные поля заполняются значениями по умолчанию в Load.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	TCPPort     int `yaml:"tcp_port"`
	KCPPort     int `yaml:"kcp_port"`
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`

	TickInterval         time.Duration `yaml:"tick_interval"`
	ViewRadius           int           `yaml:"view_radius"`
	MaxChunksPerSnapshot int           `yaml:"max_chunks_per_snapshot"`
	CompressChunks       *bool         `yaml:"compress_chunks"`
	EditRate             float64       `yaml:"edit_rate"`
	EditBurst            int           `yaml:"edit_burst"`
}

type WorldConfig struct {
	Seed        int64  `yaml:"seed"`
	Type        string `yaml:"type"` // flat | perlin
	FlatHeight  int64  `yaml:"flat_height"`
	SpawnRadius int64  `yaml:"spawn_radius"`
	Animals     int    `yaml:"animals"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // nop | memory | badger | redis | mysql | mongo
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// MySQLDSN в формате go-sql-driver: user:pass@tcp(host:port)/dbname
	MySQLDSN   string `yaml:"mysql_dsn"`
	MySQLTable string `yaml:"mysql_table"`

	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// EventBusConfig описывает ленту событий мира
type EventBusConfig struct {
	Backend   string `yaml:"backend"` // none | memory | nats
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Insecure    bool    `yaml:"insecure"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
	// Components переопределяет уровень отдельных компонентов, например network: debug
	Components map[string]string `yaml:"components"`
}

// Типы генераторов мира
const (
	WorldFlat   = "flat"
	WorldPerlin = "perlin"
)

// Бэкенды ленты событий
const (
	BusNone   = "none"
	BusMemory = "memory"
	BusNATS   = "nats"
)

// Бэкенды хранилища
const (
	BackendNop    = "nop"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
	BackendMongo  = "mongo"
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	s := &c.Server
	if s.TickInterval <= 0 {
		s.TickInterval = 10 * time.Millisecond
	}
	if s.ViewRadius <= 0 {
		s.ViewRadius = 2
	}
	if s.MaxChunksPerSnapshot <= 0 {
		s.MaxChunksPerSnapshot = 4
	}
	if s.CompressChunks == nil {
		on := true
		s.CompressChunks = &on
	}
	if s.EditRate <= 0 {
		s.EditRate = 50
	}
	if s.EditBurst <= 0 {
		s.EditBurst = 100
	}

	w := &c.World
	if w.Type == "" {
		w.Type = WorldPerlin
	}
	if w.FlatHeight <= 0 {
		w.FlatHeight = 16
	}
	if w.SpawnRadius <= 0 {
		w.SpawnRadius = 16
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendBadger
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data"
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = "localhost:6379"
	}
	if c.Storage.MySQLTable == "" {
		c.Storage.MySQLTable = "world_data"
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = "mongodb://localhost:27017"
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = "blockverse"
	}
	if c.Storage.MongoCollection == "" {
		c.Storage.MongoCollection = "world"
	}

	if c.EventBus.Backend == "" {
		c.EventBus.Backend = BusNone
	}
	if c.EventBus.URL == "" {
		c.EventBus.URL = "nats://127.0.0.1:4222"
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "WORLD"
	}
	if c.EventBus.Retention <= 0 {
		c.EventBus.Retention = 24
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "blockverse-server"
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 0.01
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate проверяет значения, которые нельзя заменить умолчаниями
func (c *Config) Validate() error {
	switch c.World.Type {
	case WorldFlat, WorldPerlin:
	default:
		return fmt.Errorf("unknown world type %q", c.World.Type)
	}
	switch c.Storage.Backend {
	case BackendNop, BackendMemory, BackendBadger, BackendRedis, BackendMongo:
	case BackendMySQL:
		if c.Storage.MySQLDSN == "" {
			return fmt.Errorf("storage backend %q requires mysql_dsn", BackendMySQL)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.EventBus.Backend {
	case BusNone, BusMemory, BusNATS:
	default:
		return fmt.Errorf("unknown event bus backend %q", c.EventBus.Backend)
	}
	if c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio %v is above 1", c.Telemetry.SampleRatio)
	}
	if c.Server.TickInterval > time.Second {
		return fmt.Errorf("tick interval %v is too long", c.Server.TickInterval)
	}
	return nil
}

// Compress сообщает, сжимать ли чанки перед отправкой
func (s *ServerConfig) Compress() bool {
	return s.CompressChunks == nil || *s.CompressChunks
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "BLOCKVERSE_TCP_PORT", 7777)
}

// GetKCPPort возвращает UDP порт KCP с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "BLOCKVERSE_KCP_PORT", 7778)
}

// GetRESTPort возвращает порт REST API с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKVERSE_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKVERSE_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", используется ENV BLOCKVERSE_CONFIG; если и он пуст,
// возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("BLOCKVERSE_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
