package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "focuskit.yaml"

type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

type TransportKind string

const (
	TransportNone      TransportKind = "none"
	TransportRedis     TransportKind = "redis"
	TransportMQTT      TransportKind = "mqtt"
	TransportWebsocket TransportKind = "websocket"
	TransportKafka     TransportKind = "kafka"
)

type Config struct {
	DataDir    string
	DBPath     string
	ConfigPath string

	Session SessionConfig
	Stats   StatsConfig
	Storage StorageConfig
	Sync    SyncConfig
	Notify  NotifyConfig
	Log     LogConfig

	Metrics     bool
	MetricsAddr string
}

type SessionConfig struct {
	DefaultDuration        time.Duration
	StrictMode             bool
	PartialCreditThreshold time.Duration
	CheckpointInterval     time.Duration
	TasksPath              string
}

type StatsConfig struct {
	DailyTarget int
	TargetType  string
	Location    *time.Location
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type StorageConfig struct {
	Backend StorageBackend
	Redis   RedisConfig
}

type SyncConfig struct {
	Transport    TransportKind
	Channel      string
	Redis        RedisConfig
	MQTTBroker   string
	WebsocketURL string
	KafkaBrokers []string
}

type NotifyConfig struct {
	ManifestPath string
	LogNotifier  bool
}

type LogConfig struct {
	Level  string
	Format string
}

type fileConfig struct {
	Session struct {
		DefaultDurationMinutes        int    `yaml:"default_duration_minutes"`
		StrictMode                    bool   `yaml:"strict_mode"`
		PartialCreditThresholdSeconds int    `yaml:"partial_credit_threshold_seconds"`
		CheckpointIntervalSeconds     int    `yaml:"checkpoint_interval_seconds"`
		TasksFile                     string `yaml:"tasks_file"`
	} `yaml:"session"`
	Stats struct {
		DailyTarget int    `yaml:"daily_target"`
		TargetType  string `yaml:"target_type"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"stats"`
	Storage struct {
		Backend string    `yaml:"backend"`
		Redis   fileRedis `yaml:"redis"`
	} `yaml:"storage"`
	Sync struct {
		Transport string    `yaml:"transport"`
		Channel   string    `yaml:"channel"`
		Redis     fileRedis `yaml:"redis"`
		MQTT      struct {
			Broker string `yaml:"broker"`
		} `yaml:"mqtt"`
		Websocket struct {
			URL string `yaml:"url"`
		} `yaml:"websocket"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
	} `yaml:"sync"`
	Notify struct {
		Manifest    string `yaml:"manifest"`
		LogNotifier *bool  `yaml:"log_notifier"`
	} `yaml:"notify"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Metrics     bool   `yaml:"metrics"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type fileRedis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// New returns the default configuration rooted at dataDir.
func New(dataDir string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, "focuskit.db"),
		ConfigPath: filepath.Join(dataDir, fileName),
		Session: SessionConfig{
			DefaultDuration:        25 * time.Minute,
			PartialCreditThreshold: 30 * time.Second,
			CheckpointInterval:     time.Minute,
			TasksPath:              filepath.Join(dataDir, "tasks.yaml"),
		},
		Stats: StatsConfig{
			DailyTarget: 8,
			TargetType:  "count",
			Location:    time.Local,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "focuskit:"},
		},
		Sync: SyncConfig{
			Transport:    TransportNone,
			Channel:      "focuskit.session",
			Redis:        RedisConfig{Addr: "localhost:6379"},
			MQTTBroker:   "tcp://localhost:1883",
			WebsocketURL: "ws://localhost:7777/ws",
			KafkaBrokers: []string{"localhost:9092"},
		},
		Notify: NotifyConfig{
			ManifestPath: filepath.Join(dataDir, "notifiers.json"),
			LogNotifier:  true,
		},
		Log:         LogConfig{Level: "info", Format: "console"},
		MetricsAddr: "127.0.0.1:9464",
	}, nil
}

// Load builds defaults for dataDir and overlays the YAML file at path. An
// empty path means the default file inside dataDir; a missing file is not an
// error.
func Load(dataDir, path string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(path) != "" {
		cfg.ConfigPath = path
	}
	raw, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fileData fileConfig
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := apply(&cfg, fileData); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultDataDir resolves the per-user data directory.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("FOCUSKIT_HOME"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "focuskit"), nil
}

func apply(cfg *Config, fileData fileConfig) error {
	if fileData.Session.DefaultDurationMinutes > 0 {
		cfg.Session.DefaultDuration = time.Duration(fileData.Session.DefaultDurationMinutes) * time.Minute
	}
	cfg.Session.StrictMode = fileData.Session.StrictMode
	if fileData.Session.PartialCreditThresholdSeconds > 0 {
		cfg.Session.PartialCreditThreshold = time.Duration(fileData.Session.PartialCreditThresholdSeconds) * time.Second
	}
	if fileData.Session.CheckpointIntervalSeconds > 0 {
		cfg.Session.CheckpointInterval = time.Duration(fileData.Session.CheckpointIntervalSeconds) * time.Second
	}
	if fileData.Session.TasksFile != "" {
		cfg.Session.TasksPath = cfg.resolve(fileData.Session.TasksFile)
	}

	if fileData.Stats.DailyTarget > 0 {
		cfg.Stats.DailyTarget = fileData.Stats.DailyTarget
	}
	switch fileData.Stats.TargetType {
	case "":
	case "count", "minutes":
		cfg.Stats.TargetType = fileData.Stats.TargetType
	default:
		return fmt.Errorf("stats.target_type must be count or minutes, got %q", fileData.Stats.TargetType)
	}
	if fileData.Stats.Timezone != "" {
		loc, err := time.LoadLocation(fileData.Stats.Timezone)
		if err != nil {
			return fmt.Errorf("stats.timezone: %w", err)
		}
		cfg.Stats.Location = loc
	}

	switch backend := StorageBackend(fileData.Storage.Backend); backend {
	case "":
	case StorageFile, StorageSQLite, StorageRedis, StorageMemory:
		cfg.Storage.Backend = backend
	default:
		return fmt.Errorf("unknown storage backend: %s", backend)
	}
	applyRedis(&cfg.Storage.Redis, fileData.Storage.Redis)

	switch transport := TransportKind(fileData.Sync.Transport); transport {
	case "":
	case TransportNone, TransportRedis, TransportMQTT, TransportWebsocket, TransportKafka:
		cfg.Sync.Transport = transport
	default:
		return fmt.Errorf("unknown sync transport: %s", transport)
	}
	if fileData.Sync.Channel != "" {
		cfg.Sync.Channel = fileData.Sync.Channel
	}
	applyRedis(&cfg.Sync.Redis, fileData.Sync.Redis)
	if fileData.Sync.MQTT.Broker != "" {
		cfg.Sync.MQTTBroker = fileData.Sync.MQTT.Broker
	}
	if fileData.Sync.Websocket.URL != "" {
		cfg.Sync.WebsocketURL = fileData.Sync.Websocket.URL
	}
	if len(fileData.Sync.Kafka.Brokers) > 0 {
		cfg.Sync.KafkaBrokers = fileData.Sync.Kafka.Brokers
	}

	if fileData.Notify.Manifest != "" {
		cfg.Notify.ManifestPath = cfg.resolve(fileData.Notify.Manifest)
	}
	if fileData.Notify.LogNotifier != nil {
		cfg.Notify.LogNotifier = *fileData.Notify.LogNotifier
	}

	if fileData.Log.Level != "" {
		cfg.Log.Level = fileData.Log.Level
	}
	if fileData.Log.Format != "" {
		cfg.Log.Format = fileData.Log.Format
	}
	cfg.Metrics = fileData.Metrics
	if fileData.MetricsAddr != "" {
		cfg.MetricsAddr = fileData.MetricsAddr
	}
	return nil
}

func applyRedis(target *RedisConfig, fileData fileRedis) {
	if fileData.Addr != "" {
		target.Addr = fileData.Addr
	}
	if fileData.Password != "" {
		target.Password = fileData.Password
	}
	if fileData.DB > 0 {
		target.DB = fileData.DB
	}
	if fileData.KeyPrefix != "" {
		target.KeyPrefix = fileData.KeyPrefix
	}
}

func (c Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Clean(filepath.Join(c.DataDir, path))
}
