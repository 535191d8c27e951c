package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"

	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/pkg/common/constant"
	"github.com/fystack/taixiu-predictor/pkg/common/enum"
)

var validate = validator.New()

type Config struct {
	Environment string          `yaml:"environment" env:"ENVIRONMENT" validate:"required,oneof=production development"`
	LogLevel    string          `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Stream      string          `yaml:"stream" env:"STREAM" validate:"required"`
	Source      SourceConfig    `yaml:"source" envPrefix:"SOURCE_"`
	History     HistoryConfig   `yaml:"history" envPrefix:"HISTORY_"`
	Predictor   PredictorConfig `yaml:"predictor" envPrefix:"ENGINE_"`
	KVStore     KVStoreConfig   `yaml:"kvstore" envPrefix:"KVSTORE_"`
	NATS        NATSConfig      `yaml:"nats" envPrefix:"NATS_"`
	Database    DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Server      ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
}

type SourceConfig struct {
	Type enum.SourceType `yaml:"type" env:"TYPE" validate:"required,oneof=http websocket simulate"`
	URL  string          `yaml:"url" env:"URL" validate:"required_unless=Type simulate,omitempty,url"`
	// Mirrors are tried in order when URL keeps failing (http only).
	Mirrors        []string        `yaml:"mirrors" env:"MIRRORS" envSeparator:"," validate:"omitempty,dive,url"`
	MirrorCooldown time.Duration   `yaml:"mirror_cooldown" env:"MIRROR_COOLDOWN"`
	PollInterval   time.Duration   `yaml:"poll_interval" env:"POLL_INTERVAL"`
	Client         ClientConfig    `yaml:"client" envPrefix:"CLIENT_"`
	Breaker        BreakerConfig   `yaml:"breaker" envPrefix:"BREAKER_"`
	Websocket      WebsocketConfig `yaml:"websocket" envPrefix:"WS_"`
	// Seed drives the simulated dice; 0 picks a random seed.
	Seed int64 `yaml:"seed" env:"SEED"`
}

type ClientConfig struct {
	Timeout    time.Duration  `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int            `yaml:"max_retries" env:"MAX_RETRIES" validate:"min=0,max=20"`
	RetryDelay time.Duration  `yaml:"retry_delay" env:"RETRY_DELAY"`
	Throttle   ThrottleConfig `yaml:"throttle" envPrefix:"THROTTLE_"`
}

type ThrottleConfig struct {
	RPS   int `yaml:"rps" env:"RPS" validate:"min=0"`
	Burst int `yaml:"burst" env:"BURST" validate:"min=0"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" env:"MAX_FAILURES"`
	OpenTimeout time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT"`
}

type WebsocketConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	PingInterval     time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	ReconnectMax     time.Duration `yaml:"reconnect_max" env:"RECONNECT_MAX"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity" env:"CAPACITY" validate:"min=10,max=100000"`
	// LedgerRetention bounds how many sessions behind the history head the
	// vote ledger keeps.
	LedgerRetention int `yaml:"ledger_retention" env:"LEDGER_RETENTION" validate:"min=0"`
}

type PredictorConfig struct {
	Preset    string           `yaml:"preset" env:"PRESET" validate:"omitempty,oneof=canonical classic advanced"`
	Overrides predictor.Params `yaml:"overrides"`
}

// Params resolves the configured preset with its overrides applied.
func (p PredictorConfig) Params() (predictor.Params, error) {
	return predictor.Resolve(p.Preset, &p.Overrides)
}

type KVStoreConfig struct {
	Type   enum.KVStoreType `yaml:"type" env:"TYPE" validate:"required,oneof=badger redis memory"`
	Badger BadgerConfig     `yaml:"badger" envPrefix:"BADGER_"`
	Redis  RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory" env:"DIRECTORY"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"URL"`
	Password string `yaml:"password" env:"PASSWORD"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

type NATSConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	URL           string        `yaml:"url" env:"URL" validate:"required_if=Enabled true"`
	SubjectPrefix string        `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
	StreamName    string        `yaml:"stream_name" env:"STREAM_NAME"`
	Username      string        `yaml:"username" env:"USERNAME"`
	Password      string        `yaml:"password" env:"PASSWORD"`
	TLS           NatsTLSConfig `yaml:"tls" envPrefix:"TLS_"`
}

type NatsTLSConfig struct {
	ClientCert string `yaml:"client_cert" env:"CLIENT_CERT"`
	ClientKey  string `yaml:"client_key" env:"CLIENT_KEY"`
	CACert     string `yaml:"ca_cert" env:"CA_CERT"`
}

// DatabaseConfig enables the settled-prediction archive when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT" validate:"required,min=1,max=65535"`
}

// Defaults is merged under whatever the file and environment leave unset.
func Defaults() Config {
	return Config{
		Environment: constant.EnvDevelopment,
		LogLevel:    "info",
		Stream:      constant.DefaultStream,
		Source: SourceConfig{
			Type:         enum.SourceTypeHTTP,
			PollInterval: 5 * time.Second,
			Client: ClientConfig{
				Timeout:    10 * time.Second,
				MaxRetries: 3,
				RetryDelay: 2 * time.Second,
				Throttle:   ThrottleConfig{RPS: 2, Burst: 2},
			},
			Breaker: BreakerConfig{MaxFailures: 3, OpenTimeout: 30 * time.Second},
			Websocket: WebsocketConfig{
				HandshakeTimeout: 10 * time.Second,
				PingInterval:     30 * time.Second,
				ReconnectMax:     time.Minute,
			},
		},
		History: HistoryConfig{Capacity: 1000, LedgerRetention: 1000},
		Predictor: PredictorConfig{
			Preset: predictor.PresetCanonical,
		},
		KVStore: KVStoreConfig{
			Type:   enum.KVStoreTypeBadger,
			Badger: BadgerConfig{Directory: "data/badger", Prefix: "taixiu"},
			Redis:  RedisConfig{URL: "localhost:6379", Prefix: "taixiu"},
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "taixiu.prediction",
			StreamName:    "taixiu",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads the YAML file at path, applies PREDICTOR_* environment
// overrides, fills defaults and validates the result. An empty path skips the
// file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: constant.EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// merge defaults
	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return cfg, fmt.Errorf("merge defaults: %w", err)
	}

	// validate
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("struct validation failed: %w", err)
	}
	if _, err := cfg.Predictor.Params(); err != nil {
		return cfg, fmt.Errorf("predictor config: %w", err)
	}
	return cfg, nil
}
