package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	JWT       JWTConfig       `yaml:"jwt"`
	Relay     RelayConfig     `yaml:"relay"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	Mode      string `yaml:"mode" validate:"oneof=debug release test"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=mysql sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// RedisConfig Addr 为空时不连接 redis（登录态和跨实例通知都依赖它）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type JWTConfig struct {
	AccessSecret  string        `yaml:"access_secret" validate:"required"`
	RefreshSecret string        `yaml:"refresh_secret" validate:"required"`
	AccessTTL     time.Duration `yaml:"access_ttl" validate:"gt=0"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" validate:"gt=0"`
}

type RelayConfig struct {
	Mode string `yaml:"mode" validate:"oneof=memory redis"`
}

type ReconcileConfig struct {
	Interval  time.Duration `yaml:"interval" validate:"gt=0"`
	BatchSize int           `yaml:"batch_size" validate:"gt=0"`
}

var validate = validator.New()

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			Mode:      "release",
			LogFormat: "json",
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "user:password@tcp(127.0.0.1:3306)/coop?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		Kafka: KafkaConfig{Topic: "coop.poll-events"},
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Relay: RelayConfig{Mode: "memory"},
		Reconcile: ReconcileConfig{
			Interval:  5 * time.Minute,
			BatchSize: 500,
		},
	}
}

// Load 读取 yaml 配置，文件不存在时使用默认值，再用环境变量覆盖
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Relay.Mode == "redis" && c.Redis.Addr == "" {
		return errors.New("invalid config: relay mode redis requires redis.addr")
	}
	return nil
}

func getEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func applyEnv(cfg *Config) error {
	if v, ok := getEnv("COOP_HTTP_ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := getEnv("COOP_GIN_MODE"); ok {
		cfg.Server.Mode = v
	}
	if v, ok := getEnv("COOP_LOG_FORMAT"); ok {
		cfg.Server.LogFormat = v
	}
	if v, ok := getEnv("COOP_DB_DRIVER"); ok {
		cfg.Database.Driver = v
	}
	if v, ok := getEnv("COOP_DB_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := getEnv("COOP_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := getEnv("COOP_REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := getEnv("COOP_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COOP_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if v, ok := getEnv("COOP_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := getEnv("COOP_KAFKA_TOPIC"); ok {
		cfg.Kafka.Topic = v
	}
	if v, ok := getEnv("COOP_JWT_ACCESS_SECRET"); ok {
		cfg.JWT.AccessSecret = v
	}
	if v, ok := getEnv("COOP_JWT_REFRESH_SECRET"); ok {
		cfg.JWT.RefreshSecret = v
	}
	if v, ok := getEnv("COOP_RELAY_MODE"); ok {
		cfg.Relay.Mode = v
	}
	if v, ok := getEnv("COOP_RECONCILE_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COOP_RECONCILE_INTERVAL: %w", err)
		}
		cfg.Reconcile.Interval = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
