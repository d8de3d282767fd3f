package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"buildtrack/pkg/config"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server  config.ServerConfig `yaml:"server"`
	DB      config.DBConfig     `yaml:"db"`
	MQ      config.MQConfig     `yaml:"mq"`
	Redis   config.RedisConfig  `yaml:"redis"`
	JWT     config.JWTConfig    `yaml:"jwt"`
	Minio   config.MinioConfig  `yaml:"minio"`
	Log     LogConfig           `yaml:"log"`
	Storage StorageConfig       `yaml:"storage"`
	App     AppConfig           `yaml:"app"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres / memory
}

type AppConfig struct {
	Timezone         string `yaml:"timezone"`
	RecalcRetryMax   int    `yaml:"recalc_retry_max"`
	OutboxIntervalMs int    `yaml:"outbox_interval_ms"`
	WorkerMetrics    string `yaml:"worker_metrics"` // worker 暴露 /metrics 的地址
}

// Location 日报按该时区折算到自然日
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid app.timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

func (a AppConfig) OutboxInterval() time.Duration {
	if a.OutboxIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(a.OutboxIntervalMs) * time.Millisecond
}

func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	var cfg Config
	if err := config.Load(env, configDir, &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideMinioFromEnv(&cfg.Minio)
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}

	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ShutdownSeconds <= 0 {
		cfg.Server.ShutdownSeconds = 10
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.App.WorkerMetrics == "" {
		cfg.App.WorkerMetrics = ":9091"
	}
	if cfg.App.RecalcRetryMax <= 0 {
		cfg.App.RecalcRetryMax = 5
	}
}
