package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Signalflow  SignalflowConfig  `yaml:"signalflow"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Stream      StreamConfig      `yaml:"stream"`
	Binance     BinanceConfig     `yaml:"binance"`
	Processor   ProcessorConfig   `yaml:"processor"`
	Queue       QueueConfig       `yaml:"queue"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Performance PerformanceConfig `yaml:"performance"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type SignalflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	FrameBuffer  int `yaml:"frame_buffer"`
	SignalBuffer int `yaml:"signal_buffer"`
}

type StreamConfig struct {
	URL                  string `yaml:"url"`
	UpdateIntervalMs     int    `yaml:"update_interval_ms"`
	ReconnectDelayMs     int    `yaml:"reconnect_delay_ms"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"` // 0 retries forever
	PingIntervalSec      int    `yaml:"ping_interval_sec"`
}

type BinanceConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Symbols  []string `yaml:"symbols"`
	Interval string   `yaml:"interval"`
}

type ProcessorConfig struct {
	MaxWorkers           int     `yaml:"max_workers"`
	MinCompositeSignals  int     `yaml:"min_composite_signals"`
	MinCompositeStrength float64 `yaml:"min_composite_strength"`
	VolumeRatioThreshold float64 `yaml:"volume_ratio_threshold"`
	DefaultStrength      float64 `yaml:"default_strength"`
}

type QueueConfig struct {
	DrainIntervalMs int `yaml:"drain_interval_ms"`
}

type MarketDataConfig struct {
	MaxSymbols int `yaml:"max_symbols"`
}

type PerformanceConfig struct {
	MaxSignalHistory int `yaml:"max_signal_history"`
	MaxOrderHistory  int `yaml:"max_order_history"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled          bool   `yaml:"enabled"`
	Bucket           string `yaml:"bucket"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	PathStyle        bool   `yaml:"path_style"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	Prefix           string `yaml:"prefix"`
	FlushIntervalSec int    `yaml:"flush_interval_sec"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	LogHistory int    `yaml:"log_history"`
	MaxSignals int    `yaml:"max_signals"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides
	if v := os.Getenv("SIGNAL_STREAM_URL"); v != "" {
		config.Stream.URL = strings.TrimSpace(v)
	}
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func defaultConfig() Config {
	return Config{
		Channels: ChannelsConfig{
			FrameBuffer:  1000,
			SignalBuffer: 500,
		},
		Stream: StreamConfig{
			UpdateIntervalMs:     1000,
			ReconnectDelayMs:     5000,
			PingIntervalSec:      20,
			MaxReconnectAttempts: 0,
		},
		Processor: ProcessorConfig{
			MaxWorkers:           1,
			MinCompositeSignals:  2,
			MinCompositeStrength: 0.6,
			VolumeRatioThreshold: 1.5,
			DefaultStrength:      0.5,
		},
		Queue: QueueConfig{
			DrainIntervalMs: 50,
		},
		MarketData: MarketDataConfig{
			MaxSymbols: 512,
		},
		Performance: PerformanceConfig{
			MaxSignalHistory: 1000,
			MaxOrderHistory:  1000,
		},
		Storage: StorageConfig{
			S3: S3Config{FlushIntervalSec: 60},
		},
		Dashboard: DashboardConfig{
			Address:    ":8090",
			LogHistory: 200,
			MaxSignals: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Signalflow.Name == "" {
		return fmt.Errorf("signalflow.name is required")
	}

	if cfg.Signalflow.Version == "" {
		return fmt.Errorf("signalflow.version is required")
	}

	if cfg.Stream.URL == "" {
		return fmt.Errorf("stream.url is required")
	}

	if cfg.Stream.UpdateIntervalMs <= 0 {
		return fmt.Errorf("stream.update_interval_ms must be greater than 0")
	}

	if cfg.Stream.ReconnectDelayMs <= 0 {
		return fmt.Errorf("stream.reconnect_delay_ms must be greater than 0")
	}

	if cfg.Channels.FrameBuffer <= 0 {
		return fmt.Errorf("channels.frame_buffer must be greater than 0")
	}

	if cfg.Channels.SignalBuffer <= 0 {
		return fmt.Errorf("channels.signal_buffer must be greater than 0")
	}

	if cfg.Processor.MaxWorkers <= 0 {
		return fmt.Errorf("processor.max_workers must be greater than 0")
	}
	if cfg.Processor.MinCompositeSignals < 2 {
		return fmt.Errorf("processor.min_composite_signals must be at least 2")
	}
	if cfg.Processor.MinCompositeStrength <= 0 || cfg.Processor.MinCompositeStrength >= 1 {
		return fmt.Errorf("processor.min_composite_strength must be in (0,1)")
	}
	if cfg.Processor.VolumeRatioThreshold <= 0 {
		return fmt.Errorf("processor.volume_ratio_threshold must be greater than 0")
	}

	if cfg.Queue.DrainIntervalMs <= 0 {
		return fmt.Errorf("queue.drain_interval_ms must be greater than 0")
	}

	if cfg.MarketData.MaxSymbols <= 0 {
		return fmt.Errorf("market_data.max_symbols must be greater than 0")
	}

	if cfg.Performance.MaxSignalHistory <= 0 {
		return fmt.Errorf("performance.max_signal_history must be greater than 0")
	}

	if cfg.Binance.Enabled {
		if len(cfg.Binance.Symbols) == 0 {
			return fmt.Errorf("binance.symbols is required when the binance feed is enabled")
		}
		if cfg.Binance.Interval == "" {
			return fmt.Errorf("binance.interval is required when the binance feed is enabled")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
