package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Proxy  ProxyConfig  `yaml:"proxy" mapstructure:"proxy"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ProxyConfig configures the proxy pool and the resilient executor.
type ProxyConfig struct {
	File        string `yaml:"file" mapstructure:"file"`
	Strategy    string `yaml:"strategy" mapstructure:"strategy"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	ProbeURL    string `yaml:"probe_url" mapstructure:"probe_url"`
}

// FetchConfig configures the page fetcher layered over the executor.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyKB   int     `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// CrawlConfig bounds extraction per page.
type CrawlConfig struct {
	MaxPosts      int `yaml:"max_posts" mapstructure:"max_posts"`
	MaxComments   int `yaml:"max_comments" mapstructure:"max_comments"`
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures file exports of stored data.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the status/crawl HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAGECRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.file", "proxies.txt")
	v.SetDefault("proxy.strategy", "sequential")
	v.SetDefault("proxy.timeout_secs", 10)
	v.SetDefault("proxy.max_retries", 3)
	v.SetDefault("proxy.probe_url", "https://ip.oxylabs.io/location")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; pagecrawl/1.0)")
	v.SetDefault("fetch.max_body_kb", 2048)
	v.SetDefault("fetch.rate_per_host", 2)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("crawl.max_posts", 10)
	v.SetDefault("crawl.max_comments", 5)
	v.SetDefault("crawl.max_concurrent", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pagecrawl.db")
	v.SetDefault("export.dir", "data")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the built-in configuration, the same values Load falls
// back to without a config file.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}
	return &cfg, nil
}

// WriteDefault writes a starter config.yaml to path. Fails if the file
// already exists.
func WriteDefault(path string) error {
	cfg, err := Default()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal defaults")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrapf(err, "config: create %s", path)
	}
	defer f.Close() //nolint:errcheck
	if _, err := f.Write(data); err != nil {
		return eris.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
