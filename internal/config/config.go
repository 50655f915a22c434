package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Deploy targets.
const (
	TargetLocal = "local"
	TargetS3    = "s3"
)

type Config struct {
	Server struct {
		Address             string `yaml:"address"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
		APIKey              string `yaml:"api_key"`
	} `yaml:"server"`

	Logging struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"logging"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Deploy DeployConfig `yaml:"deploy"`

	Calendar CalendarConfig `yaml:"calendar"`

	Telegram struct {
		BotToken       string  `yaml:"bot_token"`
		ChatIDs        []int64 `yaml:"chat_ids"`
		MessagesPerSec float64 `yaml:"messages_per_second"`
		Debug          bool    `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Forms FormsConfig `yaml:"forms"`
}

// BackupConfig controls periodic sqlite snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// DeployConfig selects where published pages are written.
type DeployConfig struct {
	Target string `yaml:"target"` // "local" or "s3"

	Local struct {
		Dir     string `yaml:"dir"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"local"`

	S3 struct {
		Bucket       string `yaml:"bucket"`
		Region       string `yaml:"region"`
		Prefix       string `yaml:"prefix"`
		PublicURL    string `yaml:"public_base_url"`
		ProxyURL     string `yaml:"proxy_base_url"`
		CacheControl string `yaml:"cache_control"`
	} `yaml:"s3"`

	MaxRetries       int `yaml:"max_retries"`
	RetryBackoffMsec int `yaml:"retry_backoff_ms"`
}

// CalendarConfig enables the Google Calendar busy-slot snapshot.
type CalendarConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	CalendarID      string `yaml:"calendar_id"`
	TimeZone        string `yaml:"time_zone"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// FormsConfig describes the watched directory of form configuration files.
type FormsConfig struct {
	Dir                  string `yaml:"dir"`
	WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	AutoPublish          bool   `yaml:"auto_publish"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/yoyaku.db"
	}
	if cfg.Deploy.Target == "" {
		cfg.Deploy.Target = TargetLocal
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Deploy.Target {
	case TargetLocal:
	case TargetS3:
		if c.Deploy.S3.Bucket == "" {
			errs = append(errs, errors.New("deploy.s3.bucket is required for s3 target"))
		}
	default:
		errs = append(errs, fmt.Errorf("deploy.target: unknown target %q", c.Deploy.Target))
	}
	if c.Calendar.Enabled {
		if c.Calendar.CalendarID == "" {
			errs = append(errs, errors.New("calendar.calendar_id is required when calendar is enabled"))
		}
		if _, err := time.LoadLocation(c.CalendarTimeZone()); err != nil {
			errs = append(errs, fmt.Errorf("calendar.time_zone: %w", err))
		}
	}
	for i, id := range c.Telegram.ChatIDs {
		if id == 0 {
			errs = append(errs, fmt.Errorf("telegram.chat_ids[%d]: must not be zero", i))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ServerAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

// LogLevel parses logging.level, falling back to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil || c.Logging.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupPath() string {
	if c.Backup.StoragePath == "" {
		return filepath.Join(filepath.Dir(c.Database.Path), "backups")
	}
	return c.Backup.StoragePath
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) DeployDir() string {
	if c.Deploy.Local.Dir == "" {
		return "public"
	}
	return c.Deploy.Local.Dir
}

func (c *Config) DeployRetries() int {
	if c.Deploy.MaxRetries <= 0 {
		return 3
	}
	return c.Deploy.MaxRetries
}

func (c *Config) DeployBackoff() time.Duration {
	if c.Deploy.RetryBackoffMsec <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Deploy.RetryBackoffMsec) * time.Millisecond
}

func (c *Config) CalendarTimeZone() string {
	if c.Calendar.TimeZone == "" {
		return "Asia/Tokyo"
	}
	return c.Calendar.TimeZone
}

func (c *Config) CalendarCacheTTL() time.Duration {
	if c.Calendar.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Calendar.CacheTTLSeconds) * time.Second
}

func (c *Config) TelegramRate() float64 {
	if c.Telegram.MessagesPerSec <= 0 {
		return 1
	}
	return c.Telegram.MessagesPerSec
}

func (c *Config) FormsDir() string {
	if c.Forms.Dir == "" {
		return "forms"
	}
	return c.Forms.Dir
}

func (c *Config) FormsWatchInterval() time.Duration {
	if c.Forms.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Forms.WatchIntervalSeconds) * time.Second
}

func (c *Config) HealthPort() int {
	if c.Monitoring.HealthCheckPort <= 0 {
		return 8081
	}
	return c.Monitoring.HealthCheckPort
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort <= 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}
