package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/netwatch/internal/logger"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	APIURL    string          `mapstructure:"api_url"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type EngineConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
	// RulesFile switches the rule catalog from the database to a YAML file.
	RulesFile        string `mapstructure:"rules_file"`
	SeedDefaultRules bool   `mapstructure:"seed_default_rules"`
}

type TelemetryConfig struct {
	BufferSize int         `mapstructure:"buffer_size"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
	Host       HostConfig  `mapstructure:"host"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// HostConfig enables sampling of the machine netwatch itself runs on.
type HostConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	DeviceID string        `mapstructure:"device_id"`
	Interval time.Duration `mapstructure:"interval"`
}

type NotifyConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Targets maps a rule target name to a channel name.
	Targets map[string]string `mapstructure:"targets"`
	Slack   SlackConfig       `mapstructure:"slack"`
	Email   EmailConfig       `mapstructure:"email"`
	SMS     SMSConfig         `mapstructure:"sms"`
	Webhook WebhookConfig     `mapstructure:"webhook"`
}

type SlackConfig struct {
	Token   string `mapstructure:"token"`
	Channel string `mapstructure:"channel"`
}

type EmailConfig struct {
	SMTPHost  string   `mapstructure:"smtp_host"`
	SMTPPort  int      `mapstructure:"smtp_port"`
	From      string   `mapstructure:"from"`
	Password  string   `mapstructure:"password"`
	Receivers []string `mapstructure:"receivers"`
	// Recipients overrides Receivers per target.
	Recipients map[string][]string `mapstructure:"recipients"`
}

type SMSConfig struct {
	GatewayURL string              `mapstructure:"gateway_url"`
	APIKey     string              `mapstructure:"api_key"`
	Recipients map[string][]string `mapstructure:"recipients"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/netwatch.db")
	v.SetDefault("engine.interval", "60s")
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.seed_default_rules", true)
	v.SetDefault("telemetry.buffer_size", 10000)
	v.SetDefault("telemetry.kafka.topic", "netwatch.samples")
	v.SetDefault("telemetry.kafka.group_id", "netwatch-engine")
	v.SetDefault("telemetry.host.interval", "15s")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.targets", map[string]string{
		"noc-team":         "push",
		"provider-admin":   "email",
		"field-technician": "sms",
	})
	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("api_url", "http://localhost:8080/api/v1")
}

// Load reads the configuration. An empty path searches ./config.yaml and
// /etc/netwatch/config.yaml and, when neither exists, writes the defaults to
// ./config.yaml. NETWATCH_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NETWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/netwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			logger.Logger.Warn().Err(err).Msg("failed to write default config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Engine.Interval <= 0 {
		return errors.New("engine.interval must be positive")
	}
	if c.Notify.Timeout <= 0 {
		return errors.New("notify.timeout must be positive")
	}
	if c.Telemetry.Kafka.Enabled && (len(c.Telemetry.Kafka.Brokers) == 0 || c.Telemetry.Kafka.Topic == "") {
		return errors.New("telemetry.kafka requires brokers and a topic")
	}
	return nil
}
