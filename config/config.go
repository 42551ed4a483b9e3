package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Mail      MailConfig      `yaml:"mail"`
	Couriers  CouriersConfig  `yaml:"couriers"`
	PackTrack PackTrackConfig `yaml:"packtrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

// RedisConfig is optional; without it the poller runs unthrottled.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// KafkaConfig is optional; without it status transitions are only logged.
type KafkaConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (k KafkaConfig) Enabled() bool { return k.Host != "" }

func (k KafkaConfig) Brokers() []string { return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)} }

// MailConfig is optional; without it the email ingestion worker does not start.
type MailConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
}

func (m MailConfig) Enabled() bool { return m.Addr != "" }

type CouriersConfig struct {
	FedEx  OAuthCourierConfig `yaml:"fedex"`
	UPS    OAuthCourierConfig `yaml:"ups"`
	USPS   OAuthCourierConfig `yaml:"usps"`
	UPSWeb UPSWebConfig       `yaml:"ups_web"`
}

// OAuthCourierConfig holds API credentials for one carrier. An empty
// client_id leaves the carrier unregistered.
type OAuthCourierConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

func (c OAuthCourierConfig) Enabled() bool { return c.ClientID != "" }

// UPSWebConfig enables the credential-less web scraping fallback for UPS.
// Ignored when API credentials for UPS are configured.
type UPSWebConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type PackTrackConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	IngestIntervalSeconds int `yaml:"ingest_interval_seconds"`
	RateLimitPerMinute    int `yaml:"rate_limit_per_minute"`

	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// Sanitized returns a copy safe to log: every secret is masked, everything
// else is kept so startup logs show the effective settings.
func (c Config) Sanitized() Config {
	out := c
	out.Database.Password = mask(c.Database.Password)
	out.Mail.Password = mask(c.Mail.Password)
	out.Couriers.FedEx.ClientSecret = mask(c.Couriers.FedEx.ClientSecret)
	out.Couriers.UPS.ClientSecret = mask(c.Couriers.UPS.ClientSecret)
	out.Couriers.USPS.ClientSecret = mask(c.Couriers.USPS.ClientSecret)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
