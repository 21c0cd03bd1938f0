package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	TrackView TrackViewConfig `yaml:"trackview"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ChangesTopicName string `yaml:"changes_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type TrackViewConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	// "kafka" (по умолчанию) или "postgres"
	ChangeFeedSource   string `yaml:"change_feed_source"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`
	SessionCookieName string `yaml:"session_cookie_name"`
	CookieSecure      bool   `yaml:"cookie_secure"`
	JWTSecret         string `yaml:"jwt_secret"`
	BcryptCost        int    `yaml:"bcrypt_cost"`

	LoginRateLimitPerMinute  int `yaml:"login_rate_limit_per_minute"`
	LookupRateLimitPerMinute int `yaml:"lookup_rate_limit_per_minute"`

	DisplayTimeZone string `yaml:"display_time_zone"`
	SwaggerPath     string `yaml:"swagger_path"`

	RelayHTTPAddr            string `yaml:"relay_http_addr"`
	RelayGRPCAddr            string `yaml:"relay_grpc_addr"`
	RelayPublishAttempts     int    `yaml:"relay_publish_attempts"`
	RelayRestartDelaySeconds int    `yaml:"relay_restart_delay_seconds"`
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

// LoadFromEnv reads an optional .env file, then the YAML file named by the
// configPath variable. Secrets set in the environment win over the file.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		return nil, fmt.Errorf("configPath env var is required")
	}
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TRACKVIEW_JWT_SECRET"); v != "" {
		cfg.TrackView.JWTSecret = v
	}
	if v := os.Getenv("swaggerPath"); v != "" {
		cfg.TrackView.SwaggerPath = v
	}
	return cfg, nil
}
