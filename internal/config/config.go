package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Push     PushConfig
	Log      LogConfig

	JWTSecret        string
	MaxMessageLength int
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

// DSN builds the libpq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL  string
	Name string
}

func (c NATSConfig) Enabled() bool { return c.URL != "" }

type PushConfig struct {
	FCMCredentialsFile string
	FCMProjectID       string

	APNsKeyPath    string
	APNsKeyID      string
	APNsTeamID     string
	APNsBundleID   string
	APNsProduction bool

	BodyMaxLength int
	Workers       int
	QueueSize     int
	Timeout       time.Duration
}

func (c PushConfig) FCMEnabled() bool { return c.FCMCredentialsFile != "" || c.FCMProjectID != "" }

func (c PushConfig) APNsEnabled() bool {
	return c.APNsKeyPath != "" && c.APNsKeyID != "" && c.APNsTeamID != "" && c.APNsBundleID != ""
}

type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "giveit")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NATS_NAME", "giveit-messaging")
	v.SetDefault("APNS_PRODUCTION", false)
	v.SetDefault("PUSH_BODY_MAX_LENGTH", 100)
	v.SetDefault("PUSH_WORKERS", 4)
	v.SetDefault("PUSH_QUEUE_SIZE", 1000)
	v.SetDefault("PUSH_TIMEOUT", "10s")
	v.SetDefault("MAX_MESSAGE_LENGTH", 4000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

// Load reads the optional .env files and the process environment.
func Load(envFiles ...string) (*Config, error) {
	// Missing .env files are fine; the environment alone is enough.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			Port:     v.GetString("DB_PORT"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NATS: NATSConfig{
			URL:  v.GetString("NATS_URL"),
			Name: v.GetString("NATS_NAME"),
		},
		Push: PushConfig{
			FCMCredentialsFile: v.GetString("FCM_CREDENTIALS_FILE"),
			FCMProjectID:       v.GetString("FCM_PROJECT_ID"),
			APNsKeyPath:        v.GetString("APNS_KEY_PATH"),
			APNsKeyID:          v.GetString("APNS_KEY_ID"),
			APNsTeamID:         v.GetString("APNS_TEAM_ID"),
			APNsBundleID:       v.GetString("APNS_BUNDLE_ID"),
			APNsProduction:     v.GetBool("APNS_PRODUCTION"),
			BodyMaxLength:      v.GetInt("PUSH_BODY_MAX_LENGTH"),
			Workers:            v.GetInt("PUSH_WORKERS"),
			QueueSize:          v.GetInt("PUSH_QUEUE_SIZE"),
			Timeout:            v.GetDuration("PUSH_TIMEOUT"),
		},
		Log: LogConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
		JWTSecret:        v.GetString("JWT_SECRET"),
		MaxMessageLength: v.GetInt("MAX_MESSAGE_LENGTH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Push.BodyMaxLength < 1 {
		return fmt.Errorf("PUSH_BODY_MAX_LENGTH must be positive, got %d", c.Push.BodyMaxLength)
	}
	if c.Push.Workers < 1 {
		c.Push.Workers = 1
	}
	if c.Push.QueueSize < 1 {
		c.Push.QueueSize = 1
	}
	if c.Push.Timeout <= 0 {
		c.Push.Timeout = 10 * time.Second
	}
	if c.MaxMessageLength < 1 {
		c.MaxMessageLength = 4000
	}
	return nil
}
