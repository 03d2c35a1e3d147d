package config

import (
	"fmt"
	"strings"
	"time"

	"anoa.com/studyhub/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPass      string
	DBName      string
	DBPort      string

	RedisURL string

	AMQPURL      string
	AMQPExchange string

	// BroadcastTransports lists the enabled transports: memory, redis, amqp.
	BroadcastTransports []string
	BroadcastTimeout    time.Duration
	BroadcastQueueSize  int

	UnreadCacheTTL time.Duration

	JWTSecret string

	LogLevel string
	LogFile  string

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.AddConfigPath("./configs")
	v.SetConfigType("yaml")
	v.SetConfigName("configuration")
	var configFile string
	if err := v.ReadInConfig(); err == nil {
		configFile = v.ConfigFileUsed()
		v.OnConfigChange(func(e fsnotify.Event) {
			log := logger.Component("config")
			log.Warn().Str("file", e.Name).Msg("config file changed; restart to apply")
		})
		v.WatchConfig()
	}

	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),

		DatabaseURL: v.GetString("DATABASE_URL"),
		DBHost:      v.GetString("DB_HOST"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBName:      v.GetString("DB_NAME"),
		DBPort:      v.GetString("DB_PORT"),

		RedisURL: v.GetString("REDIS_URL"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		BroadcastQueueSize: v.GetInt("BROADCAST_QUEUE_SIZE"),

		JWTSecret: v.GetString("JWT_SECRET"),

		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),

		ConfigFile: configFile,
	}

	cfg.BroadcastTransports = splitList(v.GetString("BROADCAST_TRANSPORTS"))

	// Parsing durations
	var err error
	cfg.BroadcastTimeout, err = parseDuration(v.GetString("BROADCAST_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid BROADCAST_TIMEOUT: %w", err)
	}
	cfg.UnreadCacheTTL, err = parseDuration(v.GetString("UNREAD_CACHE_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid UNREAD_CACHE_TTL: %w", err)
	}

	if cfg.BroadcastQueueSize <= 0 {
		return nil, fmt.Errorf("invalid BROADCAST_QUEUE_SIZE: must be positive")
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "studyhub")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("AMQP_EXCHANGE", "studyhub.notifications")
	v.SetDefault("BROADCAST_TRANSPORTS", "memory")
	v.SetDefault("BROADCAST_TIMEOUT", "3s")
	v.SetDefault("BROADCAST_QUEUE_SIZE", 1024)
	v.SetDefault("UNREAD_CACHE_TTL", "30s")
	v.SetDefault("LOG_LEVEL", "info")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
