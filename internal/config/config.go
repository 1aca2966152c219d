package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppName string `yaml:"app_name"`
	Env     string `yaml:"env"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// DBDriver selects the conversation store: "sqlite" or "postgres".
	DBDriver    string `yaml:"db_driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	DBMaxConns  int    `yaml:"db_max_conns"`

	JWTSecret          string `yaml:"jwt_secret"`
	JWTIssuer          string `yaml:"jwt_issuer"`
	AccessTokenMinutes int    `yaml:"access_token_minutes"`
	EncryptKey         string `yaml:"encryption_key"`

	CORSOrigins []string `yaml:"cors_origins"`

	// RedisAddr enables cross-process fan-out and shared typing state.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	PushQueue     string `yaml:"push_queue"`

	LogLevel string `yaml:"log_level"`
	LogSink  string `yaml:"log_sink"`

	TypingTTL         time.Duration `yaml:"typing_ttl"`
	ReadDelay         time.Duration `yaml:"read_delay"`
	SendRatePerSecond float64       `yaml:"send_rate_per_second"`
	SendBurst         int           `yaml:"send_burst"`
	MaxMessageLength  int           `yaml:"max_message_length"`
	MessagePageSize   int           `yaml:"message_page_size"`
}

func defaults() *Config {
	return &Config{
		AppName:            "dmcore",
		Env:                "development",
		Host:               "0.0.0.0",
		Port:               8000,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		DBDriver:           "sqlite",
		SQLitePath:         "dmcore.db",
		DBMaxConns:         25,
		JWTIssuer:          "dmcore",
		AccessTokenMinutes: 60 * 24,
		CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
		PushQueue:          "dm:push",
		LogLevel:           "info",
		TypingTTL:          6 * time.Second,
		ReadDelay:          800 * time.Millisecond,
		SendRatePerSecond:  5,
		SendBurst:          10,
		MaxMessageLength:   5000,
		MessagePageSize:    50,
	}
}

// Load reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Host = getEnv("HTTP_HOST", cfg.Host)
	cfg.Port = getEnvAsInt("HTTP_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvAsDuration("HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)

	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.DBMaxConns = getEnvAsInt("DB_MAX_CONNS", cfg.DBMaxConns)
	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURL()
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AccessTokenMinutes = getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", cfg.AccessTokenMinutes)
	cfg.EncryptKey = getEnv("ENCRYPTION_KEY", cfg.EncryptKey)

	if cors := getEnv("CORS_ORIGINS", ""); cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.PushQueue = getEnv("PUSH_QUEUE", cfg.PushQueue)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogSink = getEnv("LOG_SINK", cfg.LogSink)

	cfg.TypingTTL = getEnvAsDuration("TYPING_TTL", cfg.TypingTTL)
	cfg.ReadDelay = getEnvAsDuration("READ_DELAY", cfg.ReadDelay)
	cfg.SendRatePerSecond = getEnvAsFloat("SEND_RATE_PER_SECOND", cfg.SendRatePerSecond)
	cfg.SendBurst = getEnvAsInt("SEND_BURST", cfg.SendBurst)
	cfg.MaxMessageLength = getEnvAsInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.MessagePageSize = getEnvAsInt("MESSAGE_PAGE_SIZE", cfg.MessagePageSize)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.MessagePageSize <= 0 {
		return fmt.Errorf("MESSAGE_PAGE_SIZE must be positive")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "postgres")),
		Host:     fmt.Sprintf("%s:%s", getEnv("POSTGRES_HOST", "localhost"), getEnv("POSTGRES_PORT", "5432")),
		Path:     getEnv("POSTGRES_DB", "dmcore"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
