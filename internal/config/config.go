package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

const (
	OpenerHub     = "hub"
	OpenerBrowser = "browser"
	OpenerSystem  = "system"
	OpenerLog     = "log"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Opener   OpenerConfig
	Defaults DefaultsConfig
	AI       AIConfig
	Export   ExportConfig
	Location *time.Location
	LogLevel slog.Level
}

type ServerConfig struct {
	Address     string
	CORSOrigins []string
}

type StoreConfig struct {
	Backend     Backend
	PostgresURL string
	SQLitePath  string
}

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

type OpenerConfig struct {
	Kinds             []string
	BrowserControlURL string
	AutoCloseAfter    time.Duration
}

// DefaultsConfig seeds state that was never persisted.
type DefaultsConfig struct {
	Delay         time.Duration
	SenderName    string
	TemplatesFile string
}

type AIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

func (c AIConfig) Enabled() bool { return c.APIKey != "" }

type ExportConfig struct {
	Prefix string
}

func LoadAll() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Address:     getEnv("SERVER_ADDRESS", ":8080"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Store: StoreConfig{
			Backend:    Backend(strings.ToLower(getEnv("STORE_BACKEND", string(BackendMemory)))),
			SQLitePath: getEnv("SQLITE_PATH", "wasender.db"),
		},
		Opener: OpenerConfig{
			Kinds:             splitList(getEnv("OPENER", "hub,log")),
			BrowserControlURL: os.Getenv("BROWSER_CONTROL_URL"),
		},
		Defaults: DefaultsConfig{
			SenderName:    getEnv("SENDER_NAME", "Admin JNT"),
			TemplatesFile: os.Getenv("TEMPLATES_FILE"),
		},
		AI: AIConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
		Export: ExportConfig{
			Prefix: getEnv("EXPORT_PREFIX", "wa_blast"),
		},
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		redisCfg, err := loadRedisConfig()
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Redis = redisCfg
	case BackendPostgres:
		url, err := requireEnv("POSTGRES_URL")
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Store.PostgresURL = url
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, sqlite (got %q)", cfg.Store.Backend))
	}

	for _, k := range cfg.Opener.Kinds {
		switch k {
		case OpenerHub, OpenerBrowser, OpenerSystem, OpenerLog:
		default:
			errs = append(errs, fmt.Errorf("OPENER: unknown opener %q", k))
		}
	}
	if len(cfg.Opener.Kinds) == 0 {
		errs = append(errs, errors.New("OPENER must name at least one opener"))
	}

	autoClose, err := getEnvInt("AUTO_CLOSE_SECONDS", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Opener.AutoCloseAfter = time.Duration(autoClose) * time.Second

	delayMS, err := getEnvInt("BLAST_DELAY_MS", 2000)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Defaults.Delay = time.Duration(delayMS) * time.Millisecond

	aiTimeout, err := getEnvInt("AI_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AI.Timeout = time.Duration(aiTimeout) * time.Second

	tz := getEnv("TIMEZONE", "Asia/Makassar")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err))
	}
	cfg.Location = loc

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	var errs []error

	addr, err := requireEnv("REDIS_ADDR")
	if err != nil {
		errs = append(errs, err)
	}
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 0)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Address:   addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        db,
		TTL:       time.Duration(ttl) * time.Second,
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "wasender:"),
	}, joinErrors(errs)
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Defaults.Delay <= 0 {
		errs = append(errs, errors.New("BLAST_DELAY_MS must be > 0"))
	}
	if cfg.Opener.AutoCloseAfter <= 0 {
		errs = append(errs, errors.New("AUTO_CLOSE_SECONDS must be > 0"))
	}
	if cfg.AI.Timeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Redis.TTL < 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be >= 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
