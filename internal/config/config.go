package config

import (
    "errors"
    "fmt"
    "os"
    "time"

    "github.com/ilyakaznacheev/cleanenv"
    "github.com/joho/godotenv"
)

const (
    BackendMemory = "memory"
    BackendRedis  = "redis"
)

// MinSessionTTL keeps the memory store's janitor interval (ttl/2) positive.
const MinSessionTTL = time.Second

var ErrInvalid = errors.New("invalid config")

type Config struct {
    HTTP    HTTP    `yaml:"http"`
    Log     Log     `yaml:"log"`
    Session Session `yaml:"session"`
    Store   Store   `yaml:"store"`
}

type HTTP struct {
    Addr            string        `yaml:"addr" env:"TTT_HTTP_ADDR" env-default:":8080"`
    ReadTimeout     time.Duration `yaml:"read-timeout" env:"TTT_HTTP_READ_TIMEOUT" env-default:"10s"`
    WriteTimeout    time.Duration `yaml:"write-timeout" env:"TTT_HTTP_WRITE_TIMEOUT" env-default:"0s"`
    IdleTimeout     time.Duration `yaml:"idle-timeout" env:"TTT_HTTP_IDLE_TIMEOUT" env-default:"60s"`
    ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"TTT_HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Log struct {
    Level  string `yaml:"level" env:"TTT_LOG_LEVEL" env-default:"info"`
    Format string `yaml:"format" env:"TTT_LOG_FORMAT" env-default:"text"`
}

type Session struct {
    Cookie    string        `yaml:"cookie" env:"TTT_SESSION_COOKIE" env-default:"ttt_session"`
    TTL       time.Duration `yaml:"ttl" env:"TTT_SESSION_TTL" env-default:"2h"`
    Heartbeat time.Duration `yaml:"heartbeat" env:"TTT_SESSION_HEARTBEAT" env-default:"15s"`
}

type Store struct {
    Backend string `yaml:"backend" env:"TTT_STORE_BACKEND" env-default:"memory"`
    Redis   Redis  `yaml:"redis"`
}

type Redis struct {
    Addr     string `yaml:"addr" env:"TTT_REDIS_ADDR" env-default:"localhost:6379"`
    DB       int    `yaml:"db" env:"TTT_REDIS_DB" env-default:"0"`
    Password string `yaml:"password" env:"TTT_REDIS_PASSWORD"`
}

// Load reads .env (if present), then the YAML file at path (if present), then
// the environment. Later sources win.
func Load(path string) (*Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        return nil, fmt.Errorf("load .env: %w", err)
    }

    cfg := &Config{}
    if path != "" && fileExists(path) {
        if err := cleanenv.ReadConfig(path, cfg); err != nil {
            return nil, fmt.Errorf("read config %s: %w", path, err)
        }
    } else if err := cleanenv.ReadEnv(cfg); err != nil {
        return nil, fmt.Errorf("read env: %w", err)
    }

    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) Validate() error {
    switch c.Log.Level {
    case "debug", "info", "warn", "error":
    default:
        return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
    }
    switch c.Log.Format {
    case "text", "json":
    default:
        return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
    }
    switch c.Store.Backend {
    case BackendMemory:
    case BackendRedis:
        if c.Store.Redis.Addr == "" {
            return fmt.Errorf("%w: redis backend needs an address", ErrInvalid)
        }
    default:
        return fmt.Errorf("%w: store backend %q", ErrInvalid, c.Store.Backend)
    }
    if c.HTTP.Addr == "" {
        return fmt.Errorf("%w: empty http addr", ErrInvalid)
    }
    if c.Session.Cookie == "" {
        return fmt.Errorf("%w: empty session cookie name", ErrInvalid)
    }
    if c.Session.TTL < MinSessionTTL {
        return fmt.Errorf("%w: session ttl %s is below %s", ErrInvalid, c.Session.TTL, MinSessionTTL)
    }
    if c.Session.Heartbeat <= 0 || c.HTTP.ShutdownTimeout <= 0 {
        return fmt.Errorf("%w: heartbeat and shutdown timeout must be positive", ErrInvalid)
    }
    return nil
}

func fileExists(path string) bool {
    st, err := os.Stat(path)
    return err == nil && !st.IsDir()
}
