package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/focustimer/go/internal/dbconfig"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/mcdev12/focustimer/go/internal/timer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// PathEnv names the variable pointing at an optional YAML config file.
const PathEnv = "FOCUSTIMER_CONFIG"

// Config is the full configuration of the server and the CLI.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Timer  timer.Config `yaml:"timer"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	statestore.Config `yaml:",inline"`
	OpTimeout         time.Duration `yaml:"op_timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Timer: timer.DefaultConfig(),
		Store: StoreConfig{
			Config:    statestore.DefaultConfig(),
			OpTimeout: 2 * time.Second,
		},
	}
}

// Load reads the YAML file named by FOCUSTIMER_CONFIG, if any, then applies
// FOCUSTIMER_* environment overrides.
func Load(fs afero.Fs) (Config, error) {
	cfg := Default()

	if path := os.Getenv(PathEnv); path != "" {
		if err := loadFromFile(fs, path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if strings.EqualFold(cfg.Store.Driver, statestore.DriverPostgres) && cfg.Store.Postgres.DSN == "" {
		db := dbconfig.NewConfigFromEnv()
		cfg.Store.Postgres.DSN = db.DSN()
		log.Info().Str("dsn", db.Redacted()).Msg("postgres connection taken from DB_* environment")
	}
	return cfg, nil
}

func loadFromFile(fs afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Port = getEnv("FOCUSTIMER_PORT", getEnv("PORT", cfg.Server.Port))
	if origins := os.Getenv("FOCUSTIMER_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Log.Level = getEnv("FOCUSTIMER_LOG_LEVEL", cfg.Log.Level)

	cfg.Timer.DefaultMinutes = getEnvAsInt("FOCUSTIMER_DEFAULT_MINUTES", cfg.Timer.DefaultMinutes)
	if raw := os.Getenv("FOCUSTIMER_MODES"); raw != "" {
		modes, err := ParseModes(raw)
		if err != nil {
			return fmt.Errorf("invalid FOCUSTIMER_MODES: %w", err)
		}
		cfg.Timer.Modes = modes
	}
	var err error
	if cfg.Timer.TickInterval, err = getEnvAsDuration("FOCUSTIMER_TICK_INTERVAL", cfg.Timer.TickInterval); err != nil {
		return err
	}

	cfg.Store.Driver = getEnv("FOCUSTIMER_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Key = getEnv("FOCUSTIMER_STORE_KEY", cfg.Store.Key)
	if cfg.Store.OpTimeout, err = getEnvAsDuration("FOCUSTIMER_STORE_OP_TIMEOUT", cfg.Store.OpTimeout); err != nil {
		return err
	}
	cfg.Store.File.Dir = getEnv("FOCUSTIMER_STORE_DIR", cfg.Store.File.Dir)
	cfg.Store.SQLite.Path = getEnv("FOCUSTIMER_SQLITE_PATH", cfg.Store.SQLite.Path)
	cfg.Store.Postgres.DSN = getEnv("FOCUSTIMER_POSTGRES_DSN", cfg.Store.Postgres.DSN)
	cfg.Store.Postgres.Channel = getEnv("FOCUSTIMER_POSTGRES_CHANNEL", cfg.Store.Postgres.Channel)
	cfg.Store.NATS.URL = getEnv("FOCUSTIMER_NATS_URL", getEnv("NATS_URL", cfg.Store.NATS.URL))
	cfg.Store.NATS.Bucket = getEnv("FOCUSTIMER_NATS_BUCKET", cfg.Store.NATS.Bucket)
	return nil
}

// EngineConfig returns the timer settings with the store timeout applied.
func (c Config) EngineConfig() timer.Config {
	cfg := c.Timer
	cfg.StoreTimeout = c.Store.OpTimeout
	return cfg
}

// ZerologLevel parses Log.Level, defaulting to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}

// ParseModes reads a mode list such as "Focus:25,Short Break:5". A bare
// number is named after its duration.
func ParseModes(raw string) ([]models.Mode, error) {
	var modes []models.Mode
	for _, item := range splitList(raw) {
		name, minutesText, found := strings.Cut(item, ":")
		if !found {
			minutesText, name = name, ""
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(minutesText))
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("mode %q: minutes must be a positive integer", item)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("%d min", minutes)
		}
		modes = append(modes, models.Mode{Name: name, Minutes: minutes})
	}
	if len(modes) == 0 {
		return nil, errors.New("no modes given")
	}
	return modes, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
