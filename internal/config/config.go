package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the relay server settings. Values come from the environment
// (a .env file is loaded first) and optionally a YAML file named by CONFIG_FILE.
type Config struct {
	Port          int           `mapstructure:"port"`
	DatabaseURL   string        `mapstructure:"database_url"`
	NatsURL       string        `mapstructure:"nats_url"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SaveInterval  time.Duration `mapstructure:"save_interval"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateWindow    time.Duration `mapstructure:"rate_window"`
	LogLevel      string        `mapstructure:"log_level"`
}

// BotConfig holds the headless player settings.
type BotConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	RedisURL   string        `mapstructure:"redis_url"`
	PlayerName string        `mapstructure:"player_name"`
	RoomID     string        `mapstructure:"room_id"`
	Token      string        `mapstructure:"token"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log_level"`
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the server configuration.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("sweep_interval", 60*time.Second)
	v.SetDefault("save_interval", 30*time.Second)
	v.SetDefault("idle_timeout", 10*time.Minute)
	v.SetDefault("write_timeout", 5*time.Second)
	v.SetDefault("rate_limit", 20)
	v.SetDefault("rate_window", time.Second)
	v.SetDefault("log_level", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.SweepInterval <= 0 || c.SaveInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL and SAVE_INTERVAL must be positive")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return nil
}

// LoadBot reads the bot configuration. Command-line flags override the
// environment.
func LoadBot(args []string) (*BotConfig, error) {
	flags := pflag.NewFlagSet("bot", pflag.ContinueOnError)
	flags.String("server", "ws://localhost:8080/websocket", "relay server websocket URL")
	flags.String("redis", "", "redis URL for the session store (in-memory when empty)")
	flags.String("name", "", "player name")
	flags.String("room", "", "room code to join (a new room is created when empty)")
	flags.String("token", "", "game piece to select")
	flags.Duration("timeout", 10*time.Second, "rejoin timeout")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	binds := map[string]string{
		"server_url":  "server",
		"redis_url":   "redis",
		"player_name": "name",
		"room_id":     "room",
		"token":       "token",
		"timeout":     "timeout",
	}
	for key, flag := range binds {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, err
		}
	}
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("log_level", "info")

	var cfg BotConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode bot config: %w", err)
	}
	if cfg.PlayerName == "" {
		cfg.PlayerName = "bot-" + fmt.Sprint(time.Now().Unix()%10000)
	}
	return &cfg, nil
}

// ParseLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the JSON logger used by the binaries.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}
