// Package config loads runtime settings from the environment, with an
// optional .env file, and validates them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Server struct {
	Addr        string `env:"CHAT_ADDR,default=:8888" validate:"required"`
	MetricsAddr string `env:"CHAT_METRICS_ADDR,default=:9090"`
	UsersFile   string `env:"CHAT_USERS_FILE,default=users.txt" validate:"required"`
	AuditFile   string `env:"CHAT_AUDIT_FILE,default=logs/chat.log" validate:"required"`
	LogLevel    string `env:"CHAT_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	SendBuffer  int    `env:"CHAT_SEND_BUFFER,default=64" validate:"min=1,max=65536"`
}

type Client struct {
	ServerAddr string `env:"CHAT_SERVER_ADDR,default=localhost:8888" validate:"required,hostname_port"`
}

var validate = validator.New()

// LoadServer reads the server settings. dotenv names optional files to load
// first; missing files are ignored.
func LoadServer(dotenv ...string) (Server, error) {
	var cfg Server
	if err := load(&cfg, dotenv); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func LoadClient(dotenv ...string) (Client, error) {
	var cfg Client
	if err := load(&cfg, dotenv); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// Validate checks a config that may have been changed by flags after loading.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func load(cfg any, dotenv []string) error {
	for _, file := range dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return Validate(cfg)
}

// Level maps a validated level name to a slog level.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
