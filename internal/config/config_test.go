package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadServer()
	req.NoError(err)

	req.Equal(":8888", cfg.Addr)
	req.Equal(":9090", cfg.MetricsAddr)
	req.Equal("users.txt", cfg.UsersFile)
	req.Equal("logs/chat.log", cfg.AuditFile)
	req.Equal("info", cfg.LogLevel)
	req.Equal(64, cfg.SendBuffer)
}

func TestLoadServer_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHAT_ADDR", ":7000")
	t.Setenv("CHAT_SEND_BUFFER", "8")
	t.Setenv("CHAT_LOG_LEVEL", "debug")

	cfg, err := LoadServer()
	req.NoError(err)
	req.Equal(":7000", cfg.Addr)
	req.Equal(8, cfg.SendBuffer)
	req.Equal(slog.LevelDebug, Level(cfg.LogLevel))
}

func TestLoadServer_RejectsInvalidValues(t *testing.T) {
	t.Setenv("CHAT_LOG_LEVEL", "verbose")

	_, err := LoadServer()
	require.Error(t, err)
}

func TestLoadServer_DotenvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("CHAT_USERS_FILE=/etc/chat/users.txt\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CHAT_USERS_FILE") })

	cfg, err := LoadServer(path, filepath.Join(t.TempDir(), "absent.env"))
	req.NoError(err)
	req.Equal("/etc/chat/users.txt", cfg.UsersFile)
}

func TestLoadClient(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadClient()
	req.NoError(err)
	req.Equal("localhost:8888", cfg.ServerAddr)

	cfg.ServerAddr = "no-port"
	req.Error(Validate(cfg))
}
