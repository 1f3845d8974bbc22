// Package audit records human-readable operational events (logins, logouts,
// delivery errors) for the server operator. It is separate from structured
// logging: entries are plain sentences, one per line.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Sink receives event text. Record must not block the caller on failure.
type Sink interface {
	Record(text string)
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(string) {}

// FileSink appends timestamped lines to a file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileSink creates the parent directory if needed. The file itself is
// opened per record so an operator can rotate it away underneath us.
func NewFileSink(path string, logger *slog.Logger) (*FileSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	return &FileSink{path: path, logger: logger, now: time.Now}, nil
}

func (s *FileSink) Record(text string) {
	line := fmt.Sprintf("[%s] %s\n", s.now().Format(timeLayout), text)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("audit write failed", "path", s.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		s.logger.Warn("audit write failed", "path", s.path, "error", err)
	}
}

// LogSink forwards records to a structured logger at info level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(text string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(text, "source", "audit")
}

// Multi fans a record out to every sink in order.
type Multi []Sink

func (m Multi) Record(text string) {
	for _, s := range m {
		if s != nil {
			s.Record(text)
		}
	}
}
