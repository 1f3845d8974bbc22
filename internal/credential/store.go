// Package credential answers "does this user exist" and "is this the right
// secret" for the login handshake.
package credential

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// Store is read-only from the server's point of view.
type Store interface {
	Exists(username string) bool
	Verify(username, password string) bool
	Usernames() []string
}

var validate = validator.New()

type entry struct {
	Username string `validate:"required,max=64"`
	Secret   string `validate:"required"`
}

// MemoryStore keeps username -> secret in memory. Secrets are either bcrypt
// hashes or plaintext.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewMemoryStore(users map[string]string) *MemoryStore {
	s := &MemoryStore{users: make(map[string]string, len(users))}
	for u, p := range users {
		s.users[u] = p
	}
	return s
}

// LoadFile reads "username:secret" lines. Blank lines and lines starting with
// '#' are skipped; malformed lines are logged and skipped.
func LoadFile(path string, logger *slog.Logger) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

func Load(r io.Reader, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	users := make(map[string]string)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, secret, ok := strings.Cut(line, ":")
		e := entry{Username: strings.TrimSpace(name), Secret: strings.TrimSpace(secret)}
		if !ok {
			logger.Warn("skipping credential line", "line", lineNo, "error", "missing ':'")
			continue
		}
		if err := validate.Struct(e); err != nil {
			logger.Warn("skipping credential line", "line", lineNo, "error", err)
			continue
		}
		users[e.Username] = e.Secret
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return NewMemoryStore(users), nil
}

func (s *MemoryStore) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}

func (s *MemoryStore) Verify(username, password string) bool {
	s.mu.RLock()
	secret, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if isBcrypt(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

// Usernames returns every known username, sorted.
func (s *MemoryStore) Usernames() []string {
	s.mu.RLock()
	names := lo.Keys(s.users)
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// HashSecret produces a bcrypt hash suitable for the credential file.
func HashSecret(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func isBcrypt(secret string) bool {
	return strings.HasPrefix(secret, "$2a$") ||
		strings.HasPrefix(secret, "$2b$") ||
		strings.HasPrefix(secret, "$2y$")
}
