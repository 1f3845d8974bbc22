package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/andy6609/chat-relay/internal/audit"
	"github.com/andy6609/chat-relay/internal/credential"
	"github.com/samber/lo"
)

const acceptBackoff = 5 * time.Millisecond

type Options struct {
	Addr        string
	Credentials credential.Store
	Audit       audit.Sink
	Logger      *slog.Logger
	SendBuffer  int
}

// Server accepts connections and runs one Session per connection.
type Server struct {
	addr   string
	logger *slog.Logger
	audit  audit.Sink
	creds  credential.Store
	reg    *Registry
	buffer int

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Session
	closing  bool

	wg   sync.WaitGroup
	done chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Audit == nil {
		opts.Audit = audit.Discard
	}
	if opts.Credentials == nil {
		opts.Credentials = credential.NewMemoryStore(nil)
	}
	return &Server{
		addr:     opts.Addr,
		logger:   opts.Logger,
		audit:    opts.Audit,
		creds:    opts.Credentials,
		reg:      NewRegistry(opts.Audit, opts.Logger),
		buffer:   opts.SendBuffer,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
}

// Start binds the listening socket and begins accepting in the background.
// A bind failure is returned to the caller, who treats it as fatal.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String())
	s.audit.Record("Server started on " + ln.Addr().String())
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Registry() *Registry { return s.reg }

func (s *Server) OnlineUsernames() []string { return s.reg.OnlineUsernames() }

func (s *Server) AllRegisteredUsernames() []string { return s.creds.Usernames() }

// Done is closed once Shutdown has finished.
func (s *Server) Done() <-chan struct{} { return s.done }

// Shutdown stops accepting, closes every tracked session without departure
// broadcasts, and clears the registry. Later calls wait for the first.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closing = true
	ln := s.listener
	sessions := lo.Values(s.sessions)
	s.mu.Unlock()

	s.logger.Info("shutting down", "sessions", len(sessions))

	if ln != nil {
		_ = ln.Close()
	}
	for _, sess := range sessions {
		sess.Close(true)
	}
	s.reg.Clear()
	s.wg.Wait()

	s.audit.Record("Server stopped")
	s.logger.Info("shutdown complete")
	close(s.done)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.isClosing() {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}

		sess := NewSession(conn, SessionDeps{
			Registry:    s.reg,
			Credentials: s.creds,
			Audit:       s.audit,
			Logger:      s.logger,
			SendBuffer:  s.buffer,
		})
		if !s.track(sess) {
			sess.Close(true)
			return
		}

		go func() {
			defer s.wg.Done()
			defer s.untrack(sess)
			sess.Run()
		}()
	}
}

func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess.ID()] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
