package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/andy6609/chat-relay/internal/audit"
	"github.com/andy6609/chat-relay/internal/credential"
	"github.com/google/uuid"
)

// State is the authentication state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	welcomeText     = "Authentication successful. Welcome to the chat room!"
	unknownCommand  = "Unknown command. Available commands: list, quit"
	selfPrivateText = "You cannot send a private message to yourself."

	defaultSendBuffer = 64
	flushTimeout      = time.Second
)

// SessionDeps are the collaborators shared by every session of a server.
type SessionDeps struct {
	Registry    *Registry
	Credentials credential.Store
	Audit       audit.Sink
	Logger      *slog.Logger
	SendBuffer  int
}

// Session owns one connection from accept to close.
type Session struct {
	id     string
	conn   net.Conn
	reader *Reader
	deps   SessionDeps
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	username string

	out        chan []byte
	writerDone chan struct{}
}

func NewSession(conn net.Conn, deps SessionDeps) *Session {
	if deps.Audit == nil {
		deps.Audit = audit.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry(deps.Audit, deps.Logger)
	}
	if deps.SendBuffer <= 0 {
		deps.SendBuffer = defaultSendBuffer
	}
	id := uuid.NewString()
	s := &Session{
		id:         id,
		conn:       conn,
		reader:     NewReader(conn),
		deps:       deps,
		logger:     deps.Logger.With("session", id, "addr", remoteIP(conn)),
		out:        make(chan []byte, deps.SendBuffer),
		writerDone: make(chan struct{}),
	}
	startOutboundWriter(conn, s.out, s.writerDone, func(err error) {
		s.logger.Debug("write failed", "error", err)
		_ = conn.Close()
	})
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username is empty until the handshake succeeds and again after close.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Send queues m for the writer without blocking.
func (s *Session) Send(m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	select {
	case s.out <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run performs the handshake and then the message loop until the peer goes
// away, quits, violates the protocol, or the session is closed from outside.
func (s *Session) Run() {
	defer s.Close(false)

	s.logger.Info("client connected")

	if err := s.handshake(); err != nil {
		s.report(err)
		return
	}

	d := dispatcher{s: s}
	for {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			s.report(err)
			return
		}

		start := time.Now()
		kind := string(msg.Kind())
		err = msg.Accept(d)
		MessagesTotal.WithLabelValues(kind).Inc()
		DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			s.report(err)
			return
		}
		if s.State() == StateClosed {
			return
		}
	}
}

func (s *Session) handshake() error {
	ip := remoteIP(s.conn)
	for {
		username, err := s.reader.ReadLine()
		if err != nil {
			return err
		}
		password, err := s.reader.ReadLine()
		if err != nil {
			return err
		}

		code := s.login(username, password)
		if code == "" {
			// Closed from outside while the credentials were being checked.
			return ErrSessionClosed
		}
		success := code == ReplyLoginSuccess
		s.deps.Audit.Record(fmt.Sprintf("Login %s for user %s from IP %s", outcome(success), username, ip))
		LoginAttempts.WithLabelValues(code).Inc()
		if success {
			return nil
		}
		if err := s.Send(NewReply(code)); err != nil {
			return err
		}
	}
}

// login runs the checks in order: existence, password, already online. It
// returns the reply code, or "" if the session was closed meanwhile.
func (s *Session) login(username, password string) string {
	creds := s.deps.Credentials
	reg := s.deps.Registry

	switch {
	case creds == nil || !creds.Exists(username):
		return ReplyUserNotExist
	case !creds.Verify(username, password):
		return ReplyPasswordIncorrect
	case reg.IsOnline(username):
		return ReplyAlreadyLogin
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ""
	}
	s.mu.Unlock()

	if err := reg.Register(username, s); err != nil {
		return ReplyAlreadyLogin
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		reg.DeregisterPeer(username, s)
		return ""
	}
	s.state = StateAuthenticated
	s.username = username
	s.mu.Unlock()

	s.logger.Info("login successful", "username", username)
	_ = s.Send(NewReply(ReplyLoginSuccess))
	_ = s.Send(NewReply(welcomeText))
	reg.BroadcastToAll(NewBroadcast(username+" has joined the chat.", BroadcastJoined, username))
	return ReplyLoginSuccess
}

// Close is idempotent. shutdown suppresses the departure broadcast because
// every session is closing at once.
func (s *Session) Close(shutdown bool) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	wasAuthenticated := s.state == StateAuthenticated
	username := s.username
	s.state = StateClosed
	s.username = ""
	close(s.out)
	s.mu.Unlock()

	if wasAuthenticated {
		reg := s.deps.Registry
		reg.DeregisterPeer(username, s)
		if !shutdown {
			reg.BroadcastToAll(NewBroadcast(username+" has left the chat.", BroadcastLeft, username))
		}
		s.deps.Audit.Record(fmt.Sprintf("User %s logged out", username))
		s.logger.Info("user left", "username", username, "shutdown", shutdown)
	}

	if !shutdown {
		select {
		case <-s.writerDone:
		case <-time.After(flushTimeout):
		}
	}
	_ = s.conn.Close()
}

func (s *Session) report(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, ErrSessionClosed):
		s.logger.Info("client disconnected")
	case errors.Is(err, ErrProtocolViolation):
		s.logger.Warn("protocol violation", "error", err)
		s.deps.Audit.Record("Error handling client: " + err.Error())
	default:
		if s.State() == StateClosed {
			// Read unblocked by our own close.
			s.logger.Info("client disconnected")
			return
		}
		s.logger.Error("connection failed", "error", err)
		s.deps.Audit.Record("Error handling client: " + err.Error())
	}
}

// dispatcher routes inbound messages for an authenticated session.
type dispatcher struct {
	s *Session
}

func (d dispatcher) own() string { return d.s.Username() }

func (d dispatcher) VisitUserBroadcast(m UserBroadcast) error {
	if m.Sender() != d.own() {
		return fmt.Errorf("%w: broadcast from %q on session of %q", ErrProtocolViolation, m.Sender(), d.own())
	}
	d.s.deps.Registry.BroadcastToAll(m)
	return nil
}

func (d dispatcher) VisitUserPrivate(m UserPrivate) error {
	own := d.own()
	if m.Sender() != own {
		return fmt.Errorf("%w: private message from %q on session of %q", ErrProtocolViolation, m.Sender(), own)
	}
	if m.Receiver() == own {
		return d.reply(selfPrivateText)
	}
	reg := d.s.deps.Registry
	if !reg.IsOnline(m.Receiver()) {
		return d.reply(fmt.Sprintf("User %s is not online. Please try again.", m.Receiver()))
	}
	if !reg.DeliverTo(m.Receiver(), m) {
		// Went offline between the check and the delivery.
		return d.reply(fmt.Sprintf("User %s is not online. Please try again.", m.Receiver()))
	}
	return d.send(m)
}

func (d dispatcher) VisitRequest(m Request) error {
	if m.Username() != d.own() {
		return fmt.Errorf("%w: request for %q on session of %q", ErrProtocolViolation, m.Username(), d.own())
	}
	switch strings.ToLower(strings.TrimSpace(m.Content())) {
	case "list":
		users := d.s.deps.Registry.OnlineUsernames()
		if err := d.send(NewUserList(users)); err != nil {
			return err
		}
		return d.reply("Online users: " + strings.Join(users, ", "))
	case "quit":
		d.s.logger.Info("client quit")
		d.s.Close(false)
		return nil
	default:
		return d.reply(unknownCommand)
	}
}

func (d dispatcher) VisitReply(m Reply) error { return d.unexpected(m) }

func (d dispatcher) VisitBroadcast(m Broadcast) error { return d.unexpected(m) }

func (d dispatcher) VisitUserList(m UserList) error { return d.unexpected(m) }

func (d dispatcher) unexpected(m Message) error {
	return fmt.Errorf("%w: unexpected %s from client", ErrProtocolViolation, m.Kind())
}

func (d dispatcher) reply(text string) error { return d.send(NewReply(text)) }

// send queues m back to this session. A full queue is not fatal to the
// session; a closed one ends the loop.
func (d dispatcher) send(m Message) error {
	err := d.s.Send(m)
	if errors.Is(err, ErrSendBufferFull) {
		d.s.logger.Warn("reply dropped", "kind", m.Kind(), "error", err)
		return nil
	}
	return err
}

func outcome(success bool) string {
	if success {
		return "successful"
	}
	return "failed"
}

func remoteIP(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return "Unknown"
	}
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
