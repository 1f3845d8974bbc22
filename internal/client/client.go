// Package client is the user-side counterpart of the relay: it performs the
// login handshake and then exchanges messages with the server.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/andy6609/chat-relay/internal/chat"
)

var (
	ErrUserNotExist      = errors.New("user does not exist")
	ErrPasswordIncorrect = errors.New("password incorrect")
	ErrAlreadyLogin      = errors.New("user already logged in")
	ErrSelfPrivate       = errors.New("cannot send a private message to yourself")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrAlreadyAuth       = errors.New("already authenticated")
)

var replyErrors = map[string]error{
	chat.ReplyUserNotExist:      ErrUserNotExist,
	chat.ReplyPasswordIncorrect: ErrPasswordIncorrect,
	chat.ReplyAlreadyLogin:      ErrAlreadyLogin,
}

const inboxSize = 64

type Client struct {
	conn   net.Conn
	reader *chat.Reader
	logger *slog.Logger

	wmu sync.Mutex

	mu        sync.Mutex
	username  string
	anonymous bool
	authed    bool

	inbox     chan chat.Message
	closeOnce sync.Once
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string, logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn, logger), nil
}

func New(conn net.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		reader: chat.NewReader(conn),
		logger: logger,
		inbox:  make(chan chat.Message, inboxSize),
	}
}

// Authenticate sends one username/password attempt and waits for the
// verdict. A rejected attempt returns one of ErrUserNotExist,
// ErrPasswordIncorrect or ErrAlreadyLogin and may be retried.
func (c *Client) Authenticate(username, password string) error {
	c.mu.Lock()
	authed := c.authed
	c.mu.Unlock()
	if authed {
		return ErrAlreadyAuth
	}

	if err := c.write([]byte(username + "\n" + password + "\n")); err != nil {
		return err
	}

	var early []chat.Message
	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			return fmt.Errorf("read login reply: %w", err)
		}
		if m.Kind() != chat.KindReply {
			// Traffic from other users can race ahead of our verdict.
			early = append(early, m)
			continue
		}
		code := m.Content()
		if code == chat.ReplyLoginSuccess {
			break
		}
		if err, ok := replyErrors[code]; ok {
			return err
		}
		early = append(early, m)
	}

	c.mu.Lock()
	c.username = username
	c.authed = true
	c.mu.Unlock()

	go c.receive(early)
	return nil
}

// Messages delivers inbound messages after login. It is closed when the
// connection ends.
func (c *Client) Messages() <-chan chat.Message { return c.inbox }

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) Anonymous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anonymous
}

func (c *Client) SetAnonymous(anonymous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anonymous = anonymous
}

func (c *Client) SendBroadcast(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	user, anon, err := c.identity()
	if err != nil {
		return err
	}
	return c.send(chat.NewUserBroadcast(user, anon, text))
}

func (c *Client) SendPrivate(receiver, text string) error {
	if receiver == "" || text == "" {
		return ErrEmptyMessage
	}
	user, anon, err := c.identity()
	if err != nil {
		return err
	}
	if receiver == user {
		return ErrSelfPrivate
	}
	return c.send(chat.NewUserPrivate(user, anon, receiver, text))
}

// SendCommand issues a server command such as "list" or "quit".
func (c *Client) SendCommand(command string) error {
	user, _, err := c.identity()
	if err != nil {
		return err
	}
	return c.send(chat.NewRequest(user, command))
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Client) identity() (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.authed {
		return "", false, ErrNotAuthenticated
	}
	return c.username, c.anonymous, nil
}

func (c *Client) send(m chat.Message) error {
	b, err := chat.Encode(m)
	if err != nil {
		return err
	}
	return c.write(b)
}

func (c *Client) write(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (c *Client) receive(early []chat.Message) {
	defer close(c.inbox)
	for _, m := range early {
		c.inbox <- m
	}
	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			c.logger.Debug("receive loop ended", "error", err)
			return
		}
		c.inbox <- m
	}
}
