package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// frame is the JSON line shape of every Message on the wire.
type frame struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Username  string    `json:"username,omitempty"`
	Type      string    `json:"type,omitempty"`
	Users     []string  `json:"users,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Anonymous bool      `json:"anonymous,omitempty"`
	Receiver  string    `json:"receiver,omitempty"`
}

// toFrame is itself a Visitor so the encoder stays exhaustive.
type toFrame struct{ f frame }

func (t *toFrame) base(m Message) {
	t.f = frame{Kind: m.Kind(), Timestamp: m.Timestamp(), Content: m.Content()}
}

func (t *toFrame) VisitRequest(m Request) error {
	t.base(m)
	t.f.Username = m.username
	return nil
}

func (t *toFrame) VisitReply(m Reply) error {
	t.base(m)
	return nil
}

func (t *toFrame) VisitBroadcast(m Broadcast) error {
	t.base(m)
	t.f.Type, t.f.Username = m.typ, m.username
	return nil
}

func (t *toFrame) VisitUserList(m UserList) error {
	t.base(m)
	t.f.Users = m.Users()
	if t.f.Users == nil {
		t.f.Users = []string{}
	}
	return nil
}

func (t *toFrame) VisitUserBroadcast(m UserBroadcast) error {
	t.base(m)
	t.f.Sender, t.f.Anonymous = m.sender, m.anonymous
	return nil
}

func (t *toFrame) VisitUserPrivate(m UserPrivate) error {
	t.base(m)
	t.f.Sender, t.f.Anonymous, t.f.Receiver = m.sender, m.anonymous, m.receiver
	return nil
}

// Encode renders m as one newline-terminated JSON line.
func Encode(m Message) ([]byte, error) {
	var t toFrame
	if err := m.Accept(&t); err != nil {
		return nil, err
	}
	b, err := json.Marshal(t.f)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return append(b, '\n'), nil
}

// Decode parses one JSON line. Malformed input and unknown kinds wrap
// ErrProtocolViolation.
func Decode(line []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	h := header{content: f.Content, timestamp: f.Timestamp}
	switch f.Kind {
	case KindRequest:
		return Request{header: h, username: f.Username}, nil
	case KindReply:
		return Reply{header: h}, nil
	case KindBroadcast:
		return Broadcast{header: h, typ: f.Type, username: f.Username}, nil
	case KindUserList:
		return UserList{header: h, users: f.Users}, nil
	case KindUserBroadcast:
		return UserBroadcast{header: h, sender: f.Sender, anonymous: f.Anonymous}, nil
	case KindUserPrivate:
		return UserPrivate{header: h, sender: f.Sender, anonymous: f.Anonymous, receiver: f.Receiver}, nil
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrProtocolViolation, ErrUnknownKind, f.Kind)
	}
}

// Reader reads handshake lines and message frames from one stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadLine returns the next line without its terminator. A final line with
// no newline is returned before io.EOF.
func (r *Reader) ReadLine() (string, error) {
	line, err := r.r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}

// ReadMessage skips blank lines and decodes the next frame.
func (r *Reader) ReadMessage() (Message, error) {
	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return Decode([]byte(line))
	}
}
