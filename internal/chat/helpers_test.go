package chat

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andy6609/chat-relay/internal/credential"
	"github.com/google/uuid"
)

const waitTimeout = 2 * time.Second

type memSink struct {
	mu    sync.Mutex
	lines []string
}

func (m *memSink) Record(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, text)
}

func (m *memSink) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

type fakePeer struct {
	id   string
	mu   sync.Mutex
	msgs []Message
	err  error
}

func newFakePeer() *fakePeer { return &fakePeer{id: uuid.NewString()} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *fakePeer) received() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.msgs...)
}

func testCredentials() credential.Store {
	return credential.NewMemoryStore(map[string]string{
		"alice": "wonderland",
		"bob":   "builder",
		"carol": "singer",
	})
}

// wire is the client end of a connection under test.
type wire struct {
	t      *testing.T
	conn   net.Conn
	frames chan Message
}

func newWire(t *testing.T, conn net.Conn) *wire {
	t.Helper()
	w := &wire{t: t, conn: conn, frames: make(chan Message, 256)}
	go func() {
		defer close(w.frames)
		r := NewReader(conn)
		for {
			m, err := r.ReadMessage()
			if err != nil {
				return
			}
			w.frames <- m
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return w
}

func (w *wire) line(s string) {
	w.t.Helper()
	if _, err := fmt.Fprintf(w.conn, "%s\n", s); err != nil {
		w.t.Fatalf("write %q: %v", s, err)
	}
}

func (w *wire) send(m Message) {
	w.t.Helper()
	b, err := Encode(m)
	if err != nil {
		w.t.Fatalf("encode: %v", err)
	}
	if _, err := w.conn.Write(b); err != nil {
		w.t.Fatalf("write: %v", err)
	}
}

// waitFor returns the first frame matching pred, discarding others.
func (w *wire) waitFor(desc string, pred func(Message) bool) Message {
	w.t.Helper()
	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()
	for {
		select {
		case m, ok := <-w.frames:
			if !ok {
				w.t.Fatalf("connection closed waiting for %s", desc)
			}
			if pred(m) {
				return m
			}
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %s", desc)
		}
	}
}

func (w *wire) waitReply(text string) {
	w.t.Helper()
	w.waitFor("reply "+text, func(m Message) bool {
		r, ok := m.(Reply)
		return ok && r.Content() == text
	})
}

// waitClosed drains until the server closes the connection.
func (w *wire) waitClosed() []Message {
	w.t.Helper()
	var seen []Message
	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()
	for {
		select {
		case m, ok := <-w.frames:
			if !ok {
				return seen
			}
			seen = append(seen, m)
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for close")
		}
	}
}

func (w *wire) login(username, password string) {
	w.t.Helper()
	w.line(username)
	w.line(password)
	w.waitReply(ReplyLoginSuccess)
	w.waitReply(welcomeText)
}

func isJoined(username string) func(Message) bool {
	return func(m Message) bool {
		b, ok := m.(Broadcast)
		return ok && b.Type() == BroadcastJoined && b.Username() == username
	}
}

func waitUntil(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
