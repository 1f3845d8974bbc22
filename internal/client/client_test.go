package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andy6609/chat-relay/internal/chat"
	"github.com/andy6609/chat-relay/internal/credential"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	srv := chat.NewServer(chat.Options{
		Addr: "127.0.0.1:0",
		Credentials: credential.NewMemoryStore(map[string]string{
			"alice": "wonderland",
			"bob":   "builder",
		}),
	})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv.Addr().String()
}

func connect(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, c *Client, desc string, pred func(chat.Message) bool) chat.Message {
	t.Helper()
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case m, ok := <-c.Messages():
			if !ok {
				t.Fatalf("inbox closed waiting for %s", desc)
			}
			if pred(m) {
				return m
			}
		case <-deadline.C:
			t.Fatalf("timeout waiting for %s", desc)
		}
	}
}

func TestAuthenticate_Outcomes(t *testing.T) {
	req := require.New(t)
	addr := startServer(t)
	alice := connect(t, addr)

	req.ErrorIs(alice.SendBroadcast("too early"), ErrNotAuthenticated)
	req.ErrorIs(alice.Authenticate("mallory", "x"), ErrUserNotExist)
	req.ErrorIs(alice.Authenticate("alice", "rabbit"), ErrPasswordIncorrect)
	req.NoError(alice.Authenticate("alice", "wonderland"))
	req.Equal("alice", alice.Username())
	req.ErrorIs(alice.Authenticate("alice", "wonderland"), ErrAlreadyAuth)

	waitFor(t, alice, "welcome", func(m chat.Message) bool {
		return m.Kind() == chat.KindReply && m.Content() != ""
	})

	second := connect(t, addr)
	req.ErrorIs(second.Authenticate("alice", "wonderland"), ErrAlreadyLogin)
}

func TestHandleInput_RoutesLines(t *testing.T) {
	req := require.New(t)
	addr := startServer(t)
	alice := connect(t, addr)
	req.NoError(alice.Authenticate("alice", "wonderland"))
	bob := connect(t, addr)
	req.NoError(bob.Authenticate("bob", "builder"))
	waitFor(t, alice, "bob joined", func(m chat.Message) bool {
		b, ok := m.(chat.Broadcast)
		return ok && b.Username() == "bob" && b.Type() == chat.BroadcastJoined
	})

	// Private message with the anonymous flag toggled on
	notice, quit, err := bob.HandleInput("@@anonymous")
	req.NoError(err)
	req.False(quit)
	req.Equal("Chat mode changed to: Anonymous", notice)

	_, _, err = bob.HandleInput("@alice secret")
	req.NoError(err)
	got := waitFor(t, alice, "private", func(m chat.Message) bool { _, ok := m.(chat.UserPrivate); return ok })
	req.Equal("secret", got.Content())
	req.True(got.(chat.UserPrivate).Anonymous())
	req.Equal("(Private from Anonymous to you)", prefixOf(Format(got, "alice")))

	// Local rejections never reach the wire
	_, _, err = bob.HandleInput("@bob hi")
	req.ErrorIs(err, ErrSelfPrivate)
	_, _, err = bob.HandleInput("@alice")
	req.ErrorIs(err, ErrEmptyMessage)
	_, _, err = bob.HandleInput("")
	req.ErrorIs(err, ErrEmptyMessage)
	notice, _, err = bob.HandleInput("@@dance")
	req.NoError(err)
	req.Equal(localUsage, notice)

	// Broadcast and list
	_, _, err = alice.HandleInput("hello all")
	req.NoError(err)
	waitFor(t, bob, "broadcast", func(m chat.Message) bool {
		b, ok := m.(chat.UserBroadcast)
		return ok && b.Sender() == "alice" && b.Content() == "hello all"
	})

	_, _, err = alice.HandleInput("@@list")
	req.NoError(err)
	list := waitFor(t, alice, "user list", func(m chat.Message) bool { _, ok := m.(chat.UserList); return ok })
	req.ElementsMatch([]string{"alice", "bob"}, list.(chat.UserList).Users())

	// Quit ends the inbox
	_, quit, err = alice.HandleInput("@@quit")
	req.NoError(err)
	req.True(quit)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-alice.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("inbox not closed after quit")
		}
	}
}

func prefixOf(formatted string) string {
	_, rest, _ := strings.Cut(formatted, "\n")
	prefix, _, _ := strings.Cut(rest, ": ")
	return prefix
}
