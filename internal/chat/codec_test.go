package chat

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_PreservesKindFields(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name  string
		msg   Message
		check func(Message)
	}{
		{"request", NewRequest("alice", "list"), func(m Message) {
			req.Equal("alice", m.(Request).Username())
		}},
		{"broadcast", NewBroadcast("bob has joined the chat.", BroadcastJoined, "bob"), func(m Message) {
			b := m.(Broadcast)
			req.Equal(BroadcastJoined, b.Type())
			req.Equal("bob", b.Username())
		}},
		{"user list", NewUserList([]string{"alice", "bob"}), func(m Message) {
			req.Equal([]string{"alice", "bob"}, m.(UserList).Users())
		}},
		{"private", NewUserPrivate("bob", true, "alice", "secret"), func(m Message) {
			p := m.(UserPrivate)
			req.Equal("bob", p.Sender())
			req.Equal("alice", p.Receiver())
			req.True(p.Anonymous())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.msg)
			req.NoError(err)
			req.True(strings.HasSuffix(string(b), "\n"))

			got, err := Decode(b)
			req.NoError(err)
			req.Equal(tt.msg.Kind(), got.Kind())
			req.Equal(tt.msg.Content(), got.Content())
			req.True(tt.msg.Timestamp().Equal(got.Timestamp()))
			tt.check(got)
		})
	}
}

func TestDecode_RejectsGarbageAndUnknownKinds(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte("hello"))
	req.ErrorIs(err, ErrProtocolViolation)

	_, err = Decode([]byte(`{"kind":"emote","content":"waves"}`))
	req.ErrorIs(err, ErrProtocolViolation)
	req.ErrorIs(err, ErrUnknownKind)
}

func TestUserList_IsImmutable(t *testing.T) {
	users := []string{"alice"}
	m := NewUserList(users)
	users[0] = "mallory"
	m.Users()[0] = "mallory"

	require.Equal(t, []string{"alice"}, m.Users())
}

func TestReader_LinesAndFrames(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(NewReply("ok"))
	req.NoError(err)
	r := NewReader(strings.NewReader("alice\r\nsecret\n\n" + string(frame) + "tail"))

	line, err := r.ReadLine()
	req.NoError(err)
	req.Equal("alice", line)
	line, err = r.ReadLine()
	req.NoError(err)
	req.Equal("secret", line)

	m, err := r.ReadMessage()
	req.NoError(err)
	req.Equal(KindReply, m.Kind())

	line, err = r.ReadLine()
	req.NoError(err)
	req.Equal("tail", line)

	_, err = r.ReadLine()
	req.ErrorIs(err, io.EOF)
}
