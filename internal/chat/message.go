package chat

import "time"

// Kind is the wire tag of a message.
type Kind string

const (
	KindRequest       Kind = "request"
	KindReply         Kind = "reply"
	KindBroadcast     Kind = "broadcast"
	KindUserList      Kind = "user_list"
	KindUserBroadcast Kind = "user_broadcast"
	KindUserPrivate   Kind = "user_private"
)

// Reply codes sent during the handshake.
const (
	ReplyLoginSuccess      = "LOGIN_SUCCESS"
	ReplyAlreadyLogin      = "ALREADY_LOGIN"
	ReplyUserNotExist      = "USER_NOT_EXIST"
	ReplyPasswordIncorrect = "PASSWORD_INCORRECT"
)

// System broadcast types.
const (
	BroadcastJoined = "joined"
	BroadcastLeft   = "left"
)

// Message is the closed set of frames exchanged after login. Every
// implementation lives in this package; dispatch goes through Visitor so a
// new kind breaks every handler at compile time until it is handled.
type Message interface {
	Kind() Kind
	Content() string
	Timestamp() time.Time
	Accept(v Visitor) error
}

// Visitor has one method per message kind.
type Visitor interface {
	VisitRequest(Request) error
	VisitReply(Reply) error
	VisitBroadcast(Broadcast) error
	VisitUserList(UserList) error
	VisitUserBroadcast(UserBroadcast) error
	VisitUserPrivate(UserPrivate) error
}

type header struct {
	content   string
	timestamp time.Time
}

func (h header) Content() string { return h.content }
func (h header) Timestamp() time.Time { return h.timestamp }

func stamp(content string) header {
	return header{content: content, timestamp: time.Now()}
}

// Request is a client command carrying the requester's username.
type Request struct {
	header
	username string
}

func NewRequest(username, command string) Request {
	return Request{header: stamp(command), username: username}
}

func (m Request) Kind() Kind { return KindRequest }
func (m Request) Username() string { return m.username }
func (m Request) Accept(v Visitor) error { return v.VisitRequest(m) }

// Reply is a single-recipient status string.
type Reply struct {
	header
}

func NewReply(text string) Reply { return Reply{header: stamp(text)} }

func (m Reply) Kind() Kind { return KindReply }
func (m Reply) Accept(v Visitor) error { return v.VisitReply(m) }

// Broadcast is a server-authored announcement about one user.
type Broadcast struct {
	header
	typ      string
	username string
}

func NewBroadcast(text, typ, username string) Broadcast {
	return Broadcast{header: stamp(text), typ: typ, username: username}
}

func (m Broadcast) Kind() Kind { return KindBroadcast }
func (m Broadcast) Type() string { return m.typ }
func (m Broadcast) Username() string { return m.username }
func (m Broadcast) Accept(v Visitor) error { return v.VisitBroadcast(m) }

// UserList carries the online usernames at the time it was built.
type UserList struct {
	header
	users []string
}

func NewUserList(users []string) UserList {
	return UserList{header: stamp(""), users: append([]string(nil), users...)}
}

func (m UserList) Kind() Kind { return KindUserList }

// Users returns a copy.
func (m UserList) Users() []string { return append([]string(nil), m.users...) }
func (m UserList) Accept(v Visitor) error { return v.VisitUserList(m) }

// UserBroadcast is user text addressed to everyone online.
type UserBroadcast struct {
	header
	sender    string
	anonymous bool
}

func NewUserBroadcast(sender string, anonymous bool, text string) UserBroadcast {
	return UserBroadcast{header: stamp(text), sender: sender, anonymous: anonymous}
}

func (m UserBroadcast) Kind() Kind { return KindUserBroadcast }
func (m UserBroadcast) Sender() string { return m.sender }
func (m UserBroadcast) Anonymous() bool { return m.anonymous }
func (m UserBroadcast) Accept(v Visitor) error { return v.VisitUserBroadcast(m) }

// UserPrivate is user text addressed to exactly one receiver.
type UserPrivate struct {
	header
	sender    string
	anonymous bool
	receiver  string
}

func NewUserPrivate(sender string, anonymous bool, receiver, text string) UserPrivate {
	return UserPrivate{header: stamp(text), sender: sender, anonymous: anonymous, receiver: receiver}
}

func (m UserPrivate) Kind() Kind { return KindUserPrivate }
func (m UserPrivate) Sender() string { return m.sender }
func (m UserPrivate) Anonymous() bool { return m.anonymous }
func (m UserPrivate) Receiver() string { return m.receiver }
func (m UserPrivate) Accept(v Visitor) error { return v.VisitUserPrivate(m) }
