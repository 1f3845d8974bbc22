package client

import (
	"fmt"
	"strings"

	"github.com/andy6609/chat-relay/internal/chat"
)

const timeLayout = "2006-01-02 15:04:05"

// Format renders m for display to the user named current.
func Format(m chat.Message, current string) string {
	f := formatter{current: current}
	_ = m.Accept(&f)
	return fmt.Sprintf("%s\n%s: %s", m.Timestamp().Format(timeLayout), f.prefix, f.body)
}

type formatter struct {
	current string
	prefix  string
	body    string
}

func (f *formatter) VisitRequest(m chat.Request) error {
	f.prefix, f.body = "[Request]", m.Content()
	return nil
}

func (f *formatter) VisitReply(m chat.Reply) error {
	f.prefix, f.body = "[System Reply]", m.Content()
	return nil
}

func (f *formatter) VisitBroadcast(m chat.Broadcast) error {
	f.prefix, f.body = "[System Broadcast]", m.Content()
	return nil
}

func (f *formatter) VisitUserList(m chat.UserList) error {
	f.prefix, f.body = "[Online Users]", strings.Join(m.Users(), ", ")
	return nil
}

func (f *formatter) VisitUserBroadcast(m chat.UserBroadcast) error {
	name := m.Sender()
	if m.Anonymous() {
		name = "Anonymous"
	}
	if m.Sender() == f.current {
		name += "(You)"
	}
	f.prefix, f.body = name, m.Content()
	return nil
}

func (f *formatter) VisitUserPrivate(m chat.UserPrivate) error {
	switch f.current {
	case m.Sender():
		anon := ""
		if m.Anonymous() {
			anon = "(Anonymous)"
		}
		f.prefix = fmt.Sprintf("(Private from you%s to %s)", anon, m.Receiver())
	case m.Receiver():
		from := m.Sender()
		if m.Anonymous() {
			from = "Anonymous"
		}
		f.prefix = fmt.Sprintf("(Private from %s to you)", from)
	default:
		f.prefix = fmt.Sprintf("(Private from %s to %s)", m.Sender(), m.Receiver())
	}
	f.body = m.Content()
	return nil
}
