package client

import (
	"strings"
)

const localUsage = "Unknown command. Available commands: list, quit, showanonymous, anonymous"

// HandleInput interprets one line typed by the user: "@@cmd" runs a
// command, "@name text" sends a private message, anything else is a
// broadcast. notice is text for the local view only.
func (c *Client) HandleInput(line string) (notice string, quit bool, err error) {
	if line == "" {
		return "", false, ErrEmptyMessage
	}
	if cmd, ok := strings.CutPrefix(line, "@@"); ok {
		return c.command(cmd)
	}
	if rest, ok := strings.CutPrefix(line, "@"); ok {
		receiver, text, found := strings.Cut(rest, " ")
		if !found {
			return "", false, ErrEmptyMessage
		}
		return "", false, c.SendPrivate(receiver, text)
	}
	return "", false, c.SendBroadcast(line)
}

func (c *Client) command(cmd string) (string, bool, error) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "list":
		return "", false, c.SendCommand("list")
	case "quit":
		return "", true, c.SendCommand("quit")
	case "showanonymous":
		return "Current chat mode: " + mode(c.Anonymous()), false, nil
	case "anonymous":
		c.mu.Lock()
		c.anonymous = !c.anonymous
		now := c.anonymous
		c.mu.Unlock()
		return "Chat mode changed to: " + mode(now), false, nil
	default:
		return localUsage, false, nil
	}
}

func mode(anonymous bool) string {
	if anonymous {
		return "Anonymous"
	}
	return "Named"
}
