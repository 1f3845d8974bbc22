// Package console is the server operator's command line: list who is
// online, list every account, or shut the server down.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andy6609/chat-relay/internal/audit"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const usage = "Unknown command. Available commands: list, listall, quit"

// Operator is the slice of the server the console drives.
type Operator interface {
	OnlineUsernames() []string
	AllRegisteredUsernames() []string
	Shutdown()
}

type Console struct {
	op    Operator
	out   io.Writer
	audit audit.Sink
}

func New(op Operator, out io.Writer, sink audit.Sink) *Console {
	if sink == nil {
		sink = audit.Discard
	}
	return &Console{op: op, out: out, audit: sink}
}

// Run reads one command per line until quit, end of input, or ctx is done.
// It reports whether the operator asked to quit. The goroutine reading in
// stays blocked after ctx is done until in returns or is closed.
func (c *Console) Run(ctx context.Context, in io.Reader) bool {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			if c.Handle(line) {
				return true
			}
		}
	}
}

// Handle executes one command and reports whether it was quit.
func (c *Console) Handle(line string) bool {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return false
	case "list":
		users := c.op.OnlineUsernames()
		c.audit.Record("Online users: " + strings.Join(users, ", "))
		c.table("Online", users)
	case "listall":
		users := c.op.AllRegisteredUsernames()
		c.audit.Record("All users: " + strings.Join(users, ", "))
		c.table("Registered", users)
	case "quit":
		c.audit.Record("quit")
		c.op.Shutdown()
		return true
	default:
		fmt.Fprintln(c.out, usage)
	}
	return false
}

func (c *Console) table(title string, users []string) {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"#", title + " user"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetFooter([]string{"", fmt.Sprintf("%d total", len(users))})
	table.AppendBulk(lo.Map(users, func(u string, i int) []string {
		return []string{fmt.Sprint(i + 1), u}
	}))
	table.Render()
}
