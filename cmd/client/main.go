package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/andy6609/chat-relay/internal/chat"
	"github.com/andy6609/chat-relay/internal/client"
	"github.com/andy6609/chat-relay/internal/config"
	"github.com/fatih/color"
)

var (
	systemColor  = color.New(color.FgYellow)
	privateColor = color.New(color.FgMagenta)
	selfColor    = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed)
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	addr := flag.String("addr", "", "server address (overrides CHAT_SERVER_ADDR)")
	flag.Parse()

	cfg, err := config.LoadClient(*envFile)
	if err == nil && *addr != "" {
		cfg.ServerAddr = *addr
		err = config.Validate(cfg)
	}
	if err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, cfg.ServerAddr, logger)
	cancel()
	if err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	in := bufio.NewScanner(os.Stdin)
	if !login(c, in) {
		return
	}

	disconnected := make(chan struct{})
	go render(c, disconnected)
	_ = c.SendCommand("list")

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		readInput(c, in)
	}()

	select {
	case <-disconnected:
		errorColor.Println("Disconnected from server.")
	case <-inputDone:
	}
}

func readInput(c *client.Client, in *bufio.Scanner) {
	for in.Scan() {
		notice, quit, err := c.HandleInput(strings.TrimSpace(in.Text()))
		switch {
		case errors.Is(err, client.ErrSelfPrivate), errors.Is(err, client.ErrEmptyMessage):
			errorColor.Println(err)
			continue
		case err != nil:
			errorColor.Println(err)
			return
		case notice != "":
			systemColor.Println(notice)
		}
		if quit {
			return
		}
	}
}

func login(c *client.Client, in *bufio.Scanner) bool {
	for {
		fmt.Print("Username: ")
		if !in.Scan() {
			return false
		}
		username := strings.TrimSpace(in.Text())
		fmt.Print("Password: ")
		if !in.Scan() {
			return false
		}
		err := c.Authenticate(username, in.Text())
		if err == nil {
			return true
		}
		errorColor.Println(err)
		if !errors.Is(err, client.ErrUserNotExist) &&
			!errors.Is(err, client.ErrPasswordIncorrect) &&
			!errors.Is(err, client.ErrAlreadyLogin) {
			return false
		}
	}
}

// render prints incoming messages and closes done once the stream ends.
func render(c *client.Client, done chan<- struct{}) {
	defer close(done)
	me := c.Username()
	for m := range c.Messages() {
		text := client.Format(m, me)
		switch v := m.(type) {
		case chat.Reply, chat.Broadcast, chat.UserList:
			systemColor.Println(text)
		case chat.UserPrivate:
			privateColor.Println(text)
		case chat.UserBroadcast:
			if v.Sender() == me {
				selfColor.Println(text)
			} else {
				fmt.Println(text)
			}
		default:
			fmt.Println(text)
		}
	}
}
