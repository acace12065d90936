// Command holdem-client is an interactive terminal client for a holdemd
// server. It joins rooms, plays hands and chats from one command line.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

var CLI struct {
	Server   string `help:"Server URL" short:"s" default:"ws://localhost:8080/ws"`
	Nickname string `help:"Nickname to play under" short:"n"`
	LogFile  string `help:"Append client debug logs to this file"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("holdem-client"),
		kong.Description("Terminal client for the holdemd dealer."),
	)

	nickname := strings.TrimSpace(CLI.Nickname)
	if nickname == "" {
		fmt.Print("Enter a nickname: ")
		var input string
		_, _ = fmt.Scanln(&input)
		nickname = strings.TrimSpace(input)
		if nickname == "" {
			fmt.Println("A nickname is required.")
			kctx.Exit(1)
		}
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	logger := log.New(io.Discard)
	if CLI.LogFile != "" {
		f, err := os.OpenFile(CLI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Printf("Failed to open log file: %v\n", err)
			kctx.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logger = log.New(f)
		logger.SetLevel(log.DebugLevel)
	}

	sess := newSession(CLI.Server, logger)
	if err := sess.connect(); err != nil {
		fmt.Printf("Failed to connect to %s: %v\n", CLI.Server, err)
		kctx.Exit(1)
	}
	defer sess.close()

	st := newStyles(termenv.HasDarkBackground())
	program := tea.NewProgram(newModel(sess, nickname, st, logger), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running client: %v\n", err)
		kctx.Exit(1)
	}
}
