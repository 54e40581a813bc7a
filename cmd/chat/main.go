// Command chat is an interactive terminal client for a chatstream server. It
// binds a conversation driver to stdin/stdout: deltas are printed as they
// arrive, Ctrl+C stops the current generation, and /regenerate and /clear map
// to the driver operations of the same name.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/modkit/chatstream/internal/conversation"
	"github.com/modkit/chatstream/internal/models"
)

func main() {
	endpoint := os.Getenv("CHATSTREAM_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:8987/api/chat"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	transport := conversation.NewHTTPTransport(endpoint, logger)

	// printed tracks how much of the in-flight assistant message is already on
	// screen, so each update only prints the newly arrived tail.
	printed := 0
	var driver *conversation.Driver
	driver = conversation.NewDriver(transport, logger,
		conversation.WithSystemPrompt(os.Getenv("CHATSTREAM_SYSTEM_PROMPT")),
		conversation.WithOnUpdate(func() {
			msgs := driver.Messages()
			if len(msgs) == 0 {
				printed = 0
				return
			}
			last := msgs[len(msgs)-1]
			if last.Role != models.RoleAssistant {
				printed = 0
				return
			}
			if len(last.Content) < printed {
				printed = 0
			}
			fmt.Print(last.Content[printed:])
			printed = len(last.Content)
		}),
	)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		for range interrupts {
			driver.StopGeneration()
		}
	}()

	fmt.Println("chatstream client, endpoint " + endpoint)
	fmt.Println("commands: /regenerate, /clear, /quit; Ctrl+C stops generation")

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		printed = 0
		switch strings.TrimSpace(scanner.Text()) {
		case "/quit":
			return
		case "/clear":
			driver.ClearConversation()
			fmt.Println("conversation cleared")
		case "/regenerate":
			driver.RegenerateLastResponse(context.Background())
			fmt.Println()
		default:
			driver.SendMessage(context.Background(), scanner.Text())
			fmt.Println()
		}

		if errMsg := driver.Err(); errMsg != "" {
			fmt.Fprintln(os.Stderr, "error: "+errMsg)
			driver.ClearError()
		}
		fmt.Print("> ")
	}
}
