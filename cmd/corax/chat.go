package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"corax/internal/agent"
	"corax/internal/agent/ports"
)

var (
	promptColor   = color.New(color.FgGreen, color.Bold)
	thoughtColor  = color.New(color.FgHiBlack, color.Italic)
	stageColor    = color.New(color.FgMagenta)
	toolColor     = color.New(color.FgYellow)
	errColor      = color.New(color.FgRed)
	answerPrinter = color.New(color.FgWhite)
)

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	rt, err := buildRuntime(opts)
	if err != nil {
		return err
	}

	rl, err := readline.New(promptColor.Sprint("you> "))
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("corax %s, session %s. Type /help for commands.\n", version, rt.Session())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case input == "/exit" || input == "/quit":
			return nil
		case input == "/reset":
			rt.Reset()
			fmt.Println("session state cleared")
			continue
		case input == "/help":
			fmt.Println("/reset  clear cached tools and processor state")
			fmt.Println("/exit   leave the session")
			continue
		}

		if err := runTurn(ctx, rt, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			errColor.Fprintf(os.Stderr, "turn failed: %v\n", err)
		}
	}
}

// runTurn streams one Process call to the terminal.
func runTurn(parent context.Context, rt *agent.Runtime, input string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	events, err := rt.Process(ctx, input)
	if err != nil {
		return err
	}

	inAnswer := false
	for ev := range events {
		switch ev.Type {
		case ports.EventProgress:
			if ev.Stage == ports.StageThinking {
				thoughtColor.Print(ev.Message)
			} else {
				stageColor.Printf("[%s] %s\n", ev.Stage, ev.Message)
			}
		case ports.EventToolCall:
			args, _ := json.Marshal(ev.ToolArgs)
			toolColor.Printf("\n-> %s(%s)\n", ev.ToolName, args)
		case ports.EventObservation:
			if ev.Err != "" {
				errColor.Printf("<- error: %s\n", ev.Err)
			} else {
				toolColor.Printf("<- %s\n", truncate(ev.Content, 200))
			}
		case ports.EventTextDelta:
			if !inAnswer {
				fmt.Println()
				inAnswer = true
			}
			answerPrinter.Print(ev.TextDelta)
		case ports.EventError:
			errColor.Printf("\n! %s\n", ev.Err)
		case ports.EventDone:
			fmt.Println()
		}
	}
	return ctx.Err()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
