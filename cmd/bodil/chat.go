package main

import (
	"bufio"
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nyhage/bodil/internal/format"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation",
		Long: `Start an interactive conversation. Each session gets its own
conversation ID so history and compaction work per session.

Commands inside the chat:
  /ny       start a fresh conversation
  /avsluta  quit (Ctrl-D also works)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, cmd, a)
		},
	}
}

func runChat(ctx context.Context, cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	chatID := newChatID()
	fmt.Fprintln(out, "Hej! Jag är Bodil. Vad kan jag hjälpa till med?")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "du> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/avsluta":
			return nil
		case "/ny":
			chatID = newChatID()
			fmt.Fprintln(out, "Ny konversation startad.")
			continue
		}

		resp, err := a.agent.HandleMessage(ctx, chatID, line, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "fel: %v\n", err)
			continue
		}

		fmt.Fprintln(out, format.Plain(resp.Text))
		for _, img := range resp.DisplayImages {
			if img.Caption != "" {
				fmt.Fprintf(out, "  [bild] %s (%s)\n", img.Path, img.Caption)
			} else {
				fmt.Fprintf(out, "  [bild] %s\n", img.Path)
			}
		}
	}
}

func newChatID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
