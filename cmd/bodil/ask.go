package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nyhage/bodil/internal/format"
)

func newAskCmd() *cobra.Command {
	var images []string
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "One-shot question",
		Long: `Ask a single question and print the answer. History is still
persisted under a fresh conversation ID, so a follow-up chat session
does not see it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			resp, err := a.agent.HandleMessage(ctx, newChatID(), strings.Join(args, " "), images)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asHTML {
				html, err := format.HTML(resp.Text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, html)
			} else {
				fmt.Fprintln(out, format.Plain(resp.Text))
			}
			for _, img := range resp.DisplayImages {
				fmt.Fprintf(out, "  [bild] %s\n", img.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&images, "image", nil, "attach an image file (repeatable)")
	cmd.Flags().BoolVar(&asHTML, "html", false, "render the answer as HTML")
	return cmd
}
