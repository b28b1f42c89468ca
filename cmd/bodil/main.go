// Bodil is a conversational assistant for running a second-hand
// business on Tradera and Blocket.
//
// It keeps a product inventory in SQLite, drives a draft-and-approve
// listing flow, and tracks what every conversation costs. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	bodil chat               Interactive conversation
//	bodil ask <question>     One-shot question
//	bodil usage              Cost report
//	bodil version            Print version and build information
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nyhage/bodil/internal/buildinfo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bodil",
		Short:         "Assistent för andrahandsförsäljning på Tradera och Blocket",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to config file")

	root.AddCommand(newChatCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newUsageCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			info := buildinfo.Info()
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", k, info[k])
			}
			return nil
		},
	}
}
