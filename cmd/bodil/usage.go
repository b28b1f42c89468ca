package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyhage/bodil/internal/usage"
)

func newUsageCmd() *cobra.Command {
	var days int
	var byChat bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Cost report",
		Long:  "Print token usage and cost in SEK for the last N days.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// The usage command only reads the usage database, so it
			// works without an API key.
			us, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
			if err != nil {
				return err
			}
			defer us.Close()

			return printUsage(cmd, us, days, byChat)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "report window in days")
	cmd.Flags().BoolVar(&byChat, "by-chat", false, "break down by conversation instead of model")
	return cmd
}

func printUsage(cmd *cobra.Command, us *usage.Store, days int, byChat bool) error {
	end := time.Now().Add(time.Hour)
	start := time.Now().AddDate(0, 0, -days)

	total, err := us.Summary(start, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Senaste %d dagarna:\n", days)
	fmt.Fprintf(out, "  Anrop:        %d\n", total.TotalRecords)
	fmt.Fprintf(out, "  Input tokens: %d (cache: %d skrivna, %d lästa)\n",
		total.TotalInputTokens, total.TotalCacheWrite, total.TotalCacheRead)
	fmt.Fprintf(out, "  Output tokens: %d\n", total.TotalOutputTokens)
	fmt.Fprintf(out, "  Verktygsanrop: %d\n", total.TotalToolCalls)
	fmt.Fprintf(out, "  Kostnad:      %.2f kr\n", total.TotalCostSEK)

	var grouped map[string]*usage.Summary
	var label string
	if byChat {
		grouped, err = us.SummaryByChat(start, end)
		label = "Konversation"
	} else {
		grouped, err = us.SummaryByModel(start, end)
		label = "Modell"
	}
	if err != nil {
		return err
	}
	if len(grouped) == 0 {
		return nil
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return grouped[keys[i]].TotalCostSEK > grouped[keys[j]].TotalCostSEK
	})

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tAnrop\tInput\tOutput\tKostnad\n", label)
	for _, k := range keys {
		g := grouped[k]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f kr\n",
			k, g.TotalRecords, g.TotalInputTokens, g.TotalOutputTokens, g.TotalCostSEK)
	}
	return w.Flush()
}
