package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sparehub/harvester/internal/metrics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source scraping metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := metrics.NewStore(cfg.Scraper.BaseDelay(), metrics.NewFilePersister(cfg.Scraper.MetricsPath))
		if err := m.Load(); err != nil {
			return err
		}

		names := m.Names()
		if len(names) == 0 {
			fmt.Println("no source metrics recorded yet")
			return nil
		}

		snap := m.Snapshot()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tRUNS\tSUCCESS\tRATE\tAVG LATENCY\tAVG YIELD\tDELAY\tPAGES\tPRIORITY")
		for _, name := range names {
			st := snap[name]
			fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\t%.2fs\t%.0f\t%.2fs\t%d\t%.1f\n",
				name, st.Runs, st.Successes, st.SuccessRate()*100,
				mean(st.ResponseTimes), meanInts(st.ItemCounts),
				st.OptimalDelay, st.OptimalPages, m.Priority(name))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, name := range names {
			st := snap[name]
			for kind, count := range st.Errors {
				fmt.Printf("%s: %s x%d\n", name, kind, count)
			}
		}
		return nil
	},
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func meanInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	return sum / float64(len(vals))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
