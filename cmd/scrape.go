package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/adapter"
	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/harvest"
	"github.com/sparehub/harvester/internal/metrics"
)

var (
	scrapeSources     []string
	scrapeSourcesFile string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one harvest round over the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		configured := cfg.Sources
		if scrapeSourcesFile != "" {
			configured, err = config.LoadSourcesFile(scrapeSourcesFile)
			if err != nil {
				return err
			}
		}

		sources := selectSources(configured, scrapeSources)
		if len(sources) == 0 {
			return fmt.Errorf("no sources selected")
		}

		m := metrics.NewStore(cfg.Scraper.BaseDelay(), metrics.NewFilePersister(cfg.Scraper.MetricsPath))
		reg := adapter.Build(sources, adapter.Options{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.Timeout(),
		})

		engine := harvest.NewEngine(st, m, reg, sources, cfg.Scraper)
		summary, err := engine.Run(ctx)
		if summary != nil {
			fmt.Printf("round complete: %d succeeded, %d failed, %d skipped, %d items in %s\n",
				summary.Succeeded, summary.Failed, summary.Skipped, summary.Items,
				summary.Elapsed.Round(time.Millisecond))
			for _, src := range summary.Sources {
				if src.Error != "" {
					fmt.Printf("  %-24s failed: %s\n", src.Source, src.Error)
					continue
				}
				fmt.Printf("  %-24s ok=%-5v items=%d\n", src.Source, src.OK, src.Items)
			}
		}
		if err != nil {
			zap.L().Error("round ended with error", zap.Error(err))
			return err
		}
		return nil
	},
}

// selectSources restricts the configured sources to the named subset,
// preserving declaration order. An empty subset selects everything.
func selectSources(all []config.SourceConfig, names []string) []config.SourceConfig {
	if len(names) == 0 {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []config.SourceConfig
	for _, src := range all {
		if want[src.Name] {
			out = append(out, src)
		}
	}
	return out
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "source", nil, "restrict the round to the named sources")
	scrapeCmd.Flags().StringVar(&scrapeSourcesFile, "sources-file", "", "load source declarations from a standalone yaml file")
	rootCmd.AddCommand(scrapeCmd)
}
