// Package harvest is the scraping orchestrator: it schedules enabled
// sources by observed priority, fetches each one through the retry engine,
// hands batches to the ingestion pipeline, and paces between sources so
// external sites never see request bursts. Sources are processed strictly
// sequentially within a round; the pacing and backoff exist to throttle
// load, and concurrency would defeat them.
package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/adapter"
	"github.com/sparehub/harvester/internal/catalog"
	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/ingest"
	"github.com/sparehub/harvester/internal/metrics"
	"github.com/sparehub/harvester/internal/resilience"
	"github.com/sparehub/harvester/internal/store"
)

// ErrRoundInProgress is returned when Run is called while another round is
// still executing. Rounds never overlap.
var ErrRoundInProgress = eris.New("harvest: round already in progress")

// pacingJitter spreads inter-source sleeps over [0.8, 1.2] of the tuned
// delay to avoid synchronized bursts across runs.
const pacingJitter = 0.2

// SourceOutcome records how one source fared during a round.
type SourceOutcome struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Items  int    `json:"items"`
	Error  string `json:"error,omitempty"`
}

// RoundSummary aggregates one complete round. It is always produced, even
// when every source fails.
type RoundSummary struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Items     int             `json:"items"`
	Elapsed   time.Duration   `json:"elapsed"`
	Sources   []SourceOutcome `json:"sources"`
}

// Engine coordinates harvest rounds.
type Engine struct {
	store    store.Store
	metrics  *metrics.Store
	registry *adapter.Registry
	pipeline *ingest.Pipeline
	sources  []config.SourceConfig
	scraper  config.ScraperConfig

	mu sync.Mutex // single-flight guard: one round at a time
}

// NewEngine creates a harvest engine.
func NewEngine(st store.Store, m *metrics.Store, reg *adapter.Registry, sources []config.SourceConfig, scraper config.ScraperConfig) *Engine {
	return &Engine{
		store:    st,
		metrics:  m,
		registry: reg,
		pipeline: ingest.New(st),
		sources:  sources,
		scraper:  scraper,
	}
}

// Run executes one complete round: registry bootstrap, scheduling, then
// fetch, ingest and pacing per source. Per-source failures are absorbed
// into the summary; only an empty supplier registry aborts the round.
// Cancellation aborts any in-flight sleep and unwinds cleanly, leaving the
// store in the last-committed-batch state.
func (e *Engine) Run(ctx context.Context) (*RoundSummary, error) {
	if !e.mu.TryLock() {
		return nil, ErrRoundInProgress
	}
	defer e.mu.Unlock()

	log := zap.L().With(zap.String("component", "harvest.engine"))
	start := time.Now()

	// Registering
	suppliers := catalog.EnsureSuppliers(ctx, e.store, e.sources)
	if len(suppliers) == 0 {
		return nil, eris.New("harvest: no suppliers available, aborting round")
	}

	// Scheduling
	if err := e.metrics.Load(); err != nil {
		log.Warn("metrics load failed, starting from in-memory state", zap.Error(err))
	}
	order := Schedule(e.sources, e.metrics)
	log.Info("round scheduled", zap.Int("sources", len(order)))

	summary := &RoundSummary{}
	for _, src := range order {
		if ctx.Err() != nil {
			summary.Elapsed = time.Since(start)
			return summary, ctx.Err()
		}

		supplierID, ok := suppliers[src.Name]
		if !ok {
			log.Warn("no supplier record, skipping source", zap.String("source", src.Name))
			summary.Skipped++
			continue
		}

		// Fetching
		items, err := Fetch(ctx, src, e.registry, e.metrics, e.scraper.MaxRetries)
		if err != nil {
			summary.Failed++
			summary.Sources = append(summary.Sources, SourceOutcome{
				Source: src.Name,
				Error:  err.Error(),
			})
			if ctx.Err() != nil {
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			}
			continue
		}

		// Ingesting
		res := e.pipeline.Ingest(ctx, items, supplierID)
		if res.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Items += res.Processed
		summary.Sources = append(summary.Sources, SourceOutcome{
			Source: src.Name,
			OK:     res.OK,
			Items:  res.Processed,
		})

		// Pacing
		delay, _ := e.metrics.Tuning(src.Name)
		if err := resilience.Sleep(ctx, resilience.Jitter(delay, pacingJitter)); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info("round complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("items", summary.Items),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}
