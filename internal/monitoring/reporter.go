// Package monitoring periodically reports per-source scraping metrics from
// a supervisory goroutine. It only reads through the metrics store's
// concurrency-safe snapshot, so it never races with ingestion.
package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/metrics"
)

// Reporter logs a metrics snapshot on a fixed interval.
type Reporter struct {
	metrics  *metrics.Store
	interval time.Duration
}

// NewReporter creates a reporter over the given metrics store.
func NewReporter(m *metrics.Store, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reporter{metrics: m, interval: interval}
}

// Run starts the reporting loop. It blocks until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.reporter"))
	log.Info("starting metrics reporter", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("metrics reporter stopped")
			return
		case <-ticker.C:
			r.report(log)
		}
	}
}

func (r *Reporter) report(log *zap.Logger) {
	snap := r.metrics.Snapshot()
	if len(snap) == 0 {
		log.Debug("no source metrics yet")
		return
	}

	for _, name := range r.metrics.Names() {
		st := snap[name]
		log.Info("source metrics",
			zap.String("source", name),
			zap.Int("runs", st.Runs),
			zap.Float64("success_rate", st.SuccessRate()),
			zap.Float64("optimal_delay_secs", st.OptimalDelay),
			zap.Int("optimal_pages", st.OptimalPages),
		)
	}
}
