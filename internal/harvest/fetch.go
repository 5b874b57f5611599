package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/adapter"
	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/metrics"
	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/resilience"
)

// Fetch runs one source through the retry engine. The backoff is seeded at
// the source's tuned delay, not the static base: attempt n waits
// delay * 2^(n-1). Configuration failures (unresolvable adapter) are
// terminal immediately; everything else retries up to maxRetries extra
// attempts. Every attempt's outcome is recorded in the metrics store.
func Fetch(ctx context.Context, src config.SourceConfig, reg *adapter.Registry, m *metrics.Store, maxRetries int) ([]model.RawItem, error) {
	log := zap.L().With(
		zap.String("component", "harvest.fetch"),
		zap.String("source", src.Name),
	)

	a, err := reg.Resolve(src.Name)
	if err != nil {
		m.RecordFailure(src.Name, resilience.Kind(err))
		log.Error("adapter resolution failed", zap.Error(err))
		return nil, err
	}

	delay, pages := m.Tuning(src.Name)
	log.Debug("tuning loaded",
		zap.Duration("delay", delay),
		zap.Int("pages", pages),
	)

	for attempt := 1; ; attempt++ {
		start := time.Now()
		items, err := a.Fetch(ctx, pages)
		if err == nil {
			m.RecordSuccess(src.Name, time.Since(start), len(items))
			return items, nil
		}

		m.RecordFailure(src.Name, resilience.Kind(err))

		if resilience.IsConfig(err) {
			log.Error("configuration failure, not retrying", zap.Error(err))
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt > maxRetries {
			log.Error("retries exhausted",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return nil, err
		}

		wait := resilience.Backoff(delay, attempt)
		log.Warn("fetch failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if serr := resilience.Sleep(ctx, wait); serr != nil {
			return nil, err
		}
	}
}
