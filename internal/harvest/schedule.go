package harvest

import (
	"sort"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/metrics"
)

// Schedule orders the enabled sources for a round by priority score,
// ascending: the lower the score, the sooner the source is scraped. The
// sort is stable, so sources with equal scores keep their declaration
// order. Disabled sources are excluded entirely.
func Schedule(sources []config.SourceConfig, m *metrics.Store) []config.SourceConfig {
	enabled := make([]config.SourceConfig, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return m.Priority(enabled[i].Name) < m.Priority(enabled[j].Name)
	})
	return enabled
}
