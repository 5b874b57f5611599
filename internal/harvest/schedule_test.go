package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/metrics"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestSchedule_ExcludesDisabled(t *testing.T) {
	m := metrics.NewStore(time.Second, nil)
	sources := []config.SourceConfig{
		{Name: "acme", Enabled: true},
		{Name: "dormant", Enabled: false},
		{Name: "zenith", Enabled: true},
	}

	order := Schedule(sources, m)
	assert.Equal(t, []string{"acme", "zenith"}, names(order))
}

func TestSchedule_OrdersByPriorityAscending(t *testing.T) {
	m := metrics.NewStore(time.Second, nil)

	// reliable scores low (scrape first), flaky scores high.
	for i := 0; i < 10; i++ {
		m.RecordSuccess("reliable", time.Second, 1)
		m.RecordFailure("flaky", "FetchError")
	}

	sources := []config.SourceConfig{
		{Name: "flaky", Enabled: true},
		{Name: "fresh", Enabled: true},
		{Name: "reliable", Enabled: true},
	}

	order := Schedule(sources, m)
	assert.Equal(t, []string{"reliable", "fresh", "flaky"}, names(order))
}

func TestSchedule_StableOnTies(t *testing.T) {
	m := metrics.NewStore(time.Second, nil)

	// No history: every source scores the default, declaration order holds.
	sources := []config.SourceConfig{
		{Name: "charlie", Enabled: true},
		{Name: "alpha", Enabled: true},
		{Name: "bravo", Enabled: true},
	}

	order := Schedule(sources, m)
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names(order))
}

func names(sources []config.SourceConfig) []string {
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		out = append(out, src.Name)
	}
	return out
}
