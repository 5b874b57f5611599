// Package adapter defines the source adapter boundary: given a page budget,
// an adapter produces a bounded batch of raw listing records for one
// external catalog. Adapters are resolved from configuration once at
// startup through a constructor map; nothing is looked up dynamically at
// fetch time.
package adapter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/resilience"
)

// SourceAdapter fetches up to pages worth of listings from one source.
type SourceAdapter interface {
	Fetch(ctx context.Context, pages int) ([]model.RawItem, error)
}

// Options carries shared adapter settings from the scraper config.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// Constructor builds an adapter for one configured source.
type Constructor func(src config.SourceConfig, opts Options) (SourceAdapter, error)

// builtins maps adapter kind names (the `adapter` field in source config)
// to their constructors.
var builtins = map[string]Constructor{
	"feed": newFeedAdapter,
}

// Registry maps source names to their resolved adapters.
type Registry struct {
	adapters map[string]SourceAdapter
	order    []string // registration order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]SourceAdapter)}
}

// Register adds an adapter under a source name.
func (r *Registry) Register(source string, a SourceAdapter) {
	if _, ok := r.adapters[source]; !ok {
		r.order = append(r.order, source)
	}
	r.adapters[source] = a
}

// Resolve returns the adapter for a source. A missing entry is a
// configuration failure: terminal for the source, never retried.
func (r *Registry) Resolve(source string) (SourceAdapter, error) {
	a, ok := r.adapters[source]
	if !ok {
		return nil, resilience.NewConfigError(eris.Errorf("adapter: no adapter registered for source %q", source))
	}
	return a, nil
}

// Names returns registered source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Build resolves adapters for every enabled source. Sources whose adapter
// kind is unknown or fails to construct are logged and left unregistered;
// they surface as ConfigurationErrors when the round reaches them.
func Build(sources []config.SourceConfig, opts Options) *Registry {
	log := zap.L().With(zap.String("component", "adapter.registry"))
	reg := NewRegistry()

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		ctor, ok := builtins[src.Adapter]
		if !ok {
			log.Warn("unknown adapter kind",
				zap.String("source", src.Name),
				zap.String("adapter", src.Adapter),
			)
			continue
		}
		a, err := ctor(src, opts)
		if err != nil {
			log.Warn("adapter construction failed",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		reg.Register(src.Name, a)
	}
	return reg
}
