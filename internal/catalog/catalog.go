// Package catalog bootstraps the supplier table: every configured source
// must have a durable supplier record before a round starts scraping it.
package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/store"
)

// EnsureSuppliers makes sure a supplier row exists for each configured
// source and returns a map of source name to supplier ID. Existing rows are
// reused regardless of enabled state; missing rows are created only for
// enabled sources. A creation failure is logged and the source omitted: it
// is skipped this round, not fatal to the run.
func EnsureSuppliers(ctx context.Context, st store.Store, sources []config.SourceConfig) map[string]string {
	log := zap.L().With(zap.String("component", "catalog"))
	out := make(map[string]string, len(sources))

	for _, src := range sources {
		sup, err := st.GetSupplierByName(ctx, src.Name)
		if err != nil {
			log.Error("supplier lookup failed",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		if sup != nil {
			out[src.Name] = sup.ID
			continue
		}
		if !src.Enabled {
			continue
		}

		sup, err = st.CreateSupplier(ctx, src.Name, src.Website)
		if err != nil {
			log.Error("supplier creation failed",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		log.Info("supplier created",
			zap.String("source", src.Name),
			zap.String("supplier_id", sup.ID),
		)
		out[src.Name] = sup.ID
	}

	return out
}
