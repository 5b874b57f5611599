// Package ingest reconciles raw listing batches against the canonical
// store. Each call operates as one transaction: parts and availability rows
// are inserted or updated inside a single store.Batch, and a commit failure
// rolls the whole batch back leaving no partial state.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/store"
)

// Result summarizes one ingested batch.
//
// OK follows the original data-quality rule: a batch counts as successful
// only while fewer than half its items errored, even when the commit itself
// succeeded. A failed commit always yields OK=false with Processed reset
// to 0.
type Result struct {
	OK        bool `json:"ok"`
	Processed int  `json:"processed"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	Skipped   int  `json:"skipped"`
	Errored   int  `json:"errored"`
}

// Pipeline ingests raw item batches for one store.
type Pipeline struct {
	store store.Store
}

// New creates an ingestion pipeline over the given store.
func New(st store.Store) *Pipeline {
	return &Pipeline{store: st}
}

// Ingest reconciles a batch of raw items owned by the given supplier.
// Invalid items (missing reference or name) are skipped; per-item errors
// are counted but do not abort the batch. Only a Begin or Commit failure
// aborts and rolls back everything.
func (p *Pipeline) Ingest(ctx context.Context, items []model.RawItem, supplierID string) Result {
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("supplier_id", supplierID),
	)

	if len(items) == 0 {
		log.Debug("empty batch, nothing to ingest")
		return Result{OK: true}
	}

	batch, err := p.store.Begin(ctx)
	if err != nil {
		log.Error("begin batch failed", zap.Error(err))
		return Result{Errored: len(items)}
	}
	defer batch.Rollback(ctx)

	var res Result
	now := time.Now().UTC()

	for _, item := range items {
		if !item.Valid() {
			log.Warn("skipping item with missing reference or name",
				zap.String("reference", item.Reference),
				zap.String("name", item.Name),
			)
			res.Skipped++
			continue
		}

		created, err := p.applyItem(ctx, batch, item, supplierID, now)
		if err != nil {
			log.Error("item failed",
				zap.String("reference", item.Reference),
				zap.Error(err),
			)
			res.Errored++
			continue
		}
		res.Processed++
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	if err := batch.Commit(ctx); err != nil {
		log.Error("batch commit failed, rolling back",
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return Result{Errored: len(items)}
	}

	// Fewer than half the items may error for the batch to count as
	// successful. Skipped invalid items are dropped before this gate.
	res.OK = res.Errored*2 < len(items)

	log.Info("batch ingested",
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errored", res.Errored),
		zap.Bool("ok", res.OK),
	)
	return res
}

// applyItem upserts one part and its availability row. Returns true when a
// new part was created.
func (p *Pipeline) applyItem(ctx context.Context, batch store.Batch, item model.RawItem, supplierID string, now time.Time) (bool, error) {
	part, err := batch.GetPartByReference(ctx, item.Reference)
	if err != nil {
		return false, err
	}

	created := false
	if part == nil {
		part = &model.Part{
			Reference:   item.Reference,
			Name:        item.Name,
			Description: item.Description,
			Category:    item.Category,
			ImageURL:    item.ImageURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		// InsertPart flushes so the part ID is usable below.
		if err := batch.InsertPart(ctx, part); err != nil {
			return false, err
		}
		created = true
	} else {
		part.Name = item.Name
		if item.Description != "" {
			part.Description = item.Description
		}
		if item.Category != "" {
			part.Category = item.Category
		}
		if item.ImageURL != "" {
			part.ImageURL = item.ImageURL
		}
		part.UpdatedAt = now
		if err := batch.UpdatePart(ctx, part); err != nil {
			return false, err
		}
	}

	avail, err := batch.GetAvailability(ctx, part.ID, supplierID)
	if err != nil {
		return false, err
	}

	if avail == nil {
		avail = &model.Availability{
			PartID:      part.ID,
			SupplierID:  supplierID,
			Price:       item.Price,
			URL:         item.URL,
			LastChecked: now,
		}
		if item.InStock != nil {
			avail.InStock = *item.InStock
		}
		return created, batch.InsertAvailability(ctx, avail)
	}

	// Merge: fields absent on the incoming item retain their previous value.
	if item.Price != nil {
		avail.Price = item.Price
	}
	if item.InStock != nil {
		avail.InStock = *item.InStock
	}
	if item.URL != "" {
		avail.URL = item.URL
	}
	avail.LastChecked = now
	return created, batch.UpdateAvailability(ctx, avail)
}
