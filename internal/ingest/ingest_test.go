package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) (store.Store, string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "harvester.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	sup, err := st.CreateSupplier(ctx, "acme", "https://acme.example")
	require.NoError(t, err)
	return st, sup.ID
}

func makeItems(n int) []model.RawItem {
	items := make([]model.RawItem, 0, n)
	for i := 0; i < n; i++ {
		price := 10.0 + float64(i)
		inStock := true
		items = append(items, model.RawItem{
			Reference: fmt.Sprintf("P-%03d", i),
			Name:      fmt.Sprintf("Part %d", i),
			Category:  "bearings",
			Price:     &price,
			InStock:   &inStock,
		})
	}
	return items
}

func TestIngest_CreatesNewParts(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()

	res := New(st).Ingest(ctx, makeItems(10), supID)

	assert.True(t, res.OK)
	assert.Equal(t, 10, res.Processed)
	assert.Equal(t, 10, res.Created)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Errored)

	parts, err := st.ListParts(ctx, store.PartFilter{})
	require.NoError(t, err)
	assert.Len(t, parts, 10)
}

func TestIngest_SkipsInvalidItems(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()

	items := makeItems(4)
	for i := 0; i < 6; i++ {
		items = append(items, model.RawItem{Name: fmt.Sprintf("No ref %d", i)})
	}

	res := New(st).Ingest(ctx, items, supID)

	// Invalid items are dropped, not errored: the batch still succeeds.
	assert.True(t, res.OK)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 6, res.Skipped)
	assert.Zero(t, res.Errored)

	parts, err := st.ListParts(ctx, store.PartFilter{})
	require.NoError(t, err)
	assert.Len(t, parts, 4)
}

func TestIngest_EmptyBatch(t *testing.T) {
	st, supID := newTestStore(t)

	res := New(st).Ingest(context.Background(), nil, supID)
	assert.True(t, res.OK)
	assert.Zero(t, res.Processed)
}

func TestIngest_Idempotent(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()
	p := New(st)

	items := makeItems(5)
	first := p.Ingest(ctx, items, supID)
	assert.Equal(t, 5, first.Created)

	second := p.Ingest(ctx, items, supID)
	assert.True(t, second.OK)
	assert.Zero(t, second.Created)
	assert.Equal(t, 5, second.Updated)

	parts, err := st.ListParts(ctx, store.PartFilter{})
	require.NoError(t, err)
	assert.Len(t, parts, 5)

	avail, err := st.ListAvailability(ctx, parts[0].ID)
	require.NoError(t, err)
	assert.Len(t, avail, 1, "re-ingest must not duplicate availability rows")
}

func TestIngest_UpdatePreservesCreatedAt(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()
	p := New(st)

	price := 10.0
	inStock := true
	p.Ingest(ctx, []model.RawItem{{
		Reference: "P-100", Name: "Bearing", Price: &price, InStock: &inStock,
	}}, supID)

	before, err := st.GetPartByReference(ctx, "P-100")
	require.NoError(t, err)
	require.NotNil(t, before)

	newPrice := 12.5
	res := p.Ingest(ctx, []model.RawItem{{
		Reference: "P-100", Name: "Bearing 6204", Price: &newPrice,
	}}, supID)
	require.True(t, res.OK)
	assert.Equal(t, 1, res.Updated)

	after, err := st.GetPartByReference(ctx, "P-100")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, "Bearing 6204", after.Name)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)

	avail, err := st.ListAvailability(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	require.NotNil(t, avail[0].Price)
	assert.Equal(t, 12.5, *avail[0].Price)
	// InStock was absent on the update; the previous value survives.
	assert.True(t, avail[0].InStock)
}

func TestIngest_MergeRetainsAbsentFields(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()
	p := New(st)

	price := 20.0
	inStock := false
	p.Ingest(ctx, []model.RawItem{{
		Reference: "P-200", Name: "Seal", Description: "Radial shaft seal",
		Price: &price, InStock: &inStock, URL: "https://acme.example/p200",
	}}, supID)

	// Second pass carries only the mandatory fields.
	res := p.Ingest(ctx, []model.RawItem{{Reference: "P-200", Name: "Seal"}}, supID)
	require.True(t, res.OK)

	part, err := st.GetPartByReference(ctx, "P-200")
	require.NoError(t, err)
	require.NotNil(t, part)
	assert.Equal(t, "Radial shaft seal", part.Description)

	avail, err := st.ListAvailability(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	require.NotNil(t, avail[0].Price)
	assert.Equal(t, 20.0, *avail[0].Price)
	assert.Equal(t, "https://acme.example/p200", avail[0].URL)
}

// failingStore wraps a real store to inject transaction failures.
type failingStore struct {
	store.Store
	beginErr  error
	commitErr error
	failRefs  map[string]bool
}

func (s *failingStore) Begin(ctx context.Context) (store.Batch, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	inner, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingBatch{Batch: inner, commitErr: s.commitErr, failRefs: s.failRefs}, nil
}

type failingBatch struct {
	store.Batch
	commitErr error
	failRefs  map[string]bool
}

func (b *failingBatch) InsertPart(ctx context.Context, p *model.Part) error {
	if b.failRefs[p.Reference] {
		return errors.New("injected insert failure")
	}
	return b.Batch.InsertPart(ctx, p)
}

func (b *failingBatch) Commit(ctx context.Context) error {
	if b.commitErr != nil {
		b.Batch.Rollback(ctx)
		return b.commitErr
	}
	return b.Batch.Commit(ctx)
}

func TestIngest_CommitFailureRollsBackEverything(t *testing.T) {
	st, supID := newTestStore(t)
	ctx := context.Background()

	failing := &failingStore{Store: st, commitErr: errors.New("commit refused")}
	res := New(failing).Ingest(ctx, makeItems(10), supID)

	assert.False(t, res.OK)
	assert.Zero(t, res.Processed)
	assert.Equal(t, 10, res.Errored)

	parts, err := st.ListParts(ctx, store.PartFilter{})
	require.NoError(t, err)
	assert.Empty(t, parts, "a failed commit must leave no partial state")
}

func TestIngest_BeginFailure(t *testing.T) {
	st, supID := newTestStore(t)

	failing := &failingStore{Store: st, beginErr: errors.New("pool exhausted")}
	res := New(failing).Ingest(context.Background(), makeItems(3), supID)

	assert.False(t, res.OK)
	assert.Equal(t, 3, res.Errored)
}

func TestIngest_ErrorThreshold(t *testing.T) {
	t.Run("minority of errors keeps the batch ok", func(t *testing.T) {
		st, supID := newTestStore(t)
		failing := &failingStore{Store: st, failRefs: map[string]bool{
			"P-000": true, "P-001": true, "P-002": true, "P-003": true,
		}}

		res := New(failing).Ingest(context.Background(), makeItems(10), supID)
		assert.True(t, res.OK)
		assert.Equal(t, 6, res.Processed)
		assert.Equal(t, 4, res.Errored)
	})

	t.Run("half or more errors fails the batch", func(t *testing.T) {
		st, supID := newTestStore(t)
		failing := &failingStore{Store: st, failRefs: map[string]bool{
			"P-000": true, "P-001": true, "P-002": true, "P-003": true, "P-004": true,
		}}

		res := New(failing).Ingest(context.Background(), makeItems(10), supID)
		assert.False(t, res.OK)
		assert.Equal(t, 5, res.Processed)
		assert.Equal(t, 5, res.Errored)
	})
}
