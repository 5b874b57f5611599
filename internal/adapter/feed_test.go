package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/resilience"
)

func feedServer(t *testing.T, pages map[int][]model.RawItem) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		items := pages[page]
		if items == nil {
			items = []model.RawItem{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFeed(t *testing.T, url string) SourceAdapter {
	t.Helper()
	a, err := newFeedAdapter(config.SourceConfig{Name: "acme", URL: url, Enabled: true}, Options{
		UserAgent: "harvester-test",
	})
	require.NoError(t, err)
	return a
}

func TestFeedAdapter_FetchesUpToBudget(t *testing.T) {
	srv := feedServer(t, map[int][]model.RawItem{
		1: {{Reference: "P-1", Name: "Bearing"}},
		2: {{Reference: "P-2", Name: "Gasket"}},
		3: {{Reference: "P-3", Name: "Seal"}},
	})

	items, err := newTestFeed(t, srv.URL).Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "P-1", items[0].Reference)
	assert.Equal(t, "P-2", items[1].Reference)
}

func TestFeedAdapter_StopsAtEmptyPage(t *testing.T) {
	srv := feedServer(t, map[int][]model.RawItem{
		1: {{Reference: "P-1", Name: "Bearing"}},
	})

	items, err := newTestFeed(t, srv.URL).Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFeedAdapter_SetsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFeed(t, srv.URL).Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "harvester-test", gotUA)
	assert.Equal(t, "application/json", gotAccept)
}

func TestFeedAdapter_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFeed(t, srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFeedAdapter_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFeed(t, srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestFeedAdapter_RequiresURL(t *testing.T) {
	_, err := newFeedAdapter(config.SourceConfig{Name: "acme"}, Options{})
	assert.Error(t, err)
}
