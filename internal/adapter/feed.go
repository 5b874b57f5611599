package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sparehub/harvester/internal/config"
	"github.com/sparehub/harvester/internal/model"
	"github.com/sparehub/harvester/internal/resilience"
)

// FeedAdapter pulls paginated JSON listing feeds over HTTP. Each page is a
// JSON array of raw items; an empty page ends the fetch early. Requests are
// paced through a rate limiter so a large page budget stays polite.
type FeedAdapter struct {
	source    string
	url       string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

func newFeedAdapter(src config.SourceConfig, opts Options) (SourceAdapter, error) {
	if src.URL == "" {
		return nil, eris.Errorf("adapter: source %q has no feed url", src.Name)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FeedAdapter{
		source:    src.Name,
		url:       src.URL,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(2, 1),
	}, nil
}

// Fetch retrieves up to pages pages of listings.
func (f *FeedAdapter) Fetch(ctx context.Context, pages int) ([]model.RawItem, error) {
	if pages < 1 {
		pages = 1
	}

	var items []model.RawItem
	for page := 1; page <= pages; page++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "adapter: rate limiter wait")
		}

		batch, err := f.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		items = append(items, batch...)
	}

	zap.L().Debug("feed fetch complete",
		zap.String("source", f.source),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (f *FeedAdapter) fetchPage(ctx context.Context, page int) ([]model.RawItem, error) {
	url := fmt.Sprintf("%s?page=%d", f.url, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: build request for %s", f.source)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		// Client errors here are network-level; classification happens in
		// resilience.IsTransient via the error chain.
		return nil, eris.Wrapf(err, "adapter: fetch %s page %d", f.source, page)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		err := eris.Errorf("adapter: %s page %d returned status %d", f.source, page, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var batch []model.RawItem
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, eris.Wrapf(err, "adapter: decode %s page %d", f.source, page)
	}
	return batch, nil
}
