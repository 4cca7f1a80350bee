// Package feedcache memoizes fetched JSON feed documents by URL.
package feedcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	feedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlpage_feed_cache_hits_total",
		Help: "The total number of feed lookups answered from the cache",
	})

	feedCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlpage_feed_cache_misses_total",
		Help: "The total number of feed lookups that went to the network",
	})

	feedFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlpage_feed_fetch_errors_total",
		Help: "The total number of failed feed fetches",
	})
)

// ErrFetch wraps every failure to retrieve or decode a feed
var ErrFetch = errors.New("feed fetch failed")

// Fetcher resolves the payload of a feed URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// HTTPClient is the part of *http.Client the cache needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Cache
type Option func(*Cache)

// WithHTTPClient sets the client used for feed requests
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Cache) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithUserAgent sets the User-Agent header of feed requests
func WithUserAgent(ua string) Option {
	return func(c *Cache) {
		c.userAgent = ua
	}
}

// Cache keeps feed payloads for its own lifetime. There is no expiry and no
// invalidation; failed fetches are never stored.
type Cache struct {
	httpClient HTTPClient
	userAgent  string

	mu     sync.RWMutex
	stored map[string]json.RawMessage
	group  singleflight.Group
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		httpClient: http.DefaultClient,
		stored:     make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Fetcher = (*Cache)(nil)

// Fetch returns the payload of the feed at url. The first call performs a GET
// and expects a JSON array, either [payload, status] or a plain list. Later
// calls for the same url are answered from memory.
//
// Concurrent callers share one download. The download is detached from the
// cancellation of whichever caller started it, and each caller stops waiting
// as soon as its own ctx is done.
func (c *Cache) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	if payload, ok := c.lookup(url); ok {
		feedCacheHits.Inc()
		return payload, nil
	}

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (interface{}, error) {
		if payload, ok := c.lookup(url); ok {
			return payload, nil
		}

		feedCacheMisses.Inc()
		payload, err := c.download(flight, url)
		if err != nil {
			feedFetchErrors.Inc()
			return nil, err
		}

		c.mu.Lock()
		c.stored[url] = payload
		c.mu.Unlock()
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			log.WithFields(log.Fields{
				"url":    url,
				"shared": res.Shared,
				"error":  res.Err,
			}).Warn("Failed to fetch feed")
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

// Len returns the number of cached feeds
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stored)
}

func (c *Cache) lookup(url string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.stored[url]
	return payload, ok
}

func (c *Cache) download(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}

	log.WithFields(log.Fields{
		"url":   url,
		"bytes": len(body),
	}).Debug("Downloaded feed")

	return firstElement(body)
}

// firstElement unwraps the payload of a [payload, status] document. A plain
// list of records is its own payload.
func firstElement(body []byte) (json.RawMessage, error) {
	var doc []json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrFetch, err)
	}
	if len(doc) == 0 {
		return json.RawMessage("[]"), nil
	}
	if first := bytes.TrimSpace(doc[0]); len(first) > 0 && first[0] == '[' {
		return first, nil
	}
	return json.RawMessage(bytes.TrimSpace(body)), nil
}

// Decode fetches url through f and unmarshals its payload into v
func Decode(ctx context.Context, f Fetcher, url string, v interface{}) error {
	payload, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: decode payload of %s: %w", ErrFetch, url, err)
	}
	return nil
}
