// Package geo looks up the visitor's country to decide whether the privacy
// banner is shown.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint  = "https://ipinfo.io"
	DefaultCacheSize = 4096
	defaultTimeout   = 3 * time.Second
)

var ErrEmptyCountry = errors.New("geo: empty country code")

// HTTPClient is the part of *http.Client the locator needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Locator
type Option func(*Locator)

// WithEndpoint sets the lookup endpoint
func WithEndpoint(endpoint string) Option {
	return func(l *Locator) {
		if endpoint != "" {
			l.endpoint = strings.TrimSuffix(endpoint, "/")
		}
	}
}

// WithHTTPClient sets the client used for lookups
func WithHTTPClient(client HTTPClient) Option {
	return func(l *Locator) {
		if client != nil {
			l.client = client
		}
	}
}

// WithTimeout bounds every lookup
func WithTimeout(timeout time.Duration) Option {
	return func(l *Locator) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithCacheSize bounds how many addresses are remembered. The least recently
// used address is evicted first.
func WithCacheSize(size int) Option {
	return func(l *Locator) {
		if size > 0 {
			l.cacheSize = size
		}
	}
}

// WithCountries sets the countries in which the banner is shown
func WithCountries(countries []string) Option {
	return func(l *Locator) {
		if len(countries) > 0 {
			l.countries = lo.Map(countries, func(c string, _ int) string {
				return strings.ToUpper(strings.TrimSpace(c))
			})
		}
	}
}

// Locator resolves ISO-3166 country codes and caches them per address
type Locator struct {
	endpoint  string
	client    HTTPClient
	timeout   time.Duration
	countries []string
	cacheSize int

	cache *lru.Cache[string, string]
}

// NewLocator creates a Locator
func NewLocator(opts ...Option) *Locator {
	l := &Locator{
		endpoint:  DefaultEndpoint,
		client:    http.DefaultClient,
		timeout:   defaultTimeout,
		countries: BannerCountries,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	// size is always positive, so New cannot fail
	l.cache, _ = lru.New[string, string](l.cacheSize)
	return l
}

// BannerCountries are the countries in which the privacy banner is shown by
// default
var BannerCountries = []string{
	"AT", "BE", "BG", "CY", "CZ", "DK", "EE", "FI", "FR", "DE",
	"GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL", "PL",
	"PT", "RO", "SK", "SI", "ES", "SE", "GB", "US",
}

// ShowBanner reports whether the banner is shown for a country code
func (l *Locator) ShowBanner(country string) bool {
	return lo.Contains(l.countries, strings.ToUpper(country))
}

// Country returns the country of ip, or of the caller of the endpoint when
// ip is empty. Successful lookups are cached.
func (l *Locator) Country(ctx context.Context, ip string) (string, error) {
	if code, ok := l.cache.Get(ip); ok {
		return code, nil
	}

	code, err := l.lookup(ctx, ip)
	if err != nil {
		return "", err
	}

	l.cache.Add(ip, code)

	log.WithFields(log.Fields{
		"ip":      ip,
		"country": code,
	}).Debug("Resolved visitor country")
	return code, nil
}

func (l *Locator) lookup(ctx context.Context, ip string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	endpoint := l.endpoint + "/json"
	if ip != "" {
		endpoint = l.endpoint + "/" + ip + "/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("geo: read body: %w", err)
	}

	return parseCountry(data)
}

func parseCountry(data []byte) (string, error) {
	var payload struct {
		Country string `json:"country"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("geo: decode response: %w", err)
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Country))
	if code == "" {
		return "", ErrEmptyCountry
	}
	return code, nil
}
