package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dlpage/config"
	"dlpage/feedcache"
	"dlpage/geo"
	"dlpage/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) (json.RawMessage, error) {
	payload, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", feedcache.ErrFetch, url)
	}
	return json.RawMessage(payload), nil
}

func testConfig() *config.TomlConfig {
	cfg := config.Default()
	cfg.Channels = []config.TomlChannel{
		{
			Name:            "stable",
			DownloadInfoURL: "http://feeds.test/releases.json",
			DownloadPrefix:  "http://feeds.test/binaries/",
			CloudInfoURL:    "http://feeds.test/cloud.json",
			DisplayVersion:  "go_version",
		},
		{
			Name:            "broken",
			DownloadInfoURL: "http://feeds.test/missing.json",
			DownloadPrefix:  "http://feeds.test/binaries/",
			CloudInfoURL:    "http://feeds.test/cloud.json",
			DisplayVersion:  "go_full_version",
		},
	}
	return cfg
}

func testFetcher() mapFetcher {
	released := now.Add(-48 * time.Hour).Unix()
	return mapFetcher{
		"http://feeds.test/releases.json": fmt.Sprintf(`[
			{"go_version":"19.5.0","go_full_version":"19.5.0-9876","release_time":%d,
			 "win":{"server":{"file":"win/go-server-19.5.0-9876.exe","sha256sum":"feedface"}}},
			{"go_version":"19.4.0","go_full_version":"19.4.0-9000","release_time":%d}
		]`, released, released),
		"http://feeds.test/cloud.json": fmt.Sprintf(`[{"go_version":"19.5.0","release_time":%d}]`, released),
	}
}

func newTestApp(t *testing.T, locator *geo.Locator) *ServerConfig {
	t.Helper()
	cfg := testConfig()
	r, err := render.New(render.WithNotices(cfg.Notices))
	require.NoError(t, err)
	return &ServerConfig{
		Config:   cfg,
		Fetcher:  testFetcher(),
		Renderer: r,
		Locator:  locator,
		Now:      func() time.Time { return now },
	}
}

func get(t *testing.T, sc *ServerConfig, target string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	app := Server(sc)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestDownloadPage(t *testing.T) {
	sc := newTestApp(t, nil)

	resp, body := get(t, sc, "/download?tab=osx", map[string]string{"User-Agent": "Windows NT"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rendered", resp.Header.Get(HeaderDownloadState))
	assert.Contains(t, body, `value="osx" checked`)
	assert.Contains(t, body, "http://feeds.test/binaries/19.5.0-9876/win/go-server-19.5.0-9876.exe")
	assert.Contains(t, body, "Older releases")
	assert.Contains(t, body, "install/server/osx.html")
}

func TestDownloadPageFailure(t *testing.T) {
	sc := newTestApp(t, nil)

	resp, body := get(t, sc, "/download/broken", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", resp.Header.Get(HeaderDownloadState))
	assert.Contains(t, body, `class="not-loaded"`)
	assert.NotContains(t, body, "go-server-19.5.0")
}

func TestUnknownChannel(t *testing.T) {
	sc := newTestApp(t, nil)

	resp, _ := get(t, sc, "/download/nightly", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, sc, "/api/releases/nightly", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReleasesAPI(t *testing.T) {
	sc := newTestApp(t, nil)

	resp, body := get(t, sc, "/api/releases/stable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out releasesResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Releases, 2)
	assert.Equal(t, "19.5.0-9876", out.Releases[0].FullVersion)
	assert.Equal(t, "Windows-Server_19.5.0-9876", out.Releases[0].Windows.Server.AnalyticsID)
	assert.Len(t, out.CloudRelease, 1)

	resp, _ = get(t, sc, "/api/releases/broken", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestChecksumAPI(t *testing.T) {
	sc := newTestApp(t, nil)

	resp, body := get(t, sc, "/api/checksum/stable/19.5.0-9876/win/server", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Verify go-server-19.5.0-9876.exe")
	assert.Contains(t, body, "feedface")

	resp, _ = get(t, sc, "/api/checksum/stable/19.5.0/osx/agent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTabAPI(t *testing.T) {
	sc := newTestApp(t, nil)

	_, body := get(t, sc, "/api/tab", map[string]string{"User-Agent": "Mozilla/5.0 (X11; Ubuntu; Linux x86_64)"})
	assert.JSONEq(t, `{"package":"debian","help_links":"linux"}`, body)

	_, body = get(t, sc, "/api/tab?fragment=%23docker", map[string]string{"User-Agent": "Windows"})
	assert.JSONEq(t, `{"package":"docker","help_links":""}`, body)
}

func TestBannerAPI(t *testing.T) {
	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"country":"FR"}`))
	}))
	defer geoServer.Close()

	locator := geo.NewLocator(geo.WithEndpoint(geoServer.URL), geo.WithHTTPClient(geoServer.Client()))
	sc := newTestApp(t, locator)

	_, body := get(t, sc, "/api/banner", nil)
	assert.JSONEq(t, `{"country":"FR","show":true}`, body)

	_, page := get(t, sc, "/download", nil)
	assert.Contains(t, page, "show-banner")
}

func TestBannerDisabled(t *testing.T) {
	sc := newTestApp(t, nil)

	_, body := get(t, sc, "/api/banner", nil)
	assert.JSONEq(t, `{"country":"","show":false}`, body)
}

func TestMetrics(t *testing.T) {
	sc := newTestApp(t, nil)

	get(t, sc, "/download", nil)
	resp, body := get(t, sc, "/metrics", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "dlpage_page_loads_total")
}
