package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{name: "fragment", args: []string{"--fragment", "#ami"}, expected: "ami\n"},
		{name: "user agent", args: []string{"-u", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"}, expected: "osx\n"},
		{name: "nothing", args: nil, expected: "zip\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			app := RootApp()
			app.Writer = &out

			err := app.Run(append([]string{"dlpage", "tab"}, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	app := RootApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"dlpage", "--log-level", "loud", "tab"})
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	released := time.Now().Add(-24 * time.Hour).Unix()
	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/releases.json":
			fmt.Fprintf(w, `[{"go_version":"19.5.0","go_full_version":"19.5.0-1","release_time":%d,"osx":{"server":{"file":"osx/go-server-19.5.0-1-osx.zip"}}}]`, released)
		case "/cloud.json":
			fmt.Fprintf(w, `[{"go_version":"19.5.0","release_time":%d}]`, released)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer feeds.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "channels.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
default_channel = "local"

[[channels]]
name = "local"
download_info_url = "%[1]s/releases.json"
download_prefix = "%[1]s/binaries/"
cloud_info_url = "%[1]s/cloud.json"
display_version = "go_version"

[[channels]]
name = "missing"
download_info_url = "%[1]s/nope.json"
download_prefix = "%[1]s/binaries/"
cloud_info_url = "%[1]s/cloud.json"
display_version = "go_version"
`, feeds.URL)), 0o600))

	output := filepath.Join(dir, "page.html")
	err := RootApp().Run([]string{"dlpage", "render", "--config", configPath, "--output", output, "--tab", "#osx"})
	require.NoError(t, err)

	page, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(page), feeds.URL+"/binaries/19.5.0-1/osx/go-server-19.5.0-1-osx.zip")
	assert.Contains(t, string(page), `value="osx" checked`)

	failed := filepath.Join(dir, "failed.html")
	err = RootApp().Run([]string{"dlpage", "render", "--config", configPath, "--channel", "missing", "--output", failed, "--fragment-only"})
	assert.Error(t, err)

	page, err = os.ReadFile(failed)
	require.NoError(t, err)
	assert.Contains(t, string(page), `class="not-loaded"`)
}
