package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"dlpage/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	stable, ok := cfg.Channel("stable")
	require.True(t, ok)
	assert.Equal(t, "go_version", stable.DisplayVersion)

	experimental, ok := cfg.Channel("experimental")
	require.True(t, ok)
	assert.Equal(t, "go_full_version", experimental.DisplayVersion)
	assert.Len(t, cfg.Banner.Countries, 28)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
default_channel = "nightly"

[[channels]]
name = "nightly"
download_info_url = "http://localhost/releases.json"
download_prefix = "http://localhost/binaries/"
cloud_info_url = "http://localhost/cloud.json"
display_version = "go_full_version"

[notices]
win = "windows note"

[banner]
countries = ["NO"]
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.DefaultChannel)
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "http://localhost/binaries/", cfg.Channels[0].DownloadPrefix)
	assert.Equal(t, []string{"NO"}, cfg.Banner.Countries)
	// values missing from the file keep their defaults
	assert.Equal(t, "https://ipinfo.io", cfg.Banner.Endpoint)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid toml", body: `default_channel = `},
		{name: "unknown default", body: `default_channel = "missing"`},
		{name: "bad display version", body: `
[[channels]]
name = "stable"
download_info_url = "a"
cloud_info_url = "b"
display_version = "nope"
`},
		{name: "duplicate channel", body: `
[[channels]]
name = "stable"
download_info_url = "a"
cloud_info_url = "b"
display_version = "go_version"

[[channels]]
name = "stable"
download_info_url = "a"
cloud_info_url = "b"
display_version = "go_version"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
