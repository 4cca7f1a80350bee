package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlChannel represents a release channel configuration from TOML
type TomlChannel struct {
	Name            string `toml:"name"`
	DownloadInfoURL string `toml:"download_info_url"`
	DownloadPrefix  string `toml:"download_prefix"`
	CloudInfoURL    string `toml:"cloud_info_url"`
	// Version field shown to users, go_version or go_full_version
	DisplayVersion string `toml:"display_version"`
}

// TomlNotices holds the informational text shown above installer groups
type TomlNotices map[string]string

// TomlBanner configures the geolocation privacy banner
type TomlBanner struct {
	Endpoint  string   `toml:"endpoint"`
	Countries []string `toml:"countries"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	DefaultChannel string        `toml:"default_channel"`
	IssuesURL      string        `toml:"issues_url"`
	Channels       []TomlChannel `toml:"channels"`
	Notices        TomlNotices   `toml:"notices"`
	Banner         TomlBanner    `toml:"banner"`
}

// Channel returns the named channel
func (c *TomlConfig) Channel(name string) (TomlChannel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return TomlChannel{}, false
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	// Tables present in the file replace the defaults
	config.Channels = nil
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(config.Channels) == 0 {
		config.Channels = Default().Channels
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that every channel is usable
func (c *TomlConfig) Validate() error {
	seen := map[string]bool{}
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel without a name")
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel %q", ch.Name)
		}
		seen[ch.Name] = true
		if ch.DownloadInfoURL == "" || ch.CloudInfoURL == "" {
			return fmt.Errorf("channel %q needs download_info_url and cloud_info_url", ch.Name)
		}
		switch ch.DisplayVersion {
		case "go_version", "go_full_version":
		default:
			return fmt.Errorf("channel %q has unknown display_version %q", ch.Name, ch.DisplayVersion)
		}
	}
	if _, ok := c.Channel(c.DefaultChannel); !ok {
		return fmt.Errorf("default channel %q is not configured", c.DefaultChannel)
	}
	return nil
}
