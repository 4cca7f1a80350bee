package config

// Default returns the settings of the public GoCD download page
func Default() *TomlConfig {
	return &TomlConfig{
		DefaultChannel: "stable",
		IssuesURL:      "https://github.com/gocd/www.go.cd/issues",
		Channels: []TomlChannel{
			{
				Name:            "stable",
				DownloadInfoURL: "https://download.gocd.org/releases.json",
				DownloadPrefix:  "https://download.gocd.org/binaries/",
				CloudInfoURL:    "https://download.gocd.org/cloud.json",
				DisplayVersion:  "go_version",
			},
			{
				Name:            "experimental",
				DownloadInfoURL: "https://download.gocd.org/experimental/releases.json",
				DownloadPrefix:  "https://download.gocd.org/experimental/binaries/",
				CloudInfoURL:    "https://download.gocd.org/cloud.json",
				DisplayVersion:  "go_full_version",
			},
		},
		Notices: TomlNotices{
			"win": "GoCD server and agent installers for Windows are packaged with 64 bit JRE. Starting with GoCD release v18.12.0, GoCD server and agent windows installers will not be shipped with 32 bit JRE.",
			"deb": `Note: If you prefer to use the APT repository to install, please follow these <a href="https://docs.gocd.org/current/installation/install/server/linux.html#debian-based-distributions-ie-ubuntu">instructions</a>.`,
			"rpm": `Note: If you prefer to use the YUM repository to install, please follow these <a href="https://docs.gocd.org/current/installation/install/server/linux.html#rpm-based-distributions-ie-redhatcentosfedora">instructions</a>.`,
		},
		Banner: TomlBanner{
			Endpoint: "https://ipinfo.io",
			Countries: []string{
				"AT", "BE", "BG", "CY", "CZ", "DK", "EE", "FI", "FR", "DE",
				"GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL", "PL",
				"PT", "RO", "SK", "SI", "ES", "SE", "GB", "US",
			},
		},
	}
}
