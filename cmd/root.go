package cmd

import (
	"fmt"
	"net/http"

	"dlpage/config"
	"dlpage/feedcache"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "dlpage",
		Usage: "Serve the GoCD download page",
		Description: `Renders the GoCD download page from the published release feeds.

		dlpage fetches the releases and cloud image feeds of a release channel,
		keeps the releases of the last year, annotates every installer with its
		download link and renders the listing as HTML.

		Flags can generally be set via environment variables, e.g.:

		--config => DLPAGE_CONFIG=channels.toml
		--port => DLPAGE_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"DLPAGE_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			renderCmd(),
			releasesCmd(),
			tabCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// feedFlags are shared by every command that reads the release feeds
func feedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to channels configuration file, the public GoCD feeds are used when empty",
			EnvVars: []string{"DLPAGE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "channel",
			Usage:   "Release channel to show, defaults to the configured default channel",
			EnvVars: []string{"DLPAGE_CHANNEL"},
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout for feed requests, zero waits forever",
			EnvVars: []string{"DLPAGE_HTTP_TIMEOUT"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header sent with feed requests",
			EnvVars: []string{"DLPAGE_USER_AGENT"},
			Value:   "dlpage (+https://www.gocd.org/download/)",
		},
	}
}

func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	path := ctx.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func selectChannel(ctx *cli.Context, cfg *config.TomlConfig) (config.TomlChannel, error) {
	name := ctx.String("channel")
	if name == "" {
		name = cfg.DefaultChannel
	}
	ch, ok := cfg.Channel(name)
	if !ok {
		return config.TomlChannel{}, fmt.Errorf("unknown release channel %q", name)
	}
	return ch, nil
}

func newFeedCache(ctx *cli.Context) *feedcache.Cache {
	return feedcache.New(
		feedcache.WithHTTPClient(&http.Client{Timeout: ctx.Duration("http-timeout")}),
		feedcache.WithUserAgent(ctx.String("user-agent")),
	)
}
