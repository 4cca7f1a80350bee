package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dlpage/geo"
	"dlpage/render"
	"dlpage/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the download page",
		Description: `Starts the download page HTTP server.

Feeds are fetched on the first page load of each channel and kept in memory
for as long as the server runs. The server also answers the installer tab,
checksum and privacy banner lookups the page needs, and exposes Prometheus
metrics on /metrics.`,
		Flags: append(feedFlags(),
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname to listen on",
				EnvVars: []string{"DLPAGE_HOSTNAME"},
				Value:   "",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"DLPAGE_PORT"},
				Value:   3000,
			},
			&cli.BoolFlag{
				Name:    "banner",
				Usage:   "Look up visitor countries to decide on the privacy banner",
				EnvVars: []string{"DLPAGE_BANNER"},
				Value:   true,
			},
			&cli.IntFlag{
				Name:    "banner-cache-size",
				Usage:   "How many visitor addresses to remember country lookups for",
				EnvVars: []string{"DLPAGE_BANNER_CACHE_SIZE"},
				Value:   geo.DefaultCacheSize,
			},
			&cli.DurationFlag{
				Name:    "api-cache",
				Usage:   "How long JSON API responses are cached",
				EnvVars: []string{"DLPAGE_API_CACHE"},
				Value:   time.Minute,
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			ch, err := selectChannel(ctx, cfg)
			if err != nil {
				return err
			}
			cfg.DefaultChannel = ch.Name

			renderer, err := render.New(
				render.WithNotices(cfg.Notices),
				render.WithIssuesURL(cfg.IssuesURL),
			)
			if err != nil {
				return err
			}

			var locator *geo.Locator
			if ctx.Bool("banner") {
				locator = geo.NewLocator(
					geo.WithEndpoint(cfg.Banner.Endpoint),
					geo.WithCountries(cfg.Banner.Countries),
					geo.WithCacheSize(ctx.Int("banner-cache-size")),
				)
			}

			app := server.Server(&server.ServerConfig{
				Config:             cfg,
				Fetcher:            newFeedCache(ctx),
				Renderer:           renderer,
				Locator:            locator,
				APICacheExpiration: ctx.Duration("api-cache"),
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.Errorf("Failed to shut down server: %v", err)
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("hostname"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"addr":     addr,
				"channels": len(cfg.Channels),
			}).Info("Starting server")

			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			log.Info("Done!")
			return nil
		},
	}
}
