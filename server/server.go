package server

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"dlpage/config"
	"dlpage/controller"
	"dlpage/feedcache"
	"dlpage/geo"
	"dlpage/models"
	"dlpage/platform"
	"dlpage/render"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// HeaderDownloadState carries the final state of the page load
const HeaderDownloadState = "X-Download-State"

type ServerConfig struct {

	// Channels, notices and banner settings
	Config *config.TomlConfig

	// Shared feed cache, lives as long as the server
	Fetcher feedcache.Fetcher

	// Renders page templates
	Renderer *render.Renderer

	// Resolves visitor countries for the privacy banner, nil disables it
	Locator *geo.Locator

	// Time source for the release age filter, defaults to time.Now
	Now func() time.Time

	// How long JSON API responses are cached, zero disables the cache
	APICacheExpiration time.Duration
}

type handlers struct {
	config      *ServerConfig
	controllers map[string]*controller.Controller
}

// Returns a fiber.App instance serving the download page
func Server(config *ServerConfig) *fiber.App {
	h := &handlers{
		config:      config,
		controllers: make(map[string]*controller.Controller),
	}
	for _, ch := range config.Config.Channels {
		h.controllers[ch.Name] = controller.New(ch, config.Fetcher, config.Renderer, controller.WithClock(config.Now))
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Cache the JSON listings, the feeds behind them never change while we run
	if config.APICacheExpiration > 0 {
		app.Use(cache.New(cache.Config{
			Next: func(c *fiber.Ctx) bool {
				if c.Method() != fiber.MethodGet {
					return true
				}
				return !strings.HasPrefix(c.Path(), "/api/releases")
			},
			Expiration: config.APICacheExpiration,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.Request().URI().String()
			},
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/download", fiber.StatusFound)
	})
	app.Get("/download", h.downloadPage)
	app.Get("/download/:channel", h.downloadPage)
	app.Get("/api/releases/:channel", h.releases)
	app.Get("/api/checksum/:channel/:version/:group/:role", h.checksum)
	app.Get("/api/tab", h.tab)
	app.Get("/api/banner", h.banner)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	return app
}

func (h *handlers) controllerFor(c *fiber.Ctx) (*controller.Controller, bool) {
	name := c.Params("channel", h.config.Config.DefaultChannel)
	ctrl, ok := h.controllers[name]
	return ctrl, ok
}

func (h *handlers) downloadPage(c *fiber.Ctx) error {
	ctrl, ok := h.controllerFor(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Unknown release channel")
	}

	page := ctrl.Load(c.UserContext())
	pkgName := platform.SelectPackage(c.Query("tab"), c.Get(fiber.HeaderUserAgent))

	var help bytes.Buffer
	if err := h.config.Renderer.HelpLinks(&help, pkgName); err != nil {
		log.WithFields(log.Fields{
			"package": pkgName,
			"error":   err,
		}).Error("Error rendering help links")
	}

	_, show := h.visitorBanner(c)

	c.Set(HeaderDownloadState, string(page.State))
	c.Type("html", "utf-8")
	return h.config.Renderer.Page(c, render.PageView{
		Package:    pkgName,
		Body:       page.HTML,
		HelpLinks:  template.HTML(help.String()),
		ShowBanner: show,
	})
}

type releasesResponse struct {
	Channel      string                `json:"channel"`
	Releases     []models.Release      `json:"releases"`
	CloudRelease []models.CloudRelease `json:"cloud_releases"`
}

func (h *handlers) releases(c *fiber.Ctx) error {
	ctrl, ok := h.controllerFor(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Unknown release channel")
	}

	feeds, err := ctrl.LoadFeeds(c.UserContext())
	if err != nil {
		log.WithFields(log.Fields{
			"channel": c.Params("channel"),
			"error":   err,
		}).Error("Error loading feeds")
		return c.Status(fiber.StatusBadGateway).SendString("Could not load release feeds")
	}

	return c.JSON(releasesResponse{
		Channel:      c.Params("channel"),
		Releases:     feeds.Releases,
		CloudRelease: feeds.Cloud,
	})
}

func (h *handlers) checksum(c *fiber.Ctx) error {
	ctrl, ok := h.controllerFor(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("Unknown release channel")
	}

	feeds, err := ctrl.LoadFeeds(c.UserContext())
	if err != nil {
		log.WithFields(log.Fields{
			"channel": c.Params("channel"),
			"error":   err,
		}).Error("Error loading feeds")
		return c.Status(fiber.StatusBadGateway).SendString("Could not load release feeds")
	}

	version := c.Params("version")
	for _, r := range feeds.Releases {
		if r.FullVersion != version && r.Version != version {
			continue
		}
		artifact := r.Group(c.Params("group")).Role(c.Params("role"))
		if artifact == nil {
			break
		}
		c.Type("html", "utf-8")
		return h.config.Renderer.VerifyChecksum(c, *artifact)
	}

	return c.Status(fiber.StatusNotFound).SendString("Unknown artifact")
}

func (h *handlers) tab(c *fiber.Ctx) error {
	pkgName := platform.SelectPackage(c.Query("fragment"), c.Get(fiber.HeaderUserAgent))
	return c.JSON(fiber.Map{
		"package":    pkgName,
		"help_links": platform.HelpLinkFamily(pkgName),
	})
}

func (h *handlers) banner(c *fiber.Ctx) error {
	country, show := h.visitorBanner(c)
	return c.JSON(fiber.Map{
		"country": country,
		"show":    show,
	})
}

// visitorBanner resolves the caller's country. Lookup failures hide the banner.
func (h *handlers) visitorBanner(c *fiber.Ctx) (string, bool) {
	if h.config.Locator == nil {
		return "", false
	}

	ip := c.IP()
	if isLocalAddress(ip) {
		// Let the endpoint resolve our own public address
		ip = ""
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	country, err := h.config.Locator.Country(ctx, ip)
	if err != nil {
		log.WithFields(log.Fields{
			"ip":    ip,
			"error": err,
		}).Warn("Could not resolve visitor country")
		return "", false
	}
	return country, h.config.Locator.ShowBanner(country)
}

func isLocalAddress(ip string) bool {
	return ip == "" || ip == "0.0.0.0" || strings.HasPrefix(ip, "127.") || ip == "::1"
}
