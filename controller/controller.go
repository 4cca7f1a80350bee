// Package controller loads both feeds of a release channel and renders the
// download listing, or the failure message when a feed cannot be loaded.
package controller

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"time"

	"dlpage/config"
	"dlpage/feedcache"
	"dlpage/models"
	"dlpage/releases"
	"dlpage/render"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	pageLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlpage_page_loads_total",
		Help: "The total number of download listings built, by channel and final state",
	}, []string{"channel", "state"})

	pageLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dlpage_page_load_duration_seconds",
		Help:    "Time taken to load feeds and render the download listing",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

const fallbackFailure template.HTML = `<p class="not-loaded">Sorry. Something went wrong and we could not list the download links.</p>`

// State is the stage a page load is in
type State string

const (
	StateLoading  State = "loading"
	StateRendered State = "rendered"
	StateFailed   State = "failed"
)

// Page is the outcome of one load
type Page struct {
	ID      string
	Channel string
	State   State
	HTML    template.HTML
	// Data is set when the listing was rendered
	Data *render.DownloadsView
	Err  error
}

// Controller orchestrates one release channel
type Controller struct {
	channel  config.TomlChannel
	fetcher  feedcache.Fetcher
	renderer *render.Renderer
	now      func() time.Time

	// OnStateChange is called on every transition, starting with Loading
	OnStateChange func(Page)
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the time source used for the age filter
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStateListener registers a callback for state transitions
func WithStateListener(fn func(Page)) Option {
	return func(c *Controller) {
		c.OnStateChange = fn
	}
}

// New creates a controller for a channel. The fetcher is normally a
// *feedcache.Cache shared for the lifetime of the process.
func New(channel config.TomlChannel, fetcher feedcache.Fetcher, renderer *render.Renderer, opts ...Option) *Controller {
	c := &Controller{
		channel:  channel,
		fetcher:  fetcher,
		renderer: renderer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feeds holds the transformed content of both feeds
type Feeds struct {
	Releases []models.Release
	Cloud    []models.CloudRelease
}

// LoadFeeds requests both feeds concurrently and transforms them. The first
// failure cancels the other request and is returned.
func (c *Controller) LoadFeeds(ctx context.Context) (*Feeds, error) {
	var (
		rawReleases []models.Release
		rawCloud    []models.CloudRelease
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feedcache.Decode(gctx, c.fetcher, c.channel.DownloadInfoURL, &rawReleases)
	})
	g.Go(func() error {
		return feedcache.Decode(gctx, c.fetcher, c.channel.CloudInfoURL, &rawCloud)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.now()
	return &Feeds{
		Releases: releases.Pipeline(rawReleases, now, releases.Options{
			DownloadPrefix: c.channel.DownloadPrefix,
			DisplayVersion: releases.SelectorFor(c.channel.DisplayVersion),
		}),
		Cloud: releases.CloudPipeline(rawCloud, now),
	}, nil
}

// Load runs a full page load: Loading, then Rendered or Failed. Feed
// failures never produce a partial listing.
func (c *Controller) Load(ctx context.Context) Page {
	start := time.Now()
	page := Page{
		ID:      uuid.New().String(),
		Channel: c.channel.Name,
		State:   StateLoading,
	}

	logger := log.WithFields(log.Fields{
		"load":    page.ID,
		"channel": page.Channel,
	})

	loading, err := c.render(c.renderer.Loading)
	if err != nil {
		return c.finish(page, start, logger, err)
	}
	page.HTML = loading
	c.notify(page)

	feeds, err := c.LoadFeeds(ctx)
	if err != nil {
		return c.finish(page, start, logger, err)
	}

	latest, others := releases.Split(feeds.Releases)
	cloudLatest, cloudOthers := releases.Split(feeds.Cloud)
	in := render.Input{
		Latest:      latest,
		Others:      others,
		CloudLatest: cloudLatest,
		CloudOthers: cloudOthers,
	}

	view := c.renderer.BuildView(in)
	html, err := c.render(func(w io.Writer) error {
		return c.renderer.Render(w, render.TemplateDownloads, view)
	})
	if err != nil {
		return c.finish(page, start, logger, err)
	}

	page.State = StateRendered
	page.HTML = html
	page.Data = &view
	return c.finish(page, start, logger, nil)
}

func (c *Controller) render(fn func(w io.Writer) error) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (c *Controller) finish(page Page, start time.Time, logger *log.Entry, err error) Page {
	if err != nil {
		page.State = StateFailed
		page.Err = err
		page.Data = nil
		page.HTML = c.failureHTML(logger)

		if errors.Is(err, render.ErrTemplateNotFound) {
			logger.WithField("error", err).Error("Could not render download links")
		} else {
			logger.WithField("error", err).Error("Could not list the download links")
		}
	} else {
		logger.WithFields(log.Fields{
			"latency": time.Since(start),
		}).Info("Rendered download links")
	}

	pageLoads.WithLabelValues(page.Channel, string(page.State)).Inc()
	pageLoadDuration.Observe(time.Since(start).Seconds())
	c.notify(page)
	return page
}

func (c *Controller) failureHTML(logger *log.Entry) template.HTML {
	html, err := c.render(c.renderer.Failure)
	if err != nil {
		logger.WithField("error", err).Error("Could not render failure message")
		return fallbackFailure
	}
	return html
}

func (c *Controller) notify(page Page) {
	if c.OnStateChange != nil {
		c.OnStateChange(page)
	}
}
