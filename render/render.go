// Package render shapes transformed release data into view models and
// renders them with the embedded page templates.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"reflect"

	"dlpage/models"
	"dlpage/platform"

	"github.com/samber/lo"
)

//go:embed templates/*.html
var templates embed.FS

// ErrTemplateNotFound is returned when a named template does not exist
var ErrTemplateNotFound = errors.New("template not found")

// Template names
const (
	TemplateDownloads      = "downloads"
	TemplateLoading        = "loading"
	TemplateFailure        = "failure"
	TemplateVerifyChecksum = "verify-checksum"
	TemplateHelpLinks      = "help-links"
	TemplatePage           = "page"
)

// Input is the transformed data of one page load
type Input struct {
	Latest      *models.Release
	Others      []models.Release
	CloudLatest *models.CloudRelease
	CloudOthers []models.CloudRelease
}

// DownloadsView is the view model of the downloads template
type DownloadsView struct {
	LatestRelease         *models.Release       `json:"latest_release"`
	AllOtherReleases      []models.Release      `json:"all_other_releases"`
	LatestVersion         string                `json:"latest_version"`
	LatestCloudRelease    *models.CloudRelease  `json:"latest_cloud_release"`
	AllOtherCloudReleases []models.CloudRelease `json:"all_other_cloud_releases"`
}

// ChecksumView is the view model of the verify-checksum template
type ChecksumView struct {
	Filename  string `json:"filename"`
	Md5sum    string `json:"md5sum"`
	Sha1sum   string `json:"sha1sum"`
	Sha256sum string `json:"sha256sum"`
}

// PageView wraps a rendered body in the page layout
type PageView struct {
	Package    string
	Packages   []string
	Body       template.HTML
	HelpLinks  template.HTML
	ShowBanner bool
}

// Option configures a Renderer
type Option func(*Renderer)

// WithNotices sets the informational text added to installer groups of the
// latest release, keyed by group name.
func WithNotices(notices map[string]string) Option {
	return func(r *Renderer) {
		r.notices = notices
	}
}

// WithIssuesURL sets the link shown in the failure message
func WithIssuesURL(url string) Option {
	return func(r *Renderer) {
		if url != "" {
			r.issuesURL = url
		}
	}
}

// Renderer executes the page templates
type Renderer struct {
	tmpl      *template.Template
	notices   map[string]string
	issuesURL string
}

// New parses the embedded templates
func New(opts ...Option) (*Renderer, error) {
	tmpl, err := template.New("dlpage").Funcs(template.FuncMap{
		"size":     size,
		"safeHTML": safeHTML,
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	r := &Renderer{
		tmpl:      tmpl,
		issuesURL: "https://github.com/gocd/www.go.cd/issues",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render executes the named template with data
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// RenderString executes the named template and returns the HTML
func (r *Renderer) RenderString(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// BuildView shapes the page input into the downloads view model. The latest
// release is copied before the notices are attached.
func (r *Renderer) BuildView(in Input) DownloadsView {
	view := DownloadsView{
		AllOtherReleases:      lo.Ternary(in.Others == nil, []models.Release{}, in.Others),
		LatestCloudRelease:    in.CloudLatest,
		AllOtherCloudReleases: lo.Ternary(in.CloudOthers == nil, []models.CloudRelease{}, in.CloudOthers),
	}
	if in.Latest != nil {
		latest := AddNotices(*in.Latest, r.notices)
		view.LatestRelease = &latest
		view.LatestVersion = latest.Version
	}
	return view
}

// AddNotices returns a copy of release whose groups carry the notice text.
// A group that is missing gets created with just the notice.
func AddNotices(release models.Release, notices map[string]string) models.Release {
	out := release.Clone()
	for name, text := range notices {
		g := out.Group(name)
		if g == nil {
			g = &models.InstallerGroup{}
		}
		g.Info = text
		out = out.WithGroup(name, g)
	}
	return out
}

// Downloads renders the release listing
func (r *Renderer) Downloads(w io.Writer, in Input) error {
	return r.Render(w, TemplateDownloads, r.BuildView(in))
}

// Loading renders the loading placeholder
func (r *Renderer) Loading(w io.Writer) error {
	return r.Render(w, TemplateLoading, nil)
}

// Failure renders the static failure message
func (r *Renderer) Failure(w io.Writer) error {
	return r.Render(w, TemplateFailure, map[string]string{"IssuesURL": r.issuesURL})
}

// VerifyChecksum renders the checksum details of one artifact
func (r *Renderer) VerifyChecksum(w io.Writer, a models.Artifact) error {
	return r.Render(w, TemplateVerifyChecksum, ChecksumView{
		Filename:  a.Filename,
		Md5sum:    a.Md5sum,
		Sha1sum:   a.Sha1sum,
		Sha256sum: a.Sha256sum,
	})
}

// HelpLinks renders the help links of an installer tab
func (r *Renderer) HelpLinks(w io.Writer, pkgName string) error {
	return r.Render(w, TemplateHelpLinks, map[string]string{"OS": platform.HelpLinkFamily(pkgName)})
}

// Page renders body inside the page layout
func (r *Renderer) Page(w io.Writer, view PageView) error {
	if view.Packages == nil {
		view.Packages = platform.Packages
	}
	return r.Render(w, TemplatePage, view)
}

func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// size compares the length of a collection, nil counts as no match
func size(collection interface{}, operator string, expected int) (bool, error) {
	v := reflect.ValueOf(collection)
	if !v.IsValid() {
		return false, nil
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
	case reflect.Ptr:
		if v.IsNil() {
			return false, nil
		}
		return false, fmt.Errorf("size: unsupported type %T", collection)
	default:
		return false, fmt.Errorf("size: unsupported type %T", collection)
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return false, nil
	}

	n := v.Len()
	switch operator {
	case "lt":
		return n < expected, nil
	case "lte":
		return n <= expected, nil
	case "eq":
		return n == expected, nil
	case "gt":
		return n > expected, nil
	case "gte":
		return n >= expected, nil
	default:
		return false, fmt.Errorf("invalid operator %s", operator)
	}
}
