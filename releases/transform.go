// Package releases filters, annotates and orders the records of the release
// and cloud image feeds. Every function here is pure: inputs are never
// modified and new values are returned.
package releases

import (
	"slices"
	"strings"
	"time"

	"dlpage/models"

	"github.com/samber/lo"
)

// MaxAge is how old a release may be and still be listed
const MaxAge = 366 * 24 * time.Hour

// artifactLabel ties a group and role to the prefix of its analytics id
type artifactLabel struct {
	Group string
	Role  string
	Label string
}

var artifactLabels = []artifactLabel{
	{Group: "win", Role: "server", Label: "Windows-Server"},
	{Group: "win", Role: "agent", Label: "Windows-Agent"},
	{Group: "win", Role: "server32bit", Label: "Windows-Server-32bit"},
	{Group: "win", Role: "agent32bit", Label: "Windows-Agent-32bit"},
	{Group: "osx", Role: "server", Label: "Mac-Server"},
	{Group: "osx", Role: "agent", Label: "Mac-Agent"},
	{Group: "deb", Role: "server", Label: "LinuxDeb-Server"},
	{Group: "deb", Role: "agent", Label: "LinuxDeb-Agent"},
	{Group: "rpm", Role: "server", Label: "LinuxRpm-Server"},
	{Group: "rpm", Role: "agent", Label: "LinuxRpm-Agent"},
	{Group: "generic", Role: "server", Label: "Package-Server"},
	{Group: "generic", Role: "agent", Label: "Package-Agent"},
}

// AnalyticsLabel returns the analytics id prefix for a group and role
func AnalyticsLabel(group, role string) (string, bool) {
	l, ok := lo.Find(artifactLabels, func(l artifactLabel) bool {
		return l.Group == group && l.Role == role
	})
	return l.Label, ok
}

// VersionSelector picks the version shown to users for a release
type VersionSelector func(models.Release) string

// SelectorFor returns a selector reading the given version field
func SelectorFor(field string) VersionSelector {
	return func(r models.Release) string {
		return r.VersionField(field)
	}
}

// Options configure the release pipeline for one release channel
type Options struct {
	DownloadPrefix string
	DisplayVersion VersionSelector
}

// Step is a single transformation of a release list
type Step func([]models.Release) []models.Release

// IsRecent reports whether a release time in seconds since the epoch lies
// within MaxAge of now.
func IsRecent(releaseTime int64, now time.Time) bool {
	return now.Sub(time.Unix(releaseTime, 0)) < MaxAge
}

// FilterRecent keeps the records released within MaxAge of now
func FilterRecent[T models.Versioned](items []T, now time.Time) []T {
	return lo.Filter(items, func(item T, _ int) bool {
		return IsRecent(item.ReleasedAt(), now)
	})
}

// SortByVersion returns a copy of items ordered newest first by field
func SortByVersion[T models.Versioned](items []T, field string) []T {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, CompareVersions[T](field))
	return sorted
}

// AnnotateDisplayVersion sets the version shown to users
func AnnotateDisplayVersion(r models.Release, selector VersionSelector) models.Release {
	r.DisplayVersion = selector(r)
	return r
}

// AnnotateArtifacts derives the download url, file name and analytics id of
// every artifact of the release. Groups and roles that are absent are skipped.
func AnnotateArtifacts(r models.Release, downloadPrefix string) models.Release {
	annotated := r.Clone()
	for _, l := range artifactLabels {
		a := annotated.Group(l.Group).Role(l.Role)
		if a == nil {
			continue
		}
		a.URL = downloadPrefix + r.FullVersion + "/" + a.File
		a.Filename = a.File[strings.LastIndex(a.File, "/")+1:]
		a.AnalyticsID = l.Label + "_" + r.FullVersion
	}
	return annotated
}

// Steps returns the ordered release pipeline for the options
func Steps(opts Options, now time.Time) []Step {
	return []Step{
		func(rs []models.Release) []models.Release {
			return lo.Map(rs, func(r models.Release, _ int) models.Release {
				return AnnotateDisplayVersion(r, opts.DisplayVersion)
			})
		},
		func(rs []models.Release) []models.Release {
			return lo.Map(rs, func(r models.Release, _ int) models.Release {
				return AnnotateArtifacts(r, opts.DownloadPrefix)
			})
		},
		func(rs []models.Release) []models.Release {
			return SortByVersion(rs, models.FieldFullVersion)
		},
		func(rs []models.Release) []models.Release {
			return FilterRecent(rs, now)
		},
	}
}

// Apply runs the steps left to right
func Apply(releases []models.Release, steps ...Step) []models.Release {
	out := slices.Clone(releases)
	for _, step := range steps {
		out = step(out)
	}
	if out == nil {
		out = []models.Release{}
	}
	return out
}

// Pipeline turns the raw releases feed into the sorted, annotated list of
// releases that may be displayed.
func Pipeline(raw []models.Release, now time.Time, opts Options) []models.Release {
	if opts.DisplayVersion == nil {
		opts.DisplayVersion = SelectorFor(models.FieldVersion)
	}
	return Apply(raw, Steps(opts, now)...)
}

// CloudPipeline orders cloud releases by their short version and drops the
// ones that are too old. Cloud records carry no artifacts to annotate.
func CloudPipeline(raw []models.CloudRelease, now time.Time) []models.CloudRelease {
	clones := lo.Map(raw, func(c models.CloudRelease, _ int) models.CloudRelease {
		return c.Clone()
	})
	out := FilterRecent(SortByVersion(clones, models.FieldVersion), now)
	if out == nil {
		out = []models.CloudRelease{}
	}
	return out
}

// Split returns the first item and the rest. The head is nil for an empty list.
func Split[T any](items []T) (*T, []T) {
	if len(items) == 0 {
		return nil, []T{}
	}
	head := items[0]
	return &head, slices.Clone(items[1:])
}
