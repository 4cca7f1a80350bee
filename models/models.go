package models

// Artifact is a single downloadable installer file
type Artifact struct {
	File      string `json:"file"`
	Md5sum    string `json:"md5sum,omitempty"`
	Sha1sum   string `json:"sha1sum,omitempty"`
	Sha256sum string `json:"sha256sum,omitempty"`

	// Derived by annotation
	URL         string `json:"url,omitempty"`
	Filename    string `json:"filename,omitempty"`
	AnalyticsID string `json:"analytics_id,omitempty"`
}

// InstallerGroup holds the artifacts of one platform family, keyed by role
type InstallerGroup struct {
	Server      *Artifact `json:"server,omitempty"`
	Agent       *Artifact `json:"agent,omitempty"`
	Server32bit *Artifact `json:"server32bit,omitempty"`
	Agent32bit  *Artifact `json:"agent32bit,omitempty"`

	// Static notice text added before rendering
	Info string `json:"info,omitempty"`
}

// Release is a record from the releases feed
type Release struct {
	Version        string `json:"go_version"`
	FullVersion    string `json:"go_full_version"`
	DisplayVersion string `json:"display_version,omitempty"`
	ReleaseTime    int64  `json:"release_time"`

	Windows *InstallerGroup `json:"win,omitempty"`
	Mac     *InstallerGroup `json:"osx,omitempty"`
	Debian  *InstallerGroup `json:"deb,omitempty"`
	Redhat  *InstallerGroup `json:"rpm,omitempty"`
	Generic *InstallerGroup `json:"generic,omitempty"`
}

// RegionImage is a machine image id published in a cloud region
type RegionImage struct {
	Region string `json:"region"`
	AmiID  string `json:"ami_id"`
}

// CloudRelease is a record from the cloud image feed
type CloudRelease struct {
	Version     string        `json:"go_version"`
	FullVersion string        `json:"go_full_version,omitempty"`
	ReleaseTime int64         `json:"release_time"`
	Regions     []RegionImage `json:"regions,omitempty"`
}

// Versioned is implemented by every record that can be ordered by version
// and filtered by age.
type Versioned interface {
	VersionField(field string) string
	ReleasedAt() int64
}

const (
	FieldVersion     = "go_version"
	FieldFullVersion = "go_full_version"
)

func (r Release) VersionField(field string) string {
	switch field {
	case FieldVersion:
		return r.Version
	case FieldFullVersion:
		return r.FullVersion
	case "display_version":
		return r.DisplayVersion
	}
	return ""
}

func (r Release) ReleasedAt() int64 { return r.ReleaseTime }

func (c CloudRelease) VersionField(field string) string {
	switch field {
	case FieldVersion:
		return c.Version
	case FieldFullVersion:
		return c.FullVersion
	}
	return ""
}

func (c CloudRelease) ReleasedAt() int64 { return c.ReleaseTime }

// Group returns the named installer group, or nil
func (r Release) Group(name string) *InstallerGroup {
	switch name {
	case "win":
		return r.Windows
	case "osx":
		return r.Mac
	case "deb":
		return r.Debian
	case "rpm":
		return r.Redhat
	case "generic":
		return r.Generic
	}
	return nil
}

// Role returns the artifact for a role name, or nil
func (g *InstallerGroup) Role(name string) *Artifact {
	if g == nil {
		return nil
	}
	switch name {
	case "server":
		return g.Server
	case "agent":
		return g.Agent
	case "server32bit":
		return g.Server32bit
	case "agent32bit":
		return g.Agent32bit
	}
	return nil
}

// Clone returns a deep copy of the group
func (g *InstallerGroup) Clone() *InstallerGroup {
	if g == nil {
		return nil
	}
	c := *g
	c.Server = g.Server.clone()
	c.Agent = g.Agent.clone()
	c.Server32bit = g.Server32bit.clone()
	c.Agent32bit = g.Agent32bit.clone()
	return &c
}

func (a *Artifact) clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Clone returns a deep copy of the release
func (r Release) Clone() Release {
	r.Windows = r.Windows.Clone()
	r.Mac = r.Mac.Clone()
	r.Debian = r.Debian.Clone()
	r.Redhat = r.Redhat.Clone()
	r.Generic = r.Generic.Clone()
	return r
}

// WithGroup returns a copy of the release with the named group replaced
func (r Release) WithGroup(name string, g *InstallerGroup) Release {
	switch name {
	case "win":
		r.Windows = g
	case "osx":
		r.Mac = g
	case "deb":
		r.Debian = g
	case "rpm":
		r.Redhat = g
	case "generic":
		r.Generic = g
	}
	return r
}

// Clone returns a deep copy of the cloud release
func (c CloudRelease) Clone() CloudRelease {
	if c.Regions != nil {
		c.Regions = append([]RegionImage(nil), c.Regions...)
	}
	return c
}
