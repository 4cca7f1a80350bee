// Package platform picks the installer tab a visitor sees first.
package platform

import (
	"strings"

	"github.com/samber/lo"
)

const DefaultPackage = "zip"

// Packages are the installer tabs of the download page
var Packages = []string{"zip", "windows", "osx", "debian", "redhat", "ami", "docker"}

// userAgentRules are applied in order, a later match overrides an earlier one
var userAgentRules = []struct {
	token   string
	pkgName string
}{
	{"Win", "windows"},
	{"Mac", "osx"},
	{"Debian", "debian"},
	{"Ubuntu", "debian"},
	{"RedHat", "redhat"},
	{"CentOS", "redhat"},
}

var helpLinkFamilies = map[string]string{
	"debian":  "linux",
	"redhat":  "linux",
	"windows": "windows",
	"zip":     "zip",
	"osx":     "osx",
}

// IsPackage reports whether name is one of the installer tabs
func IsPackage(name string) bool {
	return lo.Contains(Packages, name)
}

// SelectPackage returns the tab named by the URL fragment when it is valid,
// otherwise the tab guessed from the user agent.
func SelectPackage(fragment, userAgent string) string {
	if name := strings.TrimPrefix(fragment, "#"); name != "" && IsPackage(name) {
		return name
	}
	return PackageForUserAgent(userAgent)
}

// PackageForUserAgent guesses the installer tab from a browser user agent
func PackageForUserAgent(userAgent string) string {
	pkgName := DefaultPackage
	for _, rule := range userAgentRules {
		if strings.Contains(userAgent, rule.token) {
			pkgName = rule.pkgName
		}
	}
	return pkgName
}

// HelpLinkFamily returns which set of help links applies to a tab. Tabs
// without help links return an empty string.
func HelpLinkFamily(pkgName string) string {
	return helpLinkFamilies[pkgName]
}
