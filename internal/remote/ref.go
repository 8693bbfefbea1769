package remote

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// LatestVersion asks the server for the newest published version.
const LatestVersion = "latest"

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Ref points at one version of a service in the directory.
type Ref struct {
	UUID    string
	Version string
}

func (r Ref) String() string { return r.UUID + "@" + r.Version }

// ParseRef parses "uuid@version". A missing version means latest.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	id, version, _ := strings.Cut(s, "@")
	if id == "" || strings.ContainsAny(id, "/\\ ") {
		return Ref{}, fmt.Errorf("invalid service reference %q: want <uuid>@<version>", s)
	}
	if version == "" {
		version = LatestVersion
	}
	if !ValidVersion(version) {
		return Ref{}, fmt.Errorf("invalid version %q: want x.y.z or %q", version, LatestVersion)
	}
	return Ref{UUID: id, Version: version}, nil
}

// ValidVersion reports whether v is "latest" or a dotted x.y.z version.
func ValidVersion(v string) bool {
	return v == LatestVersion || versionPattern.MatchString(v)
}

// IsRef reports whether source names a directory service rather than a file
// or URL: it has an "@", no scheme, no path separator and no document
// extension.
func IsRef(source string) bool {
	source = strings.TrimSpace(source)
	if strings.Contains(source, "://") || strings.ContainsAny(source, "/\\") {
		return false
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json", ".yaml", ".yml":
		return false
	}
	id, _, found := strings.Cut(source, "@")
	if !found || id == "" {
		return false
	}
	return !strings.Contains(id, ".")
}
