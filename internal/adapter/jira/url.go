package jira

import (
	"net/url"
	"regexp"
	"strings"
)

// pathMarkers are the URL conventions Jira has used for project links,
// tried in order. Older instances link via /browse/<KEY>, newer ones
// via /projects/<KEY>. Adding a convention means adding a marker here.
var pathMarkers = []string{"/browse/", "/projects/"}

// keyPattern matches a valid project or issue key segment.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ProjectRef is the resolved form of an operator-supplied project URL.
// It is derived fresh on every operation and never persisted.
type ProjectRef struct {
	// BaseURL is scheme://host[:port], with no path.
	BaseURL string

	// ContextPath is the path segment between the host and the
	// /browse/ or /projects/ marker. Empty or starting with "/",
	// never ending with "/".
	ContextPath string

	// Key is the project or issue key from the URL.
	Key string

	// UseTLS and VerifyPeer describe the transport mode implied by
	// the URL scheme: https means encrypted with strict peer
	// verification, http means plaintext.
	UseTLS     bool
	VerifyPeer bool
}

// ParseProjectURL resolves an operator-supplied Jira project URL into a
// ProjectRef. Both the legacy /browse/<KEY> and the current
// /projects/<KEY> conventions are accepted, with or without a context
// path between the host and the marker.
func ParseProjectURL(raw string) (ProjectRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ProjectRef{}, &MalformedURLError{URL: raw, Reason: err.Error()}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ProjectRef{}, &MalformedURLError{
			URL:    raw,
			Reason: "scheme must be http or https",
		}
	}
	if u.Host == "" {
		return ProjectRef{}, &MalformedURLError{URL: raw, Reason: "missing host"}
	}

	marker, idx := findMarker(u.Path)
	if idx < 0 {
		return ProjectRef{}, &MalformedURLError{
			URL:    raw,
			Reason: "expected a /browse/<KEY> or /projects/<KEY> path",
		}
	}

	rest := u.Path[idx+len(marker):]
	key := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		key = rest[:i]
	}
	if !keyPattern.MatchString(key) {
		return ProjectRef{}, &MalformedURLError{
			URL:    raw,
			Reason: "missing or invalid project key after " + marker,
		}
	}

	useTLS := u.Scheme == "https"

	return ProjectRef{
		BaseURL:     u.Scheme + "://" + u.Host,
		ContextPath: strings.TrimSuffix(u.Path[:idx], "/"),
		Key:         key,
		UseTLS:      useTLS,
		VerifyPeer:  useTLS,
	}, nil
}

// findMarker returns the first path marker present in path and its
// index, or -1 when none matches.
func findMarker(path string) (string, int) {
	for _, m := range pathMarkers {
		if idx := strings.Index(path, m); idx >= 0 {
			return m, idx
		}
	}
	return "", -1
}
