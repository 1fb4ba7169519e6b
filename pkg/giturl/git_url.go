// Package giturl parses clone URLs of mirrored repositories and gists
package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// The repository name can contain
	// ASCII letters, digits, and the characters ., -, and _.

	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://host.xz[:port]/path/to/repo.git
	// https://gist.host.xz/<id>.git
	httpsURLRgx = regexp.MustCompile(`^https://(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	localURLRgx = regexp.MustCompile(`^file:///(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	schemes = []struct {
		name string
		rgx  *regexp.Regexp
	}{
		{"scp", scpURLRgx},
		{"ssh", sshURLRgx},
		{"https", httpsURLRgx},
		{"local", localURLRgx},
	}
)

// URL represents parsed clone url
type URL struct {
	Scheme string // value will be either 'scp', 'ssh', 'https' or 'local'
	User   string // might be empty for http and local urls
	Host   string // host or host:port
	Path   string // path to the repo, empty for gists served from host root
	Repo   string // repository name from the path includes .git
}

// NormaliseURL will return normalised url
func NormaliseURL(rawURL string) string {
	nURL := strings.ToLower(strings.TrimSpace(rawURL))
	nURL = strings.TrimRight(nURL, "/")

	return nURL
}

// Parse parses a raw url into a URL structure.
// valid clone urls are...
//   - user@host.xz:path/to/repo.git
//   - ssh://user@host.xz[:port]/path/to/repo.git
//   - https://host.xz[:port]/path/to/repo.git
//   - https://gist.host.xz/<id>.git
//   - file:///path/to/repo.git
func Parse(rawURL string) (*URL, error) {
	rawURL = NormaliseURL(rawURL)

	var gURL *URL
	for _, s := range schemes {
		sections := s.rgx.FindStringSubmatch(rawURL)
		if sections == nil {
			continue
		}
		gURL = &URL{Scheme: s.name}
		if i := s.rgx.SubexpIndex("user"); i >= 0 {
			gURL.User = sections[i]
		}
		if i := s.rgx.SubexpIndex("host"); i >= 0 {
			gURL.Host = sections[i]
		}
		gURL.Path = sections[s.rgx.SubexpIndex("path")]
		gURL.Repo = sections[s.rgx.SubexpIndex("repo")]
		break
	}

	if gURL == nil {
		return nil, fmt.Errorf(
			"provided '%s' clone url is invalid, supported urls are 'user@host.xz:path/to/repo.git','ssh://user@host.xz/path/to/repo.git' or 'https://host.xz/path/to/repo.git'",
			rawURL)
	}

	// scp path doesn't have leading "/"
	// also removing training "/" for consistency
	gURL.Path = strings.Trim(gURL.Path, "/")

	// gists are served from the root of the gist host
	if gURL.Path == "" && gURL.Scheme != "https" {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if gURL.Repo == "" || gURL.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return gURL, nil
}

// Name returns repository name without the .git suffix
func (u *URL) Name() string {
	return strings.TrimSuffix(u.Repo, ".git")
}

// Equals returns whether or not the two parsed git URLs are equivalent.
// git URLs can be represented in multiple schemes so if host, path and repo name
// of URLs are same then those URLs are for the same remote repository
func (u *URL) Equals(o *URL) bool {
	return u.Host == o.Host &&
		u.Path == o.Path &&
		u.Name() == o.Name()
}

// SameRawURL returns whether or not the two clone URL strings are equivalent
func SameRawURL(lRepo, rRepo string) (bool, error) {
	lURL, err := Parse(lRepo)
	if err != nil {
		return false, err
	}
	rURL, err := Parse(rRepo)
	if err != nil {
		return false, err
	}

	return lURL.Equals(rURL), nil
}

// IsHTTPSURL returns true if supplied URL is HTTPS URL
func IsHTTPSURL(rawURL string) bool {
	return httpsURLRgx.MatchString(NormaliseURL(rawURL))
}
