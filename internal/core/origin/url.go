// Package origin contains the pure business logic for experiment repository origins:
// git URL parsing, display URLs and creation/archive guards.
package origin

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// GitURL is the parsed form of a repository URL.
type GitURL struct {
	Host  string
	Owner string
	Name  string
}

// ParseURL parses scp-style ssh (git@host:owner/name.git), ssh://, https:// and
// local/file:// repository locations.
func ParseURL(raw string) (GitURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GitURL{}, fmt.Errorf("repository url cannot be empty")
	}
	if strings.ContainsAny(raw, " \t\n") {
		return GitURL{}, fmt.Errorf("repository url %q contains whitespace", raw)
	}

	var host, repoPath string
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return GitURL{}, fmt.Errorf("could not parse repository url %q: %w", raw, err)
		}
		if u.Scheme != "file" && u.Host == "" {
			return GitURL{}, fmt.Errorf("repository url %q has no host", raw)
		}
		host, repoPath = u.Hostname(), u.Path
	case strings.HasPrefix(raw, "/"):
		repoPath = raw
	default:
		// scp-like syntax: [user@]host:owner/name
		at := strings.Index(raw, "@")
		colon := strings.Index(raw, ":")
		if colon < 0 || colon < at {
			return GitURL{}, fmt.Errorf("repository url %q is not a recognised git url", raw)
		}
		host, repoPath = raw[at+1:colon], raw[colon+1:]
	}

	repoPath = strings.Trim(repoPath, "/")
	name := strings.TrimSuffix(path.Base(repoPath), ".git")
	if name == "" || name == "." {
		return GitURL{}, fmt.Errorf("repository url %q has no repository name", raw)
	}

	owner := ""
	if dir := path.Dir(repoPath); dir != "." {
		owner = dir
	}

	return GitURL{Host: host, Owner: owner, Name: name}, nil
}

const githubSSHPrefix = "git@github.com:"

// DisplayURL rewrites github ssh remotes to their https form.
func DisplayURL(originURL string) string {
	if strings.Contains(originURL, githubSSHPrefix) {
		return strings.Replace(originURL, githubSSHPrefix, "https://github.com/", 1)
	}
	return originURL
}

// ExperimentURL builds the browsable location of an experiment inside its origin.
// For github ssh origins the local clone path prefix of location becomes /tree/<branch>;
// otherwise the location is appended to the origin url.
func ExperimentURL(originURL, originPath, location, branch string) string {
	if strings.Contains(originURL, githubSSHPrefix) {
		base := strings.TrimSuffix(DisplayURL(originURL), ".git")
		return base + strings.Replace(location, originPath, "/tree/"+branch, 1)
	}
	return originURL + location
}

// RemoteURL pins an experiment url at a commit by swapping the branch segment.
func RemoteURL(experimentURL, branch, commit string) string {
	return strings.Replace(experimentURL, "/tree/"+branch, "/tree/"+commit, 1)
}
