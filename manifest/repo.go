package manifest

import (
	"net/url"
	"strings"
)

// GitHubHost is the host of repositories whose files can be pinned to a commit.
const GitHubHost = "github.com"

// RepoName returns "<owner>/<project>" when the repo URL path has exactly two
// segments.
func RepoName(repo string) (string, bool) {
	u, err := url.Parse(repo)
	if err != nil || repo == "" {
		return "", false
	}
	name := strings.Trim(u.Path, "/")
	if name == "" || len(strings.Split(name, "/")) != 2 {
		return "", false
	}
	return name, true
}

// IsGitHub reports whether the repo URL is hosted on github.com.
func IsGitHub(repo string) bool {
	u, err := url.Parse(repo)
	if err != nil {
		return false
	}
	return u.Hostname() == GitHubHost
}
