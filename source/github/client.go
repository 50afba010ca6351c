// Package github finds OKH manifests on GitHub through the code search API
// and downloads them.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/transport"
)

// Hoster is the ledger hoster name of GitHub repositories.
const Hoster = "github.com"

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

const (
	perPage = 100
	// Code search never returns more than 1000 results.
	maxResults = 1000
)

// IsManifestFilename reports whether name is okh.<ext> or okh-<words>.<ext>.
func IsManifestFilename(name string, format manifest.Format) bool {
	if name == "okh."+string(format) {
		return true
	}
	m := suffixed.FindStringSubmatch(name)
	return m != nil && m[1] == string(format)
}

var suffixed = regexp.MustCompile(`^okh-[\p{L}\p{N}_-]+\.(\w+)$`)

// Repository is the repository a search hit belongs to.
type Repository struct {
	FullName string `json:"full_name"`
	URL      string `json:"url"`
	HTMLURL  string `json:"html_url"`
}

// Hit is one code search result.
type Hit struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	SHA        string     `json:"sha"`
	URL        string     `json:"url"`
	Repository Repository `json:"repository"`
}

// FullName identifies the manifest as "owner/repo/file".
func (h Hit) FullName() string {
	return h.Repository.FullName + "/" + h.Name
}

// File is a downloaded manifest.
type File struct {
	DownloadURL  string
	LastModified string
	Data         []byte
}

// Client talks to the GitHub REST API.
type Client struct {
	apiURL string
	http   *transport.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides DefaultAPIURL.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		c.apiURL = strings.TrimSuffix(u, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client. Authentication is carried by the transport's
// bearer token.
func NewClient(httpClient *transport.Client, opts ...Option) *Client {
	c := &Client{
		apiURL: DefaultAPIURL,
		http:   httpClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func apiHeader() http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	return h
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) (*transport.Response, error) {
	resp, err := c.http.Get(ctx, rawURL, apiHeader())
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return resp, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return resp, nil
}

type searchResponse struct {
	TotalCount int   `json:"total_count"`
	Items      []Hit `json:"items"`
}

// Search calls fn for every code search hit named like a manifest of the
// given format. A non-nil error from fn stops the search.
func (c *Client) Search(ctx context.Context, format manifest.Format, fn func(Hit) error) error {
	query := "filename:okh." + string(format)
	c.logger.Info("Searching GitHub", "query", query)

	for page := 1; page <= maxResults/perPage; page++ {
		params := url.Values{
			"q":        {query},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		var res searchResponse
		if _, err := c.getJSON(ctx, c.apiURL+"/search/code?"+params.Encode(), &res); err != nil {
			return fmt.Errorf("search page %d: %w", page, err)
		}

		for _, hit := range res.Items {
			if !IsManifestFilename(hit.Name, format) {
				continue
			}
			if err := fn(hit); err != nil {
				return err
			}
		}
		if len(res.Items) < perPage || page*perPage >= res.TotalCount {
			return nil
		}
	}
	return nil
}

type contentResponse struct {
	DownloadURL string `json:"download_url"`
}

// Download fetches the manifest of a hit.
func (c *Client) Download(ctx context.Context, hit Hit) (*File, error) {
	var content contentResponse
	contentsURL := hit.URL
	if contentsURL == "" {
		contentsURL = fmt.Sprintf("%s/repos/%s/contents/%s", c.apiURL, hit.Repository.FullName, hit.Path)
	}
	resp, err := c.getJSON(ctx, contentsURL, &content)
	if err != nil {
		return nil, err
	}
	if content.DownloadURL == "" {
		return nil, fmt.Errorf("no download url for %s", hit.FullName())
	}

	raw, err := c.http.Get(ctx, content.DownloadURL, nil)
	if err != nil {
		return nil, err
	}
	if !raw.OK() {
		return nil, fmt.Errorf("download %s: status %d", content.DownloadURL, raw.StatusCode)
	}
	return &File{
		DownloadURL:  content.DownloadURL,
		LastModified: resp.Header.Get("Last-Modified"),
		Data:         raw.Body,
	}, nil
}

type commit struct {
	SHA string `json:"sha"`
}

// LatestCommit returns the SHA of the newest commit of repoName ("owner/repo").
func (c *Client) LatestCommit(ctx context.Context, repoName string) (string, error) {
	var commits []commit
	if _, err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/commits?per_page=1", c.apiURL, repoName), &commits); err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits in %s", repoName)
	}
	return commits[0].SHA, nil
}
