// Package wikifactory crawls the project listing of the Wikifactory GraphQL
// API.
package wikifactory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/transport"
)

// Defaults of the public API.
const (
	DefaultURL       = "https://wikifactory.com/api/graphql"
	DefaultBatchSize = 50
	DefaultUserAgent = "oshi-krawl"
)

const projectsQuery = `
query Project($batchSize: Int, $cursor: String) {
  projects(first: $batchSize, after: $cursor) {
    result {
      pageInfo { hasNextPage startCursor endCursor }
      edges {
        node {
          id
          name
          slug
          lastActivityAt
          license { name title abreviation }
          image { permalink }
          creatorProfile { fullName username }
          space { id content { slug __typename } }
          description
          contributionUpstream {
            contribFile(filepath: "README.md") {
              dirname
              filename
              isFolder
              file { permalink }
            }
            files {
              filename
              dirname
              contribution { version }
              file { mimeType permalink }
            }
          }
        }
      }
    }
  }
}`

var (
	resultPath    = jp.MustParseString("$.data.projects.result")
	nodesPath     = jp.MustParseString("$.edges[*].node")
	hasNextPath   = jp.MustParseString("$.pageInfo.hasNextPage")
	endCursorPath = jp.MustParseString("$.pageInfo.endCursor")
)

// Client pages through the project listing.
type Client struct {
	url       string
	http      *transport.Client
	batchSize int
	maxPages  int
	from      string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides DefaultURL.
func WithURL(u string) Option {
	return func(c *Client) {
		c.url = u
	}
}

// WithBatchSize sets the projects requested per page.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithMaxPages caps the number of pages fetched. Zero means no cap.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

// WithFrom sets the From header identifying the operator.
func WithFrom(from string) Option {
	return func(c *Client) {
		c.from = from
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client.
func NewClient(httpClient *transport.Client, opts ...Option) *Client {
	c := &Client{
		url:       DefaultURL,
		http:      httpClient,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl calls fn with every project node, page by page, until the listing
// ends or the page cap is reached. It returns the number of pages fetched.
func (c *Client) Crawl(ctx context.Context, fn func(node map[string]any) error) (int, error) {
	cursor := ""
	pages := 0
	for c.maxPages <= 0 || pages < c.maxPages {
		c.logger.Debug("Fetching Wikifactory page", "page", pages, "cursor", cursor)

		result, err := c.page(ctx, cursor)
		if err != nil {
			return pages, fmt.Errorf("page %d (cursor %q): %w", pages, cursor, err)
		}
		pages++

		for _, n := range nodesPath.Get(result) {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			if err := fn(node); err != nil {
				return pages, err
			}
		}

		hasNext, _ := hasNextPath.First(result).(bool)
		next, _ := endCursorPath.First(result).(string)
		if !hasNext || next == "" {
			break
		}
		cursor = next
	}
	c.logger.Info("Wikifactory crawl finished", "pages", pages)
	return pages, nil
}

func (c *Client) page(ctx context.Context, cursor string) (any, error) {
	payload := map[string]any{
		"query": projectsQuery,
		"variables": map[string]any{
			"cursor":    cursor,
			"batchSize": c.batchSize,
		},
	}
	var header http.Header
	if c.from != "" {
		header = http.Header{"From": {c.from}}
	}

	resp, err := c.http.PostJSON(ctx, c.url, payload, header)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := oj.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	result := resultPath.First(doc)
	if _, ok := result.(map[string]any); !ok {
		return nil, fmt.Errorf("payload has no projects result")
	}
	return result, nil
}

// DecodeNode converts a raw project node into its typed form.
func DecodeNode(node map[string]any) (*manifest.WikifactoryNode, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	var n manifest.WikifactoryNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &n, nil
}

// LoadRecord reads a record.json written by the crawl.
func LoadRecord(path string) (*manifest.WikifactoryNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n manifest.WikifactoryNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &n, nil
}
