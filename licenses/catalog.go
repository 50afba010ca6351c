// Package licenses holds the SPDX license identifier set and the LOSH license
// blacklist. Both are fetched once at startup into an immutable Catalog that is
// passed to the normalizers which need it.
package licenses

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/krawl/transport"
)

// Default list locations.
const (
	DefaultSPDXURL      = "https://raw.githubusercontent.com/spdx/license-list-data/master/json/licenses.json"
	DefaultBlacklistURL = "https://raw.githubusercontent.com/OPEN-NEXT/LOSH/master/Data%20Mapping/SPDX-blacklist"
)

// Catalog is a read-only view of known and forbidden license identifiers.
// It is safe for concurrent use.
type Catalog struct {
	spdx      map[string]struct{}
	blacklist map[string]struct{}
}

// NewCatalog builds a catalog from identifier lists.
func NewCatalog(spdx, blacklist []string) *Catalog {
	return &Catalog{
		spdx:      toSet(spdx),
		blacklist: toSet(blacklist),
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// IsSPDX reports whether id is a known SPDX license identifier.
func (c *Catalog) IsSPDX(id string) bool {
	_, ok := c.spdx[id]
	return ok
}

// IsForbidden reports whether id is on the blacklist.
func (c *Catalog) IsForbidden(id string) bool {
	_, ok := c.blacklist[id]
	return ok
}

// Size returns the number of SPDX and blacklisted identifiers.
func (c *Catalog) Size() (spdx, blacklist int) {
	return len(c.spdx), len(c.blacklist)
}

type spdxList struct {
	Licenses []struct {
		LicenseID string `json:"licenseId"`
	} `json:"licenses"`
}

// Fetch downloads both lists and builds a catalog.
func Fetch(ctx context.Context, client *transport.Client, spdxURL, blacklistURL string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	resp, err := client.Get(ctx, spdxURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch spdx list: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetch spdx list: status %d", resp.StatusCode)
	}
	var list spdxList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("decode spdx list: %w", err)
	}
	spdx := make([]string, 0, len(list.Licenses))
	for _, l := range list.Licenses {
		spdx = append(spdx, l.LicenseID)
	}

	resp, err = client.Get(ctx, blacklistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch license blacklist: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetch license blacklist: status %d", resp.StatusCode)
	}
	var blacklist []string
	scanner := bufio.NewScanner(strings.NewReader(string(resp.Body)))
	for scanner.Scan() {
		blacklist = append(blacklist, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read license blacklist: %w", err)
	}

	c := NewCatalog(spdx, blacklist)
	known, forbidden := c.Size()
	logger.Info("Loaded license catalog", "spdx", known, "blacklist", forbidden)
	return c, nil
}
