// Package storage lays crawl results out on disk.
//
// GitHub manifests live at
//
//	<root>/github/<owner____repo____file>/<version_with_underscores>/okh.<ext>
//
// and Wikifactory records at
//
//	<root>/wikifactory/<space____name>/<version>/record.json
//
// Each version directory also receives normalized.toml and rdf.<ext>.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/krawl/manifest"
)

// Directory and file names of the layout.
const (
	DirGitHub      = "github"
	DirWikifactory = "wikifactory"
	RecordFile     = "record.json"
	NormalizedFile = "normalized.toml"
	RDFFilePrefix  = "rdf"

	separator = "____"
	maxName   = 255
)

// Layout resolves and writes paths below a work directory.
type Layout struct {
	root string
}

// New returns the layout rooted at root.
func New(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the work directory.
func (l *Layout) Root() string {
	return l.root
}

// GitHubDir returns the version directory of a manifest. fullName is
// "owner/repo/file".
func (l *Layout) GitHubDir(fullName, version string) string {
	return filepath.Join(l.root, DirGitHub,
		Sanitize(strings.ReplaceAll(fullName, "/", separator)),
		Sanitize(strings.ReplaceAll(version, ".", "_")))
}

// WikifactoryDir returns the version directory of a Wikifactory project.
func (l *Layout) WikifactoryDir(space, name, version string) string {
	return filepath.Join(l.root, DirWikifactory, Sanitize(space+separator+name), Sanitize(version))
}

// SaveRaw writes a downloaded manifest as okh.<ext> and returns its path.
func (l *Layout) SaveRaw(fullName, version string, format manifest.Format, data []byte) (string, error) {
	dir := l.GitHubDir(fullName, version)
	return writeFile(dir, "okh."+string(format), data)
}

// SaveRecord writes a Wikifactory project node as indented JSON and returns
// its path. Map keys are written sorted.
func (l *Layout) SaveRecord(space, name, version string, node map[string]any) (string, error) {
	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return writeFile(l.WikifactoryDir(space, name, version), RecordFile, append(data, '\n'))
}

// SaveNormalized writes m as normalized.toml into dir.
func SaveNormalized(dir string, m *manifest.Manifest) (string, error) {
	data, err := manifest.Marshal(m)
	if err != nil {
		return "", err
	}
	return writeFile(dir, NormalizedFile, data)
}

// LoadNormalized reads a normalized manifest.
func LoadNormalized(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	m, err := manifest.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveRDF writes a serialized graph as rdf<ext> next to the normalized
// manifest. ext includes the dot.
func SaveRDF(dir, ext string, data []byte) (string, error) {
	return writeFile(dir, RDFFilePrefix+ext, data)
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Sanitize makes name usable as a single path element: reserved and control
// characters are removed, trailing dots and spaces trimmed and the result
// truncated to 255 bytes.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if len(s) > maxName {
		s = s[:maxName]
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
