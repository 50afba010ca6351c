package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/krawl/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubDir(t *testing.T) {
	l := New("/work")
	assert.Equal(t,
		filepath.Join("/work", "github", "ada____loom____okh.toml", "1_0_2"),
		l.GitHubDir("ada/loom/okh.toml", "1.0.2"))
}

func TestWikifactoryDir(t *testing.T) {
	l := New("/work")
	assert.Equal(t,
		filepath.Join("/work", "wikifactory", "ada____Solar Dryer v2", "20210401120000"),
		l.WikifactoryDir("ada", "Solar Dryer: v2?", "20210401120000"))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"tab\there", "tabhere"},
		{"trailing. . ", "trailing"},
		{"..", "_"},
		{"", "_"},
		{strings.Repeat("ü", 200), strings.Repeat("ü", 127)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSaveRaw(t *testing.T) {
	l := New(t.TempDir())

	path, err := l.SaveRaw("ada/loom/okh.yml", "1.0", manifest.FormatYAML, []byte("name: Loom\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Root(), "github", "ada____loom____okh.yml", "1_0", "okh.yml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: Loom\n", string(data))
}

func TestSaveRecord_SortedIndented(t *testing.T) {
	l := New(t.TempDir())

	path, err := l.SaveRecord("ada", "dryer", "20210401120000", map[string]any{
		"slug": "dryer",
		"name": "Dryer",
		"id":   "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, RecordFile, filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": \"p1\",\n  \"name\": \"Dryer\",\n  \"slug\": \"dryer\"\n}\n", string(data))
}

func TestNormalizedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Manifest{Name: "Loom", Repo: "https://github.com/a/loom", Version: "1.0"}

	path, err := SaveNormalized(dir, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, NormalizedFile), path)

	got, err := LoadNormalized(path)
	require.NoError(t, err)
	assert.Equal(t, "Loom", got.Name)
	assert.Equal(t, "1.0", got.Version)

	_, err = LoadNormalized(filepath.Join(dir, "missing.toml"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveRDF(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveRDF(dir, ".ttl", []byte("@prefix okh: <x> .\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rdf.ttl"), path)
}
