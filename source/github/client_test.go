package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsManifestFilename(t *testing.T) {
	tests := []struct {
		name   string
		format manifest.Format
		want   bool
	}{
		{"okh.toml", manifest.FormatTOML, true},
		{"okh-loom.toml", manifest.FormatTOML, true},
		{"okh-solar_dryer-v2.yml", manifest.FormatYAML, true},
		{"okh-größe.json", manifest.FormatJSON, true},
		{"okh.yml", manifest.FormatTOML, false},
		{"okh-.toml", manifest.FormatTOML, false},
		{"okh-a b.toml", manifest.FormatTOML, false},
		{"my-okh.toml", manifest.FormatTOML, false},
		{"okh-loom.toml.bak", manifest.FormatTOML, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsManifestFilename(tt.name, tt.format))
		})
	}
}

func newGitHub(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "filename:okh.toml" || r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `{"total_count":3,"items":[
			{"name":"okh.toml","path":"okh.toml","sha":"s1","url":"%[1]s/repos/a/loom/contents/okh.toml","repository":{"full_name":"a/loom","url":"%[1]s/repos/a/loom"}},
			{"name":"okh-frame.toml","path":"docs/okh-frame.toml","sha":"s2","url":"%[1]s/repos/a/loom/contents/docs/okh-frame.toml","repository":{"full_name":"a/loom"}},
			{"name":"notokh.toml","path":"notokh.toml","sha":"s3","repository":{"full_name":"b/c"}}
		]}`, srv.URL)
	})
	mux.HandleFunc("/repos/a/loom/contents/okh.toml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Fri, 01 Mar 2024 09:00:00 GMT")
		fmt.Fprintf(w, `{"download_url":"%s/raw/a/loom/main/okh.toml"}`, srv.URL)
	})
	mux.HandleFunc("/raw/a/loom/main/okh.toml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "name = \"Loom\"\n")
	})
	mux.HandleFunc("/repos/a/loom/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"sha":"abc123"}]`)
	})
	mux.HandleFunc("/repos/a/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	httpClient := transport.New(transport.WithBearerToken("gh-token"), transport.WithRetryConfig(transport.SocketRetries(0)))
	return NewClient(httpClient, WithAPIURL(srv.URL+"/")), srv
}

func TestSearch(t *testing.T) {
	c, _ := newGitHub(t)

	var hits []Hit
	err := c.Search(context.Background(), manifest.FormatTOML, func(h Hit) error {
		hits = append(hits, h)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, hits, 2, "names not matching the manifest rule are skipped")
	assert.Equal(t, "a/loom/okh.toml", hits[0].FullName())
	assert.Equal(t, "a/loom/okh-frame.toml", hits[1].FullName())
	assert.Equal(t, "s2", hits[1].SHA)
}

func TestSearch_StopsOnCallbackError(t *testing.T) {
	c, _ := newGitHub(t)
	stop := errors.New("stop")

	calls := 0
	err := c.Search(context.Background(), manifest.FormatTOML, func(Hit) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestSearch_Forbidden(t *testing.T) {
	c, _ := newGitHub(t)
	err := c.Search(context.Background(), manifest.FormatYAML, func(Hit) error { return nil })
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	c, srv := newGitHub(t)

	f, err := c.Download(context.Background(), Hit{
		Name:       "okh.toml",
		Path:       "okh.toml",
		URL:        srv.URL + "/repos/a/loom/contents/okh.toml",
		Repository: Repository{FullName: "a/loom"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/raw/a/loom/main/okh.toml", f.DownloadURL)
	assert.Equal(t, "Fri, 01 Mar 2024 09:00:00 GMT", f.LastModified)
	assert.Equal(t, "name = \"Loom\"\n", string(f.Data))
}

func TestLatestCommit(t *testing.T) {
	c, _ := newGitHub(t)

	sha, err := c.LatestCommit(context.Background(), "a/loom")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)

	_, err = c.LatestCommit(context.Background(), "a/empty")
	assert.Error(t, err)
}
