package licenses

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/krawl/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	c := NewCatalog([]string{"MIT", " CC-BY-SA-4.0 ", ""}, []string{"CC-BY-NC-4.0"})

	assert.True(t, c.IsSPDX("MIT"))
	assert.True(t, c.IsSPDX("CC-BY-SA-4.0"))
	assert.False(t, c.IsSPDX(""))
	assert.False(t, c.IsSPDX("mit"))
	assert.True(t, c.IsForbidden("CC-BY-NC-4.0"))
	assert.False(t, c.IsForbidden("MIT"))

	spdx, blacklist := c.Size()
	assert.Equal(t, 2, spdx)
	assert.Equal(t, 1, blacklist)
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/licenses.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"licenseListVersion":"3.13","licenses":[{"licenseId":"MIT"},{"licenseId":"CERN-OHL-S-2.0"},{"licenseId":"CC-BY-NC-4.0"}]}`))
	})
	mux.HandleFunc("/blacklist", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("CC-BY-NC-4.0\n  CC-BY-ND-4.0 \n\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := Fetch(context.Background(), transport.New(), server.URL+"/licenses.json", server.URL+"/blacklist", nil)
	require.NoError(t, err)

	assert.True(t, c.IsSPDX("CERN-OHL-S-2.0"))
	assert.True(t, c.IsForbidden("CC-BY-ND-4.0"))
	spdx, blacklist := c.Size()
	assert.Equal(t, 3, spdx)
	assert.Equal(t, 2, blacklist)
}

func TestFetch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Fetch(context.Background(), transport.New(), server.URL, server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
