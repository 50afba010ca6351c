package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        2 * time.Millisecond,
	}
}

func TestClient_RetriesConnectionFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithRetryConfig(fastRetry(4)))
	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestClient_DoesNotRetryStatusCodes(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := New(WithRetryConfig(fastRetry(4)))
	resp, err := client.Head(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	client := New(WithRetryConfig(fastRetry(2)))
	_, err := client.Get(context.Background(), target, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestClient_ResponseSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	client := New(WithMaxResponseSize(16), WithRetryConfig(fastRetry(3)))
	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestClient_Headers(t *testing.T) {
	var gotUA, gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithUserAgent("krawl-test"), WithBearerToken("secret"))
	_, err := client.PostJSON(context.Background(), server.URL, map[string]string{"a": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "krawl-test", gotUA)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		_, _ = w.Write([]byte(r.PostForm.Get("action")))
	}))
	defer server.Close()

	client := New()
	resp, err := client.PostForm(context.Background(), server.URL, url.Values{"action": {"login"}})
	require.NoError(t, err)
	assert.Equal(t, "login", string(resp.Body))
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	transient := &RequestError{Method: http.MethodGet, URL: "https://x.test/a", Attempts: 3, Retryable: true, Err: base}
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.ErrorIs(t, transient, base)
	assert.Equal(t, "GET https://x.test/a: connection refused (after 3 attempts)", transient.Error())

	fatal := &RequestError{Err: base, Attempts: 1}
	assert.True(t, IsFatal(fatal))
	assert.Equal(t, "connection refused", fatal.Error())
	assert.False(t, IsTransient(base))
	assert.False(t, IsFatal(base))
}

func TestClient_RequestErrorCarriesRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL + "/path"
	server.Close()

	client := New(WithRetryConfig(fastRetry(2)))
	_, err := client.PostJSON(context.Background(), target, map[string]string{"a": "b"}, nil)
	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.MethodPost, re.Method)
	assert.Equal(t, target, re.URL)
	assert.Equal(t, 2, re.Attempts)
	assert.True(t, re.Retryable)
}

func TestSocketRetries(t *testing.T) {
	assert.Equal(t, 4, SocketRetries(3).MaxAttempts)
	assert.Equal(t, 1, SocketRetries(-1).MaxAttempts)
}
