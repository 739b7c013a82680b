package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "pt-BR")
		assert.NotEmpty(t, r.Header.Get("Sec-Ch-Ua"))
		assert.Equal(t, "navigate", r.Header.Get("Sec-Fetch-Mode"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Olá, mundo!</body></html>"))
	}))
	defer server.Close()

	client, err := NewClient("")
	require.NoError(t, err)

	body, err := FetchWithBrowserHeaders(context.Background(), client, server.URL, 5*time.Second)
	assert.NoError(t, err)
	assert.Contains(t, body, "Olá, mundo!")
}

func TestFetchWithBrowserHeadersNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "São Paulo" in ISO-8859-1
		w.Write([]byte("<html><body>S\xe3o Paulo</body></html>"))
	}))
	defer server.Close()

	client, err := NewClient("")
	require.NoError(t, err)

	body, err := FetchWithBrowserHeaders(context.Background(), client, server.URL, 5*time.Second)
	assert.NoError(t, err)
	assert.Contains(t, body, "São Paulo")
}

func TestFetchWithBrowserHeadersError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient("")
	require.NoError(t, err)

	_, err = FetchWithBrowserHeaders(context.Background(), client, server.URL, 5*time.Second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
	assert.False(t, IsRateLimited(err))

	// Test with rate limiting
	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = FetchWithBrowserHeaders(context.Background(), client, serverRateLimited.URL, 5*time.Second)
	assert.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFetchWithBrowserHeadersTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client, err := NewClient("")
	require.NoError(t, err)

	_, err = FetchWithBrowserHeaders(context.Background(), client, server.URL, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	_, err := NewClient("://bad")
	assert.Error(t, err)

	client, err := NewClient("http://127.0.0.1:3128")
	assert.NoError(t, err)
	assert.NotNil(t, client)
}
