package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/marketsearch/helpers"
	apperrors "sjsage522/marketsearch/pkg/errors"
	"sjsage522/marketsearch/services/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSendsBrowserHeaders(t *testing.T) {
	var ua, lang, dest string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
		dest = r.Header.Get("Sec-Fetch-Dest")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), nil, 0)
	body, err := f.Fetch(context.Background(), srv.URL, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, helpers.UserAgent, ua)
	assert.Contains(t, lang, "pt-BR")
	assert.Equal(t, "document", dest)
}

func TestHTTPFetcherRateLimitBlock(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	mc := cache.NewMemoryCache()
	f := NewHTTPFetcher(srv.Client(), mc, time.Minute)

	_, err := f.Fetch(context.Background(), srv.URL, time.Second)
	require.Error(t, err)
	assert.True(t, helpers.IsRateLimited(err))

	// Blocked: the server is not contacted again
	_, err = f.Fetch(context.Background(), srv.URL+"/other", time.Second)
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimit(err))
	assert.Equal(t, int32(1), hits.Load())

	_, err = mc.Get(blockKey(srv.URL))
	assert.NoError(t, err)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.Client(), nil, 0).Fetch(context.Background(), srv.URL, 20*time.Millisecond)
	assert.Error(t, err)
}

func TestChainFetcherOrder(t *testing.T) {
	failing := &fakeFetcher{name: "http", err: errors.New("HTTP 403")}
	working := &fakeFetcher{name: "curl", pages: map[string]string{"https://": "body"}}
	unused := &fakeFetcher{name: "flaresolverr", pages: map[string]string{"https://": "other"}}

	chain := NewChainFetcher(failing, working, unused)
	body, err := chain.Fetch(context.Background(), "https://example.test/page", time.Second)

	require.NoError(t, err)
	assert.Equal(t, "body", body)
	assert.Len(t, failing.Calls(), 1)
	assert.Len(t, working.Calls(), 1)
	assert.Empty(t, unused.Calls())
}

func TestChainFetcherAggregatesFailures(t *testing.T) {
	first := &fakeFetcher{name: "http", err: errors.New("HTTP 403")}
	second := &fakeFetcher{name: "curl", err: errors.New("exit status 7")}

	_, err := NewChainFetcher(first, second).Fetch(context.Background(), "https://example.test", time.Second)

	require.Error(t, err)
	assert.True(t, apperrors.IsFetch(err))
	assert.Contains(t, err.Error(), "http: HTTP 403")
	assert.Contains(t, err.Error(), "curl: exit status 7")

	_, err = NewChainFetcher().Fetch(context.Background(), "https://example.test", time.Second)
	assert.True(t, apperrors.IsFetch(err))
}

func TestCurlArgs(t *testing.T) {
	args := curlArgs("https://example.test/x", 1500*time.Millisecond)

	assert.Equal(t, []string{"-sS", "-L", "--max-time", "2", "--compressed", "-w", "\n%{http_code}"}, args[:7])
	assert.Contains(t, args, "User-Agent: "+helpers.UserAgent)
	assert.Equal(t, "https://example.test/x", args[len(args)-1])

	assert.Equal(t, "1", curlArgs("u", 10*time.Millisecond)[3])
}

func TestParseCurlOutput(t *testing.T) {
	body, err := parseCurlOutput("<html>\nline</html>\n200")
	require.NoError(t, err)
	assert.Equal(t, "<html>\nline</html>", body)

	_, err = parseCurlOutput("denied\n403")
	var se *helpers.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.StatusCode)

	_, err = parseCurlOutput("no status line")
	assert.Error(t, err)
	_, err = parseCurlOutput("body\nxyz")
	assert.Error(t, err)
}

func TestCurlFetcher(t *testing.T) {
	if _, err := exec.LookPath("curl"); err != nil {
		t.Skip("curl not available, skipping test")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "<html>"+r.Header.Get("Sec-Fetch-Mode")+"</html>")
	}))
	defer srv.Close()

	f := NewCurlFetcher("")
	body, err := f.Fetch(context.Background(), srv.URL, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "<html>navigate</html>", body)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing", 5*time.Second)
	assert.Error(t, err)
}

func TestFlareSolverrFetcher(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload["url"] == "https://blocked.test" {
			io.WriteString(w, `{"status":"error","message":"challenge not solved"}`)
			return
		}
		io.WriteString(w, `{"status":"ok","message":"","solution":{"status":200,"response":"<html>solved</html>"}}`)
	}))
	defer srv.Close()

	f := NewFlareSolverrFetcher(srv.URL, srv.Client())
	body, err := f.Fetch(context.Background(), "https://example.test", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "<html>solved</html>", body)
	assert.Equal(t, "request.get", payload["cmd"])
	assert.Equal(t, float64(3000), payload["maxTimeout"])

	_, err = f.Fetch(context.Background(), "https://blocked.test", time.Second)
	assert.ErrorContains(t, err, "challenge not solved")
}
