package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/logger"
	apperrors "sjsage522/marketsearch/pkg/errors"
	"sjsage522/marketsearch/services/cache"
)

// Fetcher retrieves a document as text. Implementations must honour timeout
// even when ctx has no deadline.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, target string, timeout time.Duration) (string, error)
}

// HTTPFetcher is the primary strategy: a plain GET dressed up as a browser
// navigation. A rate-limited answer blocks the host for blockTime, during
// which Fetch fails immediately so the chain falls through to the next
// strategy.
type HTTPFetcher struct {
	client    *http.Client
	cache     cache.CacheService
	blockTime time.Duration
}

// NewHTTPFetcher creates the primary fetcher. cacheSvc may be nil.
func NewHTTPFetcher(client *http.Client, cacheSvc cache.CacheService, blockTime time.Duration) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client, cache: cacheSvc, blockTime: blockTime}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	key := blockKey(target)
	if f.cache != nil && f.blockTime > 0 {
		if _, err := f.cache.Get(key); err == nil {
			return "", apperrors.NewRateLimit("http", f.blockTime)
		}
	}

	body, err := helpers.FetchWithBrowserHeaders(ctx, f.client, target, timeout)
	if err != nil {
		if helpers.IsRateLimited(err) && f.cache != nil && f.blockTime > 0 {
			if cerr := f.cache.Set(key, []byte(strconv.Itoa(int(f.blockTime/time.Second))), f.blockTime); cerr != nil {
				logger.ForCache().Warn().Err(cerr).Str("key", key).Msg("failed to store rate-limit block")
			} else {
				logger.ForFetcher(f.Name()).Warn().
					Str("key", key).
					Dur("block", f.blockTime).
					Msg("rate limited, blocking primary strategy")
			}
		}
		return "", err
	}
	return body, nil
}

func blockKey(target string) string {
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}
	return "ratelimit:" + host
}

// CurlFetcher shells out to a curl binary. Pointing bin at a
// browser-impersonating curl build gets past TLS fingerprinting that stops
// the Go client.
type CurlFetcher struct {
	bin string
}

func NewCurlFetcher(bin string) *CurlFetcher {
	if bin == "" {
		bin = "curl"
	}
	return &CurlFetcher{bin: bin}
}

func (f *CurlFetcher) Name() string { return "curl" }

func (f *CurlFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	// curl enforces --max-time itself; the context is a backstop
	ctx, cancel := context.WithTimeout(ctx, curlMaxTime(timeout)+time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, curlArgs(target, timeout)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("curl failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("curl failed: %w", err)
	}

	return parseCurlOutput(stdout.String())
}

func curlMaxTime(timeout time.Duration) time.Duration {
	secs := int(math.Ceil(timeout.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func curlArgs(target string, timeout time.Duration) []string {
	args := []string{
		"-sS", "-L",
		"--max-time", strconv.Itoa(int(curlMaxTime(timeout) / time.Second)),
		"--compressed",
		"-w", "\n%{http_code}",
	}
	for _, h := range helpers.BrowserHeaders {
		args = append(args, "-H", h.Key+": "+h.Value)
	}
	return append(args, target)
}

// parseCurlOutput splits the body from the status line appended by -w
func parseCurlOutput(out string) (string, error) {
	i := strings.LastIndex(out, "\n")
	if i < 0 {
		return "", fmt.Errorf("curl output has no status line")
	}

	status, err := strconv.Atoi(strings.TrimSpace(out[i+1:]))
	if err != nil {
		return "", fmt.Errorf("curl output has malformed status %q", out[i+1:])
	}
	if status >= 400 {
		return "", &helpers.StatusError{StatusCode: status}
	}
	return out[:i], nil
}

// FlareSolverrFetcher routes the request through a FlareSolverr instance
type FlareSolverrFetcher struct {
	endpoint string
	client   *http.Client
}

func NewFlareSolverrFetcher(endpoint string, client *http.Client) *FlareSolverrFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &FlareSolverrFetcher{endpoint: endpoint, client: client}
}

func (f *FlareSolverrFetcher) Name() string { return "flaresolverr" }

func (f *FlareSolverrFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"cmd":        "request.get",
		"url":        target,
		"maxTimeout": timeout.Milliseconds(),
	})
	if err != nil {
		return "", err
	}

	// FlareSolverr needs a little headroom beyond its own maxTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("flaresolverr request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read flaresolverr response: %w", err)
	}

	var flareResp struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Solution struct {
			Status   int    `json:"status"`
			Response string `json:"response"`
		} `json:"solution"`
	}
	if err := json.Unmarshal(body, &flareResp); err != nil {
		return "", fmt.Errorf("failed to parse flaresolverr response: %w", err)
	}
	if flareResp.Status != "ok" {
		return "", fmt.Errorf("flaresolverr error: %s", flareResp.Message)
	}
	if flareResp.Solution.Status >= 400 {
		return "", &helpers.StatusError{StatusCode: flareResp.Solution.Status}
	}
	if flareResp.Solution.Response == "" {
		return "", fmt.Errorf("no content in flaresolverr response")
	}

	logger.ForFetcher(f.Name()).Debug().
		Int("bytes", len(flareResp.Solution.Response)).
		Msg("flaresolverr solved request")
	return flareResp.Solution.Response, nil
}

// ChainFetcher tries each strategy in order and returns the first success
type ChainFetcher struct {
	fetchers []Fetcher
}

func NewChainFetcher(fetchers ...Fetcher) *ChainFetcher {
	return &ChainFetcher{fetchers: fetchers}
}

func (c *ChainFetcher) Name() string { return "chain" }

func (c *ChainFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	var errs []error
	for _, f := range c.fetchers {
		body, err := f.Fetch(ctx, target, timeout)
		if err == nil {
			return body, nil
		}

		logger.ForFetcher(f.Name()).Debug().
			Err(err).
			Str("url", target).
			Msg("strategy failed")
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no fetch strategy configured"))
	}
	return "", apperrors.NewFetch("retriever", "all fetch strategies failed for "+target, errors.Join(errs...))
}
