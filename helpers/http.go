package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Header is a single request header. Headers are kept in a slice so every
// fetch strategy sends them in the same order.
type Header struct {
	Key   string
	Value string
}

// UserAgent is the desktop Chrome identity presented by every strategy
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// BrowserHeaders mimic a top-level navigation from desktop Chrome
var BrowserHeaders = []Header{
	{"User-Agent", UserAgent},
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
	{"Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"},
	{"Sec-Ch-Ua", `"Chromium";v="131", "Not_A Brand";v="24", "Google Chrome";v="131"`},
	{"Sec-Ch-Ua-Mobile", "?0"},
	{"Sec-Ch-Ua-Platform", `"Windows"`},
	{"Sec-Fetch-Dest", "document"},
	{"Sec-Fetch-Mode", "navigate"},
	{"Sec-Fetch-Site", "none"},
	{"Sec-Fetch-User", "?1"},
	{"Upgrade-Insecure-Requests", "1"},
	{"Cache-Control", "max-age=0"},
}

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	StatusCode int
	RetryAfter string
}

func (e *StatusError) Error() string {
	if e.RateLimited() {
		return fmt.Sprintf("rate limited (HTTP %d); retry after %q", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// RateLimited reports whether the status asks the client to back off
func (e *StatusError) RateLimited() bool {
	return slices.Contains([]int{http.StatusTooManyRequests, 430}, e.StatusCode)
}

// IsRateLimited reports whether err carries a rate-limiting status
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.RateLimited()
}

// NewClient builds the HTTP client used by the primary strategy. Timeouts are
// applied per request through the context, so the client itself has none.
func NewClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}

// SetHeaders copies headers onto req
func SetHeaders(req *http.Request, headers []Header) {
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}
}

// FetchWithBrowserHeaders sends a GET request carrying BrowserHeaders with a
// hard timeout, converts the body to UTF-8 (if needed) and returns it.
func FetchWithBrowserHeaders(ctx context.Context, client *http.Client, target string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	SetHeaders(req, BrowserHeaders)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return ToUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// ToUTF8 decodes body using the charset declared by contentType or sniffed
// from the markup.
func ToUTF8(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return string(body), nil
	}

	decoded, err := encoding.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to convert %s body to UTF-8: %w", name, err)
	}
	return string(decoded), nil
}
