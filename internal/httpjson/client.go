// Package httpjson is the small JSON-over-HTTP client shared by the calendar
// feed and every broker adapter.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every request made through a Client built by New.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTransport covers connection failures, timeouts and cancelled requests.
	ErrTransport = errors.New("transport error")

	// ErrStatus is matched by every StatusError.
	ErrStatus = errors.New("unexpected http status")

	// ErrDecode indicates a 2xx response whose body was not the expected JSON.
	ErrDecode = errors.New("malformed response body")
)

// StatusError is returned for any response other than 200 or 201.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.URL, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client sends JSON requests relative to BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Header  http.Header
}

// New returns a client with a bounded timeout. rps <= 0 disables rate limiting.
func New(baseURL string, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Header:  http.Header{"Accept": []string{"application/json"}},
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string, hdr http.Header, out any) error {
	return c.Do(ctx, http.MethodGet, path, hdr, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, hdr http.Header, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, hdr, in, out)
}

func (c *Client) Delete(ctx context.Context, path string, hdr http.Header, out any) error {
	return c.Do(ctx, http.MethodDelete, path, hdr, nil, out)
}

// Do sends one request. in is encoded as the JSON body when non-nil; out
// receives the decoded response when non-nil. An empty 2xx body leaves out
// untouched.
func (c *Client) Do(ctx context.Context, method, path string, hdr http.Header, in, out any) error {
	target, err := c.resolve(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, target, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range hdr {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, target, err)
		}
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, target, err)
	}
	return nil
}

func (c *Client) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", c.BaseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
