package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "ondeath/v1"

// errEndpointStatus is wrapped by post when the endpoint answers outside 2xx.
var errEndpointStatus = errors.New("webhook endpoint rejected event")

// endpoint is a plugin's HTTP receiver. It makes one request per call and
// never repeats one.
type endpoint struct {
	client *http.Client
	url    string
	token  string
}

// parseEndpointURL accepts absolute http(s) URLs only.
func parseEndpointURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("webhook URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	case u.Host == "":
		return nil, errors.New("webhook URL must include a host")
	}
	return u, nil
}

func newEndpoint(raw, token string, timeout time.Duration, insecure bool) (endpoint, error) {
	if _, err := parseEndpointURL(raw); err != nil {
		return endpoint{}, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}
	return endpoint{
		client: &http.Client{Timeout: timeout, Transport: transport},
		url:    raw,
		token:  token,
	}, nil
}

// post sends body once. A non-2xx answer is returned as an error wrapping
// errEndpointStatus; the status code is 0 when no answer arrived.
func (e endpoint) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("%w: HTTP %d", errEndpointStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// RedactURL returns rawURL with its password and query values masked, for logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
