package hirez

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

const (
	maxResponseBytes = 32 << 20
	maxErrorBody     = 512
)

// NewHTTPClient builds the HTTP client used when Options.HTTPClient is nil.
// A custom TLS config disables net/http's implicit HTTP/2 support, so HTTP/2
// is configured explicitly.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, // #nosec G402 -- opt-in via config
		},
		TLSHandshakeTimeout:   5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          16,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// buildPath lays out a signed call as
// {method}json/{devId}/{signature}[/{session}]/{timestamp}/{args...}.
func buildPath(method, devID, signature, sessionID, timestamp string, args []string) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteString("json/")
	b.WriteString(devID)
	b.WriteString("/")
	b.WriteString(signature)
	if !strings.EqualFold(method, MethodCreateSession) {
		b.WriteString("/")
		b.WriteString(sessionID)
	}
	b.WriteString("/")
	b.WriteString(timestamp)
	for _, arg := range args {
		b.WriteString("/")
		b.WriteString(url.PathEscape(arg))
	}
	return b.String()
}

func (c *Client) ping(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.get(ctx, MethodPing, MethodPing+"json")
}

// get issues the GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, method, path string) ([]byte, error) {
	reqURL := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("hirez: %s request: %w", method, err)
		c.observeRequest(method, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err = fmt.Errorf("hirez: read %s response: %w", method, err)
		c.observeRequest(method, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = &StatusError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       excerpt(body),
		}
		c.observeRequest(method, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	c.observeRequest(method, resp.StatusCode, time.Since(start), nil)
	return body, nil
}

func (c *Client) observeRequest(method string, statusCode int, duration time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, statusCode, duration, err)
	}
}

// pingText unwraps a JSON string body and otherwise returns the body as-is.
func pingText(body []byte) string {
	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(body))
}

func decodeInto(method string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return &ShapeError{Method: method, Expected: typeErr.Type.String(), Actual: typeErr.Value}
		}
		return fmt.Errorf("hirez: decode %s response: %w", method, err)
	}
	return nil
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
