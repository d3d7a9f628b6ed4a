package httpclient

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
	"unicode/utf8"
)

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected response status")

type HTTPClientConf struct {
	Timeout time.Duration `env:"HTTP_CLIENT_TIMEOUT,default=10s"`
}

type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

type Client struct {
	client *http.Client
	token  string
	host   string
}

func NewClient(conf *HTTPClientConf, host, token string) *Client {
	timeout := 10 * time.Second

	if conf != nil && conf.Timeout > 0 {
		timeout = conf.Timeout
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		token: token,
		host:  strings.TrimSuffix(host, "/"),
	}
}

// GetJSON issues a GET against host+path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.host + path

	if len(params) > 0 {
		u = fmt.Sprintf("%s?%s", u, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)

	if err != nil {
		return err
	}

	return c.do(req, out)
}

// PostJSON marshals body (if non-nil) and decodes the response into out (if non-nil).
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		jsonBody, err := json.Marshal(body)

		if err != nil {
			return fmt.Errorf("error marshalling request body for %s: %w", path, err)
		}

		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, reader)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)

	if err != nil {
		return err
	}

	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)

	if err != nil {
		return fmt.Errorf("error reading response body from %s: %w", req.URL.Path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: res.StatusCode,
			Body:       truncate(string(resBytes), 256),
		}
	}

	if out == nil || len(resBytes) == 0 {
		return nil
	}

	if err := json.Unmarshal(resBytes, out); err != nil {
		return fmt.Errorf("error decoding response from %s: %w", req.URL.Path, err)
	}

	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n] + "..."
}
