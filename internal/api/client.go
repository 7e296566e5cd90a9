package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"camdl/internal/eventstream"
)

// Client calls the camdl HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a client for server, which may be a host:port pair or a
// full URL. Wildcard bind hosts are dialled on loopback.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	base, err := baseURL(server)
	if err != nil {
		return nil, err
	}
	c := &Client{base: base, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func baseURL(server string) (*url.URL, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, errors.New("server address is required")
	}
	if !strings.Contains(server, "://") {
		host, port, err := net.SplitHostPort(server)
		if err != nil {
			return nil, fmt.Errorf("parse server address %q: %w", server, err)
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		server = "http://" + net.JoinHostPort(host, port)
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", server, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// APIError reports a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var envelope Response
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, method, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// SaveSettings stores ip as the address for cameraType and marks it last used.
func (c *Client) SaveSettings(ctx context.Context, cameraType, ip string) (Response, error) {
	var out Response
	err := c.doJSON(ctx, http.MethodPost, "/camera/save-settings", url.Values{"type": {cameraType}, "ip": {ip}}, &out)
	return out, err
}

// Settings returns the stored camera settings.
func (c *Client) Settings(ctx context.Context) (SettingsResponse, error) {
	var out SettingsResponse
	err := c.doJSON(ctx, http.MethodPost, "/camera/get-settings", nil, &out)
	return out, err
}

// Ping asks the daemon to probe ip.
func (c *Client) Ping(ctx context.Context, ip string) (Response, error) {
	var out Response
	err := c.doJSON(ctx, http.MethodPost, "/camera/ping", url.Values{"ip": {ip}}, &out)
	return out, err
}

// CountFiles returns the download directory inventory.
func (c *Client) CountFiles(ctx context.Context) (FilesResponse, error) {
	var out FilesResponse
	err := c.doJSON(ctx, http.MethodPost, "/camera/count-files", nil, &out)
	return out, err
}

// DeleteFiles clears the download directory.
func (c *Client) DeleteFiles(ctx context.Context) (DeleteResponse, error) {
	var out DeleteResponse
	err := c.doJSON(ctx, http.MethodDelete, "/camera/delete-files", nil, &out)
	return out, err
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// DownloadZip streams the archive of downloaded files into w and returns the
// attachment name the server suggested.
func (c *Client) DownloadZip(ctx context.Context, w io.Writer) (string, int64, error) {
	resp, err := c.do(ctx, http.MethodPost, "/camera/download-zip", nil)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	name := "camera_files.zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return name, n, fmt.Errorf("read archive: %w", err)
	}
	return name, n, nil
}

// Download starts a download session and calls fn for every event until the
// stream ends. It returns the terminal event, or an error when the stream
// ends without one.
func (c *Client) Download(ctx context.Context, cameraType, ip string, fn func(eventstream.Event)) (eventstream.Event, error) {
	resp, err := c.do(ctx, http.MethodPost, "/camera/download", url.Values{"type": {cameraType}, "ip": {ip}})
	if err != nil {
		return eventstream.Event{}, err
	}
	defer resp.Body.Close()

	var (
		terminal eventstream.Event
		done     bool
		failure  string
	)
	dec := eventstream.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return terminal, fmt.Errorf("read event stream: %w", err)
		}
		if fn != nil {
			fn(ev)
		}
		switch {
		case ev.IsTerminal():
			terminal, done = ev, true
		case ev.Kind == eventstream.KindError:
			failure = ev.Text
		}
	}
	if !done {
		if failure != "" {
			return eventstream.Terminal(false, failure), nil
		}
		return terminal, errors.New("event stream ended without a result")
	}
	return terminal, nil
}

// WaitReady polls the status endpoint with exponential backoff until the
// daemon answers or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) (DaemonStatus, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = timeout

	var status DaemonStatus
	operation := func() error {
		s, err := c.Status(ctx)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return backoff.Permanent(err)
			}
			return err
		}
		status = s
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return DaemonStatus{}, fmt.Errorf("daemon at %s not ready: %w", c.BaseURL(), err)
	}
	return status, nil
}
