package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"camdl/internal/config"
)

const userAgent = "camdl/1"

// Download summarises a finished download session.
type Download struct {
	CameraType string
	Address    string
	Success    bool
	Detail     string
	Duration   time.Duration
}

// Service is the notification surface used by the daemon and CLI.
type Service interface {
	NotifyDownloadFinished(ctx context.Context, d Download) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyDownloadFinished(ctx context.Context, d Download) error {
	camera := strings.TrimSpace(d.CameraType)
	if camera == "" {
		camera = "camera"
	}
	data := payload{
		title:   "camdl - Download Complete",
		message: fmt.Sprintf("Downloaded from %s at %s", camera, d.Address),
		tags:    []string{"camdl", "download", camera},
	}
	if d.Duration > 0 {
		data.message += fmt.Sprintf(" in %s", d.Duration.Round(time.Second))
	}
	if !d.Success {
		data.title = "camdl - Download Failed"
		data.message = fmt.Sprintf("Download from %s at %s failed: %s", camera, d.Address, strings.TrimSpace(d.Detail))
		data.tags = []string{"camdl", "download", "error"}
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "camdl - Test",
		message:  "Notification system test",
		tags:     []string{"camdl", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDownloadFinished(context.Context, Download) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
func (noopService) Enabled() bool                                          { return false }
