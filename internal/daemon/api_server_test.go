package daemon_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"camdl/internal/api"
	"camdl/internal/eventstream"
	"camdl/internal/testsupport"
)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *api.Client, string) {
	t.Helper()
	cfg := defaultTestConfig(t, opts...)
	d, _ := newTestDaemon(t, cfg)
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	client, err := api.NewClient(srv.URL, api.WithToken(cfg.Paths.APIToken))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return srv, client, cfg.Paths.DownloadDir
}

func TestGetSettingsDefaults(t *testing.T) {
	_, client, _ := newTestServer(t)
	resp, err := client.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.LastUsed.CameraType != "siyi" || resp.LastUsed.IP != "192.168.144.25" {
		t.Fatalf("unexpected last used %+v", resp.LastUsed)
	}
	if resp.Cameras["xfrobot"].IP != "192.168.144.108" {
		t.Fatalf("unexpected cameras %+v", resp.Cameras)
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	_, client, _ := newTestServer(t)
	ctx := context.Background()

	saved, err := client.SaveSettings(ctx, "xfrobot", "10.1.2.3")
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if !saved.Success || saved.Message != "Camera settings saved for xfrobot" {
		t.Fatalf("unexpected save response %+v", saved)
	}
	resp, err := client.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if resp.LastUsed.CameraType != "xfrobot" || resp.LastUsed.IP != "10.1.2.3" {
		t.Fatalf("unexpected last used %+v", resp.LastUsed)
	}
	if resp.Cameras["xfrobot"].IP != "10.1.2.3" || resp.Cameras["siyi"].IP != "192.168.144.25" {
		t.Fatalf("unexpected cameras %+v", resp.Cameras)
	}
}

func TestSaveSettingsRejectsInvalidInput(t *testing.T) {
	_, client, _ := newTestServer(t)
	_, err := client.SaveSettings(context.Background(), "bad type!", "10.1.2.3")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPingReportsReachability(t *testing.T) {
	_, client, _ := newTestServer(t)
	resp, err := client.Ping(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !resp.Success || resp.Message != "Camera at 127.0.0.1 is reachable" {
		t.Fatalf("unexpected ping response %+v", resp)
	}

	_, unreachable, _ := newTestServer(t, testsupport.WithProbeExit(1))
	resp, err = unreachable.Ping(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if resp.Success || resp.Message != "Camera at 127.0.0.1 is not reachable" {
		t.Fatalf("unexpected ping response %+v", resp)
	}
}

func TestPingRequiresIP(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/camera/ping", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDownloadStreamsEvents(t *testing.T) {
	srv, client, downloadDir := newTestServer(t)

	resp, err := http.Post(srv.URL+"/camera/download?type=siyi&ip=127.0.0.1", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	want := "data: Connecting to camera at 127.0.0.1\n\n" +
		"data: Started download from siyi camera at 127.0.0.1\n\n" +
		"data: found 2 files\n\n" +
		"data: downloaded 2/2\n\n" +
		"data: Download completed successfully!\n\n" +
		":\n\n"
	if string(body) != want {
		t.Fatalf("unexpected stream:\n%q\nwant:\n%q", body, want)
	}

	for _, name := range []string{"IMG_0001.JPG", "VID_0001.MP4"} {
		if _, err := os.Stat(filepath.Join(downloadDir, name)); err != nil {
			t.Fatalf("expected %s in download dir: %v", name, err)
		}
	}
	settings, err := client.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings.LastUsed.IP != "127.0.0.1" {
		t.Fatalf("expected download to record last used address, got %+v", settings.LastUsed)
	}
}

func TestDownloadUnknownJobType(t *testing.T) {
	_, client, _ := newTestServer(t)
	var events []eventstream.Event
	terminal, err := client.Download(context.Background(), "xfrobot", "127.0.0.1", func(ev eventstream.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if terminal.Success {
		t.Fatal("expected failure terminal")
	}
	found := false
	for _, ev := range events {
		if ev.Kind == eventstream.KindError && strings.Contains(ev.Text, "download job for xfrobot camera not found") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected not-found error in %+v", events)
	}
}

func TestDownloadRequiresParameters(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, query := range []string{"", "?type=siyi", "?ip=127.0.0.1"} {
		resp, err := http.Post(srv.URL+"/camera/download"+query, "", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, resp.StatusCode)
		}
	}
}

func TestDownloadOverWebSocket(t *testing.T) {
	srv, _, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/camera/download/ws?type=siyi&ip=127.0.0.1"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var messages []eventstream.WSMessage
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg eventstream.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			t.Fatalf("read: %v", err)
		}
		messages = append(messages, msg)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %+v", messages)
	}
	last := messages[len(messages)-1]
	if last.Kind != eventstream.KindTerminal || !last.Success || last.Message != "Download completed successfully!" {
		t.Fatalf("unexpected terminal message %+v", last)
	}
}

func TestFileEndpoints(t *testing.T) {
	_, client, downloadDir := newTestServer(t)
	ctx := context.Background()

	var zipBuf bytes.Buffer
	if _, _, err := client.DownloadZip(ctx, &zipBuf); err == nil {
		t.Fatal("expected 404 for empty download dir")
	} else {
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 api error, got %v", err)
		}
	}

	testsupport.WriteFiles(t, downloadDir, "a.jpg", "b.JPEG", "c.mp4", "notes.txt")

	counts, err := client.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if !counts.Success || counts.Images != 2 || counts.Videos != 1 || counts.Other != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	zipBuf.Reset()
	name, n, err := client.DownloadZip(ctx, &zipBuf)
	if err != nil {
		t.Fatalf("DownloadZip: %v", err)
	}
	if !strings.HasPrefix(name, "camera_files_") || !strings.HasSuffix(name, ".zip") {
		t.Fatalf("unexpected archive name %q", name)
	}
	zr, err := zip.NewReader(bytes.NewReader(zipBuf.Bytes()), n)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 4 {
		t.Fatalf("expected 4 archive members, got %d", len(zr.File))
	}

	deleted, err := client.DeleteFiles(ctx)
	if err != nil {
		t.Fatalf("DeleteFiles: %v", err)
	}
	if !deleted.Success || deleted.DeletedCount != 4 || deleted.Message != "Successfully deleted 4 files" {
		t.Fatalf("unexpected delete response %+v", deleted)
	}
	again, err := client.DeleteFiles(ctx)
	if err != nil {
		t.Fatalf("DeleteFiles: %v", err)
	}
	if again.DeletedCount != 0 || again.Message != "No files to delete" {
		t.Fatalf("unexpected second delete response %+v", again)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, client, _ := newTestServer(t)
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
	if len(status.CameraTypes) != 2 {
		t.Fatalf("unexpected camera types %v", status.CameraTypes)
	}
	if status.Jobs.Active != 0 || len(status.Sessions) != 0 {
		t.Fatalf("expected idle daemon, got %+v", status)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	srv, client, _ := newTestServer(t,
		testsupport.WithAPIToken("s3cret"),
		testsupport.WithStaticDir("<html>camdl</html>"),
	)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("Status with token: %v", err)
	}

	page, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	if page.StatusCode != http.StatusOK || !strings.Contains(string(body), "camdl") {
		t.Fatalf("expected static index without token, got %d %q", page.StatusCode, body)
	}
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/camera/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var payload api.Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Success {
		t.Fatal("expected success=false")
	}
}

func TestServeShutdownReapsActiveDownloads(t *testing.T) {
	cfg := defaultTestConfig(t, testsupport.WithJobProgram("siyi", `echo "found 100 files"
sleep 30`))
	d, launcher := newTestDaemon(t, cfg)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- d.Serve(ctx, listener) }()

	client, err := api.NewClient(listener.Addr().String())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.WaitReady(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	started := make(chan struct{})
	downloaded := make(chan error, 1)
	go func() {
		var once bool
		_, err := client.Download(context.Background(), "siyi", "127.0.0.1", func(ev eventstream.Event) {
			if ev.Text == "found 100 files" && !once {
				once = true
				close(started)
			}
		})
		downloaded <- err
	}()

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("download did not start")
	}
	cancel()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	<-downloaded
	if stats := launcher.Stats(); stats.Launched != 1 || stats.Active() != 0 {
		t.Fatalf("expected child reaped on shutdown, got %+v", stats)
	}
}
