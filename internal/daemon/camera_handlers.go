package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"camdl/internal/api"
	"camdl/internal/eventstream"
	"camdl/internal/logging"
	"camdl/internal/relay"
	"camdl/internal/services"
)

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

func (s *apiServer) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	cameraType := strings.ToLower(queryParam(r, "type"))
	ip := queryParam(r, "ip")
	logger := logging.WithContext(r.Context(), s.logger)
	logger.Info("saving camera settings",
		logging.String(logging.FieldCameraType, cameraType),
		logging.String(logging.FieldAddress, ip),
	)

	if err := s.daemon.store.SetLastUsed(r.Context(), cameraType, ip); err != nil {
		logging.WarnWithContext(logger, "camera settings not saved", "settings_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the camera type and address"),
		)
		message := "Failed to save camera settings"
		if errors.Is(err, services.ErrValidation) {
			message = fmt.Sprintf("Failed to save camera settings: %v", err)
		}
		writeServiceError(w, err, message)
		return
	}
	writeJSON(w, http.StatusOK, api.Response{
		Success: true,
		Message: fmt.Sprintf("Camera settings saved for %s", cameraType),
	})
}

func (s *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.daemon.store.Snapshot(r.Context())
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "load camera settings failed", "settings_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the settings database in state_dir"),
		)
		writeServiceError(w, err, fmt.Sprintf("Error: %v", err))
		return
	}
	resp := api.SettingsResponse{
		Response: api.Response{Success: true},
		LastUsed: api.Selection{CameraType: snap.LastUsed.CameraType, IP: snap.LastUsed.IP},
		Cameras:  make(map[string]api.CameraAddress, len(snap.Cameras)),
	}
	for cameraType, ip := range snap.Cameras {
		resp.Cameras[cameraType] = api.CameraAddress{IP: ip}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePing(w http.ResponseWriter, r *http.Request) {
	ip := queryParam(r, "ip")
	if ip == "" {
		writeJSON(w, http.StatusBadRequest, failure("ip is required"))
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("ping request received", logging.String(logging.FieldAddress, ip))
	result := s.daemon.prober.Probe(r.Context(), ip)
	writeJSON(w, http.StatusOK, api.Response{Success: result.Reachable, Message: result.Reason})
}

func (s *apiServer) downloadRequest(w http.ResponseWriter, r *http.Request) (relay.Request, bool) {
	req := relay.Request{CameraType: queryParam(r, "type"), Address: queryParam(r, "ip")}
	switch {
	case req.CameraType == "":
		writeJSON(w, http.StatusBadRequest, failure("type is required"))
		return req, false
	case req.Address == "":
		writeJSON(w, http.StatusBadRequest, failure("ip is required"))
		return req, false
	}
	return req, true
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.downloadRequest(w, r)
	if !ok {
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	logger.Info("download request received",
		logging.String(logging.FieldCameraType, req.CameraType),
		logging.String(logging.FieldAddress, req.Address),
	)

	sink, err := eventstream.NewSSEWriter(w)
	if err != nil {
		logger.Warn("event stream setup failed", logging.Error(err))
		return
	}
	out := s.daemon.runSession(r.Context(), req, sink)
	logger.Debug("download stream closed",
		logging.String("session_id", out.SessionID),
		logging.Bool("disconnected", out.Disconnected),
	)
}

// handleDownloadWS mirrors a download session over a WebSocket. Heartbeats
// become ping frames; the peer's pongs keep the read deadline moving.
func (s *apiServer) handleDownloadWS(w http.ResponseWriter, r *http.Request) {
	req, ok := s.downloadRequest(w, r)
	if !ok {
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	sink := eventstream.NewWSWriter(conn)
	defer sink.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	idle := 3 * s.daemon.cfg.HeartbeatInterval()
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket reader stopped", logging.Error(err))
				}
				return
			}
		}
	}()

	out := s.daemon.runSession(ctx, req, sink)
	logger.Debug("download websocket closed",
		logging.String("session_id", out.SessionID),
		logging.Bool("disconnected", out.Disconnected),
	)
	_ = sink.Close()
	<-readerDone
}
