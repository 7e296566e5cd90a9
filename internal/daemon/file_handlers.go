package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"camdl/internal/api"
	"camdl/internal/downloads"
	"camdl/internal/logging"
)

func (s *apiServer) handleCountFiles(w http.ResponseWriter, r *http.Request) {
	dir := s.daemon.cfg.Paths.DownloadDir
	counts, err := downloads.Count(dir)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "count files failed", "files_count_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check download_dir permissions"),
		)
		writeJSON(w, http.StatusInternalServerError, api.FilesResponse{Response: failure(fmt.Sprintf("Error: %v", err))})
		return
	}
	resp := api.FilesResponse{
		Response:   api.Response{Success: true},
		Images:     counts.Images,
		Videos:     counts.Videos,
		Other:      counts.Other,
		TotalBytes: counts.TotalBytes,
	}
	if usage, err := downloads.Usage(dir); err == nil {
		resp.FreeBytes = usage.FreeBytes
	} else {
		s.logger.Debug("disk usage unavailable", logging.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), s.logger)
	entries, err := downloads.List(s.daemon.cfg.Paths.DownloadDir)
	if err != nil {
		logging.ErrorWithContext(logger, "list download dir failed", "zip_list_failed", logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, failure(fmt.Sprintf("Error creating ZIP archive: %v", err)))
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusNotFound, failure("No files available to download"))
		return
	}

	name := downloads.ArchiveName(time.Now())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	if err := downloads.WriteZip(w, entries); err != nil && !errors.Is(err, downloads.ErrEmpty) {
		// Headers are already sent; the client sees a truncated archive.
		logging.WarnWithContext(logger, "zip stream aborted", "zip_stream_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "client received an incomplete archive"),
		)
		panic(http.ErrAbortHandler)
	}
	logger.Info("zip archive sent", logging.String("archive", name), logging.Int("files", len(entries)))
}

func (s *apiServer) handleDeleteFiles(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), s.logger)
	deleted, err := downloads.DeleteAll(s.daemon.cfg.Paths.DownloadDir)
	if err != nil {
		logging.ErrorWithContext(logger, "delete files failed", "files_delete_failed",
			logging.Error(err),
			logging.Int("deleted", deleted),
		)
		writeJSON(w, http.StatusInternalServerError, api.DeleteResponse{
			Response:     failure(fmt.Sprintf("Error: %v", err)),
			DeletedCount: deleted,
		})
		return
	}
	message := "No files to delete"
	if deleted > 0 {
		message = fmt.Sprintf("Successfully deleted %d files", deleted)
	}
	logger.Info("download dir cleared", logging.Int("deleted", deleted))
	writeJSON(w, http.StatusOK, api.DeleteResponse{
		Response:     api.Response{Success: true, Message: message},
		DeletedCount: deleted,
	})
}
