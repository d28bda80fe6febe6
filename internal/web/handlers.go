package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// healthTimeout bounds the dependency checks of /healthz.
const healthTimeout = 2 * time.Second

// StartResponse is returned by POST /api/imports.
type StartResponse struct {
	ImportID string `json:"import_id"`
}

// handleStartImport accepts a workbook or JSON document as the multipart
// "file" field or as the raw request body and starts a background run.
// Payloads that do not decode, or lack a required section, are rejected
// with 422 before a run is created.
//
// Query parameters: dry_run=true validates without writing; source names
// the payload when it is sent as a raw body.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	payload, source, err := s.readPayload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := core.CheckInput(payload); err != nil {
		respondError(w, r, err)
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	ctx := WithRequestMetadata(r.Context(), r)
	id, err := s.service.StartImport(ctx, source, payload, dryRun)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/imports/"+id)
	writeJSON(w, http.StatusAccepted, StartResponse{ImportID: id})
}

// readPayload reads the upload within the configured size limit.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, "", bodyError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errNoFile
		}
		defer file.Close()

		payload, err := io.ReadAll(file)
		if err != nil {
			return nil, "", bodyError(err)
		}
		if len(payload) == 0 {
			return nil, "", errNoFile
		}
		return payload, header.Filename, nil
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", bodyError(err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, "", errNoFile
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "request body"
	}
	return payload, source, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errNoFile, err)
}

// handleListImports returns recent runs from the history store.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeJSON(w, http.StatusOK, []core.ProgressUpdate{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.opts.Runs.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.ProgressUpdate{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleImportProgress returns the latest progress of one run.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	update, err := s.service.Progress(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// handleImportResult returns the terminal update of a run. A run that is
// still processing answers 202 with its current progress, unless
// wait=true, in which case the request blocks until the run finishes.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		update, err := s.service.Result(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, update)
		return
	}

	update, err := s.service.Progress(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if !update.Terminal() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, update)
}

// handleImportEvents streams run progress via Server-Sent Events.
//
// The event id is the progress percentage. A reconnecting client sends
// Last-Event-ID (or lastEventId) and events at or below it are skipped.
// The stream ends with a "complete" event once the run finishes. A run the
// tracker has already forgotten is replayed from history as its final
// event.
func (s *Server) handleImportEvents(w http.ResponseWriter, r *http.Request) {
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("lastEventId")
	}
	resumeAfter := -1
	if lastEventID != "" {
		if n, err := strconv.Atoi(lastEventID); err == nil {
			resumeAfter = n
		}
	}

	id := chi.URLParam(r, "importID")
	updates, unsubscribe, err := s.service.Subscribe(id)
	if errors.Is(err, core.ErrImportNotFound) {
		updates, unsubscribe, err = s.storedEvents(r.Context(), id)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if update.Progress <= resumeAfter && !update.Terminal() {
				continue
			}

			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", update.Progress, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// storedEvents looks run id up in history and yields its stored update
// as a closed, single-event stream.
func (s *Server) storedEvents(ctx context.Context, id string) (<-chan core.ProgressUpdate, func(), error) {
	update, err := s.service.Progress(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan core.ProgressUpdate, 1)
	ch <- update
	close(ch)
	return ch, func() {}, nil
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string                `json:"status"`
	Database string                `json:"database,omitempty"`
	Imports  core.RunLimiterStatus `json:"imports"`
}

// handleHealth reports the run slot and, when configured, the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Imports: s.service.Limiter().Status()}
	status := http.StatusOK

	if s.opts.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.opts.Database.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}
