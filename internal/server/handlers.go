package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Routes() []string { return []string{"GET /health"} }

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DownloadRequest is the body of POST /downloads.
type DownloadRequest struct {
	Name       string `json:"name"`
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author"`
}

// DownloadsHandler exposes download records and lets clients request or abandon downloads.
type DownloadsHandler struct {
	downloads Downloads
	logger    *log.Logger
}

// NewDownloadsHandler creates a [DownloadsHandler].
func NewDownloadsHandler(downloads Downloads, logger *log.Logger) *DownloadsHandler {
	return &DownloadsHandler{downloads: downloads, logger: logger}
}

func (h *DownloadsHandler) Routes() []string {
	return []string{
		"GET /downloads",
		"POST /downloads",
		"GET /downloads/{identifier}",
		"DELETE /downloads/{identifier}",
	}
}

func (h *DownloadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")

	switch {
	case r.Method == http.MethodGet && identifier == "":
		writeJSON(w, http.StatusOK, h.downloads.Records())
	case r.Method == http.MethodGet:
		rec, ok := h.downloads.Record(identifier)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no download for %s", identifier))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case r.Method == http.MethodPost:
		h.request(w, r)
	case r.Method == http.MethodDelete:
		if err := h.downloads.Abandon(identifier); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *DownloadsHandler) request(w http.ResponseWriter, r *http.Request) {
	var body DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	service := models.ServiceAudio
	if body.Service != "" {
		svc, err := models.ParseService(body.Service)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		service = svc
	}

	ref := models.NewResourceRef(body.Name, service, body.Identifier)
	if err := ref.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := models.DownloadMetadata{Title: body.Title, Author: body.Author}
	if err := h.downloads.RequestDownload(r.Context(), ref, meta); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	rec, _ := h.downloads.Record(ref.Identifier)
	h.logger.Debug("download requested", "identifier", ref.Identifier, "status", rec.Status)
	writeJSON(w, http.StatusAccepted, rec)
}

// EventsHandler streams download record updates as Server-Sent Events.
//
// Each event is a JSON encoded [models.DownloadRecord]. The current records are sent first.
type EventsHandler struct {
	downloads Downloads
}

// NewEventsHandler creates an [EventsHandler].
func NewEventsHandler(downloads Downloads) *EventsHandler {
	return &EventsHandler{downloads: downloads}
}

func (h *EventsHandler) Routes() []string { return []string{"GET /events"} }

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	updates, unsubscribe := h.downloads.Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Latest version sent per identifier; older snapshots are skipped.
	sent := make(map[string]models.DownloadRecord)
	for _, rec := range h.downloads.Records() {
		sent[rec.Ref.Identifier] = rec
		if err := writeEvent(w, rec); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if last, seen := sent[rec.Ref.Identifier]; seen && rec.StaleAgainst(last) {
				continue
			}
			sent[rec.Ref.Identifier] = rec
			if err := writeEvent(w, rec); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rec models.DownloadRecord) error {
	data, err := shared.MarshalJSON(rec, false)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: download\ndata: %s\n\n", data)
	return err
}
