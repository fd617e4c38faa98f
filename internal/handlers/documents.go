// Package handlers exposes the queue service over HTTP. Every failure is written
// as {"error": "..."}; the handlers never panic on a core error.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/Lllllllleong/queuedesk/internal/gcp"
	"github.com/Lllllllleong/queuedesk/internal/models"
	"github.com/Lllllllleong/queuedesk/internal/services"
	"google.golang.org/api/googleapi"
)

// Handler serves the queue API.
type Handler struct {
	queue *services.QueueService
	cfg   *config.Config
}

// New creates a Handler.
func New(queue *services.QueueService, cfg *config.Config) *Handler {
	return &Handler{queue: queue, cfg: cfg}
}

// GetDocument handles GET /api/get_document?id=<id>.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.queue.GetDocument(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetMultipleDocuments handles GET /api/get_multiple_documents?amount=<n>.
func (h *Handler) GetMultipleDocuments(w http.ResponseWriter, r *http.Request) {
	var amount *uint64
	if raw := r.URL.Query().Get("amount"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'amount' in the request: expected a non-negative integer")
			return
		}
		amount = &n
	}

	docs, err := h.queue.GetMultipleDocuments(r.Context(), amount)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// FormConfig handles GET /api/form_config.
func (h *Handler) FormConfig(w http.ResponseWriter, r *http.Request) {
	fields := make([]models.FormField, 0, len(h.cfg.Form.Fields))
	for _, f := range h.cfg.Form.Fields {
		fields = append(fields, models.FormField{Name: f.Name, FieldType: f.FieldType, Required: f.Required})
	}
	writeJSON(w, http.StatusOK, models.FormConfigResponse{
		Queues:     h.cfg.Queue.Queues,
		QueueSlots: h.cfg.Queue.QueueSlots,
		DaysRange:  h.cfg.Queue.DaysRange,
		Fields:     fields,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// statusFor maps a service error to the HTTP status sent with its error body.
func statusFor(err error) int {
	if errors.Is(err, services.ErrMissingID) {
		return http.StatusBadRequest
	}

	switch gcp.KindOf(err) {
	case gcp.KindInvalid:
		return http.StatusBadRequest
	case gcp.KindNotFound:
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code != http.StatusNotFound {
			return http.StatusBadGateway
		}
		return http.StatusNotFound
	case gcp.KindTransport:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case gcp.KindAuth, gcp.KindShape, gcp.KindDecode:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
