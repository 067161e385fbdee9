package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/agenda/internal/application"
	"github.com/example/agenda/internal/record"
)

type freeTimeService interface {
	FreeTime(ctx context.Context, start, end time.Time, minGapMinutes int) ([]record.Record, error)
}

type historyService interface {
	Undo(ctx context.Context) (application.HistoryState, bool)
	Redo(ctx context.Context) (application.HistoryState, bool)
	History(ctx context.Context) application.HistoryState
}

type configService interface {
	Config(ctx context.Context) record.Config
	UpdateConfig(ctx context.Context, cfg record.Config) (record.Config, error)
}

// FreeTimeHandler serves GET /free-time.
type FreeTimeHandler struct {
	service   freeTimeService
	responder responder
}

func NewFreeTimeHandler(service freeTimeService, logger *slog.Logger) *FreeTimeHandler {
	return &FreeTimeHandler{service: service, responder: newResponder(logger)}
}

func (h *FreeTimeHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, err := parseQueryTime(query, "start")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := parseQueryTime(query, "end")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if start == nil || end == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("start and end are required"))
		return
	}

	minGap := 0
	if raw := strings.TrimSpace(query.Get("min_gap")); raw != "" {
		minGap, err = strconv.Atoi(raw)
		if err != nil || minGap < 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("min_gap must be a non-negative integer"))
			return
		}
	}

	blocks, err := h.service.FreeTime(r.Context(), *start, *end, minGap)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, freeTimeResponse{Blocks: blocks})
}

// HistoryHandler serves the /history endpoints.
type HistoryHandler struct {
	service   historyService
	responder responder
}

func NewHistoryHandler(service historyService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{service: service, responder: newResponder(logger)}
}

func (h *HistoryHandler) State(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.service.History(r.Context()))
}

func (h *HistoryHandler) Undo(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state, changed := h.service.Undo(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{HistoryState: state, Changed: changed})
}

func (h *HistoryHandler) Redo(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state, changed := h.service.Redo(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{HistoryState: state, Changed: changed})
}

// ConfigHandler serves the /config endpoints.
type ConfigHandler struct {
	service   configService
	responder responder
}

func NewConfigHandler(service configService, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{service: service, responder: newResponder(logger)}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.service.Config(r.Context()))
}

func (h *ConfigHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var cfg record.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	updated, err := h.service.UpdateConfig(r.Context(), cfg)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, updated)
}

type freeTimeResponse struct {
	Blocks []record.Record `json:"blocks"`
}

type historyResponse struct {
	application.HistoryState
	Changed bool `json:"changed"`
}
