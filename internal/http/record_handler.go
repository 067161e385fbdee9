package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/agenda/internal/application"
	"github.com/example/agenda/internal/record"
	"github.com/example/agenda/internal/scheduler"
)

type recordService interface {
	CreateRecord(ctx context.Context, input application.RecordInput) (application.CreateResult, error)
	CheckConflicts(ctx context.Context, input application.RecordInput) (scheduler.Result, error)
	UpdateRecord(ctx context.Context, id string, patch record.Patch) (application.UpdateResult, error)
	DeleteRecord(ctx context.Context, id string) error
	GetRecord(ctx context.Context, id string) (record.Record, error)
	ListRecords(ctx context.Context, filter application.RecordFilter) ([]record.Record, error)
	ApplyResolution(ctx context.Context, candidateID, existingID string, action scheduler.ResolutionAction) (application.ResolutionOutcome, error)
}

// RecordHandler serves the /records endpoints.
type RecordHandler struct {
	service   recordService
	responder responder
	logger    *slog.Logger
}

func NewRecordHandler(service recordService, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CreateRecord(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if result.Conflicts.HasConflicts {
		handlerLogger(r, h.logger, "RecordHandler").InfoContext(r.Context(), "record created with conflicts",
			"record_id", result.Record.ID,
			"conflicts", len(result.Conflicts.Conflicts),
		)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, recordResponse{
		Record:    result.Record,
		Conflicts: toConflictResult(result.Conflicts),
	})
}

func (h *RecordHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CheckConflicts(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConflictResult(result))
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, recordResponse{Record: rec})
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.UpdateRecord(r.Context(), id, req.toPatch())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, recordResponse{
		Record:    result.Record,
		Conflicts: toConflictResult(result.Conflicts),
	})
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := buildRecordFilter(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	records, err := h.service.ListRecords(r.Context(), filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if records == nil {
		records = []record.Record{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRecordsResponse{Records: records})
}

func (h *RecordHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.ExistingID) == "" || strings.TrimSpace(req.Action) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("existingId and action are required"))
		return
	}

	outcome, err := h.service.ApplyResolution(r.Context(), id, strings.TrimSpace(req.ExistingID), scheduler.ResolutionAction(strings.TrimSpace(req.Action)))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resolutionResponse{
		Action:  outcome.Action,
		Records: outcome.Records,
	})
}

func buildRecordFilter(values url.Values) (application.RecordFilter, error) {
	filter := application.RecordFilter{
		OwnerID:   strings.TrimSpace(values.Get("owner")),
		AreaID:    strings.TrimSpace(values.Get("area")),
		ContextID: strings.TrimSpace(values.Get("context")),
		TypeID:    strings.TrimSpace(values.Get("type")),
	}
	for _, raw := range values["status"] {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Statuses = append(filter.Statuses, record.Status(status))
			}
		}
	}

	var err error
	if filter.From, err = parseQueryTime(values, "from"); err != nil {
		return application.RecordFilter{}, err
	}
	if filter.To, err = parseQueryTime(values, "to"); err != nil {
		return application.RecordFilter{}, err
	}
	return filter, nil
}

func parseQueryTime(values url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return &ts, nil
}

type recordRequest struct {
	ID              string                 `json:"id"`
	OwnerID         string                 `json:"ownerId"`
	Name            string                 `json:"name"`
	AreaID          string                 `json:"areaId"`
	ContextID       string                 `json:"contextId"`
	TypeID          string                 `json:"typeId"`
	Status          record.Status          `json:"status"`
	Priority        record.Priority        `json:"priority"`
	StartTime       *time.Time             `json:"startTime"`
	EndTime         *time.Time             `json:"endTime"`
	DurationMinutes *int                   `json:"durationMinutes"`
	IsAllDay        bool                   `json:"isAllDay"`
	BufferBefore    *record.Buffer         `json:"bufferBefore"`
	BufferAfter     *record.Buffer         `json:"bufferAfter"`
	Checklist       []record.ChecklistItem `json:"checklist"`
	Artifacts       []record.Artifact      `json:"artifacts"`
}

func (r recordRequest) toInput() application.RecordInput {
	return application.RecordInput{
		ID:              strings.TrimSpace(r.ID),
		OwnerID:         strings.TrimSpace(r.OwnerID),
		Name:            r.Name,
		AreaID:          strings.TrimSpace(r.AreaID),
		ContextID:       strings.TrimSpace(r.ContextID),
		TypeID:          strings.TrimSpace(r.TypeID),
		Status:          r.Status,
		Priority:        r.Priority,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		IsAllDay:        r.IsAllDay,
		BufferBefore:    r.BufferBefore,
		BufferAfter:     r.BufferAfter,
		Checklist:       r.Checklist,
		Artifacts:       r.Artifacts,
	}
}

// patchRequest mirrors record.Patch; absent fields are left untouched and
// clearTimes drops start, end and duration first.
type patchRequest struct {
	Name            *string                 `json:"name"`
	AreaID          *string                 `json:"areaId"`
	ContextID       *string                 `json:"contextId"`
	TypeID          *string                 `json:"typeId"`
	Status          *record.Status          `json:"status"`
	Priority        *record.Priority        `json:"priority"`
	StartTime       *time.Time              `json:"startTime"`
	EndTime         *time.Time              `json:"endTime"`
	DurationMinutes *int                    `json:"durationMinutes"`
	IsAllDay        *bool                   `json:"isAllDay"`
	ClearTimes      bool                    `json:"clearTimes"`
	BufferBefore    *record.Buffer          `json:"bufferBefore"`
	BufferAfter     *record.Buffer          `json:"bufferAfter"`
	Checklist       *[]record.ChecklistItem `json:"checklist"`
	Artifacts       *[]record.Artifact      `json:"artifacts"`
}

func (r patchRequest) toPatch() record.Patch {
	return record.Patch{
		Name:            r.Name,
		AreaID:          r.AreaID,
		ContextID:       r.ContextID,
		TypeID:          r.TypeID,
		Status:          r.Status,
		Priority:        r.Priority,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		IsAllDay:        r.IsAllDay,
		ClearTimes:      r.ClearTimes,
		BufferBefore:    r.BufferBefore,
		BufferAfter:     r.BufferAfter,
		Checklist:       r.Checklist,
		Artifacts:       r.Artifacts,
	}
}

type resolutionRequest struct {
	ExistingID string `json:"existingId"`
	Action     string `json:"action"`
}

type recordResponse struct {
	Record    record.Record     `json:"record"`
	Conflicts *scheduler.Result `json:"conflicts,omitempty"`
}

type listRecordsResponse struct {
	Records []record.Record `json:"records"`
}

type resolutionResponse struct {
	Action  scheduler.ResolutionAction `json:"action"`
	Records []record.Record            `json:"records"`
}

// toConflictResult normalizes a detection result so that conflicts always
// encode as an array.
func toConflictResult(result scheduler.Result) *scheduler.Result {
	if result.Conflicts == nil {
		result.Conflicts = []scheduler.Conflict{}
	}
	return &result
}
