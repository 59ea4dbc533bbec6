package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinic/visit-service/internal/booking"
	"clinic/visit-service/internal/clock"
	"clinic/visit-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store       store.VisitStore
	coordinator *booking.Coordinator
	clock       clock.Clock
}

func NewHandler(st store.VisitStore, coordinator *booking.Coordinator, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Handler{store: st, coordinator: coordinator, clock: clk}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/availability", h.handleAvailability)
	mux.HandleFunc("/api/visits", h.handleVisits)
	mux.HandleFunc("/api/visits/", h.handleVisitSubroutes)
	mux.HandleFunc("/api/triages", h.handleTriages)
	mux.HandleFunc("/api/triages/", h.handleTriageSubroutes)
	mux.HandleFunc("/api/schedules", h.handleSchedules)
	mux.HandleFunc("/api/schedules/", h.handleScheduleSubroutes)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	dateRaw := strings.TrimSpace(r.URL.Query().Get("date"))
	specialtyID := strings.TrimSpace(r.URL.Query().Get("specialty_id"))
	if doctorID == "" || dateRaw == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id and date are required")
		return
	}
	if !isValidUUID(doctorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	date, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.coordinator.AvailableSlots(r.Context(), doctorID, specialtyID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      dateRaw,
		"slots":     slots,
	})
}

type bookVisitRequest struct {
	RequestID   string `json:"request_id"`
	PatientID   string `json:"patient_id"`
	DoctorID    string `json:"doctor_id"`
	SpecialtyID string `json:"specialty_id"`
	ScheduledAt string `json:"scheduled_at"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleVisits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleBookVisit(w, r)
	case http.MethodGet:
		h.handleListVisits(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBookVisit(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	var req bookVisitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SpecialtyID = strings.TrimSpace(req.SpecialtyID)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.RequestID == "" || req.PatientID == "" || req.DoctorID == "" || req.ScheduledAt == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, patient_id, doctor_id, and scheduled_at are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.PatientID) || !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, patient_id, and doctor_id must be UUIDs")
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "scheduled_at must be an RFC3339 timestamp")
		return
	}

	visit, _, err := h.coordinator.Book(r.Context(), booking.BookRequest{
		RequestID:   req.RequestID,
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		SpecialtyID: req.SpecialtyID,
		ScheduledAt: scheduledAt,
		Reason:      req.Reason,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleListVisits(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	dateRaw := strings.TrimSpace(r.URL.Query().Get("date"))
	if doctorID == "" || dateRaw == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id and date are required")
		return
	}
	if !isValidUUID(doctorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	date, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	visits, err := h.store.ListDayVisits(r.Context(), doctorID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visits)
}

func (h *Handler) handleVisitSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/visits/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	visitID := parts[0]
	if !isValidUUID(visitID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "visit_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetVisit(w, r, visitID)
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		h.handleVisitEvents(w, r, visitID)
	case len(parts) == 2 && parts[1] == "triage" && r.Method == http.MethodGet:
		h.handleGetVisitTriage(w, r, visitID)
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		h.handleVisitAction(w, r, visitID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetVisit(w http.ResponseWriter, r *http.Request, visitID string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	visit, err := h.store.GetVisit(r.Context(), visitID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleVisitEvents(w http.ResponseWriter, r *http.Request, visitID string) {
	if _, ok := requireRole(w, r, RoleNurse, RoleDoctor, RoleAdmin); !ok {
		return
	}
	events, err := h.store.ListVisitEvents(r.Context(), visitID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleVisitAction(w http.ResponseWriter, r *http.Request, visitID, action string) {
	switch action {
	case "reschedule":
		h.handleReschedule(w, r, visitID)
	case "start-consultation":
		h.handleStartConsultation(w, r, visitID)
	case "complete":
		h.handleCompleteVisit(w, r, visitID)
	case "cancel":
		h.handleCancelVisit(w, r, visitID)
	case "no-show":
		h.handleNoShow(w, r, visitID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type visitActionRequest struct {
	RequestID      string `json:"request_id"`
	Reason         string `json:"reason"`
	ScheduledAt    string `json:"scheduled_at"`
	ConsultationID string `json:"consultation_id"`
}

func decodeActionRequest(w http.ResponseWriter, r *http.Request) (visitActionRequest, bool) {
	var req visitActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return visitActionRequest{}, false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Reason = strings.TrimSpace(req.Reason)
	req.ConsultationID = strings.TrimSpace(req.ConsultationID)
	if req.RequestID == "" || !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return visitActionRequest{}, false
	}
	return req, true
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}
	if req.ScheduledAt == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "scheduled_at is required")
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "scheduled_at must be an RFC3339 timestamp")
		return
	}

	visit, _, err := h.coordinator.Reschedule(r.Context(), req.RequestID, visitID, actor.ID, scheduledAt)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleStartConsultation(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireRole(w, r, RoleDoctor)
	if !ok {
		return
	}
	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}

	visit, _, err := h.store.StartConsultation(r.Context(), store.VisitActionInput{
		RequestID:  req.RequestID,
		VisitID:    visitID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleCompleteVisit(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireRole(w, r, RoleDoctor, RoleAdmin)
	if !ok {
		return
	}
	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}

	visit, _, err := h.store.CompleteVisit(r.Context(), store.VisitActionInput{
		RequestID:      req.RequestID,
		VisitID:        visitID,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		Reason:         req.Reason,
		ConsultationID: req.ConsultationID,
		OccurredAt:     h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleCancelVisit(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}
	// Every cancellation carries an audit note.
	if req.Reason == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "reason is required")
		return
	}

	visit, _, err := h.store.CancelVisit(r.Context(), store.VisitActionInput{
		RequestID:  req.RequestID,
		VisitID:    visitID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     req.Reason,
		OccurredAt: h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleNoShow(w http.ResponseWriter, r *http.Request, visitID string) {
	actor, ok := requireRole(w, r, RoleNurse, RoleDoctor, RoleAdmin)
	if !ok {
		return
	}
	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}

	visit, _, err := h.store.MarkNoShow(r.Context(), store.VisitActionInput{
		RequestID:  req.RequestID,
		VisitID:    visitID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     req.Reason,
		OccurredAt: h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	var guard *store.GuardError
	if errors.As(err, &guard) {
		status := http.StatusConflict
		if guard == store.ErrWrongDoctor {
			status = http.StatusForbidden
		}
		return status, guard.Code, guard.Reason
	}

	switch {
	case errors.Is(err, store.ErrVisitNotFound):
		return http.StatusNotFound, "visit_not_found", "visit not found"
	case errors.Is(err, store.ErrTriageNotFound):
		return http.StatusNotFound, "triage_not_found", "triage record not found"
	case errors.Is(err, store.ErrScheduleNotFound):
		return http.StatusNotFound, "schedule_not_found", "work schedule not found"
	case errors.Is(err, store.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found", "patient not found"
	case errors.Is(err, store.ErrSlotTaken):
		return http.StatusConflict, "slot_taken", "slot already booked"
	case errors.Is(err, store.ErrSlotNotOfferable):
		return http.StatusConflict, "slot_not_offered", "slot is not offered for this doctor and date"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
