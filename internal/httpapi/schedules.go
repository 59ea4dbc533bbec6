package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/scheduling"
	"clinic/visit-service/internal/store"
)

type scheduleRequest struct {
	RequestID         string     `json:"request_id"`
	DoctorID          string     `json:"doctor_id"`
	SpecialtyID       string     `json:"specialty_id"`
	DayOfWeek         int        `json:"day_of_week"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	SlotMinutes       int        `json:"slot_minutes"`
	BreakStart        string     `json:"break_start"`
	BreakEnd          string     `json:"break_end"`
	MaxPatientsPerDay int        `json:"max_patients_per_day"`
	ValidFrom         *time.Time `json:"valid_from"`
	ValidUntil        *time.Time `json:"valid_until"`
}

func (h *Handler) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateSchedule(w, r)
	case http.MethodGet:
		h.handleListSchedules(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, RoleAdmin); !ok {
		return
	}

	var req scheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SpecialtyID = strings.TrimSpace(req.SpecialtyID)
	if req.RequestID == "" || !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.DoctorID == "" || !isValidUUID(req.DoctorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}

	template := models.WorkScheduleTemplate{
		DoctorID:          req.DoctorID,
		SpecialtyID:       req.SpecialtyID,
		DayOfWeek:         req.DayOfWeek,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		SlotMinutes:       req.SlotMinutes,
		BreakStart:        req.BreakStart,
		BreakEnd:          req.BreakEnd,
		MaxPatientsPerDay: req.MaxPatientsPerDay,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		Active:            true,
	}
	if err := scheduling.ValidateTemplate(template); err != nil {
		writeError(w, req.RequestID, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
		return
	}

	schedule, _, err := h.store.CreateSchedule(r.Context(), store.CreateScheduleInput{
		RequestID: req.RequestID,
		Template:  template,
		CreatedAt: h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if doctorID == "" || !isValidUUID(doctorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}
	schedules, err := h.store.ListDoctorSchedules(r.Context(), doctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if schedules == nil {
		schedules = []models.WorkScheduleTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

func (h *Handler) handleScheduleSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	scheduleID := parts[0]
	if !isValidUUID(scheduleID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "schedule_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDeactivateSchedule(w, r, scheduleID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Deactivation stops the template from offering future slots. Visits already
// booked under it are untouched.
func (h *Handler) handleDeactivateSchedule(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if _, ok := requireRole(w, r, RoleAdmin); !ok {
		return
	}
	if err := h.store.DeactivateSchedule(r.Context(), scheduleID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedule_id": scheduleID, "active": false})
}
