package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/store"
	"clinic/visit-service/internal/triage"
)

type triageRequest struct {
	RequestID        string            `json:"request_id"`
	VisitID          string            `json:"visit_id"`
	Vitals           models.VitalSigns `json:"vitals"`
	ChiefComplaint   string            `json:"chief_complaint"`
	PainScale        *int              `json:"pain_scale"`
	Allergies        string            `json:"allergies"`
	CurrentMeds      string            `json:"current_medications"`
	BloodType        string            `json:"blood_type"`
	NurseObservation string            `json:"nurse_observations"`
	Priority         string            `json:"priority"`
}

// triageResponse pairs the stored record with the advisory assessment: which
// readings fall outside the patient's age bracket and the priority those
// findings suggest. The nurse's explicit priority always wins.
type triageResponse struct {
	Triage            models.TriageRecord `json:"triage"`
	Findings          []string            `json:"findings"`
	SuggestedPriority string              `json:"suggested_priority"`
}

func (h *Handler) handleTriages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireRole(w, r, RoleNurse)
	if !ok {
		return
	}

	req, ok := decodeTriageRequest(w, r)
	if !ok {
		return
	}
	if req.VisitID == "" || !isValidUUID(req.VisitID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "visit_id must be a UUID")
		return
	}

	record, _, err := h.store.CreateTriage(r.Context(), store.CreateTriageInput{
		RequestID:        req.RequestID,
		VisitID:          req.VisitID,
		NurseID:          actor.ID,
		Vitals:           req.Vitals,
		ChiefComplaint:   req.ChiefComplaint,
		PainScale:        req.PainScale,
		Allergies:        req.Allergies,
		CurrentMeds:      req.CurrentMeds,
		BloodType:        req.BloodType,
		NurseObservation: req.NurseObservation,
		Priority:         req.Priority,
		OccurredAt:       h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, h.assessTriage(r, record))
}

func (h *Handler) handleTriageSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/triages/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	triageID := parts[0]
	if !isValidUUID(triageID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "triage_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetTriage(w, r, triageID)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.handleUpdateTriage(w, r, triageID)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "complete" && r.Method == http.MethodPost:
		h.handleCompleteTriage(w, r, triageID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTriage(w http.ResponseWriter, r *http.Request, triageID string) {
	if _, ok := requireRole(w, r, RoleNurse, RoleDoctor, RoleAdmin); !ok {
		return
	}
	record, err := h.store.GetTriage(r.Context(), triageID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, h.assessTriage(r, record))
}

func (h *Handler) handleGetVisitTriage(w http.ResponseWriter, r *http.Request, visitID string) {
	if _, ok := requireRole(w, r, RoleNurse, RoleDoctor, RoleAdmin); !ok {
		return
	}
	record, err := h.store.GetVisitTriage(r.Context(), visitID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, h.assessTriage(r, record))
}

func (h *Handler) handleUpdateTriage(w http.ResponseWriter, r *http.Request, triageID string) {
	actor, ok := requireRole(w, r, RoleNurse)
	if !ok {
		return
	}
	req, ok := decodeTriageRequest(w, r)
	if !ok {
		return
	}

	record, _, err := h.store.UpdateTriage(r.Context(), store.UpdateTriageInput{
		RequestID:        req.RequestID,
		TriageID:         triageID,
		NurseID:          actor.ID,
		Vitals:           req.Vitals,
		ChiefComplaint:   req.ChiefComplaint,
		PainScale:        req.PainScale,
		Allergies:        req.Allergies,
		CurrentMeds:      req.CurrentMeds,
		BloodType:        req.BloodType,
		NurseObservation: req.NurseObservation,
		Priority:         req.Priority,
		OccurredAt:       h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, h.assessTriage(r, record))
}

func (h *Handler) handleCompleteTriage(w http.ResponseWriter, r *http.Request, triageID string) {
	actor, ok := requireRole(w, r, RoleNurse)
	if !ok {
		return
	}

	var req struct {
		RequestID string `json:"request_id"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" || !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}

	record, _, err := h.store.CompleteTriage(r.Context(), store.CompleteTriageInput{
		RequestID:  req.RequestID,
		TriageID:   triageID,
		NurseID:    actor.ID,
		OccurredAt: h.clock.Now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func decodeTriageRequest(w http.ResponseWriter, r *http.Request) (triageRequest, bool) {
	var req triageRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return triageRequest{}, false
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.VisitID = strings.TrimSpace(req.VisitID)
	req.ChiefComplaint = strings.TrimSpace(req.ChiefComplaint)
	req.Allergies = strings.TrimSpace(req.Allergies)
	req.CurrentMeds = strings.TrimSpace(req.CurrentMeds)
	req.BloodType = strings.TrimSpace(req.BloodType)
	req.NurseObservation = strings.TrimSpace(req.NurseObservation)
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))

	if req.RequestID == "" || !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return triageRequest{}, false
	}
	if !isValidPriority(req.Priority) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "priority must be alta, media, or baja")
		return triageRequest{}, false
	}
	if req.PainScale != nil && (*req.PainScale < 0 || *req.PainScale > 10) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "pain_scale must be between 0 and 10")
		return triageRequest{}, false
	}
	if err := validateVitals(req.Vitals); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", err.Error())
		return triageRequest{}, false
	}
	return req, true
}

// assessTriage recomputes the advisory findings for the response. A failed
// patient lookup degrades to an empty assessment rather than failing the
// whole request.
func (h *Handler) assessTriage(r *http.Request, record models.TriageRecord) triageResponse {
	resp := triageResponse{Triage: record, Findings: []string{}, SuggestedPriority: models.PriorityBaja}
	patient, err := h.store.GetPatient(r.Context(), record.PatientID)
	if err != nil {
		return resp
	}
	findings := triage.Evaluate(patient.BirthDate, h.clock.Now(), record.Vitals)
	if findings != nil {
		resp.Findings = findings
	}
	resp.SuggestedPriority = triage.SuggestedPriority(findings)
	return resp
}

// validateVitals rejects readings that are physically implausible. Clinical
// range checks against the patient's age bracket happen later and are only
// advisory.
func validateVitals(vitals models.VitalSigns) error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"systolic_bp", vitals.SystolicBP == nil || (*vitals.SystolicBP >= 40 && *vitals.SystolicBP <= 300)},
		{"diastolic_bp", vitals.DiastolicBP == nil || (*vitals.DiastolicBP >= 20 && *vitals.DiastolicBP <= 200)},
		{"heart_rate", vitals.HeartRate == nil || (*vitals.HeartRate >= 20 && *vitals.HeartRate <= 300)},
		{"temperature", vitals.Temperature == nil || (*vitals.Temperature >= 30 && *vitals.Temperature <= 45)},
		{"respiratory_rate", vitals.RespiratoryRate == nil || (*vitals.RespiratoryRate >= 4 && *vitals.RespiratoryRate <= 80)},
		{"oxygen_saturation", vitals.OxygenSaturation == nil || (*vitals.OxygenSaturation >= 50 && *vitals.OxygenSaturation <= 100)},
		{"weight_kg", vitals.WeightKg == nil || (*vitals.WeightKg > 0 && *vitals.WeightKg <= 500)},
		{"height_cm", vitals.HeightCm == nil || (*vitals.HeightCm > 0 && *vitals.HeightCm <= 280)},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%s is out of the accepted range", check.name)
		}
	}
	return nil
}

func isValidPriority(priority string) bool {
	switch priority {
	case models.PriorityAlta, models.PriorityMedia, models.PriorityBaja:
		return true
	default:
		return false
	}
}
