package models

import "time"

type Visit struct {
	VisitID        string     `json:"visit_id"`
	PatientID      string     `json:"patient_id"`
	DoctorID       string     `json:"doctor_id"`
	SpecialtyID    string     `json:"specialty_id,omitempty"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Duration       int        `json:"duration_minutes"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	RequestID      string     `json:"request_id,omitempty"`
	TriageAt       *time.Time `json:"triage_at,omitempty"`
	ConsultationAt *time.Time `json:"consultation_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	ConsultationID *string    `json:"consultation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	StatusScheduled      = "scheduled"
	StatusInTriage       = "in_triage"
	StatusReadyForDoctor = "ready_for_doctor"
	StatusInConsultation = "in_consultation"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
	StatusNoShow         = "no_show"
)

// ActiveStatuses are the statuses that occupy the visit's slot.
func ActiveStatuses() []string {
	return []string{StatusScheduled, StatusInTriage, StatusReadyForDoctor, StatusInConsultation}
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}
