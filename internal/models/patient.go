package models

import "time"

// Patient carries only what the visit workflow reads: identity and the birth
// date used to pick vital-sign thresholds.
type Patient struct {
	PatientID string    `json:"patient_id"`
	FullName  string    `json:"full_name,omitempty"`
	BirthDate time.Time `json:"birth_date"`
}
