package models

import (
	"math"
	"time"
)

// VitalSigns are the nurse-collected readings. Absent readings stay nil and
// are skipped by the validator.
type VitalSigns struct {
	SystolicBP       *int     `json:"systolic_bp,omitempty"`
	DiastolicBP      *int     `json:"diastolic_bp,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	WeightKg         *float64 `json:"weight_kg,omitempty"`
	HeightCm         *float64 `json:"height_cm,omitempty"`
}

// BMI returns the body mass index, or nil when weight or height is missing.
func (v VitalSigns) BMI() *float64 {
	if v.WeightKg == nil || v.HeightCm == nil || *v.HeightCm <= 0 {
		return nil
	}
	heightM := *v.HeightCm / 100
	bmi := math.Round(*v.WeightKg/(heightM*heightM)*100) / 100
	return &bmi
}

type TriageRecord struct {
	TriageID           string     `json:"triage_id"`
	PatientID          string     `json:"patient_id"`
	VisitID            string     `json:"visit_id,omitempty"`
	NurseID            string     `json:"nurse_id"`
	Vitals             VitalSigns `json:"vitals"`
	ChiefComplaint     string     `json:"chief_complaint"`
	PainScale          *int       `json:"pain_scale,omitempty"`
	Allergies          string     `json:"allergies,omitempty"`
	CurrentMedications string     `json:"current_medications,omitempty"`
	BloodType          string     `json:"blood_type,omitempty"`
	NurseObservations  string     `json:"nurse_observations,omitempty"`
	Priority           string     `json:"priority"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

const (
	TriageStatusPending        = "pending"
	TriageStatusCompleted      = "completed"
	TriageStatusInConsultation = "in_consultation"
)

// Priority classifications as assigned by the nurse.
const (
	PriorityAlta  = "alta"
	PriorityMedia = "media"
	PriorityBaja  = "baja"
)
