package models

import "time"

// WorkScheduleTemplate is a recurring weekly availability rule for one
// doctor, optionally scoped to a specialty. DayOfWeek uses 0=Monday through
// 6=Sunday. Times of day are "HH:MM" strings; empty break fields mean no
// break. A zero MaxPatientsPerDay means no daily cap.
type WorkScheduleTemplate struct {
	ScheduleID        string     `json:"schedule_id"`
	DoctorID          string     `json:"doctor_id"`
	SpecialtyID       string     `json:"specialty_id,omitempty"`
	DayOfWeek         int        `json:"day_of_week"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	SlotMinutes       int        `json:"slot_minutes"`
	BreakStart        string     `json:"break_start,omitempty"`
	BreakEnd          string     `json:"break_end,omitempty"`
	MaxPatientsPerDay int        `json:"max_patients_per_day,omitempty"`
	ValidFrom         *time.Time `json:"valid_from,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
