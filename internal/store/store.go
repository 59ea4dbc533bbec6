package store

import (
	"context"
	"time"

	"clinic/visit-service/internal/models"
)

type BookVisitInput struct {
	RequestID   string
	PatientID   string
	DoctorID    string
	SpecialtyID string
	ScheduledAt time.Time
	Duration    int
	Reason      string
	CreatedAt   time.Time
}

type VisitActionInput struct {
	RequestID string
	VisitID   string
	ActorID   string
	ActorRole string
	Reason    string
	// ConsultationID backs the post-hoc completion path for visits that are
	// still ready_for_doctor.
	ConsultationID string
	OccurredAt     time.Time
}

type RescheduleInput struct {
	RequestID   string
	VisitID     string
	ActorID     string
	ScheduledAt time.Time
	OccurredAt  time.Time
}

type CreateTriageInput struct {
	RequestID        string
	VisitID          string
	NurseID          string
	Vitals           models.VitalSigns
	ChiefComplaint   string
	PainScale        *int
	Allergies        string
	CurrentMeds      string
	BloodType        string
	NurseObservation string
	Priority         string
	OccurredAt       time.Time
}

type UpdateTriageInput struct {
	RequestID        string
	TriageID         string
	NurseID          string
	Vitals           models.VitalSigns
	ChiefComplaint   string
	PainScale        *int
	Allergies        string
	CurrentMeds      string
	BloodType        string
	NurseObservation string
	Priority         string
	OccurredAt       time.Time
}

type CompleteTriageInput struct {
	RequestID  string
	TriageID   string
	NurseID    string
	OccurredAt time.Time
}

type CreateScheduleInput struct {
	RequestID string
	Template  models.WorkScheduleTemplate
	CreatedAt time.Time
}

// VisitStore is the persistence boundary. Mutating calls return a bool that
// is true when the write happened and false when the request_id had already
// been applied and the stored outcome is being replayed.
type VisitStore interface {
	BookVisit(ctx context.Context, input BookVisitInput) (models.Visit, bool, error)
	GetVisit(ctx context.Context, visitID string) (models.Visit, error)
	ListDayVisits(ctx context.Context, doctorID string, date time.Time) ([]models.Visit, error)
	ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]time.Time, error)
	RescheduleVisit(ctx context.Context, input RescheduleInput) (models.Visit, bool, error)
	StartConsultation(ctx context.Context, input VisitActionInput) (models.Visit, bool, error)
	CompleteVisit(ctx context.Context, input VisitActionInput) (models.Visit, bool, error)
	CancelVisit(ctx context.Context, input VisitActionInput) (models.Visit, bool, error)
	MarkNoShow(ctx context.Context, input VisitActionInput) (models.Visit, bool, error)
	ListVisitEvents(ctx context.Context, visitID string) ([]VisitEvent, error)

	CreateTriage(ctx context.Context, input CreateTriageInput) (models.TriageRecord, bool, error)
	UpdateTriage(ctx context.Context, input UpdateTriageInput) (models.TriageRecord, bool, error)
	CompleteTriage(ctx context.Context, input CompleteTriageInput) (models.TriageRecord, bool, error)
	GetTriage(ctx context.Context, triageID string) (models.TriageRecord, error)
	GetVisitTriage(ctx context.Context, visitID string) (models.TriageRecord, error)

	CreateSchedule(ctx context.Context, input CreateScheduleInput) (models.WorkScheduleTemplate, bool, error)
	ListDoctorSchedules(ctx context.Context, doctorID string) ([]models.WorkScheduleTemplate, error)
	DeactivateSchedule(ctx context.Context, scheduleID string) error

	GetPatient(ctx context.Context, patientID string) (models.Patient, error)
	PaymentConfirmed(ctx context.Context, visitID string) (bool, error)
}
