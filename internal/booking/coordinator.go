package booking

import (
	"context"
	"time"

	"clinic/visit-service/internal/clock"
	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/scheduling"
	"clinic/visit-service/internal/store"
)

// SlotStore is the slice of the store the coordinator needs.
type SlotStore interface {
	GetVisit(ctx context.Context, visitID string) (models.Visit, error)
	ListDoctorSchedules(ctx context.Context, doctorID string) ([]models.WorkScheduleTemplate, error)
	ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]time.Time, error)
	BookVisit(ctx context.Context, input store.BookVisitInput) (models.Visit, bool, error)
	RescheduleVisit(ctx context.Context, input store.RescheduleInput) (models.Visit, bool, error)
}

// Coordinator sits between the HTTP layer and the store for anything that
// needs the slot computation: it derives offered slots from the doctor's
// templates and current bookings, and refuses to book a start time that is
// not on offer. The database's unique index stays the last line of defense
// for the race two concurrent bookings can still lose.
type Coordinator struct {
	store SlotStore
	clock clock.Clock
}

func NewCoordinator(st SlotStore, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Coordinator{store: st, clock: clk}
}

type BookRequest struct {
	RequestID   string
	PatientID   string
	DoctorID    string
	SpecialtyID string
	ScheduledAt time.Time
	Reason      string
}

// AvailableSlots lists the open start times for a doctor on one date.
func (c *Coordinator) AvailableSlots(ctx context.Context, doctorID, specialtyID string, date time.Time) ([]time.Time, error) {
	templates, err := c.store.ListDoctorSchedules(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	booked, err := c.store.ListBookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return scheduling.AvailableSlots(templates, specialtyID, date, booked), nil
}

// Book validates the requested slot against the doctor's schedule before
// inserting. ErrSlotNotOfferable means the time was never on offer;
// ErrSlotTaken means another booking won the slot.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (models.Visit, bool, error) {
	startAt := req.ScheduledAt.UTC()
	if !startAt.After(c.clock.Now()) {
		return models.Visit{}, false, store.ErrSlotNotOfferable
	}

	templates, err := c.store.ListDoctorSchedules(ctx, req.DoctorID)
	if err != nil {
		return models.Visit{}, false, err
	}
	booked, err := c.store.ListBookedTimes(ctx, req.DoctorID, startAt)
	if err != nil {
		return models.Visit{}, false, err
	}
	if !scheduling.IsOfferedSlot(templates, req.SpecialtyID, startAt, booked) {
		return models.Visit{}, false, store.ErrSlotNotOfferable
	}

	return c.store.BookVisit(ctx, store.BookVisitInput{
		RequestID:   req.RequestID,
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		SpecialtyID: req.SpecialtyID,
		ScheduledAt: startAt,
		Duration:    slotDuration(templates, req.SpecialtyID, startAt),
		Reason:      req.Reason,
		CreatedAt:   c.clock.Now(),
	})
}

// Reschedule applies the same offer check to the new start time.
func (c *Coordinator) Reschedule(ctx context.Context, requestID, visitID, actorID string, newStart time.Time) (models.Visit, bool, error) {
	startAt := newStart.UTC()
	if !startAt.After(c.clock.Now()) {
		return models.Visit{}, false, store.ErrSlotNotOfferable
	}

	visit, err := c.store.GetVisit(ctx, visitID)
	if err != nil {
		return models.Visit{}, false, err
	}
	templates, err := c.store.ListDoctorSchedules(ctx, visit.DoctorID)
	if err != nil {
		return models.Visit{}, false, err
	}
	booked, err := c.store.ListBookedTimes(ctx, visit.DoctorID, startAt)
	if err != nil {
		return models.Visit{}, false, err
	}
	if !scheduling.IsOfferedSlot(templates, visit.SpecialtyID, startAt, booked) {
		return models.Visit{}, false, store.ErrSlotNotOfferable
	}

	return c.store.RescheduleVisit(ctx, store.RescheduleInput{
		RequestID:   requestID,
		VisitID:     visitID,
		ActorID:     actorID,
		ScheduledAt: startAt,
		OccurredAt:  c.clock.Now(),
	})
}

// slotDuration picks the slot length of the template that offers the start
// time, falling back to 30 minutes when none matches exactly.
func slotDuration(templates []models.WorkScheduleTemplate, specialtyID string, startAt time.Time) int {
	for _, tpl := range templates {
		if !tpl.Active || scheduling.ValidateTemplate(tpl) != nil || !scheduling.ValidForDate(tpl, startAt) {
			continue
		}
		if specialtyID != "" && tpl.SpecialtyID != "" && tpl.SpecialtyID != specialtyID {
			continue
		}
		start, _ := scheduling.ParseTimeOfDay(tpl.StartTime)
		end, _ := scheduling.ParseTimeOfDay(tpl.EndTime)
		minute := startAt.Hour()*60 + startAt.Minute()
		if minute >= start && minute+tpl.SlotMinutes <= end && (minute-start)%tpl.SlotMinutes == 0 {
			return tpl.SlotMinutes
		}
	}
	return 30
}
