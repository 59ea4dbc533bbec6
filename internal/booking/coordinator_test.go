package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic/visit-service/internal/clock"
	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/store"
)

type fakeSlotStore struct {
	templates []models.WorkScheduleTemplate
	booked    []time.Time
	visits    map[string]models.Visit

	bookFn       func(store.BookVisitInput) (models.Visit, bool, error)
	rescheduleFn func(store.RescheduleInput) (models.Visit, bool, error)
}

func (f *fakeSlotStore) GetVisit(ctx context.Context, visitID string) (models.Visit, error) {
	visit, ok := f.visits[visitID]
	if !ok {
		return models.Visit{}, store.ErrVisitNotFound
	}
	return visit, nil
}

func (f *fakeSlotStore) ListDoctorSchedules(ctx context.Context, doctorID string) ([]models.WorkScheduleTemplate, error) {
	return f.templates, nil
}

func (f *fakeSlotStore) ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]time.Time, error) {
	return f.booked, nil
}

func (f *fakeSlotStore) BookVisit(ctx context.Context, input store.BookVisitInput) (models.Visit, bool, error) {
	if f.bookFn != nil {
		return f.bookFn(input)
	}
	return models.Visit{
		VisitID:     "visit-1",
		PatientID:   input.PatientID,
		DoctorID:    input.DoctorID,
		ScheduledAt: input.ScheduledAt,
		Duration:    input.Duration,
		Status:      models.StatusScheduled,
	}, true, nil
}

func (f *fakeSlotStore) RescheduleVisit(ctx context.Context, input store.RescheduleInput) (models.Visit, bool, error) {
	if f.rescheduleFn != nil {
		return f.rescheduleFn(input)
	}
	return models.Visit{VisitID: input.VisitID, ScheduledAt: input.ScheduledAt, Status: models.StatusScheduled}, true, nil
}

func mondayTemplate() models.WorkScheduleTemplate {
	return models.WorkScheduleTemplate{
		ScheduleID:  "sched-1",
		DoctorID:    "doc-1",
		DayOfWeek:   0,
		StartTime:   "09:00",
		EndTime:     "12:00",
		SlotMinutes: 30,
		BreakStart:  "10:00",
		BreakEnd:    "10:30",
		Active:      true,
	}
}

// 2025-03-03 is a Monday.
var testNow = time.Date(2025, time.March, 2, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(st *fakeSlotStore) *Coordinator {
	return NewCoordinator(st, clock.FixedAt(testNow))
}

func TestAvailableSlots(t *testing.T) {
	st := &fakeSlotStore{templates: []models.WorkScheduleTemplate{mondayTemplate()}}
	c := newTestCoordinator(st)

	monday := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	slots, err := c.AvailableSlots(context.Background(), "doc-1", "", monday)
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("got %d slots, want 5: %v", len(slots), slots)
	}
}

func TestBookOfferedSlot(t *testing.T) {
	st := &fakeSlotStore{templates: []models.WorkScheduleTemplate{mondayTemplate()}}
	c := newTestCoordinator(st)

	visit, created, err := c.Book(context.Background(), BookRequest{
		RequestID:   "req-1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ScheduledAt: time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if !created {
		t.Fatalf("expected created booking")
	}
	if visit.Duration != 30 {
		t.Fatalf("duration from template: got %d, want 30", visit.Duration)
	}
}

func TestBookRejectsUnofferedSlot(t *testing.T) {
	st := &fakeSlotStore{templates: []models.WorkScheduleTemplate{mondayTemplate()}}
	c := newTestCoordinator(st)

	cases := []struct {
		name string
		at   time.Time
	}{
		{"inside break", time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)},
		{"off grid", time.Date(2025, time.March, 3, 9, 15, 0, 0, time.UTC)},
		{"outside window", time.Date(2025, time.March, 3, 13, 0, 0, 0, time.UTC)},
		{"wrong weekday", time.Date(2025, time.March, 4, 9, 30, 0, 0, time.UTC)},
		{"in the past", time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)},
	}
	for _, tt := range cases {
		_, _, err := c.Book(context.Background(), BookRequest{
			RequestID:   "req-1",
			PatientID:   "pat-1",
			DoctorID:    "doc-1",
			ScheduledAt: tt.at,
		})
		if !errors.Is(err, store.ErrSlotNotOfferable) {
			t.Fatalf("%s: got %v, want ErrSlotNotOfferable", tt.name, err)
		}
	}
}

func TestBookRejectsBookedSlot(t *testing.T) {
	slot := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	st := &fakeSlotStore{
		templates: []models.WorkScheduleTemplate{mondayTemplate()},
		booked:    []time.Time{slot},
	}
	c := newTestCoordinator(st)

	_, _, err := c.Book(context.Background(), BookRequest{
		RequestID:   "req-1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ScheduledAt: slot,
	})
	if !errors.Is(err, store.ErrSlotNotOfferable) {
		t.Fatalf("already booked slot: got %v, want ErrSlotNotOfferable", err)
	}
}

func TestBookSurfacesSlotConflict(t *testing.T) {
	st := &fakeSlotStore{templates: []models.WorkScheduleTemplate{mondayTemplate()}}
	st.bookFn = func(store.BookVisitInput) (models.Visit, bool, error) {
		return models.Visit{}, false, store.ErrSlotTaken
	}
	c := newTestCoordinator(st)

	_, _, err := c.Book(context.Background(), BookRequest{
		RequestID:   "req-1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ScheduledAt: time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC),
	})
	if !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("concurrent conflict: got %v, want ErrSlotTaken", err)
	}
}

func TestRescheduleChecksNewSlot(t *testing.T) {
	st := &fakeSlotStore{
		templates: []models.WorkScheduleTemplate{mondayTemplate()},
		visits: map[string]models.Visit{
			"visit-1": {VisitID: "visit-1", DoctorID: "doc-1", Status: models.StatusScheduled},
		},
	}
	c := newTestCoordinator(st)

	_, _, err := c.Reschedule(context.Background(), "req-1", "visit-1", "pat-1",
		time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC))
	if !errors.Is(err, store.ErrSlotNotOfferable) {
		t.Fatalf("slot in break: got %v, want ErrSlotNotOfferable", err)
	}

	visit, created, err := c.Reschedule(context.Background(), "req-1", "visit-1", "pat-1",
		time.Date(2025, time.March, 3, 11, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !created || !visit.ScheduledAt.Equal(time.Date(2025, time.March, 3, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reschedule result: created=%v at=%v", created, visit.ScheduledAt)
	}
}
