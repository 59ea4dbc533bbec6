package scheduling

import (
	"testing"
	"time"

	"clinic/visit-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
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
		ValidFrom:   datePtr(2025, time.January, 1),
		ValidUntil:  datePtr(2025, time.December, 31),
		Active:      true,
	}
}

func slotTimes(day time.Time, hhmm ...string) []time.Time {
	var out []time.Time
	for _, value := range hhmm {
		minute, err := ParseTimeOfDay(value)
		if err != nil {
			panic(err)
		}
		out = append(out, day.Add(time.Duration(minute)*time.Minute))
	}
	return out
}

func TestAvailableSlotsSkipsBreak(t *testing.T) {
	monday := date(2025, time.March, 3)
	got := AvailableSlots([]models.WorkScheduleTemplate{mondayTemplate()}, "", monday, nil)
	want := slotTimes(monday, "09:00", "09:30", "10:30", "11:00", "11:30")

	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAvailableSlotsExcludesBooked(t *testing.T) {
	monday := date(2025, time.March, 3)
	booked := slotTimes(monday, "09:30", "11:00")
	got := AvailableSlots([]models.WorkScheduleTemplate{mondayTemplate()}, "", monday, booked)

	for _, slot := range got {
		for _, taken := range booked {
			if slot.Equal(taken) {
				t.Fatalf("booked slot %v offered", slot)
			}
		}
	}
	if len(got) != 3 {
		t.Fatalf("got %d slots, want 3: %v", len(got), got)
	}
}

func TestAvailableSlotsWrongWeekday(t *testing.T) {
	tuesday := date(2025, time.March, 4)
	if got := AvailableSlots([]models.WorkScheduleTemplate{mondayTemplate()}, "", tuesday, nil); len(got) != 0 {
		t.Fatalf("expected no slots on wrong weekday, got %v", got)
	}
}

func TestAvailableSlotsValidityWindow(t *testing.T) {
	tpl := mondayTemplate()
	tpl.ValidFrom = datePtr(2025, time.June, 1)

	before := date(2025, time.March, 3)
	if got := AvailableSlots([]models.WorkScheduleTemplate{tpl}, "", before, nil); len(got) != 0 {
		t.Fatalf("expected no slots before validity start, got %v", got)
	}

	tpl = mondayTemplate()
	tpl.ValidUntil = datePtr(2025, time.February, 1)
	if got := AvailableSlots([]models.WorkScheduleTemplate{tpl}, "", before, nil); len(got) != 0 {
		t.Fatalf("expected no slots after validity end, got %v", got)
	}
}

func TestAvailableSlotsNoTemplates(t *testing.T) {
	if got := AvailableSlots(nil, "", date(2025, time.March, 3), nil); got != nil {
		t.Fatalf("expected nil for empty template set, got %v", got)
	}
}

func TestAvailableSlotsNoBreak(t *testing.T) {
	tpl := mondayTemplate()
	tpl.BreakStart = ""
	tpl.BreakEnd = ""
	got := AvailableSlots([]models.WorkScheduleTemplate{tpl}, "", date(2025, time.March, 3), nil)
	if len(got) != 6 {
		t.Fatalf("got %d slots, want 6: %v", len(got), got)
	}
}

func TestAvailableSlotsSpecialtyPrecedence(t *testing.T) {
	monday := date(2025, time.March, 3)
	general := mondayTemplate()
	specific := mondayTemplate()
	specific.ScheduleID = "sched-2"
	specific.SpecialtyID = "cardio"
	specific.StartTime = "14:00"
	specific.EndTime = "16:00"
	specific.BreakStart = ""
	specific.BreakEnd = ""
	templates := []models.WorkScheduleTemplate{general, specific}

	got := AvailableSlots(templates, "cardio", monday, nil)
	if len(got) != 4 {
		t.Fatalf("got %d slots, want 4: %v", len(got), got)
	}
	for _, slot := range got {
		if slot.Hour() < 14 {
			t.Fatalf("general template leaked into specialty request: %v", slot)
		}
	}

	// No specific template for this specialty: fall back to the general one.
	got = AvailableSlots(templates, "derma", monday, nil)
	if len(got) != 5 {
		t.Fatalf("fallback: got %d slots, want 5: %v", len(got), got)
	}
}

func TestAvailableSlotsSkipsMalformedTemplate(t *testing.T) {
	monday := date(2025, time.March, 3)
	bad := mondayTemplate()
	bad.ScheduleID = "sched-bad"
	bad.StartTime = "13:00"
	bad.EndTime = "11:00"

	got := AvailableSlots([]models.WorkScheduleTemplate{bad, mondayTemplate()}, "", monday, nil)
	if len(got) != 5 {
		t.Fatalf("malformed template should be skipped, got %d slots: %v", len(got), got)
	}
}

func TestAvailableSlotsDeterministic(t *testing.T) {
	monday := date(2025, time.March, 3)
	templates := []models.WorkScheduleTemplate{mondayTemplate()}
	first := AvailableSlots(templates, "", monday, nil)
	second := AvailableSlots(templates, "", monday, nil)
	if len(first) != len(second) {
		t.Fatalf("slot counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("slot %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestAvailableSlotsDailyCap(t *testing.T) {
	monday := date(2025, time.March, 3)
	tpl := mondayTemplate()
	tpl.MaxPatientsPerDay = 3

	got := AvailableSlots([]models.WorkScheduleTemplate{tpl}, "", monday, nil)
	if len(got) != 3 {
		t.Fatalf("got %d slots, want 3 under cap: %v", len(got), got)
	}

	booked := slotTimes(monday, "09:00", "09:30", "10:30")
	if got := AvailableSlots([]models.WorkScheduleTemplate{tpl}, "", monday, booked); len(got) != 0 {
		t.Fatalf("cap reached, expected no slots, got %v", got)
	}
}

func TestIsOfferedSlot(t *testing.T) {
	monday := date(2025, time.March, 3)
	templates := []models.WorkScheduleTemplate{mondayTemplate()}

	offered := slotTimes(monday, "09:30")[0]
	if !IsOfferedSlot(templates, "", offered, nil) {
		t.Fatalf("expected %v to be offered", offered)
	}

	inBreak := slotTimes(monday, "10:00")[0]
	if IsOfferedSlot(templates, "", inBreak, nil) {
		t.Fatalf("slot inside break must not be offered")
	}

	if IsOfferedSlot(templates, "", offered, []time.Time{offered}) {
		t.Fatalf("booked slot must not be offered")
	}
}

func TestValidateTemplate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.WorkScheduleTemplate)
		valid  bool
	}{
		{"ok", func(*models.WorkScheduleTemplate) {}, true},
		{"start after end", func(tpl *models.WorkScheduleTemplate) { tpl.StartTime = "13:00"; tpl.EndTime = "11:00" }, false},
		{"zero slot duration", func(tpl *models.WorkScheduleTemplate) { tpl.SlotMinutes = 0 }, false},
		{"break outside window", func(tpl *models.WorkScheduleTemplate) { tpl.BreakStart = "08:00"; tpl.BreakEnd = "08:30" }, false},
		{"break reversed", func(tpl *models.WorkScheduleTemplate) { tpl.BreakStart = "11:00"; tpl.BreakEnd = "10:00" }, false},
		{"half break", func(tpl *models.WorkScheduleTemplate) { tpl.BreakEnd = "" }, false},
		{"validity reversed", func(tpl *models.WorkScheduleTemplate) {
			tpl.ValidFrom = datePtr(2025, time.December, 1)
			tpl.ValidUntil = datePtr(2025, time.January, 1)
		}, false},
		{"bad weekday", func(tpl *models.WorkScheduleTemplate) { tpl.DayOfWeek = 7 }, false},
		{"bad time format", func(tpl *models.WorkScheduleTemplate) { tpl.StartTime = "9am" }, false},
	}

	for _, tt := range cases {
		tpl := mondayTemplate()
		tt.mutate(&tpl)
		err := ValidateTemplate(tpl)
		if tt.valid && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestWeekday(t *testing.T) {
	if got := Weekday(date(2025, time.March, 3)); got != 0 {
		t.Fatalf("2025-03-03 is a Monday, got %d", got)
	}
	if got := Weekday(date(2025, time.March, 9)); got != 6 {
		t.Fatalf("2025-03-09 is a Sunday, got %d", got)
	}
}
