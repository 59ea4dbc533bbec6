package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"clinic/visit-service/internal/models"
)

var (
	ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM")
	ErrInvalidDayOfWeek = errors.New("day of week must be 0 (Monday) through 6 (Sunday)")
)

// ConfigError reports a contradictory work-schedule template. It is raised at
// template creation time; the slot walk itself only skips bad templates.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid schedule %s: %s", e.Field, e.Reason)
}

// ParseTimeOfDay converts "HH:MM" to minutes since midnight.
func ParseTimeOfDay(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, ErrInvalidTimeOfDay
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// Weekday maps a date to the template convention: 0=Monday through 6=Sunday.
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// ValidateTemplate rejects contradictory templates: start at or after end,
// non-positive slot duration, a break outside the working window, or a
// validity window that ends before it starts.
func ValidateTemplate(tpl models.WorkScheduleTemplate) error {
	if tpl.DayOfWeek < 0 || tpl.DayOfWeek > 6 {
		return &ConfigError{Field: "day_of_week", Reason: ErrInvalidDayOfWeek.Error()}
	}
	start, err := ParseTimeOfDay(tpl.StartTime)
	if err != nil {
		return &ConfigError{Field: "start_time", Reason: err.Error()}
	}
	end, err := ParseTimeOfDay(tpl.EndTime)
	if err != nil {
		return &ConfigError{Field: "end_time", Reason: err.Error()}
	}
	if start >= end {
		return &ConfigError{Field: "start_time", Reason: "start time must be before end time"}
	}
	if tpl.SlotMinutes <= 0 {
		return &ConfigError{Field: "slot_minutes", Reason: "slot duration must be positive"}
	}
	if (tpl.BreakStart == "") != (tpl.BreakEnd == "") {
		return &ConfigError{Field: "break_start", Reason: "break start and end must both be set"}
	}
	if tpl.BreakStart != "" {
		breakStart, err := ParseTimeOfDay(tpl.BreakStart)
		if err != nil {
			return &ConfigError{Field: "break_start", Reason: err.Error()}
		}
		breakEnd, err := ParseTimeOfDay(tpl.BreakEnd)
		if err != nil {
			return &ConfigError{Field: "break_end", Reason: err.Error()}
		}
		if breakStart >= breakEnd {
			return &ConfigError{Field: "break_start", Reason: "break start must be before break end"}
		}
		if breakStart < start || breakEnd > end {
			return &ConfigError{Field: "break_start", Reason: "break must lie within the working window"}
		}
	}
	if tpl.MaxPatientsPerDay < 0 {
		return &ConfigError{Field: "max_patients_per_day", Reason: "daily cap cannot be negative"}
	}
	if tpl.ValidFrom != nil && tpl.ValidUntil != nil && tpl.ValidFrom.After(*tpl.ValidUntil) {
		return &ConfigError{Field: "valid_from", Reason: "validity window start must not be after its end"}
	}
	return nil
}

// ValidForDate reports whether the template governs the given calendar date:
// right weekday and inside the validity window.
func ValidForDate(tpl models.WorkScheduleTemplate, date time.Time) bool {
	if tpl.DayOfWeek != Weekday(date) {
		return false
	}
	day := dateOnly(date)
	if tpl.ValidFrom != nil && day.Before(dateOnly(*tpl.ValidFrom)) {
		return false
	}
	if tpl.ValidUntil != nil && day.After(dateOnly(*tpl.ValidUntil)) {
		return false
	}
	return true
}

// AvailableSlots computes the ordered bookable start times for one doctor on
// one calendar date. templates are that doctor's schedule templates; booked
// are the start times of the doctor's visits on that date in slot-occupying
// statuses. When specialtyID is set and the weekday has templates for that
// specialty, those templates win outright over the general ones.
//
// A malformed template never fails the whole computation; it is skipped so
// the doctor's remaining templates keep serving.
func AvailableSlots(templates []models.WorkScheduleTemplate, specialtyID string, date time.Time, booked []time.Time) []time.Time {
	var candidates []models.WorkScheduleTemplate
	for _, tpl := range templates {
		if !tpl.Active || !ValidForDate(tpl, date) {
			continue
		}
		if ValidateTemplate(tpl) != nil {
			continue
		}
		candidates = append(candidates, tpl)
	}

	if specialtyID != "" {
		var specific []models.WorkScheduleTemplate
		var general []models.WorkScheduleTemplate
		for _, tpl := range candidates {
			switch tpl.SpecialtyID {
			case specialtyID:
				specific = append(specific, tpl)
			case "":
				general = append(general, tpl)
			}
		}
		if len(specific) > 0 {
			candidates = specific
		} else {
			candidates = general
		}
	}

	bookedSet := make(map[time.Time]struct{}, len(booked))
	for _, t := range booked {
		bookedSet[t.UTC()] = struct{}{}
	}

	seen := make(map[time.Time]struct{})
	var slots []time.Time
	for _, tpl := range candidates {
		for _, slot := range templateSlots(tpl, date, bookedSet, len(booked)) {
			if _, ok := seen[slot]; ok {
				continue
			}
			seen[slot] = struct{}{}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

func templateSlots(tpl models.WorkScheduleTemplate, date time.Time, booked map[time.Time]struct{}, bookedCount int) []time.Time {
	start, _ := ParseTimeOfDay(tpl.StartTime)
	end, _ := ParseTimeOfDay(tpl.EndTime)

	breakStart, breakEnd := -1, -1
	if tpl.BreakStart != "" && tpl.BreakEnd != "" {
		breakStart, _ = ParseTimeOfDay(tpl.BreakStart)
		breakEnd, _ = ParseTimeOfDay(tpl.BreakEnd)
	}

	remaining := -1
	if tpl.MaxPatientsPerDay > 0 {
		remaining = tpl.MaxPatientsPerDay - bookedCount
		if remaining <= 0 {
			return nil
		}
	}

	var slots []time.Time
	for minute := start; minute+tpl.SlotMinutes <= end; minute += tpl.SlotMinutes {
		if breakStart >= 0 && minute >= breakStart && minute < breakEnd {
			continue
		}
		slot := atMinute(date, minute)
		if _, taken := booked[slot.UTC()]; taken {
			continue
		}
		slots = append(slots, slot)
		if remaining > 0 && len(slots) == remaining {
			break
		}
	}
	return slots
}

// IsOfferedSlot reports whether the exact start time is one of the slots the
// templates offer for its date. It is the booking-time recheck before insert.
func IsOfferedSlot(templates []models.WorkScheduleTemplate, specialtyID string, startAt time.Time, booked []time.Time) bool {
	for _, slot := range AvailableSlots(templates, specialtyID, startAt, booked) {
		if slot.Equal(startAt) {
			return true
		}
	}
	return false
}

func atMinute(date time.Time, minute int) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, minute/60, minute%60, 0, 0, date.Location())
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
