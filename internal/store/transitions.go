package store

import (
	"time"

	"clinic/visit-service/internal/models"
)

const (
	ActionStartTriage       = "start_triage"
	ActionUpdateTriage      = "update_triage"
	ActionCompleteTriage    = "complete_triage"
	ActionStartConsultation = "start_consultation"
	ActionComplete          = "complete"
	ActionCancel            = "cancel"
	ActionNoShow            = "no_show"
	ActionReschedule        = "reschedule"
)

// start_consultation and complete each accept a second from-status:
// re-entering an open consultation is idempotent, and a visit still
// ready_for_doctor completes through the post-hoc path when a consultation
// record already exists.
var transitionMap = map[string][]string{
	ActionStartTriage:       {models.StatusScheduled},
	ActionCompleteTriage:    {models.StatusInTriage},
	ActionStartConsultation: {models.StatusReadyForDoctor, models.StatusInConsultation},
	ActionComplete:          {models.StatusInConsultation, models.StatusReadyForDoctor},
	ActionCancel:            {models.StatusScheduled},
	ActionNoShow:            {models.StatusScheduled},
	ActionReschedule:        {models.StatusScheduled},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// Guards below name the preconditions of each lifecycle action and return nil
// or the GuardError naming what is unmet. The postgres store re-evaluates
// them against the row read inside the same transaction that performs the
// update.

func CanStartTriage(status string, paid bool, scheduledAt, now time.Time) error {
	if status != models.StatusScheduled {
		return ErrInvalidState
	}
	if !paid {
		return ErrPaymentNotConfirmed
	}
	if !SameDay(scheduledAt, now) {
		return ErrWrongDay
	}
	return nil
}

func CanCompleteTriage(triageStatus, visitStatus string) error {
	if triageStatus != models.TriageStatusPending {
		return ErrTriageNotPending
	}
	if visitStatus != "" && visitStatus != models.StatusInTriage {
		return ErrInvalidState
	}
	return nil
}

func CanStartConsultation(status, visitDoctorID, actorID string) error {
	if !ValidTransition(ActionStartConsultation, status) {
		return ErrInvalidState
	}
	if actorID != visitDoctorID {
		return ErrWrongDoctor
	}
	return nil
}

func CanComplete(status string, hasConsultation bool) error {
	switch status {
	case models.StatusInConsultation:
		return nil
	case models.StatusReadyForDoctor:
		if !hasConsultation {
			return ErrConsultationMissing
		}
		return nil
	default:
		return ErrInvalidState
	}
}

func CanCancel(status string, scheduledAt, now time.Time) error {
	if status != models.StatusScheduled {
		return ErrInvalidState
	}
	if !scheduledAt.After(now) {
		return ErrVisitInPast
	}
	return nil
}

func CanMarkNoShow(status string) error {
	if status != models.StatusScheduled {
		return ErrInvalidState
	}
	return nil
}

func CanReschedule(status string) error {
	if status != models.StatusScheduled {
		return ErrInvalidState
	}
	return nil
}

// SameDay compares calendar dates in UTC, the zone all visit times are
// stored in.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
