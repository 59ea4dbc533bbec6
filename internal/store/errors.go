package store

import "errors"

// GuardError is a rejected visit transition with a caller-facing reason. The
// caller decides what to do next; guard failures are never retried by the
// service itself.
type GuardError struct {
	Code   string
	Reason string
}

func (e *GuardError) Error() string { return e.Reason }

var (
	ErrPaymentNotConfirmed = &GuardError{Code: "payment_not_confirmed", Reason: "payment not confirmed"}
	ErrWrongDay            = &GuardError{Code: "wrong_day", Reason: "visit is not scheduled for today"}
	ErrWrongDoctor         = &GuardError{Code: "wrong_doctor", Reason: "visit is assigned to a different doctor"}
	ErrInvalidState        = &GuardError{Code: "invalid_state", Reason: "visit state does not allow this action"}
	ErrVisitInPast         = &GuardError{Code: "visit_in_past", Reason: "scheduled time is already in the past"}
	ErrTriageExists        = &GuardError{Code: "triage_exists", Reason: "visit already has a triage record"}
	ErrTriageNotPending    = &GuardError{Code: "triage_not_pending", Reason: "triage record is no longer pending"}
	ErrConsultationMissing = &GuardError{Code: "consultation_missing", Reason: "no consultation record attached to this visit"}
)

// IsGuardViolation reports whether err is any rejected transition.
func IsGuardViolation(err error) bool {
	var guard *GuardError
	return errors.As(err, &guard)
}

// ErrSlotTaken is the double-booking conflict. Unlike a guard violation it is
// retryable: the caller should pick another slot.
var ErrSlotTaken = errors.New("slot already booked")

var (
	ErrSlotNotOfferable = errors.New("slot is not offered for this doctor and date")
	ErrVisitNotFound    = errors.New("visit not found")
	ErrTriageNotFound   = errors.New("triage record not found")
	ErrScheduleNotFound = errors.New("work schedule not found")
	ErrPatientNotFound  = errors.New("patient not found")
)
